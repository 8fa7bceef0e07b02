package quiz

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
)

var (
	// Q7, **Q7**, ### Q7:
	labeledQuestion = regexp.MustCompile(`(?i)^[\s#>*_-]*Q(\d+)\b`)
	// 7. or 7) possibly behind markdown
	numberedQuestion = regexp.MustCompile(`^[\s#>*_-]*(\d+)[.)]\s`)
)

// Validate counts the questions in resp and checks every category is named.
// Labeled questions (Q1, Q2...) win over plain numbered lines when present,
// so numbered category headings are not counted.
func Validate(resp domain.QuizResponse) domain.QuizReport {
	lines := strings.Split(string(resp), "\n")
	count := countDistinct(lines, labeledQuestion)
	if count == 0 {
		count = countDistinct(lines, numberedQuestion)
	}

	lower := strings.ToLower(string(resp))
	var missing []domain.Category
	for _, c := range domain.Categories() {
		if !strings.Contains(lower, strings.ToLower(string(c))) {
			missing = append(missing, c)
		}
	}

	return domain.QuizReport{
		QuestionCount:     count,
		Expected:          domain.QuestionCount,
		MissingCategories: missing,
	}
}

func countDistinct(lines []string, re *regexp.Regexp) int {
	seen := make(map[int]struct{})
	for _, line := range lines {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seen[n] = struct{}{}
	}
	return len(seen)
}
