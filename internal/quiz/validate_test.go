package quiz

import (
	"testing"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		count   int
		missing int
	}{
		{
			name:    "labeled questions",
			resp:    quizText(),
			count:   30,
			missing: 0,
		},
		{
			name:    "markdown labels",
			resp:    "### Deep Logic Handling\n**Q1:** why?\n**Q2:** how?\n- Q3 what?\n",
			count:   3,
			missing: 3,
		},
		{
			name:    "numbered list ignores duplicates",
			resp:    "1. why?\n2) how?\n2) how again?\n  3. what?\n",
			count:   3,
			missing: 4,
		},
		{
			name: "labels win over numbered headings",
			resp: "1. Deep Logic Handling\nQ1 why?\n2. System Design Decisions\nQ2 why?\n" +
				"3. weird logic explanations\n4. MAINTENANCE OBSTACLES\n",
			count:   2,
			missing: 0,
		},
		{
			name:    "no questions",
			resp:    "Questions follow.\nQuick note: none.",
			count:   0,
			missing: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Validate(domain.QuizResponse(tt.resp))

			assert.Equal(t, tt.count, report.QuestionCount)
			assert.Equal(t, domain.QuestionCount, report.Expected)
			assert.Len(t, report.MissingCategories, tt.missing)
		})
	}
}
