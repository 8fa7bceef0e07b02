// Package prompt renders the instruction sent to the text-generation provider.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
)

//go:embed prompts/ownership_validator.yaml
var defaultTemplate []byte

// TemplateKey is the YAML key holding the prompt template.
const TemplateKey = "quiz_generation_prompt"

const probeText = "<<ownership-probe-passage>>"

// DocumentSource resolves a chunk's document so headers can name line ranges.
type DocumentSource interface {
	Document(path string) (domain.SourceDocument, bool)
}

type file struct {
	QuizGenerationPrompt string `yaml:"quiz_generation_prompt"`
}

// Passage is one retrieved chunk as the template sees it. FirstLine and
// LastLine are zero when the chunk's document is unknown; Range always names
// the span, as "lines a-b" or "bytes a-b".
type Passage struct {
	Path      string
	FirstLine int
	LastLine  int
	Range     string
	Text      string
}

type data struct {
	Target     string
	Count      int
	Categories []domain.Category
	Context    []Passage
}

// Builder renders quiz prompts from a parsed template. It is safe for
// concurrent use.
type Builder struct {
	source string
	tmpl   *template.Template
}

// Default returns the builder for the embedded template.
func Default() (*Builder, error) {
	return Parse(defaultTemplate, "embedded")
}

// Load reads a YAML template file. An empty path selects the embedded template.
func Load(path string) (*Builder, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigurationError(fmt.Sprintf("cannot read prompt file %s: %v", path, err))
	}
	return Parse(raw, path)
}

// Parse builds a Builder from YAML and rejects templates that would not ask for
// the required count, the categories, or the retrieved code.
func Parse(raw []byte, source string) (*Builder, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, domain.ConfigurationError(fmt.Sprintf("invalid prompt file %s: %v", source, err))
	}
	if strings.TrimSpace(f.QuizGenerationPrompt) == "" {
		return nil, domain.ConfigurationError(fmt.Sprintf("'%s' not found in prompt file %s", TemplateKey, source))
	}

	tmpl, err := template.New(TemplateKey).
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		Option("missingkey=error").
		Parse(f.QuizGenerationPrompt)
	if err != nil {
		return nil, domain.ConfigurationError(fmt.Sprintf("invalid prompt template in %s: %v", source, err))
	}

	b := &Builder{source: source, tmpl: tmpl}
	probe, err := b.render(data{
		Target:     "probe",
		Count:      domain.QuestionCount,
		Categories: domain.Categories(),
		Context:    []Passage{{Path: "probe", FirstLine: 1, LastLine: 1, Range: "lines 1-1", Text: probeText}},
	})
	if err != nil {
		return nil, err
	}
	if !strings.Contains(probe, probeText) {
		return nil, domain.ConfigurationError(fmt.Sprintf("prompt template in %s does not include the retrieved code", source))
	}
	if err := verify(probe, source); err != nil {
		return nil, err
	}
	return b, nil
}

// Source names where the template came from.
func (b *Builder) Source() string {
	return b.source
}

// Build renders the prompt for target from the retrieved chunks. docs may be nil,
// in which case headers carry byte ranges instead of line ranges.
func (b *Builder) Build(target string, result domain.RetrievalResult, docs DocumentSource) (string, error) {
	passages := make([]Passage, 0, len(result))
	for _, sc := range result {
		passages = append(passages, passage(sc.Chunk, docs))
	}

	out, err := b.render(data{
		Target:     target,
		Count:      domain.QuestionCount,
		Categories: domain.Categories(),
		Context:    passages,
	})
	if err != nil {
		return "", err
	}
	if err := verify(out, b.source); err != nil {
		return "", err
	}
	return out, nil
}

func (b *Builder) render(d data) (string, error) {
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, d); err != nil {
		return "", domain.ConfigurationError(fmt.Sprintf("failed to render prompt template %s: %v", b.source, err))
	}
	return buf.String(), nil
}

func passage(c domain.Chunk, docs DocumentSource) Passage {
	p := Passage{Path: c.Path, Text: c.Text}
	if docs != nil {
		if doc, ok := docs.Document(c.Path); ok {
			p.FirstLine, p.LastLine = c.Lines(doc)
			p.Range = fmt.Sprintf("lines %d-%d", p.FirstLine, p.LastLine)
			return p
		}
	}
	p.Range = fmt.Sprintf("bytes %d-%d", c.Offset, c.End())
	return p
}

func verify(prompt, source string) error {
	if !strings.Contains(prompt, strconv.Itoa(domain.QuestionCount)) {
		return domain.ConfigurationError(fmt.Sprintf("prompt template in %s does not state the question count %d", source, domain.QuestionCount))
	}
	var missing []string
	for _, c := range domain.Categories() {
		if !strings.Contains(prompt, string(c)) {
			missing = append(missing, string(c))
		}
	}
	if len(missing) > 0 {
		return domain.ConfigurationError(fmt.Sprintf("prompt template in %s does not name categories: %s", source, strings.Join(missing, ", ")))
	}
	return nil
}
