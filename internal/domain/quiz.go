package domain

// QuestionCount is the exact number of questions every quiz must ask.
const QuestionCount = 30

// Category is one of the mandated question categories.
type Category string

const (
	CategoryDeepLogic    Category = "Deep Logic Handling"
	CategorySystemDesign Category = "System Design Decisions"
	CategoryWeirdLogic   Category = "Weird Logic Explanations"
	CategoryMaintenance  Category = "Maintenance Obstacles"
)

// Categories lists the mandated categories in prompt order.
func Categories() []Category {
	return []Category{
		CategoryDeepLogic,
		CategorySystemDesign,
		CategoryWeirdLogic,
		CategoryMaintenance,
	}
}

// QuizResponse is the raw completion text.
type QuizResponse string

// QuizReport summarizes a post-generation check of a response. It never
// changes what is presented.
type QuizReport struct {
	QuestionCount     int        `json:"question_count"`
	Expected          int        `json:"expected"`
	MissingCategories []Category `json:"missing_categories,omitempty"`
}

// Complete reports whether the response had the expected count and every category.
func (r QuizReport) Complete() bool {
	return r.QuestionCount == r.Expected && len(r.MissingCategories) == 0
}
