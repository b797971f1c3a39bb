// Package parse converts raw LLM response text into a structured grading
// result. Strategies are tried in order of strictness, from direct JSON
// decoding down to keyword-based text sectioning, so the pipeline always
// receives some structured result from any non-empty response rather than
// crashing on malformed output.
package parse

// Placeholder values substituted for sections the response never provided.
// Downstream code and the UI rely on these never being empty or null.
const (
	PlaceholderFeedback = "No feedback provided."
	PlaceholderGrade    = "Ungraded"
)

// Result is the normalized output of the cascade. Once parsing succeeds it
// is always fully populated: absent list sections are empty slices, absent
// scalar sections carry placeholders, and Scores is never nil.
type Result struct {
	Feedback      string             `json:"feedback"`
	Strengths     []string           `json:"strengths"`
	Opportunities []string           `json:"opportunities"`
	OverallGrade  string             `json:"overall_grade"`
	Scores        map[string]float64 `json:"scores"`
	Summary       string             `json:"summary,omitempty"`
	Question      string             `json:"question,omitempty"`
}

// normalize fills placeholders and replaces nil containers so callers never
// see partial results.
func (r *Result) normalize() {
	if r.Feedback == "" {
		r.Feedback = PlaceholderFeedback
	}
	if r.OverallGrade == "" {
		r.OverallGrade = PlaceholderGrade
	}
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.Opportunities == nil {
		r.Opportunities = []string{}
	}
	if r.Scores == nil {
		r.Scores = map[string]float64{}
	}
}
