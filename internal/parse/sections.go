package parse

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var errEmptyResponse = errors.New("response contains no usable text")

// sectionsStrategy is the last resort. It slices the full text into sections
// between known header keywords; when no headers exist at all it falls back
// to blank-line paragraphs, assigning the first to feedback and sniffing the
// rest for strengths, opportunities, and a grade.
type sectionsStrategy struct{}

func (s *sectionsStrategy) Name() string { return "text_sections" }

type sectionField int

const (
	fieldFeedback sectionField = iota
	fieldStrengths
	fieldOpportunities
	fieldGrade
	fieldScores
)

type headerHit struct {
	field sectionField
	start int
	end   int
}

var sectionHeaders = []struct {
	field sectionField
	re    *regexp.Regexp
}{
	{fieldFeedback, feedbackLabelRe},
	{fieldStrengths, strengthsLabelRe},
	{fieldOpportunities, opportunitiesLabelRe},
	{fieldGrade, gradeLabelRe},
	{fieldScores, scoresLabelRe},
}

func (s *sectionsStrategy) Parse(text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errEmptyResponse
	}

	hits := findHeaders(text)
	if len(hits) == 0 {
		return parseParagraphs(text)
	}

	result := &Result{}
	for i, hit := range hits {
		end := len(text)
		if i+1 < len(hits) {
			end = hits[i+1].start
		}
		content := text[hit.end:end]

		switch hit.field {
		case fieldFeedback:
			result.Feedback = cleanValue(content)
		case fieldStrengths:
			result.Strengths = sectionItems(content)
		case fieldOpportunities:
			result.Opportunities = sectionItems(content)
		case fieldGrade:
			result.OverallGrade = cleanValue(firstLine(content))
		case fieldScores:
			result.Scores = sectionScores(content)
		}
	}
	return result, nil
}

// findHeaders locates the first occurrence of each known header keyword and
// orders the hits by position.
func findHeaders(text string) []headerHit {
	var hits []headerHit
	for _, h := range sectionHeaders {
		if loc := h.re.FindStringIndex(text); loc != nil {
			hits = append(hits, headerHit{field: h.field, start: loc[0], end: loc[1]})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	return hits
}

// sectionItems extracts list items from one section's sliced text: a
// JSON-like array when present, otherwise bullet or numbered lines, with a
// final fallback to comma-separated values.
func sectionItems(content string) []string {
	trimmed := strings.TrimLeft(content, " \t\"'")
	if strings.HasPrefix(trimmed, "[") {
		if items, ok := parseJSONArray(trimmed); ok {
			return items
		}
	}

	var items []string
	for _, line := range strings.Split(content, "\n") {
		if m := bulletItemRe.FindStringSubmatch(line); m != nil {
			if item := cleanValue(m[1]); item != "" {
				items = append(items, item)
			}
		}
	}
	if len(items) > 0 {
		return items
	}

	clean := cleanValue(content)
	if clean == "" {
		return []string{}
	}
	for _, part := range strings.FieldsFunc(clean, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		if item := cleanValue(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func sectionScores(content string) map[string]float64 {
	trimmed := strings.TrimLeft(content, " \t\"'")
	if strings.HasPrefix(trimmed, "{") {
		if obj, ok := balancedBraces(trimmed); ok {
			var raw map[string]any
			if err := jsonUnmarshalLenient(obj, &raw); err == nil {
				return coerceScores(raw)
			}
		}
	}

	scores := map[string]float64{}
	for _, m := range scoreLineRe.FindAllStringSubmatch(content, -1) {
		name := cleanValue(m[1])
		if name == "" {
			continue
		}
		if f, err := strconv.ParseFloat(m[2], 64); err == nil {
			scores[name] = f
		}
	}
	return scores
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}

// parseParagraphs handles header-less prose. The first paragraph becomes
// feedback; later paragraphs are assigned by keyword sniffing, and anything
// unmatched is appended to feedback so no text is silently dropped.
func parseParagraphs(text string) (*Result, error) {
	var paragraphs []string
	for _, p := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil, errEmptyResponse
	}

	result := &Result{Feedback: paragraphs[0]}
	for _, p := range paragraphs[1:] {
		lower := strings.ToLower(p)
		switch {
		case strings.Contains(lower, "strength"):
			result.Strengths = append(result.Strengths, paragraphItems(p)...)
		case strings.Contains(lower, "improve") || strings.Contains(lower, "opportunit") ||
			strings.Contains(lower, "weakness"):
			result.Opportunities = append(result.Opportunities, paragraphItems(p)...)
		case strings.Contains(lower, "grade") || strings.Contains(lower, "score"):
			if g := extractGrade(p); g != "" && result.OverallGrade == "" {
				result.OverallGrade = g
			} else {
				result.Feedback += "\n\n" + p
			}
		default:
			result.Feedback += "\n\n" + p
		}
	}
	return result, nil
}

// paragraphItems pulls list items out of a sniffed paragraph, preferring
// bullet lines and falling back to the paragraph body minus its first line
// when that line is just a lead-in.
func paragraphItems(p string) []string {
	var items []string
	for _, line := range strings.Split(p, "\n") {
		if m := bulletItemRe.FindStringSubmatch(line); m != nil {
			if item := cleanValue(m[1]); item != "" {
				items = append(items, item)
			}
		}
	}
	if len(items) > 0 {
		return items
	}
	return []string{strings.TrimSpace(p)}
}

var gradeValueRe = regexp.MustCompile(`(?i)\bgrade\b[^A-Za-z0-9]*([A-F][+-]?|\d+(?:\.\d+)?%?(?:\s*/\s*\d+)?)`)

func extractGrade(p string) string {
	if m := gradeValueRe.FindStringSubmatch(p); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func jsonUnmarshalLenient(s string, v any) error {
	return json.Unmarshal([]byte(repairJSON(s)), v)
}
