package parse

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var errNoLabelsFound = errors.New("no labeled sections found in response")

// Label patterns locate sections anywhere in unstructured text. Quotes
// around the label are tolerated so JSON-ish responses still match.
var (
	feedbackLabelRe      = regexp.MustCompile(`(?i)"?\bfeedback\b"?\s*[:\-]`)
	strengthsLabelRe     = regexp.MustCompile(`(?i)"?\bstrengths?\b"?\s*[:\-]`)
	opportunitiesLabelRe = regexp.MustCompile(`(?i)"?\b(?:opportunities|areas?[ _]for[ _]improvement|improvements?)\b"?\s*[:\-]`)
	gradeLabelRe         = regexp.MustCompile(`(?i)"?\b(?:overall[ _]?grade|grade)\b"?\s*[:\-]`)
	scoresLabelRe        = regexp.MustCompile(`(?i)"?\bscores?\b"?\s*[:\-]`)
	summaryLabelRe       = regexp.MustCompile(`(?i)"?\bsummary\b"?\s*[:\-]`)
	questionLabelRe      = regexp.MustCompile(`(?i)"?\bquestion\b"?\s*[:\-]`)

	bulletItemRe    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*(.+)$`)
	scoreLineRe     = regexp.MustCompile(`(?m)^\s*"?([^":\n]+?)"?\s*[:\-]\s*(\d+(?:\.\d+)?)\s*,?\s*$`)
	quotedScalarRe  = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"`)
	trailingValueRe = regexp.MustCompile(`^([^\n]*)`)
)

// regexStrategy locates labeled sections anywhere in free-form text with
// case-insensitive patterns. Within a section it detects bullet lists,
// numbered lists, or JSON-like arrays. Sections that never appear yield
// placeholders rather than failing the strategy.
type regexStrategy struct{}

func (s *regexStrategy) Name() string { return "regex_extraction" }

func (s *regexStrategy) Parse(text string) (*Result, error) {
	result := &Result{}
	found := false

	if v, ok := scalarAfterLabel(text, feedbackLabelRe); ok {
		result.Feedback = v
		found = true
	}
	if v, ok := listAfterLabel(text, strengthsLabelRe); ok {
		result.Strengths = v
		found = true
	}
	if v, ok := listAfterLabel(text, opportunitiesLabelRe); ok {
		result.Opportunities = v
		found = true
	}
	if v, ok := scalarAfterLabel(text, gradeLabelRe); ok {
		result.OverallGrade = v
		found = true
	}
	if v, ok := scoresAfterLabel(text, scoresLabelRe); ok {
		result.Scores = v
		found = true
	}
	if v, ok := scalarAfterLabel(text, summaryLabelRe); ok {
		result.Summary = v
		found = true
	}
	if v, ok := scalarAfterLabel(text, questionLabelRe); ok {
		result.Question = v
		found = true
	}

	if !found {
		return nil, errNoLabelsFound
	}
	return result, nil
}

// scalarAfterLabel extracts a single value following a label: a quoted
// string when one starts the value, otherwise the remainder of the line.
func scalarAfterLabel(text string, label *regexp.Regexp) (string, bool) {
	loc := label.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := strings.TrimLeft(text[loc[1]:], " \t")

	if m := quotedScalarRe.FindStringSubmatch(rest); m != nil {
		return unescapeJSONString(m[1]), true
	}

	if m := trailingValueRe.FindStringSubmatch(rest); m != nil {
		if v := cleanValue(m[1]); v != "" {
			return v, true
		}
	}
	return "", false
}

// listAfterLabel extracts list items following a label. JSON-like arrays are
// decoded directly; otherwise subsequent bullet or numbered lines are
// collected, falling back to splitting the label's own line on commas.
func listAfterLabel(text string, label *regexp.Regexp) ([]string, bool) {
	loc := label.FindStringIndex(text)
	if loc == nil {
		return nil, false
	}
	rest := strings.TrimLeft(text[loc[1]:], " \t")

	if strings.HasPrefix(rest, "[") {
		if items, ok := parseJSONArray(rest); ok {
			return items, true
		}
	}

	// Items as bullet or numbered lines below the label.
	var items []string
	lines := strings.Split(rest, "\n")
	for i := 1; i < len(lines); i++ {
		m := bulletItemRe.FindStringSubmatch(lines[i])
		if m == nil {
			if len(items) > 0 || strings.TrimSpace(lines[i]) != "" {
				break
			}
			continue
		}
		if item := cleanValue(m[1]); item != "" {
			items = append(items, item)
		}
	}
	if len(items) > 0 {
		return items, true
	}

	// Inline items on the label's own line.
	inline := cleanValue(lines[0])
	if inline == "" {
		return []string{}, true
	}
	for _, part := range strings.FieldsFunc(inline, func(r rune) bool { return r == ',' || r == ';' }) {
		if item := cleanValue(part); item != "" {
			items = append(items, item)
		}
	}
	return items, true
}

// scoresAfterLabel extracts criterion scores: a JSON-like object when one
// follows the label, otherwise "name: number" lines below it.
func scoresAfterLabel(text string, label *regexp.Regexp) (map[string]float64, bool) {
	loc := label.FindStringIndex(text)
	if loc == nil {
		return nil, false
	}
	rest := strings.TrimLeft(text[loc[1]:], " \t")

	if strings.HasPrefix(rest, "{") {
		if obj, ok := balancedBraces(rest); ok {
			var raw map[string]any
			if err := json.Unmarshal([]byte(repairJSON(obj)), &raw); err == nil {
				return coerceScores(raw), true
			}
		}
	}

	scores := map[string]float64{}
	for _, m := range scoreLineRe.FindAllStringSubmatch(rest, -1) {
		name := cleanValue(m[1])
		if name == "" || strings.EqualFold(name, "scores") {
			continue
		}
		if f, err := strconv.ParseFloat(m[2], 64); err == nil {
			scores[name] = f
		}
	}
	return scores, len(scores) > 0
}

// parseJSONArray decodes the leading [...] of s, tolerating repairable
// malformations.
func parseJSONArray(s string) ([]string, bool) {
	depth := 0
	end := -1
	inString := false
	for i, r := range s {
		switch {
		case inString:
			if r == '\\' {
				continue
			}
			if r == '"' {
				inString = false
			}
		case r == '"':
			inString = true
		case r == '[':
			depth++
		case r == ']':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 {
		return nil, false
	}

	var raw []any
	if err := json.Unmarshal([]byte(repairJSON(s[:end+1])), &raw); err != nil {
		return nil, false
	}
	return coerceStringList(raw), true
}

// balancedBraces returns the leading {...} of s with matched braces.
func balancedBraces(s string) (string, bool) {
	depth := 0
	inString := false
	for i, r := range s {
		switch {
		case inString:
			if r == '\\' {
				continue
			}
			if r == '"' {
				inString = false
			}
		case r == '"':
			inString = true
		case r == '{':
			depth++
		case r == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// cleanValue strips JSON punctuation and whitespace left over when labeled
// values are sliced out of JSON-ish text.
func cleanValue(s string) string {
	return strings.Trim(s, " \t\r\n\"'`:,[]{}")
}

func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
