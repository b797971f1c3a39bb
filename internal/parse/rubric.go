package parse

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoCriteriaFound indicates no rubric criteria could be extracted from
// the response text.
var ErrNoCriteriaFound = errors.New("no rubric criteria found in response")

// defaultCriterionMaxScore applies when the response omits a maximum.
const defaultCriterionMaxScore = 10

// CriterionSpec is one rubric criterion as extracted from a generation
// response, before the store assigns identity and position.
type CriterionSpec struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	MaxScore    float64     `json:"max_score"`
	Levels      []LevelSpec `json:"levels,omitempty"`
}

// LevelSpec is one achievement level within a criterion.
type LevelSpec struct {
	Label       string  `json:"label"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// ParseRubricCriteria extracts structured criteria from a rubric generation
// response, degrading like the grading cascade: direct JSON, repaired JSON,
// then bullet or numbered lines as bare criterion titles.
func ParseRubricCriteria(text string) ([]CriterionSpec, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrNoCriteriaFound
	}

	if specs, ok := decodeCriteriaJSON([]byte(trimmed)); ok {
		return specs, nil
	}

	if candidate := extractLargestObject(trimmed); candidate != "" {
		if specs, ok := decodeCriteriaJSON([]byte(repairJSON(candidate))); ok {
			return specs, nil
		}
	}
	if start := strings.Index(trimmed, "["); start != -1 {
		if arr, ok := parseRawArray(trimmed[start:]); ok {
			if specs, ok := criteriaFromAny(arr); ok {
				return specs, nil
			}
		}
	}

	// Last resort: each bullet or numbered line is a criterion title, with
	// an optional "Title: description" split.
	var specs []CriterionSpec
	for _, line := range strings.Split(trimmed, "\n") {
		m := bulletItemRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := strings.TrimSpace(m[1])
		if item == "" {
			continue
		}
		spec := CriterionSpec{MaxScore: defaultCriterionMaxScore}
		if title, desc, found := strings.Cut(item, ":"); found && strings.TrimSpace(title) != "" {
			spec.Title = strings.TrimSpace(title)
			spec.Description = strings.TrimSpace(desc)
		} else {
			spec.Title = item
		}
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, ErrNoCriteriaFound
	}
	return specs, nil
}

// decodeCriteriaJSON accepts either a bare array of criteria or an object
// with a "criteria" key.
func decodeCriteriaJSON(data []byte) ([]CriterionSpec, bool) {
	var wrapper struct {
		Criteria []json.RawMessage `json:"criteria"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Criteria) > 0 {
		return decodeCriteriaList(wrapper.Criteria)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return decodeCriteriaList(list)
	}
	return nil, false
}

func decodeCriteriaList(raw []json.RawMessage) ([]CriterionSpec, bool) {
	specs := make([]CriterionSpec, 0, len(raw))
	for _, r := range raw {
		var spec CriterionSpec
		if err := json.Unmarshal(r, &spec); err != nil || strings.TrimSpace(spec.Title) == "" {
			// Tolerate entries that are plain strings.
			var title string
			if err := json.Unmarshal(r, &title); err != nil || strings.TrimSpace(title) == "" {
				continue
			}
			spec = CriterionSpec{Title: strings.TrimSpace(title)}
		}
		if spec.MaxScore <= 0 {
			spec.MaxScore = defaultCriterionMaxScore
		}
		specs = append(specs, spec)
	}
	return specs, len(specs) > 0
}

func parseRawArray(s string) ([]any, bool) {
	depth := 0
	inString := false
	escaped := false
	end := -1
	for i, r := range s {
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
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
	var arr []any
	if err := json.Unmarshal([]byte(repairJSON(s[:end+1])), &arr); err != nil {
		return nil, false
	}
	return arr, true
}

func criteriaFromAny(arr []any) ([]CriterionSpec, bool) {
	data, err := json.Marshal(arr)
	if err != nil {
		return nil, false
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false
	}
	return decodeCriteriaList(raw)
}
