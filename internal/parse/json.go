package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errNotJSONObject = errors.New("response is not a JSON object")
	errNoKnownKeys   = errors.New("JSON object contains no recognized keys")
)

// directJSONStrategy parses the whole response as a JSON object and maps the
// top-level keys. Strictest strategy; anything short of valid JSON fails.
type directJSONStrategy struct{}

func (s *directJSONStrategy) Name() string { return "direct_json" }

func (s *directJSONStrategy) Parse(text string) (*Result, error) {
	return decodeResultJSON([]byte(strings.TrimSpace(text)))
}

// decodeResultJSON maps a JSON object onto a Result. Values are coerced
// leniently: scalar strengths become one-item lists, numeric grades become
// their string form, and score values accept numbers or numeric strings.
// At least one recognized key must be present.
func decodeResultJSON(data []byte) (*Result, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", errNotJSONObject, err)
	}

	result := &Result{}
	found := false

	for key, value := range payload {
		switch strings.ToLower(key) {
		case "feedback":
			result.Feedback = coerceString(value)
			found = true
		case "strengths":
			result.Strengths = coerceStringList(value)
			found = true
		case "opportunities":
			result.Opportunities = coerceStringList(value)
			found = true
		case "overall_grade", "grade":
			result.OverallGrade = coerceString(value)
			found = true
		case "scores":
			result.Scores = coerceScores(value)
			found = true
		case "summary":
			result.Summary = coerceString(value)
			found = true
		case "question":
			result.Question = coerceString(value)
			found = true
		}
	}

	if !found {
		return nil, errNoKnownKeys
	}
	return result, nil
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func coerceStringList(v any) []string {
	switch t := v.(type) {
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			if s := coerceString(item); s != "" {
				items = append(items, s)
			}
		}
		return items
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
		return []string{}
	case nil:
		return []string{}
	default:
		if s := coerceString(t); s != "" {
			return []string{s}
		}
		return []string{}
	}
}

func coerceScores(v any) map[string]float64 {
	scores := map[string]float64{}
	m, ok := v.(map[string]any)
	if !ok {
		return scores
	}
	for k, raw := range m {
		switch t := raw.(type) {
		case float64:
			scores[k] = t
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				scores[k] = f
			}
		}
	}
	return scores
}
