package parse

import (
	"errors"
	"regexp"
	"strings"
)

var errNoJSONObjectFound = errors.New("no JSON object found in response")

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
)

// repairedJSONStrategy extracts the largest {...} substring, repairs common
// malformations, and decodes as the direct strategy would. Catches responses
// where the model wrapped valid-ish JSON in prose or markdown fences.
type repairedJSONStrategy struct{}

func (s *repairedJSONStrategy) Name() string { return "repaired_json" }

func (s *repairedJSONStrategy) Parse(text string) (*Result, error) {
	candidate := extractLargestObject(text)
	if candidate == "" {
		return nil, errNoJSONObjectFound
	}
	return decodeResultJSON([]byte(repairJSON(candidate)))
}

// extractLargestObject returns the substring from the first '{' to the last
// '}', the widest plausible object boundary. An unterminated object is
// returned from the first '{' onward so repair can close it.
func extractLargestObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(text, "}")
	if end > start {
		return text[start : end+1]
	}
	return text[start:]
}

// repairJSON fixes common JSON syntax errors in LLM responses: trailing
// commas, missing closing braces, unquoted keys, and single-quoted strings.
func repairJSON(content string) string {
	repaired := strings.TrimPrefix(content, "\ufeff")
	repaired = strings.TrimSpace(repaired)

	repaired = trailingCommaRe.ReplaceAllString(repaired, "$1")
	repaired = unquotedKeyRe.ReplaceAllString(repaired, `$1"$2":`)

	// Single-quoted JSON, only when no double quotes are present at all.
	if !strings.Contains(repaired, `"`) && strings.Contains(repaired, `'`) {
		repaired = strings.ReplaceAll(repaired, `'`, `"`)
	}

	openBraces := strings.Count(repaired, "{") - strings.Count(repaired, "}")
	openBrackets := strings.Count(repaired, "[") - strings.Count(repaired, "]")
	for i := 0; i < openBrackets; i++ {
		repaired += "]"
	}
	for i := 0; i < openBraces; i++ {
		repaired += "}"
	}

	return repaired
}
