package errors

import "strings"

// classifyByCode maps provider-specific error code strings to error types.
// Codes take precedence over HTTP status because some providers return
// overload conditions under generic statuses.
func classifyByCode(errorCode string) (ErrorType, bool) {
	if errorCode == "" {
		return ErrorTypeUnknown, false
	}

	code := strings.ToLower(errorCode)
	switch {
	case strings.Contains(code, "overloaded"):
		return ErrorTypeOverload, true
	case strings.Contains(code, "rate") || strings.Contains(code, "limit"):
		return ErrorTypeOverload, true
	case strings.Contains(code, "timeout"):
		return ErrorTypeTimeout, true
	case strings.Contains(code, "auth") || strings.Contains(code, "unauthorized"):
		return ErrorTypeAPI, true
	case strings.Contains(code, "permission") || strings.Contains(code, "forbidden"):
		return ErrorTypeAPI, true
	case strings.Contains(code, "invalid_request"):
		return ErrorTypeValidation, true
	default:
		return ErrorTypeUnknown, false
	}
}
