package llm

import (
	"fmt"
	"strings"

	"github.com/gradepipe/gradepipe/internal/configuration"
	llmerrors "github.com/gradepipe/gradepipe/internal/llm/errors"
	"github.com/gradepipe/gradepipe/internal/llm/transport"
)

// validateRequest rejects malformed requests before any network call.
// Validation failures are terminal and never retried.
func validateRequest(cfg *configuration.Config, req *transport.Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return &llmerrors.ValidationError{
			Field:   "prompt",
			Message: llmerrors.ErrEmptyPrompt.Error(),
		}
	}

	if req.Provider == "" {
		return &llmerrors.ValidationError{
			Field:   "provider",
			Message: "provider must not be empty",
		}
	}

	if _, ok := cfg.Providers[req.Provider]; !ok {
		return &llmerrors.ValidationError{
			Field:   "provider",
			Message: fmt.Sprintf("%s: %s", llmerrors.ErrUnknownProvider, req.Provider),
		}
	}

	if req.Model == "" {
		return &llmerrors.ValidationError{
			Field:   "model",
			Message: "model must not be empty",
		}
	}

	if req.Operation != transport.OpGrading && req.Operation != transport.OpRubric {
		return &llmerrors.ValidationError{
			Field:   "operation",
			Message: fmt.Sprintf("unsupported operation: %s", req.Operation),
		}
	}

	if req.MaxTokens < 0 {
		return &llmerrors.ValidationError{
			Field:   "max_tokens",
			Message: "max_tokens must not be negative",
		}
	}

	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return &llmerrors.ValidationError{
			Field:   "temperature",
			Message: "temperature must be between 0 and 2",
		}
	}

	return nil
}
