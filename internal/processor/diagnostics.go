package processor

import (
	"time"

	llmerrors "github.com/gradepipe/gradepipe/internal/llm/errors"
)

// maxDiagnosticLen bounds the human-readable failure message stored on a
// failed unit. Full technical detail goes to the log, not the user.
const maxDiagnosticLen = 500

// retryNoticeMessage is the user-facing feedback stored while a transiently
// failed unit waits in the queue.
const retryNoticeMessage = "Grading could not be completed because the " +
	"grading service is temporarily busy. It will be retried automatically."

func truncateDiagnostic(msg string) string {
	if len(msg) <= maxDiagnosticLen {
		return msg
	}
	return msg[:maxDiagnosticLen]
}

// rescheduleDelay computes how long a transiently failed unit waits before
// re-entering the queue: the circuit's remaining cooldown plus a buffer for
// circuit-open rejections, the provider-suggested retry-after (or the
// configured default) for everything else.
func rescheduleDelay(err error, kind llmerrors.ErrorType, openTimeout, circuitBuffer, defaultDelay time.Duration) time.Duration {
	if kind == llmerrors.ErrorTypeUnavailable {
		return openTimeout + circuitBuffer
	}
	if retryAfter := llmerrors.GetRetryAfter(err); retryAfter > 0 {
		return time.Duration(retryAfter) * time.Second
	}
	return defaultDelay
}

// isReschedulable reports whether the failure should send the unit back to
// pending for another queued attempt rather than failing it outright.
func isReschedulable(kind llmerrors.ErrorType) bool {
	return kind == llmerrors.ErrorTypeUnavailable || kind.IsTransient()
}
