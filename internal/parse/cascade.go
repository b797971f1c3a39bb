package parse

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrAllStrategiesFailed indicates every strategy in the cascade rejected
// the response text.
var ErrAllStrategiesFailed = errors.New("all parse strategies failed")

// Strategy is one extraction approach in the cascade.
type Strategy interface {
	Name() string
	Parse(text string) (*Result, error)
}

// ParseError aggregates the per-strategy failures when the whole cascade
// fails. It is terminal: re-sending the same prompt is unlikely to produce
// parseable output.
type ParseError struct {
	Attempts map[string]string // strategy name -> failure message
}

// Error formats the aggregated failure with each strategy's reason.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("all parse strategies failed")
	for name, msg := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %s", name, msg)
	}
	return b.String()
}

// Unwrap makes ParseError match errors.Is(err, ErrAllStrategiesFailed).
func (e *ParseError) Unwrap() error { return ErrAllStrategiesFailed }

// Cascade runs strategies strictly in order, returning the first success.
type Cascade struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewCascade builds the standard four-strategy cascade: direct JSON,
// repaired JSON, regex label extraction, structured-text sectioning.
func NewCascade() *Cascade {
	return &Cascade{
		strategies: []Strategy{
			&directJSONStrategy{},
			&repairedJSONStrategy{},
			&regexStrategy{},
			&sectionsStrategy{},
		},
		logger: slog.Default().With("component", "parse_cascade"),
	}
}

// Parse tries each strategy in order and returns the first success.
// The returned result is always fully populated. On total failure the
// returned ParseError carries every strategy's reason.
func (c *Cascade) Parse(text string) (*Result, error) {
	attempts := make(map[string]string, len(c.strategies))

	for _, s := range c.strategies {
		result, err := s.Parse(text)
		if err != nil {
			attempts[s.Name()] = err.Error()
			continue
		}
		result.normalize()
		c.logger.Debug("response parsed", "strategy", s.Name())
		return result, nil
	}

	return nil, &ParseError{Attempts: attempts}
}
