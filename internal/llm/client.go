// Package llm provides a resilient client for Large Language Model
// providers. Requests flow through a middleware pipeline that applies
// circuit breaking per model key at the call level and retry with backoff at
// the attempt level, over a provider-agnostic HTTP core. Every successful
// call emits a completion event carrying token usage and attribution for
// asynchronous cost recording.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gradepipe/gradepipe/internal/configuration"
	"github.com/gradepipe/gradepipe/internal/llm/circuitbreaker"
	"github.com/gradepipe/gradepipe/internal/llm/providers"
	"github.com/gradepipe/gradepipe/internal/llm/retry"
	"github.com/gradepipe/gradepipe/internal/llm/transport"
	"github.com/gradepipe/gradepipe/pkg/events"
)

// Generation defaults applied when the request leaves them unset.
const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.2
)

// HTTP transport constants.
const (
	defaultMaxIdleConns    = 100
	defaultIdleConnTimeout = 90 * time.Second
	defaultTLSTimeout      = 10 * time.Second
)

// Client performs LLM generation calls with full resilience applied.
type Client interface {
	// Generate runs one generation call through the middleware pipeline.
	// Returns the normalized response, or a classified error: validation
	// failures and terminal provider errors immediately, circuit-open
	// rejections with reset timing, and exhausted-retry transient failures
	// wrapping the last provider error.
	Generate(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

type client struct {
	config   *configuration.Config
	handler  transport.Handler
	breakers *circuitbreaker.Registry
	sink     events.EventSink
	logger   *slog.Logger
}

// NewClient builds the LLM client with its middleware pipeline. The circuit
// breaker registry is shared with the caller so orchestrators can read
// breaker state for reschedule timing. A nil sink disables completion
// events.
func NewClient(cfg *configuration.Config, breakers *circuitbreaker.Registry, sink events.EventSink) (Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}

	router, err := providers.NewRouter(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          defaultMaxIdleConns,
				IdleConnTimeout:       defaultIdleConnTimeout,
				TLSHandshakeTimeout:   defaultTLSTimeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
			Timeout: cfg.HTTPTimeout,
		}
	}

	coreHandler := transport.NewHTTPHandler(httpClient, router)

	// Retry applies per attempt, inside the circuit breaker, so a single
	// logical call counts once against breaker health no matter how many
	// attempts it took.
	retryMiddleware, err := retry.NewMiddleware(retry.Config{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
		UseJitter:       cfg.Retry.UseJitter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retry middleware: %w", err)
	}

	handler := transport.Chain(coreHandler, breakers.Middleware(), retryMiddleware)

	return &client{
		config:   cfg,
		handler:  handler,
		breakers: breakers,
		sink:     sink,
		logger:   slog.Default().With("component", "llm_client"),
	}, nil
}

// Generate implements Client. The caller's request is never mutated;
// defaults apply to a copy.
func (c *client) Generate(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	r := *req
	c.applyDefaults(&r)

	if err := validateRequest(c.config, &r); err != nil {
		return nil, err
	}

	resp, err := c.handler.Handle(ctx, &r)
	if err != nil {
		return nil, err
	}

	c.emitCompletion(ctx, &r, resp)
	return resp, nil
}

func (c *client) applyDefaults(req *transport.Request) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if req.Temperature == nil {
		t := float64(DefaultTemperature)
		req.Temperature = &t
	}
	if req.Timeout == 0 {
		if pc, ok := c.config.Providers[req.Provider]; ok && pc.Timeout > 0 {
			req.Timeout = pc.Timeout
		}
	}
}

// emitCompletion publishes a completion event with best-effort delivery.
// Sink failures are logged and swallowed; cost recording is observability,
// not correctness.
func (c *client) emitCompletion(ctx context.Context, req *transport.Request, resp *transport.Response) {
	payload, err := json.Marshal(CompletionEvent{
		RequestID:        req.RequestID,
		Operation:        string(req.Operation),
		Provider:         req.Provider,
		Model:            req.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		LatencyMs:        resp.Usage.LatencyMs,
		Attribution:      req.Attribution,
	})
	if err != nil {
		c.logger.Warn("failed to marshal completion event", "error", err)
		return
	}

	envelope := events.Envelope{
		ID:        uuid.NewString(),
		Type:      events.TypeLLMCallCompleted,
		Source:    "llm-client",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	if err := c.sink.Append(ctx, envelope); err != nil {
		c.logger.Warn("failed to emit completion event",
			"request_id", req.RequestID, "error", err)
	}
}
