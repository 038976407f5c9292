// Package genai provides the retrying text-generation client used by the
// companion flows.
//
// The client never returns a raw error: every call resolves to a
// models.RequestOutcome holding either generated text or a display message.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/BTreeMap/Parabola/internal/models"
)

// Default retry configuration.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1000 * time.Millisecond
)

// Provider names accepted by WithProvider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Fallback messages shown in place of generated text.
const (
	FallbackNoResponse = "Sorry, I couldn't get a response. Please try again."
	FallbackError      = "An error occurred while contacting the AI. Please try again later."
)

// ErrAPIKeyNotSet is returned by NewClient when no API key is configured.
var ErrAPIKeyNotSet = errors.New("genai API key not set")

// Opts holds configuration options for the GenAI client.
type Opts struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
	BaseDelay  time.Duration
	HTTPClient *http.Client
	Transport  Transport
	Metrics    *Metrics
	DebugDir   string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithProvider selects the backend ("gemini" or "openai").
func WithProvider(provider string) Option {
	return func(o *Opts) {
		o.Provider = provider
	}
}

// WithAPIKey sets the API key for the selected provider.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// WithMaxRetries sets how many rate-limited requests are retried.
func WithMaxRetries(n int) Option {
	return func(o *Opts) {
		o.MaxRetries = n
	}
}

// WithBaseDelay sets the wait before the first retry; it doubles on every retry.
func WithBaseDelay(d time.Duration) Option {
	return func(o *Opts) {
		o.BaseDelay = d
	}
}

// WithHTTPClient sets the HTTP client used by the Gemini transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// WithTransport bypasses provider selection and uses t directly.
func WithTransport(t Transport) Option {
	return func(o *Opts) {
		o.Transport = t
	}
}

// WithMetrics records attempts and outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(o *Opts) {
		o.Metrics = m
	}
}

// WithDebugDir writes one JSON file per call into dir/debug.
func WithDebugDir(dir string) Option {
	return func(o *Opts) {
		o.DebugDir = dir
	}
}

// Client issues text-generation requests with bounded exponential backoff on
// rate limiting. It holds no per-call state, so concurrent Execute calls are
// independent.
type Client struct {
	transport  Transport
	model      string
	maxRetries int
	baseDelay  time.Duration
	metrics    *Metrics
	debugDir   string
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client from options. Without WithTransport an API key
// is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Provider:   ProviderGemini,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries must not be negative", models.ErrConfiguration)
	}
	if cfg.BaseDelay <= 0 {
		return nil, fmt.Errorf("%w: base delay must be positive", models.ErrConfiguration)
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.APIKey == "" {
			return nil, ErrAPIKeyNotSet
		}
		switch cfg.Provider {
		case ProviderGemini, "":
			if cfg.Model == "" {
				cfg.Model = DefaultGeminiModel
			}
			transport = NewGeminiTransport(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.HTTPClient)
		case ProviderOpenAI:
			if cfg.Model == "" {
				cfg.Model = DefaultOpenAIModel
			}
			transport = NewOpenAITransport(cfg.APIKey, cfg.Model, cfg.BaseURL)
		default:
			return nil, fmt.Errorf("%w: unknown genai provider %q", models.ErrConfiguration, cfg.Provider)
		}
	}

	slog.Debug("genai.NewClient", "provider", cfg.Provider, "model", cfg.Model, "max_retries", cfg.MaxRetries, "base_delay", cfg.BaseDelay)
	return &Client{
		transport:  transport,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		metrics:    cfg.Metrics,
		debugDir:   cfg.DebugDir,
		sleep:      sleepContext,
	}, nil
}

// Execute sends prompt and returns generated text or a fallback message.
//
// The first request is attempt 1. A rate-limited attempt is retried after
// baseDelay * 2^(attempt-1) while retries remain; any other failure returns a
// fallback immediately. Cancelling ctx ends the call with a fallback.
func (c *Client) Execute(ctx context.Context, prompt string) models.RequestOutcome {
	start := time.Now()
	delay := c.baseDelay
	var (
		outcome models.RequestOutcome
		label   string
		attempt int
	)

	for attempt = 1; ; attempt++ {
		c.metrics.attempt()
		text, err := c.transport.Generate(ctx, prompt)
		if err == nil {
			outcome, label = models.SuccessOutcome(text), outcomeSuccess
			break
		}

		if errors.Is(err, ErrRateLimited) {
			if attempt > c.maxRetries {
				slog.Warn("Client.Execute: retries exhausted", "attempts", attempt)
				outcome, label = models.FallbackOutcome(FallbackNoResponse), outcomeExhausted
				break
			}
			slog.Warn("Client.Execute: rate limited, retrying", "attempt", attempt, "delay", delay, "retries_left", c.maxRetries-attempt+1)
			if err := c.sleep(ctx, delay); err != nil {
				slog.Info("Client.Execute: cancelled during backoff", "attempt", attempt, "error", err)
				outcome, label = models.FallbackOutcome(FallbackError), outcomeCancelled
				break
			}
			c.metrics.retry()
			delay *= 2
			continue
		}

		if errors.Is(err, ErrMalformedResponse) {
			slog.Error("Client.Execute: unexpected response structure", "attempt", attempt, "error", err)
			outcome, label = models.FallbackOutcome(FallbackNoResponse), outcomeMalformed
		} else if ctx.Err() != nil {
			slog.Info("Client.Execute: request cancelled", "attempt", attempt, "error", err)
			outcome, label = models.FallbackOutcome(FallbackError), outcomeCancelled
		} else {
			slog.Error("Client.Execute: request failed", "attempt", attempt, "error", err)
			outcome, label = models.FallbackOutcome(FallbackError), outcomeFailed
		}
		break
	}

	c.metrics.outcome(label)
	slog.Debug("Client.Execute: finished", "outcome", label, "attempts", attempt, "elapsed", time.Since(start))
	c.writeDebug(prompt, attempt, label, outcome)
	return outcome
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// writeDebug records the call when a debug directory is configured. Failures
// are logged and otherwise ignored.
func (c *Client) writeDebug(prompt string, attempts int, label string, outcome models.RequestOutcome) {
	if c.debugDir == "" {
		return
	}
	dir := filepath.Join(c.debugDir, "debug")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("Client.writeDebug: failed to create debug directory", "error", err, "dir", dir)
		return
	}
	now := time.Now()
	entry := map[string]interface{}{
		"timestamp": now.Format(time.RFC3339Nano),
		"method":    "Execute",
		"model":     c.model,
		"prompt":    prompt,
		"attempts":  attempts,
		"outcome":   label,
		"response":  outcome.Text,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("Client.writeDebug: failed to marshal debug entry", "error", err)
		return
	}
	name := filepath.Join(dir, fmt.Sprintf("genai_%d.json", now.UnixNano()))
	if err := os.WriteFile(name, data, 0644); err != nil {
		slog.Warn("Client.writeDebug: failed to write debug file", "error", err, "file", name)
	}
}
