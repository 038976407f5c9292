package genai

import (
	"context"
	"errors"
	"fmt"
)

// Transport issues a single text-generation request.
//
// Implementations classify failures: ErrRateLimited for retryable throttling,
// ErrMalformedResponse for a successful response of the wrong shape, and
// *RequestError for everything else.
type Transport interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrRateLimited marks a retryable rate-limit response (HTTP 429).
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformedResponse marks a response body without generated text.
	ErrMalformedResponse = errors.New("malformed response")
)

// RequestError is a non-retryable request failure: a non-2xx status other
// than 429, or a transport-level error when StatusCode is zero.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
