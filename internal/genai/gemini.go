package genai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Gemini endpoint defaults.
const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.5-flash"
	geminiTextPath       = "candidates.0.content.parts.0.text"
	geminiRequestBody    = `{"contents":[{"role":"user","parts":[{"text":""}]}]}`
	maxResponseBytes     = 4 << 20
	defaultHTTPTimeout   = 60 * time.Second
)

// GeminiTransport calls the generateContent REST endpoint.
type GeminiTransport struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

// NewGeminiTransport creates a transport. Empty baseURL and nil httpClient
// select the defaults.
func NewGeminiTransport(apiKey, model, baseURL string, httpClient *http.Client) *GeminiTransport {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GeminiTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		http:    httpClient,
	}
}

// BuildGeminiRequest returns the request body for a single user prompt.
func BuildGeminiRequest(prompt string) ([]byte, error) {
	return sjson.SetBytes([]byte(geminiRequestBody), "contents.0.parts.0.text", prompt)
}

// ParseGeminiResponse extracts the generated text, or returns
// ErrMalformedResponse when the body does not have the expected shape.
func ParseGeminiResponse(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}
	text := gjson.GetBytes(body, geminiTextPath)
	if !text.Exists() {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedResponse, geminiTextPath)
	}
	if text.Type != gjson.String {
		return "", fmt.Errorf("%w: %s is %s, not a string", ErrMalformedResponse, geminiTextPath, text.Type)
	}
	return text.String(), nil
}

// Generate issues one request.
func (g *GeminiTransport) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := BuildGeminiRequest(prompt)
	if err != nil {
		return "", &RequestError{Err: fmt.Errorf("encode request: %w", err)}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &RequestError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", &RequestError{Err: err}
	}
	defer resp.Body.Close()

	// the status alone decides a rate limit; its body is never needed
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &RequestError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		slog.Debug("GeminiTransport.Generate: non-success status", "status", resp.StatusCode, "body", truncate(string(body), 200))
		return "", &RequestError{StatusCode: resp.StatusCode}
	}
	return ParseGeminiResponse(body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
