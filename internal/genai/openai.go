package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when the OpenAI provider is selected without a model.
const DefaultOpenAIModel = "gpt-4o-mini"

// chatService defines the minimal chat completion interface the transport needs.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAITransport sends prompts as a single user message to the chat
// completions API. The SDK's own retries are disabled so that Client owns the
// retry schedule.
type OpenAITransport struct {
	chat  chatService
	model string
}

// NewOpenAITransport creates a transport backed by the official SDK.
func NewOpenAITransport(apiKey, model, baseURL string) *OpenAITransport {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAITransport{chat: &client.Chat.Completions, model: model}
}

// Generate issues one chat completion request.
func (t *OpenAITransport) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := t.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests {
				return "", fmt.Errorf("%w: status %d", ErrRateLimited, apiErr.StatusCode)
			}
			return "", &RequestError{StatusCode: apiErr.StatusCode}
		}
		return "", &RequestError{Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
