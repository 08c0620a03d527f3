package summarize

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"paperboy/pkg/serrors"
)

// OpenAIOptions configures the generative summarizer.
type OpenAIOptions struct {
	// APIKey authenticates against the OpenAI-compatible endpoint.
	APIKey string
	// Model is the chat model name, e.g. "gpt-4o-mini".
	Model string
	// SystemMessage is the instruction prompt establishing the summarizer
	// persona.
	SystemMessage string
}

// OpenAI summarizes through a chat-completion call.
type OpenAI struct {
	client *openai.Client
	opts   OpenAIOptions
}

// NewOpenAI constructs the generative summarizer.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(opts.APIKey),
		opts:   opts,
	}
}

// Summarize implements Summarizer.
func (o *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.opts.SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", serrors.Wrap(serrors.ErrUnavailable, err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", serrors.With(serrors.ErrUnavailable, "chat completion returned no choices")
	}

	return shorten(strings.TrimSpace(resp.Choices[0].Message.Content), MaxSummaryChars), nil
}

// Ensure OpenAI conforms to Summarizer at compile time.
var _ Summarizer = (*OpenAI)(nil)
