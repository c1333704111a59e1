package transform

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"rephrase/pkg/logger"
)

// defaultMaxTokens applies when the request leaves MaxTokens unset; the
// Messages API requires a value.
const defaultMaxTokens = 8192

// AnthropicClient rewrites text through the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	logger logger.Logger
}

// NewAnthropicClient creates a client authenticated with apiKey. Extra
// request options (base URL, retries) are passed through to the SDK.
func NewAnthropicClient(apiKey string, log logger.Logger, opts ...option.RequestOption) *AnthropicClient {
	if log == nil {
		log = logger.NewNopLogger()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		logger: log,
	}
}

// Transform streams the model's text deltas.
func (c *AnthropicClient) Transform(ctx context.Context, req Request) (Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	c.logger.DebugWithFields("sending messages request", map[string]interface{}{
		"model": req.Model,
		"bytes": len(req.Prompt),
	})

	stream := c.client.Messages.NewStreaming(ctx, params)

	return func(yield func(string, error) bool) {
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || text.Text == "" {
				continue
			}
			if !yield(text.Text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("messages stream failed: %w", err))
		}
	}, nil
}
