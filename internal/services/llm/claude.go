package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

func (c *Client) claudeClient() (*anthropic.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.claude != nil {
		return c.claude, nil
	}

	key, err := c.apiKey(ProviderClaude)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0), // retries are handled by RetryPolicy
	}
	if c.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.config.BaseURL))
	}

	client := anthropic.NewClient(opts...)
	c.claude = &client
	return c.claude, nil
}

func (c *Client) generateClaude(ctx context.Context, req *Request, model string) (*Response, error) {
	client, err := c.claudeClient()
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultClaudeModel
	}

	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nRespond with JSON only."
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(c.maxTokens(req)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if temp := c.temperature(req); temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var msg *anthropic.Message
	err = c.retry.do(ctx, c.logger, ProviderClaude, func() error {
		var callErr error
		msg, callErr = client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("claude request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from claude")
	}

	return &Response{Text: text.String(), Provider: ProviderClaude, Model: model}, nil
}
