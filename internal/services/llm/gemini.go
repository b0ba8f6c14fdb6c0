package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

func (c *Client) geminiClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gemini != nil {
		return c.gemini, nil
	}

	key, err := c.apiKey(ProviderGemini)
	if err != nil {
		return nil, err
	}

	cc := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if c.config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.config.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.gemini = client
	return client, nil
}

func (c *Client) generateGemini(ctx context.Context, req *Request, model string) (*Response, error) {
	client, err := c.geminiClient(ctx)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature(req)),
		MaxOutputTokens: int32(c.maxTokens(req)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	var resp *genai.GenerateContentResponse
	err = c.retry.do(ctx, c.logger, ProviderGemini, func() error {
		var callErr error
		resp, callErr = client.Models.GenerateContent(ctx, model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty text in gemini response")
	}

	return &Response{Text: text, Provider: ProviderGemini, Model: model}, nil
}
