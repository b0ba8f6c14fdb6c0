package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/common"
	"google.golang.org/genai"
)

// ProviderType names a model vendor
type ProviderType string

const (
	ProviderClaude ProviderType = "claude"
	ProviderGemini ProviderType = "gemini"
)

const (
	DefaultClaudeModel = "claude-haiku-3-5-20241022"
	DefaultGeminiModel = "gemini-3-flash-preview"
)

// ErrMissingAPIKey is returned when no key is configured for the selected provider
var ErrMissingAPIKey = errors.New("llm api key not configured")

// Request is a provider-agnostic single-turn prompt
type Request struct {
	System      string
	Prompt      string
	Model       string // Optional; may carry a "claude/" or "gemini/" prefix
	Temperature float32
	MaxTokens   int
	JSON        bool // Ask for a JSON response where the provider supports it
}

// Response carries the generated text and who produced it
type Response struct {
	Text     string
	Provider ProviderType
	Model    string
}

// Generator produces text for a prompt
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Client routes requests to Claude or Gemini. SDK clients are created on first use.
type Client struct {
	config common.LLMConfig
	retry  RetryPolicy
	logger arbor.ILogger

	mu     sync.Mutex
	claude *anthropic.Client
	gemini *genai.Client
}

var _ Generator = (*Client)(nil)

// NewClient validates cfg and returns a client. No network calls are made here.
func NewClient(cfg common.LLMConfig, logger arbor.ILogger) (*Client, error) {
	backoff, err := common.ParseDuration(cfg.RetryBackoff)
	if err != nil {
		return nil, fmt.Errorf("invalid llm.retry_backoff: %w", err)
	}

	switch ProviderType(cfg.Provider) {
	case ProviderClaude, ProviderGemini:
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	return &Client{
		config: cfg,
		retry:  NewRetryPolicy(cfg.MaxRetries, backoff),
		logger: logger,
	}, nil
}

// DetectProvider picks the provider from a model name, falling back to def
func DetectProvider(model string, def ProviderType) ProviderType {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "claude/"), strings.HasPrefix(m, "anthropic/"), strings.HasPrefix(m, "claude-"):
		return ProviderClaude
	case strings.HasPrefix(m, "gemini/"), strings.HasPrefix(m, "google/"), strings.HasPrefix(m, "gemini-"):
		return ProviderGemini
	}
	return def
}

// NormalizeModel strips a provider prefix from model
func NormalizeModel(model string) string {
	for _, prefix := range []string{"claude/", "anthropic/", "gemini/", "google/"} {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// Generate sends req to the provider implied by its model
func (c *Client) Generate(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	provider := DetectProvider(model, ProviderType(c.config.Provider))
	model = NormalizeModel(model)

	c.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("prompt_len", len(req.Prompt)).
		Msg("Generating content")

	if provider == ProviderGemini {
		return c.generateGemini(ctx, req, model)
	}
	return c.generateClaude(ctx, req, model)
}

func (c *Client) temperature(req *Request) float32 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return c.config.Temperature
}

func (c *Client) maxTokens(req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.config.MaxTokens > 0 {
		return c.config.MaxTokens
	}
	return 4096
}

// apiKey returns the configured key or the vendor's conventional env variable
func (c *Client) apiKey(provider ProviderType) (string, error) {
	if c.config.APIKey != "" {
		return c.config.APIKey, nil
	}

	var envKeys []string
	switch provider {
	case ProviderClaude:
		envKeys = []string{"ANTHROPIC_API_KEY"}
	case ProviderGemini:
		envKeys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, k := range envKeys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrMissingAPIKey, provider)
}
