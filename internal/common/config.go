package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Jobs        JobsConfig      `toml:"jobs"`
	Producers   ProducersConfig `toml:"producers"`
	LLM         LLMConfig       `toml:"llm"`
	Storage     StorageConfig   `toml:"storage"`
	Templates   TemplatesConfig `toml:"templates"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Auth        AuthConfig      `toml:"auth"`
	Canva       CanvaConfig     `toml:"canva"`
	Proxy       ProxyConfig     `toml:"proxy"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default: "15:04:05"
	FileName   string   `toml:"file_name"`   // log file name inside ./logs (default: "slidegen.log")
}

// JobsConfig controls the background job runner
type JobsConfig struct {
	Concurrency   int    `toml:"concurrency"`    // Number of worker goroutines
	Timeout       string `toml:"timeout"`        // Per-job deadline, e.g. "2m" ("" or "0" = unbounded)
	Retention     string `toml:"retention"`      // Keep finished jobs this long ("" or "0" = forever)
	PruneSchedule string `toml:"prune_schedule"` // Cron expression for the retention sweep
}

// ProducersConfig selects the content producers
type ProducersConfig struct {
	Mode                 string `toml:"mode"`                   // "stub", "mock" or "llm"
	MockDelay            string `toml:"mock_delay"`             // Simulated work time in mock mode
	DefaultOutlineLength int    `toml:"default_outline_length"` // Slides when a request omits length
}

// LLMConfig selects the model used for outlines when producers.mode is "llm"
type LLMConfig struct {
	Provider     string  `toml:"provider"`      // "claude" or "gemini"; a model prefix wins
	Model        string  `toml:"model"`         // Empty uses the provider default
	APIKey       string  `toml:"api_key"`       // Falls back to ANTHROPIC_API_KEY / GEMINI_API_KEY
	BaseURL      string  `toml:"base_url"`      // Override the provider endpoint
	Temperature  float32 `toml:"temperature"`
	MaxTokens    int     `toml:"max_tokens"`
	MaxRetries   int     `toml:"max_retries"`
	RetryBackoff string  `toml:"retry_backoff"` // Base wait between retries, e.g. "2s"
}

type StorageConfig struct {
	ArtifactsDir string       `toml:"artifacts_dir"` // Root directory for produced files
	Badger       BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// TemplatesConfig points at deck template files (*.toml, *.yaml)
type TemplatesConfig struct {
	Dir string `toml:"dir"`
}

// WebSocketConfig contains configuration for the job update stream
type WebSocketConfig struct {
	WriteTimeout   string   `toml:"write_timeout"`   // Per-send deadline, e.g. "5s"
	AllowedOrigins []string `toml:"allowed_origins"` // Empty list allows all origins
}

// AuthConfig gates the API behind a shared key when APIKey is set
type AuthConfig struct {
	APIKey string `toml:"api_key"`
}

// CanvaConfig contains the Canva OAuth client settings
type CanvaConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	AuthorizeURL string   `toml:"authorize_url"`
	TokenURL     string   `toml:"token_url"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
	AccessToken  string   `toml:"access_token"` // Static bearer token; takes precedence over stored tokens
	UserID       string   `toml:"user_id"`      // Stored token used by the proxy when AccessToken is empty
}

// ProxyConfig contains the allow-listed fetch proxy settings
type ProxyConfig struct {
	AllowedHosts []string `toml:"allowed_hosts"`
	Timeout      string   `toml:"timeout"`       // Upstream request timeout
	RateLimit    string   `toml:"rate_limit"`    // Minimum interval between upstream requests ("" or "0" = unlimited)
	MaxBodySize  int64    `toml:"max_body_size"` // Maximum upstream body size in bytes
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8000,
			Host: "127.0.0.1",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
			FileName:   "slidegen.log",
		},
		Jobs: JobsConfig{
			Concurrency:   4,
			Timeout:       "5m",
			Retention:     "0",
			PruneSchedule: "@every 1m",
		},
		Producers: ProducersConfig{
			Mode:                 "stub",
			MockDelay:            "2s",
			DefaultOutlineLength: 5,
		},
		LLM: LLMConfig{
			Provider:     "claude",
			Temperature:  0.7,
			MaxTokens:    4096,
			MaxRetries:   2,
			RetryBackoff: "2s",
		},
		Storage: StorageConfig{
			ArtifactsDir: "./data/artifacts",
			Badger: BadgerConfig{
				Path:           "./data/badger",
				ResetOnStartup: false,
			},
		},
		Templates: TemplatesConfig{
			Dir: "./templates",
		},
		WebSocket: WebSocketConfig{
			WriteTimeout:   "5s",
			AllowedOrigins: []string{},
		},
		Canva: CanvaConfig{
			AuthorizeURL: "https://www.canva.com/oauth2/authorize",
			TokenURL:     "https://api.canva.com/oauth2/token",
			RedirectURI:  "http://127.0.0.1:8000/api/canva/oauth/callback",
			Scopes:       []string{"public"},
			UserID:       "default",
		},
		Proxy: ProxyConfig{
			AllowedHosts: []string{"content-management-public-content.canva.com"},
			Timeout:      "10s",
			RateLimit:    "100ms",
			MaxBodySize:  20 * 1024 * 1024, // 20 MB
		},
	}
}

// LoadFromFile loads configuration from a single file
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration with priority: defaults -> files (in order) -> env.
// Later files override values set by earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies SLIDEGEN_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SLIDEGEN_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("SLIDEGEN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SLIDEGEN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging
	if level := os.Getenv("SLIDEGEN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SLIDEGEN_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Jobs
	if concurrency := os.Getenv("SLIDEGEN_JOBS_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Jobs.Concurrency = c
		}
	}
	if timeout := os.Getenv("SLIDEGEN_JOBS_TIMEOUT"); timeout != "" {
		config.Jobs.Timeout = timeout
	}
	if retention := os.Getenv("SLIDEGEN_JOBS_RETENTION"); retention != "" {
		config.Jobs.Retention = retention
	}
	if schedule := os.Getenv("SLIDEGEN_JOBS_PRUNE_SCHEDULE"); schedule != "" {
		config.Jobs.PruneSchedule = schedule
	}

	// Producers
	if mode := os.Getenv("SLIDEGEN_PRODUCERS_MODE"); mode != "" {
		config.Producers.Mode = mode
	}
	if delay := os.Getenv("SLIDEGEN_PRODUCERS_MOCK_DELAY"); delay != "" {
		config.Producers.MockDelay = delay
	}

	// LLM
	if provider := os.Getenv("SLIDEGEN_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if model := os.Getenv("SLIDEGEN_LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if apiKey := os.Getenv("SLIDEGEN_LLM_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}

	// Storage
	if dir := os.Getenv("SLIDEGEN_STORAGE_PATH"); dir != "" {
		config.Storage.ArtifactsDir = dir
	}
	if badgerPath := os.Getenv("SLIDEGEN_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("SLIDEGEN_BADGER_RESET_ON_STARTUP"); reset != "" {
		if b, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = b
		}
	}

	// Templates
	if dir := os.Getenv("SLIDEGEN_TEMPLATES_DIR"); dir != "" {
		config.Templates.Dir = dir
	}

	// WebSocket
	if writeTimeout := os.Getenv("SLIDEGEN_WEBSOCKET_WRITE_TIMEOUT"); writeTimeout != "" {
		config.WebSocket.WriteTimeout = writeTimeout
	}
	if origins := os.Getenv("SLIDEGEN_WEBSOCKET_ALLOWED_ORIGINS"); origins != "" {
		config.WebSocket.AllowedOrigins = splitList(origins)
	}

	// Auth
	if apiKey := os.Getenv("SLIDEGEN_API_KEY"); apiKey != "" {
		config.Auth.APIKey = apiKey
	}

	// Canva
	if clientID := os.Getenv("SLIDEGEN_CANVA_CLIENT_ID"); clientID != "" {
		config.Canva.ClientID = clientID
	}
	if clientSecret := os.Getenv("SLIDEGEN_CANVA_CLIENT_SECRET"); clientSecret != "" {
		config.Canva.ClientSecret = clientSecret
	}
	if tokenURL := os.Getenv("SLIDEGEN_CANVA_TOKEN_URL"); tokenURL != "" {
		config.Canva.TokenURL = tokenURL
	}
	if redirectURI := os.Getenv("SLIDEGEN_CANVA_REDIRECT_URI"); redirectURI != "" {
		config.Canva.RedirectURI = redirectURI
	}
	if accessToken := os.Getenv("SLIDEGEN_CANVA_ACCESS_TOKEN"); accessToken != "" {
		config.Canva.AccessToken = accessToken
	}
	if userID := os.Getenv("SLIDEGEN_CANVA_USER_ID"); userID != "" {
		config.Canva.UserID = userID
	}

	// Proxy
	if hosts := os.Getenv("SLIDEGEN_PROXY_ALLOWED_HOSTS"); hosts != "" {
		config.Proxy.AllowedHosts = splitList(hosts)
	}
	if timeout := os.Getenv("SLIDEGEN_PROXY_TIMEOUT"); timeout != "" {
		config.Proxy.Timeout = timeout
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	if c.Jobs.Concurrency < 1 {
		return fmt.Errorf("jobs.concurrency must be at least 1, got %d", c.Jobs.Concurrency)
	}

	durations := map[string]string{
		"jobs.timeout":            c.Jobs.Timeout,
		"jobs.retention":          c.Jobs.Retention,
		"producers.mock_delay":    c.Producers.MockDelay,
		"llm.retry_backoff":       c.LLM.RetryBackoff,
		"websocket.write_timeout": c.WebSocket.WriteTimeout,
		"proxy.timeout":           c.Proxy.Timeout,
		"proxy.rate_limit":        c.Proxy.RateLimit,
	}
	for key, value := range durations {
		if _, err := ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if d, _ := ParseDuration(c.WebSocket.WriteTimeout); d <= 0 {
		return fmt.Errorf("websocket.write_timeout must be positive, got %q", c.WebSocket.WriteTimeout)
	}

	switch c.Producers.Mode {
	case "stub", "mock":
	case "llm":
		switch c.LLM.Provider {
		case "claude", "gemini":
		default:
			return fmt.Errorf("invalid llm.provider %q: expected \"claude\" or \"gemini\"", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("invalid producers.mode %q: expected \"stub\", \"mock\" or \"llm\"", c.Producers.Mode)
	}

	if c.Jobs.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.Jobs.PruneSchedule); err != nil {
			return fmt.Errorf("invalid jobs.prune_schedule: %w", err)
		}
	}

	return nil
}

// ParseDuration parses a config duration. Empty and "0" mean zero (disabled).
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}

// MustDuration returns the parsed duration or zero. Values are checked by Validate at load time.
func MustDuration(value string) time.Duration {
	d, _ := ParseDuration(value)
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func splitList(s string) []string {
	items := []string{}
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// DeepCloneConfig creates a deep copy of the Config struct
// so it can be handed out without exposing the live configuration
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	clone.Logging.Output = cloneStrings(c.Logging.Output)
	clone.WebSocket.AllowedOrigins = cloneStrings(c.WebSocket.AllowedOrigins)
	clone.Canva.Scopes = cloneStrings(c.Canva.Scopes)
	clone.Proxy.AllowedHosts = cloneStrings(c.Proxy.AllowedHosts)

	return &clone
}
