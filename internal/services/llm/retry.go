package llm

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy controls how provider calls are retried
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// NewRetryPolicy builds a policy with exponential growth capped at one minute
func NewRetryPolicy(maxRetries int, initial time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initial <= 0 {
		initial = 2 * time.Second
	}
	return RetryPolicy{
		MaxRetries:     maxRetries,
		InitialBackoff: initial,
		MaxBackoff:     time.Minute,
		Multiplier:     2,
	}
}

// IsRateLimitError reports whether err looks like a provider quota rejection
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "rate_limit") ||
		strings.Contains(strings.ToLower(msg), "quota")
}

// matches "Please retry in 45.3s" and "retryDelay: 30s"
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay returns the wait suggested in a provider error, or 0
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// Backoff returns the wait before retry number attempt (0-based).
// A positive apiDelay replaces the initial backoff as the base.
func (p RetryPolicy) Backoff(attempt int, apiDelay time.Duration) time.Duration {
	base := p.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay
	}

	backoff := float64(base)
	for i := 0; i < attempt; i++ {
		backoff *= p.Multiplier
	}

	if p.MaxBackoff > 0 && time.Duration(backoff) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(backoff)
}

// do calls fn until it succeeds, retries are exhausted or ctx ends
func (p RetryPolicy) do(ctx context.Context, logger arbor.ILogger, provider ProviderType, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= p.MaxRetries {
			return err
		}

		var apiDelay time.Duration
		if IsRateLimitError(err) {
			apiDelay = ExtractRetryDelay(err)
		}
		backoff := p.Backoff(attempt, apiDelay)

		logger.Warn().
			Str("provider", string(provider)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying model call")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
