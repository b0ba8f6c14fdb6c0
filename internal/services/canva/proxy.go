package canva

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/common"
	"github.com/ternarybob/slidegen/internal/httpclient"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"golang.org/x/time/rate"
)

const (
	proxyUserAgent = "Mozilla/5.0 (X11; Linux) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100 Safari/537.36"
	proxyReferer   = "https://www.canva.com"
)

var (
	ErrInvalidURL     = errors.New("invalid url")
	ErrHostNotAllowed = errors.New("host not allowed")
	ErrUpstream       = errors.New("upstream request failed")
)

// FetchResult is an upstream response relayed to the caller
type FetchResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Proxy fetches allow-listed URLs on behalf of the front-end
type Proxy struct {
	allowed     map[string]struct{}
	client      *http.Client
	limiter     *rate.Limiter
	maxBody     int64
	accessToken string
	userID      string
	tokens      interfaces.TokenStorage
	logger      arbor.ILogger
}

func NewProxy(proxyCfg common.ProxyConfig, canvaCfg common.CanvaConfig, tokens interfaces.TokenStorage, logger arbor.ILogger) (*Proxy, error) {
	timeout, err := common.ParseDuration(proxyCfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy timeout: %w", err)
	}
	interval, err := common.ParseDuration(proxyCfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy rate_limit: %w", err)
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	allowed := make(map[string]struct{}, len(proxyCfg.AllowedHosts))
	for _, h := range proxyCfg.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = struct{}{}
		}
	}

	return &Proxy{
		allowed: allowed,
		client: httpclient.NewClientWithHeaders(timeout, map[string]string{
			"User-Agent": proxyUserAgent,
			"Referer":    proxyReferer,
		}),
		limiter:     rate.NewLimiter(limit, 1),
		maxBody:     proxyCfg.MaxBodySize,
		accessToken: canvaCfg.AccessToken,
		userID:      canvaCfg.UserID,
		tokens:      tokens,
		logger:      logger,
	}, nil
}

// Fetch GETs rawURL after checking its host against the allow-list.
// Upstream status and content type are passed through unchanged.
func (p *Proxy) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: missing url", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	if _, ok := p.allowed[strings.ToLower(u.Hostname())]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	if token := p.bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Str("host", u.Hostname()).Msg("Proxy upstream request failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, p.maxBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	p.logger.Debug().
		Str("host", u.Hostname()).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Proxy fetch complete")

	return &FetchResult{StatusCode: resp.StatusCode, ContentType: contentType, Body: body}, nil
}

// bearer prefers the configured access token, then the stored token for the configured user
func (p *Proxy) bearer(ctx context.Context) string {
	if p.accessToken != "" {
		return p.accessToken
	}
	if p.tokens == nil {
		return ""
	}
	token, err := p.tokens.GetToken(ctx, stateFor(p.userID))
	if err != nil {
		if !errors.Is(err, interfaces.ErrTokenNotFound) {
			p.logger.Warn().Err(err).Msg("Failed to load stored Canva token")
		}
		return ""
	}
	return token.AccessToken
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > max {
		return nil, fmt.Errorf("response body exceeds %d bytes", max)
	}
	return body, nil
}
