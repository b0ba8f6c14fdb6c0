package httpclient

import (
	"net/http"
	"time"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewClientWithHeaders returns a client that sets the given headers on every
// outgoing request unless the request already carries them.
func NewClientWithHeaders(timeout time.Duration, headers map[string]string) *http.Client {
	client := NewDefaultHTTPClient(timeout)
	client.Transport = &headerTransport{
		base:    http.DefaultTransport,
		headers: headers,
	}
	return client
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if clone.Header.Get(k) == "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}
