package httpclient

import (
	"io"
	"net/http"

	"github.com/vectorflow/vectorflow/pkg/config"
)

// Middleware wraps an http.RoundTripper with cross-cutting behavior.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain composes middlewares so the first one listed runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(base http.RoundTripper) http.RoundTripper {
		for i := len(middlewares) - 1; i >= 0; i-- {
			base = middlewares[i](base)
		}
		return base
	}
}

func ssrfProtectionMiddleware(cfg *config.Config) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &ssrfProtectionRoundTripper{next: next, cfg: cfg}
	}
}

type ssrfProtectionRoundTripper struct {
	next http.RoundTripper
	cfg  *config.Config
}

func (t *ssrfProtectionRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := validateURL(req.URL.String(), t.cfg); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

func responseSizeLimitMiddleware(maxBytes int64) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &responseSizeLimitRoundTripper{next: next, maxBytes: maxBytes}
	}
}

type responseSizeLimitRoundTripper struct {
	next     http.RoundTripper
	maxBytes int64
}

func (t *responseSizeLimitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || t.maxBytes <= 0 {
		return resp, err
	}
	if resp.ContentLength > t.maxBytes {
		resp.Body.Close()
		return nil, ErrResponseTooLarge
	}
	resp.Body = &limitedReadCloser{r: io.LimitReader(resp.Body, t.maxBytes+1), c: resp.Body, max: t.maxBytes}
	return resp, nil
}

type limitedReadCloser struct {
	r   io.Reader
	c   io.Closer
	max int64
	n   int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		return n, ErrResponseTooLarge
	}
	return n, err
}

func (l *limitedReadCloser) Close() error { return l.c.Close() }
