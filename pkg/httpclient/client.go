// Package httpclient builds the SSRF-hardened *http.Client the default
// artifact loader uses to fetch graphs and nodes over the network (§4.2
// "fetch"). Every outbound request and redirect hop is validated against
// the caller's config.Config network ACL before it is dialed.
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/vectorflow/vectorflow/pkg/config"
)

// New builds an *http.Client enforcing cfg's network ACL, redirect limit,
// and response size cap.
func New(cfg *config.Config) (*http.Client, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	chain := Chain(
		ssrfProtectionMiddleware(cfg),
		responseSizeLimitMiddleware(cfg.MaxResponseSize),
	)

	client := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: chain(transport),
	}

	maxRedirects := cfg.MaxHTTPRedirects
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: max %d", ErrTooManyRedirects, maxRedirects)
		}
		return validateURL(req.URL.String(), cfg)
	}

	return client, nil
}
