package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/vectorflow/vectorflow/pkg/config"
	"github.com/vectorflow/vectorflow/pkg/httpclient"
)

// NewHTTPFetcher builds the default host fetch primitive: an SSRF-hardened
// GET against cfg's network ACL (§4.2 "require a host fetch primitive").
func NewHTTPFetcher(cfg *config.Config) (FetchFunc, error) {
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
		}
		return io.ReadAll(resp.Body)
	}, nil
}
