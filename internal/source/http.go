package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/hashicorp/go-cleanhttp"
)

func openHTTP(ctx context.Context, url string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := cleanhttp.DefaultPooledClient().Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch dump: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, "", fmt.Errorf("failed to fetch dump: %s returned %s", url, resp.Status)
	}
	return resp.Body, path.Base(req.URL.Path), nil
}
