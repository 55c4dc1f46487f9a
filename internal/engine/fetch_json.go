package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GetJSON GETs apiURL with retry and decodes a JSON body into out.
// Non-200 responses are returned as errors carrying a short body snippet.
func GetJSON(ctx context.Context, apiURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", UserAgentBot)
		req.Header.Set("Accept", "application/json")
		return cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, Truncate(string(body), 200))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPageBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
