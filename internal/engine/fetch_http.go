package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxPageBytes caps HTML page bodies (YouTube watch and results pages run ~1-2 MB).
const maxPageBytes = 4 * 1024 * 1024

// newFetchClient creates an HTTP client with proper settings for page scraping.
func newFetchClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
			DisableCompression:  false,
			TLSHandshakeTimeout: 15 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// pageClient is shared across FetchPage calls; tests may swap it.
var pageClient = newFetchClient()

// FetchPage GETs an HTML page and returns its body.
// Uses the stealth browser client when configured, otherwise plain HTTP with
// exponential backoff on retryable statuses.
func FetchPage(ctx context.Context, pageURL string) (body []byte, err error) {
	metrics.FetchRequests.Add(1)
	defer func() {
		if err != nil {
			metrics.FetchErrors.Add(1)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	if bc := cfg.BrowserClient; bc != nil {
		headers := ChromeHeaders()
		headers["referer"] = "https://www.youtube.com/"
		data, _, status, err := bc.Do(http.MethodGet, pageURL, headers, nil)
		if err == nil && status == http.StatusOK {
			return data, nil
		}
		if err == nil {
			err = fmt.Errorf("status %d", status)
		}
		// The fingerprinted client can be blocked on its own; plain HTTP gets one more try.
		fmtErr := err
		body, err = fetchPlain(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("browser: %v; http: %w", fmtErr, err)
		}
		return body, nil
	}
	return fetchPlain(ctx, pageURL)
}

func fetchPlain(ctx context.Context, pageURL string) ([]byte, error) {
	resp, err := fetchWithRetry(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readResponseBody(resp)
}

// fetchWithRetry performs an HTTP GET with retry logic using exponential backoff.
func fetchWithRetry(ctx context.Context, fetchURL string) (*http.Response, error) {
	operation := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		req.Header.Set("User-Agent", RandomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		// Skip the EU consent interstitial on watch pages.
		req.Header.Set("Cookie", "CONSENT=YES+1")

		resp, err := pageClient.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		if IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3), backoff.WithMaxElapsedTime(20*time.Second))
}

// readResponseBody reads the response body, handling gzip decompression if needed.
func readResponseBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(io.LimitReader(r, maxPageBytes))
}
