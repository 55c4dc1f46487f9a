package ytserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
	"github.com/anatolykoptev/go_ytdl/internal/engine/download"
	"github.com/anatolykoptev/go_ytdl/internal/history"
)

type stubProvider struct {
	name string
	err  error
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Resolve(ctx context.Context, videoID string) (*engine.VideoInfo, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &engine.VideoInfo{
		Title:     "Never Gonna Give You Up",
		Thumbnail: engine.ThumbnailURL(videoID),
		Duration:  "3:33",
		Source:    p.name,
		Qualities: []engine.Quality{{Quality: "720p MP4", URL: "/stream/" + videoID + "?itag=22", Type: "video", Direct: true, Source: p.name}},
	}, nil
}

type stubStreamer struct{}

func (stubStreamer) OpenStream(ctx context.Context, videoID string, itag int) (*download.Stream, error) {
	if itag == 404 {
		return nil, engine.ErrNotFound
	}
	if itag == 502 {
		return nil, errors.New("googlevideo said no")
	}
	return &download.Stream{
		Body:     io.NopCloser(strings.NewReader("fake-media-bytes")),
		Size:     16,
		MimeType: "video/mp4",
		Filename: "AC-DC Live.mp4",
	}, nil
}

func stubSearch(ctx context.Context, query string, limit int) (engine.SearchOutput, error) {
	switch strings.TrimSpace(query) {
	case "":
		return engine.SearchOutput{}, engine.ErrQueryRequired
	case "fail":
		return engine.SearchOutput{}, errors.New("every source is down")
	}
	return engine.SearchOutput{
		Query:  query,
		Source: "malvin",
		Results: []engine.SearchResult{{
			VideoID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", Link: engine.WatchURL("dQw4w9WgXcQ"),
			ImageURL: engine.ThumbnailURL("dQw4w9WgXcQ"), Channel: "Rick Astley", Duration: "3:33",
		}},
	}, nil
}

func newTestServer(t *testing.T, providers []download.Provider, opts Options) (*Server, history.Store) {
	t.Helper()
	store, err := history.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	if opts.Search == nil {
		opts.Search = stubSearch
	}
	return New(download.NewChain(providers, stubStreamer{}), store, opts), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestSearchHandler(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})
	h := srv.Handler()

	rec, body := doJSON(t, h, http.MethodPost, "/search", map[string]any{"query": "rick astley", "limit": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "malvin", body["source"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "dQw4w9WgXcQ", first["videoId"])
	assert.Equal(t, "Rick Astley", first["channel"])
	assert.Contains(t, first, "imageUrl")

	rec, body = doJSON(t, h, http.MethodPost, "/search", map[string]any{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Search query is required", body["error"])

	rec, body = doJSON(t, h, http.MethodPost, "/search", map[string]any{"query": "fail"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Search failed. Please try again later.", body["error"])
}

func TestSearchHandlerForm(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})

	form := url.Values{"query": {"rick astley"}}
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"malvin"`)
}

func TestVideoInfoHandler(t *testing.T) {
	srv, store := newTestServer(t, []download.Provider{
		stubProvider{name: "y2mate-direct", err: errors.New("down")},
		stubProvider{name: "ytdl"},
	}, Options{})
	h := srv.Handler()

	for _, path := range []string{"/download", "/get-video-info"} {
		t.Run(path, func(t *testing.T) {
			rec, body := doJSON(t, h, http.MethodPost, path, map[string]string{"videoUrl": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, true, body["success"])
			data := body["data"].(map[string]any)
			assert.Equal(t, "dQw4w9WgXcQ", data["videoId"])
			assert.Equal(t, "ytdl", data["methodUsed"])
			assert.Len(t, data["qualities"], 1)
			assert.NotEmpty(t, data["alternatives"])
		})
	}

	entries, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2, "each successful resolution is recorded")
	assert.Equal(t, "ytdl", entries[0].Method)

	rec, body := doJSON(t, h, http.MethodPost, "/download", map[string]string{"videoUrl": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Video URL is required", body["error"])

	rec, body = doJSON(t, h, http.MethodPost, "/download", map[string]string{"videoUrl": "https://vimeo.com/1234"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please enter a valid YouTube URL", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVideoInfoAllMethodsFail(t *testing.T) {
	srv, store := newTestServer(t, []download.Provider{stubProvider{name: "ytdl", err: errors.New("blocked")}}, Options{})

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/get-video-info", map[string]string{"videoUrl": "https://youtu.be/9bZkp7q19f0"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Unable to process this video. Please try a different video or check the URL.", body["error"])

	entries, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistoryHandler(t *testing.T) {
	srv, _ := newTestServer(t, []download.Provider{stubProvider{name: "external-api"}}, Options{})
	h := srv.Handler()

	doJSON(t, h, http.MethodPost, "/download", map[string]string{"videoUrl": "https://youtu.be/kJQP7kiw5Fk"})

	rec, body := doJSON(t, h, http.MethodGet, "/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "kJQP7kiw5Fk", entries[0].(map[string]any)["videoId"])

	noHistory := New(download.NewChain(nil, nil), nil, Options{Search: stubSearch})
	rec, body = doJSON(t, noHistory.Handler(), http.MethodGet, "/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["entries"])
}

func TestStreamHandler(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/stream/dQw4w9WgXcQ?itag=22", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "16", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="AC-DC Live.mp4"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "fake-media-bytes", rec.Body.String())

	tests := []struct {
		path string
		code int
	}{
		{"/stream/dQw4w9WgXcQ?itag=abc", http.StatusBadRequest},
		{"/stream/short?itag=22", http.StatusBadRequest},
		{"/stream/dQw4w9WgXcQ?itag=404", http.StatusNotFound},
		{"/stream/dQw4w9WgXcQ?itag=502", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	noStream := New(download.NewChain(nil, nil), nil, Options{Search: stubSearch})
	rec = httptest.NewRecorder()
	noStream.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/dQw4w9WgXcQ", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticAndProbes(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="searchInput"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/script.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/download")

	rec, body := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "resolve_requests ")
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	h := srv.Handler()

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), "Too many requests")
		}
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.7:1000"))
	assert.Equal(t, http.StatusOK, send("203.0.113.7:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7:1002"))
	assert.Equal(t, http.StatusOK, send("198.51.100.2:1000"), "buckets are per client")

	// Probes are never limited.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	h := srv.Handler()

	codes := make([]int, 0, 4)
	for i, fwd := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3", "4.4.4.4"} {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fwd)
		req.RemoteAddr = "203.0.113.50:" + strconv.Itoa(2000+i)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{RateLimitRPS: 0.001, RateLimitBurst: 1, TrustedProxies: []string{"10.0.0.0/8"}})
	h := srv.Handler()

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", xff)
		req.RemoteAddr = "10.0.0.5:443"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.9"))
	// A client-supplied leftmost hop does not change the key.
	assert.Equal(t, http.StatusTooManyRequests, send("6.6.6.6, 203.0.113.9"))
	assert.Equal(t, http.StatusOK, send("198.51.100.4, 10.0.0.7"))
}

func TestClientIP(t *testing.T) {
	trusted := parseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.10", "not-an-ip"})
	require.Len(t, trusted, 2)

	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"no header", "192.0.2.1:54321", "", "192.0.2.1"},
		{"untrusted peer ignores header", "192.0.2.1:54321", "203.0.113.9", "192.0.2.1"},
		{"trusted peer uses header", "10.1.2.3:80", "203.0.113.9", "203.0.113.9"},
		{"rightmost untrusted hop", "10.1.2.3:80", "6.6.6.6, 203.0.113.9, 10.0.0.2", "203.0.113.9"},
		{"single trusted address", "192.0.2.10:80", " 203.0.113.9 ", "203.0.113.9"},
		{"all hops trusted", "10.1.2.3:80", "10.0.0.2", "10.1.2.3"},
		{"no port", "192.0.2.1", "", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientIP(req, trusted))
		})
	}
}

func TestRecoverer(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
