package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	MalvinAPIURL          string
	NoembedURL            string
	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	SearchLimit           int
	DownloadMethods       []string
	PublicBaseURL         string // prefix for /stream links; empty = relative
	FetchTimeout          time.Duration
	CacheMaxEntries       int
	CacheCleanupInterval  time.Duration
	StreamCacheSize       int
	StreamCacheTTL        time.Duration
	HTTPClient            *http.Client
	BrowserClient         *BrowserClient // nil = watch-page fallback uses HTTPClient
}

// DefaultDownloadMethods is the provider order used when DOWNLOAD_METHODS is empty.
var DefaultDownloadMethods = []string{"y2mate-direct", "ytdl", "external-api", "multiple-services"}

var cfg = Config{
	MalvinAPIURL: "https://malvin-api.vercel.app",
	NoembedURL:   "https://noembed.com/embed",
	SearchLimit:  10,
	FetchTimeout: 10 * time.Second,
	HTTPClient:   &http.Client{Timeout: 15 * time.Second},
}

// Cfg exposes the engine configuration for sub-packages (sources, download).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
// Zero values fall back to the built-in defaults.
func Init(c Config) {
	if c.MalvinAPIURL == "" {
		c.MalvinAPIURL = cfg.MalvinAPIURL
	}
	if c.NoembedURL == "" {
		c.NoembedURL = cfg.NoembedURL
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 10
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if len(c.DownloadMethods) == 0 {
		c.DownloadMethods = DefaultDownloadMethods
	}
	cfg = c
	Cfg = &cfg
}
