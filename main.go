// go_ytdl is a YouTube search and download-link service.
//
// Serves a browser front end plus JSON API on PORT and exposes the same
// operations as MCP tools (youtube_search, youtube_download_links,
// download_history) on MCP_PORT.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
	"github.com/anatolykoptev/go_ytdl/internal/engine/download"
	"github.com/anatolykoptev/go_ytdl/internal/engine/sources"
	"github.com/anatolykoptev/go_ytdl/internal/history"
	"github.com/anatolykoptev/go_ytdl/internal/ytserver"
)

var (
	version = "dev"
	webPort = env.Str("PORT", "3000")
	mcpPort = env.Str("MCP_PORT", "8892")
)

func main() {
	initEngine()

	store := openHistory()
	if store != nil {
		defer store.Close()
	}

	ytdl := download.NewYtdlProvider(streamHTTPClient(), engine.Cfg.StreamCacheSize, engine.Cfg.StreamCacheTTL, engine.Cfg.PublicBaseURL)
	providers := download.BuildProviders(engine.Cfg.DownloadMethods, sources.FetchVideoMeta, ytdl)
	chain := download.NewChain(providers, ytdl)

	srv := ytserver.New(chain, store, ytserver.Options{
		RateLimitRPS:   env.Float("RATE_LIMIT_RPS", 5),
		RateLimitBurst: env.Int("RATE_LIMIT_BURST", 10),
		TrustedProxies: env.List("TRUSTED_PROXIES", ""),
	})

	slog.Info("starting go_ytdl",
		slog.String("port", webPort),
		slog.String("mcp_port", mcpPort),
		slog.Any("methods", chain.Providers()),
	)

	web := &http.Server{
		Addr:              ":" + webPort,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Minute, // /stream relays whole files
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("web server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_ytdl",
		Version: version,
	}, nil)
	srv.RegisterTools(server)
	slog.Info("tools registered", slog.Int("count", 3))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_ytdl",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 120 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := web.Shutdown(ctx); err != nil {
		slog.Warn("web server shutdown", slog.Any("error", err))
	}
}

func initEngine() {
	c := engine.Config{
		MalvinAPIURL:          env.Str("MALVIN_API_URL", "https://malvin-api.vercel.app"),
		NoembedURL:            env.Str("NOEMBED_URL", "https://noembed.com/embed"),
		YouTubeAPIKey:         env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("YOUTUBE_API_KEY_FALLBACK", ""),
		SearchLimit:           env.Int("SEARCH_LIMIT", 10),
		DownloadMethods:       env.List("DOWNLOAD_METHODS", ""),
		PublicBaseURL:         env.Str("PUBLIC_BASE_URL", ""),
		FetchTimeout:          env.Duration("FETCH_TIMEOUT", 10*time.Second),
		CacheMaxEntries:       env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval:  env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		StreamCacheSize:       env.Int("STREAM_CACHE_SIZE", 256),
		StreamCacheTTL:        env.Duration("STREAM_CACHE_TTL", 5*time.Minute),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(15))

	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 15*time.Minute)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
}

// openHistory prefers PostgreSQL when DATABASE_URL is set and falls back to a
// local SQLite file. History is optional; nil disables it.
func openHistory() history.Store {
	if dsn := env.Str("DATABASE_URL", ""); dsn != "" {
		pg, err := history.OpenPostgres(context.Background(), dsn)
		if err == nil {
			slog.Info("history: postgres ready")
			return pg
		}
		slog.Warn("history: postgres init failed, falling back to sqlite", slog.Any("error", err))
	}

	path := env.Str("HISTORY_DB_PATH", "")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		path = filepath.Join(home, ".go_ytdl", "history.db")
	}
	db, err := history.OpenSQLite(path)
	if err != nil {
		slog.Warn("history disabled", slog.Any("error", err))
		return nil
	}
	slog.Info("history: sqlite ready", slog.String("path", path))
	return db
}

// streamHTTPClient is used by the extractor for both metadata and media
// streams, so it has no overall timeout; stalled connects and headers still fail.
func streamHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 20 * time.Second,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}
