package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	SearchRequests     atomic.Int64
	SearchErrors       atomic.Int64
	MalvinRequests     atomic.Int64
	YouTubeAPIRequests atomic.Int64
	YTSearchRequests   atomic.Int64
	InitialDataScrapes atomic.Int64
	MetaRequests       atomic.Int64
	MetaErrors         atomic.Int64
	ResolveRequests    atomic.Int64
	ResolveFailures    atomic.Int64
	ResolveCoalesced   atomic.Int64
	StreamRequests     atomic.Int64
	StreamBytes        atomic.Int64
	RateLimited        atomic.Int64
	FetchRequests      atomic.Int64
	FetchErrors        atomic.Int64
	Retries            atomic.Int64
}

// providerWins counts successful resolutions per provider name.
var providerWins = struct {
	y2mate, ytdl, external, multiple, other atomic.Int64
}{}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"search_requests":          metrics.SearchRequests.Load(),
		"search_errors":            metrics.SearchErrors.Load(),
		"malvin_requests":          metrics.MalvinRequests.Load(),
		"youtube_api_requests":     metrics.YouTubeAPIRequests.Load(),
		"ytsearch_requests":        metrics.YTSearchRequests.Load(),
		"initial_data_scrapes":     metrics.InitialDataScrapes.Load(),
		"meta_requests":            metrics.MetaRequests.Load(),
		"meta_errors":              metrics.MetaErrors.Load(),
		"resolve_requests":         metrics.ResolveRequests.Load(),
		"resolve_failures":         metrics.ResolveFailures.Load(),
		"resolve_coalesced":        metrics.ResolveCoalesced.Load(),
		"provider_y2mate_direct":   providerWins.y2mate.Load(),
		"provider_ytdl":            providerWins.ytdl.Load(),
		"provider_external_api":    providerWins.external.Load(),
		"provider_multiple":        providerWins.multiple.Load(),
		"provider_other":           providerWins.other.Load(),
		"stream_requests":          metrics.StreamRequests.Load(),
		"stream_bytes":             metrics.StreamBytes.Load(),
		"rate_limited":             metrics.RateLimited.Load(),
		"fetch_requests":           metrics.FetchRequests.Load(),
		"fetch_errors":             metrics.FetchErrors.Load(),
		"upstream_retries":         metrics.Retries.Load(),
		"cache_hits":               hits,
		"cache_misses":             misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"search_requests", "search_errors",
		"malvin_requests", "youtube_api_requests", "ytsearch_requests", "initial_data_scrapes",
		"meta_requests", "meta_errors",
		"resolve_requests", "resolve_failures", "resolve_coalesced",
		"provider_y2mate_direct", "provider_ytdl", "provider_external_api", "provider_multiple", "provider_other",
		"stream_requests", "stream_bytes",
		"rate_limited",
		"fetch_requests", "fetch_errors", "upstream_retries",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ sub-package.
func IncrSearchRequests() { metrics.SearchRequests.Add(1) }
func IncrSearchErrors() { metrics.SearchErrors.Add(1) }
func IncrMalvinRequests() { metrics.MalvinRequests.Add(1) }
func IncrYouTubeAPIRequests() { metrics.YouTubeAPIRequests.Add(1) }
func IncrYTSearchRequests() { metrics.YTSearchRequests.Add(1) }
func IncrInitialDataScrapes() { metrics.InitialDataScrapes.Add(1) }
func IncrMetaRequests() { metrics.MetaRequests.Add(1) }
func IncrMetaErrors() { metrics.MetaErrors.Add(1) }

// Incrementors for download/ and the server layer.
func IncrResolveRequests() { metrics.ResolveRequests.Add(1) }
func IncrResolveFailures() { metrics.ResolveFailures.Add(1) }
func IncrResolveCoalesced() { metrics.ResolveCoalesced.Add(1) }
func IncrStreamRequests() { metrics.StreamRequests.Add(1) }
func AddStreamBytes(n int64) { metrics.StreamBytes.Add(n) }
func IncrRateLimited() { metrics.RateLimited.Add(1) }

// IncrProviderWin records which provider produced a successful resolution.
func IncrProviderWin(name string) {
	switch name {
	case "y2mate-direct":
		providerWins.y2mate.Add(1)
	case "ytdl":
		providerWins.ytdl.Add(1)
	case "external-api":
		providerWins.external.Add(1)
	case "multiple-services":
		providerWins.multiple.Add(1)
	default:
		providerWins.other.Add(1)
	}
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
