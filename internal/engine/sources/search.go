package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
	"github.com/anatolykoptev/go_ytdl/internal/toolutil"
)

// maxSearchLimit bounds the limit accepted from callers.
const maxSearchLimit = 20

// searcher is one step of the search fallback chain.
type searcher struct {
	name    string
	enabled func() bool
	search  func(ctx context.Context, query string, limit int) ([]engine.SearchResult, error)
}

func always() bool { return true }

// searchChain lists search sources in the order they are tried.
// The Data API only participates when a key is configured.
var searchChain = []searcher{
	{name: "malvin", enabled: always, search: SearchMalvin},
	{name: "youtube-data-api", enabled: func() bool { return engine.Cfg.YouTubeAPIKey != "" }, search: searchYouTubeDataAPI},
	{name: "ytsearch", enabled: always, search: SearchYTSearchLib},
	{name: "initial-data", enabled: always, search: searchYouTubeInitialData},
}

// Search runs the query through the fallback chain and returns the first
// non-empty result set, tagged with the source that produced it.
func Search(ctx context.Context, query string, limit int) (engine.SearchOutput, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return engine.SearchOutput{}, engine.ErrQueryRequired
	}
	limit = normLimit(limit)

	engine.IncrSearchRequests()

	cacheKey := engine.CacheKey("search", query, strconv.Itoa(limit))
	if out, ok := engine.CacheLoadJSON[engine.SearchOutput](ctx, cacheKey); ok {
		return out, nil
	}

	var lastErr error
	for _, s := range searchChain {
		if !s.enabled() {
			continue
		}
		if ctx.Err() != nil {
			return engine.SearchOutput{}, ctx.Err()
		}
		results, err := s.search(ctx, query, limit)
		if err == nil && len(results) == 0 {
			err = engine.ErrNoResults
		}
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", s.name, err)
			slog.Debug("search: source failed, trying next", slog.String("source", s.name), slog.Any("error", err))
			continue
		}
		if len(results) > limit {
			results = results[:limit]
		}
		out := engine.SearchOutput{Query: query, Source: s.name, Results: results}
		slog.Info("search: results", slog.String("source", s.name), slog.Int("count", len(results)))
		engine.CacheStoreJSON(ctx, cacheKey, out)
		return out, nil
	}

	engine.IncrSearchErrors()
	if lastErr == nil || errors.Is(lastErr, engine.ErrNoResults) {
		return engine.SearchOutput{}, fmt.Errorf("%w: %q", engine.ErrNoResults, query)
	}
	return engine.SearchOutput{}, fmt.Errorf("%w: %w", engine.ErrNoResults, lastErr)
}

func normLimit(limit int) int {
	def := engine.Cfg.SearchLimit
	if def <= 0 {
		def = 10
	}
	return toolutil.ClampLimit(limit, min(def, maxSearchLimit), maxSearchLimit)
}
