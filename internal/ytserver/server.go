// Package ytserver exposes search and download resolution over two surfaces:
// a JSON/HTML API for the browser front end and MCP tools for agents.
package ytserver

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
	"github.com/anatolykoptev/go_ytdl/internal/engine/download"
	"github.com/anatolykoptev/go_ytdl/internal/engine/sources"
	"github.com/anatolykoptev/go_ytdl/internal/history"
)

// SearchFunc runs a video search.
type SearchFunc func(ctx context.Context, query string, limit int) (engine.SearchOutput, error)

// Options tunes a Server. Zero values are valid.
type Options struct {
	RateLimitRPS   float64 // per-client requests per second; <= 0 disables limiting
	RateLimitBurst int
	// TrustedProxies lists addresses or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
	Search         SearchFunc // defaults to sources.Search
}

// Server holds the dependencies shared by the HTTP handlers and MCP tools.
type Server struct {
	chain   *download.Chain
	history history.Store // nil = history disabled
	search  SearchFunc
	limiter *clientLimiter // nil = no rate limiting

	trustedProxies []netip.Prefix
}

// New creates a Server. store may be nil.
func New(chain *download.Chain, store history.Store, opts Options) *Server {
	s := &Server{
		chain:   chain,
		history: store,
		search:  opts.Search,
	}
	if s.search == nil {
		s.search = sources.Search
	}
	s.trustedProxies = parseTrustedProxies(opts.TrustedProxies)
	if opts.RateLimitRPS > 0 {
		s.limiter = newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	}
	return s
}

// resolve walks the download chain and records successes in history.
func (s *Server) resolve(ctx context.Context, rawURL string) (*engine.VideoInfo, error) {
	info, err := s.chain.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := s.history.Record(rctx, history.FromVideoInfo(info)); err != nil {
			slog.Warn("history: record failed", slog.String("id", info.VideoID), slog.Any("error", err))
		}
	}
	return info, nil
}

func (s *Server) recent(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return []history.Entry{}, nil
	}
	return s.history.Recent(ctx, limit)
}
