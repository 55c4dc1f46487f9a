// Package download resolves a YouTube URL into download options by walking an
// ordered chain of providers: official-site redirects, an extraction library
// and third-party link generators. The first provider that succeeds wins.
package download

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
)

// Provider turns a video ID into a set of download options.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, videoID string) (*engine.VideoInfo, error)
}

// Stream is an open media stream ready to be relayed to a client.
type Stream struct {
	Body     io.ReadCloser
	Size     int64 // -1 when unknown
	MimeType string
	Filename string
}

// Streamer opens media streams for direct (proxied) download options.
type Streamer interface {
	OpenStream(ctx context.Context, videoID string, itag int) (*Stream, error)
}

// MetaFunc looks up title/author/thumbnail for a video.
type MetaFunc func(ctx context.Context, videoID string) (engine.VideoMeta, error)

// BuildProviders maps configured method names to providers, preserving order.
// Unknown and duplicate names are skipped with a warning. When nothing usable
// remains (including an empty list) engine.DefaultDownloadMethods is used.
func BuildProviders(names []string, meta MetaFunc, ytdl *YtdlProvider) []Provider {
	available := map[string]Provider{
		"y2mate-direct":     NewY2MateDirect(meta),
		"external-api":      NewExternalAPI(meta),
		"multiple-services": NewMultipleServices(meta),
	}
	if ytdl != nil {
		available[ytdl.Name()] = ytdl
	}

	out := pickProviders(names, available)
	if len(out) == 0 {
		if len(names) > 0 {
			slog.Warn("download: no usable methods configured, using defaults",
				slog.Any("methods", names), slog.Any("defaults", engine.DefaultDownloadMethods))
		}
		out = pickProviders(engine.DefaultDownloadMethods, available)
	}
	return out
}

func pickProviders(names []string, available map[string]Provider) []Provider {
	seen := make(map[string]bool, len(names))
	var out []Provider
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		p, ok := available[name]
		if !ok {
			slog.Warn("download: unknown method, skipping", slog.String("method", raw))
			continue
		}
		seen[name] = true
		out = append(out, p)
	}
	return out
}
