package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
	"golang.org/x/sync/singleflight"
)

// resolveTimeout bounds one walk of the provider chain. The walk is detached
// from the caller's context so that coalesced callers are not cancelled by the
// first one going away.
const resolveTimeout = 60 * time.Second

// Chain tries providers in order until one resolves the video.
type Chain struct {
	providers []Provider
	streamer  Streamer
	group     singleflight.Group
}

// NewChain builds a chain over providers. streamer may be nil, in which case
// OpenStream reports ErrNotFound.
func NewChain(providers []Provider, streamer Streamer) *Chain {
	return &Chain{providers: providers, streamer: streamer}
}

// Providers returns the provider names in the order they are tried.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve extracts the video ID from rawURL and walks the provider chain.
func (c *Chain) Resolve(ctx context.Context, rawURL string) (*engine.VideoInfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, engine.ErrURLRequired
	}
	videoID := engine.ExtractVideoID(rawURL)
	if videoID == "" {
		return nil, engine.ErrInvalidURL
	}

	engine.IncrResolveRequests()

	cacheKey := engine.CacheKey("video", videoID)
	if info, ok := engine.CacheLoadJSON[engine.VideoInfo](ctx, cacheKey); ok {
		return &info, nil
	}

	ch := c.group.DoChan(videoID, func() (any, error) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		info, err := c.walk(wctx, videoID)
		if err != nil {
			return nil, err
		}
		engine.CacheStoreJSON(wctx, cacheKey, *info)
		return info, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			engine.IncrResolveCoalesced()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneInfo(res.Val.(*engine.VideoInfo)), nil
	}
}

func (c *Chain) walk(ctx context.Context, videoID string) (*engine.VideoInfo, error) {
	if len(c.providers) == 0 {
		engine.IncrResolveFailures()
		return nil, fmt.Errorf("%w: no methods configured", engine.ErrAllMethodsFailed)
	}

	var errs []error
	for _, p := range c.providers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		var info *engine.VideoInfo
		err := engine.TrackOperation(ctx, "download:"+p.Name(), func(ctx context.Context) error {
			var err error
			info, err = p.Resolve(ctx, videoID)
			return err
		})
		if err == nil && (info == nil || len(info.Qualities) == 0) {
			err = errors.New("no download options")
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			slog.Debug("download: method failed, trying next", slog.String("method", p.Name()), slog.String("id", videoID), slog.Any("error", err))
			continue
		}

		info.VideoID = videoID
		info.MethodUsed = p.Name()
		info.Alternatives = AlternativeLinks(videoID)
		engine.IncrProviderWin(p.Name())
		slog.Info("download: resolved", slog.String("method", p.Name()), slog.String("id", videoID), slog.Int("options", len(info.Qualities)))
		return info, nil
	}

	engine.IncrResolveFailures()
	return nil, fmt.Errorf("%w: %w", engine.ErrAllMethodsFailed, errors.Join(errs...))
}

// OpenStream relays a direct download option through the configured streamer.
func (c *Chain) OpenStream(ctx context.Context, videoID string, itag int) (*Stream, error) {
	if !engine.IsValidVideoID(videoID) {
		return nil, engine.ErrInvalidURL
	}
	if c.streamer == nil {
		return nil, fmt.Errorf("streaming disabled: %w", engine.ErrNotFound)
	}
	engine.IncrStreamRequests()
	return c.streamer.OpenStream(ctx, videoID, itag)
}

func cloneInfo(in *engine.VideoInfo) *engine.VideoInfo {
	out := *in
	out.Qualities = append([]engine.Quality(nil), in.Qualities...)
	out.Alternatives = append([]string(nil), in.Alternatives...)
	return &out
}
