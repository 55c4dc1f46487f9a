package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
	"github.com/raitonoberu/ytsearch"
)

// SearchYTSearchLib searches through the ytsearch library (InnerTube search endpoint).
// The library has no context support, so the call runs in a goroutine and is
// abandoned when ctx is done.
func SearchYTSearchLib(ctx context.Context, query string, limit int) ([]engine.SearchResult, error) {
	engine.IncrYTSearchRequests()

	type outcome struct {
		results []engine.SearchResult
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := ytsearch.VideoSearch(query).Next()
		if err != nil {
			ch <- outcome{err: fmt.Errorf("ytsearch: %w", err)}
			return
		}
		out := make([]engine.SearchResult, 0, limit)
		for _, v := range res.Videos {
			if len(out) >= limit {
				break
			}
			if v.ID == "" {
				continue
			}
			thumb := engine.ThumbnailURL(v.ID)
			if len(v.Thumbnails) > 0 && v.Thumbnails[0].URL != "" {
				thumb = v.Thumbnails[0].URL
			}
			out = append(out, engine.SearchResult{
				VideoID:  v.ID,
				Title:    v.Title,
				Link:     engine.WatchURL(v.ID),
				ImageURL: thumb,
				Channel:  v.Channel.Title,
				Duration: engine.FormatDuration(time.Duration(v.Duration) * time.Second),
			})
		}
		ch <- outcome{results: out}
	}()

	ctx, cancel := context.WithTimeout(ctx, engine.Cfg.FetchTimeout)
	defer cancel()
	select {
	case o := <-ch:
		return o.results, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("ytsearch: %w", ctx.Err())
	}
}
