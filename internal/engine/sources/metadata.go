package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_ytdl/internal/engine"
)

// Overridable in tests.
var (
	ytOEmbedURL  = "https://www.youtube.com/oembed"
	ytWatchBase  = "https://www.youtube.com/watch"
	metaFetchers = []struct {
		name  string
		fetch func(ctx context.Context, videoID string) (engine.VideoMeta, error)
	}{
		{"noembed", fetchNoembed},
		{"oembed", fetchYouTubeOEmbed},
		{"innertube", fetchInnertubeMeta},
		{"watch-page", FetchWatchPageMeta},
	}
)

// oembedResponse covers both noembed.com and YouTube's own oEmbed endpoint.
// noembed answers 200 with an "error" field for unknown or private videos.
type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
	Error        string `json:"error"`
}

// FetchVideoMeta resolves title, author and thumbnail for a video ID.
// Sources are tried in metaFetchers order; the watch page is the last resort.
func FetchVideoMeta(ctx context.Context, videoID string) (engine.VideoMeta, error) {
	if !engine.IsValidVideoID(videoID) {
		return engine.VideoMeta{}, engine.ErrInvalidURL
	}
	engine.IncrMetaRequests()

	cacheKey := engine.CacheKey("meta", videoID)
	if meta, ok := engine.CacheLoadJSON[engine.VideoMeta](ctx, cacheKey); ok {
		return meta, nil
	}

	var errs []error
	for _, f := range metaFetchers {
		meta, err := f.fetch(ctx, videoID)
		if err == nil && meta.Title == "" {
			err = errors.New("empty title")
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			slog.Debug("meta: fetcher failed", slog.String("fetcher", f.name), slog.String("id", videoID), slog.Any("error", err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if meta.Thumbnail == "" {
			meta.Thumbnail = engine.ThumbnailURL(videoID)
		}
		engine.CacheStoreJSON(ctx, cacheKey, meta)
		return meta, nil
	}

	engine.IncrMetaErrors()
	return engine.VideoMeta{}, fmt.Errorf("video metadata: %w", errors.Join(errs...))
}

func fetchNoembed(ctx context.Context, videoID string) (engine.VideoMeta, error) {
	return fetchOEmbed(ctx, engine.Cfg.NoembedURL+"?url="+url.QueryEscape(engine.WatchURL(videoID)))
}

func fetchYouTubeOEmbed(ctx context.Context, videoID string) (engine.VideoMeta, error) {
	return fetchOEmbed(ctx, ytOEmbedURL+"?format=json&url="+url.QueryEscape(engine.WatchURL(videoID)))
}

func fetchOEmbed(ctx context.Context, apiURL string) (engine.VideoMeta, error) {
	var resp oembedResponse
	if err := engine.GetJSON(ctx, apiURL, &resp); err != nil {
		return engine.VideoMeta{}, err
	}
	if resp.Error != "" {
		return engine.VideoMeta{}, errors.New(resp.Error)
	}
	return engine.VideoMeta{
		Title:     resp.Title,
		Author:    resp.AuthorName,
		Thumbnail: resp.ThumbnailURL,
	}, nil
}

// FetchWatchPageMeta reads Open Graph and microdata tags from the watch page.
func FetchWatchPageMeta(ctx context.Context, videoID string) (engine.VideoMeta, error) {
	body, err := engine.FetchPage(ctx, ytWatchBase+"?v="+url.QueryEscape(videoID))
	if err != nil {
		return engine.VideoMeta{}, err
	}
	return parseWatchPageMeta(body)
}

func parseWatchPageMeta(body []byte) (engine.VideoMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return engine.VideoMeta{}, fmt.Errorf("goquery parse: %w", err)
	}

	attr := func(selector, name string) string {
		v, _ := doc.Find(selector).First().Attr(name)
		return strings.TrimSpace(v)
	}

	title := firstNonEmpty(
		attr(`meta[property="og:title"]`, "content"),
		attr(`meta[name="title"]`, "content"),
		strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), " - YouTube"),
	)
	if title == "" || title == "YouTube" {
		return engine.VideoMeta{}, errors.New("watch page has no title")
	}
	return engine.VideoMeta{
		Title:     title,
		Author:    attr(`span[itemprop="author"] link[itemprop="name"]`, "content"),
		Thumbnail: attr(`meta[property="og:image"]`, "content"),
	}, nil
}
