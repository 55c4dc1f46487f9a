package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kkdai/youtube/v2"
)

// YtdlProvider extracts real stream formats with kkdai/youtube.
// Its options point at this server's /stream proxy because googlevideo URLs
// are bound to the IP that resolved them.
type YtdlProvider struct {
	client     *youtube.Client
	httpClient *http.Client
	videos     *expirable.LRU[string, *youtube.Video]
	streamBase string

	// streamURL resolves the googlevideo URL of a format.
	streamURL func(ctx context.Context, v *youtube.Video, f *youtube.Format) (string, error)
}

// NewYtdlProvider builds the extractor. streamBase prefixes /stream links ("" = relative).
func NewYtdlProvider(httpClient *http.Client, cacheSize int, ttl time.Duration, streamBase string) *YtdlProvider {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	p := &YtdlProvider{
		client:     &youtube.Client{HTTPClient: httpClient},
		httpClient: httpClient,
		videos:     expirable.NewLRU[string, *youtube.Video](cacheSize, nil, ttl),
		streamBase: strings.TrimRight(streamBase, "/"),
	}
	p.streamURL = p.client.GetStreamURLContext
	return p
}

func (p *YtdlProvider) Name() string { return "ytdl" }

func (p *YtdlProvider) video(ctx context.Context, videoID string) (*youtube.Video, error) {
	if v, ok := p.videos.Get(videoID); ok {
		return v, nil
	}
	v, err := p.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("ytdl: %w", err)
	}
	p.videos.Add(videoID, v)
	return v, nil
}

// Resolve lists progressive (audio+video) formats plus the best audio-only format.
func (p *YtdlProvider) Resolve(ctx context.Context, videoID string) (*engine.VideoInfo, error) {
	if !engine.IsValidVideoID(videoID) {
		return nil, engine.ErrInvalidURL
	}
	v, err := p.video(ctx, videoID)
	if err != nil {
		return nil, err
	}

	var qualities []engine.Quality
	seen := make(map[int]bool)
	for _, f := range progressiveFormats(v.Formats) {
		if seen[f.ItagNo] {
			continue
		}
		seen[f.ItagNo] = true
		qualities = append(qualities, p.quality(videoID, f, "video"))
	}
	if f, ok := bestAudio(v.Formats); ok {
		qualities = append(qualities, p.quality(videoID, f, "audio"))
	}
	if len(qualities) == 0 {
		return nil, errors.New("ytdl: no downloadable formats")
	}

	thumb := engine.ThumbnailURL(videoID)
	if n := len(v.Thumbnails); n > 0 && v.Thumbnails[n-1].URL != "" {
		thumb = v.Thumbnails[n-1].URL
	}
	return &engine.VideoInfo{
		VideoID:   videoID,
		Title:     v.Title,
		Author:    v.Author,
		Thumbnail: thumb,
		Duration:  engine.FormatDuration(v.Duration),
		Qualities: qualities,
		Source:    "ytdl",
	}, nil
}

func (p *YtdlProvider) quality(videoID string, f youtube.Format, kind string) engine.Quality {
	label := f.QualityLabel
	if kind == "audio" {
		label = "Audio"
		if f.Bitrate > 0 {
			label = fmt.Sprintf("Audio %dkbps", f.Bitrate/1000)
		}
	}
	if label == "" {
		label = f.Quality
	}
	ext := extFromMime(f.MimeType)
	return engine.Quality{
		Quality:     strings.TrimSpace(label + " " + strings.ToUpper(ext)),
		Size:        engine.FormatSize(f.ContentLength),
		URL:         fmt.Sprintf("%s/stream/%s?itag=%d", p.streamBase, videoID, f.ItagNo),
		Type:        kind,
		Direct:      true,
		Description: "Served through this server",
		Source:      "ytdl",
		Itag:        f.ItagNo,
	}
}

// OpenStream opens the media stream for itag; itag 0 picks the best progressive format.
// A cached video can carry expired stream URLs, so a rejected request
// refreshes the video and tries once more.
func (p *YtdlProvider) OpenStream(ctx context.Context, videoID string, itag int) (*Stream, error) {
	if !engine.IsValidVideoID(videoID) {
		return nil, engine.ErrInvalidURL
	}
	v, err := p.video(ctx, videoID)
	if err != nil {
		return nil, err
	}

	st, err := p.openFormat(ctx, v, itag)
	if err == nil || errors.Is(err, engine.ErrNotFound) || ctx.Err() != nil {
		return st, err
	}
	slog.Debug("ytdl: stream rejected, refreshing video", slog.String("id", videoID), slog.Any("error", err))

	p.videos.Remove(videoID)
	if v, err = p.video(ctx, videoID); err != nil {
		return nil, err
	}
	return p.openFormat(ctx, v, itag)
}

func (p *YtdlProvider) openFormat(ctx context.Context, v *youtube.Video, itag int) (*Stream, error) {
	format, ok := pickFormat(v.Formats, itag)
	if !ok {
		return nil, fmt.Errorf("itag %d for %s: %w", itag, v.ID, engine.ErrNotFound)
	}

	streamURL, err := p.streamURL(ctx, v, &format)
	if err != nil {
		return nil, fmt.Errorf("ytdl stream url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ytdl stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ytdl stream: HTTP %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size <= 0 {
		size = format.ContentLength
	}
	if size <= 0 {
		size = -1
	}
	mime := strings.TrimSpace(strings.SplitN(format.MimeType, ";", 2)[0])
	if mime == "" {
		mime = "application/octet-stream"
	}
	return &Stream{
		Body:     resp.Body,
		Size:     size,
		MimeType: mime,
		Filename: engine.SanitizeFilename(v.Title) + "." + extFromMime(format.MimeType),
	}, nil
}

func pickFormat(formats youtube.FormatList, itag int) (youtube.Format, bool) {
	if itag <= 0 {
		prog := progressiveFormats(formats)
		if len(prog) == 0 {
			return youtube.Format{}, false
		}
		return prog[0], true
	}
	for _, f := range formats {
		if f.ItagNo == itag {
			return f, true
		}
	}
	return youtube.Format{}, false
}

// progressiveFormats returns video formats that carry audio, highest resolution first.
func progressiveFormats(formats youtube.FormatList) []youtube.Format {
	var out []youtube.Format
	for _, f := range formats {
		if f.AudioChannels > 0 && strings.HasPrefix(f.MimeType, "video/") {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return out[i].Height > out[j].Height
		}
		return out[i].Bitrate > out[j].Bitrate
	})
	return out
}

// bestAudio returns the highest-bitrate audio-only format, preferring mp4 audio.
func bestAudio(formats youtube.FormatList) (youtube.Format, bool) {
	var best youtube.Format
	found := false
	for _, f := range formats {
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		switch {
		case !found:
			best, found = f, true
		case strings.HasPrefix(f.MimeType, "audio/mp4") && !strings.HasPrefix(best.MimeType, "audio/mp4"):
			best = f
		case strings.HasPrefix(f.MimeType, "audio/mp4") == strings.HasPrefix(best.MimeType, "audio/mp4") && f.Bitrate > best.Bitrate:
			best = f
		}
	}
	return best, found
}

// extFromMime maps a format MIME type ("video/mp4; codecs=...") to a file extension.
func extFromMime(mime string) string {
	base := strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	switch base {
	case "video/mp4":
		return "mp4"
	case "audio/mp4":
		return "m4a"
	case "video/webm", "audio/webm":
		return "webm"
	case "video/3gpp":
		return "3gp"
	}
	if i := strings.IndexByte(base, '/'); i >= 0 && i+1 < len(base) {
		return base[i+1:]
	}
	return "bin"
}
