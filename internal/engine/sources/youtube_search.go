package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
)

// YouTube search via Data API v3 (with key fallback) and ytInitialData scraping.

const (
	ytInitialDataMarker = "var ytInitialData = "
	ytSearchFilter      = "EgIQAQ%3D%3D" // videos-only filter param
)

// Overridable in tests.
var (
	ytDataAPIBase = "https://www.googleapis.com/youtube/v3"
	ytResultsURL  = "https://www.youtube.com/results"
)

// --- YouTube Data API v3 types ---

type ytDataSearchResp struct {
	Items []ytDataItem `json:"items"`
}

type ytDataItem struct {
	ID      ytDataItemID      `json:"id"`
	Snippet ytDataItemSnippet `json:"snippet"`
}

type ytDataItemID struct {
	VideoID string `json:"videoId"`
}

type ytDataItemSnippet struct {
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	PublishedAt  string `json:"publishedAt"`
	Thumbnails   map[string]struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type ytDataVideosResp struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"` // ISO 8601, e.g. PT4M13S
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// --- ytInitialData scraping types ---

type ytText struct {
	SimpleText string `json:"simpleText"`
	Runs       []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (t ytText) String() string {
	if t.SimpleText != "" {
		return t.SimpleText
	}
	var sb strings.Builder
	for _, r := range t.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

type ytVideoRenderer struct {
	VideoID   string `json:"videoId"`
	Title     ytText `json:"title"`
	OwnerText ytText `json:"ownerText"`
	Thumbnail struct {
		Thumbnails []struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"thumbnail"`
	LengthText        ytText `json:"lengthText"`
	ViewCountText     ytText `json:"viewCountText"`
	PublishedTimeText ytText `json:"publishedTimeText"`
}

// searchYouTubeDataAPI searches via YouTube Data API v3.
// Automatically falls back to the secondary key on quota errors (403).
func searchYouTubeDataAPI(ctx context.Context, query string, limit int) ([]engine.SearchResult, error) {
	keys := []string{engine.Cfg.YouTubeAPIKey}
	if engine.Cfg.YouTubeAPIKeyFallback != "" {
		keys = append(keys, engine.Cfg.YouTubeAPIKeyFallback)
	}
	var lastErr error
	for _, key := range keys {
		videos, err := doYouTubeDataSearch(ctx, query, limit, key)
		if err == nil {
			return videos, nil
		}
		lastErr = err
		slog.Debug("youtube data API key failed, trying fallback", slog.Any("err", err))
	}
	return nil, lastErr
}

func doYouTubeDataSearch(ctx context.Context, query string, limit int, apiKey string) ([]engine.SearchResult, error) {
	engine.IncrYouTubeAPIRequests()

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("key", apiKey)

	var result ytDataSearchResp
	if err := engine.GetJSON(ctx, ytDataAPIBase+"/search?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("youtube data API: %w", err)
	}

	videos := make([]engine.SearchResult, 0, len(result.Items))
	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		thumb := engine.ThumbnailURL(item.ID.VideoID)
		for _, size := range []string{"high", "medium", "default"} {
			if t, ok := item.Snippet.Thumbnails[size]; ok && t.URL != "" {
				thumb = t.URL
				break
			}
		}
		videos = append(videos, engine.SearchResult{
			VideoID:   item.ID.VideoID,
			Title:     engine.CleanHTML(item.Snippet.Title),
			Link:      engine.WatchURL(item.ID.VideoID),
			ImageURL:  thumb,
			Channel:   engine.CleanHTML(item.Snippet.ChannelTitle),
			Duration:  "N/A",
			Published: item.Snippet.PublishedAt,
		})
		ids = append(ids, item.ID.VideoID)
	}

	if len(ids) > 0 {
		if err := fillDataAPIDetails(ctx, videos, ids, apiKey); err != nil {
			slog.Debug("youtube data API: details lookup failed", slog.Any("error", err))
		}
	}
	return videos, nil
}

// fillDataAPIDetails adds durations and view counts from /videos, which /search does not return.
func fillDataAPIDetails(ctx context.Context, videos []engine.SearchResult, ids []string, apiKey string) error {
	params := url.Values{}
	params.Set("part", "contentDetails,statistics")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", apiKey)

	var details ytDataVideosResp
	if err := engine.GetJSON(ctx, ytDataAPIBase+"/videos?"+params.Encode(), &details); err != nil {
		return err
	}
	byID := make(map[string]int, len(videos))
	for i, v := range videos {
		byID[v.VideoID] = i
	}
	for _, d := range details.Items {
		i, ok := byID[d.ID]
		if !ok {
			continue
		}
		if dur, ok := parseISODuration(d.ContentDetails.Duration); ok {
			videos[i].Duration = engine.FormatDuration(dur)
		}
		videos[i].Views = d.Statistics.ViewCount
	}
	return nil
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISODuration parses the subset of ISO 8601 durations the Data API emits.
func parseISODuration(s string) (time.Duration, bool) {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil || s == "P" {
		return 0, false
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, u := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, false
		}
		d += time.Duration(n) * u
	}
	return d, true
}

// searchYouTubeInitialData scrapes YouTube search results by parsing ytInitialData.
func searchYouTubeInitialData(ctx context.Context, query string, limit int) ([]engine.SearchResult, error) {
	engine.IncrInitialDataScrapes()

	searchURL := ytResultsURL + "?search_query=" + url.QueryEscape(query) + "&sp=" + ytSearchFilter
	body, err := engine.FetchPage(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("youtube search page: %w", err)
	}

	idx := strings.Index(string(body), ytInitialDataMarker)
	if idx < 0 {
		return nil, fmt.Errorf("ytInitialData not found in YouTube search response")
	}
	jsonData := extractJSON(body[idx+len(ytInitialDataMarker):])
	if jsonData == nil {
		return nil, fmt.Errorf("failed to extract ytInitialData JSON")
	}
	return extractVideosFromInitialData(jsonData, limit), nil
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// extractVideosFromInitialData walks ytInitialData JSON for videoRenderer
// entries in document order, which is the order the results page shows them.
func extractVideosFromInitialData(data []byte, limit int) []engine.SearchResult {
	var results []engine.SearchResult
	var walk func(v json.RawMessage)
	walk = func(v json.RawMessage) {
		if len(results) >= limit {
			return
		}
		if fields, ok := objectFields(v); ok {
			for _, f := range fields {
				if f.key != "videoRenderer" {
					continue
				}
				var vr ytVideoRenderer
				if err := json.Unmarshal(f.val, &vr); err == nil && vr.VideoID != "" {
					results = append(results, rendererToResult(vr))
					return
				}
			}
			for _, f := range fields {
				if len(results) >= limit {
					return
				}
				walk(f.val)
			}
			return
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(v, &arr); err == nil {
			for _, item := range arr {
				if len(results) >= limit {
					return
				}
				walk(item)
			}
		}
	}
	walk(data)
	return results
}

type jsonField struct {
	key string
	val json.RawMessage
}

// objectFields returns the members of a JSON object in document order.
// ok is false when v is not an object.
func objectFields(v json.RawMessage) (fields []jsonField, ok bool) {
	dec := json.NewDecoder(bytes.NewReader(v))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, _ := tok.(string)
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, false
		}
		fields = append(fields, jsonField{key: key, val: val})
	}
	return fields, true
}

func rendererToResult(vr ytVideoRenderer) engine.SearchResult {
	thumb := engine.ThumbnailURL(vr.VideoID)
	if n := len(vr.Thumbnail.Thumbnails); n > 0 && vr.Thumbnail.Thumbnails[n-1].URL != "" {
		thumb = vr.Thumbnail.Thumbnails[n-1].URL
	}
	duration := vr.LengthText.String()
	if duration == "" {
		duration = "LIVE"
	}
	return engine.SearchResult{
		VideoID:   vr.VideoID,
		Title:     vr.Title.String(),
		Link:      engine.WatchURL(vr.VideoID),
		ImageURL:  thumb,
		Channel:   vr.OwnerText.String(),
		Duration:  duration,
		Views:     vr.ViewCountText.String(),
		Published: vr.PublishedTimeText.String(),
	}
}
