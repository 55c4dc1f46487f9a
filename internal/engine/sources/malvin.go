package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
)

// malvinResponse is the envelope of /search/youtube.
type malvinResponse struct {
	Status bool         `json:"status"`
	Result []malvinItem `json:"result"`
}

// malvinItem accepts both the documented field names and the yt-search style
// ones the API has returned at times.
type malvinItem struct {
	Title     string          `json:"title"`
	Link      string          `json:"link"`
	URL       string          `json:"url"`
	ImageURL  string          `json:"imageUrl"`
	Thumbnail string          `json:"thumbnail"`
	Channel   string          `json:"channel"`
	Author    json.RawMessage `json:"author"`
	Duration  json.RawMessage `json:"duration"`
	Timestamp string          `json:"timestamp"`
	Views     json.RawMessage `json:"views"`
	Ago       string          `json:"ago"`
	VideoID   string          `json:"videoId"`
}

// SearchMalvin queries the Malvin search API.
func SearchMalvin(ctx context.Context, query string, limit int) ([]engine.SearchResult, error) {
	engine.IncrMalvinRequests()

	apiURL := strings.TrimRight(engine.Cfg.MalvinAPIURL, "/") + "/search/youtube?q=" + url.QueryEscape(query)
	var resp malvinResponse
	if err := engine.GetJSON(ctx, apiURL, &resp); err != nil {
		return nil, fmt.Errorf("malvin search: %w", err)
	}
	if !resp.Status || len(resp.Result) == 0 {
		return nil, errors.New("malvin search: no results found")
	}
	return parseMalvinItems(resp.Result, limit), nil
}

func parseMalvinItems(items []malvinItem, limit int) []engine.SearchResult {
	results := make([]engine.SearchResult, 0, min(len(items), limit))
	for _, it := range items {
		if len(results) >= limit {
			break
		}
		link := firstNonEmpty(it.Link, it.URL)
		id := firstNonEmpty(it.VideoID, engine.ExtractVideoID(link))
		if id == "" || it.Title == "" {
			continue // channels and playlists have no video ID
		}
		if link == "" {
			link = engine.WatchURL(id)
		}
		results = append(results, engine.SearchResult{
			VideoID:   id,
			Title:     it.Title,
			Link:      link,
			ImageURL:  firstNonEmpty(it.ImageURL, it.Thumbnail, engine.ThumbnailURL(id)),
			Channel:   firstNonEmpty(it.Channel, authorName(it.Author)),
			Duration:  firstNonEmpty(durationText(it.Duration), it.Timestamp),
			Views:     rawText(it.Views),
			Published: it.Ago,
		})
	}
	return results
}

// authorName decodes either "author": "Name" or "author": {"name": "Name"}.
func authorName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Name
	}
	return ""
}

// durationText decodes "duration": "4:13" or "duration": {"timestamp": "4:13", "seconds": 253}.
func durationText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Timestamp string `json:"timestamp"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Timestamp
	}
	return ""
}

// rawText returns a JSON string's value or a number's literal text.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
