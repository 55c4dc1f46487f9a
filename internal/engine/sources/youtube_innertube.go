package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
)

// YouTube InnerTube /player endpoint, used as a metadata source.
// The ANDROID client answers without cookies or a signature.

const (
	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"
)

// Overridable in tests.
var ytInnertubeURL = "https://www.youtube.com/youtubei/v1/player"

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type innertubePlayerResp struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails *struct {
		VideoID   string `json:"videoId"`
		Title     string `json:"title"`
		Author    string `json:"author"`
		Thumbnail struct {
			Thumbnails []struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
}

// fetchInnertubeMeta reads videoDetails from the /player response.
// Unplayable videos (removed, private) are reported as errors.
func fetchInnertubeMeta(ctx context.Context, videoID string) (engine.VideoMeta, error) {
	body, err := postInnerTubeAndroid(ctx, videoID)
	if err != nil {
		return engine.VideoMeta{}, err
	}

	var resp innertubePlayerResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return engine.VideoMeta{}, fmt.Errorf("innertube decode: %w", err)
	}
	if ps := resp.PlayabilityStatus; ps != nil && ps.Status == "ERROR" {
		return engine.VideoMeta{}, fmt.Errorf("innertube: %s", firstNonEmpty(ps.Reason, "video unavailable"))
	}
	if resp.VideoDetails == nil || resp.VideoDetails.Title == "" {
		return engine.VideoMeta{}, fmt.Errorf("innertube: no video details")
	}

	vd := resp.VideoDetails
	meta := engine.VideoMeta{Title: vd.Title, Author: vd.Author}
	if n := len(vd.Thumbnail.Thumbnails); n > 0 {
		meta.Thumbnail = vd.Thumbnail.Thumbnails[n-1].URL
	}
	return meta, nil
}

// postInnerTubeAndroid POSTs a /player request with ANDROID client headers.
// Uses engine.Cfg.HTTPClient and engine.RetryHTTP for consistent retry/timeout behavior.
func postInnerTubeAndroid(ctx context.Context, videoID string) ([]byte, error) {
	payload, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{Client: innertubeClient{
			ClientName:        "ANDROID",
			ClientVersion:     ytAndroidVersion,
			AndroidSdkVersion: 30,
			Hl:                "en",
			Gl:                "US",
		}},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, engine.Cfg.FetchTimeout)
	defer cancel()

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ytInnertubeURL+"?prettyPrint=false", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ytAndroidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("innertube player: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("innertube HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, 3*1024*1024))
}
