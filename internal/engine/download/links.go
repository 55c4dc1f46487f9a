package download

import (
	"context"
	"fmt"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
)

// linkProvider generates links to third-party download sites. It needs only
// the video title, so it succeeds whenever metadata lookup does.
type linkProvider struct {
	name   string
	source string
	meta   MetaFunc
	links  func(videoID string) []engine.Quality
}

func (p *linkProvider) Name() string { return p.name }

func (p *linkProvider) Resolve(ctx context.Context, videoID string) (*engine.VideoInfo, error) {
	if !engine.IsValidVideoID(videoID) {
		return nil, engine.ErrInvalidURL
	}
	meta, err := p.meta(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}

	qualities := p.links(videoID)
	for i := range qualities {
		qualities[i].Source = p.source
	}
	return &engine.VideoInfo{
		VideoID:   videoID,
		Title:     meta.Title,
		Author:    meta.Author,
		Thumbnail: engine.ThumbnailURL(videoID),
		Duration:  "N/A",
		Qualities: qualities,
		Source:    p.source,
	}, nil
}

func y2mateURL(id string) string { return "https://y2mate.vet/youtube/" + id }

// NewY2MateDirect points at the y2mate.vet page for the video.
func NewY2MateDirect(meta MetaFunc) Provider {
	return &linkProvider{
		name:   "y2mate-direct",
		source: "y2mate.vet",
		meta:   meta,
		links: func(id string) []engine.Quality {
			return []engine.Quality{{
				Quality:     "y2mate.vet Official",
				Size:        "Multiple Qualities Available",
				URL:         y2mateURL(id),
				Type:        "both",
				Description: "Click to visit y2mate.vet for download",
			}}
		},
	}
}

// NewExternalAPI lists the usual quality ladder, each served by the y2mate page.
func NewExternalAPI(meta MetaFunc) Provider {
	return &linkProvider{
		name:   "external-api",
		source: "external-api",
		meta:   meta,
		links: func(id string) []engine.Quality {
			u := y2mateURL(id)
			return []engine.Quality{
				{Quality: "360p MP4", Size: "~15-25MB", URL: u, Type: "video"},
				{Quality: "720p MP4", Size: "~30-50MB", URL: u, Type: "video"},
				{Quality: "1080p MP4", Size: "~70-100MB", URL: u, Type: "video"},
				{Quality: "MP3 Audio", Size: "~3-5MB", URL: u, Type: "audio"},
			}
		},
	}
}

// alternativeService is a third-party converter site.
type alternativeService struct {
	Name    string
	Blurb   string
	URLFunc func(id string) string
}

var alternativeServices = []alternativeService{
	{"y2mate.vet", "HD Videos & MP3", y2mateURL},
	{"Y2Mate.guru", "Multiple Formats", func(id string) string { return "https://www.y2mate.guru/youtube/" + id }},
	{"YTBParser", "Fast Download", func(id string) string { return "https://ytbparser.vercel.app/api/download?id=" + id }},
	{"OnlineVideoConverter", "All Qualities", func(id string) string { return "https://onlinevideoconverter.pro/youtube-converter?v=" + id }},
}

// NewMultipleServices offers one link per alternative converter site.
func NewMultipleServices(meta MetaFunc) Provider {
	return &linkProvider{
		name:   "multiple-services",
		source: "multiple-services",
		meta:   meta,
		links: func(id string) []engine.Quality {
			out := make([]engine.Quality, 0, len(alternativeServices))
			for _, s := range alternativeServices {
				out = append(out, engine.Quality{
					Quality:     s.Name,
					Size:        s.Blurb,
					URL:         s.URLFunc(id),
					Type:        "both",
					Description: fmt.Sprintf("Visit %s for download", s.Name),
				})
			}
			return out
		},
	}
}

// AlternativeLinks returns the converter links the front end opens from its
// "Other Services" button.
func AlternativeLinks(videoID string) []string {
	return []string{
		y2mateURL(videoID),
		"https://www.y2mate.guru/youtube/" + videoID,
		"https://ytbtomp3.com/download?v=" + videoID,
	}
}
