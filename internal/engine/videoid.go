package engine

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	videoIDRE    = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?|shorts|live)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)
	bareVideoID  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	videoIDChars = regexp.MustCompile(`^[^"&?/\s]{11}$`)
)

// ExtractVideoID pulls the 11-char video ID from any YouTube URL format.
// A bare ID is returned as is. Returns "" if nothing matches.
func ExtractVideoID(raw string) string {
	raw = strings.TrimSpace(raw)
	if bareVideoID.MatchString(raw) {
		return raw
	}
	if m := videoIDRE.FindStringSubmatch(raw); len(m) >= 2 {
		return m[1]
	}
	return ""
}

// IsValidVideoID reports whether id has the shape of a YouTube video ID.
func IsValidVideoID(id string) bool {
	return videoIDChars.MatchString(id)
}

// WatchURL returns the canonical watch page URL for id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// ThumbnailURL returns the high-quality default thumbnail for id.
func ThumbnailURL(id string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", id)
}
