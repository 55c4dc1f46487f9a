package engine

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/strutil"
)

// User-Agent strings used across HTTP clients.
const (
	UserAgentBot    = "GoYTDL/1.0"
	UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// CleanHTML strips HTML tags, decodes entities and trims whitespace.
func CleanHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(s, "")))
}

// Truncate returns the first n bytes of s.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// FormatDuration renders d as m:ss or h:mm:ss. Zero means a live stream.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	if total <= 0 {
		return "LIVE"
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatSize renders a byte count the way the quality list shows sizes.
func FormatSize(n int64) string {
	if n <= 0 {
		return "Unknown"
	}
	const mb = 1024 * 1024
	if n < mb {
		return fmt.Sprintf("~%d KB", n/1024+1)
	}
	return fmt.Sprintf("~%.1f MB", float64(n)/mb)
}

// SanitizeFilename replaces path separators and control characters so a title
// can be used in a Content-Disposition header.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '-'
		case r == '"':
			return '\''
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "video"
	}
	return TruncateRunes(name, 150, "")
}
