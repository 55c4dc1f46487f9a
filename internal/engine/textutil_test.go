package engine

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "LIVE"},
		{-time.Second, "LIVE"},
		{5 * time.Second, "0:05"},
		{3*time.Minute + 33*time.Second, "3:33"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{time.Hour, "1:00:00"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2:03:04"},
		{212*time.Second + 400*time.Millisecond, "3:32"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "Unknown"},
		{-1, "Unknown"},
		{1, "~1 KB"},
		{2048, "~3 KB"},
		{1024 * 1024, "~1.0 MB"},
		{15*1024*1024 + 512*1024, "~15.5 MB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatSize(tt.in); got != tt.want {
				t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Never Gonna Give You Up", "Never Gonna Give You Up"},
		{"slashes", "AC/DC \\ Live", "AC-DC - Live"},
		{"quotes", `The "Best" Song`, "The 'Best' Song"},
		{"control chars", "line\nbreak\ttab", "linebreaktab"},
		{"empty", "   ", "video"},
		{"unicode kept", "Ночной эфир", "Ночной эфир"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	long := SanitizeFilename(strings.Repeat("я", 400))
	if n := utf8.RuneCountInString(long); n > 150 {
		t.Errorf("long title not truncated: %d runes", n)
	}
}

func TestCleanHTML(t *testing.T) {
	if got := CleanHTML("  <b>Rick</b> Astley "); got != "Rick Astley" {
		t.Errorf("CleanHTML = %q", got)
	}
	if got := CleanHTML("Tom &amp; Jerry &#39;92"); got != "Tom & Jerry '92" {
		t.Errorf("CleanHTML entities = %q", got)
	}
}
