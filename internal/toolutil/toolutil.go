// Package toolutil provides helpers shared by the HTTP handlers and MCP tools.
package toolutil

import (
	"errors"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
)

// User-facing messages. The browser front end shows these verbatim.
const (
	MsgQueryRequired = "Search query is required"
	MsgSearchFailed  = "Search failed. Please try again later."
	MsgURLRequired   = "Video URL is required"
	MsgInvalidURL    = "Please enter a valid YouTube URL"
	MsgResolveFailed = "Unable to process this video. Please try a different video or check the URL."
	MsgNotAvailable  = "Requested format is not available"
)

// ClampLimit normalises a caller-supplied limit: <= 0 gives def, values above max are capped.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// UserMessage maps an engine error to the message shown to users.
// fallback is returned for upstream failures whose details stay in the logs.
func UserMessage(err error, fallback string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, engine.ErrQueryRequired):
		return MsgQueryRequired
	case errors.Is(err, engine.ErrURLRequired):
		return MsgURLRequired
	case errors.Is(err, engine.ErrInvalidURL):
		return MsgInvalidURL
	case errors.Is(err, engine.ErrNotFound):
		return MsgNotAvailable
	default:
		return fallback
	}
}

// IsClientError reports whether err was caused by bad input rather than an upstream failure.
func IsClientError(err error) bool {
	return errors.Is(err, engine.ErrQueryRequired) ||
		errors.Is(err, engine.ErrURLRequired) ||
		errors.Is(err, engine.ErrInvalidURL)
}
