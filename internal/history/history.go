// Package history keeps a log of resolved videos, in SQLite by default or in
// PostgreSQL when a database URL is configured.
package history

import (
	"context"
	"time"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Entry is one successful resolution.
type Entry struct {
	ID        int64  `json:"id"`
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Method    string `json:"methodUsed"`
	Source    string `json:"source"`
	CreatedAt string `json:"createdAt"`
}

// Store persists history entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// FromVideoInfo builds an entry stamped with the current time.
func FromVideoInfo(info *engine.VideoInfo) Entry {
	return Entry{
		VideoID:   info.VideoID,
		Title:     info.Title,
		Method:    info.MethodUsed,
		Source:    info.Source,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// NormLimit clamps a caller-supplied limit.
func NormLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}
