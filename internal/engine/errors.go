package engine

import "errors"

var (
	ErrQueryRequired    = errors.New("search query is required")
	ErrURLRequired      = errors.New("video URL is required")
	ErrInvalidURL       = errors.New("invalid YouTube URL")
	ErrNoResults        = errors.New("no results found")
	ErrAllMethodsFailed = errors.New("all download methods failed")
	ErrNotFound         = errors.New("not found")
)
