package engine

// --- Input types (MCP tools and HTTP bodies) ---

type SearchInput struct {
	Query string `json:"query" jsonschema:"Search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results (default: 10, max: 20)"`
}

type VideoInfoInput struct {
	VideoURL string `json:"videoUrl" jsonschema:"YouTube video URL (watch, youtu.be, shorts, embed) or bare 11-char video ID"`
}

type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max entries (default: 20, max: 100)"`
}

// --- Output types (JSON responses) ---

// SearchResult is a single video hit. Field names match what the browser front end renders.
type SearchResult struct {
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	ImageURL  string `json:"imageUrl"`
	Channel   string `json:"channel"`
	Duration  string `json:"duration"`
	Views     string `json:"views,omitempty"`
	Published string `json:"published,omitempty"`
}

type SearchOutput struct {
	Query   string         `json:"query"`
	Source  string         `json:"source"`
	Results []SearchResult `json:"results"`
}

// VideoMeta is the lightweight metadata every link provider needs.
type VideoMeta struct {
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Thumbnail string `json:"thumbnail"`
}

// Quality is one download option offered to the user.
// Direct options are served by this process; the rest open a third-party page.
type Quality struct {
	Quality     string `json:"quality"`
	Size        string `json:"size"`
	URL         string `json:"url"`
	Type        string `json:"type"` // video, audio or both
	Direct      bool   `json:"direct"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
	Itag        int    `json:"itag,omitempty"`
}

type VideoInfo struct {
	VideoID    string    `json:"videoId"`
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	Thumbnail  string    `json:"thumbnail"`
	Duration   string    `json:"duration"`
	Qualities  []Quality `json:"qualities"`
	Source     string    `json:"source"`
	MethodUsed string    `json:"methodUsed"`
	// Alternatives are converter pages the front end can open in new tabs.
	Alternatives []string `json:"alternatives,omitempty"`
}
