package ytserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
	"github.com/anatolykoptev/go_ytdl/internal/history"
	"github.com/anatolykoptev/go_ytdl/internal/toolutil"
)

// HistoryOutput wraps history entries for the download_history tool.
type HistoryOutput struct {
	Entries []history.Entry `json:"entries"`
}

// RegisterTools registers the MCP tools on server:
// youtube_search, youtube_download_links, download_history.
func (s *Server) RegisterTools(server *mcp.Server) {
	s.registerSearch(server)
	s.registerDownloadLinks(server)
	s.registerHistory(server)
}

func (s *Server) registerSearch(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_search",
		Description: "Search YouTube videos. Tries several sources in order (Malvin API, YouTube Data API, ytsearch, results-page scrape) and returns the first non-empty result set with title, link, thumbnail, channel and duration.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.SearchInput) (*mcp.CallToolResult, engine.SearchOutput, error) {
		out, err := s.search(ctx, input.Query, input.Limit)
		if err != nil {
			if !toolutil.IsClientError(err) {
				slog.Warn("youtube_search failed", slog.String("query", input.Query), slog.Any("error", err))
			}
			return nil, engine.SearchOutput{}, errors.New(toolutil.UserMessage(err, toolutil.MsgSearchFailed))
		}
		return nil, out, nil
	})
}

func (s *Server) registerDownloadLinks(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_download_links",
		Description: "Resolve a YouTube URL (watch, youtu.be, shorts, embed or bare video ID) into download options. Returns title, thumbnail, duration, a list of qualities with URLs, the method that produced them, and alternative download sites.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.VideoInfoInput) (*mcp.CallToolResult, engine.VideoInfo, error) {
		info, err := s.resolve(ctx, input.VideoURL)
		if err != nil {
			if !toolutil.IsClientError(err) {
				slog.Warn("youtube_download_links failed", slog.String("url", input.VideoURL), slog.Any("error", err))
			}
			return nil, engine.VideoInfo{}, errors.New(toolutil.UserMessage(err, toolutil.MsgResolveFailed))
		}
		return nil, *info, nil
	})
}

func (s *Server) registerHistory(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "download_history",
		Description: "List recently resolved videos, newest first: video ID, title, download method and source.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
		entries, err := s.recent(ctx, input.Limit)
		if err != nil {
			return nil, HistoryOutput{}, err
		}
		return nil, HistoryOutput{Entries: entries}, nil
	})
}
