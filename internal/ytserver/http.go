package ytserver

import (
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_ytdl/internal/engine"
	"github.com/anatolykoptev/go_ytdl/internal/toolutil"
)

//go:embed public
var publicFS embed.FS

// maxBodyBytes caps JSON/form request bodies.
const maxBodyBytes = 64 * 1024

const (
	msgStreamFailed = "Unable to stream this video. Please try another quality."
	msgInternal     = "Internal server error"
)

// Handler returns the HTTP API and static front end.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(publicFS, "public")
	if err != nil {
		panic(err) // embedded path is fixed at compile time
	}
	mux.Handle("GET /", http.FileServerFS(static))

	mux.HandleFunc("POST /search", s.limit(s.handleSearch))
	mux.HandleFunc("POST /get-video-info", s.limit(s.handleVideoInfo))
	mux.HandleFunc("POST /download", s.limit(s.handleVideoInfo))
	mux.HandleFunc("GET /stream/{videoId}", s.limit(s.handleStream))
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, engine.FormatMetrics())
	})

	return recoverer(logRequests(mux))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	query := strings.TrimSpace(body["query"])
	if query == "" {
		writeError(w, http.StatusBadRequest, toolutil.MsgQueryRequired)
		return
	}
	limit, _ := strconv.Atoi(body["limit"])

	out, err := s.search(r.Context(), query, limit)
	if err != nil {
		if toolutil.IsClientError(err) {
			writeError(w, http.StatusBadRequest, toolutil.UserMessage(err, toolutil.MsgSearchFailed))
			return
		}
		slog.Error("search failed", slog.String("query", query), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, toolutil.MsgSearchFailed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": out.Results,
		"source":  out.Source,
	})
}

func (s *Server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	videoURL := strings.TrimSpace(body["videoUrl"])
	if videoURL == "" {
		videoURL = strings.TrimSpace(body["url"])
	}
	slog.Info("processing url", slog.String("url", videoURL))

	info, err := s.resolve(r.Context(), videoURL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": info})
	case toolutil.IsClientError(err):
		writeError(w, http.StatusBadRequest, toolutil.UserMessage(err, toolutil.MsgResolveFailed))
	default:
		slog.Error("resolve failed", slog.String("url", videoURL), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, toolutil.MsgResolveFailed)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")
	itag := 0
	if raw := r.URL.Query().Get("itag"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid itag")
			return
		}
		itag = n
	}

	st, err := s.chain.OpenStream(r.Context(), videoID, itag)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, toolutil.MsgInvalidURL)
		return
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, toolutil.MsgNotAvailable)
		return
	default:
		slog.Error("stream open failed", slog.String("id", videoID), slog.Int("itag", itag), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, msgStreamFailed)
		return
	}
	defer st.Body.Close()

	w.Header().Set("Content-Type", st.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": st.Filename}))
	if st.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(st.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, st.Body)
	engine.AddStreamBytes(n)
	if err != nil {
		// Headers are gone; the client sees a truncated body.
		slog.Warn("stream relay interrupted", slog.String("id", videoID), slog.Int64("bytes", n), slog.Any("error", err))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.recent(r.Context(), limit)
	if err != nil {
		slog.Error("history query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entries": entries})
}

// readBody accepts a flat JSON object or a urlencoded form and returns its
// string fields. Numbers are kept as their literal text.
func readBody(r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	out := map[string]string{}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		var err error
		if ct == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, err
		}
		for k := range r.PostForm {
			out[k] = r.PostForm.Get(k)
		}
		return out, nil
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		return nil, err
	}
	for k, v := range raw {
		var s string
		if json.Unmarshal(v, &s) == nil {
			out[k] = s
			continue
		}
		var n json.Number
		if json.Unmarshal(v, &n) == nil {
			out[k] = n.String()
		}
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				slog.Error("handler panic", slog.String("path", r.URL.Path), slog.Any("panic", p))
				writeError(w, http.StatusInternalServerError, msgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
