package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"boardkiosk/internal/history"
	"boardkiosk/internal/metrics"
	"boardkiosk/internal/models"
	"boardkiosk/internal/monitor"
	"boardkiosk/internal/overlay"
	"boardkiosk/internal/storage"
)

//go:embed static/*
var embeddedStatic embed.FS

const (
	defaultHistoryLimit = 200
	maxTimelineHours    = 7 * 24
	maxStylesheetBytes  = 1 << 20
	styleUpdateTimeout  = 20 * time.Second
)

// Supervisor is the part of a board supervisor the server reads from and controls.
type Supervisor interface {
	monitor.ConnectivitySource
	Subscribe() (<-chan models.Transition, func())
	RequestReload()
	OverlayContent() string
}

// StyleTarget receives stylesheet updates for live re-injection.
type StyleTarget interface {
	UpdateStylesheet(ctx context.Context, css string) error
}

// Board binds a configured board to its supervisor and, optionally, its page.
type Board struct {
	Info       models.Board
	URL        string
	Supervisor Supervisor
	Style      StyleTarget
}

// Options configures the status server.
type Options struct {
	Addr   string
	Boards []Board
	// Log, when set, serves history from the persisted log instead of supervisor memory.
	Log    *storage.ConnectivityLog
	Styles *storage.StyleStorage
	Logger *zap.Logger
}

// Server wraps HTTP serving of API + static assets.
type Server struct {
	httpServer   *http.Server
	staticFS     fs.FS
	boards       []Board
	log          *storage.ConnectivityLog
	styles       *storage.StyleStorage
	logger       *zap.Logger
	historyLimit int
	pushInterval time.Duration
	now          func() time.Time
}

// New creates a configured HTTP server for the kiosk.
func New(opts Options) *Server {
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic("static assets missing: " + err.Error())
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: opts.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		staticFS:     staticFS,
		boards:       opts.Boards,
		log:          opts.Log,
		styles:       opts.Styles,
		logger:       logger.Named("server"),
		historyLimit: defaultHistoryLimit,
		pushInterval: overviewPushInterval,
		now:          func() time.Time { return time.Now().UTC() },
	}
	s.registerRoutes(mux)
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		data, err := fs.ReadFile(s.staticFS, "index.html")
		if err != nil {
			http.Error(w, "index missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	})
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/transitions", s.handleTransitions)
	mux.HandleFunc("GET /api/uptime", s.handleUptime)
	mux.HandleFunc("GET /api/timeline", s.handleTimeline)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /api/css", s.handleGetCSS)
	mux.HandleFunc("PUT /api/css", s.handlePutCSS)
	mux.HandleFunc("GET /ws", s.handleOverviewWS)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	boards, ok := s.selectBoards(w, r)
	if !ok {
		return
	}
	limit := parseLimit(r, s.historyLimit)
	result := make(map[string][]models.ConnectivityStatus, len(boards))
	for _, b := range boards {
		samples := s.samples(b)
		if len(samples) > limit {
			samples = samples[len(samples)-limit:]
		}
		if samples == nil {
			samples = []models.ConnectivityStatus{}
		}
		result[b.Info.ID] = samples
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	if s.log == nil {
		writeJSON(w, http.StatusOK, []models.Transition{})
		return
	}
	boards, ok := s.selectBoards(w, r)
	if !ok {
		return
	}
	out := []models.Transition{}
	for _, b := range boards {
		out = append(out, s.log.Transitions(b.Info.ID)...)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUptime(w http.ResponseWriter, _ *http.Request) {
	var all []models.ConnectivityStatus
	for _, b := range s.boards {
		all = append(all, s.samples(b)...)
	}
	summary := metrics.ComputeConnectivityUptime(all)
	if summary == nil {
		summary = []metrics.BoardUptime{}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	boards, ok := s.selectBoards(w, r)
	if !ok {
		return
	}
	hours := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("hours")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			http.Error(w, "hours must be a positive integer", http.StatusBadRequest)
			return
		}
		hours = min(value, maxTimelineHours)
	}

	end := s.now()
	start := end.Add(-time.Duration(hours) * time.Hour)
	infos := make([]models.Board, 0, len(boards))
	samples := make(map[string][]models.ConnectivityStatus, len(boards))
	for _, b := range boards {
		infos = append(infos, b.Info)
		samples[b.Info.ID] = s.samples(b)
	}
	writeJSON(w, http.StatusOK, history.BuildBoardTimelines(infos, samples, start, end, history.DefaultTimelinePoints))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	boards, ok := s.selectBoards(w, r)
	if !ok {
		return
	}
	ids := make([]string, 0, len(boards))
	for _, b := range boards {
		b.Supervisor.RequestReload()
		ids = append(ids, b.Info.ID)
	}
	s.logger.Info("reload requested", zap.Strings("boards", ids))
	writeJSON(w, http.StatusAccepted, map[string]any{"reloading": ids})
}

func (s *Server) handleGetCSS(w http.ResponseWriter, _ *http.Request) {
	if s.styles == nil {
		http.Error(w, "custom stylesheet disabled", http.StatusNotFound)
		return
	}
	css, err := s.styles.Load()
	if err != nil {
		s.logger.Error("load stylesheet", zap.Error(err))
		http.Error(w, "stylesheet unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = io.WriteString(w, css)
}

func (s *Server) handlePutCSS(w http.ResponseWriter, r *http.Request) {
	if s.styles == nil {
		http.Error(w, "custom stylesheet disabled", http.StatusNotFound)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStylesheetBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "stylesheet too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}
	css := string(body)
	if err := s.styles.Save(css); err != nil {
		s.logger.Error("save stylesheet", zap.Error(err))
		http.Error(w, "could not save stylesheet", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), styleUpdateTimeout)
	defer cancel()
	applied := make([]string, 0, len(s.boards))
	failed := map[string]string{}
	for _, b := range s.boards {
		if b.Style == nil {
			continue
		}
		if err := b.Style.UpdateStylesheet(ctx, css); err != nil {
			s.logger.Warn("apply stylesheet", zap.String("board", b.Info.ID), zap.Error(err))
			failed[b.Info.ID] = err.Error()
			continue
		}
		applied = append(applied, b.Info.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": true, "applied": applied, "failed": failed})
}

func (s *Server) snapshot() []models.BoardStatus {
	out := make([]models.BoardStatus, 0, len(s.boards))
	for _, b := range s.boards {
		status := models.BoardStatus{
			Board:   b.Info,
			URL:     b.URL,
			State:   b.Supervisor.State(),
			Overlay: overlay.Summary(b.Supervisor.OverlayContent()),
		}
		if latest, ok := b.Supervisor.Latest(); ok {
			status.Latest = &latest
		}
		out = append(out, status)
	}
	return out
}

func (s *Server) samples(b Board) []models.ConnectivityStatus {
	if s.log != nil {
		return s.log.Samples(b.Info.ID)
	}
	return b.Supervisor.History()
}

// selectBoards resolves the optional board query parameter; an empty value selects all boards.
func (s *Server) selectBoards(w http.ResponseWriter, r *http.Request) ([]Board, bool) {
	id := strings.TrimSpace(r.URL.Query().Get("board"))
	if id == "" {
		return s.boards, true
	}
	for _, b := range s.boards {
		if b.Info.ID == id {
			return []Board{b}, true
		}
	}
	http.Error(w, "unknown board "+strconv.Quote(id), http.StatusNotFound)
	return nil, false
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
