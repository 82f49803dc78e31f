package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"assistant/internal/assistant"
	"assistant/internal/briefing"
	"assistant/internal/config"
	"assistant/internal/draft"
	appLog "assistant/internal/log"
)

const (
	defaultDays    = 7
	maxChatBytes   = 64 << 10
	eventsCacheTTL = 30 * time.Second
	shutdownGrace  = 5 * time.Second
)

// Assistant is the part of the assistant the HTTP API exposes.
type Assistant interface {
	Handle(ctx context.Context, utterance string) assistant.Response
	Agenda(ctx context.Context, days int) (assistant.Agenda, error)
	DraftState() (draft.State, *assistant.DraftView)
}

// Briefings exposes the latest scheduled briefing.
type Briefings interface {
	Last() (briefing.Briefing, bool)
	Next() time.Time
}

// Server provides the HTTP API over an Assistant.
type Server struct {
	cfg       *config.Config
	assistant Assistant
	briefings Briefings
	mux       *http.ServeMux

	// In-memory cache for /api/events responses, keyed by days. Listing
	// re-reads the calendar and may call the capability, so repeated polling
	// is served from here.
	eventsMu    sync.RWMutex
	eventsCache map[int]eventsCache

	now func() time.Time
}

// eventsCache holds a cached /api/events response and its timestamp.
type eventsCache struct {
	agenda    assistant.Agenda
	updatedAt time.Time
}

// NewServer constructs a new Server. briefings may be nil when no schedule
// is configured.
func NewServer(cfg *config.Config, a Assistant, briefings Briefings) *Server {
	s := &Server{
		cfg:         cfg,
		assistant:   a,
		briefings:   briefings,
		mux:         http.NewServeMux(),
		eventsCache: map[int]eventsCache{},
		now:         time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Assistant", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/draft", s.handleDraft)
	s.mux.HandleFunc("/api/briefing", s.handleBriefing)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents lists and summarizes upcoming events.
//
// GET /api/events?days=7
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := parseIntDefault(r.URL.Query().Get("days"), defaultDays)
	if days <= 0 {
		days = defaultDays
	}
	if days > assistant.MaxAgendaDays {
		days = assistant.MaxAgendaDays
	}

	cacheNow := s.now()
	s.eventsMu.RLock()
	ec, ok := s.eventsCache[days]
	s.eventsMu.RUnlock()
	if ok && cacheNow.Sub(ec.updatedAt) < eventsCacheTTL {
		writeJSON(w, http.StatusOK, ec.agenda)
		return
	}

	appLog.Info("api events request", "days", days)

	agenda, err := s.assistant.Agenda(r.Context(), days)
	if err != nil {
		appLog.Error("api events: agenda failed", err, "days", days)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	s.eventsMu.Lock()
	s.eventsCache[days] = eventsCache{agenda: agenda, updatedAt: s.now()}
	s.eventsMu.Unlock()

	writeJSON(w, http.StatusOK, agenda)
}

type chatRequest struct {
	Message string `json:"message"`
}

// handleChat routes one utterance through the assistant.
//
// POST /api/chat {"message": "..."}
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp := s.assistant.Handle(r.Context(), req.Message)
	if resp.Success {
		// A confirmed draft changes what /api/events should return.
		s.invalidateEvents()
	}
	writeJSON(w, http.StatusOK, resp)
}

type draftResponse struct {
	State draft.State          `json:"state"`
	Draft *assistant.DraftView `json:"draft,omitempty"`
}

// handleDraft reports the pending draft, if any.
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	state, d := s.assistant.DraftState()
	writeJSON(w, http.StatusOK, draftResponse{State: state, Draft: d})
}

type briefingResponse struct {
	Briefing *briefing.Briefing `json:"briefing"`
	NextRun  *time.Time         `json:"next_run,omitempty"`
}

// handleBriefing returns the latest scheduled briefing.
func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.briefings == nil {
		writeError(w, http.StatusNotFound, "briefing is not scheduled")
		return
	}

	var resp briefingResponse
	if b, ok := s.briefings.Last(); ok {
		resp.Briefing = &b
	}
	next := s.briefings.Next()
	resp.NextRun = &next
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) invalidateEvents() {
	s.eventsMu.Lock()
	clear(s.eventsCache)
	s.eventsMu.Unlock()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
