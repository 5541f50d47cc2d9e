// Package webhook implements the Slack Events API receiver: admission
// (signature + freshness + content-type), the url_verification handshake,
// and routing of admitted events into the archive and the attachment fetch
// queue.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/slackline/internal/archive"
	"github.com/mattjoyce/slackline/internal/event"
	"github.com/mattjoyce/slackline/internal/events"
	"github.com/mattjoyce/slackline/internal/signature"
)

// Server is the webhook HTTP server.
type Server struct {
	config   Config
	verifier *signature.Verifier
	store    *archive.Store
	fetcher  AttachmentQueuer
	hub      *events.Hub
	logger   *slog.Logger
	server   *http.Server

	startedAt time.Time
	archived  atomic.Int64
	fetched   atomic.Int64
}

// New creates a webhook server instance.
func New(config Config, verifier *signature.Verifier, store *archive.Store, fetcher AttachmentQueuer, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		verifier:  verifier,
		store:     store,
		fetcher:   fetcher,
		hub:       hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)

	r.Post("/slack/events", s.handleEvent)
	r.Get("/healthz", s.requireAPIKey(s.handleHealth))
	r.Get("/events", s.requireAPIKey(s.handleEventStream))

	return r
}

// loggingMiddleware logs HTTP requests (excludes payload content).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// requireAPIKey guards observability routes with a bearer key when one is
// configured.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+s.config.APIKey {
			respondText(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// handleEvent handles POST /slack/events.
//
// Authentication and content-type failures get distinctive statuses; every
// other failure is swallowed after logging and answered 200. Slack treats
// non-2xx as delivery failure and redelivers with backoff, which would only
// duplicate archive lines without fixing anything.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic while handling event",
				"panic", rec, "stack", string(debug.Stack()))
			w.WriteHeader(http.StatusOK)
		}
	}()

	doc, ok := s.admit(w, r)
	if !ok {
		return
	}

	if doc.Type() == event.TypeURLVerification {
		s.hub.Publish(events.TypeHandshake, map[string]string{"challenge": doc.Challenge()})
		s.logger.Info("answered url_verification handshake")
		respondText(w, http.StatusOK, doc.Challenge())
		return
	}

	teamID := doc.TeamID()
	relPath, resolvable := archive.Resolve(teamID, doc)
	if !resolvable {
		// No team id, nowhere to file it.
		s.logger.Warn("event not archivable, skipping", "type", doc.Type())
		s.hub.Publish(events.TypeEventSkipped, map[string]string{"type": doc.Type()})
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.store.Append(relPath, doc); err != nil {
		s.logger.Error("failed to archive event",
			"path", relPath, "team_id", teamID, "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	s.archived.Add(1)
	s.hub.Publish(events.TypeEventArchived, map[string]string{
		"team_id": teamID, "path": relPath, "type": doc.InnerType(),
	})

	if doc.InnerType() == event.TypeFileShared {
		if fileID := doc.FileID(); fileID != "" {
			if s.fetcher.Enqueue(teamID, fileID) {
				s.fetched.Add(1)
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

// handleHealth serves liveness and counters for the watch TUI.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		ArchivedTotal: s.archived.Load(),
		FetchedTotal:  s.fetched.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleEventStream serves the activity hub over SSE. Supports Last-Event-ID
// catch-up from the hub's replay buffer.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondText(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	var sinceID int64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		sinceID, _ = strconv.ParseInt(v, 10, 64)
	}

	ch, cancel := s.hub.Subscribe()
	defer cancel()

	for _, ev := range s.hub.Replay(sinceID) {
		writeSSE(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, ev events.Event) {
	fmt.Fprintf(w, "id: %d\n", ev.ID)
	fmt.Fprintf(w, "event: %s\n", ev.Type)
	fmt.Fprintf(w, "data: %s\n\n", ev.Data)
}
