// Package server publishes configured channels as RSS over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/richardwooding/feed-rss/config"
	"github.com/richardwooding/feed-rss/model"
	"github.com/richardwooding/feed-rss/rss"
)

// FeedBuilder builds the feed of a configured channel.
type FeedBuilder interface {
	BuildFeed(ctx context.Context, ch config.ChannelConfig) (*rss.Feed, error)
}

// circuitReporter is implemented by builders that guard remote sources
// with circuit breakers.
type circuitReporter interface {
	CircuitBreakerOpen(source string) bool
}

// Health is the body of the health endpoint.
type Health struct {
	Status       string   `json:"status"`
	OpenCircuits []string `json:"open_circuits,omitempty"`
}

type Server struct {
	config  *config.Config
	builder FeedBuilder
	router  chi.Router
}

// ChannelInfo describes a published channel.
type ChannelInfo struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Link        string `json:"link,omitempty"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
}

func New(cfg *config.Config, builder FeedBuilder) *Server {
	s := &Server{
		config:  cfg,
		builder: builder,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	mux := chi.NewRouter()

	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(requestLogger)

	mux.Get("/healthz", s.handleHealth)
	mux.Route("/feeds", func(r chi.Router) {
		r.Get("/", s.handleListChannels)
		r.Get("/{name}", s.handleFeed)
	})

	s.router = mux
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		model.InfoLogWithContext("starting server", "http_server", "serve", s.config.Server.Addr, map[string]interface{}{
			"channels": len(s.config.Channels),
		})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return model.NewFeedErrorWithCause(model.ErrorTypeTransport, "http server failed", err).
			WithURL(s.config.Server.Addr).
			WithOperation("serve").
			WithComponent("http_server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	model.InfoLogWithContext("shutting down server", "http_server", "shutdown", s.config.Server.Addr, nil)
	return httpServer.Shutdown(shutdownCtx)
}

// handleHealth reports "degraded" with the affected channel names while any
// channel source has an open circuit breaker.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := Health{Status: "ok"}
	if reporter, ok := s.builder.(circuitReporter); ok {
		for _, ch := range s.config.Channels {
			if ch.Source != "" && reporter.CircuitBreakerOpen(ch.Source) {
				health.OpenCircuits = append(health.OpenCircuits, ch.Name)
			}
		}
	}
	if len(health.OpenCircuits) > 0 {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels := make([]ChannelInfo, 0, len(s.config.Channels))
	for _, ch := range s.config.Channels {
		channels = append(channels, ChannelInfo{
			Name:        ch.Name,
			Title:       ch.Title,
			Link:        ch.Link,
			Description: ch.Description,
			Path:        "/feeds/" + ch.Name,
		})
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ch, ok := s.config.Channel(name)
	if !ok {
		writeError(w, http.StatusNotFound, model.NewFeedError(model.ErrorTypeNotFound, "unknown channel").
			WithURL(r.URL.Path).
			WithOperation("serve_feed").
			WithComponent("http_server"))
		return
	}

	format := ch.RenderFormat()
	if value := r.URL.Query().Get("format"); value != "" {
		parsed, err := rss.ParseFormat(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, model.NewFeedErrorWithCause(model.ErrorTypeValidation, "invalid format", err).
				WithURL(r.URL.String()).
				WithOperation("serve_feed").
				WithComponent("http_server"))
			return
		}
		format = parsed
	}

	f, err := s.builder.BuildFeed(r.Context(), ch)
	if err != nil {
		model.LogError("failed to build feed", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := f.Write(rss.NewHTTPSink(w), format); err != nil {
		// headers may already be sent
		model.LogError("failed to write feed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error      string          `json:"error"`
	Type       model.ErrorType `json:"type,omitempty"`
	ID         string          `json:"id,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: err.Error()}
	var feedErr *model.FeedError
	if errors.As(err, &feedErr) {
		body.Error = feedErr.Message
		body.Type = feedErr.ErrorType
		body.ID = feedErr.ID
		body.Suggestion = feedErr.Suggestion
	}
	writeJSON(w, status, body)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		model.DebugLogWithContext("request served", "http_server", r.Method, r.URL.String(), map[string]interface{}{
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}
