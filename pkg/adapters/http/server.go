// Package http exposes an engine over a JSON REST API with a Server-Sent Events stream.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DJA-prog/serialmacro"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/loader"
	"github.com/DJA-prog/serialmacro/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize bounds request bodies, including inline macro definitions.
const maxBodySize = 1 << 20

// Engine defines what the API needs from the macro engine.
type Engine interface {
	Macros() ([]string, error)
	Macro(name string) (domain.Macro, error)
	Start(ctx context.Context, name string) (string, error)
	StartMacro(ctx context.Context, m domain.Macro) (string, error)
	Stop()
	Snapshot() domain.RunRecord
	Runs(ctx context.Context) ([]*domain.RunRecord, error)
	RunRecord(ctx context.Context, id string) (*domain.RunRecord, error)
}

// Prompts is the answering side of the UI bridge.
type Prompts interface {
	Pending() []domain.Request
	Reply(id string, reply domain.Reply) error
}

// Server holds the handlers for the REST API.
type Server struct {
	Engine  Engine
	Prompts Prompts
	Streams *StreamManager
	logger  *slog.Logger
}

// Option configures the handler returned by NewHandler.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	events   <-chan domain.Event
	gatherer prometheus.Gatherer
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithEventSource streams events from ch to /events subscribers until ch is closed.
func WithEventSource(ch <-chan domain.Event) Option {
	return func(c *config) {
		c.events = ch
	}
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(c *config) {
		c.gatherer = g
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, prompts Prompts, opts ...Option) http.Handler {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		Engine:  engine,
		Prompts: prompts,
		Streams: NewStreamManager(cfg.logger),
		logger:  cfg.logger,
	}
	if cfg.events != nil {
		go s.Streams.Pump(cfg.events)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/macros", s.ListMacros)
	r.Get("/macros/{name}", s.GetMacro)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Post("/", s.StartRun)
		r.Post("/stop", s.StopRun)
		r.Get("/current", s.CurrentRun)
		r.Get("/{id}", s.GetRun)
	})
	r.Get("/prompts", s.ListPrompts)
	r.Post("/prompts/{id}", s.AnswerPrompt)
	r.Get("/events", s.SubscribeEvents)
	if cfg.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "serialmacro-http",
		"version": strings.TrimSpace(serialmacro.Version),
	})
}

// MacroSummary describes one available macro.
type MacroSummary struct {
	Name  string `json:"name"`
	Steps int    `json:"steps"`
}

// ListMacros handles GET /macros.
func (s *Server) ListMacros(w http.ResponseWriter, r *http.Request) {
	names, err := s.Engine.Macros()
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]MacroSummary, 0, len(names))
	for _, name := range names {
		m, err := s.Engine.Macro(name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out = append(out, MacroSummary{Name: name, Steps: len(m.Steps)})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetMacro handles GET /macros/{name}. The definition is returned as YAML.
func (s *Server) GetMacro(w http.ResponseWriter, r *http.Request) {
	m, err := s.Engine.Macro(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := loader.Marshal(m)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/yaml")
	_, _ = w.Write(data)
}

// StartRunRequest names a stored macro or carries an inline YAML definition.
type StartRunRequest struct {
	Macro      string `json:"macro,omitempty"`
	Definition string `json:"definition,omitempty"`
}

// StartRunResponse is returned for an accepted run.
type StartRunResponse struct {
	RunID string `json:"run_id"`
}

// StartRun handles POST /runs.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var body StartRunRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("StartRun: Invalid request body", "err", err)
		return
	}

	var (
		runID string
		err   error
	)
	switch {
	case body.Definition != "":
		var m domain.Macro
		if m, err = loader.Parse([]byte(body.Definition)); err == nil {
			runID, err = s.Engine.StartMacro(r.Context(), m)
		}
	case body.Macro != "":
		runID, err = s.Engine.Start(r.Context(), body.Macro)
	default:
		http.Error(w, "macro or definition is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, StartRunResponse{RunID: runID})
}

// StopRun handles POST /runs/stop.
func (s *Server) StopRun(w http.ResponseWriter, r *http.Request) {
	s.Engine.Stop()
	w.WriteHeader(http.StatusAccepted)
}

// CurrentRun handles GET /runs/current.
func (s *Server) CurrentRun(w http.ResponseWriter, r *http.Request) {
	rec := s.Engine.Snapshot()
	if rec.ID == "" {
		s.writeError(w, domain.ErrRunNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Engine.Runs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*domain.RunRecord{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Engine.RunRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// ListPrompts handles GET /prompts.
func (s *Server) ListPrompts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Prompts.Pending())
}

// AnswerPrompt handles POST /prompts/{id} with a domain.Reply body.
func (s *Server) AnswerPrompt(w http.ResponseWriter, r *http.Request) {
	var reply domain.Reply
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&reply); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("AnswerPrompt: Invalid request body", "err", err)
		return
	}

	if reply.Action == domain.ReplySubmit {
		clean, err := runner.SanitizeInput(reply.Text)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid input: %v", err), http.StatusBadRequest)
			s.logger.Warn("AnswerPrompt: Input rejected", "err", err, "size", len(reply.Text))
			return
		}
		reply.Text = clean
	}

	if err := s.Prompts.Reply(chi.URLParam(r, "id"), reply); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles GET /events (SSE). The optional run_id query parameter filters by run.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(r.URL.Query().Get("run_id"))
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMacroNotFound),
		errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunActive),
		errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict
	case errors.Is(err, domain.ErrWithdrawn):
		return http.StatusGone
	case errors.Is(err, domain.ErrInvalidStep),
		errors.Is(err, domain.ErrInvalidReply):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUIUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
