// Package api provides the HTTP server for Parabola.
//
// The server owns one focus countdown and one breathing sequencer per
// process, exposes their snapshots and commands as JSON endpoints, runs the
// companion flows and records finished sessions to the history store.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BTreeMap/Parabola/internal/breath"
	"github.com/BTreeMap/Parabola/internal/clock"
	"github.com/BTreeMap/Parabola/internal/companion"
	"github.com/BTreeMap/Parabola/internal/focus"
	"github.com/BTreeMap/Parabola/internal/genai"
	"github.com/BTreeMap/Parabola/internal/models"
	"github.com/BTreeMap/Parabola/internal/store"
)

// Default server configuration.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	// companion requests may sit through the full backoff schedule
	DefaultWriteTimeout = 2 * time.Minute
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr         string
	Clock        clock.Clock
	Store        store.Store
	Requester    companion.Requester
	Catalog      *breath.Catalog
	Registry     *prometheus.Registry
	PrimingDelay time.Duration
	Preset       string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithClock sets the clock driving the focus and breathing timers.
func WithClock(c clock.Clock) Option {
	return func(o *Opts) {
		o.Clock = c
	}
}

// WithStore sets the history store.
func WithStore(s store.Store) Option {
	return func(o *Opts) {
		o.Store = s
	}
}

// WithRequester enables the companion endpoints.
func WithRequester(r companion.Requester) Option {
	return func(o *Opts) {
		o.Requester = r
	}
}

// WithCatalog replaces the breathing protocol catalog.
func WithCatalog(c *breath.Catalog) Option {
	return func(o *Opts) {
		o.Catalog = c
	}
}

// WithRegistry registers server metrics on reg and serves it at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *Opts) {
		o.Registry = reg
	}
}

// WithPrimingDelay overrides the breathing priming delay.
func WithPrimingDelay(d time.Duration) Option {
	return func(o *Opts) {
		o.PrimingDelay = d
	}
}

// WithPreset sets the focus preset the countdown starts with.
func WithPreset(name string) Option {
	return func(o *Opts) {
		o.Preset = name
	}
}

// Server serves the Parabola HTTP API.
type Server struct {
	addr      string
	clock     clock.Clock
	st        store.Store
	companion *companion.Companion
	catalog   *breath.Catalog
	registry  *prometheus.Registry
	metrics   *httpMetrics

	focus  *focus.Session
	breath *breath.Sequencer

	mu           sync.Mutex
	focusLabel   string
	focusStarted time.Time
}

// NewServer creates a server. Without WithStore history is kept in memory;
// without WithRequester the companion endpoints answer 503.
func NewServer(opts ...Option) (*Server, error) {
	cfg := Opts{
		Addr:   DefaultAddr,
		Preset: companion.DefaultPreset,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewTimerClock()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewInMemoryStore()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = breath.DefaultCatalog()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	preset, err := companion.LookupPreset(cfg.Preset)
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:       cfg.Addr,
		clock:      cfg.Clock,
		st:         cfg.Store,
		catalog:    cfg.Catalog,
		registry:   cfg.Registry,
		focusLabel: preset.Name,
	}
	if cfg.Requester != nil {
		s.companion = companion.New(cfg.Requester, companion.WithRecorder(cfg.Store), companion.WithNow(cfg.Clock.Now))
	}

	s.focus, err = focus.NewSession(cfg.Clock, preset.Seconds(), focus.WithOnComplete(s.recordFocus))
	if err != nil {
		return nil, err
	}
	breathOpts := []breath.Option{breath.WithOnStop(s.recordBreath)}
	if cfg.PrimingDelay > 0 {
		breathOpts = append(breathOpts, breath.WithPrimingDelay(cfg.PrimingDelay))
	}
	s.breath = breath.NewSequencer(cfg.Clock, cfg.Catalog, breathOpts...)

	s.metrics = newHTTPMetrics(cfg.Registry, s)
	slog.Debug("api.NewServer: server created", "addr", s.addr, "preset", preset.Name, "companion", s.companion != nil)
	return s, nil
}

// Handler returns the HTTP handler with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)

	r.Route("/focus", func(r chi.Router) {
		r.Get("/", s.focusStateHandler)
		r.Post("/configure", s.focusConfigureHandler)
		r.Post("/start", s.focusStartHandler)
		r.Post("/pause", s.focusPauseHandler)
		r.Post("/reset", s.focusResetHandler)
	})
	r.Route("/breath", func(r chi.Router) {
		r.Get("/", s.breathStateHandler)
		r.Get("/protocols", s.breathProtocolsHandler)
		r.Post("/start", s.breathStartHandler)
		r.Post("/stop", s.breathStopHandler)
	})
	r.Route("/companion", func(r chi.Router) {
		r.Use(s.requireCompanion)
		r.Post("/ritual", s.ritualHandler)
		r.Post("/advice", s.adviceHandler)
		r.Post("/summary", s.summaryHandler)
		r.Post("/explain", s.explainHandler)
	})
	r.Get("/library", s.libraryHandler)
	r.Get("/schedule", s.scheduleHandler)
	r.Get("/history", s.historyHandler)
	r.Get("/stats", s.statsHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully and ends any running session.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Parabola API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.breath.Stop()
	s.focus.Pause()
	if err != nil {
		return fmt.Errorf("api shutdown failed: %w", err)
	}
	return nil
}

// Run builds the store, GenAI client and server from options and serves
// until SIGINT or SIGTERM.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	opts := []Option{WithStore(st), WithRegistry(reg)}

	client, err := genai.NewClient(append(genaiOpts, genai.WithMetrics(genai.NewMetrics(reg)))...)
	switch {
	case errors.Is(err, genai.ErrAPIKeyNotSet):
		slog.Warn("GenAI API key not set, companion endpoints disabled")
	case err != nil:
		return fmt.Errorf("failed to create GenAI client: %w", err)
	default:
		opts = append(opts, WithRequester(client))
	}

	tc := clock.NewTimerClock()
	defer tc.Stop()
	opts = append(opts, WithClock(tc))

	srv, err := NewServer(append(opts, apiOpts...)...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx)
}

// recordFocus stores a completed countdown.
func (s *Server) recordFocus(state models.CountdownState) {
	now := s.clock.Now()
	s.mu.Lock()
	label, started := s.focusLabel, s.focusStarted
	s.focusStarted = time.Time{}
	s.mu.Unlock()
	if started.IsZero() {
		started = now.Add(-time.Duration(state.TotalSeconds) * time.Second)
	}

	rec, err := s.st.AddSessionRecord(context.Background(), models.SessionRecord{
		Kind:            models.SessionKindFocus,
		Label:           label,
		DurationSeconds: state.TotalSeconds,
		Completed:       true,
		StartedAt:       started,
		EndedAt:         now,
	})
	if err != nil {
		slog.Error("Server.recordFocus: failed to record session", "error", err)
		return
	}
	slog.Info("Focus session completed", "id", rec.ID, "label", label, "seconds", state.TotalSeconds)
}

// recordBreath stores an ended breathing run.
func (s *Server) recordBreath(sum breath.RunSummary) {
	rec, err := s.st.AddSessionRecord(context.Background(), models.SessionRecord{
		Kind:            models.SessionKindBreath,
		Label:           sum.SequenceID,
		DurationSeconds: int(sum.EndedAt.Sub(sum.StartedAt) / time.Second),
		Cycles:          sum.Cycles,
		Completed:       sum.Cycles > 0,
		StartedAt:       sum.StartedAt,
		EndedAt:         sum.EndedAt,
	})
	if err != nil {
		slog.Error("Server.recordBreath: failed to record session", "error", err)
		return
	}
	slog.Info("Breathing session ended", "id", rec.ID, "sequence", sum.SequenceID, "cycles", sum.Cycles)
}
