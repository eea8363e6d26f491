package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	"github.com/newscheck/newscheck/internal/artifacts"
	"github.com/newscheck/newscheck/internal/config"
	"github.com/newscheck/newscheck/internal/console"
	"github.com/newscheck/newscheck/internal/detector"
	"github.com/newscheck/newscheck/internal/events"
	"github.com/newscheck/newscheck/internal/redact"
	"github.com/newscheck/newscheck/internal/scrape"
	"github.com/newscheck/newscheck/internal/telemetry"
)

// Version is reported on spans. Overridden at build time.
var Version = "dev"

const requestIDHeader = "X-Newscheck-Request-Id"

// Server wraps the HTTP components for newscheck.
type Server struct {
	mux        *mux.Router
	httpServer *http.Server
	cfg        *config.Config

	detector  *detector.Detector
	accuracy  artifacts.Accuracy
	card      artifacts.ModelCard
	scraper   *scrape.Scraper // nil when url checks are disabled
	emitter   *events.Emitter // nil when no sinks are configured
	telemetry *telemetry.Provider
}

// Options carries the already loaded components the server depends on.
type Options struct {
	Detector  *detector.Detector
	Bundle    *artifacts.Bundle
	Emitter   *events.Emitter
	Telemetry *telemetry.Provider
}

// New creates a server with all routes registered.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is nil")
	}
	if opts.Detector == nil {
		return nil, errors.New("server needs a detector")
	}

	s := &Server{
		cfg:       cfg,
		detector:  opts.Detector,
		emitter:   opts.Emitter,
		telemetry: opts.Telemetry,
	}
	if opts.Bundle != nil {
		s.accuracy = opts.Bundle.Accuracy
		s.card = opts.Bundle.Card
	}
	if cfg.Scrape.Enabled {
		s.scraper = scrape.New(cfg.Scrape)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	if s.scraper != nil {
		api.HandleFunc("/predict/url", s.handlePredictURL).Methods(http.MethodPost)
	}
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	if cfg.Console.Enabled {
		page, err := console.Handler(console.Page{
			Title:         cfg.Console.Title,
			TrainAccuracy: s.accuracy.Display(s.accuracy.Train),
			TestAccuracy:  s.accuracy.Display(s.accuracy.Test),
			ModelName:     s.card.Name,
			ModelVersion:  s.card.Version,
			ScrapeEnabled: s.scraper != nil,
			AnalysisDelay: cfg.Console.AnalysisDelay,
		})
		if err != nil {
			return nil, err
		}
		r.Handle("/", page).Methods(http.MethodGet)
	}
	s.mux = r

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	return s, nil
}

// Handler exposes the router, e.g. for httptest servers.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	redact.Logf("server: newscheck listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, then flushes queued events.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.emitter.Close(ctx)
	return err
}

func (s *Server) startSpan(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, trace.Span) {
	return s.telemetry.Tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(telemetry.SafeAttributes(attrs)...),
	)
}
