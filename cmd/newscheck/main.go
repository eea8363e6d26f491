package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/newscheck/newscheck/internal/artifacts"
	"github.com/newscheck/newscheck/internal/config"
	"github.com/newscheck/newscheck/internal/detector"
	"github.com/newscheck/newscheck/internal/events"
	"github.com/newscheck/newscheck/internal/redact"
	"github.com/newscheck/newscheck/internal/server"
	"github.com/newscheck/newscheck/internal/telemetry"
)

func main() {
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "newscheck.yaml", "Path to newscheck config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bundle, err := artifacts.Load(ctx, cfg.Artifacts, cfg.Classifier)
	if err != nil {
		redact.Fatalf("failed to load model artifacts: %v", err)
	}
	defer bundle.Close()

	det, err := detector.New(bundle.Vectorizer, bundle.Classifier)
	if err != nil {
		log.Fatalf("failed to build detector: %v", err)
	}

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  "newscheck",
		Version:  server.Version,
	})
	if err != nil {
		redact.Fatalf("failed to start telemetry: %v", err)
	}

	emitter, err := events.New(cfg.Events)
	if err != nil {
		redact.Fatalf("failed to set up event sinks: %v", err)
	}

	srv, err := server.New(cfg, server.Options{
		Detector:  det,
		Bundle:    bundle,
		Emitter:   emitter,
		Telemetry: tel,
	})
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	acc := bundle.Accuracy
	log.Printf("model ready: features=%d train_accuracy=%s test_accuracy=%s", det.FeatureDim(), acc.Display(acc.Train), acc.Display(acc.Test))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Printf("shutdown error: %v", err)
	}
	tel.Shutdown(shutdownCtx)
}
