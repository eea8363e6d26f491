package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if cfg.Server.MaxRequestBodyBytes <= 0 {
		return errors.New("server.max_request_body_bytes must be positive")
	}

	if err := validateArtifactsConfig(cfg.Artifacts); err != nil {
		return err
	}

	switch cfg.Classifier.Backend {
	case "native", "onnx":
	default:
		return fmt.Errorf("classifier.backend must be native or onnx, got %q", cfg.Classifier.Backend)
	}

	if cfg.Console.AnalysisDelay < 0 {
		return errors.New("console.analysis_delay must not be negative")
	}

	switch cfg.Logging.EventLevel {
	case "metadata", "redacted", "full":
	default:
		return fmt.Errorf("logging.event_level must be metadata, redacted or full, got %q", cfg.Logging.EventLevel)
	}

	if err := validateEventsConfig(cfg.Events); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validateArtifactsConfig(a ArtifactsConfig) error {
	if strings.TrimSpace(a.Dir) == "" {
		return errors.New("artifacts.dir must be set")
	}

	files := map[string]string{
		"artifacts.vectorizer_file": a.VectorizerFile,
		"artifacts.model_file":      a.ModelFile,
		"artifacts.onnx_model_file": a.OnnxModelFile,
		"artifacts.accuracy_file":   a.AccuracyFile,
		"artifacts.model_card_file": a.ModelCardFile,
	}
	for field, name := range files {
		if err := validateArtifactName(field, name); err != nil {
			return err
		}
	}

	src := strings.TrimSpace(a.Source)
	if src == "" {
		return nil
	}
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return fmt.Errorf("artifacts.source %q is not a valid bucket url", src)
	}
	switch u.Scheme {
	case "gs", "s3":
	default:
		return fmt.Errorf("artifacts.source scheme must be gs or s3, got %q", u.Scheme)
	}
	if a.S3Endpoint != "" {
		e, err := url.Parse(a.S3Endpoint)
		if err != nil || e.Scheme == "" || e.Host == "" {
			return errors.New("artifacts.s3_endpoint is not a valid url")
		}
	}
	if (a.S3AccessKeyID == "") != (a.S3SecretAccessKey == "") {
		return errors.New("artifacts.s3_access_key_id and artifacts.s3_secret_access_key must be set together")
	}
	return nil
}

// validateArtifactName keeps artifact identifiers as plain file names inside artifacts.dir.
func validateArtifactName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%s must be set", field)
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%s must be a plain file name, got %q", field, name)
	}
	return nil
}

func validateEventsConfig(e EventsConfig) error {
	for i, s := range e.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("events sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("events sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("events sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("events sink %d (webhook) url must be http or https", i)
			}
		default:
			return fmt.Errorf("events sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}
