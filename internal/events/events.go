// Package events records served predictions to JSONL files and webhooks.
package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/newscheck/newscheck/internal/config"
)

// NewSinks builds the sinks listed in config.
func NewSinks(cfg config.EventsConfig) ([]Sink, error) {
	sinks := make([]Sink, 0, len(cfg.Sinks))
	for i, sc := range cfg.Sinks {
		var (
			s   Sink
			err error
		)
		switch strings.ToLower(strings.TrimSpace(sc.Type)) {
		case "file_jsonl":
			s, err = NewFileSink(sc.Path)
		case "webhook":
			s, err = NewWebhookSink(sc.URL, sc.Headers, sc.Timeout)
		default:
			err = fmt.Errorf("unknown sink type %q", sc.Type)
		}
		if err != nil {
			for _, opened := range sinks {
				_ = opened.Close(context.Background())
			}
			return nil, fmt.Errorf("events.sinks[%d]: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// New returns an emitter for the configured sinks, or nil when none are configured.
// A nil *Emitter is safe to Emit to and Close.
func New(cfg config.EventsConfig) (*Emitter, error) {
	if len(cfg.Sinks) == 0 {
		return nil, nil
	}
	sinks, err := NewSinks(cfg)
	if err != nil {
		return nil, err
	}
	return NewEmitter(EmitterConfig{
		QueueSize:       cfg.QueueSize,
		Workers:         cfg.Workers,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, sinks), nil
}
