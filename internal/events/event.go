package events

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/newscheck/newscheck/internal/detector"
	"github.com/newscheck/newscheck/internal/redact"
)

// Source says where the classified text came from.
type Source string

const (
	SourceText Source = "text"
	SourceURL  Source = "url"
	SourceFeed Source = "feed"
)

// Event levels control how much of the input is copied into an event.
const (
	LevelMetadata = "metadata"
	LevelRedacted = "redacted"
	LevelFull     = "full"
)

const previewRunes = 200

type Probabilities struct {
	Fake float64 `json:"fake"`
	Real float64 `json:"real"`
}

type ModelMeta struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Event is the record of one served prediction.
type Event struct {
	Version       string        `json:"version"`
	Timestamp     time.Time     `json:"timestamp"`
	RequestID     string        `json:"request_id"`
	Source        Source        `json:"source"`
	SourceURL     string        `json:"source_url,omitempty"`
	Label         string        `json:"label"`
	Confidence    float64       `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
	FeatureDim    int           `json:"feature_dim"`
	TextChars     int           `json:"text_chars"`
	Preview       string        `json:"preview,omitempty"`
	LatencyMs     float64       `json:"latency_ms"`
	Model         ModelMeta     `json:"model"`
}

// BuildParams collects the inputs of one prediction.
type BuildParams struct {
	RequestID    string
	Source       Source
	SourceURL    string
	Text         string
	Result       detector.Result
	Latency      time.Duration
	Level        string
	ModelName    string
	ModelVersion string
}

// BuildEvent assembles the event for a finished prediction.
func BuildEvent(p BuildParams) *Event {
	src := p.Source
	if src == "" {
		src = SourceText
	}
	return &Event{
		Version:    "1",
		Timestamp:  time.Now().UTC(),
		RequestID:  EnsureRequestID(p.RequestID),
		Source:     src,
		SourceURL:  redact.String(p.SourceURL),
		Label:      p.Result.Label.String(),
		Confidence: p.Result.RoundedConfidence(),
		Probabilities: Probabilities{
			Fake: p.Result.Probabilities[0],
			Real: p.Result.Probabilities[1],
		},
		FeatureDim: p.Result.FeatureDim,
		TextChars:  utf8.RuneCountInString(p.Text),
		Preview:    buildPreview(p.Level, p.Text),
		LatencyMs:  float64(p.Latency) / float64(time.Millisecond),
		Model: ModelMeta{
			Name:    p.ModelName,
			Version: p.ModelVersion,
		},
	}
}

// EnsureRequestID returns id, or a fresh UUID when id is empty.
func EnsureRequestID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

// LogEvent prints a redacted JSON representation of the event.
func LogEvent(ev *Event) {
	if ev == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		redact.Logf("events: failed to marshal event: %v", err)
		return
	}
	redact.Logf("events: %s", string(data))
}

var (
	emailRegex = regexp.MustCompile(`(?i)[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRegex = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
	tokenRegex = regexp.MustCompile(`[A-Za-z0-9_\-]{20,}`)
)

func buildPreview(level, text string) string {
	switch level {
	case LevelFull:
		return redact.String(truncate(strings.TrimSpace(text), previewRunes))
	case LevelRedacted:
		return redact.String(simpleRedact(truncate(strings.TrimSpace(text), previewRunes)))
	default:
		// metadata-only: no preview
		return ""
	}
}

func simpleRedact(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = phoneRegex.ReplaceAllString(s, "[REDACTED_PHONE]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	return s
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}
