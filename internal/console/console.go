// Package console serves the single-page news checking UI.
package console

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"time"
)

const (
	RobotsTagHeader = "X-Robots-Tag"
	RobotsTagValue  = "noindex, nofollow"
)

//go:embed console.html
var consoleHTML string

var pageTemplate = template.Must(template.New("console").Parse(consoleHTML))

// Page is the data rendered into the page once at startup.
type Page struct {
	Title         string
	TrainAccuracy string // e.g. "97.32" or "N/A"
	TestAccuracy  string
	ModelName     string
	ModelVersion  string
	ScrapeEnabled bool
	// AnalysisDelay is how long the page waits before revealing a verdict.
	AnalysisDelay time.Duration
}

type pageData struct {
	Page
	DelayMs int64
}

// Handler renders the page and serves the cached bytes.
func Handler(p Page) (http.Handler, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, pageData{Page: p, DelayMs: p.AnalysisDelay.Milliseconds()}); err != nil {
		return nil, fmt.Errorf("render console: %w", err)
	}
	body := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set(RobotsTagHeader, RobotsTagValue)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(body)
	}), nil
}
