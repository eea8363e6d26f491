package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/newscheck/newscheck/internal/artifacts"
	"github.com/newscheck/newscheck/internal/classifier"
	"github.com/newscheck/newscheck/internal/detector"
	"github.com/newscheck/newscheck/internal/events"
	"github.com/newscheck/newscheck/internal/redact"
	"github.com/newscheck/newscheck/internal/scrape"
	"github.com/newscheck/newscheck/internal/telemetry"
)

const noArticleWarning = "No readable article text was found at that URL."

type predictRequest struct {
	Text string `json:"text"`
}

type predictURLRequest struct {
	URL string `json:"url"`
}

type predictResponse struct {
	RequestID         string               `json:"request_id"`
	Label             string               `json:"label"`
	Confidence        float64              `json:"confidence"`
	ConfidenceDisplay string               `json:"confidence_display"`
	Probabilities     events.Probabilities `json:"probabilities"`
	FeatureDim        int                  `json:"feature_dim"`
	SourceURL         string               `json:"source_url,omitempty"`
	Title             string               `json:"title,omitempty"`
	Truncated         bool                 `json:"truncated,omitempty"`
}

type metricsResponse struct {
	Available     bool                `json:"available"`
	TrainAccuracy *float64            `json:"train_accuracy"`
	TestAccuracy  *float64            `json:"test_accuracy"`
	TrainDisplay  string              `json:"train_display"`
	TestDisplay   string              `json:"test_display"`
	FeatureDim    int                 `json:"feature_dim"`
	Model         artifacts.ModelCard `json:"model"`
	Events        *eventCounters      `json:"events,omitempty"`
}

type eventCounters struct {
	Enqueued uint64 `json:"enqueued"`
	Dropped  uint64 `json:"dropped"`
}

type warningBody struct {
	Warning string `json:"warning"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.classify(r.Context(), w, events.SourceText, req.Text, nil)
}

func (s *Server) handlePredictURL(w http.ResponseWriter, r *http.Request) {
	var req predictURLRequest
	if !s.decode(w, r, &req) {
		return
	}

	article, err := s.scraper.Fetch(r.Context(), req.URL)
	switch {
	case err == nil:
	case errors.Is(err, scrape.ErrInvalidURL):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "url must be an absolute http or https url"})
		return
	case errors.Is(err, scrape.ErrNoContent):
		s.telemetry.RecordRejected(r.Context(), string(events.SourceURL))
		writeJSON(w, http.StatusUnprocessableEntity, warningBody{Warning: noArticleWarning})
		return
	default:
		redact.Logf("server: article fetch %s failed: %v", req.URL, err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "could not fetch the article"})
		return
	}

	s.classify(r.Context(), w, events.SourceURL, article.Text, &article)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := metricsResponse{
		Available:    s.accuracy.Available,
		TrainDisplay: s.accuracy.Display(s.accuracy.Train),
		TestDisplay:  s.accuracy.Display(s.accuracy.Test),
		FeatureDim:   s.detector.FeatureDim(),
		Model:        s.card,
	}
	if s.accuracy.Available {
		train, test := s.accuracy.Train, s.accuracy.Test
		resp.TrainAccuracy = &train
		resp.TestAccuracy = &test
	}
	if s.emitter != nil {
		m := s.emitter.MetricsSnapshot()
		resp.Events = &eventCounters{Enqueued: m.Enqueued(), Dropped: m.Dropped()}
	}
	writeJSON(w, http.StatusOK, resp)
}

// classify runs the pipeline for one input and writes the verdict or the warning.
func (s *Server) classify(ctx context.Context, w http.ResponseWriter, source events.Source, text string, article *scrape.Article) {
	requestID := events.EnsureRequestID("")
	w.Header().Set(requestIDHeader, requestID)

	ctx, span := s.startSpan(ctx, "newscheck.predict", map[string]interface{}{
		"newscheck.version":    Version,
		"newscheck.source":     string(source),
		"newscheck.chars":      utf8.RuneCountInString(text),
		"newscheck.request_id": requestID,
	})
	defer span.End()

	start := time.Now()
	res, err := s.detector.Predict(text)
	if errors.Is(err, detector.ErrEmptyText) {
		s.telemetry.RecordRejected(ctx, string(source))
		writeJSON(w, http.StatusUnprocessableEntity, warningBody{Warning: detector.EmptyTextWarning})
		return
	}
	if err != nil {
		span.RecordError(err)
		redact.Logf("server: prediction %s failed: %v", requestID, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "prediction failed"})
		return
	}
	latency := time.Since(start)

	label := res.Label.String()
	s.telemetry.RecordPrediction(ctx, label, string(source), float64(latency.Microseconds())/1000)
	span.SetAttributes(telemetry.SafeAttributes(map[string]interface{}{
		"newscheck.label":      label,
		"newscheck.confidence": res.RoundedConfidence(),
	})...)

	params := events.BuildParams{
		RequestID:    requestID,
		Source:       source,
		Text:         text,
		Result:       res,
		Latency:      latency,
		Level:        s.cfg.Logging.EventLevel,
		ModelName:    s.card.Name,
		ModelVersion: s.card.Version,
	}
	resp := predictResponse{
		RequestID:         requestID,
		Label:             label,
		Confidence:        res.RoundedConfidence(),
		ConfidenceDisplay: res.ConfidenceDisplay(),
		Probabilities: events.Probabilities{
			Fake: res.Probabilities[classifier.Fake],
			Real: res.Probabilities[classifier.Real],
		},
		FeatureDim: res.FeatureDim,
	}
	if article != nil {
		params.SourceURL = article.URL
		resp.SourceURL = article.URL
		resp.Title = article.Title
		resp.Truncated = article.Truncated
	}
	s.emitter.Emit(events.BuildEvent(params))

	writeJSON(w, http.StatusOK, resp)
}

// decode reads a size-limited JSON body. On failure the response is already written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if isRequestTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

func isRequestTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		redact.Logf("server: failed to write response: %v", err)
	}
}
