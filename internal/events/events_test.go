package events

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/newscheck/newscheck/internal/classifier"
	"github.com/newscheck/newscheck/internal/config"
	"github.com/newscheck/newscheck/internal/detector"
)

func testResult() detector.Result {
	return detector.Result{
		Label:         classifier.Real,
		Probabilities: classifier.Probabilities{0.028765, 0.971235},
		Confidence:    97.1235,
		FeatureDim:    5000,
	}
}

func TestBuildEventPreviewLevels(t *testing.T) {
	text := "Contact editor@example.com or +1 (555) 123-4567 about " + strings.Repeat("word ", 60)

	cases := []struct {
		level    string
		empty    bool
		disallow []string
		require  []string
	}{
		{level: LevelMetadata, empty: true},
		{level: "", empty: true},
		{level: LevelRedacted, disallow: []string{"editor@example.com", "555"}, require: []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]"}},
		{level: LevelFull, require: []string{"editor@example.com"}},
	}
	for _, tc := range cases {
		t.Run("level="+tc.level, func(t *testing.T) {
			ev := BuildEvent(BuildParams{Text: text, Result: testResult(), Level: tc.level})
			if tc.empty {
				if ev.Preview != "" {
					t.Fatalf("expected no preview, got %q", ev.Preview)
				}
				return
			}
			for _, d := range tc.disallow {
				if strings.Contains(ev.Preview, d) {
					t.Fatalf("preview leaked %q: %s", d, ev.Preview)
				}
			}
			for _, r := range tc.require {
				if !strings.Contains(ev.Preview, r) {
					t.Fatalf("preview missing %q: %s", r, ev.Preview)
				}
			}
			if !strings.HasSuffix(ev.Preview, "…") {
				t.Fatalf("expected truncated preview, got %q", ev.Preview)
			}
		})
	}
}

func TestBuildEventFields(t *testing.T) {
	ev := BuildEvent(BuildParams{
		Source:       SourceURL,
		SourceURL:    "https://news.example.com/politics/budget?utm=abc",
		Text:         "héllo",
		Result:       testResult(),
		Latency:      1500 * time.Microsecond,
		ModelName:    "lr-tfidf",
		ModelVersion: "3",
	})
	if _, err := uuid.Parse(ev.RequestID); err != nil {
		t.Fatalf("expected uuid request id, got %q", ev.RequestID)
	}
	if ev.Label != "REAL" || ev.Confidence != 97.12 || ev.FeatureDim != 5000 {
		t.Fatalf("unexpected verdict fields %+v", ev)
	}
	if ev.Probabilities.Real != 0.971235 || ev.Probabilities.Fake != 0.028765 {
		t.Fatalf("unexpected probabilities %+v", ev.Probabilities)
	}
	if ev.TextChars != 5 {
		t.Fatalf("expected 5 chars, got %d", ev.TextChars)
	}
	if ev.LatencyMs != 1.5 {
		t.Fatalf("expected 1.5ms, got %v", ev.LatencyMs)
	}
	if strings.Contains(ev.SourceURL, "politics") {
		t.Fatalf("expected source url path to be redacted, got %q", ev.SourceURL)
	}
	if ev.Model.Name != "lr-tfidf" || ev.Source != SourceURL {
		t.Fatalf("unexpected meta %+v", ev)
	}

	if got := BuildEvent(BuildParams{RequestID: "req-7"}); got.RequestID != "req-7" || got.Source != SourceText {
		t.Fatalf("expected supplied id and default source, got %+v", got)
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	for _, id := range []string{"req-1", "req-2"} {
		if err := sink.Deliver(context.Background(), &Event{Version: "1", RequestID: id, Label: "FAKE"}); err != nil {
			t.Fatalf("deliver %s: %v", id, err)
		}
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close sink: %v", err)
	}
	if err := sink.Deliver(context.Background(), &Event{}); err == nil {
		t.Fatalf("expected error after close")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("unmarshal jsonl line: %v", err)
	}
	if decoded.RequestID != "req-1" {
		t.Fatalf("expected request_id req-1, got %s", decoded.RequestID)
	}
}

func TestWebhookSinkHandlesNon2xx(t *testing.T) {
	var calls int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("fail"))
	}))

	sink, err := NewWebhookSink(srv.URL, map[string]string{"X-Test": "1"}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	err = sink.Deliver(context.Background(), &Event{Version: "1", RequestID: "req-1"})
	if err == nil || !strings.Contains(err.Error(), "status 418") {
		t.Fatalf("expected status error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 4xx not to be retried, got %d calls", n)
	}
}

func TestWebhookSinkRetries5xx(t *testing.T) {
	var calls int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "abc" {
			t.Errorf("missing configured header")
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	sink, err := NewWebhookSink(srv.URL, map[string]string{"X-Token": "abc"}, time.Second)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	sink.backoff = time.Millisecond
	if err := sink.Deliver(context.Background(), &Event{Version: "1"}); err != nil {
		t.Fatalf("expected delivery after retries, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestEmitterDropsWhenQueueFull(t *testing.T) {
	wait := make(chan struct{})
	sink := &blockingSink{wait: wait}
	em := NewEmitter(EmitterConfig{QueueSize: 1, Workers: 1, ShutdownTimeout: time.Second}, []Sink{sink})

	ev := &Event{Version: "1", RequestID: "r1"}
	em.Emit(ev)
	em.Emit(ev)
	em.Emit(ev)

	metrics := em.MetricsSnapshot()
	if metrics.Dropped() == 0 {
		t.Fatalf("expected dropped events when queue is full")
	}

	close(wait)
	em.Close(context.Background())

	em.Emit(ev)
	if after := em.MetricsSnapshot(); after.Dropped() <= metrics.Dropped() {
		t.Fatalf("expected emit after close to count as dropped")
	}
}

func TestEmitterWebhookIntegration(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
	)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))

	em, err := New(config.EventsConfig{
		QueueSize:       8,
		Workers:         2,
		ShutdownTimeout: time.Second,
		Sinks:           []config.SinkConfig{{Type: "webhook", URL: srv.URL, Timeout: time.Second}},
	})
	if err != nil {
		t.Fatalf("new emitter: %v", err)
	}
	defer em.Close(context.Background())

	for i := 0; i < 5; i++ {
		em.Emit(BuildEvent(BuildParams{Result: testResult()}))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for webhook events, got %d", n)
		}
		time.Sleep(20 * time.Millisecond)
	}

	metrics := em.MetricsSnapshot()
	if metrics.SinkSuccess("webhook:"+srv.URL) == 0 {
		t.Fatalf("expected sink success counter to increase")
	}
	if metrics.Dropped() != 0 {
		t.Fatalf("did not expect dropped events, got %d", metrics.Dropped())
	}
}

func TestNewWithoutSinks(t *testing.T) {
	em, err := New(config.EventsConfig{})
	if err != nil || em != nil {
		t.Fatalf("expected nil emitter, got %v (err %v)", em, err)
	}
	// nil emitter is inert
	em.Emit(&Event{})
	em.Close(context.Background())

	if _, err := New(config.EventsConfig{Sinks: []config.SinkConfig{{Type: "kafka"}}}); err == nil {
		t.Fatalf("expected error for unknown sink type")
	}
}

type blockingSink struct {
	wait chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(context.Context, *Event) error {
	<-s.wait
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

func newTestServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: cannot open listener: %v", err)
	}
	srv := httptest.NewUnstartedServer(h)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}
