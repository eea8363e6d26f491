package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/newscheck/newscheck/internal/events"
)

func main() {
	addr := flag.String("addr", ":8099", "listen address for the prediction event receiver")
	verbose := flag.Bool("verbose", false, "log every event as redacted JSON instead of a summary line")
	flag.Parse()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(*verbose),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("event receiver listening on %s (POST JSON to /events)...", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("receiver error: %v", err)
	}
}

func newRouter(verbose bool) *mux.Router {
	h := receiver{verbose: verbose}
	r := mux.NewRouter()
	r.HandleFunc("/events", h.handleEvent).Methods(http.MethodPost)
	r.HandleFunc("/", h.handleEvent).Methods(http.MethodPost)
	return r
}

type receiver struct {
	verbose bool
}

func (h receiver) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var ev events.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Printf("received malformed event: path=%s len=%d err=%v", r.URL.Path, len(body), err)
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	if h.verbose {
		events.LogEvent(&ev)
	} else {
		log.Printf("received prediction event: request_id=%s source=%s label=%s confidence=%.2f latency_ms=%.2f",
			ev.RequestID, ev.Source, ev.Label, ev.Confidence, ev.LatencyMs)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
}
