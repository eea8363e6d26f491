package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/newscheck/newscheck/internal/artifacts"
	"github.com/newscheck/newscheck/internal/classifier"
	"github.com/newscheck/newscheck/internal/config"
	"github.com/newscheck/newscheck/internal/detector"
	"github.com/newscheck/newscheck/internal/events"
	"github.com/newscheck/newscheck/internal/feed"
	"github.com/newscheck/newscheck/internal/redact"
	"github.com/newscheck/newscheck/internal/scrape"
)

// exitWarning is used when there was nothing to classify.
const exitWarning = 2

type verdict struct {
	Label             string        `json:"label"`
	Confidence        float64       `json:"confidence"`
	ConfidenceDisplay string        `json:"confidence_display"`
	Probabilities     probabilities `json:"probabilities"`
	FeatureDim        int           `json:"feature_dim"`
	SourceURL         string        `json:"source_url,omitempty"`
	Title             string        `json:"title,omitempty"`
}

type probabilities struct {
	Fake float64 `json:"fake"`
	Real float64 `json:"real"`
}

type feedItem struct {
	Title     string     `json:"title"`
	Link      string     `json:"link,omitempty"`
	Published *time.Time `json:"published,omitempty"`
	Skipped   bool       `json:"skipped"`
	Verdict   *verdict   `json:"verdict,omitempty"`
}

type feedOutput struct {
	Title   string     `json:"title"`
	Checked int        `json:"checked"`
	Skipped int        `json:"skipped"`
	Items   []feedItem `json:"items"`
}

func main() {
	cfgPath := flag.String("config", "newscheck.yaml", "Path to newscheck config file")
	text := flag.String("text", "", "article text to classify")
	file := flag.String("file", "", "read article text from a file ('-' for stdin)")
	pageURL := flag.String("url", "", "fetch an article page and classify its main text")
	feedURL := flag.String("feed", "", "classify every entry of an RSS or Atom feed")
	maxItems := flag.Int("max-items", 0, "check at most this many feed entries (0 = all)")
	asJSON := flag.Bool("json", false, "print JSON instead of text")
	bench := flag.Int("bench", 0, "repeat the prediction n times and print latency percentiles")
	flag.Parse()

	if n := countSet(*text, *file, *pageURL, *feedURL); n != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -text, -file, -url or -feed is required")
		flag.Usage()
		os.Exit(exitWarning)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bundle, err := artifacts.Load(ctx, cfg.Artifacts, cfg.Classifier)
	if err != nil {
		redact.Fatalf("load model artifacts: %v", err)
	}
	defer bundle.Close()

	det, err := detector.New(bundle.Vectorizer, bundle.Classifier)
	if err != nil {
		log.Fatalf("build detector: %v", err)
	}

	emitter, err := events.New(cfg.Events)
	if err != nil {
		log.Fatalf("init events: %v", err)
	}
	defer closeEmitter(emitter, cfg.Events.ShutdownTimeout)
	model := events.ModelMeta{Name: bundle.Card.Name, Version: bundle.Card.Version}

	if *feedURL != "" {
		report, err := feed.New(det, cfg.Scrape.Timeout, *maxItems).CheckURL(ctx, *feedURL)
		if err != nil {
			redact.Fatalf("check feed: %v", err)
		}
		for _, ev := range report.Events(cfg.Logging.EventLevel, model) {
			emitter.Emit(ev)
		}
		printFeed(report, *asJSON)
		return
	}

	input := *text
	var article *scrape.Article
	switch {
	case *file != "":
		input, err = readInput(*file)
		if err != nil {
			log.Fatalf("read input: %v", err)
		}
	case *pageURL != "":
		a, err := scrape.New(cfg.Scrape).Fetch(ctx, *pageURL)
		if errors.Is(err, scrape.ErrNoContent) {
			fmt.Println("No readable article text was found at that URL.")
			os.Exit(exitWarning)
		}
		if err != nil {
			redact.Fatalf("fetch article: %v", err)
		}
		article = &a
		input = a.Text
	}

	if *bench > 0 {
		runBench(det, input, *bench)
		return
	}

	start := time.Now()
	res, err := det.Predict(input)
	latency := time.Since(start)
	if errors.Is(err, detector.ErrEmptyText) {
		fmt.Println(detector.EmptyTextWarning)
		os.Exit(exitWarning)
	}
	if err != nil {
		log.Fatalf("predict: %v", err)
	}

	v := toVerdict(res)
	params := events.BuildParams{
		Source:       events.SourceText,
		Text:         input,
		Result:       res,
		Latency:      latency,
		Level:        cfg.Logging.EventLevel,
		ModelName:    model.Name,
		ModelVersion: model.Version,
	}
	if article != nil {
		v.SourceURL = article.URL
		v.Title = article.Title
		params.Source = events.SourceURL
		params.SourceURL = article.URL
	}
	emitter.Emit(events.BuildEvent(params))
	if *asJSON {
		printJSON(v)
		return
	}
	fmt.Printf("%s (%s%%)\n", v.Label, v.ConfidenceDisplay)
}

func closeEmitter(em *events.Emitter, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	em.Close(ctx)
}

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return n
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func toVerdict(res detector.Result) verdict {
	return verdict{
		Label:             res.Label.String(),
		Confidence:        res.RoundedConfidence(),
		ConfidenceDisplay: res.ConfidenceDisplay(),
		Probabilities: probabilities{
			Fake: res.Probabilities[classifier.Fake],
			Real: res.Probabilities[classifier.Real],
		},
		FeatureDim: res.FeatureDim,
	}
}

func printFeed(report feed.Report, asJSON bool) {
	if asJSON {
		out := feedOutput{
			Title:   report.Title,
			Checked: report.Checked,
			Skipped: report.Skipped,
			Items:   make([]feedItem, 0, len(report.Items)),
		}
		for _, it := range report.Items {
			item := feedItem{Title: it.Title, Link: it.Link, Published: it.Published, Skipped: it.Skipped}
			if !it.Skipped {
				v := toVerdict(it.Result)
				item.Verdict = &v
			}
			out.Items = append(out.Items, item)
		}
		printJSON(out)
		return
	}

	if report.Title != "" {
		fmt.Println(report.Title)
	}
	for _, it := range report.Items {
		if it.Skipped {
			fmt.Printf("%-16s %s\n", "SKIPPED", it.Title)
			continue
		}
		fmt.Printf("%-16s %s\n", fmt.Sprintf("%s (%s%%)", it.Result.Label, it.Result.ConfidenceDisplay()), it.Title)
	}
	fmt.Printf("checked=%d skipped=%d\n", report.Checked, report.Skipped)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}

func runBench(det *detector.Detector, text string, n int) {
	if detector.Blank(text) {
		fmt.Println(detector.EmptyTextWarning)
		os.Exit(exitWarning)
	}

	// Warmup
	for i := 0; i < 5; i++ {
		if _, err := det.Predict(text); err != nil {
			log.Fatalf("warmup predict failed: %v", err)
		}
	}

	durations := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		if _, err := det.Predict(text); err != nil {
			log.Fatalf("predict failed: %v", err)
		}
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d avg_ms=%.3f p50_ms=%.3f p95_ms=%.3f features=%d\n",
		len(durations),
		avg,
		p50,
		p95,
		det.FeatureDim(),
	)
}
