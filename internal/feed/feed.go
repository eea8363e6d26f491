// Package feed checks every item of an RSS or Atom feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/newscheck/newscheck/internal/detector"
	"github.com/newscheck/newscheck/internal/events"
)

// Predictor classifies a piece of text.
type Predictor interface {
	Predict(text string) (detector.Result, error)
}

// Item is the verdict for one feed entry.
type Item struct {
	Title     string
	Link      string
	Published *time.Time
	Result    detector.Result
	// Text is what was classified: the title plus the body without markup.
	Text    string
	Latency time.Duration
	// Skipped is set when the entry carried no text to classify.
	Skipped bool
}

// Report is the outcome of checking a whole feed.
type Report struct {
	Title   string
	Items   []Item
	Checked int
	Skipped int
}

// Checker fetches feeds and runs each entry through a Predictor.
type Checker struct {
	client   *http.Client
	parser   *gofeed.Parser
	det      Predictor
	maxItems int
}

// New returns a checker. maxItems <= 0 checks every entry.
func New(det Predictor, timeout time.Duration, maxItems int) *Checker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Checker{
		client:   &http.Client{Timeout: timeout},
		parser:   gofeed.NewParser(),
		det:      det,
		maxItems: maxItems,
	}
}

// CheckURL downloads and checks the feed at url.
func (c *Checker) CheckURL(ctx context.Context, url string) (Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Report{}, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", "newscheck/1.0 (+feed check)")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := c.client.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("fetch feed: HTTP %d", resp.StatusCode)
	}
	return c.Check(resp.Body)
}

// Check parses a feed document and classifies its entries in order.
func (c *Checker) Check(r io.Reader) (Report, error) {
	parsed, err := c.parser.Parse(r)
	if err != nil {
		return Report{}, fmt.Errorf("parse feed: %w", err)
	}

	report := Report{Title: strings.TrimSpace(parsed.Title)}
	for i, entry := range parsed.Items {
		if c.maxItems > 0 && i >= c.maxItems {
			break
		}
		item := Item{
			Title:     strings.TrimSpace(entry.Title),
			Link:      entry.Link,
			Published: entry.PublishedParsed,
		}

		item.Text = itemText(entry)
		start := time.Now()
		res, err := c.det.Predict(item.Text)
		item.Latency = time.Since(start)
		switch {
		case errors.Is(err, detector.ErrEmptyText):
			item.Skipped = true
			report.Skipped++
		case err != nil:
			return Report{}, fmt.Errorf("check item %q: %w", item.Title, err)
		default:
			item.Result = res
			report.Checked++
		}
		report.Items = append(report.Items, item)
	}
	return report, nil
}

// Events builds one feed event per checked item. Skipped items produce none.
func (r Report) Events(level string, model events.ModelMeta) []*events.Event {
	out := make([]*events.Event, 0, r.Checked)
	for _, it := range r.Items {
		if it.Skipped {
			continue
		}
		out = append(out, events.BuildEvent(events.BuildParams{
			Source:       events.SourceFeed,
			SourceURL:    it.Link,
			Text:         it.Text,
			Result:       it.Result,
			Latency:      it.Latency,
			Level:        level,
			ModelName:    model.Name,
			ModelVersion: model.Version,
		}))
	}
	return out
}

// itemText joins the title with the richest body the entry carries, with markup removed.
func itemText(entry *gofeed.Item) string {
	body := entry.Content
	if strings.TrimSpace(body) == "" {
		body = entry.Description
	}
	parts := []string{strings.TrimSpace(entry.Title)}
	if text := plainText(body); text != "" {
		parts = append(parts, text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func plainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
