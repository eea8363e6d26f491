// Package scrape extracts the readable article text from a news page.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/newscheck/newscheck/internal/config"
)

// ErrNoContent is returned when a page has no extractable article text.
var ErrNoContent = errors.New("page has no readable article text")

// ErrInvalidURL is returned for anything but an absolute http or https url.
var ErrInvalidURL = errors.New("invalid article url")

// maxPageBytes caps how much of a page is read before extraction.
const maxPageBytes = 5 << 20

// Article is the extracted page content.
type Article struct {
	URL   string
	Title string
	Text  string
	// Truncated is set when Text was cut to the configured limit.
	Truncated bool
}

// Scraper fetches pages and extracts their main text.
type Scraper struct {
	client   *http.Client
	maxChars int
}

// New builds a scraper from config.
func New(cfg config.ScrapeConfig) *Scraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{
		client:   &http.Client{Timeout: timeout},
		maxChars: cfg.MaxChars,
	}
}

// Fetch downloads rawURL and extracts the article.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (Article, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsedURL.Host == "" || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return Article{}, fmt.Errorf("%w %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return Article{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "newscheck/1.0 (+article check)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Article{}, fmt.Errorf("fetch article: unexpected status %s", resp.Status)
	}

	return s.Extract(io.LimitReader(resp.Body, maxPageBytes), parsedURL)
}

// Extract runs readability over an already fetched page.
func (s *Scraper) Extract(r io.Reader, pageURL *url.URL) (Article, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return Article{}, fmt.Errorf("parse article: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return Article{}, ErrNoContent
	}

	out := Article{
		URL:   pageURL.String(),
		Title: strings.TrimSpace(article.Title),
	}
	out.Text, out.Truncated = truncateRunes(text, s.maxChars)
	return out, nil
}

func truncateRunes(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
