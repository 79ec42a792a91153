// Package scraper turns a URL into plain text for ingestion.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"research-agent/internal/application/port/output"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

var (
	ErrForbidden   = output.ErrForbidden
	ErrNoData      = output.ErrNoData
	ErrNotDocument = output.ErrNotDocument
)

const (
	substantialLength = 100
	maxBodyBytes      = 30 << 20
)

var _ output.ContentExtractor = (*Scraper)(nil)

type Config struct {
	MinTextLength int
	HTTPTimeout   time.Duration
	UserAgent     string
}

func DefaultConfig() Config {
	return Config{
		MinTextLength: 50,
		HTTPTimeout:   20 * time.Second,
		UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	}
}

type Scraper struct {
	client *http.Client
	cfg    Config
	logger output.LoggerPort
}

func New(cfg Config, logger output.LoggerPort) *Scraper {
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 50
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 20 * time.Second
	}
	return &Scraper{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// ExtractWebpage tries a readability pass first and falls back to the
// content selector cascade. renderedHTML, when given, is the DOM as the
// browser sees it and is used if the raw fetch fails.
func (s *Scraper) ExtractWebpage(ctx context.Context, rawURL, renderedHTML string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	body, status, err := s.fetch(ctx, rawURL)
	source := string(body)
	switch {
	case err == nil && status == http.StatusOK:
	case renderedHTML != "":
		s.logger.Debug("Raw fetch unusable, using rendered DOM", "url", rawURL, "status", status, "error", err)
		source = renderedHTML
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return "", ErrForbidden
	default:
		s.logger.Debug("Webpage fetch failed", "url", rawURL, "status", status, "error", err)
		return "", ErrNoData
	}

	if text := s.readable(source, pageURL); len(text) > s.cfg.MinTextLength {
		return text, nil
	}

	text, err := s.cascade(source)
	if err != nil {
		return "", err
	}
	if len(text) <= s.cfg.MinTextLength {
		return "", ErrNoData
	}
	return text, nil
}

func (s *Scraper) readable(source string, pageURL *url.URL) string {
	article, err := readability.FromReader(strings.NewReader(source), pageURL)
	if err != nil {
		s.logger.Debug("Readability failed", "url", pageURL.String(), "error", err)
		return ""
	}
	return collapseSpace(article.TextContent)
}

func (s *Scraper) cascade(source string) (string, error) {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	prune(root)

	doc := goquery.NewDocumentFromNode(root)
	for _, sel := range contentSelectors {
		region := doc.Find(sel).First()
		if region.Length() == 0 {
			continue
		}
		if text := cleanText(region.Text()); len(text) > substantialLength {
			return text, nil
		}
	}
	return cleanText(doc.Find("body").Text()), nil
}

// ExtractDocument downloads a PDF and returns its text page by page.
func (s *Scraper) ExtractDocument(ctx context.Context, rawURL string) (string, error) {
	body, status, err := s.fetch(ctx, rawURL)
	if err != nil || status != http.StatusOK {
		s.logger.Debug("Document fetch failed", "url", rawURL, "status", status, "error", err)
		return "", ErrForbidden
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		return "", ErrNotDocument
	}

	pages, err := pdfPages(body)
	if err != nil {
		s.logger.Warn("PDF parse failed", "url", rawURL, "error", err)
		return "", ErrForbidden
	}

	var parts []string
	for _, p := range pages {
		if text := cleanDocumentPage(p); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoData
	}
	return strings.Join(parts, "\n"), nil
}

func pdfPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
