// Package capture extracts text from the active page and stores it in the
// retrieval index.
package capture

import (
	"context"
	"errors"
	"fmt"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 50

	outerHTMLJS = `() => document.documentElement.outerHTML`
	scrollTopJS = `() => { window.scrollTo({ top: 0, left: 0, behavior: 'smooth' }); }`
)

type Outcome string

const (
	Stored    Outcome = "stored"
	Forbidden Outcome = "forbidden"
	NoData    Outcome = "no_data"
)

type UseCase struct {
	extractor output.ContentExtractor
	index     output.RetrievalIndex
	browser   output.BrowserPort
	splitter  textsplitter.RecursiveCharacter
	logger    output.LoggerPort
	metrics   output.MetricsPort
}

func New(
	extractor output.ContentExtractor,
	index output.RetrievalIndex,
	browser output.BrowserPort,
	logger output.LoggerPort,
	metrics output.MetricsPort,
	chunkSize, chunkOverlap int,
) *UseCase {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	return &UseCase{
		extractor: extractor,
		index:     index,
		browser:   browser,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger:  logger,
		metrics: metrics,
	}
}

// Capture returns the page text. Errors are classified into Forbidden and
// NoData; any other failure counts as Forbidden.
func (uc *UseCase) Capture(ctx context.Context, page output.PagePort, isDocument bool) (string, Outcome) {
	url := page.URL()

	var (
		text string
		err  error
	)
	if isDocument {
		text, err = uc.extractor.ExtractDocument(ctx, url)
	} else {
		rendered, evalErr := page.Eval(ctx, outerHTMLJS)
		if evalErr != nil {
			uc.logger.Debug("Rendered DOM unavailable", "url", url, "error", evalErr)
		}
		text, err = uc.extractor.ExtractWebpage(ctx, url, rendered)
	}

	switch {
	case err == nil:
		return text, Stored
	case errors.Is(err, output.ErrNoData), errors.Is(err, output.ErrNotDocument):
		uc.logger.Info("No text extracted", "url", url, "document", isDocument, "error", err)
		return "", NoData
	default:
		uc.logger.Warn("Extraction failed", "url", url, "document", isDocument, "error", err)
		return "", Forbidden
	}
}

// Ingest splits text into chunks tagged with source, title and domain.
func (uc *UseCase) Ingest(ctx context.Context, text, url string) (int, error) {
	chunks, err := uc.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("split text: %w", err)
	}

	title, domain := entity.SourceMetadata(url)
	docs := make([]entity.Document, 0, len(chunks))
	for _, chunk := range chunks {
		docs = append(docs, entity.Document{
			Content: chunk,
			Source:  url,
			Title:   title,
			Domain:  domain,
		})
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if err := uc.index.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("index add: %w", err)
	}
	return len(docs), nil
}

// Store captures and ingests the active page and records a trace.
func (uc *UseCase) Store(ctx context.Context, state *entity.ResearchState, page output.PagePort) string {
	url := page.URL()

	text, outcome := uc.Capture(ctx, page, state.IsDocumentPage)
	if outcome == Stored {
		n, err := uc.Ingest(ctx, text, url)
		if err != nil {
			uc.logger.Error("Ingest failed", "url", url, "error", err)
			outcome = Forbidden
		} else {
			uc.logger.Info("Page ingested", "url", url, "chunks", n)
		}
	}
	uc.metrics.CaptureFinished(string(outcome))

	switch outcome {
	case Stored:
		return state.Trace("Scraped the url %s and stored the information in a vector database for future reference", url)
	case NoData:
		return state.Trace("No textual content found on the webpage %s, try looking for url that has data", url)
	default:
		return state.Trace("Scraping the webpage %s failed, should try another url", url)
	}
}

// CloseOpened closes a tab opened by a click and returns to the previous
// tab scrolled to the top. A page that was not opened by a click stays.
func (uc *UseCase) CloseOpened(ctx context.Context, state *entity.ResearchState, page output.PagePort) output.PagePort {
	if !state.NewPage {
		if _, err := page.Eval(ctx, scrollTopJS); err != nil {
			uc.logger.Debug("Scroll reset failed", "error", err)
		}
		return page
	}

	opened := page.URL()
	next, err := uc.browser.ClosePage(ctx, page)
	if err != nil {
		uc.logger.Warn("Failed to close opened tab", "url", opened, "error", err)
		return page
	}
	state.NewPage = false

	if _, err := next.Eval(ctx, scrollTopJS); err != nil {
		uc.logger.Debug("Scroll reset failed", "error", err)
	}
	state.Trace("Closed the opened link %s and switched to %s", opened, next.URL())
	return next
}
