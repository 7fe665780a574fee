package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/FranksOps/patentscout/internal/metrics"
	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultEnrichTimeout bounds a single patent page fetch.
	DefaultEnrichTimeout = 10 * time.Second
	// DefaultConcurrency is the number of pages fetched in parallel.
	DefaultConcurrency = 5
	// MaxConcurrency caps configured concurrency.
	MaxConcurrency = 10
)

// Reason explains why a result was returned without enrichment.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonNoLink     Reason = "no_link"
	ReasonFetch      Reason = "fetch_error"
	ReasonTimeout    Reason = "timeout"
	ReasonDisallowed Reason = "robots_disallowed"
	ReasonBlocked    Reason = "blocked"
	ReasonHTTPStatus Reason = "http_status"
	ReasonParse      Reason = "parse_error"
	ReasonNoMetadata Reason = "no_metadata"
)

// Outcome is the result of enriching one SearchResult. When Enriched is
// false, Result equals the input and Reason says why.
type Outcome struct {
	Result   storage.SearchResult
	Enriched bool
	Reason   Reason
}

func (o Outcome) label() string {
	if o.Enriched {
		return "enriched"
	}
	return string(o.Reason)
}

// PageFetcher is the part of Fetcher the Enricher depends on.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string) (*Page, error)
}

// EnricherConfig configures an Enricher.
type EnricherConfig struct {
	// Timeout per page, default DefaultEnrichTimeout.
	Timeout time.Duration
	// Concurrency of EnrichAll, clamped to [1, MaxConcurrency].
	Concurrency int
	Logger      *slog.Logger
}

// Enricher replaces a result's title and summary with the citation
// metadata found on its patent page.
type Enricher struct {
	fetcher     PageFetcher
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewEnricher returns an Enricher that fetches pages with fetcher.
func NewEnricher(fetcher PageFetcher, cfg EnricherConfig) *Enricher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEnrichTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency > MaxConcurrency {
		cfg.Concurrency = MaxConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Enricher{
		fetcher:     fetcher,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Enrich fetches result.PatentLink once and overwrites Title with
// <meta name="citation_title"> and Summary with <meta name="description">
// when present. Any failure returns the result unchanged; it is logged and
// counted, never returned.
func (e *Enricher) Enrich(ctx context.Context, result storage.SearchResult) Outcome {
	out, err := e.enrich(ctx, result)
	if !out.Enriched {
		e.logger.Debug("enrichment skipped", "link", result.PatentLink, "reason", out.Reason, "err", err)
	}
	metrics.RecordEnrichment(out.label())
	return out
}

func (e *Enricher) enrich(ctx context.Context, result storage.SearchResult) (Outcome, error) {
	fail := func(r Reason, err error) (Outcome, error) {
		return Outcome{Result: result, Reason: r}, err
	}

	link := strings.TrimSpace(result.PatentLink)
	if link == "" {
		return fail(ReasonNoLink, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	page, err := e.fetcher.Fetch(ctx, link)
	if err != nil {
		switch {
		case errors.Is(err, ErrDisallowed):
			return fail(ReasonDisallowed, err)
		case isTimeout(err):
			return fail(ReasonTimeout, err)
		default:
			return fail(ReasonFetch, err)
		}
	}
	if page.Detection != "" {
		return fail(ReasonBlocked, fmt.Errorf("challenged by %s", page.Detection))
	}
	if page.StatusCode >= 400 {
		return fail(ReasonHTTPStatus, fmt.Errorf("http status %d", page.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return fail(ReasonParse, err)
	}

	enriched := result
	replaced := false
	if title, ok := metaContent(doc, "citation_title"); ok {
		enriched.Title = title
		replaced = true
	}
	if summary, ok := metaContent(doc, "description"); ok {
		enriched.Summary = summary
		replaced = true
	}
	if !replaced {
		return fail(ReasonNoMetadata, nil)
	}

	return Outcome{Result: enriched, Enriched: true}, nil
}

// metaContent returns the trimmed content of the first <meta name=...> tag.
func metaContent(doc *goquery.Document, name string) (string, bool) {
	content, ok := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	if !ok {
		return "", false
	}
	content = strings.TrimSpace(content)
	return content, content != ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// EnrichAll enriches results on a bounded worker pool. The returned slice
// has one Outcome per input, in input order.
func (e *Enricher) EnrichAll(ctx context.Context, results []storage.SearchResult) []Outcome {
	outcomes := make([]Outcome, len(results))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, r := range results {
		g.Go(func() error {
			outcomes[i] = e.Enrich(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Results extracts the result of every outcome, preserving order.
func Results(outcomes []Outcome) []storage.SearchResult {
	results := make([]storage.SearchResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = o.Result
	}
	return results
}
