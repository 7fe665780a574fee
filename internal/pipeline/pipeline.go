// Package pipeline runs a patent search end to end: dispatch the query,
// enrich every hit from its patent page, then summarize into a Report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/patentscout/internal/metrics"
	"github.com/FranksOps/patentscout/internal/report"
	"github.com/FranksOps/patentscout/internal/scraper"
	"github.com/FranksOps/patentscout/internal/serp"
	"github.com/FranksOps/patentscout/internal/storage"
)

// Enricher enriches a result set, returning one outcome per input in order.
type Enricher interface {
	EnrichAll(ctx context.Context, results []storage.SearchResult) []scraper.Outcome
}

// Pipeline wires the dispatcher, enricher and aggregator. Enricher and
// Backend are optional: without an Enricher results keep the API's title
// and snippet, without a Backend reports are not persisted.
type Pipeline struct {
	Provider serp.Provider
	Enricher Enricher
	Backend  storage.Backend
	Logger   *slog.Logger
}

// Run searches for query, enriches up to count results and returns the
// Report. Dispatcher errors are returned unchanged so callers can match
// serp.ConfigurationError and serp.UpstreamError with errors.As. A failed
// history save is logged and does not fail the run.
func (p *Pipeline) Run(ctx context.Context, query string, count int) (*storage.Report, error) {
	if p.Provider == nil {
		return nil, errors.New("pipeline: no search provider configured")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()

	results, err := p.Provider.Search(ctx, query, count)
	if err != nil {
		metrics.RecordSearch(outcomeOf(err), time.Since(start))
		logger.Warn("search failed", "provider", p.Provider.Name(), "query", query, "err", err)
		return nil, err
	}

	if p.Enricher != nil && len(results) > 0 {
		outcomes := p.Enricher.EnrichAll(ctx, results)
		enriched := 0
		for _, o := range outcomes {
			if o.Enriched {
				enriched++
			}
		}
		logger.Info("enrichment finished", "query", query, "results", len(outcomes), "enriched", enriched)
		results = scraper.Results(outcomes)
	}

	rep := report.Build(query, results)
	metrics.RecordSearch("ok", time.Since(start))

	if p.Backend != nil {
		err := p.Backend.Save(ctx, rep)
		metrics.RecordSave(err)
		if err != nil {
			logger.Error("saving report failed", "id", rep.ID, "err", err)
		}
	}

	logger.Info("search completed", "query", query, "total", rep.Summary.Total, "duration", time.Since(start))
	return rep, nil
}

// History returns stored reports matching filter, newest first.
func (p *Pipeline) History(ctx context.Context, filter storage.Filter) ([]*storage.Report, error) {
	if p.Backend == nil {
		return nil, errors.New("pipeline: no history backend configured")
	}
	reports, err := p.Backend.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	return reports, nil
}

// Report returns the stored report with the given ID. Without a Backend
// every ID is reported as storage.ErrNotFound.
func (p *Pipeline) Report(ctx context.Context, id string) (*storage.Report, error) {
	if p.Backend == nil {
		return nil, fmt.Errorf("report %s: no history backend: %w", id, storage.ErrNotFound)
	}
	return p.Backend.Get(ctx, id)
}

func outcomeOf(err error) string {
	var cfgErr *serp.ConfigurationError
	var upErr *serp.UpstreamError
	switch {
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.As(err, &upErr):
		return "upstream_error"
	case errors.Is(err, serp.ErrEmptyQuery), errors.Is(err, serp.ErrInvalidCount):
		return "invalid_input"
	default:
		return "error"
	}
}
