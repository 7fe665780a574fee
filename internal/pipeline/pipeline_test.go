package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/FranksOps/patentscout/internal/scraper"
	"github.com/FranksOps/patentscout/internal/serp"
	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	results []storage.SearchResult
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(ctx context.Context, query string, limit int) ([]storage.SearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

// pageFetcher serves canned HTML keyed by URL; unknown URLs fail.
type pageFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	seen  []string
}

func (f *pageFetcher) Fetch(ctx context.Context, url string) (*scraper.Page, error) {
	f.mu.Lock()
	f.seen = append(f.seen, url)
	f.mu.Unlock()

	body, ok := f.pages[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return &scraper.Page{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}, nil
}

type memBackend struct {
	saved []*storage.Report
	err   error
}

func (m *memBackend) Save(ctx context.Context, r *storage.Report) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *memBackend) Query(ctx context.Context, f storage.Filter) ([]*storage.Report, error) {
	return f.Apply(m.saved), nil
}

func (m *memBackend) Get(ctx context.Context, id string) (*storage.Report, error) {
	return storage.Find(m.saved, id)
}

func (m *memBackend) Close() error { return nil }

func hit(title, link, assignee, inventor string) storage.SearchResult {
	return storage.SearchResult{
		Title:           title,
		Summary:         "snippet of " + title,
		PublicationDate: "2022-01-01",
		Inventor:        inventor,
		Assignee:        assignee,
		PatentLink:      link,
	}
}

func TestPipeline_Run(t *testing.T) {
	provider := &fakeProvider{results: []storage.SearchResult{
		hit("short 1", "https://p/1", "X", storage.Unknown),
		hit("short 2", "https://p/2", "X", "Ann"),
		hit("short 3", "https://p/3", storage.Unknown, "Bob"),
	}}
	fetcher := &pageFetcher{pages: map[string]string{
		"https://p/1": `<meta name="citation_title" content="Full 1"><meta name="description" content="Abstract 1">`,
		"https://p/3": `<meta name="description" content="Abstract 3">`,
	}}
	backend := &memBackend{}

	p := &Pipeline{
		Provider: provider,
		Enricher: scraper.NewEnricher(fetcher, scraper.EnricherConfig{Concurrency: 2}),
		Backend:  backend,
	}

	rep, err := p.Run(context.Background(), "AI shoes", 11)
	require.NoError(t, err)
	require.Len(t, rep.Results, 3)

	assert.Equal(t, 1, provider.calls)
	assert.Len(t, fetcher.seen, 3)

	assert.Equal(t, "Full 1", rep.Results[0].Title)
	assert.Equal(t, "Abstract 1", rep.Results[0].Summary)
	assert.Equal(t, "short 2", rep.Results[1].Title, "failed fetch keeps the API title")
	assert.Equal(t, "snippet of short 2", rep.Results[1].Summary)
	assert.Equal(t, "short 3", rep.Results[2].Title)
	assert.Equal(t, "Abstract 3", rep.Results[2].Summary)

	assert.Equal(t, "AI shoes", rep.Summary.Query)
	assert.Equal(t, len(rep.Results), rep.Summary.Total)
	assert.Equal(t, []storage.NameCount{{Name: "X", Count: 2}}, rep.Summary.TopAssignees)
	assert.Equal(t, []storage.NameCount{{Name: "Ann", Count: 1}, {Name: "Bob", Count: 1}}, rep.Summary.TopInventors)

	require.Len(t, backend.saved, 1)
	assert.Same(t, rep, backend.saved[0])
}

func TestPipeline_DispatcherErrorsPassThrough(t *testing.T) {
	upstream := &serp.UpstreamError{Provider: "SerpAPI", StatusCode: 500}
	config := &serp.ConfigurationError{Msg: "SerpAPI API key not found."}

	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{"upstream", upstream, func(t *testing.T, err error) {
			var ue *serp.UpstreamError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, 500, ue.StatusCode)
		}},
		{"configuration", config, func(t *testing.T, err error) {
			var ce *serp.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, config.Error(), err.Error())
		}},
		{"invalid count", serp.ErrInvalidCount, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, serp.ErrInvalidCount)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &pageFetcher{}
			backend := &memBackend{}
			p := &Pipeline{
				Provider: &fakeProvider{err: tt.err},
				Enricher: scraper.NewEnricher(fetcher, scraper.EnricherConfig{}),
				Backend:  backend,
			}

			rep, err := p.Run(context.Background(), "AI shoes", 11)
			require.Error(t, err)
			assert.Nil(t, rep, "no partial report")
			assert.Empty(t, fetcher.seen, "no enrichment after a failed search")
			assert.Empty(t, backend.saved)
			tt.check(t, err)
		})
	}
}

func TestPipeline_EmptyResults(t *testing.T) {
	fetcher := &pageFetcher{}
	p := &Pipeline{
		Provider: &fakeProvider{},
		Enricher: scraper.NewEnricher(fetcher, scraper.EnricherConfig{}),
	}

	rep, err := p.Run(context.Background(), "nothing matches", 11)
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Summary.Total)
	assert.Empty(t, rep.Results)
	assert.NotNil(t, rep.Summary.TopAssignees)
	assert.Empty(t, rep.Summary.TopAssignees)
	assert.Empty(t, rep.Summary.TopInventors)
	assert.Empty(t, fetcher.seen)
}

func TestPipeline_WithoutEnricher(t *testing.T) {
	p := &Pipeline{Provider: &fakeProvider{results: []storage.SearchResult{hit("t", "https://p/1", "X", "Y")}}}

	rep, err := p.Run(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, "t", rep.Results[0].Title)
}

func TestPipeline_SaveFailureIsNotFatal(t *testing.T) {
	p := &Pipeline{
		Provider: &fakeProvider{results: []storage.SearchResult{hit("t", "", "X", "Y")}},
		Backend:  &memBackend{err: errors.New("disk full")},
	}

	rep, err := p.Run(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.Total)
}

func TestPipeline_NoProvider(t *testing.T) {
	_, err := (&Pipeline{}).Run(context.Background(), "q", 5)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no search provider"))
}

func TestPipeline_History(t *testing.T) {
	backend := &memBackend{}
	p := &Pipeline{
		Provider: &fakeProvider{results: []storage.SearchResult{hit("t", "", "X", "Y")}},
		Backend:  backend,
	}

	_, err := p.Run(context.Background(), "first", 5)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), "second", 5)
	require.NoError(t, err)

	reports, err := p.History(context.Background(), storage.Filter{Query: "second"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "second", reports[0].Summary.Query)

	_, err = (&Pipeline{}).History(context.Background(), storage.Filter{})
	assert.Error(t, err)
}

func TestPipeline_Report(t *testing.T) {
	backend := &memBackend{}
	p := &Pipeline{
		Provider: &fakeProvider{results: []storage.SearchResult{hit("t", "", "X", "Y")}},
		Backend:  backend,
	}

	rep, err := p.Run(context.Background(), "q", 5)
	require.NoError(t, err)

	got, err := p.Report(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Same(t, rep, got)

	_, err = p.Report(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = (&Pipeline{}).Report(context.Background(), rep.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "config_error", outcomeOf(&serp.ConfigurationError{}))
	assert.Equal(t, "upstream_error", outcomeOf(&serp.UpstreamError{StatusCode: 502}))
	assert.Equal(t, "invalid_input", outcomeOf(serp.ErrEmptyQuery))
	assert.Equal(t, "error", outcomeOf(errors.New("dial tcp: refused")))
}
