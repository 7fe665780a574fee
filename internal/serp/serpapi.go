package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/FranksOps/patentscout/pkg/httpclient"
)

// DefaultEndpoint is the SerpAPI search endpoint.
const DefaultEndpoint = "https://serpapi.com/search"

const (
	noTitle   = "No title found"
	noSummary = "No summary found"
)

// GooglePatentsConfig configures the SerpAPI Google Patents provider.
type GooglePatentsConfig struct {
	APIKey string
	// Endpoint overrides DefaultEndpoint; tests point it at httptest.
	Endpoint string
	Timeout  time.Duration
	// Client is used as-is when set; Timeout is then ignored.
	Client *httpclient.Client
}

// GooglePatents searches Google Patents through SerpAPI. Every call is a
// single uncached request; there is no retry.
type GooglePatents struct {
	apiKey   string
	endpoint string
	client   *httpclient.Client
}

var _ Provider = (*GooglePatents)(nil)

// NewGooglePatents builds the provider. A missing API key is not an error
// here; Search reports it so callers see a ConfigurationError per query.
func NewGooglePatents(cfg GooglePatentsConfig) (*GooglePatents, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("creating serpapi client: %w", err)
		}
	}

	return &GooglePatents{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		endpoint: cfg.Endpoint,
		client:   client,
	}, nil
}

// Name returns the provider identifier.
func (g *GooglePatents) Name() string { return "SerpAPI" }

// Search runs query against the google_patents engine and returns up to
// limit results. Absent fields get placeholder values: "No title found",
// "No summary found", and storage.Unknown for inventor, assignee and
// publication date.
func (g *GooglePatents) Search(ctx context.Context, query string, limit int) ([]storage.SearchResult, error) {
	if g.apiKey == "" {
		return nil, &ConfigurationError{Msg: "SerpAPI API key not found. Set PATENTSCOUT_API_KEY or api_key in the config file."}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit < 1 || limit > MaxResults {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidCount, limit, MaxResults)
	}

	params := url.Values{
		"engine":   {"google_patents"},
		"q":        {query},
		"api_key":  {g.apiKey},
		"num":      {strconv.Itoa(limit)},
		"output":   {"json"},
		"no_cache": {"true"},
	}

	resp, err := g.client.Get(ctx, g.endpoint+"?"+params.Encode(), http.Header{"Accept": {"application/json"}})
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{Provider: g.Name(), StatusCode: resp.StatusCode}
	}

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing serpapi response: %w", err)
	}

	organic := body.OrganicResults
	if len(organic) > limit {
		organic = organic[:limit]
	}

	results := make([]storage.SearchResult, 0, len(organic))
	for _, o := range organic {
		results = append(results, o.toResult())
	}
	return results, nil
}

// SerpAPI JSON structures. Pointers distinguish an absent field from an
// empty one, matching how placeholders are applied.
type serpResponse struct {
	OrganicResults []serpResult `json:"organic_results"`
}

type serpResult struct {
	PatentLink      *string `json:"patent_link"`
	Title           *string `json:"title"`
	Snippet         *string `json:"snippet"`
	PublicationDate *string `json:"publication_date"`
	Inventor        *string `json:"inventor"`
	Assignee        *string `json:"assignee"`
	PDF             *string `json:"pdf"`
}

func (r serpResult) toResult() storage.SearchResult {
	return storage.SearchResult{
		Title:           valueOr(r.Title, noTitle),
		Summary:         valueOr(r.Snippet, noSummary),
		PublicationDate: valueOr(r.PublicationDate, storage.Unknown),
		Inventor:        valueOr(r.Inventor, storage.Unknown),
		Assignee:        valueOr(r.Assignee, storage.Unknown),
		PatentLink:      valueOr(r.PatentLink, ""),
		PDFLink:         valueOr(r.PDF, ""),
	}
}

func valueOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
