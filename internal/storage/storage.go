package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNotFound is returned by Backend.Get for an unknown report ID.
var ErrNotFound = errors.New("storage: report not found")

// Unknown marks an inventor or assignee the search API did not return.
const Unknown = "Unknown"

// SearchResult represents one patent hit returned by the search API,
// possibly with a title and summary replaced from the patent page.
type SearchResult struct {
	Title           string `json:"title"`
	Summary         string `json:"summary"`
	PublicationDate string `json:"publication_date"`
	Inventor        string `json:"inventor"`
	Assignee        string `json:"assignee"`
	PatentLink      string `json:"patent_link"`
	PDFLink         string `json:"pdf"`
}

// NameCount is a single entry of a frequency ranking.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ReportSummary aggregates a result set for one query.
type ReportSummary struct {
	Query        string      `json:"query"`
	Total        int         `json:"total"`
	TopAssignees []NameCount `json:"top_assignees"`
	TopInventors []NameCount `json:"top_inventors"`
}

// Report is the artifact handed to every output stage.
type Report struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Summary   ReportSummary  `json:"summary"`
	Results   []SearchResult `json:"results"`
}

// Filter allows querying stored reports.
type Filter struct {
	Query  string
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend defines the interface for storing and querying reports.
// Query returns matches newest first. Get wraps ErrNotFound when no report
// has the ID.
type Backend interface {
	Save(ctx context.Context, report *Report) error
	Query(ctx context.Context, filter Filter) ([]*Report, error)
	Get(ctx context.Context, id string) (*Report, error)
	Close() error
}

// Match reports whether r passes the Query and Since conditions of f.
func (f Filter) Match(r *Report) bool {
	if f.Query != "" && r.Summary.Query != f.Query {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Apply filters reports in memory, orders them newest first and applies
// Offset and Limit. Backends without a query engine use it.
func (f Filter) Apply(reports []*Report) []*Report {
	matched := make([]*Report, 0, len(reports))
	for _, r := range reports {
		if f.Match(r) {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []*Report{}
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched
}

// Find returns the report with the given ID.
func Find(reports []*Report, id string) (*Report, error) {
	for _, r := range reports {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
}
