// Package storagetest holds a behavioural suite shared by every
// storage.Backend implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FranksOps/patentscout/internal/storage"
)

// Reports returns three reports created one hour apart, oldest first.
// Two share the query "AI shoes".
func Reports(base time.Time) []*storage.Report {
	base = base.UTC().Truncate(time.Second)
	return []*storage.Report{
		{
			ID:        "report-1",
			CreatedAt: base.Add(-2 * time.Hour),
			Summary: storage.ReportSummary{
				Query:        "AI shoes",
				Total:        2,
				TopAssignees: []storage.NameCount{{Name: "Nike", Count: 2}},
				TopInventors: []storage.NameCount{{Name: "Jane Doe", Count: 1}},
			},
			Results: []storage.SearchResult{
				{Title: "Adaptive sole", Summary: "A sole, with commas", Assignee: "Nike", Inventor: "Jane Doe", PublicationDate: "2021-03-04", PatentLink: "https://patents.example/US1"},
				{Title: "Lacing \"system\"", Summary: "Multi\nline", Assignee: "Nike", Inventor: storage.Unknown, PDFLink: "https://patents.example/US2.pdf"},
			},
		},
		{
			ID:        "report-2",
			CreatedAt: base.Add(-1 * time.Hour),
			Summary: storage.ReportSummary{
				Query: "robot arm",
				Total: 0,
			},
		},
		{
			ID:        "report-3",
			CreatedAt: base,
			Summary: storage.ReportSummary{
				Query:        "AI shoes",
				Total:        1,
				TopAssignees: []storage.NameCount{{Name: "Adidas", Count: 1}},
			},
			Results: []storage.SearchResult{
				{Title: "Knit upper", Summary: "No summary found", Assignee: "Adidas", Inventor: storage.Unknown},
			},
		},
	}
}

// Exercise saves the fixture reports into b and checks filtering, paging
// and round-tripping. b must be empty.
func Exercise(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	fixtures := Reports(now)

	for _, r := range fixtures {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save report %s: %v", r.ID, err)
		}
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query reports: %v", err)
	}
	if got := ids(all); !equal(got, []string{"report-3", "report-2", "report-1"}) {
		t.Fatalf("Expected newest first, got %v", got)
	}

	byQuery, err := b.Query(ctx, storage.Filter{Query: "AI shoes"})
	if err != nil {
		t.Fatalf("Failed to query by text: %v", err)
	}
	if got := ids(byQuery); !equal(got, []string{"report-3", "report-1"}) {
		t.Fatalf("Expected query filter to match 2 reports, got %v", got)
	}

	limited, err := b.Query(ctx, storage.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query with paging: %v", err)
	}
	if got := ids(limited); !equal(got, []string{"report-2"}) {
		t.Fatalf("Expected report-2 on second page, got %v", got)
	}

	offsetOnly, err := b.Query(ctx, storage.Filter{Offset: 2})
	if err != nil {
		t.Fatalf("Failed to query with offset: %v", err)
	}
	if got := ids(offsetOnly); !equal(got, []string{"report-1"}) {
		t.Fatalf("Expected report-1 after offset 2, got %v", got)
	}

	since := fixtures[1].CreatedAt.Add(-time.Minute)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	if err != nil {
		t.Fatalf("Failed to query with since: %v", err)
	}
	if got := ids(recent); !equal(got, []string{"report-3", "report-2"}) {
		t.Fatalf("Expected 2 recent reports, got %v", got)
	}

	got, err := b.Get(ctx, "report-1")
	if err != nil {
		t.Fatalf("Failed to get report-1: %v", err)
	}
	if _, err := b.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown ID, got %v", err)
	}

	want := fixtures[0]
	if got.Summary.Query != want.Summary.Query || got.Summary.Total != want.Summary.Total {
		t.Errorf("Expected summary %+v, got %+v", want.Summary, got.Summary)
	}
	if len(got.Summary.TopAssignees) != 1 || got.Summary.TopAssignees[0] != want.Summary.TopAssignees[0] {
		t.Errorf("Expected top assignees %v, got %v", want.Summary.TopAssignees, got.Summary.TopAssignees)
	}
	if len(got.Results) != len(want.Results) {
		t.Fatalf("Expected %d results, got %d", len(want.Results), len(got.Results))
	}
	for i := range want.Results {
		if got.Results[i] != want.Results[i] {
			t.Errorf("Result %d: expected %+v, got %+v", i, want.Results[i], got.Results[i])
		}
	}
	if got.CreatedAt.Unix() != want.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", want.CreatedAt, got.CreatedAt)
	}
}

func ids(reports []*storage.Report) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
