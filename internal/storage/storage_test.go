package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// Ensure Backend interface exists and is implementable
type mockBackend struct{}

func (m *mockBackend) Save(ctx context.Context, report *Report) error { return nil }
func (m *mockBackend) Query(ctx context.Context, filter Filter) ([]*Report, error) {
	return nil, nil
}
func (m *mockBackend) Get(ctx context.Context, id string) (*Report, error) {
	return nil, ErrNotFound
}
func (m *mockBackend) Close() error { return nil }

func TestBackendInterface(t *testing.T) {
	var b Backend = &mockBackend{}
	_ = b
}

func TestReport_JSONFieldNames(t *testing.T) {
	r := Report{
		ID:        "abc",
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Summary: ReportSummary{
			Query:        "AI shoes",
			Total:        1,
			TopAssignees: []NameCount{{Name: "Nike", Count: 1}},
		},
		Results: []SearchResult{{
			Title:      "Smart shoe",
			Inventor:   Unknown,
			Assignee:   "Nike",
			PatentLink: "https://patents.google.com/patent/US1",
			PDFLink:    "https://patentimages.example/US1.pdf",
		}},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := string(data)
	for _, want := range []string{`"top_assignees"`, `"patent_link"`, `"pdf"`, `"publication_date"`, `"created_at"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected JSON to contain %s, got %s", want, out)
		}
	}
}

func TestFilter_Apply(t *testing.T) {
	now := time.Now().UTC()
	reports := []*Report{
		{ID: "old", CreatedAt: now.Add(-2 * time.Hour), Summary: ReportSummary{Query: "a"}},
		{ID: "new", CreatedAt: now, Summary: ReportSummary{Query: "a"}},
		{ID: "mid", CreatedAt: now.Add(-1 * time.Hour), Summary: ReportSummary{Query: "b"}},
	}

	got := Filter{}.Apply(reports)
	if len(got) != 3 || got[0].ID != "new" || got[1].ID != "mid" || got[2].ID != "old" {
		t.Fatalf("expected newest first, got %v", got)
	}

	got = Filter{Query: "a", Limit: 1}.Apply(reports)
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected only newest 'a' report, got %v", got)
	}

	since := now.Add(-90 * time.Minute)
	got = Filter{Since: &since, Offset: 1}.Apply(reports)
	if len(got) != 1 || got[0].ID != "mid" {
		t.Fatalf("expected mid after offset, got %v", got)
	}

	got = Filter{Offset: 10}.Apply(reports)
	if len(got) != 0 {
		t.Fatalf("expected no reports past the end, got %v", got)
	}

	if reports[0].ID != "old" {
		t.Errorf("expected input slice to be left untouched")
	}
}

func TestFind(t *testing.T) {
	reports := []*Report{{ID: "a"}, {ID: "b"}}

	got, err := Find(reports, "b")
	if err != nil || got.ID != "b" {
		t.Fatalf("expected report b, got %v, %v", got, err)
	}

	if _, err := Find(reports, "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
