// Package report aggregates patent search results and renders them as
// text, JSON, HTML and Word documents.
package report

import (
	"sort"
	"time"

	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/google/uuid"
)

// TopN is the length of the assignee and inventor rankings.
const TopN = 3

// Summarize counts assignees and inventors across results, skipping the
// storage.Unknown placeholder, and keeps the TopN of each. Equal counts
// keep the order in which names first appear. results is not modified.
func Summarize(query string, results []storage.SearchResult) storage.ReportSummary {
	assignees := make([]string, 0, len(results))
	inventors := make([]string, 0, len(results))
	for _, r := range results {
		if r.Assignee != storage.Unknown {
			assignees = append(assignees, r.Assignee)
		}
		if r.Inventor != storage.Unknown {
			inventors = append(inventors, r.Inventor)
		}
	}

	return storage.ReportSummary{
		Query:        query,
		Total:        len(results),
		TopAssignees: mostCommon(assignees, TopN),
		TopInventors: mostCommon(inventors, TopN),
	}
}

// mostCommon returns the n most frequent names, never nil.
func mostCommon(names []string, n int) []storage.NameCount {
	counts := make([]storage.NameCount, 0, len(names))
	index := make(map[string]int, len(names))
	for _, name := range names {
		if i, ok := index[name]; ok {
			counts[i].Count++
			continue
		}
		index[name] = len(counts)
		counts = append(counts, storage.NameCount{Name: name, Count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})

	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// Build wraps Summarize into a Report with a fresh ID and UTC timestamp.
// The results slice is copied.
func Build(query string, results []storage.SearchResult) *storage.Report {
	return &storage.Report{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Summary:   Summarize(query, results),
		Results:   append(make([]storage.SearchResult, 0, len(results)), results...),
	}
}
