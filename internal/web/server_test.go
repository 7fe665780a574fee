package web

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FranksOps/patentscout/internal/report"
	"github.com/FranksOps/patentscout/internal/serp"
	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	err        error
	historyErr error
	reports    []*storage.Report
	// stored records every successful Run so Report can find it.
	stored    []*storage.Report
	noBackend bool
	reportErr error

	calls      int
	lastQuery  string
	lastCount  int
	lastFilter storage.Filter
}

func (f *fakeSearcher) Run(ctx context.Context, query string, count int) (*storage.Report, error) {
	f.calls++
	f.lastQuery, f.lastCount = query, count
	if f.err != nil {
		return nil, f.err
	}
	rep := report.Build(query, []storage.SearchResult{
		{Title: "Smart shoe", Summary: "A shoe.", PublicationDate: "2020-01-01", Inventor: "Jane", Assignee: "X", PatentLink: "https://patents.google.com/patent/US1/en"},
		{Title: "Smart sole", Summary: "A sole.", PublicationDate: "2021-01-01", Inventor: storage.Unknown, Assignee: "X"},
	})
	if !f.noBackend {
		f.stored = append(f.stored, rep)
	}
	return rep, nil
}

func (f *fakeSearcher) Report(ctx context.Context, id string) (*storage.Report, error) {
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return storage.Find(f.stored, id)
}

func (f *fakeSearcher) History(ctx context.Context, filter storage.Filter) ([]*storage.Report, error) {
	f.lastFilter = filter
	return f.reports, f.historyErr
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	s := New(&fakeSearcher{}, "", nil)

	rec := do(t, s, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<form action="/search"`)
	assert.Contains(t, rec.Body.String(), `value="11"`)
}

func TestSearchPage(t *testing.T) {
	f := &fakeSearcher{}
	s := New(f, "", nil)

	rec := do(t, s, "/search?q=AI+shoes&num=20")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AI shoes", f.lastQuery)
	assert.Equal(t, 20, f.lastCount)

	body := rec.Body.String()
	assert.Contains(t, body, "Found 2 patents for your query!")
	assert.Contains(t, body, "<li>X (2)</li>")
	assert.Contains(t, body, "1. Smart shoe")
}

func TestSearch_InputValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		msg    string
	}{
		{"empty query", "/search?q=+++", emptyQueryMsg},
		{"num too small", "/search?q=x&num=10", "num must be a number between 11 and 50"},
		{"num too large", "/search?q=x&num=51", "num must be a number between 11 and 50"},
		{"num not a number", "/search?q=x&num=abc", "num must be a number between 11 and 50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSearcher{}
			rec := do(t, New(f, "", nil), tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.msg)
			assert.Zero(t, f.calls, "no search for invalid input")
		})
	}
}

func TestAPISearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"configuration", &serp.ConfigurationError{Msg: "SerpAPI API key not found."}, http.StatusInternalServerError, "SerpAPI API key not found."},
		{"upstream", &serp.UpstreamError{Provider: "SerpAPI", StatusCode: 401}, http.StatusBadGateway, "error from SerpAPI: 401"},
		{"invalid count", serp.ErrInvalidCount, http.StatusBadRequest, "result count out of range"},
		{"other", errors.New("dial tcp: refused"), http.StatusInternalServerError, "search failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(&fakeSearcher{err: tt.err}, "", nil), "/api/search?q=AI+shoes")

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestAPISearch(t *testing.T) {
	f := &fakeSearcher{}
	rec := do(t, New(f, "", nil), "/api/search?q=AI+shoes")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultNum, f.lastCount)

	var rep storage.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 2, rep.Summary.Total)
	assert.Equal(t, []storage.NameCount{{Name: "X", Count: 2}}, rep.Summary.TopAssignees)
}

func TestSearchPage_UpstreamError(t *testing.T) {
	rec := do(t, New(&fakeSearcher{err: &serp.UpstreamError{Provider: "SerpAPI", StatusCode: 500}}, "", nil), "/search?q=x")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div class="error">error from SerpAPI: 500</div>`)
	assert.Contains(t, rec.Body.String(), `<form action="/search"`)
}

func assertDocx(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.DocxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="patent_report.docx"`)

	_, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	assert.NoError(t, err)
}

func TestDocxDownload_UsesStoredReport(t *testing.T) {
	f := &fakeSearcher{}
	s := New(f, "", nil)

	rec := do(t, s, "/search?q=AI+shoes&num=11")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.stored, 1)
	id := f.stored[0].ID
	assert.Contains(t, rec.Body.String(), `href="/reports/`+id+`.docx?q=AI%20shoes&num=11"`)

	rec = do(t, s, "/reports/"+id+".docx?q=AI+shoes&num=11")
	assertDocx(t, rec)
	assert.Equal(t, 1, f.calls, "download must not search again")
	assert.Len(t, f.stored, 1)
}

func TestDocxDownload_SearchesWhenNotStored(t *testing.T) {
	f := &fakeSearcher{noBackend: true}
	rec := do(t, New(f, "", nil), "/reports/unknown.docx?q=AI+shoes&num=11")

	assertDocx(t, rec)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "AI shoes", f.lastQuery)
	assert.Equal(t, 11, f.lastCount)
}

func TestDocxDownload_Errors(t *testing.T) {
	tests := []struct {
		name   string
		f      *fakeSearcher
		target string
		code   int
	}{
		{"unknown id without query", &fakeSearcher{}, "/reports/unknown.docx", http.StatusNotFound},
		{"not a docx", &fakeSearcher{}, "/reports/abc", http.StatusNotFound},
		{"bad num on fallback", &fakeSearcher{}, "/reports/unknown.docx?q=x&num=5", http.StatusBadRequest},
		{"store failure", &fakeSearcher{reportErr: errors.New("db down")}, "/reports/r1.docx?q=x", http.StatusInternalServerError},
		{"upstream on fallback", &fakeSearcher{err: &serp.UpstreamError{Provider: "SerpAPI", StatusCode: 401}}, "/reports/r1.docx?q=x", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(tt.f, "", nil), tt.target)
			assert.Equal(t, tt.code, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestShutdownBeforeListen(t *testing.T) {
	s := New(&fakeSearcher{}, "127.0.0.1:0", nil)
	require.NoError(t, s.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe kept running after Shutdown")
	}
}

func TestAPIHistory(t *testing.T) {
	f := &fakeSearcher{reports: []*storage.Report{{ID: "r1", Summary: storage.ReportSummary{Query: "AI shoes"}}}}
	rec := do(t, New(f, "", nil), "/api/history?query=AI+shoes&limit=5&offset=2&since=2025-01-01T00:00:00Z")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AI shoes", f.lastFilter.Query)
	assert.Equal(t, 5, f.lastFilter.Limit)
	assert.Equal(t, 2, f.lastFilter.Offset)
	require.NotNil(t, f.lastFilter.Since)
	assert.True(t, f.lastFilter.Since.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	var reports []storage.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "r1", reports[0].ID)
}

func TestAPIHistory_Errors(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, do(t, New(&fakeSearcher{}, "", nil), "/api/history?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, New(&fakeSearcher{}, "", nil), "/api/history?since=yesterday").Code)

	rec := do(t, New(&fakeSearcher{historyErr: errors.New("db down")}, "", nil), "/api/history")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, New(&fakeSearcher{}, "", nil), "/api/history")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s := New(&fakeSearcher{}, "", nil)

	rec := do(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestParseNum(t *testing.T) {
	n, err := parseNum("")
	require.NoError(t, err)
	assert.Equal(t, DefaultNum, n)

	n, err = parseNum("50")
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	_, err = parseNum("0")
	assert.Error(t, err)
}
