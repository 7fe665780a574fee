package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/patentscout/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order. One row holds one report; nested
// values are JSON encoded.
var headers = []string{
	"id",
	"query",
	"total",
	"created_at",
	"top_assignees_json",
	"top_inventors_json",
	"results_json",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func (b *csvBackend) Save(ctx context.Context, report *storage.Report) error {
	assignees, err := json.Marshal(report.Summary.TopAssignees)
	if err != nil {
		return fmt.Errorf("encoding assignees: %w", err)
	}
	inventors, err := json.Marshal(report.Summary.TopInventors)
	if err != nil {
		return fmt.Errorf("encoding inventors: %w", err)
	}
	results, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	record := []string{
		report.ID,
		report.Summary.Query,
		strconv.Itoa(report.Summary.Total),
		report.CreatedAt.Format(time.RFC3339Nano),
		string(assignees),
		string(inventors),
		string(results),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seeking to end: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("writing report %s: %w", report.ID, err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("writing report %s: %w", report.ID, err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.Report{}, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var reports []*storage.Report
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		rep, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}

	return filter.Apply(reports), nil
}

func decodeRecord(record []string) (*storage.Report, error) {
	total, err := strconv.Atoi(record[2])
	if err != nil {
		return nil, fmt.Errorf("parsing total of %s: %w", record[0], err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, record[3])
	if err != nil {
		return nil, fmt.Errorf("parsing created_at of %s: %w", record[0], err)
	}

	rep := &storage.Report{
		ID:        record[0],
		CreatedAt: createdAt,
		Summary: storage.ReportSummary{
			Query: record[1],
			Total: total,
		},
	}
	if err := json.Unmarshal([]byte(record[4]), &rep.Summary.TopAssignees); err != nil {
		return nil, fmt.Errorf("decoding assignees of %s: %w", rep.ID, err)
	}
	if err := json.Unmarshal([]byte(record[5]), &rep.Summary.TopInventors); err != nil {
		return nil, fmt.Errorf("decoding inventors of %s: %w", rep.ID, err)
	}
	if err := json.Unmarshal([]byte(record[6]), &rep.Results); err != nil {
		return nil, fmt.Errorf("decoding results of %s: %w", rep.ID, err)
	}
	return rep, nil
}

func (b *csvBackend) Get(ctx context.Context, id string) (*storage.Report, error) {
	reports, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		return nil, err
	}
	return storage.Find(reports, id)
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
