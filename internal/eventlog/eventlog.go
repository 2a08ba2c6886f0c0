// SPDX-License-Identifier: MIT

// Package eventlog persists completed tachycardia events as an append-only
// CSV file and renders them as spreadsheets.
package eventlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulse/internal/analysis"
)

var header = []string{"id", "start", "end", "duration_s", "max_bpm", "avg_bpm"}

// Record is one completed ACTIVE episode.
type Record struct {
	ID       string
	Start    time.Time
	End      time.Time
	Duration time.Duration
	MaxBPM   float64
	AvgBPM   float64
}

// NewRecord anchors a summary, whose times are offsets from the monitor
// start, to wall-clock time.
func NewRecord(epoch time.Time, s analysis.Summary) Record {
	return Record{
		ID:       uuid.NewString(),
		Start:    epoch.Add(s.Start),
		End:      epoch.Add(s.End),
		Duration: s.Duration,
		MaxBPM:   s.MaxBPM,
		AvgBPM:   s.AvgBPM,
	}
}

func (r Record) row() []string {
	return []string{
		r.ID,
		r.Start.UTC().Format(time.RFC3339Nano),
		r.End.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(r.Duration.Seconds(), 'f', 3, 64),
		strconv.FormatFloat(r.MaxBPM, 'f', 2, 64),
		strconv.FormatFloat(r.AvgBPM, 'f', 2, 64),
	}
}

func parseRow(row []string) (Record, error) {
	if len(row) != len(header) {
		return Record{}, fmt.Errorf("expected %d fields, got %d", len(header), len(row))
	}
	start, err := time.Parse(time.RFC3339Nano, row[1])
	if err != nil {
		return Record{}, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, row[2])
	if err != nil {
		return Record{}, fmt.Errorf("end: %w", err)
	}
	secs, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return Record{}, fmt.Errorf("duration: %w", err)
	}
	maxBPM, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return Record{}, fmt.Errorf("max_bpm: %w", err)
	}
	avgBPM, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return Record{}, fmt.Errorf("avg_bpm: %w", err)
	}
	return Record{
		ID:       row[0],
		Start:    start,
		End:      end,
		Duration: time.Duration(secs * float64(time.Second)).Round(time.Millisecond),
		MaxBPM:   maxBPM,
		AvgBPM:   avgBPM,
	}, nil
}

// Writer appends records to a CSV file. Safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	csv  *csv.Writer
	path string
}

// NewWriter opens path for appending, creating it with a header row when it
// does not exist or is empty.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat event log %s: %w", path, err)
	}

	w := &Writer{file: f, csv: csv.NewWriter(f), path: path}
	if info.Size() == 0 {
		if err := w.writeRow(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return w, nil
}

// Write appends r and flushes it to disk.
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return errors.New("event log is closed")
	}
	return w.writeRow(r.row())
}

func (w *Writer) writeRow(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write event log %s: %w", w.path, err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("failed to flush event log %s: %w", w.path, err)
	}
	return nil
}

// Path returns the file being written.
func (w *Writer) Path() string { return w.path }

// Close closes the file. Safe to call repeatedly.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Read parses every record from r. The header row is required.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if first[0] != header[0] {
		return nil, fmt.Errorf("unexpected header %q", first)
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
}

// ReadAll reads every record in the file at path.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
