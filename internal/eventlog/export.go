// SPDX-License-Identifier: MIT
package eventlog

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	summarySheet = "summary"
	eventsSheet  = "events"
)

// Report aggregates a set of records.
type Report struct {
	Events        int
	TotalDuration time.Duration
	Longest       time.Duration
	MaxBPM        float64
	MeanBPM       float64 // Average BPM weighted by event duration.
}

// Summarize builds a Report. An empty slice gives the zero Report.
func Summarize(records []Record) Report {
	if len(records) == 0 {
		return Report{}
	}
	maxes := make([]float64, len(records))
	avgs := make([]float64, len(records))
	weights := make([]float64, len(records))

	rep := Report{Events: len(records)}
	for i, r := range records {
		maxes[i] = r.MaxBPM
		avgs[i] = r.AvgBPM
		weights[i] = r.Duration.Seconds()
		rep.TotalDuration += r.Duration
		rep.Longest = max(rep.Longest, r.Duration)
	}
	rep.MaxBPM = floats.Max(maxes)
	if floats.Sum(weights) > 0 {
		rep.MeanBPM = stat.Mean(avgs, weights)
	} else {
		rep.MeanBPM = stat.Mean(avgs, nil)
	}
	return rep
}

// BuildXLSX renders records as a workbook with a summary sheet and one row
// per event.
func BuildXLSX(deviceID string, records []Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(eventsSheet); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	rep := Summarize(records)
	_ = f.SetCellValue(summarySheet, "A1", "Tachycardia Events")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", deviceID)
	_ = f.SetCellValue(summarySheet, "A4", "Events")
	_ = f.SetCellValue(summarySheet, "B4", rep.Events)
	_ = f.SetCellValue(summarySheet, "A5", "Total Duration (s)")
	_ = f.SetCellValue(summarySheet, "B5", rep.TotalDuration.Seconds())
	_ = f.SetCellValue(summarySheet, "A6", "Longest (s)")
	_ = f.SetCellValue(summarySheet, "B6", rep.Longest.Seconds())
	_ = f.SetCellValue(summarySheet, "A7", "Max BPM")
	_ = f.SetCellValue(summarySheet, "B7", rep.MaxBPM)
	_ = f.SetCellValue(summarySheet, "A8", "Mean BPM")
	_ = f.SetCellValue(summarySheet, "B8", rep.MeanBPM)

	for i, h := range []string{"ID", "Start", "End", "Duration (s)", "Max BPM", "Avg BPM"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(eventsSheet, cell, h)
	}
	for i, r := range records {
		row := i + 2
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("A%d", row), r.ID)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("B%d", row), r.Start.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("C%d", row), r.End.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("D%d", row), r.Duration.Seconds())
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("E%d", row), r.MaxBPM)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("F%d", row), r.AvgBPM)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportXLSX reads the event log at csvPath and writes a workbook to
// xlsxPath. It returns the number of events exported.
func ExportXLSX(deviceID, csvPath, xlsxPath string) (int, error) {
	records, err := ReadAll(csvPath)
	if err != nil {
		return 0, err
	}
	data, err := BuildXLSX(deviceID, records)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(xlsxPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", xlsxPath, err)
	}
	return len(records), nil
}
