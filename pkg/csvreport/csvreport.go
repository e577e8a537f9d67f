// Package csvreport writes the simulator's per-tick backtest rows to CSV
// and implements the `merge-csv` row-index join across per-day files.
package csvreport

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Header is the fixed column order every simulator day CSV uses.
var Header = []string{
	"time", "timeStr",
	"soc10", "soc30", "soc50", "soc70",
	"emissions",
	"limit10", "limit30", "limit50", "limit70",
}

// Row is one 5-minute tick of backtest output.
type Row struct {
	Time      string // RFC3339 UTC
	TimeStr   string // local-time-of-day string
	SoC       [4]float64
	Emissions int64
	Limit     [4]int64
}

func (r Row) record() []string {
	return []string{
		r.Time,
		r.TimeStr,
		strconv.FormatFloat(r.SoC[0], 'f', 6, 64),
		strconv.FormatFloat(r.SoC[1], 'f', 6, 64),
		strconv.FormatFloat(r.SoC[2], 'f', 6, 64),
		strconv.FormatFloat(r.SoC[3], 'f', 6, 64),
		strconv.FormatInt(r.Emissions, 10),
		strconv.FormatInt(r.Limit[0], 10),
		strconv.FormatInt(r.Limit[1], 10),
		strconv.FormatInt(r.Limit[2], 10),
		strconv.FormatInt(r.Limit[3], 10),
	}
}

// WriteFile writes rows to path with the Header as the first line.
func WriteFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadFile parses a CSV previously written by WriteFile back into rows
// plus its header (for use by merge).
func ReadFile(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}
	return all[0], all[1:], nil
}

// Filter selects which per-file columns Merge includes beyond "time".
type Filter int

const (
	FilterAll Filter = iota
	FilterSoCOnly
	FilterEmissionsOnly
)

var socColumns = map[string]bool{"soc10": true, "soc30": true, "soc50": true, "soc70": true}
var emissionsColumns = map[string]bool{"emissions": true, "limit10": true, "limit30": true, "limit50": true, "limit70": true}

func (f Filter) includes(column string) bool {
	switch f {
	case FilterSoCOnly:
		return socColumns[column]
	case FilterEmissionsOnly:
		return emissionsColumns[column]
	default:
		return column != "time" && column != "timeStr"
	}
}

// Merge joins the per-day CSVs at inputs by row index: row i of the output
// is row i from every input, Time/TimeStr taken from the first input and
// every other selected column prefixed by the input's base label to keep
// same-named columns from different days distinct.
func Merge(inputs []string, labels []string, filter Filter, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("merge: no input files")
	}
	if len(labels) != len(inputs) {
		return fmt.Errorf("merge: labels must match inputs 1:1")
	}

	headers := make([][]string, len(inputs))
	bodies := make([][][]string, len(inputs))
	minRows := -1
	for i, path := range inputs {
		h, rows, err := ReadFile(path)
		if err != nil {
			return err
		}
		headers[i] = h
		bodies[i] = rows
		if minRows == -1 || len(rows) < minRows {
			minRows = len(rows)
		}
	}

	outHeader := []string{"time", "timeStr"}
	colIdx := make([][]int, len(inputs)) // selected column indices per input
	for i, h := range headers {
		var idx []int
		for j, col := range h {
			if col == "time" || col == "timeStr" {
				continue
			}
			if !filter.includes(col) {
				continue
			}
			idx = append(idx, j)
			outHeader = append(outHeader, labels[i]+"_"+col)
		}
		colIdx[i] = idx
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(outHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	timeCol, timeStrCol := columnIndex(headers[0], "time"), columnIndex(headers[0], "timeStr")
	for row := 0; row < minRows; row++ {
		record := []string{bodies[0][row][timeCol], bodies[0][row][timeStrCol]}
		for i := range inputs {
			for _, j := range colIdx[i] {
				record = append(record, bodies[i][row][j])
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}
	w.Flush()
	return w.Error()
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
