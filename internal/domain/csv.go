package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CSVHeader lists the export columns in order.
var CSVHeader = []string{"region", "date", "temperature", "rainfall", "case_count", "case_count_filled"}

// WriteCSV serializes rows with a header line. Nil measurements are written
// as empty cells.
func WriteCSV(w io.Writer, rows []MergedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range rows {
		r := &rows[i]
		record := []string{
			r.Region,
			r.Date.UTC().Format(DateLayout),
			formatOptional(r.Temperature),
			formatOptional(r.Rainfall),
			formatOptional(r.CaseCount),
			strconv.FormatBool(r.CaseCountFilled),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the output of WriteCSV. Columns are matched by header name,
// so reordered exports are accepted; unknown columns are ignored.
func ReadCSV(r io.Reader) ([]MergedRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("read csv: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}
	for _, col := range CSVHeader {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("read csv: missing column %q", col)
		}
	}

	var rows []MergedRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		row, err := parseRow(record, colIdx)
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(record []string, colIdx map[string]int) (MergedRow, error) {
	get := func(col string) string {
		i := colIdx[col]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}

	date, err := time.Parse(DateLayout, get("date"))
	if err != nil {
		return MergedRow{}, fmt.Errorf("date: %w", err)
	}
	row := MergedRow{Region: get("region"), Date: date}

	if row.Temperature, err = parseOptional(get("temperature")); err != nil {
		return MergedRow{}, fmt.Errorf("temperature: %w", err)
	}
	if row.Rainfall, err = parseOptional(get("rainfall")); err != nil {
		return MergedRow{}, fmt.Errorf("rainfall: %w", err)
	}
	if row.CaseCount, err = parseOptional(get("case_count")); err != nil {
		return MergedRow{}, fmt.Errorf("case_count: %w", err)
	}
	if v := get("case_count_filled"); v != "" {
		if row.CaseCountFilled, err = strconv.ParseBool(v); err != nil {
			return MergedRow{}, fmt.Errorf("case_count_filled: %w", err)
		}
	}
	return row, nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func parseOptional(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
