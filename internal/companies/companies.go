// Package companies extracts company name lists from submission inputs.
//
// Callers either send an explicit JSON list or upload a spreadsheet whose
// first column holds the names. This is a pure input adapter: it produces an
// ordered []string and performs no placement logic.
package companies

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseJSON decodes a JSON list of company names. String and numeric
// entries are accepted; entries that trim to empty are dropped. Duplicates
// are preserved; only the spreadsheet path de-duplicates.
func ParseJSON(raw string) ([]string, error) {
	var entries []any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("companies must be a JSON list: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		var s string
		switch v := e.(type) {
		case string:
			s = strings.TrimSpace(v)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("companies must contain only strings or numbers")
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// FromSpreadsheet extracts the first column of an uploaded spreadsheet.
// Format is chosen by filename extension: .csv reads as CSV, anything else
// as XLSX. The first row is treated as a header and skipped. Cells are
// trimmed, empties dropped, and duplicates removed preserving first
// occurrence order.
func FromSpreadsheet(filename string, data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("company file is empty")
	}
	var names []string
	var err error
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		names, err = firstColumnCSV(data)
	} else {
		names, err = firstColumnXLSX(data)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read company file: %w", err)
	}
	return dedupe(names), nil
}

func firstColumnCSV(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	var names []string
	header := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		if len(record) == 0 {
			continue
		}
		if name := strings.TrimSpace(record[0]); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func firstColumnXLSX(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	var names []string
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if name := strings.TrimSpace(row[0]); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
