package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	colTimestamp = "timestamp"
	colModule    = "module"
	colGroup     = "groupnumber"
	colFigures   = "included_figures"
)

var Header = []string{colTimestamp, colModule, colGroup, colFigures}

// Layouts accepted when reading. Older files carry Python isoformat() stamps
// without a zone; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func Encode(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Module,
			r.GroupNumber,
			strconv.FormatBool(r.IncludedFigures),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads a ledger. Columns are matched by header name; the
// included_figures column is optional. Empty input is an empty ledger.
func Decode(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	idx := make(map[string]int, len(head))
	for i, h := range head {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range []string{colTimestamp, colModule, colGroup} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, col)
		}
	}
	figIdx, hasFigures := idx[colFigures]

	records := []Record{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, line, err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		field := func(i int) (string, error) {
			if i >= len(row) {
				return "", fmt.Errorf("%w: row %d: too few fields", ErrMalformed, line)
			}
			return row[i], nil
		}

		var rec Record
		ts, err := field(idx[colTimestamp])
		if err != nil {
			return nil, err
		}
		if rec.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, line, err)
		}
		if rec.Module, err = field(idx[colModule]); err != nil {
			return nil, err
		}
		if rec.GroupNumber, err = field(idx[colGroup]); err != nil {
			return nil, err
		}
		if hasFigures && figIdx < len(row) && strings.TrimSpace(row[figIdx]) != "" {
			rec.IncludedFigures, err = strconv.ParseBool(strings.TrimSpace(row[figIdx]))
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: included_figures: %v", ErrMalformed, line, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}
