// Package importlog keeps a line-by-line record of every import run in
// <root>/logs/import-log.csv, so unresolved rows can be followed up by hand.
package importlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dues-dev/dues/internal/importer"
)

// Entry is one row in the import log.
type Entry struct {
	Timestamp time.Time
	Format    string
	Source    string
	Line      int
	Status    importer.Status
	Payer     string
	Amount    string
	Reason    string
	Raw       string
}

// Path is the log's location relative to the project root.
const Path = "logs/import-log.csv"

// Header is the CSV header for import-log.csv.
const Header = "timestamp,format,source,line,status,payer,amount,reason,raw"

const (
	numFields    = 9
	logDir       = "logs"
	colTimestamp = 0
	colFormat    = 1
	colSource    = 2
	colLine      = 3
	colStatus    = 4
	colPayer     = 5
	colAmount    = 6
	colReason    = 7
	colRaw       = 8
)

// FromReport turns every row of a report into a log entry stamped at.
func FromReport(rep *importer.Report, at time.Time) []Entry {
	entries := make([]Entry, 0, len(rep.Rows))
	for _, row := range rep.Rows {
		e := Entry{
			Timestamp: at,
			Format:    rep.Format,
			Source:    rep.Source,
			Line:      row.Line,
			Status:    row.Status,
			Payer:     row.Payer,
			Reason:    row.Reason,
			Raw:       row.Raw,
		}
		if row.Status == importer.StatusCreated || !row.Amount.IsZero() {
			e.Amount = row.Amount.String()
		}
		entries = append(entries, e)
	}
	return entries
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colFormat] = e.Format
	row[colSource] = e.Source
	row[colLine] = strconv.Itoa(e.Line)
	row[colStatus] = string(e.Status)
	row[colPayer] = e.Payer
	row[colAmount] = e.Amount
	row[colReason] = e.Reason
	row[colRaw] = e.Raw
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	line, err := strconv.Atoi(record[colLine])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing line %q: %w", record[colLine], err)
	}

	return Entry{
		Timestamp: ts,
		Format:    record[colFormat],
		Source:    record[colSource],
		Line:      line,
		Status:    importer.Status(record[colStatus]),
		Payer:     record[colPayer],
		Amount:    record[colAmount],
		Reason:    record[colReason],
		Raw:       record[colRaw],
	}, nil
}

// Append writes entries to <root>/logs/import-log.csv, creating the file and header if needed.
func Append(root string, entries []Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, Path)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing import log: %w", err)
	}
	return f.Close()
}

// Read returns all entries from <root>/logs/import-log.csv.
// Returns an empty slice if the file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(root, Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// Unresolved returns the entries that still need manual follow-up.
func Unresolved(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Status.Unresolved() || e.Status == importer.StatusMalformed {
			out = append(out, e)
		}
	}
	return out
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading import log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
