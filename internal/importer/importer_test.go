package importer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dues-dev/dues/internal/model"
	"github.com/dues-dev/dues/internal/store"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

type members struct {
	jane, john, oliver, anna model.Member
}

// newTestStore returns a store with the standard methods and a handful of
// members, two of whom share a name.
func newTestStore(t *testing.T) (*store.Memory, members) {
	t.Helper()
	s := store.NewMemory()
	for _, pm := range store.DefaultRegistry().PaymentMethods {
		s.AddMethod(pm)
	}
	m := members{
		jane:   s.AddMember(model.Member{Username: "jane", FirstName: "Jane", LastName: "Doe"}),
		john:   s.AddMember(model.Member{Username: "john", FirstName: "John", LastName: "Smith"}),
		oliver: s.AddMember(model.Member{Username: "oliver", FirstName: "Oliver", LastName: "Sierek"}),
		anna:   s.AddMember(model.Member{Username: "anna", FirstName: "Anna", LastName: "Schreiner"}),
	}
	s.AddMember(model.Member{Username: "max1", FirstName: "Max", LastName: "Mustermann"})
	s.AddMember(model.Member{Username: "max2", FirstName: "Max", LastName: "Mustermann"})
	return s, m
}

func paymentsOf(t *testing.T, s *store.Memory, id uuid.UUID) []model.Payment {
	t.Helper()
	got, err := s.FindPayments(context.Background(), id)
	require.NoError(t, err)
	return got
}

func statuses(rep *Report) []Status {
	out := make([]Status, len(rep.Rows))
	for i, r := range rep.Rows {
		out[i] = r.Status
	}
	return out
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	s, _ := newTestStore(t)
	r := NewRegistry()
	r.Register(NewGeneric(s, quiet))
	assert.NotNil(t, r.Get("Generic"))
	assert.NotNil(t, r.Get("GENERIC"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	s, _ := newTestStore(t)
	r := NewRegistry()
	r.Register(NewGeneric(s, quiet))
	assert.Panics(t, func() { r.Register(NewGeneric(s, quiet)) })
}

func TestDefaultRegistry(t *testing.T) {
	s, _ := newTestStore(t)
	r := DefaultRegistry(s, DefaultConfig(), quiet)
	assert.Equal(t, []string{"bulk", "generic", "small"}, r.Formats())
	for _, f := range r.Formats() {
		require.NotNil(t, r.Get(f))
		assert.Equal(t, f, r.Get(f).Format())
	}
}

func TestReport_Summary(t *testing.T) {
	rep := &Report{Rows: []RowResult{
		{Status: StatusCreated, Amount: dec("10")},
		{Status: StatusCreated, Amount: dec("2.5")},
		{Status: StatusDuplicate},
		{Status: StatusUserNotFound},
		{Status: StatusAmbiguous},
		{Status: StatusUnknownMethod},
		{Status: StatusMalformed},
		{Status: StatusSkipped},
	}}
	assert.Equal(t, Summary{Created: 2, Duplicate: 1, Unresolved: 3, Malformed: 1, Skipped: 1}, rep.Summary())
	assert.Len(t, rep.Unresolved(), 4)
	assert.True(t, dec("12.5").Equal(rep.Total()))
}

func TestEachLine_KeepsRawTextAndNumbers(t *testing.T) {
	input := "a;b;c\r\n\n\"x;y\";z\n"
	var got []line
	require.NoError(t, eachLine(strings.NewReader(input), func(l line) error {
		got = append(got, l)
		return nil
	}))
	require.Len(t, got, 3)
	assert.Equal(t, line{No: 1, Raw: "a;b;c", Fields: []string{"a", "b", "c"}}, got[0])
	assert.Equal(t, 2, got[1].No)
	assert.Nil(t, got[1].Fields)
	assert.Equal(t, []string{"x;y", "z"}, got[2].Fields)
	assert.Equal(t, `"x;y";z`, got[2].Raw)
}

func TestEachLine_QuotedFieldSpansLines(t *testing.T) {
	input := "Jane;\"Doe\nsecond line\";x\r\nJohn;Smith\n"
	var got []line
	require.NoError(t, eachLine(strings.NewReader(input), func(l line) error {
		got = append(got, l)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].No)
	assert.Equal(t, []string{"Jane", "Doe\nsecond line", "x"}, got[0].Fields)
	assert.Equal(t, 3, got[1].No)
	assert.Equal(t, []string{"John", "Smith"}, got[1].Fields)
}

func TestEachLine_StrayQuoteDoesNotSwallowRows(t *testing.T) {
	input := "Jane;Do\"e;5\nJohn;Smith;6\n"
	var got []line
	require.NoError(t, eachLine(strings.NewReader(input), func(l line) error {
		got = append(got, l)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].No)
	assert.Equal(t, "John;Smith;6", got[1].Raw)
}

func TestEachLine_OverlongRowIsReportedAndSkipped(t *testing.T) {
	input := "a;b\n" + strings.Repeat("x", maxLineSize+10) + "\nc;d\n"
	var got []line
	require.NoError(t, eachLine(strings.NewReader(input), func(l line) error {
		got = append(got, l)
		return nil
	}))
	require.Len(t, got, 3)
	assert.ErrorIs(t, got[1].Err, ErrLineTooLong)
	assert.Nil(t, got[1].Fields)
	assert.Len(t, got[1].Raw, maxLineSize)
	assert.Equal(t, line{No: 3, Raw: "c;d", Fields: []string{"c", "d"}}, got[2])
}

func TestParseAmount_NeedsDecimalPoint(t *testing.T) {
	d, err := parseAmount(" 12.50 ")
	require.NoError(t, err)
	assert.True(t, dec("12.5").Equal(d))

	_, err = parseAmount("12,50")
	assert.EqualError(t, err, `invalid amount "12,50"`)

	_, err = parseAmount("")
	assert.EqualError(t, err, "missing amount")
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2007-10-02")
	require.NoError(t, err)
	assert.Equal(t, date(2007, 10, 2), d)

	d, err = parseDate("02.10.2007")
	require.NoError(t, err)
	assert.Equal(t, date(2007, 10, 2), d)

	_, err = parseDate("10/02/2007")
	assert.Error(t, err)
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "bank.csv", files[0].Name)
	assert.Equal(t, int64(4), files[0].Size)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_MissingDir(t *testing.T) {
	files, err := Scan(filepath.Join(t.TempDir(), "import"))
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	// Source gone.
	_, err := os.Stat(filepath.Join(dir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))

	// Destination exists.
	info, err := os.Stat(filepath.Join(dir, "processed", "bank.csv"))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestMarkProcessed_Missing(t *testing.T) {
	err := MarkProcessed(t.TempDir(), "nope.csv")
	assert.Error(t, err)
}
