package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dues-dev/dues/internal/model"
)

const smallInput = `Jane;Doe;x;x;x;25.00
John;Smith;;;;30
Max;Mustermann;;;;10
Nobody;Here;;;;5
single
Jane;Doe;;;;abc

Jane;Doe
jane;doe;;;;5
`

func TestSmallFile_Import(t *testing.T) {
	s, m := newTestStore(t)
	imp := NewSmallFile(s, "", quiet)
	assert.Equal(t, "small", imp.Format())

	rep, err := imp.Import(context.Background(), Source{
		Name:   "collection-2024-03.csv",
		Reader: strings.NewReader(smallInput),
		Date:   date(2024, 3, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, []Status{
		StatusCreated,
		StatusCreated,
		StatusAmbiguous,
		StatusUserNotFound,
		StatusMalformed,
		StatusMalformed,
		StatusSkipped,
		StatusMalformed,
		StatusUserNotFound,
	}, statuses(rep))
	assert.Equal(t, Summary{Created: 2, Unresolved: 3, Malformed: 3, Skipped: 1}, rep.Summary())

	jane := paymentsOf(t, s, m.jane.ID)
	require.Len(t, jane, 1)
	p := jane[0]
	assert.True(t, dec("25").Equal(p.Amount))
	assert.Equal(t, date(2024, 3, 1), p.Date)
	assert.Equal(t, model.MethodBankCollection, p.Method.Name)
	assert.Equal(t, "collection-2024-03.csv", p.OriginalFile)
	assert.Equal(t, "Jane;Doe;x;x;x;25.00", p.OriginalLine)
	assert.Equal(t, 1, p.OriginalLineNo)
	assert.Equal(t, p.ID, rep.Rows[0].PaymentID)

	john := paymentsOf(t, s, m.john.ID)
	require.Len(t, john, 1)
	assert.Equal(t, 2, john[0].OriginalLineNo)

	assert.Len(t, s.AllPayments(), 2)
}

func TestSmallFile_OverlongRowIsMalformed(t *testing.T) {
	s, m := newTestStore(t)
	input := "Jane;Doe;;;;25\n" + strings.Repeat("x", maxLineSize+1) + "\nJohn;Smith;;;;30\n"

	rep, err := NewSmallFile(s, "", quiet).Import(context.Background(), Source{
		Name:   "collection-2024-03.csv",
		Reader: strings.NewReader(input),
		Date:   date(2024, 3, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusCreated, StatusMalformed, StatusCreated}, statuses(rep))
	assert.Equal(t, 2, rep.Rows[1].Line)
	assert.Contains(t, rep.Rows[1].Reason, "row longer than")
	john := paymentsOf(t, s, m.john.ID)
	require.Len(t, john, 1)
	assert.Equal(t, 3, john[0].OriginalLineNo)
}

func TestSmallFile_ConfiguredMethod(t *testing.T) {
	s, m := newTestStore(t)
	imp := NewSmallFile(s, model.MethodCash, quiet)

	_, err := imp.Import(context.Background(), Source{
		Name:   "cash.csv",
		Reader: strings.NewReader("Jane;Doe;;;;12\n"),
		Date:   date(2024, 3, 1),
	})
	require.NoError(t, err)

	got := paymentsOf(t, s, m.jane.ID)
	require.Len(t, got, 1)
	assert.Equal(t, model.MethodCash, got[0].Method.Name)
}

func TestSmallFile_MissingMethodFailsRun(t *testing.T) {
	s, _ := newTestStore(t)
	imp := NewSmallFile(s, "sepa", quiet)

	rep, err := imp.Import(context.Background(), Source{
		Name:   "x.csv",
		Reader: strings.NewReader("Jane;Doe;;;;12\n"),
		Date:   date(2024, 3, 1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"sepa"`)
	assert.Nil(t, rep)
	assert.Empty(t, s.AllPayments())
}

func TestSmallFile_RequiresDate(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := NewSmallFile(s, "", quiet).Import(context.Background(), Source{
		Name:   "x.csv",
		Reader: strings.NewReader("Jane;Doe;;;;12\n"),
	})
	assert.Error(t, err)
}

func TestSmallFile_StoreFailureAbortsWithPartialReport(t *testing.T) {
	mem, _ := newTestStore(t)
	s := &failAfter{Memory: mem, n: 1}

	rep, err := NewSmallFile(s, "", quiet).Import(context.Background(), Source{
		Name:   "x.csv",
		Reader: strings.NewReader("Jane;Doe;;;;12\nJohn;Smith;;;;12\nOliver;Sierek;;;;12\n"),
		Date:   date(2024, 3, 1),
	})
	require.ErrorIs(t, err, errDiskFull)
	assert.Contains(t, err.Error(), "line 2")
	require.NotNil(t, rep)
	assert.Equal(t, []Status{StatusCreated}, statuses(rep))
	assert.Len(t, mem.AllPayments(), 1)
}
