package store

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dues-dev/dues/internal/model"
)

var testMethods = map[string]model.PaymentMethod{
	"bank collection": {ID: 1, Name: "bank collection"},
	"cash":            {ID: 2, Name: "cash"},
}

func lookupTestMethod(name string) (model.PaymentMethod, bool) {
	pm, ok := testMethods[name]
	return pm, ok
}

func TestPaymentsRoundTrip(t *testing.T) {
	payments := []model.Payment{
		{
			ID:             uuid.New(),
			MemberID:       uuid.New(),
			Amount:         dec("12.5"),
			Date:           date(2008, 2, 3),
			Method:         testMethods["bank collection"],
			OriginalFile:   "export.csv",
			OriginalLine:   `2008-02-03;x;Jane Doe;sammler;;25,00`,
			OriginalLineNo: 17,
		},
		{
			ID:      uuid.New(),
			Amount:  dec("-3"),
			Date:    date(2008, 2, 4),
			Method:  testMethods["cash"],
			Comment: "refund, partial",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePayments(&buf, payments))
	assert.True(t, strings.HasPrefix(buf.String(), "id,member_id,"))

	got, err := ReadPayments(&buf, lookupTestMethod)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i := range payments {
		assert.Equal(t, payments[i].ID, got[i].ID)
		assert.Equal(t, payments[i].MemberID, got[i].MemberID)
		assert.True(t, payments[i].Amount.Equal(got[i].Amount), "amount mismatch row %d", i)
		assert.True(t, payments[i].Date.Equal(got[i].Date))
		assert.Equal(t, payments[i].Method, got[i].Method)
		assert.Equal(t, payments[i].Comment, got[i].Comment)
		assert.Equal(t, payments[i].OriginalFile, got[i].OriginalFile)
		assert.Equal(t, payments[i].OriginalLine, got[i].OriginalLine)
		assert.Equal(t, payments[i].OriginalLineNo, got[i].OriginalLineNo)
	}
	assert.Equal(t, uuid.Nil, got[1].MemberID)
}

func TestReadPayments_Empty(t *testing.T) {
	got, err := ReadPayments(strings.NewReader(PaymentsHeader+"\n"), lookupTestMethod)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnmarshalPayment_Errors(t *testing.T) {
	good := MarshalPayment(model.Payment{ID: uuid.New(), Amount: dec("1"), Date: date(2020, 1, 1), Method: testMethods["cash"]})

	tests := []struct {
		col  int
		val  string
		want string
	}{
		{colID, "nope", "parsing id"},
		{colMemberID, "nope", "parsing member_id"},
		{colDate, "01/02/2020", "parsing date"},
		{colAmount, "ten", "parsing amount"},
		{colMethod, "barter", "unknown payment method"},
		{colOrigLineNo, "x", "parsing original_lineno"},
	}
	for _, tt := range tests {
		rec := append([]string(nil), good...)
		rec[tt.col] = tt.val
		_, err := UnmarshalPayment(rec, lookupTestMethod)
		require.Error(t, err, "column %d", tt.col)
		assert.Contains(t, err.Error(), tt.want)
	}

	_, err := UnmarshalPayment(good[:3], lookupTestMethod)
	assert.Error(t, err)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAppendPayments_ReportsWriteFailure(t *testing.T) {
	p := model.Payment{ID: uuid.New(), Amount: dec("5"), Date: date(2024, 1, 1), Method: testMethods["cash"]}
	err := AppendPayments(brokenWriter{}, []model.Payment{p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Error(t, WritePayments(brokenWriter{}, []model.Payment{p}))
}
