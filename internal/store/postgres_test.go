package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dues-dev/dues/internal/iban"
	"github.com/dues-dev/dues/internal/model"
)

// openTestPostgres connects to DUES_TEST_DATABASE_URL and resets the schema.
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("DUES_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DUES_TEST_DATABASE_URL not set, skipping postgres test")
	}
	ctx := context.Background()

	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.db.ExecContext(ctx, `DROP TABLE IF EXISTS payment_info, payments, membership_periods, fee_records, membership_kinds, payment_methods, members CASCADE`)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgres_RoundTrip(t *testing.T) {
	s := openTestPostgres(t)
	ctx := context.Background()

	reg := DefaultRegistry()
	jane := model.Member{ID: uuid.New(), Username: "jane", FirstName: "Jane", LastName: "Doe"}
	reg.Members = []model.Member{jane}
	reg.Fees = []model.FeeRecord{
		{KindID: 1, Start: date(2010, 1, 1), End: date(2014, 12, 31), Amount: 20},
		{KindID: 1, Start: date(2015, 1, 1), Amount: 25},
	}
	reg.Periods = []model.MembershipPeriod{{MemberID: jane.ID, KindID: 1, Begin: date(2014, 11, 1)}}
	reg.PaymentInfo = []model.PaymentInfo{{
		MemberID:          jane.ID,
		CollectionAllowed: true,
		CollectionMode:    model.BankCollectionMode{Name: "quarterly", NumMonths: 3},
		IBAN:              "DE89370400440532013000",
		DateOfSigning:     date(2014, 10, 20),
	}}
	require.NoError(t, s.ImportRegistry(ctx, reg))

	infos, err := s.FindPaymentInfos(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 3, infos[0].CollectionMode.NumMonths)
	assert.True(t, infos[0].DateOfSigning.Equal(date(2014, 10, 20)))

	fees, err := s.FindAllFeeRecords(ctx)
	require.NoError(t, err)
	require.Len(t, fees, 2)
	assert.True(t, fees[0].End.Equal(date(2014, 12, 31)))
	assert.True(t, fees[1].IsOpen())

	periods, err := s.FindMembershipPeriods(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.True(t, periods[0].IsOpen())

	members, err := s.FindMembersByName(ctx, "JANE", "doe", false)
	require.NoError(t, err)
	require.Len(t, members, 1)
	members, err = s.FindMembersByName(ctx, "JANE", "doe", true)
	require.NoError(t, err)
	assert.Empty(t, members)

	pm, err := s.FindPaymentMethodByName(ctx, model.MethodTransfer)
	require.NoError(t, err)
	_, err = s.FindPaymentMethodByName(ctx, "barter")
	assert.ErrorIs(t, err, ErrNotFound)

	p := &model.Payment{MemberID: jane.ID, Amount: dec("12.50"), Date: date(2015, 3, 1), Method: pm, OriginalFile: "x.csv", OriginalLineNo: 3}
	require.NoError(t, s.CreatePayment(ctx, p))
	require.NoError(t, s.CreatePayment(ctx, &model.Payment{Amount: dec("5"), Date: date(2015, 3, 1), Method: model.PaymentMethod{Name: model.MethodCash}}))

	payments, err := s.FindPayments(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, p.ID, payments[0].ID)
	assert.True(t, payments[0].Amount.Equal(dec("12.5")))
	assert.Equal(t, model.MethodTransfer, payments[0].Method.Name)
	assert.Equal(t, 3, payments[0].OriginalLineNo)

	exists, err := s.PaymentExists(ctx, jane.ID, date(2015, 3, 1), dec("12.5"))
	require.NoError(t, err)
	assert.True(t, exists)

	byName, err := s.FindMemberByUsername(ctx, "jane")
	require.NoError(t, err)
	assert.Equal(t, jane.ID, byName.ID)
	_, err = s.FindMemberByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_ImportRegistryRejectsInvalidIBAN(t *testing.T) {
	s := openTestPostgres(t)
	ctx := context.Background()

	reg := DefaultRegistry()
	jane := model.Member{ID: uuid.New(), Username: "jane", FirstName: "Jane", LastName: "Doe"}
	reg.Members = []model.Member{jane}
	reg.PaymentInfo = []model.PaymentInfo{{MemberID: jane.ID, IBAN: "DE88370400440532013000"}}

	err := s.ImportRegistry(ctx, reg)
	assert.ErrorIs(t, err, iban.ErrChecksumMismatch)

	_, err = s.FindMemberByUsername(ctx, "jane")
	assert.ErrorIs(t, err, ErrNotFound, "the whole registry import is rolled back")
}
