package adapter

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

func testOwner() ledger.Owner {
	return ledger.Owner{
		UserID:    "user-1",
		AccountID: uuid.Must(uuid.FromString("8a4f3c2e-1b7d-4e5a-9c3f-2d6e8b1a0f47")),
	}
}

// -- Registry tests --

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	r := NewDefaultRegistry()

	a, err := r.Lookup(" Capital-One ")
	require.NoError(t, err)
	assert.IsType(t, CapitalOne{}, a)
}

func TestRegistry_UnknownFormat(t *testing.T) {
	r := NewDefaultRegistry()

	_, err := r.Lookup("chase")
	assert.True(t, errors.Is(err, ledger.ErrUnknownFormat))
}

func TestRegistry_Formats(t *testing.T) {
	assert.Equal(t, []string{FormatCapitalOne, FormatCopilot, FormatPlaid}, NewDefaultRegistry().Formats())
}

// -- ParseCSV tests --

func TestParseCSV_RowsNumberedFromOne(t *testing.T) {
	rows, err := ParseCSV("date,name,amount\n2025-01-02,Coffee,4.50\n\n2025-01-03,Lunch,12.00\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Index)
	assert.Equal(t, 2, rows[1].Index)
	assert.Equal(t, "Lunch", rows[1].Get("name"))
}

func TestParseCSV_StripsByteOrderMark(t *testing.T) {
	rows, err := ParseCSV("\ufeffdate,name,amount\n2025-01-02,Coffee,4.50\n")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02", rows[0].Get("date"))
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV("  ")
	assert.Error(t, err)

	_, err = ParseCSV("date,name,amount\n")
	assert.Error(t, err)
}

// -- ParseAmount tests --

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"12.50", "12.5"},
		{"-12.50", "-12.5"},
		{"$1,234.56", "1234.56"},
		{"-$8", "-8"},
		{"(45.00)", "-45"},
		{"+3.1", "3.1"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "%s parsed to %s", tc.raw, got)
	}
}

func TestParseAmount_RejectsAmbiguous(t *testing.T) {
	for _, raw := range []string{"", "1.234,56", "12,5", "abc", "(-5)", "1 000"} {
		_, err := ParseAmount(raw)
		assert.Error(t, err, raw)
	}
}

// -- ParseDate tests --

func TestParseDate_RejectsDayFirst(t *testing.T) {
	_, err := ParseDate("15/03/2025", capitalOneDateLayouts...)
	assert.Error(t, err)
}

func TestParseDate_TwoDigitYear(t *testing.T) {
	d, err := ParseDate("3/5/25", capitalOneDateLayouts...)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), d)
}

// -- CapitalOne tests --

func capitalOneRow(index int, date, amount, description, txType string) Row {
	return Row{Index: index, Fields: map[string]string{
		"Account Number":          "36004821",
		"Transaction Description": description,
		"Transaction Date":        date,
		"Transaction Type":        txType,
		"Transaction Amount":      amount,
		"Balance":                 "1000.00",
	}}
}

func TestCapitalOne_TransferTypeIsCaseInsensitive(t *testing.T) {
	a := CapitalOne{}
	owner := testOwner()

	first, err := a.Normalize(capitalOneRow(1, "01/05/25", "200.00", "Transfer to savings", "Transfer"), owner)
	require.NoError(t, err)
	second, err := a.Normalize(capitalOneRow(2, "01/06/25", "50.00", "Transfer from checking", "TRANSFER"), owner)
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeTransfer, first.Type)
	assert.Equal(t, ledger.TypeTransfer, second.Type)
}

func TestCapitalOne_UnknownTypeDefaultsToDebit(t *testing.T) {
	rec, err := CapitalOne{}.Normalize(capitalOneRow(1, "01/05/25", "19.99", "Streaming", "Subscription"), testOwner())
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeDebit, rec.Type)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("-19.99")))
}

func TestCapitalOne_Fields(t *testing.T) {
	owner := testOwner()
	row := capitalOneRow(1, "2025-01-05", "1,250.00", "Payroll", "Credit")

	rec, err := CapitalOne{}.Normalize(row, owner)
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeCredit, rec.Type)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("1250")))
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "4821", rec.AccountMask)
	assert.Equal(t, ledger.StatusPosted, rec.Status)
	assert.Equal(t, ledger.Uncategorized, rec.Category)
	assert.Equal(t, owner.AccountID, rec.AccountID)
	assert.Equal(t, "Capital One 36004821", CapitalOne{}.AccountName(row))
}

func TestCapitalOne_BadDateIsAdapterError(t *testing.T) {
	_, err := CapitalOne{}.Normalize(capitalOneRow(2, "yesterday", "5.00", "Coffee", "Debit"), testOwner())

	var adapterErr *ledger.AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, 2, adapterErr.Row)
	assert.Contains(t, adapterErr.Reason, "transaction date")
}

func TestCapitalOne_DeterministicID(t *testing.T) {
	row := capitalOneRow(1, "01/05/25", "19.99", "Streaming", "Debit")

	a, err := CapitalOne{}.Normalize(row, testOwner())
	require.NoError(t, err)
	b, err := CapitalOne{}.Normalize(row, testOwner())
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, uuid.Nil, a.ID)
}

// -- Copilot tests --

func TestCopilot_Fields(t *testing.T) {
	row := Row{Index: 1, Fields: map[string]string{
		"date":            "2025-02-10",
		"name":            "Whole Foods",
		"amount":          "84.12",
		"status":          "Pending",
		"category":        "Groceries",
		"parent category": "Food",
		"type":            "regular",
		"account":         "Sapphire",
		"account mask":    "9912",
	}}

	rec, err := Copilot{}.Normalize(row, testOwner())
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeDebit, rec.Type)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("-84.12")))
	assert.Equal(t, ledger.StatusPending, rec.Status)
	assert.Equal(t, "Groceries", rec.Category)
	assert.Equal(t, "Food", rec.ParentCategory)
	assert.Equal(t, "9912", rec.AccountMask)
	assert.Equal(t, "Sapphire", Copilot{}.AccountName(row))
}

func TestCopilot_IncomeIsCredit(t *testing.T) {
	row := Row{Index: 1, Fields: map[string]string{
		"date": "2025-02-10", "name": "Salary", "amount": "-3000", "type": "Income",
	}}

	rec, err := Copilot{}.Normalize(row, testOwner())
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeCredit, rec.Type)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("3000")))
	assert.Equal(t, ledger.Uncategorized, rec.Category)
}

// -- Plaid tests --

func TestPlaid_Fields(t *testing.T) {
	owner := testOwner()
	row := Row{Index: 1, Fields: map[string]string{
		"transaction_id": "tx-123",
		"account_id":     "acc-1",
		"amount":         "12.345",
		"date":           "2025-03-01",
		"name":           "Uber 063015 SF**POOL**",
		"pending":        "true",
		"category":       "Travel>Taxi",
		"mask":           "0000",
	}}

	rec, err := Plaid{}.Normalize(row, owner)
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeDebit, rec.Type)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("-12.35")))
	assert.Equal(t, ledger.StatusPending, rec.Status)
	assert.Equal(t, "Taxi", rec.Category)
	assert.Equal(t, "Travel", rec.ParentCategory)
	assert.Equal(t, "tx-123", rec.ExternalID)
	assert.Equal(t, ledger.ExternalRecordID(owner, ledger.SourcePlaid, "tx-123"), rec.ID)
}

func TestPlaid_NegativeAmountIsCredit(t *testing.T) {
	row := Row{Index: 1, Fields: map[string]string{
		"transaction_id": "tx-9", "amount": "-500", "date": "2025-03-01", "name": "Refund",
	}}

	rec, err := Plaid{}.Normalize(row, testOwner())
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeCredit, rec.Type)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("500")))
	assert.Equal(t, ledger.Uncategorized, rec.ParentCategory)
}

func TestPlaid_MissingID(t *testing.T) {
	_, err := Plaid{}.Normalize(Row{Index: 4, Fields: map[string]string{"amount": "1", "date": "2025-03-01"}}, testOwner())

	var adapterErr *ledger.AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, 4, adapterErr.Row)
}
