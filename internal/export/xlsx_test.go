package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type staticLister []*domain.Expense

func (s staticLister) List(_ context.Context, f domain.Filter) ([]*domain.Expense, error) {
	var out []*domain.Expense
	for _, e := range s {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func day(d int) time.Time {
	return time.Date(2024, 5, d, 10, 0, 0, 0, time.UTC)
}

func TestExpensesWorkbook(t *testing.T) {
	store := staticLister{
		{ID: "e2", OwnerID: "acct-1", Amount: 40, Category: domain.CategoryTransportation, Date: day(4), Description: "taxi"},
		{ID: "e1", OwnerID: "acct-1", Amount: 12.5, Category: domain.CategoryFood, Date: day(3), Description: "lunch"},
		{ID: "e3", OwnerID: "acct-1", Amount: 0.1, Category: domain.CategoryFood, Date: day(5), Description: "gum"},
		{ID: "x1", OwnerID: "acct-2", Amount: 99, Category: domain.CategoryFood, Date: day(5)},
		{ID: "e0", OwnerID: "acct-1", Amount: 5, Category: domain.CategoryFood, Date: day(30)},
	}

	var buf bytes.Buffer
	n, err := Expenses(context.Background(), store, "acct-1", day(1), day(10), &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ExpensesSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Date", "Description", "Category", "Amount", "Expense ID"},
		{"2024-05-03", "lunch", "Food", "12.5", "e1"},
		{"2024-05-04", "taxi", "Transportation", "40", "e2"},
		{"2024-05-05", "gum", "Food", "0.1", "e3"},
	}, rows)

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Category", "Total"},
		{"Food", "12.6"},
		{"Transportation", "40"},
		{"Total", "52.6"},
	}, summary)
}

func TestWriteWorkbookEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Category", "Total"}, {"Total", "0"}}, summary)
}
