// Package export writes expenses to spreadsheet workbooks.
package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook.
const (
	ExpensesSheet = "Expenses"
	SummarySheet  = "Summary"
)

var expenseHeaders = []string{"Date", "Description", "Category", "Amount", "Expense ID"}

// ExpenseLister reads the expenses to export.
type ExpenseLister interface {
	List(ctx context.Context, f domain.Filter) ([]*domain.Expense, error)
}

// Expenses lists the owner's expenses between start and end, oldest first,
// and writes them to w as an .xlsx workbook.
func Expenses(ctx context.Context, store ExpenseLister, ownerID string, start, end time.Time, w io.Writer) (int, error) {
	expenses, err := store.List(ctx, domain.NewFilter(ownerID, &start, &end, domain.CategoryAll))
	if err != nil {
		return 0, fmt.Errorf("Expenses: listing: %w", err)
	}
	if err := WriteWorkbook(w, expenses); err != nil {
		return 0, err
	}
	return len(expenses), nil
}

// WriteWorkbook writes an Expenses sheet with one row per expense, sorted by
// date, and a Summary sheet with totals per category.
func WriteWorkbook(w io.Writer, expenses []*domain.Expense) error {
	sorted := make([]*domain.Expense, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1".
	if err := f.SetSheetName("Sheet1", ExpensesSheet); err != nil {
		return fmt.Errorf("WriteWorkbook: renaming sheet: %w", err)
	}
	if err := writeExpenses(f, sorted); err != nil {
		return err
	}

	index, err := f.NewSheet(SummarySheet)
	if err != nil {
		return fmt.Errorf("WriteWorkbook: creating summary sheet: %w", err)
	}
	if err := writeSummary(f, sorted); err != nil {
		return err
	}
	f.SetActiveSheet(index)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteWorkbook: writing workbook: %w", err)
	}
	return nil
}

func writeExpenses(f *excelize.File, expenses []*domain.Expense) error {
	for i, h := range expenseHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ExpensesSheet, cell, h); err != nil {
			return fmt.Errorf("writeExpenses: header: %w", err)
		}
	}

	for i, e := range expenses {
		row := i + 2
		amount, _ := decimal.NewFromFloat(e.Amount).Round(2).Float64()
		values := []any{e.Date.Format("2006-01-02"), e.Description, string(e.Category), amount, e.ID}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ExpensesSheet, cell, &values); err != nil {
			return fmt.Errorf("writeExpenses: row %d: %w", row, err)
		}
	}

	f.SetColWidth(ExpensesSheet, "A", "A", 12)
	f.SetColWidth(ExpensesSheet, "B", "B", 30)
	f.SetColWidth(ExpensesSheet, "C", "C", 15)
	f.SetColWidth(ExpensesSheet, "D", "D", 12)
	f.SetColWidth(ExpensesSheet, "E", "E", 38)
	return nil
}

func writeSummary(f *excelize.File, expenses []*domain.Expense) error {
	totals := map[domain.Category]decimal.Decimal{}
	grand := decimal.Zero
	for _, e := range expenses {
		amount := decimal.NewFromFloat(e.Amount)
		totals[e.Category] = totals[e.Category].Add(amount)
		grand = grand.Add(amount)
	}

	categories := make([]string, 0, len(totals))
	for c := range totals {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)

	rows := [][]any{{"Category", "Total"}}
	for _, c := range categories {
		v, _ := totals[domain.Category(c)].Round(2).Float64()
		rows = append(rows, []any{c, v})
	}
	total, _ := grand.Round(2).Float64()
	rows = append(rows, []any{"Total", total})

	for i, values := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &values); err != nil {
			return fmt.Errorf("writeSummary: row %d: %w", i+1, err)
		}
	}

	f.SetColWidth(SummarySheet, "A", "A", 18)
	f.SetColWidth(SummarySheet, "B", "B", 12)
	return nil
}
