// Package bigquery archives expenses into a BigQuery table for analysis.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
)

const expensesTable = "expenses"

// ExpenseRow is one archived expense.
type ExpenseRow struct {
	ExpenseID   string              `bigquery:"expense_id"`  // REQUIRED
	OwnerID     string              `bigquery:"owner_id"`    // REQUIRED
	Amount      *big.Rat            `bigquery:"amount"`      // REQUIRED NUMERIC
	Category    string              `bigquery:"category"`    // REQUIRED
	Description bigquery.NullString `bigquery:"description"` // NULLABLE
	ExpenseDate civil.Date          `bigquery:"expense_date"`
	CreatedTS   time.Time           `bigquery:"created_ts"`
	ArchivedTS  time.Time           `bigquery:"archived_ts"`
}

// NewExpenseRow converts an expense for insertion.
func NewExpenseRow(e *domain.Expense, archivedAt time.Time) *ExpenseRow {
	return &ExpenseRow{
		ExpenseID:   e.ID,
		OwnerID:     e.OwnerID,
		Amount:      decimal.NewFromFloat(e.Amount).Round(2).Rat(),
		Category:    string(e.Category),
		Description: bigquery.NullString{StringVal: e.Description, Valid: e.Description != ""},
		ExpenseDate: civil.DateOf(e.Date.UTC()),
		CreatedTS:   e.CreatedAt.UTC(),
		ArchivedTS:  archivedAt.UTC(),
	}
}

// ExpenseArchive streams expenses into DATASET.expenses. It holds a shared
// client for the lifetime of the process.
type ExpenseArchive struct {
	client  *bigquery.Client
	dataset string
	now     func() time.Time
}

// NewExpenseArchive creates an archive writing to dataset in projectID.
func NewExpenseArchive(ctx context.Context, projectID, dataset string) (*ExpenseArchive, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewExpenseArchive: creating client: %w", err)
	}
	return &ExpenseArchive{
		client:  client,
		dataset: dataset,
		now:     time.Now,
	}, nil
}

// Close closes the BigQuery client connection.
func (a *ExpenseArchive) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// EnsureTable creates the expenses table, partitioned by expense date, if it
// does not exist yet.
func (a *ExpenseArchive) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(ExpenseRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "expense_date",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"owner_id", "category"}},
	}

	err = a.client.Dataset(a.dataset).Table(expensesTable).Create(ctx, meta)
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	return nil
}

// InsertExpense streams one expense. The expense ID doubles as the insert ID
// so a retried job does not duplicate the row.
func (a *ExpenseArchive) InsertExpense(ctx context.Context, e *domain.Expense) error {
	row := NewExpenseRow(e, a.now())
	saver := &bigquery.StructSaver{Struct: row, InsertID: e.ID}

	inserter := a.client.Dataset(a.dataset).Table(expensesTable).Inserter()
	if err := inserter.Put(ctx, saver); err != nil {
		return fmt.Errorf("InsertExpense: inserting row: %w", err)
	}
	return nil
}
