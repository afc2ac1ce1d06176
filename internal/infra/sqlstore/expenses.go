package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/dvloznov/gastos/internal/domain"
)

var expenseColumns = []string{"id", "owner_id", "amount", "category", "date_ms", "description", "created_at_ms"}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*domain.Expense, error) {
	var (
		e         domain.Expense
		category  string
		dateMS    int64
		createdMS int64
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Amount, &category, &dateMS, &e.Description, &createdMS); err != nil {
		return nil, err
	}
	e.Category = domain.Category(category)
	e.Date = fromMillis(dateMS)
	e.CreatedAt = fromMillis(createdMS)
	return &e, nil
}

// Create inserts e with a fresh ID and CreatedAt. A zero Date defaults to now.
func (db *DB) Create(ctx context.Context, e *domain.Expense) (*domain.Expense, error) {
	stored := *e
	stored.ID = db.newID()
	stored.CreatedAt = db.now().UTC()
	if stored.Date.IsZero() {
		stored.Date = stored.CreatedAt
	}

	query, args, err := db.sb.Insert("expenses").
		Columns(expenseColumns...).
		Values(stored.ID, stored.OwnerID, stored.Amount, string(stored.Category),
			toMillis(stored.Date), stored.Description, toMillis(stored.CreatedAt)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("Create: build: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return nil, upstream(fmt.Errorf("Create: insert: %w", err))
	}

	// Round-trip through millisecond storage so callers see what a later Get returns.
	stored.Date = fromMillis(toMillis(stored.Date))
	stored.CreatedAt = fromMillis(toMillis(stored.CreatedAt))
	return &stored, nil
}

// Get returns the expense with id.
func (db *DB) Get(ctx context.Context, id string) (*domain.Expense, error) {
	return db.get(ctx, db.conn, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) get(ctx context.Context, q queryRower, id string) (*domain.Expense, error) {
	query, args, err := db.sb.Select(expenseColumns...).
		From("expenses").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("Get: build: %w", err)
	}

	e, err := scanExpense(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, upstream(fmt.Errorf("Get: scan: %w", err))
	}
	return e, nil
}

// Update applies the supplied fields of patch to the expense with id.
func (db *DB) Update(ctx context.Context, id string, patch domain.ExpensePatch) (*domain.Expense, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, upstream(fmt.Errorf("Update: begin: %w", err))
	}
	defer tx.Rollback()

	if !patch.Empty() {
		ub := db.sb.Update("expenses").Where(squirrel.Eq{"id": id})
		if patch.Amount != nil {
			ub = ub.Set("amount", *patch.Amount)
		}
		if patch.Category != nil {
			ub = ub.Set("category", string(*patch.Category))
		}
		if patch.Date != nil {
			ub = ub.Set("date_ms", toMillis(*patch.Date))
		}
		if patch.Description != nil {
			ub = ub.Set("description", *patch.Description)
		}

		query, args, err := ub.ToSql()
		if err != nil {
			return nil, fmt.Errorf("Update: build: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, upstream(fmt.Errorf("Update: exec: %w", err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, upstream(fmt.Errorf("Update: rows affected: %w", err))
		}
		if n == 0 {
			return nil, domain.ErrNotFound
		}
	}

	e, err := db.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, upstream(fmt.Errorf("Update: commit: %w", err))
	}
	return e, nil
}

// Delete removes the expense with id.
func (db *DB) Delete(ctx context.Context, id string) error {
	query, args, err := db.sb.Delete("expenses").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("Delete: build: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return upstream(fmt.Errorf("Delete: exec: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return upstream(fmt.Errorf("Delete: rows affected: %w", err))
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns the expenses matching f, newest first.
func (db *DB) List(ctx context.Context, f domain.Filter) ([]*domain.Expense, error) {
	sel := db.sb.Select(expenseColumns...).
		From("expenses").
		Where(squirrel.Eq{"owner_id": f.OwnerID}).
		OrderBy("date_ms DESC", "id")
	if f.Start != nil {
		sel = sel.Where(squirrel.GtOrEq{"date_ms": toMillis(*f.Start)})
	}
	if f.End != nil {
		sel = sel.Where(squirrel.LtOrEq{"date_ms": toMillis(*f.End)})
	}
	if f.Category != "" {
		sel = sel.Where(squirrel.Eq{"category": string(f.Category)})
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("List: build: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, upstream(fmt.Errorf("List: query: %w", err))
	}
	defer rows.Close()

	var expenses []*domain.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, upstream(fmt.Errorf("List: scan: %w", err))
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(fmt.Errorf("List: rows: %w", err))
	}
	return expenses, nil
}
