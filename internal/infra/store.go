// Package infra selects the expense and link store backend.
package infra

import (
	"context"
	"fmt"

	"github.com/dvloznov/gastos/internal/config"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/dvloznov/gastos/internal/infra/firestore"
	"github.com/dvloznov/gastos/internal/infra/sqlstore"
)

// Store persists expenses and account links.
type Store interface {
	domain.ExpenseStore
	domain.LinkStore
	Close() error
}

var (
	_ Store = (*firestore.Store)(nil)
	_ Store = (*sqlstore.DB)(nil)
)

// OpenStore connects to the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverFirestore:
		s, err := firestore.NewStore(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return s, nil
	case config.DriverSQLite, config.DriverPgx:
		db, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("OpenStore: unknown driver %q", cfg.Driver)
	}
}
