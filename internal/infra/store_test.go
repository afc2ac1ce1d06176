package infra

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/gastos/internal/config"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	created, err := store.Create(ctx, &domain.Expense{
		OwnerID:  "acct-1",
		Amount:   3.5,
		Category: domain.CategoryTransportation,
		Date:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StoreConfig{Driver: "mongo"})
	assert.ErrorContains(t, err, `unknown driver "mongo"`)
}
