package firestore

import (
	"testing"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/stretchr/testify/assert"
)

var (
	_ domain.ExpenseStore = (*Store)(nil)
	_ domain.LinkStore    = (*Store)(nil)
)

func TestExpenseDocRoundTrip(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	e := &domain.Expense{
		Amount:      12.5,
		Category:    domain.CategoryFood,
		Date:        time.Date(2026, 10, 1, 10, 0, 0, 0, cet),
		Description: "lunch",
		OwnerID:     "acct-1",
		CreatedAt:   time.Date(2026, 10, 1, 9, 5, 0, 0, time.UTC),
	}

	got := toExpenseDoc(e).toExpense("doc-1")

	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, time.UTC, got.Date.Location())
	assert.True(t, e.Date.Equal(got.Date))
	assert.Equal(t, e.OwnerID, got.OwnerID)
	assert.Equal(t, e.Category, got.Category)
}

func TestPatchUpdates(t *testing.T) {
	assert.Empty(t, patchUpdates(domain.ExpensePatch{}))

	amount := 3.0
	cat := domain.CategoryUtilities
	updates := patchUpdates(domain.ExpensePatch{Amount: &amount, Category: &cat})

	paths := make([]string, 0, len(updates))
	for _, u := range updates {
		paths = append(paths, u.Path)
	}
	assert.Equal(t, []string{"amount", "category"}, paths)
	assert.Equal(t, "Utilities", updates[1].Value)
}

func TestLinkDoc(t *testing.T) {
	l := toLinkDoc(&domain.AccountLink{ChatID: "42", AccountID: "acct-1", Linked: true}).toLink("42")
	assert.Equal(t, "42", l.ChatID)
	assert.Equal(t, "acct-1", l.AccountID)
	assert.True(t, l.Linked)
}
