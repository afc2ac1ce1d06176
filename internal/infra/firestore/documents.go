package firestore

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dvloznov/gastos/internal/domain"
)

type expenseDoc struct {
	Amount      float64   `firestore:"amount"`
	Category    string    `firestore:"category"`
	Date        time.Time `firestore:"date"`
	Description string    `firestore:"description"`
	OwnerID     string    `firestore:"ownerId"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

func toExpenseDoc(e *domain.Expense) expenseDoc {
	return expenseDoc{
		Amount:      e.Amount,
		Category:    string(e.Category),
		Date:        e.Date.UTC(),
		Description: e.Description,
		OwnerID:     e.OwnerID,
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

func (d expenseDoc) toExpense(id string) *domain.Expense {
	return &domain.Expense{
		ID:          id,
		Amount:      d.Amount,
		Category:    domain.Category(d.Category),
		Date:        d.Date.UTC(),
		Description: d.Description,
		OwnerID:     d.OwnerID,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

func patchUpdates(p domain.ExpensePatch) []firestore.Update {
	var updates []firestore.Update
	if p.Amount != nil {
		updates = append(updates, firestore.Update{Path: "amount", Value: *p.Amount})
	}
	if p.Category != nil {
		updates = append(updates, firestore.Update{Path: "category", Value: string(*p.Category)})
	}
	if p.Date != nil {
		updates = append(updates, firestore.Update{Path: "date", Value: p.Date.UTC()})
	}
	if p.Description != nil {
		updates = append(updates, firestore.Update{Path: "description", Value: *p.Description})
	}
	return updates
}

type tokenDoc struct {
	Kind      string    `firestore:"kind"`
	ChatID    string    `firestore:"telegramUserId"`
	CreatedAt time.Time `firestore:"createdAt"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

func toTokenDoc(t *domain.LinkToken) tokenDoc {
	return tokenDoc{
		Kind:      string(t.Kind),
		ChatID:    t.ChatID,
		CreatedAt: t.CreatedAt.UTC(),
		ExpiresAt: t.ExpiresAt.UTC(),
	}
}

func (d tokenDoc) toToken(token string) *domain.LinkToken {
	return &domain.LinkToken{
		Token:     token,
		Kind:      domain.LinkKind(d.Kind),
		ChatID:    d.ChatID,
		CreatedAt: d.CreatedAt.UTC(),
		ExpiresAt: d.ExpiresAt.UTC(),
	}
}

type linkDoc struct {
	AccountID string    `firestore:"firebaseUserId"`
	Linked    bool      `firestore:"telegramLinked"`
	LinkedAt  time.Time `firestore:"linkedAt"`
}

func toLinkDoc(l *domain.AccountLink) linkDoc {
	return linkDoc{AccountID: l.AccountID, Linked: l.Linked, LinkedAt: l.LinkedAt.UTC()}
}

func (d linkDoc) toLink(chatID string) *domain.AccountLink {
	return &domain.AccountLink{ChatID: chatID, AccountID: d.AccountID, Linked: d.Linked, LinkedAt: d.LinkedAt.UTC()}
}
