package domain

import "context"

// ExpenseStore persists expense records. Implementations do not check
// ownership on Update or Delete; callers do.
type ExpenseStore interface {
	// Create assigns ID and CreatedAt, stores e and returns the stored record.
	Create(ctx context.Context, e *Expense) (*Expense, error)

	// Get returns the record with id or ErrNotFound.
	Get(ctx context.Context, id string) (*Expense, error)

	// Update applies patch to the record with id and returns the result.
	// Returns ErrNotFound if id does not exist.
	Update(ctx context.Context, id string, patch ExpensePatch) (*Expense, error)

	// Delete removes the record with id. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// List returns every record matching f. Order is unspecified.
	List(ctx context.Context, f Filter) ([]*Expense, error)
}

// LinkStore persists pending link credentials and established account links.
type LinkStore interface {
	// SaveToken stores a pending link credential.
	SaveToken(ctx context.Context, t *LinkToken) error

	// ConsumeToken atomically reads and deletes the credential. It returns
	// ErrNotFound when the credential does not exist.
	ConsumeToken(ctx context.Context, token string) (*LinkToken, error)

	// SaveLink creates or replaces the link for l.ChatID.
	SaveLink(ctx context.Context, l *AccountLink) error

	// GetLink returns the link for chatID or ErrNotFound.
	GetLink(ctx context.Context, chatID string) (*AccountLink, error)
}
