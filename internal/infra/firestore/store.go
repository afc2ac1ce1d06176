// Package firestore stores expenses and account links in Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dvloznov/gastos/internal/domain"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collection names.
const (
	ExpensesCollection = "expenses"
	TokensCollection   = "authTokens"
	LinksCollection    = "userMappings"
)

// Store is the Firestore implementation of domain.ExpenseStore and
// domain.LinkStore. It holds one shared client.
type Store struct {
	client *firestore.Client
	now    func() time.Time
}

// NewStore creates a Store with its own client for projectID.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *firestore.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// Close closes the Firestore client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func upstream(err error) error {
	return domain.Upstream("firestore", err)
}

// Create stores e under a generated document ID.
func (s *Store) Create(ctx context.Context, e *domain.Expense) (*domain.Expense, error) {
	stored := *e
	stored.CreatedAt = s.now().UTC()
	if stored.Date.IsZero() {
		stored.Date = stored.CreatedAt
	}

	ref := s.client.Collection(ExpensesCollection).NewDoc()
	if _, err := ref.Create(ctx, toExpenseDoc(&stored)); err != nil {
		return nil, upstream(fmt.Errorf("Create: %w", err))
	}
	stored.ID = ref.ID
	return &stored, nil
}

// Get returns the expense with id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Expense, error) {
	snap, err := s.client.Collection(ExpensesCollection).Doc(id).Get(ctx)
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, upstream(fmt.Errorf("Get: %w", err))
	}
	return snapshotToExpense(snap)
}

// Update writes the supplied fields of patch. Firestore rejects updates to
// missing documents, which surfaces as ErrNotFound.
func (s *Store) Update(ctx context.Context, id string, patch domain.ExpensePatch) (*domain.Expense, error) {
	updates := patchUpdates(patch)
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	_, err := s.client.Collection(ExpensesCollection).Doc(id).Update(ctx, updates)
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, upstream(fmt.Errorf("Update: %w", err))
	}
	return s.Get(ctx, id)
}

// Delete removes the expense with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.Collection(ExpensesCollection).Doc(id).Delete(ctx, firestore.Exists)
	if notFound(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return upstream(fmt.Errorf("Delete: %w", err))
	}
	return nil
}

// List returns the expenses matching f. Range plus category filters need a
// composite index on (ownerId, category, date).
func (s *Store) List(ctx context.Context, f domain.Filter) ([]*domain.Expense, error) {
	q := s.client.Collection(ExpensesCollection).Where("ownerId", "==", f.OwnerID)
	if f.Start != nil {
		q = q.Where("date", ">=", *f.Start)
	}
	if f.End != nil {
		q = q.Where("date", "<=", *f.End)
	}
	if f.Category != "" {
		q = q.Where("category", "==", string(f.Category))
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var expenses []*domain.Expense
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, upstream(fmt.Errorf("List: iterating: %w", err))
		}
		e, err := snapshotToExpense(snap)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

func snapshotToExpense(snap *firestore.DocumentSnapshot) (*domain.Expense, error) {
	var doc expenseDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, upstream(fmt.Errorf("decoding %s: %w", snap.Ref.ID, err))
	}
	return doc.toExpense(snap.Ref.ID), nil
}
