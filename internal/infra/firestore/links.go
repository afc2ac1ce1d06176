package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dvloznov/gastos/internal/domain"
)

// SaveToken stores a pending link credential keyed by its value.
func (s *Store) SaveToken(ctx context.Context, t *domain.LinkToken) error {
	_, err := s.client.Collection(TokensCollection).Doc(t.Token).Create(ctx, toTokenDoc(t))
	if err != nil {
		return upstream(fmt.Errorf("SaveToken: %w", err))
	}
	return nil
}

// ConsumeToken reads and deletes the credential inside one transaction.
func (s *Store) ConsumeToken(ctx context.Context, token string) (*domain.LinkToken, error) {
	ref := s.client.Collection(TokensCollection).Doc(token)

	var consumed *domain.LinkToken
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if notFound(err) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var doc tokenDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decoding token: %w", err)
		}
		consumed = doc.toToken(token)
		return tx.Delete(ref)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, upstream(fmt.Errorf("ConsumeToken: %w", err))
	}
	return consumed, nil
}

// SaveLink creates or replaces the mapping for l.ChatID.
func (s *Store) SaveLink(ctx context.Context, l *domain.AccountLink) error {
	if _, err := s.client.Collection(LinksCollection).Doc(l.ChatID).Set(ctx, toLinkDoc(l)); err != nil {
		return upstream(fmt.Errorf("SaveLink: %w", err))
	}
	return nil
}

// GetLink returns the mapping for chatID.
func (s *Store) GetLink(ctx context.Context, chatID string) (*domain.AccountLink, error) {
	snap, err := s.client.Collection(LinksCollection).Doc(chatID).Get(ctx)
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, upstream(fmt.Errorf("GetLink: %w", err))
	}

	var doc linkDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, upstream(fmt.Errorf("GetLink: decoding: %w", err))
	}
	return doc.toLink(chatID), nil
}
