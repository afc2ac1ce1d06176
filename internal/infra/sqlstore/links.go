package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/dvloznov/gastos/internal/domain"
)

// SaveToken stores a pending link credential.
func (db *DB) SaveToken(ctx context.Context, t *domain.LinkToken) error {
	query, args, err := db.sb.Insert("link_tokens").
		Columns("token", "kind", "chat_id", "created_at_ms", "expires_at_ms").
		Values(t.Token, string(t.Kind), t.ChatID, toMillis(t.CreatedAt), toMillis(t.ExpiresAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("SaveToken: build: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return upstream(fmt.Errorf("SaveToken: insert: %w", err))
	}
	return nil
}

// ConsumeToken deletes the credential and returns it in one statement, so
// only one of two concurrent redemptions sees it.
func (db *DB) ConsumeToken(ctx context.Context, token string) (*domain.LinkToken, error) {
	query, args, err := db.sb.Delete("link_tokens").
		Where(squirrel.Eq{"token": token}).
		Suffix("RETURNING token, kind, chat_id, created_at_ms, expires_at_ms").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ConsumeToken: build: %w", err)
	}

	var (
		t                   domain.LinkToken
		kind                string
		createdMS, expireMS int64
	)
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(&t.Token, &kind, &t.ChatID, &createdMS, &expireMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, upstream(fmt.Errorf("ConsumeToken: delete: %w", err))
	}

	t.Kind = domain.LinkKind(kind)
	t.CreatedAt = fromMillis(createdMS)
	t.ExpiresAt = fromMillis(expireMS)
	return &t, nil
}

// SaveLink creates or replaces the link for l.ChatID.
func (db *DB) SaveLink(ctx context.Context, l *domain.AccountLink) error {
	query, args, err := db.sb.Insert("account_links").
		Columns("chat_id", "account_id", "linked", "linked_at_ms").
		Values(l.ChatID, l.AccountID, l.Linked, toMillis(l.LinkedAt)).
		Suffix("ON CONFLICT (chat_id) DO UPDATE SET account_id = excluded.account_id, linked = excluded.linked, linked_at_ms = excluded.linked_at_ms").
		ToSql()
	if err != nil {
		return fmt.Errorf("SaveLink: build: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return upstream(fmt.Errorf("SaveLink: upsert: %w", err))
	}
	return nil
}

// GetLink returns the link for chatID.
func (db *DB) GetLink(ctx context.Context, chatID string) (*domain.AccountLink, error) {
	query, args, err := db.sb.Select("chat_id", "account_id", "linked", "linked_at_ms").
		From("account_links").
		Where(squirrel.Eq{"chat_id": chatID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("GetLink: build: %w", err)
	}

	var (
		l        domain.AccountLink
		linkedMS int64
	)
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(&l.ChatID, &l.AccountID, &l.Linked, &linkedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, upstream(fmt.Errorf("GetLink: scan: %w", err))
	}
	l.LinkedAt = fromMillis(linkedMS)
	return &l, nil
}
