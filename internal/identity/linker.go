// Package identity links chat identities to web accounts and verifies the
// identity tokens presented by the web app.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CodeLength is the number of characters in a chat-issued link code.
const CodeLength = 6

// Linker issues and redeems single-use link credentials and resolves chat
// identities to accounts.
type Linker struct {
	store domain.LinkStore
	log   zerolog.Logger

	now     func() time.Time
	newUUID func() string
}

// NewLinker creates a Linker over store.
func NewLinker(store domain.LinkStore, log zerolog.Logger) *Linker {
	return &Linker{
		store:   store,
		log:     log,
		now:     time.Now,
		newUUID: uuid.NewString,
	}
}

// IssueCode creates a short code for chatID that the user types into the
// web app while signed in.
func (l *Linker) IssueCode(ctx context.Context, chatID string) (*domain.LinkToken, error) {
	return l.issue(ctx, chatID, domain.LinkKindCode, l.newUUID()[:CodeLength])
}

// IssueToken creates an opaque token for chatID meant to be embedded in a
// link built with LinkURL.
func (l *Linker) IssueToken(ctx context.Context, chatID string) (*domain.LinkToken, error) {
	return l.issue(ctx, chatID, domain.LinkKindToken, l.newUUID())
}

func (l *Linker) issue(ctx context.Context, chatID string, kind domain.LinkKind, value string) (*domain.LinkToken, error) {
	if chatID == "" {
		return nil, fmt.Errorf("issue: empty chat id")
	}

	now := l.now().UTC()
	t := &domain.LinkToken{
		Token:     value,
		Kind:      kind,
		ChatID:    chatID,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.LinkTTL),
	}
	if err := l.store.SaveToken(ctx, t); err != nil {
		return nil, fmt.Errorf("issue: saving %s: %w", kind, err)
	}

	l.log.Info().
		Str("chat_id", chatID).
		Str("kind", string(kind)).
		Time("expires_at", t.ExpiresAt).
		Msg("Issued link credential")
	return t, nil
}

// LinkURL returns the web app URL that redeems token.
func LinkURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/auth?token=" + url.QueryEscape(token)
}

// Redeem consumes token and links its chat identity to accountID. Unknown or
// already used credentials return ErrLinkInvalid; expired ones are consumed
// and return ErrLinkExpired without linking.
func (l *Linker) Redeem(ctx context.Context, token, accountID string) (*domain.AccountLink, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return nil, domain.ErrLinkInvalid
	}

	t, err := l.store.ConsumeToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrLinkInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("Redeem: consuming token: %w", err)
	}

	now := l.now().UTC()
	if t.Expired(now) {
		l.log.Info().Str("chat_id", t.ChatID).Str("kind", string(t.Kind)).Msg("Link credential expired")
		return nil, domain.ErrLinkExpired
	}

	link := &domain.AccountLink{
		ChatID:    t.ChatID,
		AccountID: accountID,
		Linked:    true,
		LinkedAt:  now,
	}
	if err := l.store.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("Redeem: saving link: %w", err)
	}

	l.log.Info().
		Str("chat_id", t.ChatID).
		Str("account_id", accountID).
		Str("kind", string(t.Kind)).
		Msg("Linked chat identity")
	return link, nil
}

// Resolve returns the account linked to chatID, or ErrNotLinked.
func (l *Linker) Resolve(ctx context.Context, chatID string) (string, error) {
	if chatID == "" {
		return "", domain.ErrNotLinked
	}
	link, err := l.store.GetLink(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrNotLinked
	}
	if err != nil {
		return "", fmt.Errorf("Resolve: %w", err)
	}
	if !link.Linked || link.AccountID == "" {
		return "", domain.ErrNotLinked
	}
	return link.AccountID, nil
}
