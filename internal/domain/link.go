package domain

import "time"

// LinkTTL is how long an issued link code or token stays redeemable.
const LinkTTL = 15 * time.Minute

// LinkKind tells how a link credential reaches the web app.
type LinkKind string

const (
	// LinkKindCode is a short code shown in chat and typed into the web app.
	LinkKindCode LinkKind = "code"
	// LinkKindToken is embedded in a URL the bot sends to the user.
	LinkKindToken LinkKind = "token"
)

// LinkToken is a pending, single-use credential tying a chat identity to
// whichever account redeems it.
type LinkToken struct {
	Token     string    `json:"token"`
	Kind      LinkKind  `json:"kind"`
	ChatID    string    `json:"chatId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the token can no longer be redeemed at now.
func (t *LinkToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AccountLink maps a chat identity to an internal account. There is at most
// one per chat identity; re-linking overwrites it.
type AccountLink struct {
	ChatID    string    `json:"chatId"`
	AccountID string    `json:"accountId"`
	Linked    bool      `json:"linked"`
	LinkedAt  time.Time `json:"linkedAt"`
}
