package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier("dev-secret")
	ctx := context.Background()

	good, err := SignDevToken("dev-secret", "acct-1", time.Hour)
	require.NoError(t, err)
	account, err := v.Verify(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", account)

	wrongKey, err := SignDevToken("other", "acct-1", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, wrongKey)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	expired, err := SignDevToken("dev-secret", "acct-1", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, expired)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "acct-1"}).SignedString([]byte("dev-secret"))
	require.NoError(t, err)
	_, err = v.Verify(ctx, noExpiry)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = v.Verify(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

type mockIDTokenVerifier struct {
	VerifyIDTokenFunc func(ctx context.Context, idToken string) (*auth.Token, error)
}

func (m *mockIDTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	return m.VerifyIDTokenFunc(ctx, idToken)
}

func TestFirebaseVerifier(t *testing.T) {
	v := &FirebaseVerifier{client: &mockIDTokenVerifier{
		VerifyIDTokenFunc: func(_ context.Context, idToken string) (*auth.Token, error) {
			if idToken == "valid" {
				return &auth.Token{UID: "firebase-uid"}, nil
			}
			return nil, errors.New("ID token has expired")
		},
	}}

	uid, err := v.Verify(context.Background(), "valid")
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid", uid)

	_, err = v.Verify(context.Background(), "stale")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
