package identity

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/option"
)

// Verifier turns a bearer ID token from the web app into an account ID.
// Failures wrap domain.ErrUnauthenticated.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (string, error)
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier checks Firebase Auth ID tokens.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// FirebaseOptions selects the project and credentials for Firebase Auth.
// Without explicit credentials the application default credentials are used.
type FirebaseOptions struct {
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
}

// NewFirebaseVerifier initialises a Firebase app and its Auth client.
func NewFirebaseVerifier(ctx context.Context, opts FirebaseOptions) (*FirebaseVerifier, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("NewFirebaseVerifier: creating app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewFirebaseVerifier: creating auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify returns the Firebase UID of a valid ID token.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (string, error) {
	if idToken == "" {
		return "", domain.ErrUnauthenticated
	}
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	return tok.UID, nil
}

// JWTVerifier checks HS256 tokens signed with a shared secret. It stands in
// for Firebase Auth in local development.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify returns the subject of a valid, unexpired token.
func (v *JWTVerifier) Verify(_ context.Context, idToken string) (string, error) {
	if idToken == "" {
		return "", domain.ErrUnauthenticated
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(idToken, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// SignDevToken issues an HS256 token for accountID accepted by JWTVerifier.
func SignDevToken(secret, accountID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
