package spotify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"

	"Party-Trivia-Go/pkg/db"
	"Party-Trivia-Go/pkg/music"
)

// TokenStore is the part of the database the credential resolver needs.
type TokenStore interface {
	GetToken(ctx context.Context, userID string) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userID string, token *oauth2.Token) error
	GetUser(ctx context.Context, userID string) (*db.User, error)
}

// Credentials resolves stored OAuth tokens into usable access tokens,
// refreshing and persisting them when they have expired. It implements
// music.CredentialStore.
type Credentials struct {
	Store TokenStore
	// Refresh exchanges an expired token for a new one.
	Refresh func(ctx context.Context, t *oauth2.Token) (*oauth2.Token, error)
}

var _ music.CredentialStore = (*Credentials)(nil)

// NewCredentials returns a resolver refreshing tokens through auth.
func NewCredentials(store TokenStore, auth spotify.Authenticator) *Credentials {
	return &Credentials{
		Store: store,
		Refresh: func(_ context.Context, t *oauth2.Token) (*oauth2.Token, error) {
			c := auth.NewClient(t)
			return c.Token()
		},
	}
}

// Credential returns a valid access token for userID. ok is false when the
// user never logged in.
func (c *Credentials) Credential(ctx context.Context, userID string) (string, bool, error) {
	tok, err := c.Token(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if tok.AccessToken == "" {
		return "", false, nil
	}
	return tok.AccessToken, true, nil
}

// Token loads the stored token of userID, refreshing it when it has expired
// and a refresh token is available.
func (c *Credentials) Token(ctx context.Context, userID string) (*oauth2.Token, error) {
	tok, err := c.Store.GetToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tok.Valid() || tok.RefreshToken == "" || c.Refresh == nil {
		return tok, nil
	}
	fresh, err := c.Refresh(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("refresh token of %s: %w", userID, wrap("refresh", err))
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	if err := c.Store.SaveToken(ctx, userID, fresh); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	return fresh, nil
}

// DisplayName returns the stored profile name of userID or "".
func (c *Credentials) DisplayName(ctx context.Context, userID string) string {
	u, err := c.Store.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return u.Name
}
