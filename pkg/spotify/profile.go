package spotify

import (
	"context"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"

	"Party-Trivia-Go/pkg/db"
)

// Profiles loads the profile of a freshly logged-in user.
type Profiles struct {
	current func(tok *oauth2.Token) (*spotify.PrivateUser, error)
}

// NewProfiles returns a Profiles creating clients through auth.
func NewProfiles(auth spotify.Authenticator) *Profiles {
	return &Profiles{current: func(tok *oauth2.Token) (*spotify.PrivateUser, error) {
		c := auth.NewClient(tok)
		return c.CurrentUser()
	}}
}

// Profile returns the user owning tok. The display name falls back to the
// user id and the avatar is the first profile image, if any.
func (p *Profiles) Profile(ctx context.Context, tok *oauth2.Token) (*db.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	me, err := p.current(tok)
	if err != nil {
		return nil, wrap("current user", err)
	}
	u := &db.User{ID: me.ID, Name: me.DisplayName}
	if u.Name == "" {
		u.Name = me.ID
	}
	if len(me.Images) > 0 {
		u.Avatar = me.Images[0].URL
	}
	return u, nil
}
