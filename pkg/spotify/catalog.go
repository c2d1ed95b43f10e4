package spotify

import (
	"context"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2/clientcredentials"

	"Party-Trivia-Go/pkg/music"
)

type trackGetter interface {
	GetTrack(id spotify.ID) (*spotify.FullTrack, error)
}

// Catalog looks up tracks with an application token obtained through the
// client credentials flow, so no user login is involved.
type Catalog struct {
	client trackGetter
}

// NewCatalogClient returns a Catalog for the application identified by
// clientID and clientSecret. The token is fetched lazily on the first call
// and renewed by the oauth2 transport.
func NewCatalogClient(ctx context.Context, clientID, clientSecret string) *Catalog {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotify.TokenURL,
	}
	c := spotify.NewClient(config.Client(ctx))
	return &Catalog{client: &c}
}

// Track returns the full track for id.
func (c *Catalog) Track(ctx context.Context, id string) (*music.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := c.client.GetTrack(spotify.ID(id))
	if err != nil {
		return nil, wrap("get track", err)
	}
	return t, nil
}
