package spotify

import (
	"context"
	"errors"
	"testing"

	libspotify "github.com/zmb3/spotify"
	"golang.org/x/oauth2"
)

func profilesReturning(u *libspotify.PrivateUser, err error) *Profiles {
	return &Profiles{current: func(*oauth2.Token) (*libspotify.PrivateUser, error) { return u, err }}
}

func TestProfile(t *testing.T) {
	me := &libspotify.PrivateUser{}
	me.ID = "alice"
	me.DisplayName = "Alice"
	me.Images = []libspotify.Image{{URL: "https://img.example/a.jpg"}, {URL: "https://img.example/b.jpg"}}

	u, err := profilesReturning(me, nil).Profile(context.Background(), &oauth2.Token{})
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "alice" || u.Name != "Alice" || u.Avatar != "https://img.example/a.jpg" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestProfileNameFallback(t *testing.T) {
	me := &libspotify.PrivateUser{}
	me.ID = "bob"
	u, err := profilesReturning(me, nil).Profile(context.Background(), &oauth2.Token{})
	if err != nil {
		t.Fatal(err)
	}
	if u.Name != "bob" || u.Avatar != "" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestProfileError(t *testing.T) {
	p := profilesReturning(nil, libspotify.Error{Status: 401, Message: "expired"})
	if _, err := p.Profile(context.Background(), &oauth2.Token{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
