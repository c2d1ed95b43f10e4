package lobby

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"Party-Trivia-Go/pkg/db"
	"Party-Trivia-Go/pkg/music"
)

const group = "ABCDEF123456"

func newLobby(t *testing.T, allowParticipant bool, users ...db.User) (*Lobby, *db.DB) {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	ctx := context.Background()
	for _, u := range users {
		if err := d.SaveUser(ctx, u); err != nil {
			t.Fatal(err)
		}
		if err := d.SaveToken(ctx, u.ID, &oauth2.Token{AccessToken: "tok-" + u.ID}); err != nil {
			t.Fatal(err)
		}
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Lobby{Store: d, AllowHostParticipant: allowParticipant, Log: log}, d
}

func TestValidGroup(t *testing.T) {
	cases := map[string]bool{
		"ABCDEF123456":  true,
		"abcdef123456":  false,
		"ABCDEF12345":   false,
		"ABCDEF1234567": false,
		"ABCDEF-23456":  false,
		"":              false,
	}
	for code, want := range cases {
		if got := ValidGroup(code); got != want {
			t.Errorf("ValidGroup(%q) = %v", code, got)
		}
	}
	for i := 0; i < 20; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatal(err)
		}
		if !ValidGroup(code) {
			t.Fatalf("generated invalid code %q", code)
		}
	}
}

func TestCreateSetsHostWithoutJoining(t *testing.T) {
	l, d := newLobby(t, false, db.User{ID: "alice", Name: "Alice"})
	ctx := context.Background()
	code, err := l.Create(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if host, _ := d.GetHost(ctx, code); host != "alice" {
		t.Fatalf("host = %q", host)
	}
	if ids, _ := d.Members(ctx, code); len(ids) != 0 {
		t.Fatalf("host should not be joined yet: %v", ids)
	}
}

func TestJoinRequiresToken(t *testing.T) {
	l, _ := newLobby(t, false)
	_, err := l.Join(context.Background(), group, "ghost", nil)
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	_, err = l.Join(context.Background(), "bad", "ghost", nil)
	if !errors.Is(err, ErrInvalidGroup) {
		t.Fatalf("expected ErrInvalidGroup, got %v", err)
	}
}

// TestJoinHostParticipant covers the first joiner becoming host and the
// host's second identity.
func TestJoinHostParticipant(t *testing.T) {
	l, d := newLobby(t, true, db.User{ID: "alice", Name: "Alice"}, db.User{ID: "bob", Name: "bob"})
	ctx := context.Background()

	id, err := l.Join(ctx, group, "alice", nil)
	if err != nil || id != "alice" {
		t.Fatalf("first join = %q %v", id, err)
	}
	if host, _ := d.GetHost(ctx, group); host != "alice" {
		t.Fatalf("first joiner should host, got %q", host)
	}
	id, err = l.Join(ctx, group, "alice", nil)
	if err != nil || id != "alice#participant" {
		t.Fatalf("host rejoin = %q %v", id, err)
	}
	if id, _ := l.Join(ctx, group, "bob", nil); id != "bob" {
		t.Fatalf("player join = %q", id)
	}

	l.AllowHostParticipant = false
	if id, _ := l.Join(ctx, group, "alice", nil); id != "alice" {
		t.Fatalf("participant disabled should reuse the host id, got %q", id)
	}
}

// TestJoinPreferenceStorage stores only preferences selecting a usable
// category.
func TestJoinPreferenceStorage(t *testing.T) {
	l, d := newLobby(t, false, db.User{ID: "a"}, db.User{ID: "b"}, db.User{ID: "c"})
	ctx := context.Background()
	l.Join(ctx, group, "a", &music.SourcePreference{IncludeRecent: true})
	l.Join(ctx, group, "b", &music.SourcePreference{IncludePlaylist: true})
	l.Join(ctx, group, "c", &music.SourcePreference{})

	if p, _ := d.Preference(ctx, group, "a"); p == nil || !p.IncludeRecent {
		t.Errorf("recent preference not stored: %+v", p)
	}
	if p, _ := d.Preference(ctx, group, "b"); p != nil {
		t.Errorf("playlist without id should not be stored: %+v", p)
	}
	if p, _ := d.Preference(ctx, group, "c"); p != nil {
		t.Errorf("empty preference should not be stored: %+v", p)
	}
}

func TestMembersOrdering(t *testing.T) {
	l, _ := newLobby(t, true,
		db.User{ID: "zed", Name: "Zed"},
		db.User{ID: "amy", Name: "amy", Avatar: "http://a"},
		db.User{ID: "bo", Name: "Bo"},
	)
	ctx := context.Background()
	l.Join(ctx, group, "zed", nil)
	l.Join(ctx, group, "bo", nil)
	l.Join(ctx, group, "amy", nil)
	l.Join(ctx, group, "zed", nil)

	got, err := l.Members(ctx, group)
	if err != nil {
		t.Fatal(err)
	}
	want := []Member{
		{ID: "zed", Role: RoleHost, Name: "Zed"},
		{ID: "amy", Role: RolePlayer, Name: "amy", Avatar: "http://a"},
		{ID: "bo", Role: RolePlayer, Name: "Bo"},
		{ID: "zed#participant", Role: RolePlayer, Name: "Zed"},
	}
	if len(got) != len(want) {
		t.Fatalf("members = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("member %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEnsureHostMember(t *testing.T) {
	l, d := newLobby(t, true, db.User{ID: "h"})
	ctx := context.Background()
	if err := l.EnsureHostMember(ctx, group, "h"); err != nil {
		t.Fatal(err)
	}
	if err := l.EnsureHostMember(ctx, group, "h"); err != nil {
		t.Fatal(err)
	}
	if ids, _ := d.Members(ctx, group); len(ids) != 1 || ids[0] != "h" {
		t.Fatalf("members = %v", ids)
	}
}
