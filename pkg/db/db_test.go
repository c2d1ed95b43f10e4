package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/oauth2"

	"Party-Trivia-Go/pkg/music"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// TestSaveAndGetToken ensures that OAuth tokens are stored and retrieved
// without modification.
func TestSaveAndGetToken(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	tok := &oauth2.Token{AccessToken: "abc", RefreshToken: "refresh"}
	if err := d.SaveToken(ctx, "u", tok); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetToken(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != tok.AccessToken {
		t.Fatalf("expected %s got %s", tok.AccessToken, got.AccessToken)
	}
	if got.RefreshToken != tok.RefreshToken {
		t.Fatalf("expected refresh %s got %s", tok.RefreshToken, got.RefreshToken)
	}

	if err := d.SaveToken(ctx, "u", &oauth2.Token{AccessToken: "new"}); err != nil {
		t.Fatal(err)
	}
	got, _ = d.GetToken(ctx, "u")
	if got.AccessToken != "new" {
		t.Fatalf("token not replaced: %+v", got)
	}

	if err := d.DeleteToken(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.GetToken(ctx, "u"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows after delete, got %v", err)
	}
}

// TestUsers stores a profile and updates it on the next login.
func TestUsers(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	if _, err := d.GetUser(ctx, "u"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if err := d.SaveUser(ctx, User{ID: "u", Name: "Una"}); err != nil {
		t.Fatal(err)
	}
	if err := d.SaveUser(ctx, User{ID: "u", Name: "Una B", Avatar: "http://img"}); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetUser(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if *got != (User{ID: "u", Name: "Una B", Avatar: "http://img"}) {
		t.Fatalf("unexpected user %+v", got)
	}
}

// TestHostFirstWins verifies a second SetHost does not replace the host.
func TestHostFirstWins(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	if h, err := d.GetHost(ctx, "G"); err != nil || h != "" {
		t.Fatalf("expected no host, got %q %v", h, err)
	}
	if h, err := d.SetHost(ctx, "G", "alice"); err != nil || h != "alice" {
		t.Fatalf("SetHost = %q %v", h, err)
	}
	if h, err := d.SetHost(ctx, "G", "bob"); err != nil || h != "alice" {
		t.Fatalf("second SetHost = %q %v", h, err)
	}
}

// TestMembersJoinOrder checks members come back in join order and that
// rejoining is idempotent.
func TestMembersJoinOrder(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	for _, m := range []string{"c", "a", "b", "a"} {
		if err := d.AddMember(ctx, "G", m); err != nil {
			t.Fatal(err)
		}
	}
	d.AddMember(ctx, "OTHER", "z")
	got, err := d.Members(ctx, "G")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("members = %v", got)
	}
	if ok, _ := d.IsMember(ctx, "G", "z"); ok {
		t.Fatal("z joined another group")
	}
	if ok, _ := d.IsMember(ctx, "G", "a"); !ok {
		t.Fatal("a should be a member")
	}
}

// TestPreference stores and replaces a preference and reports absence as nil.
func TestPreference(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	p, err := d.Preference(ctx, "G", "u")
	if err != nil || p != nil {
		t.Fatalf("expected absent preference, got %+v %v", p, err)
	}
	want := music.SourcePreference{IncludePlaylist: true, PlaylistID: "p1"}
	if err := d.SetPreference(ctx, "G", "u", music.SourcePreference{IncludeLiked: true}); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPreference(ctx, "G", "u", want); err != nil {
		t.Fatal(err)
	}
	p, err = d.Preference(ctx, "G", "u")
	if err != nil {
		t.Fatal(err)
	}
	if *p != want {
		t.Fatalf("preference = %+v, want %+v", *p, want)
	}
}

// TestFileDatabase verifies data survives reopening an on-disk database.
func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trivia.db")
	d, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := d.AddMember(ctx, "G", "u"); err != nil {
		t.Fatal(err)
	}
	d.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	d, err = New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	got, _ := d.Members(ctx, "G")
	if !reflect.DeepEqual(got, []string{"u"}) {
		t.Fatalf("members after reopen = %v", got)
	}
}
