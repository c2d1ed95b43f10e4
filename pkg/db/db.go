// Package db provides the persistence layer used by the application. It wraps
// a SQLite database and stores Spotify profiles, OAuth tokens and the lobby
// state of every group: its host, its members in join order and the source
// preference each member picked. Callers open a single DB with New and reuse
// it for all operations.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/oauth2"

	"Party-Trivia-Go/pkg/music"
)

// DB wraps a sql.DB connection and exposes helper methods for the
// application's persistence layer.
type DB struct {
	*sql.DB
}

var _ music.MembershipStore = (*DB)(nil)

// New opens the SQLite database located at path, creating the schema when
// needed. ":memory:" is supported; the pool is limited to one connection so
// every query sees the same in-memory database.
func New(path string) (*DB, error) {
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(1)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (user_id TEXT PRIMARY KEY, name TEXT NOT NULL DEFAULT '', avatar TEXT NOT NULL DEFAULT '')`,
		`CREATE TABLE IF NOT EXISTS tokens (user_id TEXT PRIMARY KEY, token TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS lobbies (code TEXT PRIMARY KEY, host TEXT NOT NULL DEFAULT '', created_at TIMESTAMP NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS members (seq INTEGER PRIMARY KEY AUTOINCREMENT, group_code TEXT NOT NULL, member_id TEXT NOT NULL, joined_at TIMESTAMP NOT NULL)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_members_group_member ON members(group_code, member_id)`,
		`CREATE TABLE IF NOT EXISTS preferences (group_code TEXT NOT NULL, user_id TEXT NOT NULL, include_liked INTEGER NOT NULL, include_recent INTEGER NOT NULL, include_playlist INTEGER NOT NULL, playlist_id TEXT NOT NULL DEFAULT '', PRIMARY KEY (group_code, user_id))`,
	}
	for _, s := range stmts {
		if _, err := d.Exec(s); err != nil {
			d.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	return &DB{d}, nil
}

// User is the profile captured at login.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// SaveUser stores or replaces the profile for u.ID.
func (db *DB) SaveUser(ctx context.Context, u User) error {
	_, err := db.ExecContext(ctx, `INSERT INTO users(user_id, name, avatar) VALUES(?, ?, ?) ON CONFLICT(user_id) DO UPDATE SET name=excluded.name, avatar=excluded.avatar`, u.ID, u.Name, u.Avatar)
	return err
}

// GetUser returns the stored profile. sql.ErrNoRows is returned for unknown
// users.
func (db *DB) GetUser(ctx context.Context, userID string) (*User, error) {
	u := User{ID: userID}
	if err := db.QueryRowContext(ctx, `SELECT name, avatar FROM users WHERE user_id=?`, userID).Scan(&u.Name, &u.Avatar); err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveToken persists the OAuth token for the given userID. If a token
// already exists it is replaced.
func (db *DB) SaveToken(ctx context.Context, userID string, token *oauth2.Token) error {
	b, err := json.Marshal(token)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO tokens(user_id, token) VALUES(?, ?) ON CONFLICT(user_id) DO UPDATE SET token=excluded.token`, userID, string(b))
	return err
}

// GetToken retrieves the OAuth token stored for userID. The returned token
// includes the refresh token if one was originally saved.
func (db *DB) GetToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	var data string
	if err := db.QueryRowContext(ctx, `SELECT token FROM tokens WHERE user_id=?`, userID).Scan(&data); err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(data), &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// DeleteToken forgets the stored token, used on logout.
func (db *DB) DeleteToken(ctx context.Context, userID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM tokens WHERE user_id=?`, userID)
	return err
}

// SetHost records userID as the host of group. The first host wins: the
// call is a no-op when the group already has one. The returned value is the
// effective host.
func (db *DB) SetHost(ctx context.Context, group, userID string) (string, error) {
	_, err := db.ExecContext(ctx, `INSERT INTO lobbies(code, host, created_at) VALUES(?, ?, ?) ON CONFLICT(code) DO UPDATE SET host=excluded.host WHERE lobbies.host=''`, group, userID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return db.GetHost(ctx, group)
}

// GetHost returns the host of group or "" when the group has none.
func (db *DB) GetHost(ctx context.Context, group string) (string, error) {
	var host string
	err := db.QueryRowContext(ctx, `SELECT host FROM lobbies WHERE code=?`, group).Scan(&host)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return host, err
}

// AddMember appends memberID to group. Joining twice keeps the original
// position.
func (db *DB) AddMember(ctx context.Context, group, memberID string) error {
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO members(group_code, member_id, joined_at) VALUES(?, ?, ?)`, group, memberID, time.Now().UTC())
	return err
}

// Members lists the member ids of group in join order. It implements
// music.MembershipStore.
func (db *DB) Members(ctx context.Context, group string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT member_id FROM members WHERE group_code=? ORDER BY seq`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsMember reports whether memberID has joined group.
func (db *DB) IsMember(ctx context.Context, group, memberID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE group_code=? AND member_id=?`, group, memberID).Scan(&n)
	return n > 0, err
}

// SetPreference stores the source preference of userID within group,
// replacing any previous choice.
func (db *DB) SetPreference(ctx context.Context, group, userID string, p music.SourcePreference) error {
	_, err := db.ExecContext(ctx, `INSERT INTO preferences(group_code, user_id, include_liked, include_recent, include_playlist, playlist_id) VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_code, user_id) DO UPDATE SET include_liked=excluded.include_liked, include_recent=excluded.include_recent, include_playlist=excluded.include_playlist, playlist_id=excluded.playlist_id`,
		group, userID, p.IncludeLiked, p.IncludeRecent, p.IncludePlaylist, p.PlaylistID)
	return err
}

// Preference returns the stored preference of userID within group, or nil
// when none was recorded. It implements music.MembershipStore.
func (db *DB) Preference(ctx context.Context, group, userID string) (*music.SourcePreference, error) {
	var p music.SourcePreference
	err := db.QueryRowContext(ctx, `SELECT include_liked, include_recent, include_playlist, playlist_id FROM preferences WHERE group_code=? AND user_id=?`, group, userID).
		Scan(&p.IncludeLiked, &p.IncludeRecent, &p.IncludePlaylist, &p.PlaylistID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
