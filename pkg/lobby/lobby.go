// Package lobby manages trivia groups before a game starts: creating group
// codes, joining members and listing them for display. State lives in the
// database so it is shared with the playlist aggregator.
package lobby

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"Party-Trivia-Go/pkg/db"
	"Party-Trivia-Go/pkg/music"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 12

	// ParticipantSuffix marks the secondary identity of a host who also
	// plays from another device.
	ParticipantSuffix = "#participant"
)

var (
	// ErrInvalidGroup is returned for codes that are not 12 characters of
	// A-Z and 0-9.
	ErrInvalidGroup = errors.New("invalid group: use 12 alphanumeric chars")
	// ErrNoToken is returned when a user joins without a stored Spotify
	// token, which the aggregator would need.
	ErrNoToken = errors.New("no Spotify tokens found, please reconnect with Spotify")
)

// Role of a member within a group.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Member is a lobby entry enriched with the stored profile.
type Member struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Store is the persistence the lobby relies on. *db.DB satisfies it.
type Store interface {
	SetHost(ctx context.Context, group, userID string) (string, error)
	GetHost(ctx context.Context, group string) (string, error)
	AddMember(ctx context.Context, group, memberID string) error
	Members(ctx context.Context, group string) ([]string, error)
	SetPreference(ctx context.Context, group, userID string, p music.SourcePreference) error
	GetToken(ctx context.Context, userID string) (*oauth2.Token, error)
	GetUser(ctx context.Context, userID string) (*db.User, error)
}

// Lobby implements group bookkeeping on top of a Store.
type Lobby struct {
	Store Store
	// AllowHostParticipant lets the host join a second time as a player
	// under "<id>#participant".
	AllowHostParticipant bool
	Log                  logrus.FieldLogger
}

// ValidGroup reports whether code is a well-formed group code.
func ValidGroup(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// NewCode returns a random group code.
func NewCode() (string, error) {
	var b strings.Builder
	size := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// Create allocates a new group hosted by hostID. The host is not joined
// yet; they still have to pick their sources.
func (l *Lobby) Create(ctx context.Context, hostID string) (string, error) {
	code, err := NewCode()
	if err != nil {
		return "", fmt.Errorf("generate group code: %w", err)
	}
	if _, err := l.Store.SetHost(ctx, code, hostID); err != nil {
		return "", fmt.Errorf("set host of %s: %w", code, err)
	}
	l.logger().WithFields(logrus.Fields{"group": code, "host": hostID}).Info("group created")
	return code, nil
}

// Join adds userID to group and returns the member id it was recorded
// under. The first joiner of a hostless group becomes its host. pref is
// stored only when it selects liked, recent or a playlist with an id;
// otherwise the member falls back to their top tracks.
func (l *Lobby) Join(ctx context.Context, group, userID string, pref *music.SourcePreference) (string, error) {
	if !ValidGroup(group) {
		return "", ErrInvalidGroup
	}
	if _, err := l.Store.GetToken(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("load token: %w", err)
	}
	log := l.logger().WithFields(logrus.Fields{"group": group, "member": userID})

	host, err := l.Store.GetHost(ctx, group)
	if err != nil {
		return "", fmt.Errorf("get host of %s: %w", group, err)
	}
	memberID := userID
	switch {
	case host == "":
		if _, err := l.Store.SetHost(ctx, group, userID); err != nil {
			return "", fmt.Errorf("set host of %s: %w", group, err)
		}
	case host == userID && l.AllowHostParticipant:
		memberID = userID + ParticipantSuffix
	}
	if err := l.Store.AddMember(ctx, group, memberID); err != nil {
		return "", fmt.Errorf("add member: %w", err)
	}

	if pref != nil && (pref.IncludeLiked || pref.IncludeRecent || (pref.IncludePlaylist && pref.PlaylistID != "")) {
		if err := l.Store.SetPreference(ctx, group, userID, *pref); err != nil {
			return "", fmt.Errorf("store preference: %w", err)
		}
		log.WithField("preference", *pref).Debug("stored source preference")
	} else {
		log.Debug("no usable preference, member will use top tracks")
	}
	log.WithField("member_id", memberID).Info("member joined")
	return memberID, nil
}

// EnsureHostMember joins the host when they start a game without having
// joined under either of their identities.
func (l *Lobby) EnsureHostMember(ctx context.Context, group, hostID string) error {
	ids, err := l.Store.Members(ctx, group)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == hostID || id == hostID+ParticipantSuffix {
			return nil
		}
	}
	return l.Store.AddMember(ctx, group, hostID)
}

// Members lists the members of group with their role and profile, host
// first and the rest ordered by name ignoring case.
func (l *Lobby) Members(ctx context.Context, group string) ([]Member, error) {
	if !ValidGroup(group) {
		return nil, ErrInvalidGroup
	}
	ids, err := l.Store.Members(ctx, group)
	if err != nil {
		return nil, err
	}
	host, err := l.Store.GetHost(ctx, group)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(ids))
	for _, id := range ids {
		m := Member{ID: id, Role: RolePlayer}
		if id == host {
			m.Role = RoleHost
		}
		base := music.BaseMemberID(id)
		m.Name = base
		if u, err := l.Store.GetUser(ctx, base); err == nil {
			if u.Name != "" {
				m.Name = u.Name
			}
			m.Avatar = u.Avatar
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role == RoleHost
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Host returns the host of group, "" when none.
func (l *Lobby) Host(ctx context.Context, group string) (string, error) {
	return l.Store.GetHost(ctx, group)
}

func (l *Lobby) logger() logrus.FieldLogger {
	if l.Log == nil {
		return logrus.StandardLogger()
	}
	return l.Log
}
