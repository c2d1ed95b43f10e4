// Package game keeps the state of running trivia games: the aggregated
// playlist of each group, the current position, the scores and the last
// revealed answer. Games live in memory until they are reset.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify"

	"Party-Trivia-Go/pkg/music"
)

const (
	// AggregateCount is the number of tracks requested from the aggregator.
	AggregateCount = 120
	// PlaylistSize is the number of tracks a game keeps.
	PlaylistSize = 100
)

var (
	ErrNotStarted = errors.New("game not started")
	ErrNoTracks   = errors.New("no tracks available for this game - check that users have authenticated and have music preferences set")
	// ErrNoPlayable is returned when none of the game's tracks resolves.
	ErrNoPlayable = errors.New("no playable tracks found")
)

// Aggregator builds a group playlist. *music.Aggregator satisfies it.
type Aggregator interface {
	Aggregate(ctx context.Context, group string, targetCount int, seed *int64) (*music.Result, error)
}

// Catalog resolves track ids to full tracks.
type Catalog interface {
	Track(ctx context.Context, id string) (*music.Track, error)
}

// TrackView is the part of a track shown while it is being guessed.
type TrackView struct {
	ID         string              `json:"id"`
	PreviewURL string              `json:"preview_url,omitempty"`
	Album      spotify.SimpleAlbum `json:"album"`
	DurationMs int                 `json:"duration_ms"`
}

// Answer is the revealed solution of the current round.
type Answer struct {
	TrackInfo
	TrackID     string             `json:"trackId"`
	Attribution *music.Attribution `json:"attribution,omitempty"`
}

// State describes a game at its current position.
type State struct {
	Group   string         `json:"group"`
	GameID  string         `json:"gameId,omitempty"`
	Index   int            `json:"index"`
	Total   int            `json:"total"`
	Track   *TrackView     `json:"track,omitempty"`
	Contrib map[string]int `json:"contrib,omitempty"`
	Answer  *Answer        `json:"answer,omitempty"`
}

// GuessResult reports the outcome of a submitted guess.
type GuessResult struct {
	Points  int `json:"points"`
	Correct struct {
		TitleArtist bool `json:"titleArtist"`
		Year        bool `json:"year"`
	} `json:"correct"`
	Answer  TrackInfo `json:"answer"`
	TrackID string    `json:"trackId"`
}

type game struct {
	mu           sync.Mutex
	id           string
	trackIDs     []string
	current      int
	scores       map[string]int
	attributions map[string]music.Attribution
	answer       *Answer
	cache        map[string]*music.Track
}

// Manager holds one game per group.
type Manager struct {
	Aggregator Aggregator
	Catalog    Catalog
	Log        logrus.FieldLogger

	mu    sync.Mutex
	games map[string]*game
}

func (m *Manager) lookup(group string) *game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.games[group]
}

// Start returns the game of group, aggregating its playlist on the first
// call. Later calls return the running game unchanged.
func (m *Manager) Start(ctx context.Context, group string, seed *int64) (*State, error) {
	g := m.lookup(group)
	if g == nil {
		res, err := m.Aggregator.Aggregate(ctx, group, AggregateCount, seed)
		if err != nil {
			return nil, fmt.Errorf("aggregate playlist: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("aggregate playlist: %w", err)
		}
		fresh := newGame(res)
		m.mu.Lock()
		if m.games == nil {
			m.games = make(map[string]*game)
		}
		if g = m.games[group]; g == nil {
			g = fresh
			m.games[group] = g
		}
		m.mu.Unlock()
		m.logger().WithFields(logrus.Fields{
			"group":   group,
			"game_id": g.id,
			"tracks":  len(g.trackIDs),
			"members": len(res.ByMember),
		}).Info("game started")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.trackIDs) == 0 {
		return nil, ErrNoTracks
	}
	return m.stateAt(ctx, group, g, g.current)
}

func newGame(res *music.Result) *game {
	ids := make([]string, 0, PlaylistSize)
	for _, t := range res.Tracks {
		if t.ID == "" {
			continue
		}
		if len(ids) == PlaylistSize {
			break
		}
		ids = append(ids, string(t.ID))
	}
	return &game{
		id:           uuid.NewString(),
		trackIDs:     ids,
		scores:       make(map[string]int),
		attributions: res.Attributions,
		cache:        make(map[string]*music.Track),
	}
}

// State returns the current position of the game of group. A group without
// a game yields an empty state rather than an error.
func (m *Manager) State(ctx context.Context, group string) (*State, error) {
	g := m.lookup(group)
	if g == nil {
		return &State{Group: group}, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.trackIDs) == 0 {
		return &State{Group: group, GameID: g.id}, nil
	}
	return m.stateAt(ctx, group, g, g.current)
}

// Next advances to the next resolvable track, wrapping around, and clears
// the revealed answer.
func (m *Manager) Next(ctx context.Context, group string) (*State, error) {
	return m.move(ctx, group, 1)
}

// Prev moves back to the previous resolvable track, wrapping around.
func (m *Manager) Prev(ctx context.Context, group string) (*State, error) {
	return m.move(ctx, group, -1)
}

func (m *Manager) move(ctx context.Context, group string, step int) (*State, error) {
	g := m.lookup(group)
	if g == nil {
		return nil, ErrNotStarted
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.trackIDs)
	if n == 0 {
		return nil, ErrNoTracks
	}
	if step > 0 {
		g.answer = nil
	}
	st, err := m.stateAt(ctx, group, g, ((g.current+step)%n+n)%n)
	if err != nil {
		return nil, err
	}
	if st.Track == nil {
		return nil, ErrNoPlayable
	}
	return st, nil
}

// SubmitGuess scores guess against the current track and credits userID.
func (m *Manager) SubmitGuess(ctx context.Context, group, userID string, guess Guess) (*GuessResult, error) {
	g := m.lookup(group)
	if g == nil {
		return nil, ErrNotStarted
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	t, err := m.currentTrack(ctx, g)
	if err != nil {
		return nil, err
	}
	info := infoOf(t)
	res := &GuessResult{Points: Score(guess, info), Answer: info, TrackID: string(t.ID)}
	res.Correct.TitleArtist = Score(Guess{Title: guess.Title, Artist: guess.Artist}, info) == TitleArtistPoints
	res.Correct.Year = guess.Year != nil && *guess.Year == info.Year
	g.scores[userID] += res.Points
	return res, nil
}

// Reveal returns and remembers the answer of the current track.
func (m *Manager) Reveal(ctx context.Context, group string) (*Answer, error) {
	g := m.lookup(group)
	if g == nil {
		return nil, ErrNotStarted
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	t, err := m.currentTrack(ctx, g)
	if err != nil {
		return nil, err
	}
	ans := &Answer{TrackInfo: infoOf(t), TrackID: string(t.ID)}
	if a, ok := g.attributions[string(t.ID)]; ok {
		ans.Attribution = &a
	}
	g.answer = ans
	return ans, nil
}

// Judge credits userID for a manually judged round and returns the points.
func (m *Manager) Judge(group, userID string, titleOK, artistOK, yearOK bool) (int, error) {
	g := m.lookup(group)
	if g == nil {
		return 0, ErrNotStarted
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	points := JudgePoints(titleOK, artistOK, yearOK)
	g.scores[userID] += points
	return points, nil
}

// Scores returns a copy of the scores of group, empty when no game runs.
func (m *Manager) Scores(group string) map[string]int {
	out := make(map[string]int)
	g := m.lookup(group)
	if g == nil {
		return out
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, v := range g.scores {
		out[k] = v
	}
	return out
}

// Reset discards the game of group so the next Start aggregates again.
func (m *Manager) Reset(group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, group)
}

// stateAt resolves the first playable track at or after index and moves
// the game there. Caller holds g.mu.
func (m *Manager) stateAt(ctx context.Context, group string, g *game, index int) (*State, error) {
	idx, t, err := m.resolveFrom(ctx, g, index)
	if err != nil {
		return nil, err
	}
	g.current = idx
	st := &State{
		Group:   group,
		GameID:  g.id,
		Index:   g.current,
		Total:   len(g.trackIDs),
		Contrib: contrib(g),
		Answer:  g.answer,
	}
	if t != nil {
		st.Track = &TrackView{
			ID:         string(t.ID),
			PreviewURL: t.PreviewURL,
			Album:      t.Album,
			DurationMs: t.Duration,
		}
	}
	return st, nil
}

// resolveFrom walks the playlist from index, wrapping around, and returns
// the first track the catalog resolves. When none resolves it returns
// index 0 and a nil track.
func (m *Manager) resolveFrom(ctx context.Context, g *game, index int) (int, *music.Track, error) {
	n := len(g.trackIDs)
	for off := 0; off < n; off++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		idx := ((index+off)%n + n) % n
		if t := m.resolve(ctx, g, g.trackIDs[idx]); t != nil {
			return idx, t, nil
		}
	}
	return 0, nil, nil
}

func (m *Manager) resolve(ctx context.Context, g *game, id string) *music.Track {
	if t, ok := g.cache[id]; ok {
		return t
	}
	t, err := m.Catalog.Track(ctx, id)
	if err != nil {
		m.logger().WithError(err).WithField("track", id).Debug("track lookup failed")
		return nil
	}
	g.cache[id] = t
	return t
}

func (m *Manager) currentTrack(ctx context.Context, g *game) (*music.Track, error) {
	if len(g.trackIDs) == 0 {
		return nil, ErrNoTracks
	}
	t := m.resolve(ctx, g, g.trackIDs[g.current])
	if t == nil {
		return nil, ErrNoPlayable
	}
	return t, nil
}

func infoOf(t *music.Track) TrackInfo {
	info := TrackInfo{Title: t.Name, Year: releaseYear(t.Album.ReleaseDate)}
	if len(t.Artists) > 0 {
		info.Artist = t.Artists[0].Name
	}
	return info
}

// contrib counts the playlist tracks whose primary source is each member.
func contrib(g *game) map[string]int {
	counts := make(map[string]int)
	for _, id := range g.trackIDs {
		a, ok := g.attributions[id]
		if !ok || len(a.Sources) == 0 {
			continue
		}
		counts[a.Sources[0].UserID]++
	}
	return counts
}

func (m *Manager) logger() logrus.FieldLogger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}
