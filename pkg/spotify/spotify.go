// Package spotify wraps the Spotify client library and provides the track
// source used by the playlist aggregator, the credential resolver backed by
// the token store and a catalog client for track lookups that do not need a
// user login.
//
// The wrapped library does not accept a context, so cancellation is checked
// explicitly before each call.
package spotify

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"

	"Party-Trivia-Go/pkg/music"
)

// Scopes requested at login. They cover every category the aggregator reads
// plus the profile and playlist listing.
var Scopes = []string{
	spotify.ScopeUserTopRead,
	spotify.ScopeUserReadRecentlyPlayed,
	spotify.ScopeUserLibraryRead,
	spotify.ScopeUserReadEmail,
	spotify.ScopeUserReadPrivate,
	spotify.ScopePlaylistReadPrivate,
	spotify.ScopePlaylistReadCollaborative,
}

const (
	topTracksLimit = 50
	getTracksChunk = 50
)

// library defines the subset of the spotify.Client used by this package.
// It allows the concrete client to be replaced in tests.
type library interface {
	CurrentUsersTracksOpt(opt *spotify.Options) (*spotify.SavedTrackPage, error)
	PlayerRecentlyPlayedOpt(opt *spotify.RecentlyPlayedOptions) ([]spotify.RecentlyPlayedItem, error)
	GetTracks(ids ...spotify.ID) ([]*spotify.FullTrack, error)
	GetPlaylistOpt(id spotify.ID, fields string) (*spotify.FullPlaylist, error)
	GetPlaylistTracksOpt(id spotify.ID, opt *spotify.Options, fields string) (*spotify.PlaylistTrackPage, error)
	CurrentUsersTopTracksOpt(opt *spotify.Options) (*spotify.FullTrackPage, error)
	CurrentUsersPlaylistsOpt(opt *spotify.Options) (*spotify.SimplePlaylistPage, error)
}

// Source reads a member's listening data with their access token. It
// implements music.TrackSource.
type Source struct {
	clientFor func(token string) library
	log       logrus.FieldLogger
}

var _ music.TrackSource = (*Source)(nil)

// NewSource returns a Source creating one client per access token through
// auth. log receives a debug line per upstream call.
func NewSource(auth spotify.Authenticator, log logrus.FieldLogger) *Source {
	return &Source{
		log: log,
		clientFor: func(token string) library {
			c := auth.NewClient(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
			return &c
		},
	}
}

// begin checks for cancellation and traces the upcoming call.
func (s *Source) begin(ctx context.Context, call string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.log != nil {
		s.log.WithField("call", call).Debug("spotify api call")
	}
	return nil
}

// SavedTracks returns one page of the member's saved tracks together with the
// library size.
func (s *Source) SavedTracks(ctx context.Context, token string, limit, offset int) (music.SavedPage, error) {
	if err := s.begin(ctx, "saved_tracks"); err != nil {
		return music.SavedPage{}, err
	}
	page, err := s.clientFor(token).CurrentUsersTracksOpt(&spotify.Options{Limit: &limit, Offset: &offset})
	if err != nil {
		return music.SavedPage{}, wrap("saved tracks", err)
	}
	items := make([]music.Track, len(page.Tracks))
	for i, t := range page.Tracks {
		items[i] = t.FullTrack
	}
	return music.SavedPage{Items: items, Total: page.Total}, nil
}

// RecentlyPlayed returns the member's recently played tracks. The library
// reports them as simple tracks, so they are hydrated with GetTracks to
// carry album and release data.
func (s *Source) RecentlyPlayed(ctx context.Context, token string, limit int) ([]music.Track, error) {
	if err := s.begin(ctx, "recently_played"); err != nil {
		return nil, err
	}
	c := s.clientFor(token)
	items, err := c.PlayerRecentlyPlayedOpt(&spotify.RecentlyPlayedOptions{Limit: limit})
	if err != nil {
		return nil, wrap("recently played", err)
	}
	seen := make(map[spotify.ID]bool, len(items))
	var ids []spotify.ID
	for _, it := range items {
		if it.Track.ID == "" || seen[it.Track.ID] {
			continue
		}
		seen[it.Track.ID] = true
		ids = append(ids, it.Track.ID)
	}
	return hydrate(ctx, c, ids)
}

func hydrate(ctx context.Context, c library, ids []spotify.ID) ([]music.Track, error) {
	out := make([]music.Track, 0, len(ids))
	for start := 0; start < len(ids); start += getTracksChunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+getTracksChunk, len(ids))
		full, err := c.GetTracks(ids[start:end]...)
		if err != nil {
			return nil, wrap("get tracks", err)
		}
		for _, t := range full {
			if t != nil {
				out = append(out, *t)
			}
		}
	}
	return out, nil
}

// PlaylistName returns the display name of a playlist.
func (s *Source) PlaylistName(ctx context.Context, token, playlistID string) (string, error) {
	if err := s.begin(ctx, "playlist"); err != nil {
		return "", err
	}
	pl, err := s.clientFor(token).GetPlaylistOpt(spotify.ID(playlistID), "name")
	if err != nil {
		return "", wrap("playlist", err)
	}
	return pl.Name, nil
}

// PlaylistTracks returns one page of a playlist. Removed or local entries
// come back as nil.
func (s *Source) PlaylistTracks(ctx context.Context, token, playlistID string, limit, offset int) ([]*music.Track, error) {
	if err := s.begin(ctx, "playlist_tracks"); err != nil {
		return nil, err
	}
	page, err := s.clientFor(token).GetPlaylistTracksOpt(spotify.ID(playlistID), &spotify.Options{Limit: &limit, Offset: &offset}, "")
	if err != nil {
		return nil, wrap("playlist tracks", err)
	}
	out := make([]*music.Track, len(page.Tracks))
	for i := range page.Tracks {
		if t := page.Tracks[i].Track; t.ID != "" {
			out[i] = &t
		}
	}
	return out, nil
}

// TopTracks returns up to 50 of the member's top tracks for r.
func (s *Source) TopTracks(ctx context.Context, token string, r music.TimeRange) ([]music.Track, error) {
	if err := s.begin(ctx, "top_tracks"); err != nil {
		return nil, err
	}
	limit := topTracksLimit
	tr := string(r)
	page, err := s.clientFor(token).CurrentUsersTopTracksOpt(&spotify.Options{Limit: &limit, Timerange: &tr})
	if err != nil {
		return nil, wrap("top tracks", err)
	}
	return page.Tracks, nil
}

// Playlist is the summary shown in the preference form.
type Playlist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tracks uint   `json:"tracks"`
	Image  string `json:"image,omitempty"`
}

// Playlists lists up to limit playlists of the current user.
func (s *Source) Playlists(ctx context.Context, token string, limit int) ([]Playlist, error) {
	if err := s.begin(ctx, "playlists"); err != nil {
		return nil, err
	}
	page, err := s.clientFor(token).CurrentUsersPlaylistsOpt(&spotify.Options{Limit: &limit})
	if err != nil {
		return nil, wrap("playlists", err)
	}
	out := make([]Playlist, len(page.Playlists))
	for i, p := range page.Playlists {
		out[i] = Playlist{ID: string(p.ID), Name: p.Name, Tracks: p.Tracks.Total}
		if len(p.Images) > 0 {
			out[i].Image = p.Images[0].URL
		}
	}
	return out, nil
}
