// Package handlers contains the HTTP API of the trivia server: Spotify login,
// lobby management, the running game and a few service endpoints. Handlers
// are methods on Application which bundles their dependencies.
package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"Party-Trivia-Go/pkg/db"
	"Party-Trivia-Go/pkg/game"
	"Party-Trivia-Go/pkg/lobby"
	"Party-Trivia-Go/pkg/spotify"
)

// Authenticator runs the OAuth authorization code flow. The Spotify
// library's Authenticator satisfies it.
type Authenticator interface {
	AuthURL(state string) string
	Token(state string, r *http.Request) (*oauth2.Token, error)
}

// ProfileFetcher loads the profile of the user owning tok.
type ProfileFetcher interface {
	Profile(ctx context.Context, tok *oauth2.Token) (*db.User, error)
}

// TokenSource returns a valid token for a user, refreshing it if needed.
type TokenSource interface {
	Token(ctx context.Context, userID string) (*oauth2.Token, error)
}

// PlaylistLister lists the playlists of the token's owner.
type PlaylistLister interface {
	Playlists(ctx context.Context, token string, limit int) ([]spotify.Playlist, error)
}

// Application holds the dependencies used by the HTTP handlers.
type Application struct {
	DB            *db.DB
	Lobby         *lobby.Lobby
	Games         *game.Manager
	Authenticator Authenticator
	Profiles      ProfileFetcher
	Tokens        TokenSource
	Playlists     PlaylistLister
	SignKey       []byte
	// WebURL is the browser app OAuth callbacks and join links point to.
	WebURL  string
	Version string
	Log     logrus.FieldLogger
}

// Routes registers every endpoint on a new mux.
func (app *Application) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", app.Health)
	mux.HandleFunc("GET /api/version", app.VersionInfo)
	mux.HandleFunc("GET /api/config", app.PublicConfig)

	mux.HandleFunc("GET /auth/login", app.Login)
	mux.HandleFunc("GET /auth/callback", app.OAuthCallback)
	mux.HandleFunc("POST /api/logout", app.Logout)
	mux.HandleFunc("GET /api/me", app.Me)
	mux.HandleFunc("GET /api/playlists", app.PlaylistsJSON)

	mux.HandleFunc("POST /api/game/create", app.CreateGame)
	mux.HandleFunc("POST /api/lobby/join", app.JoinLobby)
	mux.HandleFunc("GET /api/lobby/{group}", app.LobbyMembers)

	mux.HandleFunc("POST /api/game/{group}/start", app.StartGame)
	mux.HandleFunc("GET /api/game/{group}/state", app.GameState)
	mux.HandleFunc("POST /api/game/{group}/guess", app.SubmitGuess)
	mux.HandleFunc("POST /api/game/{group}/next", app.NextTrack)
	mux.HandleFunc("POST /api/game/{group}/prev", app.PrevTrack)
	mux.HandleFunc("GET /api/game/{group}/reveal", app.Reveal)
	mux.HandleFunc("POST /api/game/{group}/judge", app.Judge)
	mux.HandleFunc("POST /api/game/{group}/reset", app.ResetGame)
	mux.HandleFunc("GET /api/game/{group}/qr", app.JoinQR)
	return mux
}

// Health reports that the server is up.
func (app *Application) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// VersionInfo returns the server name and version.
func (app *Application) VersionInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"name": "party-trivia", "version": app.Version})
}

// PublicConfig exposes the settings the web app needs.
func (app *Application) PublicConfig(w http.ResponseWriter, r *http.Request) {
	allow := app.Lobby != nil && app.Lobby.AllowHostParticipant
	respondJSON(w, http.StatusOK, map[string]bool{"allowHostParticipant": allow})
}

func (app *Application) logger() logrus.FieldLogger {
	if app.Log == nil {
		return logrus.StandardLogger()
	}
	return app.Log
}
