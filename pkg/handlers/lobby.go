package handlers

import (
	"errors"
	"net/http"
	"strings"

	"Party-Trivia-Go/pkg/lobby"
	"Party-Trivia-Go/pkg/music"
)

// groupParam returns the upper-cased {group} path value.
func groupParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.PathValue("group")))
}

// CreateGame allocates a new group hosted by the caller and remembers it in
// the session.
func (app *Application) CreateGame(w http.ResponseWriter, r *http.Request) {
	uid, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	group, err := app.Lobby.Create(r.Context(), uid)
	if err != nil {
		app.logger().WithError(err).Error("creating game failed")
		respondJSONError(w, http.StatusInternalServerError, "failed to create game")
		return
	}
	app.setSession(w, r, group, uid)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "group": group})
}

type joinRequest struct {
	Group      string                  `json:"group"`
	Preference *music.SourcePreference `json:"preference,omitempty"`
}

// JoinLobby adds the caller to a group together with their source
// preference and returns the updated member list.
func (app *Application) JoinLobby(w http.ResponseWriter, r *http.Request) {
	uid, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	group := strings.ToUpper(strings.TrimSpace(req.Group))
	memberID, err := app.Lobby.Join(r.Context(), group, uid, req.Preference)
	switch {
	case errors.Is(err, lobby.ErrInvalidGroup), errors.Is(err, lobby.ErrNoToken):
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		app.logger().WithError(err).WithField("group", group).Error("join failed")
		respondJSONError(w, http.StatusBadRequest, "failed to join group")
		return
	}
	members, err := app.Lobby.Members(r.Context(), group)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	app.setSession(w, r, group, memberID)
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"group":    group,
		"memberId": memberID,
		"members":  members,
	})
}

// LobbyMembers lists the members and host of a group.
func (app *Application) LobbyMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.requireUser(w, r); !ok {
		return
	}
	group := groupParam(r)
	members, err := app.Lobby.Members(r.Context(), group)
	if errors.Is(err, lobby.ErrInvalidGroup) {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	host, err := app.Lobby.Host(r.Context(), group)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to load host")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"group": group, "members": members, "host": host})
}

// PlaylistsJSON lists the caller's playlists so they can pick one as their
// source.
func (app *Application) PlaylistsJSON(w http.ResponseWriter, r *http.Request) {
	uid, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	tok, err := app.Tokens.Token(r.Context(), uid)
	if err != nil {
		app.logger().WithError(err).WithField("user", uid).Warn("no usable token")
		respondJSONError(w, http.StatusUnauthorized, "Spotify session expired, please log in again")
		return
	}
	lists, err := app.Playlists.Playlists(r.Context(), tok.AccessToken, 20)
	if err != nil {
		app.logger().WithError(err).Error("listing playlists failed")
		respondJSONError(w, http.StatusBadGateway, "failed to fetch playlists")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"playlists": lists})
}
