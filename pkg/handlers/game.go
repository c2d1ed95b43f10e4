package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"Party-Trivia-Go/pkg/game"
	"Party-Trivia-Go/pkg/lobby"
	"Party-Trivia-Go/pkg/music"
)

type gameResponse struct {
	*game.State
	OK     bool           `json:"ok"`
	Scores map[string]int `json:"scores"`
}

func (app *Application) respondState(w http.ResponseWriter, st *game.State) {
	respondJSON(w, http.StatusOK, gameResponse{State: st, OK: true, Scores: app.Games.Scores(st.Group)})
}

// respondGameError maps game errors to HTTP statuses.
func (app *Application) respondGameError(w http.ResponseWriter, group string, err error) {
	switch {
	case errors.Is(err, game.ErrNotStarted):
		respondJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrNoTracks):
		respondJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrNoPlayable):
		respondJSONError(w, http.StatusNotFound, err.Error())
	default:
		app.logger().WithError(err).WithField("group", group).Error("game request failed")
		respondJSONError(w, http.StatusInternalServerError, "game request failed")
	}
}

// gameCaller authenticates the request and validates the {group} path
// value. It returns the group, the user id and the member id the caller
// plays under in that group.
func (app *Application) gameCaller(w http.ResponseWriter, r *http.Request) (group, uid, member string, ok bool) {
	uid, ok = app.requireUser(w, r)
	if !ok {
		return "", "", "", false
	}
	group = groupParam(r)
	if !lobby.ValidGroup(group) {
		respondJSONError(w, http.StatusBadRequest, lobby.ErrInvalidGroup.Error())
		return "", "", "", false
	}
	member = uid
	if g, ok := app.readSigned(r, groupCookie); ok && g == group {
		if m, ok := app.readSigned(r, memberCookie); ok && music.BaseMemberID(m) == uid {
			member = m
		}
	}
	return group, uid, member, true
}

// requireHost checks that uid hosts group and returns the host id.
func (app *Application) requireHost(w http.ResponseWriter, r *http.Request, group, uid string) (string, bool) {
	host, err := app.Lobby.Host(r.Context(), group)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to load host")
		return "", false
	}
	if host == "" {
		respondJSONError(w, http.StatusBadRequest, "group has no host")
		return "", false
	}
	if host != uid {
		respondJSONError(w, http.StatusForbidden, "only the host can do that")
		return "", false
	}
	return host, true
}

// StartGame aggregates the group playlist and starts the game. Only the
// host may start it; an optional seed query parameter makes the playlist
// reproducible.
func (app *Application) StartGame(w http.ResponseWriter, r *http.Request) {
	group, uid, _, ok := app.gameCaller(w, r)
	if !ok {
		return
	}
	host, ok := app.requireHost(w, r, group, uid)
	if !ok {
		return
	}
	seed := time.Now().UnixMilli()
	if s := r.URL.Query().Get("seed"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "seed must be an integer")
			return
		}
		seed = v
	}
	if err := app.Lobby.EnsureHostMember(r.Context(), group, host); err != nil {
		app.logger().WithError(err).WithField("group", group).Error("adding host failed")
		respondJSONError(w, http.StatusInternalServerError, "failed to add host")
		return
	}
	st, err := app.Games.Start(r.Context(), group, &seed)
	if err != nil {
		app.respondGameError(w, group, err)
		return
	}
	app.respondState(w, st)
}

// GameState returns the current position of the game.
func (app *Application) GameState(w http.ResponseWriter, r *http.Request) {
	group, _, _, ok := app.gameCaller(w, r)
	if !ok {
		return
	}
	st, err := app.Games.State(r.Context(), group)
	if err != nil {
		app.respondGameError(w, group, err)
		return
	}
	app.respondState(w, st)
}

type guessRequest struct {
	Guess game.Guess `json:"guess"`
}

// SubmitGuess scores the caller's guess for the current track.
func (app *Application) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	group, _, member, ok := app.gameCaller(w, r)
	if !ok {
		return
	}
	var req guessRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := app.Games.SubmitGuess(r.Context(), group, member, req.Guess)
	if err != nil {
		app.respondGameError(w, group, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"result": res,
		"scores": app.Games.Scores(group),
	})
}

// NextTrack advances the game to the next playable track.
func (app *Application) NextTrack(w http.ResponseWriter, r *http.Request) {
	group, _, _, ok := app.gameCaller(w, r)
	if !ok {
		return
	}
	st, err := app.Games.Next(r.Context(), group)
	if err != nil {
		app.respondGameError(w, group, err)
		return
	}
	app.respondState(w, st)
}

// PrevTrack moves the game back to the previous playable track.
func (app *Application) PrevTrack(w http.ResponseWriter, r *http.Request) {
	group, _, _, ok := app.gameCaller(w, r)
	if !ok {
		return
	}
	st, err := app.Games.Prev(r.Context(), group)
	if err != nil {
		app.respondGameError(w, group, err)
		return
	}
	app.respondState(w, st)
}

// Reveal returns the answer of the current track with its attribution.
func (app *Application) Reveal(w http.ResponseWriter, r *http.Request) {
	group, _, _, ok := app.gameCaller(w, r)
	if !ok {
		return
	}
	ans, err := app.Games.Reveal(r.Context(), group)
	if err != nil {
		app.respondGameError(w, group, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"answer": ans,
		"scores": app.Games.Scores(group),
	})
}

type judgeRequest struct {
	UserID   string `json:"userId"`
	TitleOK  bool   `json:"titleOk"`
	ArtistOK bool   `json:"artistOk"`
	YearOK   bool   `json:"yearOk"`
}

// Judge records a manually judged answer. Without userId the caller is
// credited; crediting another member is reserved to the host.
func (app *Application) Judge(w http.ResponseWriter, r *http.Request) {
	group, uid, member, ok := app.gameCaller(w, r)
	if !ok {
		return
	}
	var req judgeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target := member
	if req.UserID != "" && req.UserID != member {
		if _, ok := app.requireHost(w, r, group, uid); !ok {
			return
		}
		isMember, err := app.DB.IsMember(r.Context(), group, req.UserID)
		if err != nil {
			respondJSONError(w, http.StatusInternalServerError, "failed to check membership")
			return
		}
		if !isMember {
			respondJSONError(w, http.StatusBadRequest, "not a member of this group")
			return
		}
		target = req.UserID
	}
	points, err := app.Games.Judge(group, target, req.TitleOK, req.ArtistOK, req.YearOK)
	if err != nil {
		app.respondGameError(w, group, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"points": points,
		"scores": app.Games.Scores(group),
	})
}

// ResetGame discards the running game. Only the host may reset it.
func (app *Application) ResetGame(w http.ResponseWriter, r *http.Request) {
	group, uid, _, ok := app.gameCaller(w, r)
	if !ok {
		return
	}
	if _, ok := app.requireHost(w, r, group, uid); !ok {
		return
	}
	app.Games.Reset(group)
	app.logger().WithField("group", group).Info("game reset")
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// JoinURL is the link other players open to join group.
func (app *Application) JoinURL(group string) string {
	q := url.Values{"group": {group}, "autojoin": {"1"}}
	return strings.TrimRight(app.WebURL, "/") + "/game?" + q.Encode()
}

// JoinQR renders the join link of a group as a PNG QR code.
func (app *Application) JoinQR(w http.ResponseWriter, r *http.Request) {
	group := groupParam(r)
	if !lobby.ValidGroup(group) {
		respondJSONError(w, http.StatusBadRequest, lobby.ErrInvalidGroup.Error())
		return
	}
	png, err := qrcode.Encode(app.JoinURL(group), qrcode.Medium, 256)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}
