// This file groups authentication helpers and endpoints: signed session
// cookies, CSRF protection and the Spotify OAuth login. CSRF protection uses
// a random token stored in a cookie which clients must echo back in the
// X-CSRF-Token header for all state changing requests.

package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"Party-Trivia-Go/pkg/db"
	"Party-Trivia-Go/pkg/lobby"
)

const (
	userCookie   = "trivia_user"
	groupCookie  = "trivia_group"
	memberCookie = "trivia_member"
	stateCookie  = "oauth_state"
	intentCookie = "oauth_intent"
	csrfCookie   = "csrf_token"
)

// signValue computes an HMAC signature for value and appends it using the
// format value|signature.
func signValue(value string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	sig := mac.Sum(nil)
	return value + "|" + base64.RawURLEncoding.EncodeToString(sig)
}

// verifyValue checks the HMAC signature appended to signed. It returns the
// original value and true when the signature matches the provided key.
func verifyValue(signed string, key []byte) (string, bool) {
	i := strings.LastIndex(signed, "|")
	if i < 0 {
		return "", false
	}
	value := signed[:i]
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	expected := mac.Sum(nil)
	sig, err := base64.RawURLEncoding.DecodeString(signed[i+1:])
	if err != nil || !hmac.Equal(expected, sig) {
		return "", false
	}
	return value, true
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// setCSRFToken generates a new random token and sets it in a cookie readable
// by client-side scripts.
func setCSRFToken(w http.ResponseWriter, secure bool) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookie,
		Value:    token,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// verifyCSRF compares the X-CSRF-Token header with the csrf_token cookie in
// constant time.
func verifyCSRF(r *http.Request) bool {
	c, err := r.Cookie(csrfCookie)
	if err != nil {
		return false
	}
	header := r.Header.Get("X-CSRF-Token")
	if header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(header)) == 1
}

func (app *Application) setSigned(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    signValue(value, app.SignKey),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (app *Application) readSigned(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	return verifyValue(c.Value, app.SignKey)
}

func clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: name != csrfCookie,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// setSession remembers the group the user is in and the member id they
// joined under.
func (app *Application) setSession(w http.ResponseWriter, r *http.Request, group, memberID string) {
	app.setSigned(w, r, groupCookie, group)
	app.setSigned(w, r, memberCookie, memberID)
}

// requireUser enforces authentication and, on state-changing requests, the
// CSRF token. It writes the error response and returns false on failure.
func (app *Application) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := app.readSigned(r, userCookie)
	if !ok || id == "" {
		respondJSONError(w, http.StatusUnauthorized, "Not authenticated")
		return "", false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead && !verifyCSRF(r) {
		respondJSONError(w, http.StatusForbidden, "invalid csrf token")
		return "", false
	}
	return id, true
}

// Login begins the Spotify OAuth flow. The optional state query parameter
// ("create" or "join:<group>") says what to do once the user is back; it
// is kept in a signed cookie next to the random OAuth state.
func (app *Application) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken()
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}
	app.setSigned(w, r, stateCookie, state)
	if intent := r.URL.Query().Get("state"); intent != "" {
		app.setSigned(w, r, intentCookie, intent)
	} else {
		clearCookie(w, r, intentCookie)
	}
	http.Redirect(w, r, app.Authenticator.AuthURL(state), http.StatusFound)
}

// OAuthCallback completes the OAuth flow: the token and profile are stored,
// the user id is written to a signed cookie and the browser is sent back to
// the web app according to the login intent.
func (app *Application) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	state, ok := app.readSigned(r, stateCookie)
	if !ok || r.URL.Query().Get("state") != state {
		respondJSONError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	clearCookie(w, r, stateCookie)
	intent, _ := app.readSigned(r, intentCookie)
	clearCookie(w, r, intentCookie)

	token, err := app.Authenticator.Token(state, r)
	if err != nil {
		app.logger().WithError(err).Warn("oauth token exchange failed")
		respondJSONError(w, http.StatusBadRequest, "authentication failed")
		return
	}
	user, err := app.Profiles.Profile(r.Context(), token)
	if err != nil {
		app.logger().WithError(err).Warn("fetching profile failed")
		respondJSONError(w, http.StatusBadRequest, "failed to fetch profile")
		return
	}
	if err := app.DB.SaveUser(r.Context(), *user); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to store user")
		return
	}
	if err := app.DB.SaveToken(r.Context(), user.ID, token); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "failed to store token")
		return
	}
	app.setSigned(w, r, userCookie, user.ID)
	if _, err := setCSRFToken(w, r.TLS != nil); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "csrf token")
		return
	}
	log := app.logger().WithFields(logrus.Fields{"user": user.ID, "intent": intent})
	log.Info("user authenticated")

	q := url.Values{"authed": {"1"}}
	path := "/"
	switch {
	case intent == "create":
		group, err := app.Lobby.Create(r.Context(), user.ID)
		if err != nil {
			log.WithError(err).Error("auto-creating game failed")
			q.Set("error", "create_failed")
			break
		}
		app.setSession(w, r, group, user.ID)
		path = "/game"
		q.Set("group", group)
		q.Set("created", "1")
	case strings.HasPrefix(intent, "join:"):
		group := strings.ToUpper(strings.TrimPrefix(intent, "join:"))
		if !lobby.ValidGroup(group) {
			q.Set("error", "invalid_group")
			break
		}
		path = "/game"
		q.Set("group", group)
		q.Set("autojoin", "1")
	}
	http.Redirect(w, r, strings.TrimRight(app.WebURL, "/")+path+"?"+q.Encode(), http.StatusFound)
}

// Logout clears the session cookies. Stored tokens are kept so games the
// user joined can still use their library, unless forget=1 is given.
func (app *Application) Logout(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("forget") == "1" {
		uid, ok := app.requireUser(w, r)
		if !ok {
			return
		}
		if err := app.DB.DeleteToken(r.Context(), uid); err != nil {
			respondJSONError(w, http.StatusInternalServerError, "failed to forget token")
			return
		}
		app.logger().WithField("user", uid).Info("stored token deleted")
	}
	for _, name := range []string{userCookie, groupCookie, memberCookie, csrfCookie} {
		clearCookie(w, r, name)
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Logged out successfully"})
}

// Me returns the current user together with their group and role.
func (app *Application) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	u, err := app.DB.GetUser(r.Context(), uid)
	if err != nil {
		u = &db.User{ID: uid}
	}
	name := u.Name
	if name == "" {
		name = uid
	}
	resp := struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Avatar   string  `json:"avatar,omitempty"`
		Group    *string `json:"group"`
		MemberID *string `json:"memberId"`
		Role     *string `json:"role"`
	}{ID: uid, Name: name, Avatar: u.Avatar}

	group, hasGroup := app.readSigned(r, groupCookie)
	memberID, hasMember := app.readSigned(r, memberCookie)
	if hasMember {
		resp.MemberID = &memberID
	}
	if hasGroup {
		resp.Group = &group
		role, err := app.roleOf(r, group, uid, memberID)
		if err != nil && !errors.Is(err, lobby.ErrInvalidGroup) {
			respondJSONError(w, http.StatusInternalServerError, "failed to load lobby")
			return
		}
		if role != "" {
			resp.Role = &role
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// roleOf resolves the role of the session within group: the role of the
// joined member when present, otherwise host if the user hosts the group.
func (app *Application) roleOf(r *http.Request, group, uid, memberID string) (string, error) {
	members, err := app.Lobby.Members(r.Context(), group)
	if err != nil {
		return "", err
	}
	for _, m := range members {
		if memberID != "" && m.ID == memberID {
			return string(m.Role), nil
		}
	}
	host, err := app.Lobby.Host(r.Context(), group)
	if err != nil || host == "" {
		return "", err
	}
	if host == uid || host == memberID {
		return string(lobby.RoleHost), nil
	}
	return string(lobby.RolePlayer), nil
}
