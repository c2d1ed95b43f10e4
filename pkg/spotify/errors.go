package spotify

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
)

var (
	// ErrUnauthorized means the access token was rejected or could not be
	// refreshed. The member has to log in again.
	ErrUnauthorized = errors.New("spotify: unauthorized")
	// ErrRateLimited means the Web API answered 429.
	ErrRateLimited = errors.New("spotify: rate limited")
	// ErrUpstream covers every other error status returned by the Web API.
	ErrUpstream = errors.New("spotify: upstream error")
)

// wrap classifies err by HTTP status and wraps it with op. Errors that are
// not API responses (network failures, cancellation) are wrapped unchanged.
func wrap(op string, err error) error {
	status := 0
	var se spotify.Error
	var sp *spotify.Error
	var re *oauth2.RetrieveError
	switch {
	case errors.As(err, &se):
		status = se.Status
	case errors.As(err, &sp):
		status = sp.Status
	case errors.As(err, &re):
		return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrUnauthorized
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		kind = ErrUpstream
	}
	return fmt.Errorf("%s: %w: %v", op, kind, err)
}
