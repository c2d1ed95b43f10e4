// Package music builds the track list of a trivia game. Each member of a
// group contributes tracks from the categories they selected (or their top
// tracks), the contributions are deduplicated and attributed, and a
// two-pass balanced selection gives every contributing member a fair share
// before the most prolific ones fill the remaining slots.
//
// The Aggregator reaches member data and the music provider through the
// MembershipStore, CredentialStore and TrackSource interfaces; concrete
// implementations live in the db and spotify packages.
//
// Track is an alias of spotify.FullTrack so handlers, the game package and
// the aggregation core operate on the same familiar fields (Name, Album,
// Artists, PreviewURL etc).
package music

import (
	"context"

	libspotify "github.com/zmb3/spotify"
)

// Track represents a catalog entry returned by the music provider. The
// ID is unique per catalog entry and PreviewURL is empty when no preview
// exists.
type Track = libspotify.FullTrack

// Category tags where a contributed track came from.
type Category string

const (
	CategoryLiked     Category = "liked"
	CategoryRecent    Category = "recent"
	CategoryPlaylist  Category = "playlist"
	CategoryTopTracks Category = "top_tracks"
)

// TimeRange selects the window used for a member's top tracks.
type TimeRange string

const (
	ShortTerm  TimeRange = "short"
	MediumTerm TimeRange = "medium"
	LongTerm   TimeRange = "long"
)

// SavedPage is one page of a member's saved tracks together with the
// total size of the library.
type SavedPage struct {
	Items []Track
	Total int
}

// Contribution records that a member surfaced a track from a category.
// Detail carries the playlist name for CategoryPlaylist.
type Contribution struct {
	MemberID string
	Track    Track
	Category Category
	Detail   string
}

// Source is a Contribution stripped of its track, enriched with the
// member's display name.
type Source struct {
	UserID       string   `json:"userId"`
	UserName     string   `json:"userName"`
	SourceType   Category `json:"sourceType"`
	SourceDetail string   `json:"sourceDetail,omitempty"`
}

// Attribution explains why a track ended up in the playlist. Sources are
// ordered by member processing order.
type Attribution struct {
	TrackID string   `json:"trackId"`
	Sources []Source `json:"sources"`
}

// Result is the output of a single aggregation run. ByMember holds the raw
// deduplicated ids each member contributed, not the post-selection ones.
type Result struct {
	Tracks       []Track                `json:"tracks"`
	ByMember     map[string][]string    `json:"byUser"`
	Attributions map[string]Attribution `json:"attributions"`
}

// emptyResult is returned when nobody contributed anything.
func emptyResult() *Result {
	return &Result{
		Tracks:       []Track{},
		ByMember:     map[string][]string{},
		Attributions: map[string]Attribution{},
	}
}

// MembershipStore resolves who is in a group and what each member asked
// to contribute.
type MembershipStore interface {
	// Members returns the member ids of group in join order. Ids may
	// carry a "#participant" suffix marking a secondary identity.
	Members(ctx context.Context, group string) ([]string, error)

	// Preference returns the source preference of the base member id in
	// group, or nil when none was stored.
	Preference(ctx context.Context, group, memberID string) (*SourcePreference, error)
}

// CredentialStore resolves upstream access for a base member id.
type CredentialStore interface {
	// Credential returns a usable access token. ok is false when the
	// member never connected an account.
	Credential(ctx context.Context, memberID string) (token string, ok bool, err error)

	// DisplayName returns the member's display name or "" when unknown.
	DisplayName(ctx context.Context, memberID string) string
}

// TrackSource fetches candidate tracks from the music provider on behalf
// of a member identified by their access token.
type TrackSource interface {
	SavedTracks(ctx context.Context, token string, limit, offset int) (SavedPage, error)
	RecentlyPlayed(ctx context.Context, token string, limit int) ([]Track, error)
	PlaylistName(ctx context.Context, token, playlistID string) (string, error)
	// PlaylistTracks returns one page of a playlist. Removed entries are
	// nil.
	PlaylistTracks(ctx context.Context, token, playlistID string, limit, offset int) ([]*Track, error)
	TopTracks(ctx context.Context, token string, r TimeRange) ([]Track, error)
}
