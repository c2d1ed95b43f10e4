package music

// SourcePreference is the per-member, per-group choice of categories to
// draw tracks from, as stored by the lobby.
type SourcePreference struct {
	IncludeLiked    bool   `json:"includeLiked"`
	IncludeRecent   bool   `json:"includeRecent"`
	IncludePlaylist bool   `json:"includePlaylist"`
	PlaylistID      string `json:"playlistId,omitempty"`
}

// Preference is either NoPreference or ExplicitPreference.
type Preference interface {
	preference()
}

// NoPreference means the member falls back to their top tracks.
type NoPreference struct{}

// ExplicitPreference has at least one inclusion flag set.
type ExplicitPreference struct {
	Liked      bool
	Recent     bool
	Playlist   bool
	PlaylistID string
}

func (NoPreference) preference()       {}
func (ExplicitPreference) preference() {}

// ResolvePreference normalizes a stored preference. A missing preference
// and one with every flag cleared both resolve to NoPreference.
func ResolvePreference(p *SourcePreference) Preference {
	if p == nil || !(p.IncludeLiked || p.IncludeRecent || p.IncludePlaylist) {
		return NoPreference{}
	}
	return ExplicitPreference{
		Liked:      p.IncludeLiked,
		Recent:     p.IncludeRecent,
		Playlist:   p.IncludePlaylist,
		PlaylistID: p.PlaylistID,
	}
}
