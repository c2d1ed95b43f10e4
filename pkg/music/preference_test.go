package music

import "testing"

func TestResolvePreference(t *testing.T) {
	tests := []struct {
		name string
		in   *SourcePreference
		want Preference
	}{
		{"missing", nil, NoPreference{}},
		{"all off", &SourcePreference{PlaylistID: "p1"}, NoPreference{}},
		{"liked", &SourcePreference{IncludeLiked: true}, ExplicitPreference{Liked: true}},
		{"playlist", &SourcePreference{IncludePlaylist: true, PlaylistID: "p1"}, ExplicitPreference{Playlist: true, PlaylistID: "p1"}},
		{"playlist without id", &SourcePreference{IncludePlaylist: true}, ExplicitPreference{Playlist: true}},
	}
	for _, tt := range tests {
		if got := ResolvePreference(tt.in); got != tt.want {
			t.Errorf("%s: got %#v want %#v", tt.name, got, tt.want)
		}
	}
}

func TestBaseMemberID(t *testing.T) {
	cases := map[string]string{
		"abc":             "abc",
		"abc#participant": "abc",
		"":                "",
	}
	for in, want := range cases {
		if got := BaseMemberID(in); got != want {
			t.Errorf("BaseMemberID(%q) = %q, want %q", in, got, want)
		}
	}
}
