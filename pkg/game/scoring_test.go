package game

import "testing"

func year(y int) *int { return &y }

func TestScore(t *testing.T) {
	actual := TrackInfo{Title: "Blinding Lights", Artist: "The Weeknd", Year: 2019}
	tests := []struct {
		name  string
		guess Guess
		want  int
	}{
		{"title and artist", Guess{Title: "blinding lights", Artist: "the weeknd"}, 1},
		{"year only", Guess{Year: year(2019)}, 5},
		{"everything", Guess{Title: "Blinding Lights!", Artist: "The  Weeknd", Year: year(2019)}, 6},
		{"title only", Guess{Title: "Blinding Lights"}, 0},
		{"wrong artist", Guess{Title: "Blinding Lights", Artist: "Drake", Year: year(2018)}, 0},
		{"blank strings", Guess{Title: "  ", Artist: " "}, 0},
	}
	for _, tt := range tests {
		if got := Score(tt.guess, actual); got != tt.want {
			t.Errorf("%s: got %d want %d", tt.name, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Stay (feat. Justin Bieber)": "stay",
		"Lose Yourself feat. Nobody": "lose yourself",
		"  Don't Stop Me Now ":       "don t stop me now",
		"AC/DC":                      "ac dc",
	}
	for in, want := range cases {
		if got := normalize(in); got != want {
			t.Errorf("normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJudgePoints(t *testing.T) {
	if got := JudgePoints(true, true, true); got != 7 {
		t.Errorf("all correct = %d", got)
	}
	if got := JudgePoints(false, true, false); got != 1 {
		t.Errorf("artist only = %d", got)
	}
	if got := JudgePoints(false, false, false); got != 0 {
		t.Errorf("nothing = %d", got)
	}
}

func TestReleaseYear(t *testing.T) {
	cases := map[string]int{"2019-11-29": 2019, "1987": 1987, "": 0, "unknown": 0}
	for in, want := range cases {
		if got := releaseYear(in); got != want {
			t.Errorf("releaseYear(%q) = %d", in, got)
		}
	}
}
