package game

import (
	"regexp"
	"strconv"
	"strings"
)

// Points awarded per correct answer.
const (
	TitleArtistPoints = 1
	TitlePoints       = 1
	ArtistPoints      = 1
	YearPoints        = 5
)

// Guess is a player's answer. Year is nil when the player did not guess it.
type Guess struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Year   *int   `json:"year,omitempty"`
}

// TrackInfo is the answer a guess is compared with.
type TrackInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Year   int    `json:"year"`
}

var (
	featParen  = regexp.MustCompile(`\(feat\..*?\)`)
	featTail   = regexp.MustCompile(`feat\..*$`)
	nonAlnum   = regexp.MustCompile(`[^a-z0-9]+`)
	yearPrefix = regexp.MustCompile(`^(\d{4})`)
)

func normalize(s string) string {
	s = strings.ToLower(s)
	s = featParen.ReplaceAllString(s, "")
	if loc := featTail.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = nonAlnum.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Score returns the points earned by g: TitleArtistPoints when both title
// and artist match after normalization, plus YearPoints for the exact
// release year.
func Score(g Guess, actual TrackInfo) int {
	points := 0
	title, artist := strings.TrimSpace(g.Title), strings.TrimSpace(g.Artist)
	if title != "" && artist != "" &&
		normalize(title) == normalize(actual.Title) &&
		normalize(artist) == normalize(actual.Artist) {
		points += TitleArtistPoints
	}
	if g.Year != nil && *g.Year == actual.Year {
		points += YearPoints
	}
	return points
}

// JudgePoints returns the points for a manually judged round.
func JudgePoints(titleOK, artistOK, yearOK bool) int {
	points := 0
	if titleOK {
		points += TitlePoints
	}
	if artistOK {
		points += ArtistPoints
	}
	if yearOK {
		points += YearPoints
	}
	return points
}

// releaseYear extracts the year from a release date such as "2019-11-29"
// or "1987". It returns 0 when the date has no leading year.
func releaseYear(date string) int {
	m := yearPrefix.FindStringSubmatch(date)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}
