package music

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	savedPageSize    = 50
	savedSampleMax   = 200
	recentLimit      = 50
	playlistPageSize = 50
	playlistPages    = 2
)

var topRanges = []TimeRange{ShortTerm, MediumTerm, LongTerm}

// fetchExplicit pulls every category enabled in p. Any error aborts the
// member; a failing saved-tracks batch does not.
func (a *Aggregator) fetchExplicit(ctx context.Context, log logrus.FieldLogger, memberID, token string, p ExplicitPreference) ([]Contribution, error) {
	var out []Contribution
	if p.Liked {
		tracks, err := a.sampleSaved(ctx, log, token)
		if err != nil {
			return nil, fmt.Errorf("saved tracks: %w", err)
		}
		out = appendTagged(out, memberID, tracks, CategoryLiked, "")
	}
	if p.Recent {
		tracks, err := a.Tracks.RecentlyPlayed(ctx, token, recentLimit)
		if err != nil {
			return nil, fmt.Errorf("recently played: %w", err)
		}
		out = appendTagged(out, memberID, tracks, CategoryRecent, "")
	}
	if p.Playlist && p.PlaylistID != "" {
		name, tracks, err := a.fetchPlaylist(ctx, token, p.PlaylistID)
		if err != nil {
			return nil, fmt.Errorf("playlist %s: %w", p.PlaylistID, err)
		}
		out = appendTagged(out, memberID, tracks, CategoryPlaylist, name)
	}
	return out, nil
}

// sampleSaved returns up to savedSampleMax saved tracks. Small libraries
// are read sequentially; larger ones are sampled at random offsets so
// every game sees a different slice of the library.
func (a *Aggregator) sampleSaved(ctx context.Context, log logrus.FieldLogger, token string) ([]Track, error) {
	probe, err := a.Tracks.SavedTracks(ctx, token, 1, 0)
	if err != nil {
		return nil, err
	}
	total := probe.Total
	if total <= 0 {
		return nil, nil
	}
	sample := min(savedSampleMax, total)
	batches := (sample + savedPageSize - 1) / savedPageSize

	seen := make(map[int]bool, batches)
	offsets := make([]int, 0, batches)
	for i := 0; i < batches; i++ {
		off := i * savedPageSize
		if total > sample {
			off = a.offsets().Intn(total - savedPageSize + 1)
		}
		if !seen[off] {
			seen[off] = true
			offsets = append(offsets, off)
		}
	}
	sort.Ints(offsets)

	ids := make(map[string]struct{})
	var tracks []Track
	for _, off := range offsets {
		page, err := a.Tracks.SavedTracks(ctx, token, savedPageSize, off)
		if err != nil {
			log.WithError(err).WithField("offset", off).Warn("saved tracks batch failed")
			continue
		}
		for _, t := range page.Items {
			if _, dup := ids[string(t.ID)]; dup {
				continue
			}
			ids[string(t.ID)] = struct{}{}
			tracks = append(tracks, t)
		}
	}
	log.WithFields(logrus.Fields{"sampled": len(tracks), "total": total}).Debug("sampled saved tracks")
	return tracks, nil
}

// fetchPlaylist returns the playlist's display name and its first
// playlistPages pages with removed entries dropped.
func (a *Aggregator) fetchPlaylist(ctx context.Context, token, playlistID string) (string, []Track, error) {
	name, err := a.Tracks.PlaylistName(ctx, token, playlistID)
	if err != nil {
		return "", nil, err
	}
	if name == "" {
		name = "Playlist " + playlistID
	}
	var tracks []Track
	for page := 0; page < playlistPages; page++ {
		items, err := a.Tracks.PlaylistTracks(ctx, token, playlistID, playlistPageSize, page*playlistPageSize)
		if err != nil {
			return "", nil, err
		}
		for _, t := range items {
			if t != nil {
				tracks = append(tracks, *t)
			}
		}
	}
	return name, tracks, nil
}

// fetchTopTracks is the fallback for members without a usable preference.
// The three time ranges are fetched concurrently and merged; the range is
// not kept.
func (a *Aggregator) fetchTopTracks(ctx context.Context, memberID, token string) ([]Contribution, error) {
	results := make([][]Track, len(topRanges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range topRanges {
		g.Go(func() error {
			tracks, err := a.Tracks.TopTracks(gctx, token, r)
			if err != nil {
				return fmt.Errorf("top tracks (%s): %w", r, err)
			}
			results[i] = tracks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []Contribution
	for _, tracks := range results {
		out = appendTagged(out, memberID, tracks, CategoryTopTracks, "")
	}
	return out, nil
}

func appendTagged(out []Contribution, memberID string, tracks []Track, c Category, detail string) []Contribution {
	for _, t := range tracks {
		out = append(out, Contribution{MemberID: memberID, Track: t, Category: c, Detail: detail})
	}
	return out
}
