package music

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"Party-Trivia-Go/pkg/metrics"
)

// DefaultTargetCount is used when Aggregate is called with a non-positive
// target.
const DefaultTargetCount = 100

// participantSep separates a base account id from a secondary identity
// marker such as "#participant".
const participantSep = "#"

// Aggregator combines the listening data of every member of a group into
// a single balanced, attributed playlist. The zero value is not usable:
// Members, Credentials and Tracks must be set.
type Aggregator struct {
	Members     MembershipStore
	Credentials CredentialStore
	Tracks      TrackSource
	Log         logrus.FieldLogger

	// Seeded builds the generator for seeded shuffles. Defaults to NewLCG.
	Seeded SeededSource
	// Random drives unseeded shuffles. Defaults to Unseeded.
	Random IndexSource
	// Offsets picks random saved-track offsets. It is never derived from
	// the aggregation seed. Defaults to Unseeded.
	Offsets IndexSource
}

// candidate is a distinct track together with every source that produced it.
type candidate struct {
	track   Track
	sources []Source
}

// BaseMemberID strips any secondary identity marker from a member id.
func BaseMemberID(memberID string) string {
	base, _, _ := strings.Cut(memberID, participantSep)
	return base
}

// Aggregate builds the playlist for group. At most targetCount tracks are
// returned; fewer when the members did not contribute enough distinct
// tracks. When seed is non-nil the shuffle is deterministic for identical
// upstream data. A group where nobody contributed yields an empty Result
// and no error.
func (a *Aggregator) Aggregate(ctx context.Context, group string, targetCount int, seed *int64) (*Result, error) {
	if targetCount <= 0 {
		targetCount = DefaultTargetCount
	}
	started := time.Now()
	log := a.logger().WithFields(logrus.Fields{"group": group, "run_id": uuid.NewString()})

	members, err := a.Members.Members(ctx, group)
	if err != nil {
		metrics.AggregationRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolve members of %s: %w", group, err)
	}
	log.WithField("members", len(members)).Debug("aggregating group playlist")

	byMember := make(map[string][]string)
	names := make(map[string]string)
	var contributions []Contribution
	for _, id := range members {
		got, ok := a.collect(ctx, log.WithField("member", id), group, id)
		if !ok {
			continue
		}
		byMember[id] = trackIDs(got)
		contributions = append(contributions, got...)
		base := BaseMemberID(id)
		if name := a.Credentials.DisplayName(ctx, base); name != "" {
			names[id] = name
		} else {
			names[id] = base
		}
	}

	if err := ctx.Err(); err != nil {
		metrics.AggregationRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("aggregate %s: %w", group, err)
	}

	pool := buildPool(contributions, names)
	if len(pool) == 0 {
		log.Info("no member contributed any tracks")
		metrics.ObserveRun("empty", 0, started)
		return emptyResult(), nil
	}

	if seed != nil {
		Shuffle(pool, a.seeded()(*seed))
	} else {
		Shuffle(pool, a.random())
	}

	contributors := 0
	for _, ids := range byMember {
		if len(ids) > 0 {
			contributors++
		}
	}
	tracks, attributions, counts := selectBalanced(pool, targetCount, contributors)

	log.WithFields(logrus.Fields{
		"distinct":     len(pool),
		"selected":     len(tracks),
		"contributors": contributors,
		"counts":       counts,
	}).Info("aggregated group playlist")
	metrics.ObserveRun("ok", len(tracks), started)

	return &Result{Tracks: tracks, ByMember: byMember, Attributions: attributions}, nil
}

// collect resolves credentials and preference for one member and fetches
// their contributions. ok is false when the member must be skipped.
func (a *Aggregator) collect(ctx context.Context, log logrus.FieldLogger, group, memberID string) ([]Contribution, bool) {
	base := BaseMemberID(memberID)
	token, ok, err := a.Credentials.Credential(ctx, base)
	if err != nil {
		log.WithError(err).Warn("skipping member: credential lookup failed")
		metrics.MemberSkips.WithLabelValues("credential_error").Inc()
		return nil, false
	}
	if !ok {
		log.Debug("skipping member: no stored credential")
		metrics.MemberSkips.WithLabelValues("no_credential").Inc()
		return nil, false
	}
	stored, err := a.Members.Preference(ctx, group, base)
	if err != nil {
		log.WithError(err).Warn("skipping member: preference lookup failed")
		metrics.MemberSkips.WithLabelValues("preference_error").Inc()
		return nil, false
	}

	var got []Contribution
	switch p := ResolvePreference(stored).(type) {
	case ExplicitPreference:
		log.WithField("preference", p).Debug("fetching by preference")
		got, err = a.fetchExplicit(ctx, log, memberID, token, p)
	case NoPreference:
		log.Debug("no preference, falling back to top tracks")
		got, err = a.fetchTopTracks(ctx, memberID, token)
	}
	if err != nil {
		log.WithError(err).Warn("skipping member: fetching tracks failed")
		metrics.MemberSkips.WithLabelValues("fetch_error").Inc()
		return nil, false
	}
	got = dedupeContributions(got)
	log.WithField("tracks", len(got)).Debug("member contributions collected")
	return got, true
}

// buildPool groups contributions by track id, preserving first-seen order
// so seeded shuffles are reproducible.
func buildPool(contributions []Contribution, names map[string]string) []*candidate {
	index := make(map[string]*candidate)
	var pool []*candidate
	for _, c := range contributions {
		id := string(c.Track.ID)
		cand, ok := index[id]
		if !ok {
			cand = &candidate{track: c.Track}
			index[id] = cand
			pool = append(pool, cand)
		}
		cand.sources = append(cand.sources, Source{
			UserID:       c.MemberID,
			UserName:     names[c.MemberID],
			SourceType:   c.Category,
			SourceDetail: c.Detail,
		})
	}
	return pool
}

// selectBalanced walks the shuffled pool twice. The first pass takes a
// track when any of its contributors is below ceil(target/contributors)
// and credits every contributor of the track. The second pass fills the
// remaining slots in the same order without the quota.
func selectBalanced(pool []*candidate, target, contributors int) ([]Track, map[string]Attribution, map[string]int) {
	tracks := make([]Track, 0, min(target, len(pool)))
	attributions := make(map[string]Attribution)
	counts := make(map[string]int)
	if contributors < 1 {
		contributors = 1
	}
	perMember := (target + contributors - 1) / contributors
	picked := make([]bool, len(pool))

	take := func(i int) {
		c := pool[i]
		picked[i] = true
		tracks = append(tracks, c.track)
		sources := make([]Source, len(c.sources))
		copy(sources, c.sources)
		attributions[string(c.track.ID)] = Attribution{TrackID: string(c.track.ID), Sources: sources}
	}

	for i, c := range pool {
		if len(tracks) >= target {
			break
		}
		members := distinctMembers(c.sources)
		under := false
		for _, m := range members {
			if counts[m] < perMember {
				under = true
				break
			}
		}
		if !under {
			continue
		}
		take(i)
		for _, m := range members {
			counts[m]++
		}
	}

	for i := range pool {
		if len(tracks) >= target {
			break
		}
		if !picked[i] {
			take(i)
		}
	}
	return tracks, attributions, counts
}

func distinctMembers(sources []Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		dup := false
		for _, m := range out {
			if m == s.UserID {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s.UserID)
		}
	}
	return out
}

// dedupeContributions drops repeated (track, category, detail) facts of a
// single member as well as entries without a track id.
func dedupeContributions(in []Contribution) []Contribution {
	type key struct {
		id       string
		category Category
		detail   string
	}
	seen := make(map[key]struct{}, len(in))
	out := in[:0]
	for _, c := range in {
		if c.Track.ID == "" {
			continue
		}
		k := key{string(c.Track.ID), c.Category, c.Detail}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// trackIDs returns the distinct track ids of contributions in first-seen
// order.
func trackIDs(contributions []Contribution) []string {
	seen := make(map[string]struct{}, len(contributions))
	ids := make([]string, 0, len(contributions))
	for _, c := range contributions {
		id := string(c.Track.ID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func (a *Aggregator) logger() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

func (a *Aggregator) seeded() SeededSource {
	if a.Seeded == nil {
		return NewLCG
	}
	return a.Seeded
}

func (a *Aggregator) random() IndexSource {
	if a.Random == nil {
		return Unseeded
	}
	return a.Random
}

func (a *Aggregator) offsets() IndexSource {
	if a.Offsets == nil {
		return Unseeded
	}
	return a.Offsets
}
