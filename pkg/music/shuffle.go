package music

import (
	"math"
	"math/rand/v2"
)

// IndexSource draws the swap index for a Fisher-Yates pass. Intn must
// return a value in [0, n).
type IndexSource interface {
	Intn(n int) int
}

// SeededSource builds a deterministic IndexSource from a seed.
type SeededSource func(seed int64) IndexSource

// LCG is the linear congruential generator used for seeded shuffles:
// state = (state*9301 + 49297) mod 233280. Arithmetic is carried out in
// float64 so playlists generated for a given seed stay identical to the
// ones produced by earlier versions of the service, including the
// rounding that happens for seeds above 2^53/9301.
type LCG struct {
	state float64
}

// NewLCG returns an LCG seeded with seed. It satisfies SeededSource.
func NewLCG(seed int64) IndexSource {
	return &LCG{state: float64(seed)}
}

// Intn advances the generator and returns state mod n. Negative states
// (only reachable from negative seeds) are folded back into range.
func (g *LCG) Intn(n int) int {
	g.state = math.Mod(g.state*9301+49297, 233280)
	j := int(math.Mod(g.state, float64(n)))
	if j < 0 {
		j += n
	}
	return j
}

type unseeded struct{}

func (unseeded) Intn(n int) int { return rand.IntN(n) }

// Unseeded is an IndexSource backed by the runtime's random generator.
var Unseeded IndexSource = unseeded{}

// Shuffle permutes s in place, walking from the last position down and
// swapping position i with src.Intn(i+1).
func Shuffle[T any](s []T, src IndexSource) {
	for i := len(s) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
