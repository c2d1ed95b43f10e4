package music

import (
	"reflect"
	"testing"
)

func TestLCGSequence(t *testing.T) {
	g := NewLCG(1)
	// states: 58598, 127215, 79852
	for i, tc := range []struct{ n, want int }{{4, 2}, {3, 0}, {2, 0}} {
		if got := g.Intn(tc.n); got != tc.want {
			t.Fatalf("draw %d: got %d want %d", i, got, tc.want)
		}
	}
}

func TestShuffleSeeded(t *testing.T) {
	s := []int{0, 1, 2, 3}
	Shuffle(s, NewLCG(1))
	if !reflect.DeepEqual(s, []int{1, 3, 0, 2}) {
		t.Fatalf("unexpected permutation %v", s)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	for _, seed := range []int64{0, 7, -13, 1 << 40, 9_007_199_254_740_993} {
		s := make([]int, 50)
		for i := range s {
			s[i] = i
		}
		Shuffle(s, NewLCG(seed))
		seen := make(map[int]bool, len(s))
		for _, v := range s {
			if v < 0 || v >= 50 || seen[v] {
				t.Fatalf("seed %d: not a permutation: %v", seed, s)
			}
			seen[v] = true
		}
	}
}

func TestShuffleReproducible(t *testing.T) {
	a := []string{"a", "b", "c", "d", "e", "f", "g"}
	b := append([]string(nil), a...)
	Shuffle(a, NewLCG(123456))
	Shuffle(b, NewLCG(123456))
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced %v and %v", a, b)
	}
}

func TestLCGNegativeSeedInRange(t *testing.T) {
	g := NewLCG(-999_999)
	for n := 1; n < 100; n++ {
		if j := g.Intn(n); j < 0 || j >= n {
			t.Fatalf("Intn(%d) = %d", n, j)
		}
	}
}

func TestShuffleShortSlices(t *testing.T) {
	Shuffle([]int(nil), Unseeded)
	one := []int{5}
	Shuffle(one, Unseeded)
	if one[0] != 5 {
		t.Fatal("single element moved")
	}
}
