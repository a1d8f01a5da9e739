package query

import (
	"math/bits"
	"sort"
)

// genreIndex assigns each genre name a bit position so that a user's genre
// union is a bitwise OR instead of a set of strings.
type genreIndex struct {
	bit   map[string]int
	names []string
}

func newGenreIndex() *genreIndex {
	return &genreIndex{bit: make(map[string]int)}
}

func (g *genreIndex) add(name string) int {
	if i, ok := g.bit[name]; ok {
		return i
	}
	i := len(g.names)
	g.bit[name] = i
	g.names = append(g.names, name)
	return i
}

// genreSet is a growable bitset over a genreIndex.
type genreSet []uint64

func (s genreSet) with(i int) genreSet {
	word := i / 64
	for len(s) <= word {
		s = append(s, 0)
	}
	s[word] |= 1 << (uint(i) % 64)
	return s
}

func (s genreSet) union(o genreSet) genreSet {
	for len(s) < len(o) {
		s = append(s, 0)
	}
	for i, w := range o {
		s[i] |= w
	}
	return s
}

func (s genreSet) count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// names returns the genre names in the set, sorted.
func (s genreSet) names(idx *genreIndex) []string {
	var out []string
	for word, w := range s {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, idx.names[word*64+b])
			w &^= 1 << uint(b)
		}
	}
	sort.Strings(out)
	return out
}
