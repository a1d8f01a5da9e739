package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		ok     bool
	}{
		{"empty", nil, 0, false},
		{"single", []float64{7}, 7, true},
		{"odd", []float64{3, 1, 2}, 2, true},
		{"even averages middle pair", []float64{10, 2, 3, 4}, 3.5, true},
		{"duplicates", []float64{5, 5, 1, 9}, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.values)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestMean(t *testing.T) {
	_, ok := Mean(nil)
	assert.False(t, ok)

	got, ok := Mean([]float64{6, 7, 8})
	require.True(t, ok)
	assert.InDelta(t, 7.0, got, 1e-9)
}

func TestPopulationVariance(t *testing.T) {
	_, ok := PopulationVariance(0, 0, 0)
	assert.False(t, ok)

	// 3 and 5: mean 4, squared deviations 1 and 1.
	got, ok := PopulationVariance(2, 8, 34)
	require.True(t, ok)
	assert.InDelta(t, 1.0, got, 1e-9)

	got, ok = PopulationVariance(1, 4, 16)
	require.True(t, ok)
	assert.InDelta(t, 0.0, got, 1e-9)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 7.13, Round(7.125, 2))
	assert.Equal(t, -2.3, Round(-2.25, 1))
	assert.Equal(t, 3.0, Round(2.999, 2))
}

func TestGroupBy_FirstSeenOrder(t *testing.T) {
	groups := GroupBy([]string{"b1", "a1", "b2", "c1", "a2"}, func(s string) byte { return s[0] })

	require.Len(t, groups, 3)
	assert.Equal(t, byte('b'), groups[0].Key)
	assert.Equal(t, []string{"b1", "b2"}, groups[0].Items)
	assert.Equal(t, byte('a'), groups[1].Key)
	assert.Equal(t, []string{"a1", "a2"}, groups[1].Items)
	assert.Equal(t, byte('c'), groups[2].Key)
}

func TestTake(t *testing.T) {
	items := []int{1, 2, 3}
	assert.Equal(t, []int{1, 2}, Take(items, 2))
	assert.Equal(t, items, Take(items, 10))
	assert.Equal(t, items, Take(items, 0))
}

func TestNullsLast(t *testing.T) {
	one, two := 1.0, 2.0
	values := []*float64{nil, &one, &two, nil}
	SortBy(values, NullsLast)

	require.NotNil(t, values[0])
	require.NotNil(t, values[1])
	assert.Equal(t, 2.0, *values[0])
	assert.Equal(t, 1.0, *values[1])
	assert.Nil(t, values[2])
	assert.Nil(t, values[3])
}

func TestGenreSet(t *testing.T) {
	idx := newGenreIndex()
	var a, b genreSet
	a = a.with(idx.add("Drama")).with(idx.add("Action"))
	b = b.with(idx.add("Comedy")).with(idx.add("Drama"))

	// Bits past the first word.
	for i := 0; i < 70; i++ {
		idx.add(string(rune('a' + i%26)) + string(rune('0'+i/26)))
	}
	b = b.with(idx.add("Western"))

	u := a.union(b)
	assert.Equal(t, 4, u.count())
	assert.Equal(t, []string{"Action", "Comedy", "Drama", "Western"}, u.names(idx))
	assert.Equal(t, 2, a.count())
}
