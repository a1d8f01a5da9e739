package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
		year  int
	}{
		{"1995-10-30", true, 1995},
		{" 2001-01-01 ", true, 2001},
		{"", false, 0},
		{"1995-13-01", false, 0},
		{"1995-02-30", false, 0},
		{"1995-1-3", false, 0},
		{"30/10/1995", false, 0},
		{"1995-10-30 10:00:00", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseReleaseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.year, got.Year())
			}
		})
	}
}

func TestDecade(t *testing.T) {
	assert.Equal(t, 1990, Decade(1995))
	assert.Equal(t, 1990, Decade(1990))
	assert.Equal(t, 2010, Decade(2019))
	assert.Equal(t, 1870, Decade(1874))
	assert.Equal(t, -10, Decade(-5))
	assert.Equal(t, "1990s", DecadeLabel(Decade(1999)))
}

func TestMovieDocument_Helpers(t *testing.T) {
	m := MovieDocument{
		ReleaseDate: "1974-06-20",
		Genres:      []Genre{{ID: 80, Name: "Crime"}, {ID: 18, Name: "Drama"}},
		Crew: []CrewMember{
			{ID: 1, Name: "Robert Towne", Job: "Screenplay"},
			{ID: 2, Name: "Roman Polanski", Job: JobDirector},
		},
	}

	year, ok := m.ReleaseYear()
	assert.True(t, ok)
	assert.Equal(t, 1974, year)
	assert.Equal(t, []string{"Crime", "Drama"}, m.GenreNames())

	directors := m.Directors()
	if assert.Len(t, directors, 1) {
		assert.Equal(t, "Roman Polanski", directors[0].Name)
	}
}
