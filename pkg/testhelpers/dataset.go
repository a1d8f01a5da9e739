// Package testhelpers provides fixtures and containers for testing mongofilm components.
package testhelpers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

// Raw dataset headers, in the column order of the public export.
var (
	MoviesHeader = []string{
		"adult", "belongs_to_collection", "budget", "genres", "homepage", "id", "imdb_id",
		"original_language", "original_title", "overview", "popularity", "poster_path",
		"production_companies", "production_countries", "release_date", "revenue", "runtime",
		"spoken_languages", "status", "tagline", "title", "video", "vote_average", "vote_count",
	}
	CreditsHeader  = []string{"cast", "crew", "id"}
	KeywordsHeader = []string{"id", "keywords"}
	RatingsHeader  = []string{"userId", "movieId", "rating", "timestamp"}
	LinksHeader    = []string{"movieId", "imdbId", "tmdbId"}
)

// Row is a CSV record keyed by column name. Missing columns are written empty.
type Row map[string]string

// MovieRow returns a complete, valid raw movie row. overrides replace or
// blank individual columns.
func MovieRow(id, imdbID, title, releaseDate string, overrides Row) Row {
	row := Row{
		"adult":                 "False",
		"belongs_to_collection": "",
		"budget":                "1000000",
		"genres":                "[{'id': 18, 'name': 'Drama'}]",
		"homepage":              "",
		"id":                    id,
		"imdb_id":               imdbID,
		"original_language":     "en",
		"original_title":        title,
		"overview":              "A film about " + title + ".",
		"popularity":            "1.5",
		"poster_path":           "",
		"production_companies":  "[{'name': 'Pixar Animation Studios', 'id': 3}]",
		"production_countries":  "[{'iso_3166_1': 'US', 'name': 'United States of America'}]",
		"release_date":          releaseDate,
		"revenue":               "1000000.0",
		"runtime":               "100.0",
		"spoken_languages":      "[{'iso_639_1': 'en', 'name': 'English'}]",
		"status":                "Released",
		"tagline":               "",
		"title":                 title,
		"video":                 "False",
		"vote_average":          "7.0",
		"vote_count":            "100",
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

// CreditsRow returns a raw credits row.
func CreditsRow(id, cast, crew string) Row {
	return Row{"id": id, "cast": cast, "crew": crew}
}

// KeywordsRow returns a raw keywords row.
func KeywordsRow(id, keywords string) Row {
	return Row{"id": id, "keywords": keywords}
}

// RatingRow returns a raw ratings row.
func RatingRow(userID, movieID, rating, timestamp string) Row {
	return Row{"userId": userID, "movieId": movieID, "rating": rating, "timestamp": timestamp}
}

// LinkRow returns a raw links row.
func LinkRow(movieID, imdbID, tmdbID string) Row {
	return Row{"movieId": movieID, "imdbId": imdbID, "tmdbId": tmdbID}
}

// WriteCSV writes rows under header to path.
func WriteCSV(t testing.TB, path string, header []string, rows ...Row) {
	t.Helper()

	tbl := tabular.New(filepath.Base(path), header)
	for _, row := range rows {
		record := make([]string, len(header))
		for i, h := range header {
			record[i] = row[h]
		}
		require.NoError(t, tbl.Append(record))
	}
	require.NoError(t, tbl.WriteCSV(path))
}

// Dataset is a set of raw rows for the five source files.
type Dataset struct {
	Movies   []Row
	Credits  []Row
	Keywords []Row
	Ratings  []Row
	Links    []Row
}

// Write writes the dataset to dir under the raw file names.
func (d Dataset) Write(t testing.TB, dir string) {
	t.Helper()

	WriteCSV(t, filepath.Join(dir, "movies_metadata.csv"), MoviesHeader, d.Movies...)
	WriteCSV(t, filepath.Join(dir, "credits.csv"), CreditsHeader, d.Credits...)
	WriteCSV(t, filepath.Join(dir, "keywords.csv"), KeywordsHeader, d.Keywords...)
	WriteCSV(t, filepath.Join(dir, "ratings.csv"), RatingsHeader, d.Ratings...)
	WriteCSV(t, filepath.Join(dir, "links.csv"), LinksHeader, d.Links...)
}

// SmallDataset is a consistent three-movie dataset: every movie has credits,
// keywords and a link. Five ratings exist, two of which reference movieIds
// without a link. The three linked ratings come from user 1 (3.0 and 5.0)
// and user 2 (4.0).
func SmallDataset() Dataset {
	return Dataset{
		Movies: []Row{
			MovieRow("862", "tt0114709", "Toy Story", "1995-10-30", Row{
				"genres":                "[{'id': 16, 'name': 'Animation'}, {'id': 35, 'name': 'Comedy'}, {'id': 10751, 'name': 'Family'}]",
				"belongs_to_collection": "{'id': 10194, 'name': 'Toy Story Collection', 'poster_path': '/7G9915LfUQ2lVfwMEEhDsn3kT4B.jpg', 'backdrop_path': '/9FBwqcd9IRruEDUrTdcaafOMKUq.jpg'}",
				"revenue":               "373554033.0",
				"runtime":               "81.0",
				"vote_average":          "7.7",
				"vote_count":            "5415",
			}),
			MovieRow("8844", "tt0113497", "Jumanji", "1995-12-15", Row{
				"genres":       "[{'id': 12, 'name': 'Adventure'}, {'id': 14, 'name': 'Fantasy'}, {'id': 10751, 'name': 'Family'}]",
				"revenue":      "262797249.0",
				"runtime":      "104.0",
				"vote_average": "6.9",
				"vote_count":   "2413",
			}),
			MovieRow("949", "tt0113277", "Heat", "1995-12-15", Row{
				"genres":       "[{'id': 28, 'name': 'Action'}, {'id': 80, 'name': 'Crime'}, {'id': 18, 'name': 'Drama'}, {'id': 53, 'name': 'Thriller'}]",
				"revenue":      "187436818.0",
				"runtime":      "170.0",
				"vote_average": "7.7",
				"vote_count":   "1886",
				"tagline":      "A Los Angeles crime saga",
			}),
		},
		Credits: []Row{
			CreditsRow("862",
				"[{'cast_id': 14, 'character': 'Woody (voice)', 'credit_id': '52fe4284c3a36847f8024f95', 'gender': 2, 'id': 31, 'name': 'Tom Hanks', 'order': 0, 'profile_path': '/pQFoyx7rp09CJTAb932F2g8Nlho.jpg'}, {'cast_id': 15, 'character': 'Buzz Lightyear (voice)', 'credit_id': '52fe4284c3a36847f8024f99', 'gender': 2, 'id': 12898, 'name': 'Tim Allen', 'order': 1, 'profile_path': None}]",
				"[{'credit_id': '52fe4284c3a36847f8024f49', 'department': 'Directing', 'gender': 2, 'id': 7879, 'job': 'Director', 'name': 'John Lasseter', 'profile_path': None}]"),
			CreditsRow("8844",
				"[{'cast_id': 1, 'character': 'Alan Parrish', 'credit_id': '52fe44bfc3a36847f80a7c73', 'gender': 2, 'id': 2157, 'name': 'Robin Williams', 'order': 0, 'profile_path': None}]",
				"[{'credit_id': '52fe44bfc3a36847f80a7cd1', 'department': 'Directing', 'gender': 2, 'id': 4945, 'job': 'Director', 'name': 'Joe Johnston', 'profile_path': None}]"),
			CreditsRow("949",
				"[{'cast_id': 25, 'character': 'Lt. Vincent Hanna', 'credit_id': '52fe4292c3a36847f802916d', 'gender': 2, 'id': 1158, 'name': 'Al Pacino', 'order': 0, 'profile_path': None}, {'cast_id': 26, 'character': 'Eady', 'credit_id': '52fe4292c3a36847f8029171', 'gender': 1, 'id': 10127, 'name': 'Amy Brenneman', 'order': 2, 'profile_path': None}]",
				"[{'credit_id': '52fe4292c3a36847f802916f', 'department': 'Directing', 'gender': 2, 'id': 638, 'job': 'Director', 'name': 'Michael Mann', 'profile_path': None}]"),
		},
		Keywords: []Row{
			KeywordsRow("862", "[{'id': 931, 'name': 'jealousy'}, {'id': 4290, 'name': 'toy'}]"),
			KeywordsRow("8844", "[{'id': 10090, 'name': 'board game'}]"),
			KeywordsRow("949", "[{'id': 642, 'name': 'robbery'}]"),
		},
		Ratings: []Row{
			RatingRow("1", "1", "3.0", "1425941529"),
			RatingRow("1", "2", "5.0", "1425942435"),
			RatingRow("2", "6", "4.0", "1425941556"),
			RatingRow("2", "999", "1.0", "1425941600"),
			RatingRow("3", "998", "2.5", "1425941700"),
		},
		Links: []Row{
			LinkRow("1", "0114709", "862"),
			LinkRow("2", "0113497", "8844"),
			LinkRow("6", "0113277", "949"),
		},
	}
}
