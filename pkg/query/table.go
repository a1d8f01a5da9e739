package query

import (
	"strconv"
	"strings"

	"github.com/ekaya-inc/mongofilm/pkg/models"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

// Export formatting: floats use the shortest representation, absent values
// are empty cells and lists are joined with a separator.

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatInt[T ~int | ~int64](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

// toTable builds a table from typed rows. record must return one cell per
// header column.
func toTable[T any](name string, header []string, rows []T, record func(i int, row T) []string) *tabular.Table {
	t := tabular.New(name, header)
	for i, r := range rows {
		if err := t.Append(record(i, r)); err != nil {
			panic(err)
		}
	}
	return t
}

// TopDirectorsTable converts top directors rows for export.
func TopDirectorsTable(rows []DirectorRevenue) *tabular.Table {
	return toTable(TopDirectorsQuery,
		[]string{"director", "movie_count", "median_revenue", "mean_vote"},
		rows, func(_ int, r DirectorRevenue) []string {
			return []string{r.Director, formatInt(r.MovieCount), formatFloat(r.MedianRevenue), formatFloat(r.MeanVote)}
		})
}

// ActorPairsTable converts actor pair rows for export.
func ActorPairsTable(rows []ActorPair) *tabular.Table {
	return toTable(ActorPairsQuery,
		[]string{"actor1_id", "actor1_name", "actor2_id", "actor2_name", "co_appearances", "average_vote", "example_movies"},
		rows, func(_ int, r ActorPair) []string {
			return []string{
				formatInt(r.Actor1ID), r.Actor1Name,
				formatInt(r.Actor2ID), r.Actor2Name,
				formatInt(r.CoAppearances),
				formatFloat(r.AverageVote),
				strings.Join(r.ExampleMovies, ", "),
			}
		})
}

// GenreBreadthTable converts genre breadth rows for export.
func GenreBreadthTable(rows []ActorGenres) *tabular.Table {
	return toTable(GenreBreadthQuery,
		[]string{"actor_id", "actor_name", "genre_count", "movie_count", "example_genres", "all_genres"},
		rows, func(_ int, r ActorGenres) []string {
			return []string{
				formatInt(r.ActorID), r.ActorName,
				formatInt(r.GenreCount), formatInt(r.MovieCount),
				strings.Join(r.ExampleGenres, ", "),
				strings.Join(r.AllGenres, ", "),
			}
		})
}

// CollectionsTable converts collection rows for export.
func CollectionsTable(rows []CollectionRevenue) *tabular.Table {
	return toTable(CollectionsQuery,
		[]string{"rank", "collection_id", "collection_name", "movie_count", "total_revenue", "median_vote_average", "earliest_release", "latest_release"},
		rows, func(_ int, r CollectionRevenue) []string {
			return []string{
				formatInt(r.Rank), formatInt(r.CollectionID), r.CollectionName,
				formatInt(r.MovieCount), formatFloat(r.TotalRevenue),
				formatOptional(r.MedianVoteAverage),
				r.EarliestRelease, r.LatestRelease,
			}
		})
}

// DecadeRuntimeTable converts runtime rows for export.
func DecadeRuntimeTable(rows []DecadeRuntime) *tabular.Table {
	return toTable(DecadeRuntimeQuery,
		[]string{"decade_num", "decade_label", "primary_genre", "movie_count", "median_runtime"},
		rows, func(_ int, r DecadeRuntime) []string {
			return []string{
				formatInt(r.Decade), models.DecadeLabel(r.Decade), r.PrimaryGenre,
				formatInt(r.MovieCount), formatFloat(r.MedianRuntime),
			}
		})
}

// FemaleProportionTable converts female proportion rows for export.
func FemaleProportionTable(rows []DecadeGender) *tabular.Table {
	return toTable(FemaleProportionQuery,
		[]string{"decade_num", "decade_label", "avg_female_prop", "movie_count_with_gender", "movie_count_all"},
		rows, func(_ int, r DecadeGender) []string {
			return []string{
				formatInt(r.Decade), models.DecadeLabel(r.Decade),
				formatOptional(r.AvgFemaleProportion),
				formatInt(r.MovieCountWithGender), formatInt(r.MovieCountAll),
			}
		})
}

// NoirTable converts noir rows for export.
func NoirTable(rows []NoirFilm) *tabular.Table {
	return toTable(NoirQuery,
		[]string{"title", "year", "release_date", "vote_average", "vote_count"},
		rows, func(_ int, r NoirFilm) []string {
			year := ""
			if r.Year != nil {
				year = formatInt(*r.Year)
			}
			return []string{r.Title, year, r.ReleaseDate, formatOptional(r.VoteAverage), formatInt(r.VoteCount)}
		})
}

// DirectorActorTable converts director and actor rows for export. Rank is the
// 1-based row position.
func DirectorActorTable(rows []DirectorActorPair) *tabular.Table {
	return toTable(DirectorActorQuery,
		[]string{"rank", "director", "actor", "films_count", "mean_vote", "mean_revenue", "example_titles"},
		rows, func(i int, r DirectorActorPair) []string {
			return []string{
				formatInt(i + 1), r.Director, r.Actor,
				formatInt(r.FilmsCount), formatOptional(r.MeanVote), formatFloat(r.MeanRevenue),
				strings.Join(r.ExampleTitles, "; "),
			}
		})
}

// LanguagesTable converts language rows for export.
func LanguagesTable(rows []LanguageCount) *tabular.Table {
	return toTable(LanguagesQuery,
		[]string{"original_language", "count", "example_title"},
		rows, func(_ int, r LanguageCount) []string {
			return []string{r.Language, formatInt(r.Count), r.ExampleTitle}
		})
}

// UserStatsTable converts one user leaderboard for export.
func UserStatsTable(rows []UserStat) *tabular.Table {
	return toTable(UserStatsQuery,
		[]string{
			"userId", "rating_count", "rating_sum", "rating_sumsq", "movie_count_distinct",
			"genres_all", "example_genres", "population_variance", "distinct_genre_count",
		},
		rows, func(_ int, r UserStat) []string {
			return []string{
				formatInt(r.UserID), formatInt(r.RatingCount),
				formatFloat(r.RatingSum), formatFloat(r.RatingSumSq),
				formatInt(r.MovieCountDistinct),
				strings.Join(r.GenresAll, ", "),
				strings.Join(r.ExampleGenres, ", "),
				formatOptional(r.PopulationVariance),
				formatInt(r.DistinctGenreCount),
			}
		})
}
