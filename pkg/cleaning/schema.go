package cleaning

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

// ColumnType is the logical type a column is read as.
type ColumnType int

const (
	String ColumnType = iota
	Int
	Float
	Bool
	Date
	// Embedded columns hold list or object literal text.
	Embedded
)

// String returns the short type name shown in profiles.
func (c ColumnType) String() string {
	switch c {
	case Int:
		return "i64"
	case Float:
		return "f64"
	case Bool:
		return "bool"
	case Date:
		return "date"
	case Embedded:
		return "embedded"
	default:
		return "str"
	}
}

// Table names.
const (
	Movies   = "movies"
	Credits  = "credits"
	Keywords = "keywords"
	Ratings  = "ratings"
	Links    = "links"
)

// TableNames lists the tables in pipeline order.
var TableNames = []string{Movies, Credits, Keywords, Ratings, Links}

// Schema describes one source table.
type Schema struct {
	Table string
	// RawFile is the file name under the raw data directory.
	RawFile string
	// CleanFile is the file name under the clean data directory.
	CleanFile string
	// Columns are the declared columns. All of them must be present in a source.
	Columns map[string]ColumnType
}

// MissingColumns returns the declared columns absent from t, sorted.
func (s Schema) MissingColumns(t *tabular.Table) []string {
	var missing []string
	for c := range s.Columns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}

// TypeOf returns the declared type of a column; undeclared columns are strings.
func (s Schema) TypeOf(column string) ColumnType {
	if t, ok := s.Columns[column]; ok {
		return t
	}
	return String
}

// Schemas of the five source tables.
var Schemas = map[string]Schema{
	Movies: {
		Table:     Movies,
		RawFile:   "movies_metadata.csv",
		CleanFile: "movies.csv",
		Columns: map[string]ColumnType{
			"adult":                 Bool,
			"belongs_to_collection": Embedded,
			"budget":                Int,
			"genres":                Embedded,
			"homepage":              String,
			"id":                    Int,
			"imdb_id":               String,
			"original_language":     String,
			"original_title":        String,
			"overview":              String,
			"popularity":            Float,
			"poster_path":           String,
			"production_companies":  Embedded,
			"production_countries":  Embedded,
			"release_date":          Date,
			"revenue":               Float,
			"runtime":               Float,
			"spoken_languages":      Embedded,
			"status":                String,
			"tagline":               String,
			"title":                 String,
			"video":                 Bool,
			"vote_average":          Float,
			"vote_count":            Int,
		},
	},
	Credits: {
		Table:     Credits,
		RawFile:   "credits.csv",
		CleanFile: "credits.csv",
		Columns: map[string]ColumnType{
			"cast": Embedded,
			"crew": Embedded,
			"id":   Int,
		},
	},
	Keywords: {
		Table:     Keywords,
		RawFile:   "keywords.csv",
		CleanFile: "keywords.csv",
		Columns: map[string]ColumnType{
			"id":       Int,
			"keywords": Embedded,
		},
	},
	Ratings: {
		Table:     Ratings,
		RawFile:   "ratings.csv",
		CleanFile: "ratings.csv",
		Columns: map[string]ColumnType{
			"userId":    Int,
			"movieId":   Int,
			"rating":    Float,
			"timestamp": Int,
		},
	},
	Links: {
		Table:     Links,
		RawFile:   "links.csv",
		CleanFile: "links.csv",
		Columns: map[string]ColumnType{
			"movieId": Int,
			// imdbId keeps its leading zeros.
			"imdbId": String,
			"tmdbId": Int,
		},
	},
}

// MovieRequiredColumns are dropped-if-null on the movies table.
var MovieRequiredColumns = []string{
	"adult", "budget", "original_language", "overview", "popularity", "revenue",
	"runtime", "status", "title", "video", "vote_average", "vote_count",
}

// MovieEmbeddedColumns are the movie columns holding list or object literals.
var MovieEmbeddedColumns = []string{
	"belongs_to_collection", "genres", "production_companies", "production_countries", "spoken_languages",
}

// Coerce normalizes every typed cell in place and nulls the cells that do not
// parse as their column type. Dates and embedded literals are left for their
// own stages. It returns the number of cells nulled.
func Coerce(t *tabular.Table, schema Schema) int {
	invalid := 0
	for _, column := range t.Header() {
		typ := schema.TypeOf(column)
		if typ == String || typ == Date || typ == Embedded {
			continue
		}
		cells := t.MustColumn(column)
		for row, v := range cells {
			if v == "" {
				continue
			}
			norm, ok := normalize(typ, v)
			if !ok {
				invalid++
				norm = ""
			}
			if norm != v {
				_ = t.Set(row, column, norm)
			}
		}
	}
	return invalid
}

func normalize(typ ColumnType, v string) (string, bool) {
	s := strings.TrimSpace(v)
	switch typ {
	case Int:
		return NormalizeInt(s)
	case Float:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return s, true
	case Bool:
		switch strings.ToLower(s) {
		case "true":
			return "true", true
		case "false":
			return "false", true
		}
		return "", false
	default:
		return v, true
	}
}

// NormalizeInt returns the canonical decimal form of an integer cell.
// Integral floats such as "862.0" are accepted.
func NormalizeInt(s string) (string, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}
