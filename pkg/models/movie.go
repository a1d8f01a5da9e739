package models

// Collection names in the document store.
const (
	MoviesCollection  = "movies"
	RatingsCollection = "ratings"
)

// Gender codes used on cast and crew credits.
const (
	GenderUnknown = 0
	GenderFemale  = 1
	GenderMale    = 2
)

// JobDirector is the crew job that identifies a film's director.
const JobDirector = "Director"

// Genre is an entry of a movie's genres list.
type Genre struct {
	ID   int64  `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// Company is an entry of a movie's production_companies list.
// OriginCountry is absent from the public export but present in richer TMDb dumps.
type Company struct {
	ID            int64  `json:"id" bson:"id"`
	Name          string `json:"name" bson:"name"`
	OriginCountry string `json:"origin_country,omitempty" bson:"origin_country,omitempty"`
}

// Country is an entry of a movie's production_countries list.
type Country struct {
	ISO3166_1 string `json:"iso_3166_1" bson:"iso_3166_1"`
	Name      string `json:"name" bson:"name"`
}

// Language is an entry of a movie's spoken_languages list.
type Language struct {
	ISO639_1 string `json:"iso_639_1" bson:"iso_639_1"`
	Name     string `json:"name" bson:"name"`
}

// Collection is the franchise a movie belongs to.
type Collection struct {
	ID           int64   `json:"id" bson:"id"`
	Name         string  `json:"name" bson:"name"`
	PosterPath   *string `json:"poster_path" bson:"poster_path"`
	BackdropPath *string `json:"backdrop_path" bson:"backdrop_path"`
}

// CastMember is a single cast credit. CreditID is unique within a credits row.
// Order is the billing order: lower is more prominent.
type CastMember struct {
	CastID      int64   `json:"cast_id" bson:"cast_id"`
	Character   string  `json:"character" bson:"character"`
	CreditID    string  `json:"credit_id" bson:"credit_id"`
	Gender      *int    `json:"gender" bson:"gender"`
	ID          int64   `json:"id" bson:"id"`
	Name        string  `json:"name" bson:"name"`
	Order       int     `json:"order" bson:"order"`
	ProfilePath *string `json:"profile_path" bson:"profile_path"`
}

// CrewMember is a single crew credit.
type CrewMember struct {
	CreditID    string  `json:"credit_id" bson:"credit_id"`
	Department  string  `json:"department" bson:"department"`
	Gender      *int    `json:"gender" bson:"gender"`
	ID          int64   `json:"id" bson:"id"`
	Job         string  `json:"job" bson:"job"`
	Name        string  `json:"name" bson:"name"`
	ProfilePath *string `json:"profile_path" bson:"profile_path"`
}

// Keyword is an entry of a movie's keywords list.
type Keyword struct {
	ID   int64  `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// MovieDocument is a document of the movies collection: the cleaned movie row
// left-joined with its credits and keywords, keyed by tmdbId.
//
// Cast, Crew and Keywords are nil when the movie had no matching row,
// which the queries distinguish from an empty list.
type MovieDocument struct {
	TMDBID              int64        `json:"tmdbId" bson:"tmdbId"`
	IMDBID              string       `json:"imdb_id" bson:"imdb_id"`
	Title               string       `json:"title" bson:"title"`
	OriginalTitle       string       `json:"original_title" bson:"original_title"`
	OriginalLanguage    string       `json:"original_language" bson:"original_language"`
	Overview            string       `json:"overview" bson:"overview"`
	Tagline             *string      `json:"tagline" bson:"tagline"`
	Homepage            *string      `json:"homepage" bson:"homepage"`
	PosterPath          *string      `json:"poster_path" bson:"poster_path"`
	Status              string       `json:"status" bson:"status"`
	Adult               bool         `json:"adult" bson:"adult"`
	Video               bool         `json:"video" bson:"video"`
	Budget              int64        `json:"budget" bson:"budget"`
	Revenue             *float64     `json:"revenue" bson:"revenue"`
	Runtime             *float64     `json:"runtime" bson:"runtime"`
	Popularity          float64      `json:"popularity" bson:"popularity"`
	VoteAverage         *float64     `json:"vote_average" bson:"vote_average"`
	VoteCount           *int64       `json:"vote_count" bson:"vote_count"`
	ReleaseDate         string       `json:"release_date" bson:"release_date"`
	BelongsToCollection *Collection  `json:"belongs_to_collection" bson:"belongs_to_collection"`
	Genres              []Genre      `json:"genres" bson:"genres"`
	ProductionCompanies []Company    `json:"production_companies" bson:"production_companies"`
	ProductionCountries []Country    `json:"production_countries" bson:"production_countries"`
	SpokenLanguages     []Language   `json:"spoken_languages" bson:"spoken_languages"`
	Cast                []CastMember `json:"cast" bson:"cast"`
	Crew                []CrewMember `json:"crew" bson:"crew"`
	Keywords            []Keyword    `json:"keywords" bson:"keywords"`
}

// RatingDocument is a document of the ratings collection.
// TMDBID is nil when the rating's movieId has no link.
type RatingDocument struct {
	UserID    int64   `json:"userId" bson:"userId"`
	MovieID   int64   `json:"movieId" bson:"movieId"`
	TMDBID    *int64  `json:"tmdbId" bson:"tmdbId"`
	Rating    float64 `json:"rating" bson:"rating"`
	Timestamp int64   `json:"timestamp" bson:"timestamp"`
}

// GenreNames returns the genre names in listed order.
func (m *MovieDocument) GenreNames() []string {
	names := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		names = append(names, g.Name)
	}
	return names
}

// Directors returns the crew credits whose job is Director, in listed order.
func (m *MovieDocument) Directors() []CrewMember {
	var directors []CrewMember
	for _, c := range m.Crew {
		if c.Job == JobDirector {
			directors = append(directors, c)
		}
	}
	return directors
}
