package model

import "time"

// Movie is a single catalogue entry
type Movie struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Genre       []string `json:"genre"`
	PosterPath  string   `json:"poster_path"`
	VoteAverage float64  `json:"vote_average"` // 0-10 scale
	Overview    string   `json:"overview,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Runtime     int      `json:"runtime,omitempty"` // minutes
}

// HasGenre reports whether the movie carries the exact genre label
func (m Movie) HasGenre(genre string) bool {
	for _, g := range m.Genre {
		if g == genre {
			return true
		}
	}
	return false
}

// MovieDetail is a movie with the extra fields shown on its detail page
type MovieDetail struct {
	Movie
	Ratings int `json:"ratings"`
}

// Rating is a user's star rating of a movie joined with display fields
type Rating struct {
	ID         int       `json:"id"`
	MovieID    int       `json:"movie_id"`
	Title      string    `json:"title"`
	PosterPath string    `json:"poster_path"`
	Rating     int       `json:"rating"` // 1-5
	RatedAt    time.Time `json:"rated_at"`
}

// Recommendation is a recommended movie annotated with a match percentage
type Recommendation struct {
	Movie
	MatchScore int `json:"match_score"`
}

// Page is one slice of a paginated movie listing
type Page struct {
	Movies []Movie `json:"movies"`
	Total  int     `json:"total"`
}

// Filter holds the client-side filter criteria applied after a fetch.
// MinRating is on the 0-5 star scale, 0 meaning any rating.
type Filter struct {
	Genre     string `json:"genre,omitempty"`
	MinRating int    `json:"rating,omitempty"`
	Query     string `json:"searchQuery,omitempty"`
}

// IsZero reports whether no criteria are set
func (f Filter) IsZero() bool {
	return f.Genre == "" && f.MinRating == 0 && f.Query == ""
}
