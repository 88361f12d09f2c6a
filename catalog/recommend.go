package catalog

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"movie-mate/model"
)

const (
	DefaultRecommendationLimit = 10

	// LikedThreshold is the lowest star rating that counts as liking a movie
	LikedThreshold = 4
)

// MatchScorer attaches the match percentage shown next to a recommendation.
// liked is nil on the cold-start path.
type MatchScorer interface {
	Name() string
	Score(movie model.Movie, liked map[string]struct{}) int
}

// GenreOverlapScorer scores a movie by the share of its genres that the
// user likes. Without rating history it falls back to the vote average
// expressed as a percentage.
type GenreOverlapScorer struct{}

func (GenreOverlapScorer) Name() string { return "genre" }

func (GenreOverlapScorer) Score(movie model.Movie, liked map[string]struct{}) int {
	if liked == nil {
		return clampPercent(int(math.Round(movie.VoteAverage * 10)))
	}
	if len(movie.Genre) == 0 {
		return 0
	}
	shared := 0
	for _, g := range movie.Genre {
		if _, ok := liked[g]; ok {
			shared++
		}
	}
	return clampPercent(int(math.Round(float64(shared) * 100 / float64(len(movie.Genre)))))
}

// RandomScorer reproduces the legacy cosmetic score: a uniform value in
// [80, 99] unrelated to the movie.
type RandomScorer struct{}

func (RandomScorer) Name() string { return "random" }

func (RandomScorer) Score(model.Movie, map[string]struct{}) int {
	return 80 + rand.Intn(20)
}

// ParseScorer maps a configured name to a scorer. Empty means "genre".
func ParseScorer(name string) (MatchScorer, error) {
	switch name {
	case "", "genre":
		return GenreOverlapScorer{}, nil
	case "random":
		return RandomScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown match score policy %q", name)
	}
}

type RecommendOptions struct {
	Limit  int
	Scorer MatchScorer
}

// Recommend ranks movies for a user with the given ratings (movie id to
// 1-5 stars).
//
// With no ratings the most highly voted movies are returned. Otherwise the
// candidates are the unrated movies sharing a genre with a movie rated
// LikedThreshold or more, ordered by descending vote average with ties kept
// in dataset order. Ratings without a liked movie yield no recommendations.
func Recommend(movies []model.Movie, ratings map[int]int, opts RecommendOptions) []model.Recommendation {
	limit := opts.Limit
	if limit < 1 {
		limit = DefaultRecommendationLimit
	}
	scorer := opts.Scorer
	if scorer == nil {
		scorer = GenreOverlapScorer{}
	}

	if len(ratings) == 0 {
		return annotate(topByVote(movies, limit), nil, scorer)
	}

	liked := LikedGenres(movies, ratings)
	if len(liked) == 0 {
		return []model.Recommendation{}
	}

	candidates := make([]model.Movie, 0)
	for _, m := range movies {
		if _, rated := ratings[m.ID]; rated {
			continue
		}
		if sharesGenre(m, liked) {
			candidates = append(candidates, m)
		}
	}
	return annotate(topByVote(candidates, limit), liked, scorer)
}

// LikedGenres collects the genres of the dataset movies rated at or above
// LikedThreshold
func LikedGenres(movies []model.Movie, ratings map[int]int) map[string]struct{} {
	liked := make(map[string]struct{})
	for _, m := range movies {
		if ratings[m.ID] < LikedThreshold {
			continue
		}
		for _, g := range m.Genre {
			liked[g] = struct{}{}
		}
	}
	return liked
}

func sharesGenre(m model.Movie, genres map[string]struct{}) bool {
	for _, g := range m.Genre {
		if _, ok := genres[g]; ok {
			return true
		}
	}
	return false
}

// topByVote sorts a copy of movies by descending vote average and truncates
func topByVote(movies []model.Movie, limit int) []model.Movie {
	ranked := cloneMovies(movies)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].VoteAverage > ranked[j].VoteAverage
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func annotate(movies []model.Movie, liked map[string]struct{}, scorer MatchScorer) []model.Recommendation {
	recs := make([]model.Recommendation, 0, len(movies))
	for _, m := range movies {
		recs = append(recs, model.Recommendation{Movie: m, MatchScore: scorer.Score(m, liked)})
	}
	return recs
}

func clampPercent(v int) int {
	return max(0, min(100, v))
}
