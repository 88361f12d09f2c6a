package catalog

import (
	"strings"

	"movie-mate/model"
)

// StarToVoteScale converts a 0-5 star threshold to the 0-10 vote average
// scale: a movie passes a MinRating filter when
// VoteAverage >= MinRating * StarToVoteScale.
const StarToVoteScale = 2

// Search returns the movies whose title or any genre label contains q,
// case-insensitively. The result is never nil.
func Search(movies []model.Movie, q string) []model.Movie {
	needle := strings.ToLower(strings.TrimSpace(q))

	matches := make([]model.Movie, 0)
	for _, m := range movies {
		if matchesQuery(m, needle) {
			matches = append(matches, m)
		}
	}
	return matches
}

// Apply filters movies by every criterion set on f
func Apply(movies []model.Movie, f model.Filter) []model.Movie {
	needle := strings.ToLower(strings.TrimSpace(f.Query))
	threshold := float64(f.MinRating * StarToVoteScale)

	out := make([]model.Movie, 0, len(movies))
	for _, m := range movies {
		if f.Genre != "" && !m.HasGenre(f.Genre) {
			continue
		}
		if f.MinRating > 0 && m.VoteAverage < threshold {
			continue
		}
		if needle != "" && !matchesQuery(m, needle) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// needle must already be lower case
func matchesQuery(m model.Movie, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(m.Title), needle) {
		return true
	}
	for _, g := range m.Genre {
		if strings.Contains(strings.ToLower(g), needle) {
			return true
		}
	}
	return false
}
