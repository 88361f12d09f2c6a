// Package catalog holds the in-memory movie collection and the pure
// operations over it: search, filtering, pagination and recommendation.
package catalog

import (
	"sync"

	"movie-mate/model"
)

// Store owns the resident dataset. It is replaced wholesale when a new
// dataset is uploaded; readers always see one complete snapshot.
type Store struct {
	mu     sync.RWMutex
	movies []model.Movie
}

func NewStore(movies []model.Movie) *Store {
	return &Store{movies: cloneMovies(movies)}
}

// Snapshot returns the current dataset. The slice is shared and must not be
// modified.
func (s *Store) Snapshot() []model.Movie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movies
}

// Replace swaps in a new dataset
func (s *Store) Replace(movies []model.Movie) {
	next := cloneMovies(movies)

	s.mu.Lock()
	s.movies = next
	s.mu.Unlock()
}

// Find returns the first movie with the given id
func (s *Store) Find(id int) (model.Movie, bool) {
	for _, m := range s.Snapshot() {
		if m.ID == id {
			return m, true
		}
	}
	return model.Movie{}, false
}

func (s *Store) Len() int {
	return len(s.Snapshot())
}

func cloneMovies(movies []model.Movie) []model.Movie {
	out := make([]model.Movie, len(movies))
	copy(out, movies)
	return out
}
