package catalog

import "movie-mate/model"

const DefaultPageSize = 30

// Paginate returns the 1-based page of movies. A page below 1 is treated as
// the first page and a non-positive limit falls back to DefaultPageSize.
// Pages past the end are empty; Total is always the full length.
func Paginate(movies []model.Movie, page, limit int) model.Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	result := model.Page{Movies: []model.Movie{}, Total: len(movies)}

	start := (page - 1) * limit
	if start >= len(movies) || start < 0 {
		return result
	}
	end := min(start+limit, len(movies))

	result.Movies = append(result.Movies, movies[start:end]...)
	return result
}
