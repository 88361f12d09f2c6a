// Package dataset turns delimited movie datasets into model.Movie records.
//
// Parsing is permissive: every field of every row is defaulted on its own,
// so a malformed row becomes a record full of placeholders instead of an
// error. Only a reader failure or a missing header aborts a load.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"movie-mate/model"
)

const (
	UnknownTitle = "Unknown Movie"
	UnknownGenre = "Unknown"

	DefaultPosterURL = "https://images.pexels.com/photos/1117132/pexels-photo-1117132.jpeg?auto=compress&cs=tinysrgb&w=1260&h=750&dpr=1"
)

//go:embed data/movies.csv
var bundledCSV []byte

// ErrNoHeader is returned when the input has no header row
var ErrNoHeader = errors.New("dataset has no header row")

// column aliases, first match wins
var columns = map[string][]string{
	"id":           {"id", "movie_id"},
	"title":        {"title"},
	"genre":        {"genres_x", "genres", "genre"},
	"poster_path":  {"poster_path", "poster"},
	"vote_average": {"vote_average"},
	"overview":     {"overview"},
	"release_date": {"release_date"},
	"runtime":      {"runtime"},
}

// Bundled parses the dataset compiled into the binary
func Bundled() []model.Movie {
	movies, err := ParseBytes(bundledCSV)
	if err != nil {
		// the embedded file always has a header
		panic(fmt.Sprintf("bundled dataset: %v", err))
	}
	return movies
}

// LoadFile parses a dataset file from disk
func LoadFile(path string) ([]model.Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// ParseBytes parses an in-memory dataset
func ParseBytes(content []byte) ([]model.Movie, error) {
	return Parse(bytes.NewReader(content))
}

// Parse reads a CSV dataset with a header row
func Parse(r io.Reader) ([]model.Movie, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	index := headerIndex(header)

	movies := make([]model.Movie, 0, 256)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to read dataset: %w", err)
			}
			// keep whatever the reader salvaged, defaults fill the rest
			movies = append(movies, rowToMovie(record, index))
			continue
		}
		if isBlank(record) {
			continue
		}
		movies = append(movies, rowToMovie(record, index))
	}
	return movies, nil
}

func headerIndex(header []string) map[string]int {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	index := make(map[string]int, len(columns))
	for field, aliases := range columns {
		for _, alias := range aliases {
			if i, ok := positions[alias]; ok {
				index[field] = i
				break
			}
		}
	}
	return index
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func rowToMovie(record []string, index map[string]int) model.Movie {
	cell := func(field string) string {
		i, ok := index[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	return model.Movie{
		ID:          toInt(cell("id")),
		Title:       orDefault(cell("title"), UnknownTitle),
		Genre:       ParseGenres(cell("genre")),
		PosterPath:  orDefault(cell("poster_path"), DefaultPosterURL),
		VoteAverage: toFloat(cell("vote_average")),
		Overview:    cell("overview"),
		ReleaseDate: cell("release_date"),
		Runtime:     toInt(cell("runtime")),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func toFloat(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func toInt(v string) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	f := toFloat(v)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

type genreEntry struct {
	Name string `json:"name"`
}

// ParseGenres decodes a genre cell. It accepts the Python-literal list of
// {'id': n, 'name': '...'} dicts found in TMDB exports, a JSON list of
// strings, and falls back to a single "Unknown" label.
func ParseGenres(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return []string{UnknownGenre}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(strings.ReplaceAll(cell, "'", `"`)), &raw); err != nil {
		return []string{UnknownGenre}
	}

	genres := make([]string, 0, len(raw))
	for _, item := range raw {
		var entry genreEntry
		if err := json.Unmarshal(item, &entry); err == nil && entry.Name != "" {
			genres = append(genres, entry.Name)
			continue
		}
		var name string
		if err := json.Unmarshal(item, &name); err == nil && name != "" {
			genres = append(genres, name)
		}
	}

	if len(genres) == 0 {
		return []string{UnknownGenre}
	}
	return genres
}

// Genres returns the distinct genre labels of movies in first-seen order
func Genres(movies []model.Movie) []string {
	seen := make(map[string]struct{})
	genres := make([]string, 0)
	for _, m := range movies {
		for _, g := range m.Genre {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			genres = append(genres, g)
		}
	}
	return genres
}
