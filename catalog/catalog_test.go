package catalog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-mate/model"
)

func sampleMovies() []model.Movie {
	return []model.Movie{
		{ID: 1, Title: "Alpha", VoteAverage: 9.0, Genre: []string{"Drama"}},
		{ID: 2, Title: "Beta", VoteAverage: 5.0, Genre: []string{"Comedy"}},
		{ID: 3, Title: "Gamma", VoteAverage: 7.0, Genre: []string{"Drama"}},
		{ID: 4, Title: "Delta Force", VoteAverage: 6.1, Genre: []string{"Action", "Thriller"}},
		{ID: 5, Title: "Epsilon", VoteAverage: 7.0, Genre: []string{"Drama", "Romance"}},
	}
}

func numbered(n int) []model.Movie {
	movies := make([]model.Movie, n)
	for i := range movies {
		movies[i] = model.Movie{ID: i + 1, Title: fmt.Sprintf("Movie %d", i+1), Genre: []string{"Drama"}}
	}
	return movies
}

func ids(movies []model.Movie) []int {
	out := make([]int, len(movies))
	for i, m := range movies {
		out[i] = m.ID
	}
	return out
}

func recIDs(recs []model.Recommendation) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestStoreReplaceAndFind(t *testing.T) {
	input := sampleMovies()
	store := NewStore(input)
	input[0].Title = "mutated"

	m, ok := store.Find(1)
	require.True(t, ok)
	assert.Equal(t, "Alpha", m.Title, "store keeps its own copy")

	_, ok = store.Find(99)
	assert.False(t, ok)

	store.Replace(numbered(3))
	assert.Equal(t, 3, store.Len())
	_, ok = store.Find(5)
	assert.False(t, ok)
}

func TestStoreConcurrentReplace(t *testing.T) {
	store := NewStore(numbered(10))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			store.Replace(numbered(10 + n%2))
		}(i)
		go func() {
			defer wg.Done()
			snapshot := store.Snapshot()
			assert.Contains(t, []int{10, 11}, len(snapshot))
		}()
	}
	wg.Wait()
}

func TestPaginate(t *testing.T) {
	movies := numbered(75)

	page := Paginate(movies, 2, 30)
	assert.Len(t, page.Movies, 30)
	assert.Equal(t, 75, page.Total)
	assert.Equal(t, 31, page.Movies[0].ID)

	last := Paginate(movies, 3, 30)
	assert.Len(t, last.Movies, 15)
	assert.Equal(t, 75, last.Total)

	past := Paginate(movies, 4, 30)
	assert.NotNil(t, past.Movies)
	assert.Empty(t, past.Movies)
	assert.Equal(t, 75, past.Total)
}

func TestPaginateNormalisesArguments(t *testing.T) {
	movies := numbered(75)

	first := Paginate(movies, 0, 0)
	assert.Len(t, first.Movies, DefaultPageSize)
	assert.Equal(t, 1, first.Movies[0].ID)

	negative := Paginate(movies, -3, 10)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(negative.Movies))

	empty := Paginate(nil, 1, 30)
	assert.Empty(t, empty.Movies)
	assert.Zero(t, empty.Total)
}

func TestSearch(t *testing.T) {
	movies := sampleMovies()

	assert.Equal(t, []int{4}, ids(Search(movies, "delta")))
	assert.Equal(t, []int{1, 3, 5}, ids(Search(movies, "DRAMA")), "genre labels match too")
	assert.Equal(t, []int{4}, ids(Search(movies, "thrill")))

	none := Search(movies, "zzz")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestApply(t *testing.T) {
	movies := sampleMovies()

	assert.Equal(t, []int{1, 3, 5}, ids(Apply(movies, model.Filter{Genre: "Drama"})))
	assert.Empty(t, Apply(movies, model.Filter{Genre: "drama"}), "genre match is exact")

	// 3 stars means a vote average of at least 6
	assert.Equal(t, []int{1, 3, 4, 5}, ids(Apply(movies, model.Filter{MinRating: 3})))
	assert.Equal(t, []int{1}, ids(Apply(movies, model.Filter{MinRating: 4, Genre: "Drama"})))
	assert.Equal(t, []int{5}, ids(Apply(movies, model.Filter{Genre: "Drama", Query: "eps"})))

	assert.Len(t, Apply(movies, model.Filter{}), len(movies))
}

func TestRecommendColdStart(t *testing.T) {
	movies := sampleMovies()

	recs := Recommend(movies, nil, RecommendOptions{Limit: 3})
	// Gamma and Epsilon tie at 7.0 and keep dataset order
	assert.Equal(t, []int{1, 3, 5}, recIDs(recs))
	assert.Equal(t, 90, recs[0].MatchScore)
	assert.Equal(t, 70, recs[1].MatchScore)
}

func TestRecommendDefaultLimit(t *testing.T) {
	recs := Recommend(numbered(25), map[int]int{}, RecommendOptions{})
	assert.Len(t, recs, DefaultRecommendationLimit)
}

func TestRecommendLikedGenres(t *testing.T) {
	movies := sampleMovies()
	ratings := map[int]int{1: 5}

	recs := Recommend(movies, ratings, RecommendOptions{})
	require.NotEmpty(t, recs)

	liked := LikedGenres(movies, ratings)
	for _, r := range recs {
		_, rated := ratings[r.ID]
		assert.False(t, rated, "rated movie %d recommended", r.ID)
		assert.True(t, sharesGenre(r.Movie, liked), "movie %d shares no liked genre", r.ID)
	}

	assert.Equal(t, []int{3, 5}, recIDs(recs))
	assert.Equal(t, 100, recs[0].MatchScore)
	assert.Equal(t, 50, recs[1].MatchScore)
}

func TestRecommendScenario(t *testing.T) {
	movies := []model.Movie{
		{ID: 1, Title: "Alpha", VoteAverage: 9.0, Genre: []string{"Drama"}},
		{ID: 2, Title: "Beta", VoteAverage: 5.0, Genre: []string{"Comedy"}},
		{ID: 3, Title: "Gamma", VoteAverage: 7.0, Genre: []string{"Drama"}},
	}

	recs := Recommend(movies, map[int]int{1: 5}, RecommendOptions{})
	got := recIDs(recs)
	assert.NotContains(t, got, 1)
	require.Contains(t, got, 3)
	assert.Equal(t, 3, got[0], "Gamma ranks ahead of Beta")
}

func TestRecommendWithoutLikedMovies(t *testing.T) {
	recs := Recommend(sampleMovies(), map[int]int{1: 3, 2: 1}, RecommendOptions{})
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRandomScorerBand(t *testing.T) {
	scorer := RandomScorer{}
	for i := 0; i < 200; i++ {
		score := scorer.Score(model.Movie{}, nil)
		assert.GreaterOrEqual(t, score, 80)
		assert.LessOrEqual(t, score, 99)
	}
}

func TestParseScorer(t *testing.T) {
	s, err := ParseScorer("")
	require.NoError(t, err)
	assert.Equal(t, "genre", s.Name())

	s, err = ParseScorer("random")
	require.NoError(t, err)
	assert.Equal(t, "random", s.Name())

	_, err = ParseScorer("oracle")
	assert.Error(t, err)
}
