package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-mate/catalog"
	"movie-mate/dataset"
	"movie-mate/model"
	"movie-mate/remote"
)

type memoryStore struct {
	mu      sync.Mutex
	ratings map[int]int
	pending map[int]int
	dataset []model.Movie
}

func newMemoryStore() *memoryStore {
	return &memoryStore{ratings: make(map[int]int), pending: make(map[int]int)}
}

func (m *memoryStore) GetRatings() (map[int]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]int, len(m.ratings))
	for k, v := range m.ratings {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) SetRating(movieID, rating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[movieID] = rating
	m.pending[movieID] = rating
	return nil
}

func (m *memoryStore) RecordSyncedRating(movieID, rating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[movieID] = rating
	delete(m.pending, movieID)
	return nil
}

func (m *memoryStore) SetDatasetOverride(movies []model.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataset = movies
	return nil
}

type recordingNotifier struct {
	uploads []DatasetUpload
}

func (n *recordingNotifier) DatasetUploaded(_ context.Context, upload DatasetUpload) error {
	n.uploads = append(n.uploads, upload)
	return nil
}

var session = model.Session{Token: "tok", User: &model.User{ID: "u1", Name: "Ada"}}

func scenarioMovies() []model.Movie {
	return []model.Movie{
		{ID: 1, Title: "Alpha", VoteAverage: 9.0, Genre: []string{"Drama"}, PosterPath: "/alpha.jpg"},
		{ID: 2, Title: "Beta", VoteAverage: 5.0, Genre: []string{"Comedy"}, PosterPath: "/beta.jpg"},
		{ID: 3, Title: "Gamma", VoteAverage: 7.0, Genre: []string{"Drama"}, PosterPath: "/gamma.jpg", Overview: "Third"},
	}
}

// downUpstream answers every request with a 500 and counts them
func downUpstream(t *testing.T) (*remote.Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return remote.NewClient(remote.Config{APIBaseURL: srv.URL + "/api", Timeout: time.Second}), &calls
}

func newService(t *testing.T, client *remote.Client, movies []model.Movie, local *memoryStore) *MovieService {
	t.Helper()
	r := Offline("movies")
	if client != nil {
		r = New(Options{Name: "movies-" + t.Name(), BreakerFailures: 100})
	}
	return NewMovieService(MovieServiceConfig{
		Resolver: r,
		Client:   client,
		Store:    catalog.NewStore(movies),
		Local:    local,
	})
}

func TestMoviesFallBackToStore(t *testing.T) {
	client, calls := downUpstream(t)
	svc := newService(t, client, scenarioMovies(), newMemoryStore())

	movies, err := svc.Movies(context.Background())
	require.NoError(t, err)
	assert.Len(t, movies, 3)
	assert.Equal(t, int32(1), calls.Load(), "exactly one remote attempt")
}

func TestMoviesFromUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 99, "title": "Remote"}]`))
	}))
	defer srv.Close()
	client := remote.NewClient(remote.Config{APIBaseURL: srv.URL})
	svc := newService(t, client, scenarioMovies(), newMemoryStore())

	movies, err := svc.Movies(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Remote", movies[0].Title)
}

func TestPaginatedMoviesLocal(t *testing.T) {
	movies := make([]model.Movie, 75)
	for i := range movies {
		movies[i] = model.Movie{ID: i + 1, Title: fmt.Sprintf("Movie %d", i+1)}
	}
	client, _ := downUpstream(t)
	svc := newService(t, client, movies, newMemoryStore())

	page, err := svc.PaginatedMovies(context.Background(), 2, 30)
	require.NoError(t, err)
	assert.Len(t, page.Movies, 30)
	assert.Equal(t, 75, page.Total)

	page, err = svc.PaginatedMovies(context.Background(), 3, 30)
	require.NoError(t, err)
	assert.Len(t, page.Movies, 15)

	page, err = svc.PaginatedMovies(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, page.Movies, catalog.DefaultPageSize)
	assert.Equal(t, 1, page.Movies[0].ID)
}

func TestMovieLocalDetail(t *testing.T) {
	local := newMemoryStore()
	require.NoError(t, local.SetRating(1, 5))
	svc := newService(t, nil, scenarioMovies(), local)

	detail, err := svc.Movie(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", detail.Title)
	assert.Equal(t, "No overview available", detail.Overview)
	assert.Equal(t, "Unknown", detail.ReleaseDate)
	assert.Equal(t, 1, detail.Ratings)

	detail, err = svc.Movie(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Third", detail.Overview)
	assert.Zero(t, detail.Ratings)

	_, err = svc.Movie(context.Background(), 42)
	assert.ErrorIs(t, err, ErrMovieNotFound)
}

func TestSearchNoMatchIsEmpty(t *testing.T) {
	client, _ := downUpstream(t)
	svc := newService(t, client, scenarioMovies(), newMemoryStore())

	movies, err := svc.Search(context.Background(), "nothing like this")
	require.NoError(t, err)
	assert.NotNil(t, movies)
	assert.Empty(t, movies)

	movies, err = svc.Search(context.Background(), "drama")
	require.NoError(t, err)
	assert.Len(t, movies, 2)
}

func TestRateWritesLocallyWhenUpstreamDown(t *testing.T) {
	client, _ := downUpstream(t)
	local := newMemoryStore()
	svc := newService(t, client, scenarioMovies(), local)

	require.NoError(t, svc.Rate(context.Background(), session, 2, 4))
	require.NoError(t, svc.Rate(context.Background(), session, 2, 1))

	ratings, _ := local.GetRatings()
	assert.Equal(t, map[int]int{2: 1}, ratings)
}

func TestRateServedUpstreamSupersedesQueuedRating(t *testing.T) {
	var up atomic.Bool
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		received.Add(1)
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	local := newMemoryStore()
	client := remote.NewClient(remote.Config{APIBaseURL: srv.URL + "/api", Timeout: time.Second})
	svc := newService(t, client, scenarioMovies(), local)

	require.NoError(t, svc.Rate(context.Background(), session, 3, 1))
	assert.Equal(t, map[int]int{3: 1}, local.pending)

	up.Store(true)
	require.NoError(t, svc.Rate(context.Background(), session, 3, 5))
	assert.Equal(t, int32(1), received.Load())
	assert.Empty(t, local.pending)

	ratings, _ := local.GetRatings()
	assert.Equal(t, map[int]int{3: 5}, ratings)
}

func TestRateRejectsOutOfRange(t *testing.T) {
	client, calls := downUpstream(t)
	local := newMemoryStore()
	svc := newService(t, client, scenarioMovies(), local)

	for _, rating := range []int{0, 6, -1} {
		assert.ErrorIs(t, svc.Rate(context.Background(), session, 1, rating), ErrInvalidRating)
	}
	assert.Zero(t, calls.Load())
	ratings, _ := local.GetRatings()
	assert.Empty(t, ratings)
}

func TestRecommendationsRequireToken(t *testing.T) {
	client, calls := downUpstream(t)
	svc := newService(t, client, scenarioMovies(), newMemoryStore())

	recs, err := svc.Recommendations(context.Background(), model.Session{})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Zero(t, calls.Load())

	recs, err = svc.Recommendations(context.Background(), model.Session{Token: "tok"})
	require.NoError(t, err)
	assert.Empty(t, recs, "local tier needs a user identity")
}

func TestRecommendationsScenario(t *testing.T) {
	client, _ := downUpstream(t)
	local := newMemoryStore()
	svc := newService(t, client, scenarioMovies(), local)

	require.NoError(t, svc.Rate(context.Background(), session, 1, 5))

	recs, err := svc.Recommendations(context.Background(), session)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, 3, recs[0].ID)
	for _, r := range recs {
		assert.NotEqual(t, 1, r.ID)
	}
}

func TestRecommendationsColdStart(t *testing.T) {
	svc := newService(t, nil, scenarioMovies(), newMemoryStore())

	recs, err := svc.Recommendations(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []int{1, 3, 2}, []int{recs[0].ID, recs[1].ID, recs[2].ID})
}

func TestUserRatingsJoinsDataset(t *testing.T) {
	local := newMemoryStore()
	require.NoError(t, local.SetRating(3, 4))
	require.NoError(t, local.SetRating(404, 2))
	svc := newService(t, nil, scenarioMovies(), local)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	ratings, err := svc.UserRatings(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, ratings, 2)

	assert.Equal(t, model.Rating{ID: 3, MovieID: 3, Title: "Gamma", PosterPath: "/gamma.jpg", Rating: 4, RatedAt: fixed}, ratings[0])
	assert.Equal(t, dataset.UnknownTitle, ratings[1].Title)
	assert.Equal(t, dataset.DefaultPosterURL, ratings[1].PosterPath)

	empty, err := svc.UserRatings(context.Background(), model.Session{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUploadDatasetReplacesStoreLocally(t *testing.T) {
	client, _ := downUpstream(t)
	local := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := NewMovieService(MovieServiceConfig{
		Resolver: New(Options{Name: "upload-test"}),
		Client:   client,
		Store:    catalog.NewStore(scenarioMovies()),
		Local:    local,
		Notifier: notifier,
	})

	csv := "id,title,genres_x,vote_average\n10,Ten,\"[{'id': 35, 'name': 'Comedy'}]\",6.5\n11,Eleven,,7\n"
	upload, err := svc.UploadDataset(context.Background(), session, "new.csv", []byte(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, upload.Movies)

	movies, err := svc.Movies(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "Ten", movies[0].Title)
	assert.Len(t, local.dataset, 2)
	assert.Equal(t, []string{"Comedy", "Unknown"}, svc.Genres())

	require.Len(t, notifier.uploads, 1)
	assert.Equal(t, "new.csv", notifier.uploads[0].Filename)
}

func TestUploadDatasetRejectsEmptyFile(t *testing.T) {
	svc := newService(t, nil, scenarioMovies(), newMemoryStore())

	_, err := svc.UploadDataset(context.Background(), session, "empty.csv", nil)
	assert.ErrorIs(t, err, ErrInvalidDataset)

	movies, _ := svc.Movies(context.Background())
	assert.Len(t, movies, 3, "resident dataset untouched")
}

func TestFilter(t *testing.T) {
	svc := newService(t, nil, scenarioMovies(), newMemoryStore())

	movies, err := svc.Movies(context.Background())
	require.NoError(t, err)
	filtered := svc.Filter(movies, model.Filter{Genre: "Drama", MinRating: 4})
	require.Len(t, filtered, 1)
	assert.Equal(t, 1, filtered[0].ID)
}

func TestStatus(t *testing.T) {
	svc := newService(t, nil, scenarioMovies(), newMemoryStore())
	assert.Equal(t, Status{Remote: "offline", Movies: 3}, svc.Status())
}
