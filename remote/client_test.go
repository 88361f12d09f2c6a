package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIBaseURL: srv.URL + "/api", AuthBaseURL: srv.URL + "/api/auth", Timeout: time.Second})
}

func TestMovies(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/movies/", r.URL.Path)
		w.Write([]byte(`[{"id": 603, "title": "The Matrix", "genre": ["Action"], "vote_average": 8.2}]`))
	})

	movies, err := client.Movies(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "The Matrix", movies[0].Title)
	assert.Equal(t, []string{"Action"}, movies[0].Genre)
}

func TestPaginatedMoviesQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/movies/paginated", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "30", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"movies": [], "total": 75}`))
	})

	page, err := client.PaginatedMovies(context.Background(), 2, 30)
	require.NoError(t, err)
	assert.Equal(t, 75, page.Total)
	assert.NotNil(t, page.Movies)
}

func TestSearchEscapesQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/movies/search/", r.URL.Path)
		assert.Equal(t, "star wars & co", r.URL.Query().Get("q"))
		w.Write([]byte(`null`))
	})

	movies, err := client.Search(context.Background(), "star wars & co")
	require.NoError(t, err)
	assert.NotNil(t, movies)
	assert.Empty(t, movies)
}

func TestStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not found."}`))
	})

	_, err := client.Movie(context.Background(), 42)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "Not found.", statusErr.Message)
	assert.Equal(t, "/movies/42/", statusErr.Path)
	assert.False(t, statusErr.Temporary())
}

func TestDecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	})

	_, err := client.Movies(context.Background())
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestRateSendsBearerAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/movies/603/rate/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"rating": 4}`, string(body))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, client.Rate(context.Background(), "tok", 603, 4))
}

func TestUploadDatasetMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "movies.csv", header.Filename)
		assert.Equal(t, "id,title\n", string(content))
		w.Write([]byte(`{"success": true}`))
	})

	require.NoError(t, client.UploadDataset(context.Background(), "", "movies.csv", []byte("id,title\n")))
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(Config{APIBaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Movies(context.Background())
	assert.Error(t, err)
}

func TestNotConfigured(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Movies(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = client.Me(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAuthBaseDefaultsUnderAPI(t *testing.T) {
	client := NewClient(Config{APIBaseURL: "http://upstream/api/"})
	assert.Equal(t, "http://upstream/api/auth", client.authBaseURL)
}
