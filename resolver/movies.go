package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"movie-mate/catalog"
	"movie-mate/dataset"
	"movie-mate/logging"
	"movie-mate/metrics"
	"movie-mate/model"
	"movie-mate/remote"
)

var (
	ErrMovieNotFound  = errors.New("movie not found")
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrInvalidDataset = errors.New("invalid dataset")
)

const (
	MinRating = 1
	MaxRating = 5

	noOverview     = "No overview available"
	unknownRelease = "Unknown"
)

// LocalStore is the persisted state the local tier reads and writes
type LocalStore interface {
	GetRatings() (map[int]int, error)
	SetRating(movieID, rating int) error
	RecordSyncedRating(movieID, rating int) error
	SetDatasetOverride(movies []model.Movie) error
}

// UploadNotifier is told about every accepted dataset upload
type UploadNotifier interface {
	DatasetUploaded(ctx context.Context, upload DatasetUpload) error
}

type DatasetUpload struct {
	Filename string
	Bytes    int
	Movies   int
	Genres   []string
}

type MovieServiceConfig struct {
	Resolver *Resolver
	Client   *remote.Client // nil when running offline
	Store    *catalog.Store
	Local    LocalStore
	Notifier UploadNotifier

	Scorer              catalog.MatchScorer
	PageSize            int
	RecommendationLimit int
}

// MovieService exposes the catalogue operations. Each one is answered by the
// upstream API when it can be and by the local dataset otherwise; callers
// cannot tell which.
type MovieService struct {
	resolver *Resolver
	client   *remote.Client
	store    *catalog.Store
	local    LocalStore
	notifier UploadNotifier

	scorer              catalog.MatchScorer
	pageSize            int
	recommendationLimit int

	now func() time.Time
}

func NewMovieService(cfg MovieServiceConfig) *MovieService {
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = catalog.DefaultPageSize
	}
	limit := cfg.RecommendationLimit
	if limit < 1 {
		limit = catalog.DefaultRecommendationLimit
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = catalog.GenreOverlapScorer{}
	}

	return &MovieService{
		resolver:            cfg.Resolver,
		client:              cfg.Client,
		store:               cfg.Store,
		local:               cfg.Local,
		notifier:            cfg.Notifier,
		scorer:              scorer,
		pageSize:            pageSize,
		recommendationLimit: limit,
		now:                 time.Now,
	}
}

// remoteOp returns fn, or nil when there is no upstream client
func remoteOp[T any](s *MovieService, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	if s.client == nil {
		return nil
	}
	return fn
}

func (s *MovieService) Movies(ctx context.Context) ([]model.Movie, error) {
	return Resolve(ctx, s.resolver, "movies",
		remoteOp(s, func(ctx context.Context) ([]model.Movie, error) {
			return s.client.Movies(ctx)
		}),
		func(context.Context) ([]model.Movie, error) {
			return s.store.Snapshot(), nil
		})
}

// PaginatedMovies returns a 1-based page. page < 1 is the first page and
// limit < 1 uses the configured page size.
func (s *MovieService) PaginatedMovies(ctx context.Context, page, limit int) (model.Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.pageSize
	}

	return Resolve(ctx, s.resolver, "movies_paginated",
		remoteOp(s, func(ctx context.Context) (model.Page, error) {
			return s.client.PaginatedMovies(ctx, page, limit)
		}),
		func(context.Context) (model.Page, error) {
			return catalog.Paginate(s.store.Snapshot(), page, limit), nil
		})
}

func (s *MovieService) Movie(ctx context.Context, id int) (model.MovieDetail, error) {
	return Resolve(ctx, s.resolver, "movie",
		remoteOp(s, func(ctx context.Context) (model.MovieDetail, error) {
			return s.client.Movie(ctx, id)
		}),
		func(context.Context) (model.MovieDetail, error) {
			return s.localMovie(id)
		})
}

func (s *MovieService) localMovie(id int) (model.MovieDetail, error) {
	movie, ok := s.store.Find(id)
	if !ok {
		return model.MovieDetail{}, fmt.Errorf("movie %d: %w", id, ErrMovieNotFound)
	}

	if movie.Overview == "" {
		movie.Overview = noOverview
	}
	if movie.ReleaseDate == "" {
		movie.ReleaseDate = unknownRelease
	}

	detail := model.MovieDetail{Movie: movie}
	ratings, err := s.local.GetRatings()
	if err != nil {
		return model.MovieDetail{}, err
	}
	if _, rated := ratings[id]; rated {
		detail.Ratings = 1
	}
	return detail, nil
}

func (s *MovieService) Search(ctx context.Context, q string) ([]model.Movie, error) {
	return Resolve(ctx, s.resolver, "search",
		remoteOp(s, func(ctx context.Context) ([]model.Movie, error) {
			return s.client.Search(ctx, q)
		}),
		func(context.Context) ([]model.Movie, error) {
			return catalog.Search(s.store.Snapshot(), q), nil
		})
}

// Rate records a 1-5 star rating. A rating outside that range is rejected
// before either tier is tried. A rating the upstream accepts is mirrored
// locally and supersedes any rating still queued for replay; a rating
// stored locally is queued.
func (s *MovieService) Rate(ctx context.Context, session model.Session, movieID, rating int) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}

	_, err := Resolve(ctx, s.resolver, "rate",
		remoteOp(s, func(ctx context.Context) (struct{}, error) {
			if err := s.client.Rate(ctx, session.Token, movieID, rating); err != nil {
				return struct{}{}, err
			}
			if err := s.local.RecordSyncedRating(movieID, rating); err != nil {
				logging.Warn().Err(err).Int("movie_id", movieID).Msg("Failed to mirror upstream rating")
			}
			return struct{}{}, nil
		}),
		func(context.Context) (struct{}, error) {
			return struct{}{}, s.local.SetRating(movieID, rating)
		})
	return err
}

// Recommendations needs an authenticated session: without a token the
// result is empty, and the local tier also needs the user's identity.
func (s *MovieService) Recommendations(ctx context.Context, session model.Session) ([]model.Recommendation, error) {
	if session.Token == "" {
		return []model.Recommendation{}, nil
	}

	return Resolve(ctx, s.resolver, "recommendations",
		remoteOp(s, func(ctx context.Context) ([]model.Recommendation, error) {
			return s.client.Recommendations(ctx, session.Token)
		}),
		func(context.Context) ([]model.Recommendation, error) {
			if !session.HasIdentity() {
				return []model.Recommendation{}, nil
			}
			ratings, err := s.local.GetRatings()
			if err != nil {
				return nil, err
			}
			return catalog.Recommend(s.store.Snapshot(), ratings, catalog.RecommendOptions{
				Limit:  s.recommendationLimit,
				Scorer: s.scorer,
			}), nil
		})
}

// UserRatings lists the session user's ratings, ordered by movie id when
// served locally
func (s *MovieService) UserRatings(ctx context.Context, session model.Session) ([]model.Rating, error) {
	if session.Token == "" {
		return []model.Rating{}, nil
	}

	return Resolve(ctx, s.resolver, "user_ratings",
		remoteOp(s, func(ctx context.Context) ([]model.Rating, error) {
			return s.client.UserRatings(ctx, session.Token)
		}),
		func(context.Context) ([]model.Rating, error) {
			if !session.HasIdentity() {
				return []model.Rating{}, nil
			}
			return s.localRatings()
		})
}

func (s *MovieService) localRatings() ([]model.Rating, error) {
	stored, err := s.local.GetRatings()
	if err != nil {
		return nil, err
	}

	ratedAt := s.now().UTC()
	ratings := make([]model.Rating, 0, len(stored))
	for movieID, rating := range stored {
		row := model.Rating{
			ID:         movieID,
			MovieID:    movieID,
			Title:      dataset.UnknownTitle,
			PosterPath: dataset.DefaultPosterURL,
			Rating:     rating,
			RatedAt:    ratedAt,
		}
		if movie, ok := s.store.Find(movieID); ok {
			row.Title = movie.Title
			row.PosterPath = movie.PosterPath
		}
		ratings = append(ratings, row)
	}
	sort.Slice(ratings, func(i, j int) bool { return ratings[i].MovieID < ratings[j].MovieID })
	return ratings, nil
}

// UploadDataset validates a CSV dataset and hands it to the upstream. When
// the upstream cannot take it, the dataset is persisted locally and replaces
// the resident one.
func (s *MovieService) UploadDataset(ctx context.Context, session model.Session, filename string, content []byte) (DatasetUpload, error) {
	movies, err := dataset.ParseBytes(content)
	if err != nil {
		metrics.DatasetUploads.WithLabelValues("rejected").Inc()
		return DatasetUpload{}, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}

	upload := DatasetUpload{
		Filename: filename,
		Bytes:    len(content),
		Movies:   len(movies),
		Genres:   dataset.Genres(movies),
	}

	_, err = Resolve(ctx, s.resolver, "upload_dataset",
		remoteOp(s, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.client.UploadDataset(ctx, session.Token, filename, content)
		}),
		func(context.Context) (struct{}, error) {
			if err := s.local.SetDatasetOverride(movies); err != nil {
				return struct{}{}, err
			}
			s.store.Replace(movies)
			metrics.CatalogMovies.Set(float64(len(movies)))
			return struct{}{}, nil
		})
	if err != nil {
		metrics.DatasetUploads.WithLabelValues("failed").Inc()
		return DatasetUpload{}, err
	}
	metrics.DatasetUploads.WithLabelValues("accepted").Inc()

	logging.Info().Str("file", filename).Int("movies", upload.Movies).Msg("Dataset uploaded")

	if s.notifier != nil {
		if err := s.notifier.DatasetUploaded(ctx, upload); err != nil {
			logging.Warn().Err(err).Msg("Failed to send dataset upload notification")
		}
	}
	return upload, nil
}

// Genres lists the genres of the resident dataset in first-seen order
func (s *MovieService) Genres() []string {
	return dataset.Genres(s.store.Snapshot())
}

// Filter applies the browse filters to an already fetched list
func (s *MovieService) Filter(movies []model.Movie, f model.Filter) []model.Movie {
	return catalog.Apply(movies, f)
}

type Status struct {
	Remote string `json:"remote"` // breaker state, or "offline"
	Movies int    `json:"movies"`
}

// Status reports the upstream breaker state and the resident dataset size
func (s *MovieService) Status() Status {
	return Status{Remote: s.resolver.State(), Movies: s.store.Len()}
}
