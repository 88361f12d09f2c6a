package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"movie-mate/auth"
	"movie-mate/catalog"
	"movie-mate/config"
	"movie-mate/dataset"
	"movie-mate/logging"
	"movie-mate/metrics"
	"movie-mate/model"
	"movie-mate/notifier"
	"movie-mate/remote"
	"movie-mate/resolver"
	"movie-mate/scheduler"
	"movie-mate/server"
	"movie-mate/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.Info().Str("mode", cfg.RunMode).Bool("offline", cfg.Offline()).Msg("Starting Movie Mate")
	if cfg.UsingDefaultJWTSecret() {
		logging.Warn().Msg("JWT_SECRET is not set, signing tokens with the built-in default secret")
	}

	sqliteStorage := storage.NewSQLiteStorage(cfg.DataPath)
	if err := sqliteStorage.Initialize(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer sqliteStorage.Close()

	movies, err := loadDataset(cfg, sqliteStorage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load dataset")
	}
	metrics.CatalogMovies.Set(float64(len(movies)))
	store := catalog.NewStore(movies)

	scorer, err := catalog.ParseScorer(cfg.Catalog.MatchScore)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid match score policy")
	}

	var client *remote.Client
	movieResolver := resolver.Offline("catalog-api")
	authResolver := resolver.Offline("auth-api")
	if !cfg.Offline() {
		client = remote.NewClient(remote.Config{
			APIBaseURL:  cfg.Remote.APIBaseURL,
			AuthBaseURL: cfg.Remote.AuthBaseURL,
			Timeout:     cfg.Remote.Timeout,
		})
		movieResolver = resolver.New(breakerOptions(cfg.Remote, "catalog-api", nil))
		authResolver = resolver.New(breakerOptions(cfg.Remote, "auth-api", resolver.IsUnavailable))
	}

	var uploadNotifier resolver.UploadNotifier
	if notifier.Enabled(cfg.Email) {
		n, err := notifier.NewEmailNotifier(cfg.Email)
		if err != nil {
			logging.Warn().Err(err).Msg("Email notifications disabled")
		} else {
			uploadNotifier = n
		}
	}

	movieService := resolver.NewMovieService(resolver.MovieServiceConfig{
		Resolver:            movieResolver,
		Client:              client,
		Store:               store,
		Local:               sqliteStorage,
		Notifier:            uploadNotifier,
		Scorer:              scorer,
		PageSize:            cfg.Catalog.PageSize,
		RecommendationLimit: cfg.Catalog.RecommendationLimit,
	})

	jwtManager, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpire)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create JWT manager")
	}
	localAuth, err := auth.NewLocalProvider(sqliteStorage, jwtManager, bcrypt.DefaultCost)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create local auth provider")
	}
	var remoteAuth auth.Provider
	if client != nil {
		remoteAuth = auth.NewRemoteProvider(client)
	}
	authService := auth.NewService(authResolver, remoteAuth, localAuth, sqliteStorage)

	syncJob := newRatingSyncJob(cfg.Remote, sqliteStorage, client)

	if cfg.RunMode == "once" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := syncJob.Run(ctx); err != nil {
			logging.Error().Err(err).Msg("Rating sync failed")
		}
		logStats(sqliteStorage)
		return
	}

	sched := scheduler.NewScheduler()
	if cfg.RatingSyncSpec != "" && client != nil {
		if err := sched.AddJob(cfg.RatingSyncSpec, syncJob); err != nil {
			logging.Fatal().Err(err).Msg("Failed to schedule rating sync")
		}
		// push ratings captured during the last offline run
		go func() {
			if err := sched.RunJobNow(context.Background(), syncJob.Name()); err != nil {
				logging.Warn().Err(err).Msg("Startup rating sync failed")
			}
		}()
	}
	sched.Start()

	srv := server.New(server.Config{
		ListenAddr:    cfg.ListenAddr,
		FrontendURL:   cfg.FrontendURL,
		AuthRateLimit: cfg.Auth.RateLimit,
	}, movieService, authService)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	logStats(sqliteStorage)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		if err != nil {
			logging.Error().Err(err).Msg("HTTP server stopped")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	sched.Stop()
	logging.Info().Msg("Application exiting")
}

// loadDataset prefers an uploaded dataset, then DATASET_PATH, then the
// dataset compiled into the binary
func loadDataset(cfg *config.Config, s *storage.SQLiteStorage) ([]model.Movie, error) {
	override, found, err := s.GetDatasetOverride()
	if err != nil {
		return nil, err
	}
	if found {
		logging.Info().Int("movies", len(override)).Msg("Using uploaded dataset")
		return override, nil
	}

	if cfg.Catalog.DatasetPath != "" {
		movies, err := dataset.LoadFile(cfg.Catalog.DatasetPath)
		if err == nil {
			logging.Info().Str("path", cfg.Catalog.DatasetPath).Int("movies", len(movies)).Msg("Dataset loaded")
			return movies, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		logging.Warn().Str("path", cfg.Catalog.DatasetPath).Msg("Dataset file missing, using bundled dataset")
	}

	movies := dataset.Bundled()
	logging.Info().Int("movies", len(movies)).Msg("Bundled dataset loaded")
	return movies, nil
}

func breakerOptions(r config.Remote, name string, fallbackOn func(error) bool) resolver.Options {
	return resolver.Options{
		Name:               name,
		Timeout:            r.Timeout,
		BreakerMaxRequests: r.BreakerMaxRequests,
		BreakerInterval:    r.BreakerInterval,
		BreakerTimeout:     r.BreakerTimeout,
		BreakerFailures:    r.BreakerFailures,
		FallbackOn:         fallbackOn,
	}
}

// newRatingSyncJob gives the job its own breaker that only treats an
// unavailable upstream as a failure, so rejected ratings are dropped
// instead of stalling the queue
func newRatingSyncJob(r config.Remote, queue scheduler.RatingQueue, client *remote.Client) *scheduler.RatingSyncJob {
	if client == nil {
		return scheduler.NewRatingSyncJob(queue, nil, resolver.Offline("rating-sync"))
	}
	return scheduler.NewRatingSyncJob(queue, client, resolver.New(breakerOptions(r, "rating-sync", resolver.IsUnavailable)))
}

func logStats(s *storage.SQLiteStorage) {
	stats, err := s.GetStats()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read storage stats")
		return
	}
	logging.Info().
		Int("ratings", stats["ratings"]).
		Int("pending_ratings", stats["pending_ratings"]).
		Int("users", stats["users"]).
		Int("dataset_movies", stats["dataset_movies"]).
		Msg("Storage statistics")
}
