// Package server exposes the movie and auth services over HTTP with gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"movie-mate/auth"
	"movie-mate/logging"
	"movie-mate/model"
	"movie-mate/resolver"
)

const defaultMaxUploadBytes = 32 << 20

// Movies is the catalogue surface the handlers use
type Movies interface {
	Movies(ctx context.Context) ([]model.Movie, error)
	PaginatedMovies(ctx context.Context, page, limit int) (model.Page, error)
	Movie(ctx context.Context, id int) (model.MovieDetail, error)
	Search(ctx context.Context, q string) ([]model.Movie, error)
	Rate(ctx context.Context, session model.Session, movieID, rating int) error
	Recommendations(ctx context.Context, session model.Session) ([]model.Recommendation, error)
	UserRatings(ctx context.Context, session model.Session) ([]model.Rating, error)
	UploadDataset(ctx context.Context, session model.Session, filename string, content []byte) (resolver.DatasetUpload, error)
	Genres() []string
	Filter(movies []model.Movie, f model.Filter) []model.Movie
	Status() resolver.Status
}

// Auth is the authentication surface the handlers use
type Auth interface {
	Register(ctx context.Context, req auth.RegisterRequest) (model.AuthResult, error)
	Login(ctx context.Context, identifier, password string) (model.AuthResult, error)
	Logout(ctx context.Context) error
	Authenticate(ctx context.Context, token string) (model.User, error)
	Session() (model.Session, error)
}

type Config struct {
	ListenAddr     string
	FrontendURL    string
	AuthRateLimit  float64 // requests per second per client on login/register, 0 disables
	MaxUploadBytes int64
}

type Server struct {
	cfg    Config
	movies Movies
	auth   Auth
	engine *gin.Engine
	srv    *http.Server
}

func New(cfg Config, movies Movies, authService Auth) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.MaxMultipartMemory = cfg.MaxUploadBytes

	corsConfig := cors.DefaultConfig()
	if cfg.FrontendURL != "" {
		corsConfig.AllowOrigins = []string{cfg.FrontendURL}
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowHeaders("Authorization")
	engine.Use(cors.New(corsConfig))

	s := &Server{
		cfg:    cfg,
		movies: movies,
		auth:   authService,
		engine: engine,
	}
	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.Use(s.withSession())

	movies := api.Group("/movies")
	{
		movies.GET("/", s.handleMovies)
		movies.GET("/paginated", s.handlePaginated)
		movies.GET("/search/", s.handleSearch)
		movies.GET("/genres", s.handleGenres)
		movies.GET("/:id/", s.handleMovie)
		movies.POST("/:id/rate/", s.handleRate)
		movies.POST("/upload-dataset/", requireAdmin(), s.handleUpload)
	}

	api.GET("/recommendations/", s.handleRecommendations)
	api.GET("/ratings/", s.handleRatings)

	authGroup := api.Group("/auth")
	{
		limited := authGroup.Group("", newRateLimiter(s.cfg.AuthRateLimit).middleware())
		limited.POST("/register", s.handleRegister)
		limited.POST("/login", s.handleLogin)
		authGroup.POST("/logout", s.handleLogout)
		authGroup.GET("/me", s.handleMe)
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	logging.Info().Str("addr", s.cfg.ListenAddr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
