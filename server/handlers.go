package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"movie-mate/auth"
	"movie-mate/model"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"data":   s.movies.Status(),
	})
}

// handleMovies lists the catalogue, narrowed by the optional genre, rating
// (0-5 stars) and q query parameters
func (s *Server) handleMovies(c *gin.Context) {
	filter := model.Filter{
		Genre: c.Query("genre"),
		Query: c.Query("q"),
	}
	if v := c.Query("rating"); v != "" {
		rating, err := strconv.Atoi(v)
		if err != nil || rating < 0 || rating > 5 {
			abortWithMessage(c, http.StatusBadRequest, "rating must be a whole number between 0 and 5")
			return
		}
		filter.MinRating = rating
	}

	movies, err := s.movies.Movies(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if !filter.IsZero() {
		movies = s.movies.Filter(movies, filter)
	}
	c.JSON(http.StatusOK, movies)
}

func (s *Server) handlePaginated(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.movies.PaginatedMovies(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSearch(c *gin.Context) {
	movies, err := s.movies.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, movies)
}

func (s *Server) handleGenres(c *gin.Context) {
	c.JSON(http.StatusOK, s.movies.Genres())
}

func (s *Server) handleMovie(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}

	detail, err := s.movies.Movie(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type rateRequest struct {
	Rating *int `json:"rating" binding:"required"`
}

func (s *Server) handleRate(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}

	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "body must be {\"rating\": 1-5}")
		return
	}

	if err := s.movies.Rate(c.Request.Context(), sessionFrom(c), id, *req.Rating); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleRecommendations(c *gin.Context) {
	recs, err := s.movies.Recommendations(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) handleRatings(c *gin.Context) {
	ratings, err := s.movies.UserRatings(c.Request.Context(), sessionFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ratings)
}

// handleUpload accepts a CSV dataset in the multipart field "file". Files
// whose leading bytes identify a binary format are refused.
func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	if header.Size > s.cfg.MaxUploadBytes {
		abortWithMessage(c, http.StatusRequestEntityTooLarge, "dataset is too large")
		return
	}

	file, err := header.Open()
	if err != nil {
		writeError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes))
	if err != nil {
		writeError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	head := content[:min(len(content), 261)]
	if kind, _ := filetype.Match(head); kind != filetype.Unknown {
		writeError(c, fmt.Errorf("%w: detected %s", errUnsupportedUpload, kind.MIME.Value))
		return
	}

	upload, err := s.movies.UploadDataset(c.Request.Context(), sessionFrom(c), header.Filename, content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Dataset %s uploaded with %d movies", upload.Filename, upload.Movies),
		"movies":  upload.Movies,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token,omitempty"`
	User    *model.User `json:"user,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid registration request")
		return
	}

	result, err := s.auth.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{Success: true, Token: result.Token, User: &result.User, Message: "Registration successful"})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid login request")
		return
	}
	identifier := strings.TrimSpace(req.Email)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Username)
	}
	if identifier == "" {
		abortWithMessage(c, http.StatusBadRequest, "email or username is required")
		return
	}

	result, err := s.auth.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Success: true, Token: result.Token, User: &result.User, Message: "Login successful"})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.auth.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Success: true, Message: "Logged out successfully"})
}

func (s *Server) handleMe(c *gin.Context) {
	session := sessionFrom(c)
	if !session.HasIdentity() {
		abortWithMessage(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": session.User})
}

func movieID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "movie id must be a number")
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return n, nil
}
