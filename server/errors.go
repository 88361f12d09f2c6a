package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"movie-mate/auth"
	"movie-mate/logging"
	"movie-mate/remote"
	"movie-mate/resolver"
)

var errUnsupportedUpload = errors.New("uploaded file is not a text dataset")

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Success: false, Message: message})
}

// writeError maps service errors to HTTP statuses
func writeError(c *gin.Context, err error) {
	var statusErr *remote.StatusError

	switch {
	case errors.Is(err, resolver.ErrMovieNotFound):
		abortWithMessage(c, http.StatusNotFound, err.Error())
	case errors.Is(err, resolver.ErrInvalidRating),
		errors.Is(err, resolver.ErrInvalidDataset),
		errors.Is(err, auth.ErrInvalidRegistration):
		abortWithMessage(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		abortWithMessage(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrUserExists):
		abortWithMessage(c, http.StatusConflict, err.Error())
	case errors.Is(err, errUnsupportedUpload):
		abortWithMessage(c, http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &statusErr) && !statusErr.Temporary():
		message := statusErr.Message
		if message == "" {
			message = http.StatusText(statusErr.StatusCode)
		}
		abortWithMessage(c, statusErr.StatusCode, message)
	default:
		logging.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		abortWithMessage(c, http.StatusInternalServerError, "internal server error")
	}
}
