package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/middleware"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/service"
)

// statusFor maps a service error kind to an HTTP status. Zero means the error is
// not part of the taxonomy.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	}
	return 0
}

// respondError writes the caller-facing message for known errors and a generic
// one, logged, for everything else.
func respondError(c *gin.Context, err error, action string) {
	if status := statusFor(err); status != 0 {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	slog.ErrorContext(c.Request.Context(), "failed to "+action, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + action})
}

func currentUser(c *gin.Context) (*model.User, bool) {
	user := middleware.GetUser(c.Request.Context())
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, false
	}
	return user, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
