package handlers

import (
	"errors"
	"net/http"
	"strconv"

	dom "TodoAPI/internal/domain"
	"TodoAPI/internal/logging"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error to its status code. notFound is the
// message used for dom.ErrNotFound. Unexpected errors are logged and hidden.
func respondError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, dom.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, dom.ErrDuplicateEmail), errors.Is(err, dom.ErrDuplicateUsername),
		errors.Is(err, dom.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dom.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		logging.FromContext(c.Request.Context()).Error("request failed",
			"method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
