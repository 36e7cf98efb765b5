package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loykin/librebrowser/internal/archive"
	"github.com/loykin/librebrowser/internal/engine"
	"github.com/loykin/librebrowser/internal/fetch"
	"github.com/loykin/librebrowser/internal/profile"
)

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	bp = strings.TrimRight(bp, "/")
	return bp
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var se *fetch.StatusError
	switch {
	case errors.Is(err, engine.ErrInvalidVersion),
		errors.Is(err, profile.ErrInvalidLabel),
		errors.Is(err, profile.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrArchiveNotFound):
		return http.StatusNotFound
	case errors.Is(err, archive.ErrUnsupported), errors.Is(err, archive.ErrUnsafePath):
		return http.StatusUnprocessableEntity
	case errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}
