package httpapi

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/a3tai/mcp-pdf-templates/internal/errors"
	"github.com/a3tai/mcp-pdf-templates/internal/generate"
)

// errorResponse is the JSON body of every error
type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// statusFor maps a failure to its HTTP status
func statusFor(err error) int {
	if stderrors.Is(err, generate.ErrSubmissionInProgress) {
		return http.StatusConflict
	}
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	typ := apperrors.TypeOf(err)
	if stderrors.Is(err, generate.ErrSubmissionInProgress) {
		typ = apperrors.ErrorTypeConflict
	}
	c.AbortWithStatusJSON(statusFor(err), errorResponse{Error: err.Error(), Type: typ.String()})
}

func badRequest(c *gin.Context, format string, args ...any) {
	writeError(c, apperrors.Validation("http", format, args...))
}
