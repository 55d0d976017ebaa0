package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/yourusername/hfcache-go/internal/domain"
)

var statusByCode = map[platformerrors.ErrorCode]int{
	platformerrors.CodeInvalidInput: http.StatusBadRequest,
	platformerrors.CodeNotFound:     http.StatusNotFound,
	platformerrors.CodeConflict:     http.StatusConflict,
	platformerrors.CodeForbidden:    http.StatusForbidden,
	platformerrors.CodeRateLimit:    http.StatusTooManyRequests,
	platformerrors.CodeNetwork:      http.StatusBadGateway,
	platformerrors.CodeTimeout:      http.StatusGatewayTimeout,
	platformerrors.CodeUnavailable:  http.StatusServiceUnavailable,
}

// statusFor maps an error code to an HTTP status. Uncoded errors are 500.
func statusFor(err error) int {
	if status, ok := statusByCode[platformerrors.GetCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ..., "code": ...} plus any structured detail
// the error carries
func respondError(c *gin.Context, err error) {
	body := gin.H{
		"error": domain.ErrorMessage(err),
		"code":  string(platformerrors.GetCode(err)),
	}

	var clearErr *domain.ClearError
	if errors.As(err, &clearErr) {
		body["error"] = clearErr.Error()
		body["failed_folders"] = clearErr.FailedFolders
	}

	var pe platformerrors.PlatformError
	if platformerrors.As(err, &pe) {
		if candidates, ok := pe.Context()["candidates"]; ok {
			body["candidates"] = candidates
		}
	}

	c.JSON(statusFor(err), body)
}
