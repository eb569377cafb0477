package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/whisprapp/whispr/internal/model"
	"github.com/whisprapp/whispr/pkg/apperrors"
)

// bearerToken extracts the credential from an Authorization header value.
func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// respondError maps a service-layer error to a client-visible response.
// Only the AppError message crosses the boundary; causes stay internal.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument:
		status = http.StatusBadRequest
		var app *apperrors.AppError
		if errors.As(err, &app) {
			msg = app.Message
		}
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
		msg = "not found"
	case apperrors.CodePermissionDenied:
		status = http.StatusForbidden
		msg = "forbidden"
	case apperrors.CodeUnauthenticated:
		status = http.StatusUnauthorized
		msg = "unauthorized"
	case apperrors.CodeUnavailable:
		status = http.StatusServiceUnavailable
		msg = "service unavailable"
	}

	c.JSON(status, model.ErrorResponse{Error: msg})
}
