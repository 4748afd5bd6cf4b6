package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	middleware "github.com/octobees/turmeric-buyers/internal/middleware"
	"github.com/octobees/turmeric-buyers/internal/service"
)

// APIResponse is the envelope every endpoint answers with. RequestID echoes
// the X-Request-ID so clients can quote it when reporting a failed run.
type APIResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Success sends a successful response using the shared envelope format.
func Success(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, APIResponse{
		Status:    "success",
		Message:   message,
		Data:      data,
		RequestID: middleware.RequestIDFromContext(c),
	})
}

// Error sends an error response using the shared envelope format.
func Error(c echo.Context, status int, message string) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, APIResponse{
		Status:    "error",
		Message:   message,
		RequestID: middleware.RequestIDFromContext(c),
	})
}

// ServiceError maps the buyers service sentinels onto HTTP statuses. Other
// errors are logged and answered with a 500 carrying fallback.
func ServiceError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrInvalidThreshold):
		return Error(c, http.StatusBadRequest, "threshold must be lenient, moderate, strict or 0-100")
	case errors.Is(err, service.ErrBatchTooLarge):
		return Error(c, http.StatusRequestEntityTooLarge, service.ErrBatchTooLarge.Error())
	case errors.Is(err, service.ErrNoStore):
		return Error(c, http.StatusServiceUnavailable, "no buyer store configured")
	case errors.Is(err, service.ErrNoCollector):
		return Error(c, http.StatusServiceUnavailable, "no collectors configured")
	}
	zap.L().Error(fallback,
		zap.String("path", c.Path()),
		zap.String("request_id", middleware.RequestIDFromContext(c)),
		zap.Error(err),
	)
	return Error(c, http.StatusInternalServerError, fallback)
}
