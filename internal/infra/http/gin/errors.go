package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/errs"
)

// statusFor maps error kinds onto HTTP statuses; unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, middleware.ErrValidation),
		errors.Is(err, errs.ErrInvalidDateRange),
		errors.Is(err, booking.ErrPaymentRequired):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrRoomUnavailable),
		errors.Is(err, errs.ErrInvalidTransition),
		errors.Is(err, booking.ErrConcurrentUpdate),
		errors.Is(err, policies.ErrLockNotAcquired):
		return http.StatusConflict
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrReferenceGenerationExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "error", err, "path", c.FullPath())
		}
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": err.Error()}
	if kind := errs.Kind(err); kind != nil {
		body["kind"] = kind.Error()
	}
	var verr *middleware.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	c.JSON(status, body)
}
