package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	domainchat "gearyard/internal/domain/chat"
	domainlistings "gearyard/internal/domain/listings"
	domainpromo "gearyard/internal/domain/promo"
	"gearyard/internal/domain/shared/fault"
	domainuser "gearyard/internal/domain/user"
)

// respondError maps domain failure kinds onto HTTP statuses. Unknown errors
// are logged and hidden behind a generic 500.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var fe *fault.Error
	if errors.As(err, &fe) {
		c.JSON(statusFor(fe.Kind), gin.H{"error": fe.Message})
		return
	}
	if status, ok := statusForSentinel(err); ok {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if logger != nil {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func statusForSentinel(err error) (int, bool) {
	switch {
	case errors.Is(err, domainlistings.ErrNotFound),
		errors.Is(err, domainchat.ErrNotFound),
		errors.Is(err, domainpromo.ErrNotFound),
		errors.Is(err, domainuser.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domainlistings.ErrAlreadySold),
		errors.Is(err, domainlistings.ErrInvalidState):
		return http.StatusConflict, true
	case errors.Is(err, domainlistings.ErrTitleRequired),
		errors.Is(err, domainlistings.ErrInvalidPrice),
		errors.Is(err, domainlistings.ErrThresholdBounds),
		errors.Is(err, domainchat.ErrEmptyMessage),
		errors.Is(err, domainpromo.ErrCodeRequired),
		errors.Is(err, domainpromo.ErrInvalidValue),
		errors.Is(err, domainpromo.ErrPercentBounds),
		errors.Is(err, domainpromo.ErrDiscountScheme):
		return http.StatusBadRequest, true
	case errors.Is(err, domainpromo.ErrInactive),
		errors.Is(err, domainpromo.ErrExpired),
		errors.Is(err, domainpromo.ErrExhausted):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, domainchat.ErrNotParticipant):
		return http.StatusForbidden, true
	}
	return 0, false
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.NotFound:
		return http.StatusNotFound
	case fault.Forbidden:
		return http.StatusForbidden
	case fault.InvalidState:
		return http.StatusConflict
	case fault.ValidationFailed:
		return http.StatusBadRequest
	case fault.RateLimited:
		return http.StatusTooManyRequests
	case fault.UpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
