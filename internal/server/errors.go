package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	bookingdomain "github.com/chillserv/fieldops/internal/booking/domain"
	notificationdomain "github.com/chillserv/fieldops/internal/notification/domain"
	profiledomain "github.com/chillserv/fieldops/internal/profile/domain"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware renders the last error a handler recorded,
// unless the handler already wrote a response itself.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return bookingdomain.ErrInvalidRequest
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, bookingdomain.ErrForbidden),
		errors.Is(err, bookingdomain.ErrMissingActor):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    err.Error(),
			Message: validationMessage(err.Error()),
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, bookingdomain.ErrAlreadyClaimed),
		errors.Is(err, bookingdomain.ErrNotReleasable),
		errors.Is(err, bookingdomain.ErrAlreadyReviewed),
		errors.Is(err, bookingdomain.ErrInvalidTransition),
		errors.Is(err, bookingdomain.ErrNotAmendable),
		errors.Is(err, bookingdomain.ErrSlotUnavailable):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, bookingdomain.ErrAlreadyClaimed):
		return "booking was already claimed by another technician"
	case errors.Is(err, bookingdomain.ErrSlotUnavailable):
		return "requested slot is no longer available"
	case errors.Is(err, bookingdomain.ErrAlreadyReviewed):
		return "booking already has a review"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, bookingdomain.ErrBookingNotFound),
		errors.Is(err, notificationdomain.ErrNotificationNotFound),
		errors.Is(err, profiledomain.ErrProfileNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, bookingdomain.ErrInvalidRequest),
		errors.Is(err, bookingdomain.ErrInvalidServiceKind),
		errors.Is(err, bookingdomain.ErrInvalidStatus),
		errors.Is(err, bookingdomain.ErrInvalidDate),
		errors.Is(err, bookingdomain.ErrInvalidTime),
		errors.Is(err, bookingdomain.ErrInvalidRating),
		errors.Is(err, bookingdomain.ErrInvalidEmail),
		errors.Is(err, bookingdomain.ErrEmptyPatch),
		errors.Is(err, profiledomain.ErrInvalidDeviceToken):
		return true
	default:
		return false
	}
}

func validationMessage(code string) string {
	if code == "invalid_request" {
		return "invalid request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return "invalid " + strings.ReplaceAll(strings.TrimPrefix(code, "invalid_"), "_", " ")
	}
	return "invalid value"
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= 500:
		return "internal", payload.Type
	case status == http.StatusConflict:
		return "conflict", err.Error()
	default:
		return "client", payload.Type
	}
}
