package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Domain errors returned by services. Wrap them with fmt.Errorf("...: %w", Err...)
// to add context; HandleError maps them to HTTP statuses.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("already exists")
	ErrSlotUnavailable   = errors.New("slot no longer available")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvoiceState      = errors.New("invoice is not in a valid state for this action")
)

// StatusFor returns the HTTP status code for an error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInvoiceState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes the error response for err. Unexpected errors are logged
// through the request logger and hidden behind a generic message.
func HandleError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		InternalServerError(c, "Internal server error")
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(c, "Resource not found")
		return
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		Error(c, status, ErrConflict.Error())
		return
	}
	Error(c, status, err.Error())
}
