package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ConfigurationError means mandatory organizational context is missing.
// Fatal to the operation; never retried and no network call is made.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required context: %s", strings.Join(e.Missing, ", "))
}

// ValidationError means the user input cannot be submitted as-is. Surfaced
// immediately; no network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ReservationFailed means a reserve or update call exhausted its retry
// budget. Callers decide whether to keep an unbacked line or abort.
type ReservationFailed struct {
	ProductID string
	Cause     error
}

func (e *ReservationFailed) Error() string {
	return fmt.Sprintf("reservation failed for product %s: %v", e.ProductID, e.Cause)
}

func (e *ReservationFailed) Unwrap() error { return e.Cause }

// InsufficientStock means the pre-submit stock check found less available
// quantity than the cart requests. Submission is blocked.
type InsufficientStock struct {
	ProductID string
	BatchID   string
	Requested int
	Available int
}

func (e *InsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// SubmissionError means the checkout call itself failed. The cart and its
// reservations are left untouched so the clerk can retry.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("order submission failed: %v", e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// Respond writes the error to the response with the status its category
// maps to. Unrecognized errors become a generic 500.
func Respond(c *gin.Context, err error) {
	var (
		confErr  *ConfigurationError
		valErr   *ValidationError
		resErr   *ReservationFailed
		stockErr *InsufficientStock
		subErr   *SubmissionError
	)
	switch {
	case errors.As(err, &confErr):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": confErr.Error(), "missing": confErr.Missing})
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &resErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": resErr.Error(), "product_id": resErr.ProductID})
	case errors.As(err, &subErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": subErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
