package handler

import (
	"errors"
	"net/http"
	"strings"

	"retreat-booking-backend/pkg/apperrors"
	"retreat-booking-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleError is the single error-to-HTTP translation point shared by all
// handlers.
func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))

	var profileErr *apperrors.IncompleteProfileError
	if errors.As(err, &profileErr) {
		log.Warn("Incomplete profile")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Profile incomplete for " + profileErr.Reason +
				", missing fields: " + strings.Join(profileErr.MissingFields, ", "),
			"missing_fields": profileErr.MissingFields,
		})
		return
	}

	var paymentErr *apperrors.PaymentError
	if errors.As(err, &paymentErr) {
		log.Warn("Payment rejected")
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error": "Payment failed: " + paymentErr.Message,
			"code":  paymentErr.Code,
		})
		return
	}

	var recErr *apperrors.ReconciliationError
	if errors.As(err, &recErr) {
		log.Error("Manual reconciliation required")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":            "Your card was charged but the order could not be completed. Support has been notified; do not retry.",
			"reference_number": recErr.ReferenceNumber,
		})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound),
		errors.Is(err, apperrors.ErrEventNotFound),
		errors.Is(err, apperrors.ErrOrderNotFound),
		errors.Is(err, apperrors.ErrReservationNotFound),
		errors.Is(err, apperrors.ErrProductNotFound),
		errors.Is(err, apperrors.ErrCouponNotFound),
		errors.Is(err, apperrors.ErrWaitQueueNotFound):
		log.Warn("Not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, apperrors.ErrNoSeatsAvailable):
		log.Warn("No seats available")
		c.JSON(http.StatusConflict, gin.H{"error": "No seats available"})
	case errors.Is(err, apperrors.ErrOverlappingReservation):
		log.Warn("Overlapping reservation")
		c.JSON(http.StatusConflict, gin.H{"error": "You already have a reservation overlapping this time window"})
	case errors.Is(err, apperrors.ErrAlreadyInWaitQueue):
		log.Warn("Already in wait queue")
		c.JSON(http.StatusConflict, gin.H{"error": "Already subscribed to this wait queue"})
	case errors.Is(err, apperrors.ErrCouponNotActive):
		log.Warn("Coupon not active")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coupon is not active"})
	case errors.Is(err, apperrors.ErrCouponUsageExceeded):
		log.Warn("Coupon usage exceeded")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coupon usage limit reached"})
	case errors.Is(err, apperrors.ErrCouponNotApplicable):
		log.Warn("Coupon not applicable")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coupon does not apply to any item in the cart"})
	case errors.Is(err, apperrors.ErrQuantityNotOne):
		log.Warn("Multi-quantity line")
		c.JSON(http.StatusBadRequest, gin.H{"error": "This reservation belongs to a multi-quantity purchase, contact support"})
	case errors.Is(err, apperrors.ErrExchangeSameEvent):
		log.Warn("Exchange to same event")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot exchange a reservation to the same event"})
	case errors.Is(err, apperrors.ErrExchangeTooLate):
		log.Warn("Exchange too late")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too late to exchange this reservation"})
	case errors.Is(err, apperrors.ErrPaymentTokenRequired):
		log.Warn("Payment token required")
		c.JSON(http.StatusBadRequest, gin.H{"error": "A payment token or single-use token is required"})
	case errors.Is(err, apperrors.ErrNotificationThrottled):
		log.Warn("Notify too soon")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too soon, wait queue was already notified in the last 24 hours"})
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
