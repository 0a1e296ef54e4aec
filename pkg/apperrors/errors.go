package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrEventNotFound          = errors.New("event not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrWaitQueueNotFound      = errors.New("wait queue entry not found")
	ErrProductNotFound        = errors.New("product not found")
	ErrCouponNotFound         = errors.New("coupon not found")
	ErrCouponNotActive        = errors.New("coupon is not active")
	ErrCouponUsageExceeded    = errors.New("maximum number of uses exceeded for this coupon")
	ErrCouponNotApplicable    = errors.New("coupon does not apply to any product in this order")
	ErrNoSeatsAvailable       = errors.New("no seats available")
	ErrOverlappingReservation = errors.New("reservation overlaps with another active reservation for this user")
	ErrIncompleteProfile      = errors.New("incomplete user profile")
	ErrQuantityNotOne         = errors.New("the order line for this reservation has a quantity bigger than 1, contact support")
	ErrExchangeSameEvent      = errors.New("that event is already assigned to this reservation")
	ErrExchangeTooLate        = errors.New("maximum exchange date exceeded")
	ErrPaymentTokenRequired   = errors.New("the new event is more expensive, a payment token is required")
	ErrAlreadyInWaitQueue     = errors.New("user is already in the wait queue for this event")
	ErrNotificationThrottled  = errors.New("last notification was sent less than 24h ago")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInternalServerError    = errors.New("internal server error")
)

// IncompleteProfileError carries the exact missing fields so the handler can
// name every one of them in a single message.
type IncompleteProfileError struct {
	MissingFields []string
	Reason        string // what the fields are required for, e.g. "to use a coupon"
}

func (e *IncompleteProfileError) Error() string {
	return fmt.Sprintf("incomplete user profile: %v must be filled %s", e.MissingFields, e.Reason)
}

func (e *IncompleteProfileError) Unwrap() error { return ErrIncompleteProfile }

// PaymentError wraps a failure reported by the external card processor. The
// gateway's own message is surfaced verbatim to the caller; the core never
// retries.
type PaymentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment gateway error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("payment gateway error: %s", e.Message)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// ReconciliationError reports the accepted gap in the payment design: the
// gateway charge succeeded but local persistence failed afterwards. It is
// never compensated automatically and must be handled as a manual
// reconciliation incident.
type ReconciliationError struct {
	ReferenceNumber string
	AuthorizationID string
	SettlementID    string
	AmountCents     int64
	Err             error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("charge %s settled at the gateway but the order could not be persisted: %v",
		e.ReferenceNumber, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
