package model

import "time"

// CancelationReason records who initiated a cancellation.
type CancelationReason string

const (
	CancelationReasonNone CancelationReason = ""
	CancelationReasonUser CancelationReason = "U"
)

// CancelationAction records what followed a cancellation: a gateway refund,
// no refund, or an exchange to another event.
type CancelationAction string

const (
	CancelationActionNone        CancelationAction = ""
	CancelationActionRefunded    CancelationAction = "R"
	CancelationActionNotRefunded CancelationAction = "N"
	CancelationActionExchanged   CancelationAction = "E"
)

// Reservation links a user to an event. Cancellations are soft: the row
// stays, IsActive flips to false and the cancelation fields record what
// happened. An exchange clones the row as the canceled record and repoints
// this row at the new event, so the reservation keeps a stable identity.
type Reservation struct {
	ID                int64             `json:"id" db:"id"`
	UserID            int64             `json:"user_id" db:"user_id"`
	EventID           int64             `json:"event_id" db:"event_id"`
	OrderLineID       *int64            `json:"order_line_id,omitempty" db:"order_line_id"`
	IsActive          bool              `json:"is_active" db:"is_active"`
	IsPresent         bool              `json:"is_present" db:"is_present"`
	CancelationReason CancelationReason `json:"cancelation_reason" db:"cancelation_reason"`
	CancelationAction CancelationAction `json:"cancelation_action" db:"cancelation_action"`
	CancelationDate   *time.Time        `json:"cancelation_date,omitempty" db:"cancelation_date"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`

	Event *Event `json:"event,omitempty" db:"-"`
}

// ReservationInterval is the projection used by the overlap check: the time
// window of one active reservation.
type ReservationInterval struct {
	ReservationID int64     `db:"id"`
	StartTime     time.Time `db:"start_time"`
	EndTime       time.Time `db:"end_time"`
}

// ExchangeRequest asks to move an existing reservation to a different
// event, charging or refunding the price delta.
type ExchangeRequest struct {
	UserID         int64  `json:"-"`
	NewEventID     int64  `json:"event_id" binding:"required"`
	PaymentToken   string `json:"payment_token"`
	SingleUseToken string `json:"single_use_token"`
}
