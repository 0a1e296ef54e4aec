package model

import "time"

// EventKind discriminates the two bookable event types. They share seat
// accounting, the wait queue and the refund/exchange policy.
type EventKind string

const (
	EventKindRetreat  EventKind = "retreat"
	EventKindTimeSlot EventKind = "time_slot"
)

func (k EventKind) IsValid() bool {
	return k == EventKindRetreat || k == EventKindTimeSlot
}

// Event is a retreat or a time-slot with finite seats and a time window.
// ReservedSeats is capacity carved out of Seats, releasable only to users
// holding a live wait-queue notification. NextUserNotified is the wait-queue
// notification cursor: the index of the next queue position to notify.
type Event struct {
	ID               int64      `json:"id" db:"id"`
	Kind             EventKind  `json:"kind" db:"kind"`
	Name             string     `json:"name" db:"name"`
	Details          *string    `json:"details,omitempty" db:"details"`
	Price            float64    `json:"price" db:"price"`
	Seats            int        `json:"seats" db:"seats"`
	ReservedSeats    int        `json:"reserved_seats" db:"reserved_seats"`
	NextUserNotified int        `json:"next_user_notified" db:"next_user_notified"`
	StartTime        time.Time  `json:"start_time" db:"start_time"`
	EndTime          time.Time  `json:"end_time" db:"end_time"`
	MinDayRefund     int        `json:"min_day_refund" db:"min_day_refund"`
	MinDayExchange   int        `json:"min_day_exchange" db:"min_day_exchange"`
	RefundRate       int        `json:"refund_rate" db:"refund_rate"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (e *Event) IsDeleted() bool {
	return e.DeletedAt != nil
}

// PlacesRemaining returns the directly bookable seats given the number of
// active reservations. Reserved seats are excluded: those are only
// consumable through a wait-queue notification.
func (e *Event) PlacesRemaining(activeReservations int) int {
	return e.Seats - activeReservations - e.ReservedSeats
}

// Overlaps reports whether the event's [start, end) window intersects the
// given half-open interval.
func (e *Event) Overlaps(start, end time.Time) bool {
	return IntervalsOverlap(e.StartTime, e.EndTime, start, end)
}

// IntervalsOverlap is the half-open interval test: overlap iff
// max(start1, start2) < min(end1, end2).
func IntervalsOverlap(start1, end1, start2, end2 time.Time) bool {
	latestStart := start1
	if start2.After(start1) {
		latestStart = start2
	}
	earliestEnd := end1
	if end2.Before(end1) {
		earliestEnd = end2
	}
	return latestStart.Before(earliestEnd)
}

type CreateEventRequest struct {
	Kind           EventKind `json:"kind" binding:"required"`
	Name           string    `json:"name" binding:"required"`
	Details        *string   `json:"details"`
	Price          float64   `json:"price" binding:"min=0"`
	Seats          int       `json:"seats" binding:"required,min=1"`
	ReservedSeats  int       `json:"reserved_seats" binding:"min=0"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	EndTime        time.Time `json:"end_time" binding:"required"`
	MinDayRefund   int       `json:"min_day_refund" binding:"min=0"`
	MinDayExchange int       `json:"min_day_exchange" binding:"min=0"`
	RefundRate     int       `json:"refund_rate" binding:"min=0,max=100"`
}

// UpdateEventRequest carries a partial update; nil fields are left
// untouched.
type UpdateEventRequest struct {
	Name           *string    `json:"name"`
	Details        *string    `json:"details"`
	Price          *float64   `json:"price" binding:"omitempty,min=0"`
	Seats          *int       `json:"seats" binding:"omitempty,min=1"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	MinDayRefund   *int       `json:"min_day_refund" binding:"omitempty,min=0"`
	MinDayExchange *int       `json:"min_day_exchange" binding:"omitempty,min=0"`
	RefundRate     *int       `json:"refund_rate" binding:"omitempty,min=0,max=100"`
	IsActive       *bool      `json:"is_active"`
}

func (r UpdateEventRequest) Params() UpdateEventParams {
	return UpdateEventParams{
		Name:           r.Name,
		Details:        r.Details,
		Price:          r.Price,
		Seats:          r.Seats,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		MinDayRefund:   r.MinDayRefund,
		MinDayExchange: r.MinDayExchange,
		RefundRate:     r.RefundRate,
		IsActive:       r.IsActive,
	}
}

type UpdateEventParams struct {
	Name           *string
	Details        *string
	Price          *float64
	Seats          *int
	StartTime      *time.Time
	EndTime        *time.Time
	MinDayRefund   *int
	MinDayExchange *int
	RefundRate     *int
	IsActive       *bool
}

// EventResponse is the public listing shape; PlacesRemaining is computed
// from the active reservation count at read time.
type EventResponse struct {
	ID              int64     `json:"id"`
	Kind            EventKind `json:"kind"`
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	Seats           int       `json:"seats"`
	ReservedSeats   int       `json:"reserved_seats"`
	PlacesRemaining int       `json:"places_remaining"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	IsActive        bool      `json:"is_active"`
}
