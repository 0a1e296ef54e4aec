package model

import "time"

// WaitQueueEntry is one user's subscription to a sold-out event. The queue
// is FIFO by CreatedAt.
type WaitQueueEntry struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	EventID   int64     `json:"event_id" db:"event_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WaitQueueNotification records that a user was told a seat freed up. While
// it lives (it is purged after the configured retention window), it
// authorizes the user to consume one of the event's reserved seats.
type WaitQueueNotification struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	EventID   int64     `json:"event_id" db:"event_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NotifyResult reports the outcome of one wait-queue promotion sweep.
type NotifyResult struct {
	// Notified is how many users received a notification in this sweep.
	Notified int `json:"notified"`
	// Stop signals the caller (typically the cron sweep) that there is
	// nothing left to do for this event.
	Stop bool `json:"stop"`
	// Detail is a human-readable explanation when nothing happened.
	Detail string `json:"detail,omitempty"`
}
