package model

import "time"

// ProductKind tags the polymorphic order-line target. The original design
// used a generic content-type/object-id pair; here it is an explicit enum
// carrying a typed reference.
type ProductKind string

const (
	ProductKindRetreat    ProductKind = "retreat"
	ProductKindTimeSlot   ProductKind = "time_slot"
	ProductKindMembership ProductKind = "membership"
	ProductKindPackage    ProductKind = "package"
)

func (k ProductKind) IsValid() bool {
	switch k {
	case ProductKindRetreat, ProductKindTimeSlot, ProductKindMembership, ProductKindPackage:
		return true
	}
	return false
}

// IsEventBacked reports whether order lines of this kind reserve seats on an
// event and therefore go through the availability and overlap checks.
func (k ProductKind) IsEventBacked() bool {
	return k == ProductKindRetreat || k == ProductKindTimeSlot
}

// EventKindFor maps an event-backed product kind to its event kind.
func (k ProductKind) EventKindFor() EventKind {
	if k == ProductKindTimeSlot {
		return EventKindTimeSlot
	}
	return EventKindRetreat
}

// Membership is a purchasable membership granting access for a fixed
// duration from the purchase date.
type Membership struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Details      *string    `json:"details,omitempty" db:"details"`
	Available    bool       `json:"available" db:"available"`
	Price        float64    `json:"price" db:"price"`
	DurationDays int        `json:"duration_days" db:"duration_days"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Package is a purchasable bundle of reservation tickets credited to the
// buyer on a successful order.
type Package struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Details      *string    `json:"details,omitempty" db:"details"`
	Available    bool       `json:"available" db:"available"`
	Price        float64    `json:"price" db:"price"`
	Reservations int        `json:"reservations" db:"reservations"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
