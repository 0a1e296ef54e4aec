package model

import "time"

// Coupon is either a fixed-amount discount (Value) or a percentage discount
// (PercentOff); the two are mutually exclusive. MaxUse and MaxUsePerUser of
// zero mean unlimited.
type Coupon struct {
	ID            int64      `json:"id" db:"id"`
	Code          string     `json:"code" db:"code"`
	Value         float64    `json:"value" db:"value"`
	PercentOff    int        `json:"percent_off" db:"percent_off"`
	StartTime     time.Time  `json:"start_time" db:"start_time"`
	EndTime       time.Time  `json:"end_time" db:"end_time"`
	MaxUse        int        `json:"max_use" db:"max_use"`
	MaxUsePerUser int        `json:"max_use_per_user" db:"max_use_per_user"`
	Details       *string    `json:"details,omitempty" db:"details"`
	OwnerID       *int64     `json:"owner_id,omitempty" db:"owner_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`

	// ApplicableProductKinds restricts which product kinds the coupon can
	// discount.
	ApplicableProductKinds []ProductKind `json:"applicable_product_types" db:"-"`
}

func (c *Coupon) ActiveAt(t time.Time) bool {
	return !t.Before(c.StartTime) && !t.After(c.EndTime)
}

func (c *Coupon) AppliesTo(kind ProductKind) bool {
	for _, k := range c.ApplicableProductKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// CouponUser is the per-user usage counter for a coupon.
type CouponUser struct {
	ID       int64 `json:"id" db:"id"`
	CouponID int64 `json:"coupon_id" db:"coupon_id"`
	UserID   int64 `json:"user_id" db:"user_id"`
	Uses     int   `json:"uses" db:"uses"`
}
