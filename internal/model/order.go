package model

import "time"

// Order is one payment transaction against the external card processor.
// The gateway identifiers are nil for zero-amount orders (fully covered by
// a discount), which never reach the gateway.
type Order struct {
	ID              int64      `json:"id" db:"id"`
	UserID          int64      `json:"user_id" db:"user_id"`
	TransactionDate time.Time  `json:"transaction_date" db:"transaction_date"`
	AuthorizationID *string    `json:"authorization_id,omitempty" db:"authorization_id"`
	SettlementID    *string    `json:"settlement_id,omitempty" db:"settlement_id"`
	ReferenceNumber *string    `json:"reference_number,omitempty" db:"reference_number"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`

	Lines []*OrderLine `json:"order_lines" db:"-"`
}

// OrderLine is one priced, quantity-bearing entry in an order, referencing
// exactly one purchasable item through the ProductKind tag.
type OrderLine struct {
	ID              int64       `json:"id" db:"id"`
	OrderID         int64       `json:"order_id" db:"order_id"`
	ProductKind     ProductKind `json:"content_type" db:"product_kind"`
	ProductID       int64       `json:"object_id" db:"product_id"`
	Quantity        int         `json:"quantity" db:"quantity"`
	Cost            float64     `json:"cost" db:"cost"`
	CouponID        *int64      `json:"-" db:"coupon_id"`
	CouponCode      *string     `json:"coupon,omitempty" db:"-"`
	CouponRealValue float64     `json:"coupon_real_value" db:"coupon_real_value"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// Refund records one gateway refund (or exchange bookkeeping entry) against
// an order line.
type Refund struct {
	ID          int64     `json:"id" db:"id"`
	OrderLineID int64     `json:"order_line_id" db:"order_line_id"`
	Amount      float64   `json:"amount" db:"amount"`
	Details     string    `json:"details" db:"details"`
	RefundDate  time.Time `json:"refund_date" db:"refund_date"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CartLine is one requested line in an order-creation payload, before
// resolution and pricing.
type CartLine struct {
	ProductKind ProductKind `json:"content_type" binding:"required"`
	ProductID   int64       `json:"object_id" binding:"required"`
	Quantity    int         `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest is the order-creation payload. Exactly one of
// PaymentToken and SingleUseToken is expected when the total is non-zero.
type CreateOrderRequest struct {
	UserID         int64      `json:"-"`
	PaymentToken   string     `json:"payment_token"`
	SingleUseToken string     `json:"single_use_token"`
	Coupon         string     `json:"coupon"`
	Lines          []CartLine `json:"order_lines" binding:"required,min=1,dive"`
}

type OrderResponse struct {
	ID              int64                `json:"id"`
	UserID          int64                `json:"user_id"`
	TransactionDate string               `json:"transaction_date"`
	AuthorizationID *string              `json:"authorization_id"`
	SettlementID    *string              `json:"settlement_id"`
	ReferenceNumber *string              `json:"reference_number"`
	Lines           []*OrderLineResponse `json:"order_lines"`
}

type OrderLineResponse struct {
	ProductKind     ProductKind `json:"content_type"`
	ProductID       int64       `json:"object_id"`
	Quantity        int         `json:"quantity"`
	Cost            float64     `json:"cost"`
	Coupon          *string     `json:"coupon"`
	CouponRealValue float64     `json:"coupon_real_value"`
}
