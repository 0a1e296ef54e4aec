package gateway

import "context"

// ChargeResult carries the processor identifiers persisted with the order.
type ChargeResult struct {
	AuthorizationID string
	SettlementID    string
	ReferenceNumber string
	CardLastDigits  string
	CardBrand       string
}

// RefundResult carries the processor identifier of a completed refund.
type RefundResult struct {
	RefundID string
}

// PaymentGateway is the card-processor adapter. Implementations translate
// processor failures into apperrors.PaymentError so callers never see
// processor-specific error types.
type PaymentGateway interface {
	// CreateProfile creates a vault profile for the user and returns its
	// external id.
	CreateProfile(ctx context.Context, email, name string) (string, error)

	// AddCard registers a single-use token under a vault profile and
	// returns the resulting reusable payment token.
	AddCard(ctx context.Context, profileID, singleUseToken string) (string, error)

	// Charge debits amountCents from the given payment token. The
	// reference number is attached to the processor transaction for
	// reconciliation.
	Charge(ctx context.Context, amountCents int64, paymentToken, referenceNumber string) (*ChargeResult, error)

	// Refund returns amountCents of a settled charge.
	Refund(ctx context.Context, settlementID string, amountCents int64) (*RefundResult, error)
}
