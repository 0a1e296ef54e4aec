package gateway

import (
	"context"
	"errors"

	"retreat-booking-backend/config"
	"retreat-booking-backend/pkg/apperrors"
	"retreat-booking-backend/pkg/logger"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/customer"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/paymentmethod"
	"github.com/stripe/stripe-go/v83/refund"
	"go.uber.org/zap"
)

// StripeGateway implements PaymentGateway against the Stripe API. The
// payment token handled by the rest of the system is a Stripe payment
// method id; the single-use token is the client-side tokenized card.
type StripeGateway struct {
	currency string
	logger   *zap.Logger
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	stripe.Key = cfg.SecretKey
	return &StripeGateway{
		currency: cfg.Currency,
		logger:   logger.WithComponent("stripe_gateway"),
	}
}

func (g *StripeGateway) CreateProfile(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		return "", g.wrap(err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) AddCard(ctx context.Context, profileID, singleUseToken string) (string, error) {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(profileID),
	}
	params.Context = ctx

	pm, err := paymentmethod.Attach(singleUseToken, params)
	if err != nil {
		return "", g.wrap(err)
	}
	return pm.ID, nil
}

func (g *StripeGateway) Charge(ctx context.Context, amountCents int64, paymentToken, referenceNumber string) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(g.currency),
		PaymentMethod: stripe.String(paymentToken),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		Metadata: map[string]string{
			"reference_number": referenceNumber,
		},
	}
	params.Context = ctx
	params.AddExpand("latest_charge")

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, g.wrap(err)
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, &apperrors.PaymentError{
			Code:    string(intent.Status),
			Message: "payment was not completed",
		}
	}

	result := &ChargeResult{
		AuthorizationID: intent.ID,
		ReferenceNumber: referenceNumber,
	}
	if intent.LatestCharge != nil {
		result.SettlementID = intent.LatestCharge.ID
		if details := intent.LatestCharge.PaymentMethodDetails; details != nil && details.Card != nil {
			result.CardLastDigits = details.Card.Last4
			result.CardBrand = string(details.Card.Brand)
		}
	}

	g.logger.Info("charge succeeded",
		zap.String("payment_intent_id", intent.ID),
		zap.String("reference_number", referenceNumber),
		zap.Int64("amount_cents", amountCents))

	return result, nil
}

func (g *StripeGateway) Refund(ctx context.Context, settlementID string, amountCents int64) (*RefundResult, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(settlementID),
		Amount: stripe.Int64(amountCents),
		Reason: stripe.String("requested_by_customer"),
	}
	params.Context = ctx

	ref, err := refund.New(params)
	if err != nil {
		return nil, g.wrap(err)
	}

	g.logger.Info("refund succeeded",
		zap.String("refund_id", ref.ID),
		zap.String("settlement_id", settlementID),
		zap.Int64("amount_cents", amountCents))

	return &RefundResult{RefundID: ref.ID}, nil
}

func (g *StripeGateway) wrap(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &apperrors.PaymentError{
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
			Err:     err,
		}
	}
	return &apperrors.PaymentError{
		Code:    "unknown",
		Message: err.Error(),
		Err:     err,
	}
}
