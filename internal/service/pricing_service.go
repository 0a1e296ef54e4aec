package service

import (
	"context"
	"time"

	"retreat-booking-backend/config"
	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/repository"
	"retreat-booking-backend/pkg/apperrors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LinePricing is one cart line carried through pricing: the resolved unit
// price goes in, Cost and the coupon fields come out.
type LinePricing struct {
	Line      model.CartLine
	UnitPrice float64

	Cost            float64
	CouponID        *int64
	CouponRealValue float64
}

// CouponPreview is the pre-checkout validation result: the line the coupon
// discounts the most and the discount it would realize there.
type CouponPreview struct {
	Line     model.CartLine `json:"order_line"`
	Discount float64        `json:"discount"`
}

type PricingService interface {
	// ResolveCoupon loads the coupon and enforces every eligibility rule
	// for the user at the current time. Applicability to the cart is
	// checked later, during PriceCart.
	ResolveCoupon(ctx context.Context, code string, user *model.User) (*model.Coupon, error)
	// PriceCart fills Cost, CouponID and CouponRealValue on every line.
	// The coupon is applied to the single applicable line where it
	// discounts the most.
	PriceCart(lines []*LinePricing, coupon *model.Coupon) error
	// TotalCents sums the line costs, applies the selling tax and returns
	// the amount to charge in cents, rounded half up.
	TotalCents(lines []*LinePricing) int64
	// ApplyTax converts a pre-tax amount to a taxed one, rounded to two
	// decimals.
	ApplyTax(amount float64) float64
	// PreviewCoupon validates the coupon against a cart without creating
	// an order.
	PreviewCoupon(ctx context.Context, user *model.User, code string, lines []*LinePricing) (*CouponPreview, error)
}

type PricingServiceImpl struct {
	pool       *pgxpool.Pool
	couponRepo repository.CouponRepository
	cfg        config.BookingConfig
	now        func() time.Time
}

func NewPricingService(pool *pgxpool.Pool, couponRepo repository.CouponRepository, cfg config.BookingConfig) PricingService {
	return &PricingServiceImpl{
		pool:       pool,
		couponRepo: couponRepo,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *PricingServiceImpl) ResolveCoupon(ctx context.Context, code string, user *model.User) (*model.Coupon, error) {
	coupon, err := s.couponRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !coupon.ActiveAt(s.now()) {
		return nil, apperrors.ErrCouponNotActive
	}

	if missing := user.MissingCouponFields(); len(missing) > 0 {
		return nil, &apperrors.IncompleteProfileError{
			MissingFields: missing,
			Reason:        "coupon use",
		}
	}

	if coupon.MaxUse > 0 {
		uses, err := s.couponRepo.GlobalUses(ctx, s.pool, coupon.ID)
		if err != nil {
			return nil, err
		}
		if uses >= coupon.MaxUse {
			return nil, apperrors.ErrCouponUsageExceeded
		}
	}
	if coupon.MaxUsePerUser > 0 {
		uses, err := s.couponRepo.UserUses(ctx, s.pool, coupon.ID, user.ID)
		if err != nil {
			return nil, err
		}
		if uses >= coupon.MaxUsePerUser {
			return nil, apperrors.ErrCouponUsageExceeded
		}
	}

	return coupon, nil
}

func (s *PricingServiceImpl) PriceCart(lines []*LinePricing, coupon *model.Coupon) error {
	for _, line := range lines {
		line.Cost = lineTotal(line).InexactFloat64()
		line.CouponID = nil
		line.CouponRealValue = 0
	}

	if coupon == nil {
		return nil
	}

	best := -1
	bestDiscount := decimal.Zero
	for i, line := range lines {
		if !coupon.AppliesTo(line.Line.ProductKind) {
			continue
		}
		d := discountFor(coupon, lineTotal(line))
		if best == -1 || d.GreaterThan(bestDiscount) {
			best = i
			bestDiscount = d
		}
	}
	if best == -1 {
		return apperrors.ErrCouponNotApplicable
	}

	line := lines[best]
	total := lineTotal(line)
	cost := total.Sub(bestDiscount)
	line.Cost = cost.Round(2).InexactFloat64()
	line.CouponID = &coupon.ID
	line.CouponRealValue = bestDiscount.Round(2).InexactFloat64()
	return nil
}

func (s *PricingServiceImpl) TotalCents(lines []*LinePricing) int64 {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(decimal.NewFromFloat(line.Cost))
	}
	taxed := total.Mul(decimal.NewFromFloat(1).Add(decimal.NewFromFloat(s.cfg.TaxRate)))
	return taxed.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

func (s *PricingServiceImpl) ApplyTax(amount float64) float64 {
	taxed := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(1 + s.cfg.TaxRate))
	return taxed.Round(2).InexactFloat64()
}

func (s *PricingServiceImpl) PreviewCoupon(ctx context.Context, user *model.User, code string, lines []*LinePricing) (*CouponPreview, error) {
	coupon, err := s.ResolveCoupon(ctx, code, user)
	if err != nil {
		return nil, err
	}
	if err := s.PriceCart(lines, coupon); err != nil {
		return nil, err
	}
	for _, line := range lines {
		if line.CouponID != nil {
			return &CouponPreview{Line: line.Line, Discount: line.CouponRealValue}, nil
		}
	}
	return nil, apperrors.ErrCouponNotApplicable
}

func lineTotal(line *LinePricing) decimal.Decimal {
	return decimal.NewFromFloat(line.UnitPrice).Mul(decimal.NewFromInt(int64(line.Line.Quantity)))
}

// discountFor returns the discount the coupon realizes on a line total. A
// fixed value applies once per line regardless of quantity, capped at the
// line total so the cost never goes negative.
func discountFor(coupon *model.Coupon, total decimal.Decimal) decimal.Decimal {
	if coupon.PercentOff > 0 {
		return total.Mul(decimal.NewFromInt(int64(coupon.PercentOff))).Div(decimal.NewFromInt(100)).Round(2)
	}
	value := decimal.NewFromFloat(coupon.Value)
	if value.GreaterThan(total) {
		return total
	}
	return value
}
