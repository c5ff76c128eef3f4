package service

import (
	"context"
	"errors"
	"time"

	"marketplace-payments/internal/models"
	"marketplace-payments/internal/store"
	"marketplace-payments/internal/util"

	"go.uber.org/zap"
)

// CouponService validates coupon codes against a product and user.
// Validation fails closed: any verdict other than a fully passing
// coupon comes back as Valid=false with a reason.
type CouponService struct {
	store  Datastore
	logger *zap.Logger
}

func NewCouponService(st Datastore) *CouponService {
	return &CouponService{
		store:  st,
		logger: util.GetLogger().With(zap.String("component", "coupon_service")),
	}
}

// CouponTerms is the redeemable subset of a coupon returned to callers.
type CouponTerms struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Type        string  `json:"type"`
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

// CouponVerdict is the outcome of a validation. Validation outcomes are
// not errors: an invalid coupon is a 200 with Valid=false.
type CouponVerdict struct {
	Valid  bool         `json:"valid"`
	Coupon *CouponTerms `json:"coupon,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func invalidCoupon(reason string) *CouponVerdict {
	return &CouponVerdict{Valid: false, Error: reason}
}

// Validate checks a coupon code for a given product and user. Checks
// run in a fixed order and the first failure wins. Scope checks only
// reject when the coupon carries a conflicting restriction; a coupon
// with no product or user binding applies everywhere.
func (s *CouponService) Validate(ctx context.Context, code, productID, userID string) (*CouponVerdict, error) {
	ctx, span := util.StartSpan(ctx, "coupon.Validate")
	defer span.End()

	coupon, err := s.store.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrCouponNotFound) {
			return invalidCoupon("Invalid coupon code"), nil
		}
		s.logger.Error("coupon lookup failed", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	if !coupon.IsActive {
		return invalidCoupon("This coupon is no longer active"), nil
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(time.Now()) {
		return invalidCoupon("This coupon has expired"), nil
	}
	if coupon.ProductID != nil && productID != "" && *coupon.ProductID != productID {
		return invalidCoupon("This coupon is not valid for this product"), nil
	}
	if coupon.UserID != nil && userID != "" && *coupon.UserID != userID {
		return invalidCoupon("This coupon is not valid for your account"), nil
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return invalidCoupon("This coupon has reached its usage limit"), nil
	}

	return &CouponVerdict{Valid: true, Coupon: couponTerms(coupon)}, nil
}

func couponTerms(c *models.Coupon) *CouponTerms {
	return &CouponTerms{
		ID:          c.ID,
		Code:        c.Code,
		Type:        c.Type,
		Value:       c.Value.InexactFloat64(),
		Description: c.Description,
	}
}
