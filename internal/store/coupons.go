package store

import (
	"context"
	"database/sql"
	"strings"

	"marketplace-payments/internal/models"
)

// GetCouponByCode retrieves a coupon by its case-insensitive code. The
// comparison runs through the UPPER(code) unique index, so codes are
// reachable no matter which casing they were stored with.
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon,
		"SELECT * FROM coupons WHERE UPPER(code) = $1", strings.ToUpper(code))
	if err == sql.ErrNoRows {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}
