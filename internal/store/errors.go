package store

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrProfileNotFound      = errors.New("user profile not found")
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrTokenNotFound        = errors.New("invalid download token")
	ErrTokenExpired         = errors.New("download link has expired")
	ErrDownloadLimitReached = errors.New("download limit exceeded")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrWithdrawalPending    = errors.New("a withdrawal request is already in flight")
)
