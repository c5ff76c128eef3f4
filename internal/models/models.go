package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a digital product listed by a seller. Sales counters are
// mutated only by successful-sale side effects.
type Product struct {
	ID           string          `db:"id" json:"id"`
	SellerID     string          `db:"seller_id" json:"seller_id"`
	Title        string          `db:"title" json:"title"`
	PriceCents   int64           `db:"price_cents" json:"price_cents"`
	ImageURL     string          `db:"image_url" json:"image_url,omitempty"`
	SalesCount   int64           `db:"sales_count" json:"sales_count"`
	TotalRevenue decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// ProductFile is a downloadable asset attached to a product.
type ProductFile struct {
	ID            string `db:"id" json:"id"`
	ProductID     string `db:"product_id" json:"product_id"`
	Name          string `db:"name" json:"name"`
	StoragePath   string `db:"storage_path" json:"storage_path"`
	DownloadCount int64  `db:"download_count" json:"download_count"`
}

// Profile is the per-user account record carrying the seller wallet.
type Profile struct {
	ID            string          `db:"id" json:"id"`
	Email         string          `db:"email" json:"email"`
	WalletBalance decimal.Decimal `db:"wallet_balance" json:"wallet_balance"`
	KYCStatus     string          `db:"kyc_status" json:"kyc_status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Order records one purchase. At most one order exists per payment
// intent reference; status transitions are monotonic except refund.
type Order struct {
	ID              string          `db:"id" json:"id"`
	ProductID       string          `db:"product_id" json:"product_id"`
	BuyerID         string          `db:"buyer_id" json:"buyer_id"`
	SellerID        string          `db:"seller_id" json:"seller_id"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency        string          `db:"currency" json:"currency"`
	Status          string          `db:"status" json:"status"`
	StripeSessionID string          `db:"stripe_session_id" json:"stripe_session_id,omitempty"`
	PaymentIntentID string          `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	CustomerEmail   string          `db:"customer_email" json:"customer_email,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem references the product sold under an order.
type OrderItem struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Transaction is an append-only ledger entry. Amounts are signed:
// positive for sale credits, negative for withdrawal debits. No two
// sale transactions share the same payment reference.
type Transaction struct {
	ID               string          `db:"id" json:"id"`
	UserID           string          `db:"user_id" json:"user_id"`
	Type             string          `db:"type" json:"type"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Status           string          `db:"status" json:"status"`
	PaymentReference string          `db:"payment_reference" json:"payment_reference,omitempty"`
	PaymentMethod    string          `db:"payment_method" json:"payment_method,omitempty"`
	Description      string          `db:"description" json:"description,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// DownloadToken grants bounded, expiring access to one purchased file.
// Keyed by (order_id, file_id): at most one live token per pair.
type DownloadToken struct {
	ID            string    `db:"id" json:"id"`
	OrderID       string    `db:"order_id" json:"order_id"`
	FileID        string    `db:"file_id" json:"file_id"`
	Token         string    `db:"token" json:"token"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	DownloadCount int       `db:"download_count" json:"download_count"`
	MaxDownloads  int       `db:"max_downloads" json:"max_downloads"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// WithdrawalRequest records a pending payout. The wallet is debited on
// approval, never at request time.
type WithdrawalRequest struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod  string          `db:"payment_method" json:"payment_method"`
	PaymentDetails *string         `db:"payment_details" json:"payment_details,omitempty"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Coupon is a discount code. The validator never mutates usage_count;
// redemption accounting belongs to the checkout flow.
type Coupon struct {
	ID          string          `db:"id" json:"id"`
	Code        string          `db:"code" json:"code"`
	Type        string          `db:"type" json:"type"`
	Value       decimal.Decimal `db:"value" json:"value"`
	Description string          `db:"description" json:"description,omitempty"`
	ProductID   *string         `db:"product_id" json:"product_id,omitempty"`
	UserID      *string         `db:"user_id" json:"user_id,omitempty"`
	UsageLimit  *int            `db:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount  int             `db:"usage_count" json:"usage_count"`
	ExpiresAt   *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
	OrderStatusRefunded  = "refunded"
)

// Transaction types
const (
	TransactionTypeSale       = "sale"
	TransactionTypeWithdrawal = "withdrawal"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
)

// Withdrawal request statuses
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusApproved   = "approved"
	WithdrawalStatusRejected   = "rejected"
	WithdrawalStatusCompleted  = "completed"
)

// Coupon discount types
const (
	CouponTypePercentage = "percentage"
	CouponTypeFixed      = "fixed"
)

// KYC status required for withdrawals
const KYCStatusVerified = "verified"

// ProcessedEvent for webhook idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
