package models

import "time"

// Notification event types
const (
	EventTypeOrderConfirmation   = "ORDER_CONFIRMATION"
	EventTypeSaleNotification    = "SALE_NOTIFICATION"
	EventTypePaymentFailed       = "PAYMENT_FAILED"
	EventTypeOrderRefunded       = "ORDER_REFUNDED"
	EventTypeWithdrawalRequested = "WITHDRAWAL_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderConfirmationEvent notifies the buyer of a completed purchase.
// DownloadLinks may be empty when link issuance failed; the buyer can
// regenerate them later.
type OrderConfirmationEvent struct {
	BaseEvent
	OrderID       string   `json:"order_id"`
	BuyerEmail    string   `json:"buyer_email"`
	ProductName   string   `json:"product_name"`
	Amount        string   `json:"amount"`
	DownloadLinks []string `json:"download_links,omitempty"`
}

// SaleNotificationEvent notifies the seller of a new sale.
type SaleNotificationEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	SellerEmail string `json:"seller_email"`
	ProductName string `json:"product_name"`
	BuyerEmail  string `json:"buyer_email"`
	Amount      string `json:"amount"`
	Earnings    string `json:"earnings"`
}

// PaymentFailedEvent notifies the buyer of a failed payment attempt.
type PaymentFailedEvent struct {
	BaseEvent
	BuyerEmail      string `json:"buyer_email"`
	ProductName     string `json:"product_name"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// OrderRefundedEvent notifies the buyer of a refund.
type OrderRefundedEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	BuyerEmail string `json:"buyer_email"`
	Amount     string `json:"amount"`
}

// WithdrawalRequestedEvent confirms a payout request was recorded.
type WithdrawalRequestedEvent struct {
	BaseEvent
	WithdrawalID string `json:"withdrawal_id"`
	UserEmail    string `json:"user_email"`
	Amount       string `json:"amount"`
}
