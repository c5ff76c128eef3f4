package service

import (
	"context"
	"time"

	"marketplace-payments/internal/models"
	"marketplace-payments/internal/stripeclient"

	"github.com/shopspring/decimal"
)

// Datastore is the persistence surface the services need, implemented
// by *store.Store. Narrowed here so tests can substitute fakes.
type Datastore interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductFiles(ctx context.Context, productID string) ([]models.ProductFile, error)
	IncrementProductSales(ctx context.Context, productID string, amount decimal.Decimal) error
	IncrementFileDownloads(ctx context.Context, fileID string) error

	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) error

	CreateOrder(ctx context.Context, order *models.Order) (bool, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	MarkOrderRefunded(ctx context.Context, paymentIntentID string) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error

	CreateSaleTransaction(ctx context.Context, tx *models.Transaction) (bool, error)
	GetSaleTransactionByReference(ctx context.Context, paymentReference string) (*models.Transaction, error)

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error

	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)

	GetDownloadToken(ctx context.Context, orderID, fileID string) (*models.DownloadToken, error)
	UpsertDownloadToken(ctx context.Context, token *models.DownloadToken) error
	RedeemDownloadToken(ctx context.Context, token, fileID string) (*models.DownloadToken, error)

	CreateWithdrawalRequest(ctx context.Context, userID string, amount decimal.Decimal, paymentMethod string, paymentDetails *string) (*models.WithdrawalRequest, error)
}

// PaymentProvider is the hosted-payment collaborator, implemented by
// *stripeclient.Client.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, p stripeclient.CheckoutSessionParams) (*stripeclient.CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripeclient.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, id string) (*stripeclient.PaymentIntent, error)
}

// EventVerifier authenticates and normalizes webhook deliveries,
// implemented by *stripeclient.Client.
type EventVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (*stripeclient.Event, error)
}

// Notifier publishes notification events, implemented by
// *broker.EventPublisher. All publishing is best-effort.
type Notifier interface {
	PublishOrderConfirmation(ctx context.Context, event *models.OrderConfirmationEvent) error
	PublishSaleNotification(ctx context.Context, event *models.SaleNotificationEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error
	PublishWithdrawalRequested(ctx context.Context, event *models.WithdrawalRequestedEvent) error
}

// Locker provides advisory locks, implemented by *redisclient.Client
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// RateLimiter bounds request rates, implemented by *redisclient.Client
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}
