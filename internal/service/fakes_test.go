package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-payments/internal/models"
	"marketplace-payments/internal/store"
	"marketplace-payments/internal/stripeclient"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory Datastore that mirrors the conflict
// semantics of the SQL layer: one settled order per payment intent, one
// sale ledger entry per payment reference.
type fakeStore struct {
	products    map[string]*models.Product
	files       map[string][]models.ProductFile
	profiles    map[string]*models.Profile
	orders      map[string]*models.Order
	orderItems  []models.OrderItem
	sales       map[string]*models.Transaction
	processed   map[string]bool
	coupons     map[string]*models.Coupon
	tokens      map[string]*models.DownloadToken
	withdrawals []*models.WithdrawalRequest

	walletCredits   map[string]decimal.Decimal
	creditWalletErr error
	salesIncrements int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:      make(map[string]*models.Product),
		files:         make(map[string][]models.ProductFile),
		profiles:      make(map[string]*models.Profile),
		orders:        make(map[string]*models.Order),
		sales:         make(map[string]*models.Transaction),
		processed:     make(map[string]bool),
		coupons:       make(map[string]*models.Coupon),
		tokens:        make(map[string]*models.DownloadToken),
		walletCredits: make(map[string]decimal.Decimal),
	}
}

func (f *fakeStore) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeStore) GetProductFiles(_ context.Context, productID string) ([]models.ProductFile, error) {
	return f.files[productID], nil
}

func (f *fakeStore) IncrementProductSales(_ context.Context, productID string, amount decimal.Decimal) error {
	p, ok := f.products[productID]
	if !ok {
		return store.ErrProductNotFound
	}
	p.SalesCount++
	p.TotalRevenue = p.TotalRevenue.Add(amount)
	f.salesIncrements++
	return nil
}

func (f *fakeStore) IncrementFileDownloads(_ context.Context, fileID string) error {
	for productID, files := range f.files {
		for i := range files {
			if files[i].ID == fileID {
				f.files[productID][i].DownloadCount++
				return nil
			}
		}
	}
	return nil
}

func (f *fakeStore) GetProfileByID(_ context.Context, id string) (*models.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeStore) CreditWallet(_ context.Context, userID string, amount decimal.Decimal) error {
	if f.creditWalletErr != nil {
		return f.creditWalletErr
	}
	f.walletCredits[userID] = f.walletCredits[userID].Add(amount)
	if p, ok := f.profiles[userID]; ok {
		p.WalletBalance = p.WalletBalance.Add(amount)
	}
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order *models.Order) (bool, error) {
	if order.Status == models.OrderStatusCompleted || order.Status == models.OrderStatusRefunded {
		for _, existing := range f.orders {
			if existing.PaymentIntentID == order.PaymentIntentID &&
				(existing.Status == models.OrderStatusCompleted || existing.Status == models.OrderStatusRefunded) {
				return false, nil
			}
		}
	}
	order.ID = uuid.NewString()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	f.orders[order.ID] = order
	return true, nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeStore) GetOrderByPaymentIntent(_ context.Context, paymentIntentID string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.PaymentIntentID == paymentIntentID &&
			(o.Status == models.OrderStatusCompleted || o.Status == models.OrderStatusRefunded) {
			return o, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MarkOrderRefunded(_ context.Context, paymentIntentID string) error {
	for _, o := range f.orders {
		if o.PaymentIntentID == paymentIntentID && o.Status == models.OrderStatusCompleted {
			o.Status = models.OrderStatusRefunded
			return nil
		}
	}
	return store.ErrOrderNotFound
}

func (f *fakeStore) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	item.ID = uuid.NewString()
	f.orderItems = append(f.orderItems, *item)
	return nil
}

func (f *fakeStore) CreateSaleTransaction(_ context.Context, tx *models.Transaction) (bool, error) {
	if _, exists := f.sales[tx.PaymentReference]; exists {
		return false, nil
	}
	tx.ID = uuid.NewString()
	tx.CreatedAt = time.Now()
	f.sales[tx.PaymentReference] = tx
	return true, nil
}

func (f *fakeStore) GetSaleTransactionByReference(_ context.Context, paymentReference string) (*models.Transaction, error) {
	return f.sales[paymentReference], nil
}

func (f *fakeStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	return f.processed[eventID], nil
}

func (f *fakeStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	f.processed[eventID] = true
	return nil
}

func (f *fakeStore) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	c, ok := f.coupons[code]
	if !ok {
		return nil, store.ErrCouponNotFound
	}
	return c, nil
}

func tokenKey(orderID, fileID string) string {
	return orderID + "/" + fileID
}

func (f *fakeStore) GetDownloadToken(_ context.Context, orderID, fileID string) (*models.DownloadToken, error) {
	return f.tokens[tokenKey(orderID, fileID)], nil
}

func (f *fakeStore) UpsertDownloadToken(_ context.Context, token *models.DownloadToken) error {
	token.ID = uuid.NewString()
	token.DownloadCount = 0
	token.UpdatedAt = time.Now()
	f.tokens[tokenKey(token.OrderID, token.FileID)] = token
	return nil
}

func (f *fakeStore) RedeemDownloadToken(_ context.Context, token, fileID string) (*models.DownloadToken, error) {
	for _, t := range f.tokens {
		if t.Token != token || t.FileID != fileID {
			continue
		}
		if !t.ExpiresAt.After(time.Now()) {
			return nil, store.ErrTokenExpired
		}
		if t.DownloadCount >= t.MaxDownloads {
			return nil, store.ErrDownloadLimitReached
		}
		t.DownloadCount++
		return t, nil
	}
	return nil, store.ErrTokenNotFound
}

func (f *fakeStore) CreateWithdrawalRequest(_ context.Context, userID string, amount decimal.Decimal, paymentMethod string, paymentDetails *string) (*models.WithdrawalRequest, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	if amount.GreaterThan(p.WalletBalance) {
		return nil, store.ErrInsufficientBalance
	}
	for _, w := range f.withdrawals {
		if w.UserID == userID && (w.Status == models.WithdrawalStatusPending ||
			w.Status == models.WithdrawalStatusProcessing || w.Status == models.WithdrawalStatusApproved) {
			return nil, store.ErrWithdrawalPending
		}
	}
	w := &models.WithdrawalRequest{
		ID:             uuid.NewString(),
		UserID:         userID,
		Amount:         amount,
		PaymentMethod:  paymentMethod,
		PaymentDetails: paymentDetails,
		Status:         models.WithdrawalStatusPending,
		CreatedAt:      time.Now(),
	}
	f.withdrawals = append(f.withdrawals, w)
	return w, nil
}

// fakeProvider scripts the payment provider responses.
type fakeProvider struct {
	sessions      []stripeclient.CheckoutSessionParams
	intents       map[string]*stripeclient.PaymentIntent
	confirmErr    error
	confirmCalls  int
	confirmStatus string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{intents: make(map[string]*stripeclient.PaymentIntent)}
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, p stripeclient.CheckoutSessionParams) (*stripeclient.CheckoutSession, error) {
	f.sessions = append(f.sessions, p)
	return &stripeclient.CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", len(f.sessions)),
		URL: "https://checkout.example.com/pay",
	}, nil
}

func (f *fakeProvider) GetPaymentIntent(_ context.Context, id string) (*stripeclient.PaymentIntent, error) {
	pi, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment intent: %s", id)
	}
	return pi, nil
}

func (f *fakeProvider) ConfirmPaymentIntent(_ context.Context, id string) (*stripeclient.PaymentIntent, error) {
	f.confirmCalls++
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	pi, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment intent: %s", id)
	}
	confirmed := *pi
	confirmed.Status = f.confirmStatus
	f.intents[id] = &confirmed
	return &confirmed, nil
}

// fakeVerifier returns a scripted event for any payload.
type fakeVerifier struct {
	event *stripeclient.Event
	err   error
}

func (f *fakeVerifier) VerifyEvent(_ []byte, _ string) (*stripeclient.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

// fakeNotifier records published notification events.
type fakeNotifier struct {
	confirmations []*models.OrderConfirmationEvent
	saleNotices   []*models.SaleNotificationEvent
	failures      []*models.PaymentFailedEvent
	refunds       []*models.OrderRefundedEvent
	withdrawals   []*models.WithdrawalRequestedEvent
}

func (f *fakeNotifier) PublishOrderConfirmation(_ context.Context, e *models.OrderConfirmationEvent) error {
	f.confirmations = append(f.confirmations, e)
	return nil
}

func (f *fakeNotifier) PublishSaleNotification(_ context.Context, e *models.SaleNotificationEvent) error {
	f.saleNotices = append(f.saleNotices, e)
	return nil
}

func (f *fakeNotifier) PublishPaymentFailed(_ context.Context, e *models.PaymentFailedEvent) error {
	f.failures = append(f.failures, e)
	return nil
}

func (f *fakeNotifier) PublishOrderRefunded(_ context.Context, e *models.OrderRefundedEvent) error {
	f.refunds = append(f.refunds, e)
	return nil
}

func (f *fakeNotifier) PublishWithdrawalRequested(_ context.Context, e *models.WithdrawalRequestedEvent) error {
	f.withdrawals = append(f.withdrawals, e)
	return nil
}

// fakeLimiter scripts rate limit decisions.
type fakeLimiter struct {
	allowed bool
	calls   int
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, _ int64, _ time.Duration) (bool, error) {
	f.calls++
	return f.allowed, nil
}

func seedProduct(fs *fakeStore, id, sellerID string, priceCents int64) *models.Product {
	p := &models.Product{
		ID:         id,
		SellerID:   sellerID,
		Title:      "Test Product",
		PriceCents: priceCents,
	}
	fs.products[id] = p
	return p
}

func seedProfile(fs *fakeStore, id, email, kyc string, balance decimal.Decimal) *models.Profile {
	p := &models.Profile{
		ID:            id,
		Email:         email,
		WalletBalance: balance,
		KYCStatus:     kyc,
	}
	fs.profiles[id] = p
	return p
}
