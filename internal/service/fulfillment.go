package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-payments/internal/models"
	"marketplace-payments/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const saleLockTTL = 30 * time.Second

// Fulfillment records a paid sale: the order row, the seller's ledger
// entry, product stats and the wallet credit. It is shared by the
// webhook processor and the payment reconciler, and both paths may run
// concurrently for the same payment intent. The ledger insert is the
// arbitration point: whichever caller wins it performs the wallet
// credit, the loser sees a duplicate and backs off.
type Fulfillment struct {
	store      Datastore
	locker     Locker
	feePercent int64
	logger     *zap.Logger
}

func NewFulfillment(store Datastore, locker Locker, feePercent int64) *Fulfillment {
	return &Fulfillment{
		store:      store,
		locker:     locker,
		feePercent: feePercent,
		logger:     util.GetLogger().With(zap.String("component", "fulfillment")),
	}
}

// SaleParams describes one paid checkout. AmountCents is the amount the
// payment provider reports, in minor units.
type SaleParams struct {
	PaymentIntentID string
	SessionID       string
	Product         *models.Product
	BuyerID         string
	CustomerEmail   string
	AmountCents     int64
	Currency        string
}

// SaleResult reports what RecordSale did. AlreadyRecorded means another
// path got there first and nothing was credited by this call.
type SaleResult struct {
	Order           *models.Order
	Transaction     *models.Transaction
	AlreadyRecorded bool
}

// RecordSale persists the sale exactly once per payment intent. The
// order insert and the ledger insert are each guarded by a partial
// unique index, so a concurrent duplicate degrades to a no-op. Side
// effects after the ledger insert (order item, product stats, wallet
// credit) are logged and skipped on failure rather than aborting, since
// the provider will not retry a delivery we have already accepted.
func (f *Fulfillment) RecordSale(ctx context.Context, p SaleParams) (*SaleResult, error) {
	ctx, span := util.StartSpan(ctx, "fulfillment.RecordSale")
	defer span.End()

	if f.locker != nil {
		lockKey := fmt.Sprintf("sale:%s", p.PaymentIntentID)
		if ok, err := f.locker.AcquireLock(ctx, lockKey, saleLockTTL); err != nil {
			f.logger.Warn("sale lock unavailable, relying on unique indexes",
				zap.String("payment_intent_id", p.PaymentIntentID), zap.Error(err))
		} else if ok {
			defer f.locker.ReleaseLock(ctx, lockKey)
		}
	}

	if existing, err := f.store.GetSaleTransactionByReference(ctx, p.PaymentIntentID); err != nil {
		return nil, fmt.Errorf("failed to check existing transaction: %w", err)
	} else if existing != nil {
		f.logger.Info("sale already recorded",
			zap.String("payment_intent_id", p.PaymentIntentID),
			zap.String("transaction_id", existing.ID))
		util.SalesDuplicateTotal.Inc()
		order, _ := f.store.GetOrderByPaymentIntent(ctx, p.PaymentIntentID)
		return &SaleResult{Order: order, Transaction: existing, AlreadyRecorded: true}, nil
	}

	amount := decimal.NewFromInt(p.AmountCents).Div(decimal.NewFromInt(100))

	order := &models.Order{
		ProductID:       p.Product.ID,
		BuyerID:         p.BuyerID,
		SellerID:        p.Product.SellerID,
		TotalAmount:     amount,
		Currency:        p.Currency,
		Status:          models.OrderStatusCompleted,
		StripeSessionID: p.SessionID,
		PaymentIntentID: p.PaymentIntentID,
		CustomerEmail:   p.CustomerEmail,
	}
	inserted, err := f.store.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if !inserted {
		existing, err := f.store.GetOrderByPaymentIntent(ctx, p.PaymentIntentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing order: %w", err)
		}
		if existing != nil {
			order = existing
		}
	}

	tx := &models.Transaction{
		UserID:           p.Product.SellerID,
		Type:             models.TransactionTypeSale,
		Amount:           amount,
		Status:           models.TransactionStatusCompleted,
		PaymentReference: p.PaymentIntentID,
		PaymentMethod:    "stripe",
		Description:      fmt.Sprintf("Sale of %s", p.Product.Title),
	}
	txInserted, err := f.store.CreateSaleTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to create sale transaction: %w", err)
	}
	if !txInserted {
		f.logger.Info("sale transaction already exists, skipping credit",
			zap.String("payment_intent_id", p.PaymentIntentID))
		util.SalesDuplicateTotal.Inc()
		existing, _ := f.store.GetSaleTransactionByReference(ctx, p.PaymentIntentID)
		return &SaleResult{Order: order, Transaction: existing, AlreadyRecorded: true}, nil
	}

	if err := f.store.CreateOrderItem(ctx, &models.OrderItem{
		OrderID:   order.ID,
		ProductID: p.Product.ID,
		Quantity:  1,
		UnitPrice: amount,
	}); err != nil {
		f.logger.Error("failed to create order item",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	if err := f.store.IncrementProductSales(ctx, p.Product.ID, amount); err != nil {
		f.logger.Error("failed to update product stats",
			zap.String("product_id", p.Product.ID), zap.Error(err))
	}

	sellerShare := amount.Mul(decimal.NewFromInt(100 - f.feePercent)).Div(decimal.NewFromInt(100))
	if err := f.store.CreditWallet(ctx, p.Product.SellerID, sellerShare); err != nil {
		f.logger.Error("failed to credit seller wallet",
			zap.String("seller_id", p.Product.SellerID),
			zap.String("amount", sellerShare.String()),
			zap.Error(err))
	} else {
		util.WalletCreditsTotal.Inc()
	}

	util.SalesRecordedTotal.Inc()
	f.logger.Info("sale recorded",
		zap.String("order_id", order.ID),
		zap.String("payment_intent_id", p.PaymentIntentID),
		zap.String("amount", amount.String()),
		zap.String("seller_share", sellerShare.String()))

	return &SaleResult{Order: order, Transaction: tx}, nil
}

// SellerShare returns the seller's portion of an order amount after the
// platform fee.
func (f *Fulfillment) SellerShare(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(100 - f.feePercent)).Div(decimal.NewFromInt(100))
}
