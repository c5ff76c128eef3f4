package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace-payments/internal/stripeclient"
	"marketplace-payments/internal/util"

	"go.uber.org/zap"
)

// PaymentService is the client-driven reconciliation path: the frontend
// reports a payment intent it believes succeeded, and the service
// verifies it against the provider and the catalog before recording the
// sale. It backstops missed webhook deliveries and shares the same
// idempotency guarantees through Fulfillment.
type PaymentService struct {
	store       Datastore
	provider    PaymentProvider
	fulfillment *Fulfillment
	logger      *zap.Logger
}

func NewPaymentService(st Datastore, provider PaymentProvider, fulfillment *Fulfillment) *PaymentService {
	return &PaymentService{
		store:       st,
		provider:    provider,
		fulfillment: fulfillment,
		logger:      util.GetLogger().With(zap.String("component", "payment_service")),
	}
}

type ProcessPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ProductID       string `json:"productId"`
	Amount          int64  `json:"amount"`
	BuyerID         string `json:"buyerId,omitempty"`
}

type ProcessPaymentResponse struct {
	Success         bool   `json:"success"`
	TransactionID   string `json:"transactionId,omitempty"`
	OrderID         string `json:"orderId,omitempty"`
	PaymentIntentID string `json:"paymentIntentId"`
	Message         string `json:"message"`
}

// ProcessPayment verifies the intent with the provider and records the
// sale. The declared amount and the provider-reported amount must both
// match the catalog price exactly; the request body is never trusted
// for money. Replays of an already recorded intent succeed without a
// second credit.
func (s *PaymentService) ProcessPayment(ctx context.Context, userID string, req *ProcessPaymentRequest) (*ProcessPaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "payment.ProcessPayment")
	defer span.End()

	if req.PaymentIntentID == "" {
		return nil, errors.New("paymentIntentId is required")
	}
	if req.ProductID == "" {
		return nil, errors.New("productId is required")
	}
	if req.Amount <= 0 {
		return nil, errors.New("amount is required")
	}

	intent, err := s.provider.GetPaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		s.logger.Error("failed to retrieve payment intent",
			zap.String("payment_intent_id", req.PaymentIntentID), zap.Error(err))
		return nil, errors.New("failed to retrieve payment intent")
	}

	switch intent.Status {
	case stripeclient.IntentStatusSucceeded:
	case stripeclient.IntentStatusRequiresConfirmation:
		confirmed, err := s.provider.ConfirmPaymentIntent(ctx, intent.ID)
		if err != nil {
			s.logger.Error("failed to confirm payment intent",
				zap.String("payment_intent_id", intent.ID), zap.Error(err))
			return nil, errors.New("payment confirmation failed")
		}
		if confirmed.Status != stripeclient.IntentStatusSucceeded {
			return nil, fmt.Errorf("payment not completed after confirmation: %s", confirmed.Status)
		}
		intent = confirmed
	case stripeclient.IntentStatusRequiresPayment:
		return nil, errors.New("payment requires a payment method")
	case stripeclient.IntentStatusCanceled:
		return nil, errors.New("payment was canceled")
	default:
		return nil, fmt.Errorf("payment not completed: %s", intent.Status)
	}

	if existing, err := s.store.GetSaleTransactionByReference(ctx, intent.ID); err != nil {
		return nil, err
	} else if existing != nil {
		resp := &ProcessPaymentResponse{
			Success:         true,
			TransactionID:   existing.ID,
			PaymentIntentID: intent.ID,
			Message:         "Payment already processed",
		}
		if order, _ := s.store.GetOrderByPaymentIntent(ctx, intent.ID); order != nil {
			resp.OrderID = order.ID
		}
		return resp, nil
	}

	product, err := s.store.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	if req.Amount != product.PriceCents || intent.AmountCents != product.PriceCents {
		util.AmountMismatchesTotal.Inc()
		s.logger.Warn("payment amount mismatch",
			zap.String("payment_intent_id", intent.ID),
			zap.String("product_id", product.ID),
			zap.Int64("declared", req.Amount),
			zap.Int64("charged", intent.AmountCents),
			zap.Int64("expected", product.PriceCents))
		return nil, errors.New("payment amount does not match product price")
	}

	buyerID := req.BuyerID
	if buyerID == "" {
		buyerID = userID
	}

	result, err := s.fulfillment.RecordSale(ctx, SaleParams{
		PaymentIntentID: intent.ID,
		Product:         product,
		BuyerID:         buyerID,
		AmountCents:     intent.AmountCents,
		Currency:        "usd",
	})
	if err != nil {
		return nil, err
	}

	resp := &ProcessPaymentResponse{
		Success:         true,
		PaymentIntentID: intent.ID,
		Message:         "Payment processed successfully",
	}
	if result.AlreadyRecorded {
		resp.Message = "Payment already processed"
	}
	if result.Transaction != nil {
		resp.TransactionID = result.Transaction.ID
	}
	if result.Order != nil {
		resp.OrderID = result.Order.ID
	}
	return resp, nil
}
