package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-payments/internal/models"
	"marketplace-payments/internal/store"
	"marketplace-payments/internal/stripeclient"
	"marketplace-payments/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WebhookService ingests provider webhook deliveries. Every delivery is
// signature-verified, deduplicated by event id, and dispatched by type.
// Returning an error makes the handler respond non-2xx so the provider
// redelivers; redeliveries are safe because every side effect behind a
// processed event is idempotent.
type WebhookService struct {
	verifier    EventVerifier
	store       Datastore
	fulfillment *Fulfillment
	downloads   *DownloadService
	publisher   Notifier
	logger      *zap.Logger
}

func NewWebhookService(verifier EventVerifier, st Datastore, fulfillment *Fulfillment, downloads *DownloadService, publisher Notifier) *WebhookService {
	return &WebhookService{
		verifier:    verifier,
		store:       st,
		fulfillment: fulfillment,
		downloads:   downloads,
		publisher:   publisher,
		logger:      util.GetLogger().With(zap.String("component", "webhook_service")),
	}
}

// ErrInvalidSignature is returned when the payload fails verification
var ErrInvalidSignature = errors.New("invalid webhook signature")

// HandleEvent verifies, deduplicates and processes one delivery
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	ctx, span := util.StartSpan(ctx, "webhook.HandleEvent")
	defer span.End()
	timer := time.Now()

	event, err := s.verifier.VerifyEvent(payload, sigHeader)
	if err != nil {
		util.WebhookSignatureFailuresTotal.Inc()
		s.logger.Warn("webhook signature verification failed", zap.Error(err))
		return ErrInvalidSignature
	}

	util.WebhookEventsTotal.WithLabelValues(event.Type).Inc()
	defer func() {
		util.WebhookProcessingLatency.Observe(time.Since(timer).Seconds())
	}()

	processed, err := s.store.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to check event dedup: %w", err)
	}
	if processed {
		util.WebhookEventsDuplicateTotal.Inc()
		s.logger.Info("duplicate webhook event skipped",
			zap.String("event_id", event.ID), zap.String("event_type", event.Type))
		return nil
	}

	switch event.Type {
	case stripeclient.EventCheckoutSessionCompleted:
		err = s.handleSessionCompleted(ctx, event.Session)
	case stripeclient.EventPaymentIntentFailed:
		err = s.handlePaymentFailed(ctx, event.Intent)
	case stripeclient.EventChargeRefunded:
		err = s.handleChargeRefunded(ctx, event.Charge)
	case stripeclient.EventPaymentIntentSucceeded:
		// Fulfillment keys off checkout.session.completed; the bare
		// intent event carries no session metadata.
		s.logger.Info("payment intent succeeded",
			zap.String("payment_intent_id", event.Intent.ID))
	default:
		s.logger.Info("ignoring webhook event",
			zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	}
	if err != nil {
		return err
	}

	if err := s.store.MarkEventProcessed(ctx, event.ID, event.Type); err != nil {
		s.logger.Error("failed to mark event processed",
			zap.String("event_id", event.ID), zap.Error(err))
	}
	return nil
}

// handleSessionCompleted is the primary fulfillment path. The seller
// identity and price come from the catalog row named by the session
// metadata, never from the metadata itself.
func (s *WebhookService) handleSessionCompleted(ctx context.Context, session *stripeclient.SessionData) error {
	productID := session.Metadata["productId"]
	if productID == "" {
		s.logger.Error("checkout session missing productId metadata",
			zap.String("session_id", session.ID))
		return errors.New("checkout session missing productId metadata")
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to load product %s: %w", productID, err)
	}

	buyerID := session.ClientReferenceID
	if buyerID == "" {
		buyerID = session.Metadata["buyerId"]
	}

	result, err := s.fulfillment.RecordSale(ctx, SaleParams{
		PaymentIntentID: session.PaymentIntentID,
		SessionID:       session.ID,
		Product:         product,
		BuyerID:         buyerID,
		CustomerEmail:   session.CustomerEmail,
		AmountCents:     session.AmountTotal,
		Currency:        "usd",
	})
	if err != nil {
		return err
	}
	if result.AlreadyRecorded {
		return nil
	}

	s.notifyOrderParties(ctx, result, product, buyerID, session.CustomerEmail)
	return nil
}

// notifyOrderParties issues download links and publishes the buyer and
// seller notifications. All of it is best-effort: the sale is already
// durable.
func (s *WebhookService) notifyOrderParties(ctx context.Context, result *SaleResult, product *models.Product, buyerID, customerEmail string) {
	order := result.Order
	if order == nil {
		return
	}

	var downloadURLs []string
	if s.downloads != nil {
		links, _, err := s.downloads.GenerateLinks(ctx, order.ID, 0, 0)
		if err != nil {
			s.logger.Error("failed to issue download links",
				zap.String("order_id", order.ID), zap.Error(err))
		} else {
			for _, l := range links {
				downloadURLs = append(downloadURLs, l.URL)
			}
		}
	}

	if s.publisher == nil {
		return
	}

	buyerEmail := customerEmail
	if buyerEmail == "" && buyerID != "" {
		if profile, err := s.store.GetProfileByID(ctx, buyerID); err == nil {
			buyerEmail = profile.Email
		}
	}
	amount := order.TotalAmount.StringFixed(2)

	if err := s.publisher.PublishOrderConfirmation(ctx, &models.OrderConfirmationEvent{
		OrderID:       order.ID,
		BuyerEmail:    buyerEmail,
		ProductName:   product.Title,
		Amount:        amount,
		DownloadLinks: downloadURLs,
	}); err != nil {
		s.logger.Error("failed to publish order confirmation",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	sellerEmail := ""
	if profile, err := s.store.GetProfileByID(ctx, product.SellerID); err == nil {
		sellerEmail = profile.Email
	} else {
		s.logger.Warn("failed to load seller profile",
			zap.String("seller_id", product.SellerID), zap.Error(err))
	}
	if err := s.publisher.PublishSaleNotification(ctx, &models.SaleNotificationEvent{
		OrderID:     order.ID,
		SellerEmail: sellerEmail,
		ProductName: product.Title,
		BuyerEmail:  buyerEmail,
		Amount:      amount,
		Earnings:    s.fulfillment.SellerShare(order.TotalAmount).StringFixed(2),
	}); err != nil {
		s.logger.Error("failed to publish sale notification",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

// handlePaymentFailed records a failed order for visibility. Failed
// orders never hold the payment intent unique slot, so a retried
// payment on the same intent can still complete.
func (s *WebhookService) handlePaymentFailed(ctx context.Context, intent *stripeclient.IntentData) error {
	productID := intent.Metadata["productId"]
	buyerID := intent.Metadata["buyerId"]

	order := &models.Order{
		ProductID:       productID,
		BuyerID:         buyerID,
		TotalAmount:     decimal.NewFromInt(intent.AmountCents).Div(decimal.NewFromInt(100)),
		Currency:        "usd",
		Status:          models.OrderStatusFailed,
		PaymentIntentID: intent.ID,
	}

	var productName string
	if productID != "" {
		if product, err := s.store.GetProductByID(ctx, productID); err == nil {
			order.SellerID = product.SellerID
			productName = product.Title
		} else if !errors.Is(err, store.ErrProductNotFound) {
			return fmt.Errorf("failed to load product %s: %w", productID, err)
		}
	}

	if _, err := s.store.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to record failed order: %w", err)
	}
	s.logger.Info("payment failed order recorded",
		zap.String("payment_intent_id", intent.ID),
		zap.String("product_id", productID))

	if s.publisher != nil && buyerID != "" {
		buyerEmail := ""
		if profile, err := s.store.GetProfileByID(ctx, buyerID); err == nil {
			buyerEmail = profile.Email
		}
		if err := s.publisher.PublishPaymentFailed(ctx, &models.PaymentFailedEvent{
			BuyerEmail:      buyerEmail,
			ProductName:     productName,
			PaymentIntentID: intent.ID,
		}); err != nil {
			s.logger.Error("failed to publish payment failed event",
				zap.String("payment_intent_id", intent.ID), zap.Error(err))
		}
	}
	return nil
}

// handleChargeRefunded flips the order to refunded. The seller's wallet
// and ledger are deliberately left alone; refund clawback is a manual
// operations process.
func (s *WebhookService) handleChargeRefunded(ctx context.Context, charge *stripeclient.ChargeData) error {
	if charge.PaymentIntentID == "" {
		s.logger.Warn("refunded charge without payment intent",
			zap.String("charge_id", charge.ID))
		return nil
	}

	if err := s.store.MarkOrderRefunded(ctx, charge.PaymentIntentID); err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			s.logger.Warn("no completed order for refunded charge",
				zap.String("payment_intent_id", charge.PaymentIntentID))
			return nil
		}
		return fmt.Errorf("failed to mark order refunded: %w", err)
	}
	s.logger.Info("order marked refunded",
		zap.String("payment_intent_id", charge.PaymentIntentID))

	if s.publisher != nil {
		order, err := s.store.GetOrderByPaymentIntent(ctx, charge.PaymentIntentID)
		if err != nil || order == nil {
			return nil
		}
		buyerEmail := order.CustomerEmail
		if buyerEmail == "" && order.BuyerID != "" {
			if profile, err := s.store.GetProfileByID(ctx, order.BuyerID); err == nil {
				buyerEmail = profile.Email
			}
		}
		if err := s.publisher.PublishOrderRefunded(ctx, &models.OrderRefundedEvent{
			OrderID:    order.ID,
			BuyerEmail: buyerEmail,
			Amount:     order.TotalAmount.StringFixed(2),
		}); err != nil {
			s.logger.Error("failed to publish refund notification",
				zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	return nil
}
