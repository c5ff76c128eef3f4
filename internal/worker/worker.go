package worker

import (
	"context"
	"log"

	"marketplace-payments/internal/broker"
	"marketplace-payments/internal/mailer"
	"marketplace-payments/internal/models"
	"marketplace-payments/internal/util"
)

// NotificationWorker consumes notification events and dispatches the
// corresponding emails. Email failures surface as handler errors for
// the consumer to log; nothing here ever reaches back into the
// payment flow.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	mail         *mailer.Client
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, mail *mailer.Client) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		mail:     mail,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderConfirmation(w.handleOrderConfirmation)
	eventHandler.OnSaleNotification(w.handleSaleNotification)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	eventHandler.OnOrderRefunded(w.handleOrderRefunded)
	eventHandler.OnWithdrawalRequested(w.handleWithdrawalRequested)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderConfirmation(ctx context.Context, event *models.OrderConfirmationEvent) error {
	if event.BuyerEmail == "" {
		return nil
	}
	html, err := mailer.RenderOrderConfirmation(event)
	if err != nil {
		return err
	}
	if err := w.mail.Send(ctx, event.BuyerEmail, "Order Confirmed - "+event.ProductName, html); err != nil {
		return err
	}
	util.EmailsSentTotal.WithLabelValues("order_confirmation").Inc()
	return nil
}

func (w *NotificationWorker) handleSaleNotification(ctx context.Context, event *models.SaleNotificationEvent) error {
	if event.SellerEmail == "" {
		return nil
	}
	html, err := mailer.RenderSaleNotification(event)
	if err != nil {
		return err
	}
	if err := w.mail.Send(ctx, event.SellerEmail, "New Sale: "+event.ProductName, html); err != nil {
		return err
	}
	util.EmailsSentTotal.WithLabelValues("sale_notification").Inc()
	return nil
}

func (w *NotificationWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	if event.BuyerEmail == "" {
		return nil
	}
	html, err := mailer.RenderPaymentFailed(event)
	if err != nil {
		return err
	}
	if err := w.mail.Send(ctx, event.BuyerEmail, "Payment Failed", html); err != nil {
		return err
	}
	util.EmailsSentTotal.WithLabelValues("payment_failed").Inc()
	return nil
}

func (w *NotificationWorker) handleOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error {
	if event.BuyerEmail == "" {
		return nil
	}
	html, err := mailer.RenderOrderRefunded(event)
	if err != nil {
		return err
	}
	if err := w.mail.Send(ctx, event.BuyerEmail, "Refund Processed", html); err != nil {
		return err
	}
	util.EmailsSentTotal.WithLabelValues("order_refunded").Inc()
	return nil
}

func (w *NotificationWorker) handleWithdrawalRequested(ctx context.Context, event *models.WithdrawalRequestedEvent) error {
	if event.UserEmail == "" {
		return nil
	}
	html, err := mailer.RenderWithdrawalRequested(event)
	if err != nil {
		return err
	}
	if err := w.mail.Send(ctx, event.UserEmail, "Withdrawal Request Received", html); err != nil {
		return err
	}
	util.EmailsSentTotal.WithLabelValues("withdrawal_requested").Inc()
	return nil
}
