package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"marketplace-payments/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing notification events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func stamp(base *models.BaseEvent, eventType string) {
	base.EventID = uuid.New().String()
	base.EventType = eventType
	base.Timestamp = time.Now()
}

// PublishOrderConfirmation publishes a buyer confirmation event
func (ep *EventPublisher) PublishOrderConfirmation(ctx context.Context, event *models.OrderConfirmationEvent) error {
	stamp(&event.BaseEvent, models.EventTypeOrderConfirmation)
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSaleNotification publishes a seller sale event
func (ep *EventPublisher) PublishSaleNotification(ctx context.Context, event *models.SaleNotificationEvent) error {
	stamp(&event.BaseEvent, models.EventTypeSaleNotification)
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentFailed publishes a failed-payment event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	stamp(&event.BaseEvent, models.EventTypePaymentFailed)
	key := fmt.Sprintf("intent-%s", event.PaymentIntentID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderRefunded publishes a refund event
func (ep *EventPublisher) PublishOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error {
	stamp(&event.BaseEvent, models.EventTypeOrderRefunded)
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishWithdrawalRequested publishes a withdrawal confirmation event
func (ep *EventPublisher) PublishWithdrawalRequested(ctx context.Context, event *models.WithdrawalRequestedEvent) error {
	stamp(&event.BaseEvent, models.EventTypeWithdrawalRequested)
	key := fmt.Sprintf("withdrawal-%s", event.WithdrawalID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes notification events to registered handlers
type EventHandler struct {
	onOrderConfirmation   func(context.Context, *models.OrderConfirmationEvent) error
	onSaleNotification    func(context.Context, *models.SaleNotificationEvent) error
	onPaymentFailed       func(context.Context, *models.PaymentFailedEvent) error
	onOrderRefunded       func(context.Context, *models.OrderRefundedEvent) error
	onWithdrawalRequested func(context.Context, *models.WithdrawalRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderConfirmation registers a handler for OrderConfirmation events
func (eh *EventHandler) OnOrderConfirmation(handler func(context.Context, *models.OrderConfirmationEvent) error) {
	eh.onOrderConfirmation = handler
}

// OnSaleNotification registers a handler for SaleNotification events
func (eh *EventHandler) OnSaleNotification(handler func(context.Context, *models.SaleNotificationEvent) error) {
	eh.onSaleNotification = handler
}

// OnPaymentFailed registers a handler for PaymentFailed events
func (eh *EventHandler) OnPaymentFailed(handler func(context.Context, *models.PaymentFailedEvent) error) {
	eh.onPaymentFailed = handler
}

// OnOrderRefunded registers a handler for OrderRefunded events
func (eh *EventHandler) OnOrderRefunded(handler func(context.Context, *models.OrderRefundedEvent) error) {
	eh.onOrderRefunded = handler
}

// OnWithdrawalRequested registers a handler for WithdrawalRequested events
func (eh *EventHandler) OnWithdrawalRequested(handler func(context.Context, *models.WithdrawalRequestedEvent) error) {
	eh.onWithdrawalRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeOrderConfirmation:
		if eh.onOrderConfirmation != nil {
			var event models.OrderConfirmationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderConfirmation event: %w", err)
			}
			return eh.onOrderConfirmation(ctx, &event)
		}

	case models.EventTypeSaleNotification:
		if eh.onSaleNotification != nil {
			var event models.SaleNotificationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleNotification event: %w", err)
			}
			return eh.onSaleNotification(ctx, &event)
		}

	case models.EventTypePaymentFailed:
		if eh.onPaymentFailed != nil {
			var event models.PaymentFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentFailed event: %w", err)
			}
			return eh.onPaymentFailed(ctx, &event)
		}

	case models.EventTypeOrderRefunded:
		if eh.onOrderRefunded != nil {
			var event models.OrderRefundedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderRefunded event: %w", err)
			}
			return eh.onOrderRefunded(ctx, &event)
		}

	case models.EventTypeWithdrawalRequested:
		if eh.onWithdrawalRequested != nil {
			var event models.WithdrawalRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal WithdrawalRequested event: %w", err)
			}
			return eh.onWithdrawalRequested(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
