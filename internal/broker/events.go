package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCheckoutCompleted publishes CheckoutCompleted event
func (ep *EventPublisher) PublishCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error {
	key := fmt.Sprintf("checkout-%s", event.CheckoutID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishReservationCancelled publishes ReservationCancelled event
func (ep *EventPublisher) PublishReservationCancelled(ctx context.Context, event *models.ReservationCancelledEvent) error {
	key := fmt.Sprintf("reservation-%d", event.ReservationID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishReservationExpired publishes ReservationExpired event
func (ep *EventPublisher) PublishReservationExpired(ctx context.Context, event *models.ReservationExpiredEvent) error {
	key := fmt.Sprintf("reservation-%d", event.ReservationID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentApproved publishes PaymentApproved event
func (ep *EventPublisher) PublishPaymentApproved(ctx context.Context, event *models.PaymentApprovedEvent) error {
	key := fmt.Sprintf("payment-%s", event.PaymentID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentRejected publishes PaymentRejected event
func (ep *EventPublisher) PublishPaymentRejected(ctx context.Context, event *models.PaymentRejectedEvent) error {
	key := fmt.Sprintf("payment-%s", event.PaymentID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderConverted publishes OrderConverted event
func (ep *EventPublisher) PublishOrderConverted(ctx context.Context, event *models.OrderConvertedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderShipped publishes OrderShipped event
func (ep *EventPublisher) PublishOrderShipped(ctx context.Context, event *models.OrderShippedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered callbacks.
type EventHandler struct {
	onPaymentApproved    func(context.Context, *models.PaymentApprovedEvent) error
	onReservationExpired func(context.Context, *models.ReservationExpiredEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentApproved registers a handler for PaymentApproved events
func (eh *EventHandler) OnPaymentApproved(handler func(context.Context, *models.PaymentApprovedEvent) error) {
	eh.onPaymentApproved = handler
}

// OnReservationExpired registers a handler for ReservationExpired events
func (eh *EventHandler) OnReservationExpired(handler func(context.Context, *models.ReservationExpiredEvent) error) {
	eh.onReservationExpired = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypePaymentApproved:
		if eh.onPaymentApproved != nil {
			var event models.PaymentApprovedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentApproved event: %w", err)
			}
			return eh.onPaymentApproved(ctx, &event)
		}

	case models.EventTypeReservationExpired:
		if eh.onReservationExpired != nil {
			var event models.ReservationExpiredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReservationExpired event: %w", err)
			}
			return eh.onReservationExpired(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
