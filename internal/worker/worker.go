package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/google/uuid"
)

// ExpiryWorker periodically sweeps reservations past their expiry, returning
// their stock. Reservations without the sweep stay confirmed forever and
// leak stock.
type ExpiryWorker struct {
	reservations *service.ReservationService
	interval     time.Duration
	batchSize    int
}

// NewExpiryWorker creates an expiry worker.
func NewExpiryWorker(reservations *service.ReservationService, interval time.Duration, batchSize int) *ExpiryWorker {
	return &ExpiryWorker{
		reservations: reservations,
		interval:     interval,
		batchSize:    batchSize,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) error {
	log.Printf("Starting expiry worker: interval=%s, batch=%d", w.interval, w.batchSize)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Expiry worker context cancelled, stopping...")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.reservations.ExpireOverdue(ctx, w.batchSize); err != nil {
				log.Printf("Expiry sweep failed: %v", err)
			}
		}
	}
}

// ConversionWorker consumes payment events and converts the paid checkout's
// reservations into orders.
type ConversionWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	orders       *service.OrderService
}

// NewConversionWorker creates a conversion worker.
func NewConversionWorker(consumer *broker.Consumer, orders *service.OrderService) *ConversionWorker {
	eventHandler := broker.NewEventHandler()

	w := &ConversionWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		orders:       orders,
	}
	eventHandler.OnPaymentApproved(w.handlePaymentApproved)
	return w
}

// Start starts the worker
func (w *ConversionWorker) Start(ctx context.Context) error {
	log.Println("Starting conversion worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ConversionWorker) Stop() error {
	log.Println("Stopping conversion worker...")
	return w.consumer.Close()
}

func (w *ConversionWorker) handlePaymentApproved(ctx context.Context, event *models.PaymentApprovedEvent) error {
	// Buy-it-now payments carry a "product-<id>" reference instead of a
	// checkout UUID; there is no reservation batch to convert, and the
	// reservations.checkout_id column would reject the value anyway.
	if _, err := uuid.Parse(event.CheckoutID); err != nil {
		log.Printf("Skipping payment %s: reference %q is not a checkout", event.PaymentID, event.CheckoutID)
		return nil
	}

	log.Printf("Converting checkout %s after payment %s", event.CheckoutID, event.PaymentID)

	orders, err := w.orders.ConvertCheckout(ctx, event.CheckoutID, event.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to convert checkout %s: %w", event.CheckoutID, err)
	}
	log.Printf("Converted checkout %s into %d orders", event.CheckoutID, len(orders))
	return nil
}

// NotifyWorker consumes reservation expiry events and emails the customer
// that their hold lapsed.
type NotifyWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	mailer       service.Mailer
}

// NewNotifyWorker creates a notify worker.
func NewNotifyWorker(consumer *broker.Consumer, mailer service.Mailer) *NotifyWorker {
	eventHandler := broker.NewEventHandler()

	w := &NotifyWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		mailer:       mailer,
	}
	eventHandler.OnReservationExpired(w.handleReservationExpired)
	return w
}

// Start starts the worker
func (w *NotifyWorker) Start(ctx context.Context) error {
	log.Println("Starting notify worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotifyWorker) Stop() error {
	log.Println("Stopping notify worker...")
	return w.consumer.Close()
}

func (w *NotifyWorker) handleReservationExpired(ctx context.Context, event *models.ReservationExpiredEvent) error {
	if event.CustomerEmail == "" {
		return nil
	}

	body := fmt.Sprintf(
		"Your reservation #%d expired and the items were released.\n\nYou can place a new order any time.\n",
		event.ReservationID)
	if err := w.mailer.Send(ctx, event.CustomerEmail, "Your reservation expired", body); err != nil {
		// Log and drop: retrying an email through Kafka redelivery is
		// worse than a missed notice.
		log.Printf("Failed to send expiry email for reservation %d: %v", event.ReservationID, err)
	}
	return nil
}
