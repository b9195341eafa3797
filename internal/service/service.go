// Package service holds the business logic between the HTTP handlers and the
// persistence layer. Services depend on narrow interfaces so tests can swap
// in fakes for the store, the stock cache, the payment gateway, the mailer
// and the event publisher.
package service

import (
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// formatCentavos renders a centavo amount as pesos for email bodies.
func formatCentavos(amount int64) string {
	return fmt.Sprintf("$%d.%02d", amount/100, amount%100)
}
