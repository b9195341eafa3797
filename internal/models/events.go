package models

import "time"

// Event types
const (
	EventTypeCheckoutCompleted    = "CHECKOUT_COMPLETED"
	EventTypeReservationCancelled = "RESERVATION_CANCELLED"
	EventTypeReservationExpired   = "RESERVATION_EXPIRED"
	EventTypePaymentApproved      = "PAYMENT_APPROVED"
	EventTypePaymentRejected      = "PAYMENT_REJECTED"
	EventTypeOrderConverted       = "ORDER_CONVERTED"
	EventTypeOrderShipped         = "ORDER_SHIPPED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReservationLine is the per-product payload carried by checkout events.
type ReservationLine struct {
	ReservationID int64 `json:"reservation_id"`
	ProductID     int64 `json:"product_id"`
	Quantity      int   `json:"quantity"`
	TotalPrice    int64 `json:"total_price"`
}

// CheckoutCompletedEvent published when a cart is turned into a confirmed
// reservation batch.
type CheckoutCompletedEvent struct {
	BaseEvent
	CheckoutID    string            `json:"checkout_id"`
	UserID        int64             `json:"user_id,omitempty"`
	CustomerEmail string            `json:"customer_email"`
	TotalAmount   int64             `json:"total_amount"`
	Lines         []ReservationLine `json:"lines"`
}

// ReservationCancelledEvent published when a reservation is cancelled and
// its stock restored.
type ReservationCancelledEvent struct {
	BaseEvent
	ReservationID int64  `json:"reservation_id"`
	ProductID     int64  `json:"product_id"`
	Quantity      int    `json:"quantity"`
	Reason        string `json:"reason"`
}

// ReservationExpiredEvent published by the expiry sweeper.
type ReservationExpiredEvent struct {
	BaseEvent
	ReservationID int64  `json:"reservation_id"`
	ProductID     int64  `json:"product_id"`
	Quantity      int    `json:"quantity"`
	CustomerEmail string `json:"customer_email"`
}

// PaymentApprovedEvent published after the gateway webhook reports an
// approved payment. CheckoutID comes from the payment's external reference.
type PaymentApprovedEvent struct {
	BaseEvent
	PaymentID  string `json:"payment_id"`
	CheckoutID string `json:"checkout_id,omitempty"`
	PayerEmail string `json:"payer_email,omitempty"`
	Amount     int64  `json:"amount"`
}

// PaymentRejectedEvent published for non-approved webhook statuses.
type PaymentRejectedEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// OrderConvertedEvent published when a confirmed reservation becomes an
// order.
type OrderConvertedEvent struct {
	BaseEvent
	OrderID       int64 `json:"order_id"`
	ReservationID int64 `json:"reservation_id"`
	AmountPaid    int64 `json:"amount_paid"`
}

// OrderShippedEvent published when an order's shipping status flips.
type OrderShippedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
	Shipped bool  `json:"shipped"`
}
