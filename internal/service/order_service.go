package service

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// OrderStore is the persistence surface for reservation conversion and order
// administration.
type OrderStore interface {
	GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error)
	GetReservationsByCheckoutID(ctx context.Context, checkoutID string) ([]models.Reservation, error)
	GetUnconvertedConfirmed(ctx context.Context) ([]models.Reservation, error)
	ConvertReservation(ctx context.Context, reservationID int64, paymentID string, shippingMethodID sql.NullInt64, shippingCost int64) (*models.Order, bool, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersByShipped(ctx context.Context, shipped bool) ([]models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	SetOrderShipped(ctx context.Context, orderID int64, shipped bool) error
	GetShippingMethods(ctx context.Context) ([]models.ShippingMethod, error)
	GetShippingMethodByID(ctx context.Context, id int64) (*models.ShippingMethod, error)
}

// OrderEvents publishes order lifecycle events.
type OrderEvents interface {
	PublishOrderConverted(ctx context.Context, event *models.OrderConvertedEvent) error
	PublishOrderShipped(ctx context.Context, event *models.OrderShippedEvent) error
}

// OrderDetail is an order joined with its line items.
type OrderDetail struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// OrderService turns confirmed reservations into orders and manages the
// shipping dashboard.
type OrderService struct {
	store  OrderStore
	events OrderEvents
	logger *zap.Logger
}

// NewOrderService creates an order service. events may be nil.
func NewOrderService(st OrderStore, events OrderEvents) *OrderService {
	return &OrderService{
		store:  st,
		events: events,
		logger: util.GetLogger(),
	}
}

// Convert turns one confirmed reservation into an order. shippingMethodID 0
// means no carrier was chosen. Converting an already converted reservation
// returns the existing order with created == false.
func (s *OrderService) Convert(ctx context.Context, reservationID int64, paymentID string, shippingMethodID int64, weightKg int) (*models.Order, bool, error) {
	var methodID sql.NullInt64
	var shippingCost int64

	if shippingMethodID > 0 {
		method, err := s.store.GetShippingMethodByID(ctx, shippingMethodID)
		if err != nil {
			return nil, false, err
		}
		reservation, err := s.store.GetReservationByID(ctx, reservationID)
		if err != nil {
			return nil, false, err
		}
		methodID = sql.NullInt64{Int64: method.ID, Valid: true}
		shippingCost = method.Cost(reservation.TotalPrice, weightKg)
	}

	order, created, err := s.store.ConvertReservation(ctx, reservationID, paymentID, methodID, shippingCost)
	if err != nil {
		return nil, false, err
	}
	if created {
		util.OrdersConvertedTotal.Inc()
		s.logger.Info("Reservation converted to order",
			zap.Int64("reservation_id", reservationID),
			zap.Int64("order_id", order.ID))
		s.publishConverted(ctx, order, reservationID)
	}
	return order, created, nil
}

// ConvertCheckout converts every confirmed reservation in a checkout batch,
// typically after the gateway reports the batch's payment approved. Already
// converted reservations are picked up idempotently.
func (s *OrderService) ConvertCheckout(ctx context.Context, checkoutID, paymentID string) ([]models.Order, error) {
	reservations, err := s.store.GetReservationsByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout %s: %w", checkoutID, err)
	}

	var orders []models.Order
	var lastErr error
	for _, r := range reservations {
		if r.Status != models.ReservationStatusConfirmed && !r.ConvertedToOrder {
			continue
		}
		order, _, err := s.Convert(ctx, r.ID, paymentID, 0, 0)
		if err != nil {
			s.logger.Error("Failed to convert reservation",
				zap.Int64("reservation_id", r.ID),
				zap.String("checkout_id", checkoutID),
				zap.Error(err))
			lastErr = err
			continue
		}
		orders = append(orders, *order)
	}

	if len(orders) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return orders, nil
}

// Reconcile converts confirmed reservations that never became orders. It
// backstops lost webhook deliveries and crashed conversions.
func (s *OrderService) Reconcile(ctx context.Context) (int, error) {
	reservations, err := s.store.GetUnconvertedConfirmed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list unconverted reservations: %w", err)
	}

	converted := 0
	for _, r := range reservations {
		if _, created, err := s.Convert(ctx, r.ID, "", 0, 0); err != nil {
			s.logger.Error("Reconcile conversion failed",
				zap.Int64("reservation_id", r.ID),
				zap.Error(err))
		} else if created {
			converted++
		}
	}

	if converted > 0 {
		s.logger.Info("Reconciled unconverted reservations", zap.Int("count", converted))
	}
	return converted, nil
}

// GetOrder retrieves an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.store.GetOrderItemsByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *order, Items: items}, nil
}

// ListOrdersByShipped lists orders for the shipped or not-shipped dashboard.
func (s *OrderService) ListOrdersByShipped(ctx context.Context, shipped bool) ([]models.Order, error) {
	return s.store.GetOrdersByShipped(ctx, shipped)
}

// ListUserOrders lists a user's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}

// SetShipped flips an order's shipping flag. The shipped date sticks to the
// first unshipped to shipped edge.
func (s *OrderService) SetShipped(ctx context.Context, orderID int64, shipped bool) (*models.Order, error) {
	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	if err := s.store.SetOrderShipped(ctx, orderID, shipped); err != nil {
		return nil, fmt.Errorf("failed to update order %d: %w", orderID, err)
	}
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order shipping updated",
		zap.Int64("order_id", orderID),
		zap.Bool("shipped", shipped))

	if s.events != nil {
		event := &models.OrderShippedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderShipped),
			OrderID:   orderID,
			Shipped:   shipped,
		}
		if err := s.events.PublishOrderShipped(ctx, event); err != nil {
			s.logger.Warn("Failed to publish shipping event", zap.Error(err))
		}
	}
	return order, nil
}

// ListShippingMethods lists the active carriers.
func (s *OrderService) ListShippingMethods(ctx context.Context) ([]models.ShippingMethod, error) {
	return s.store.GetShippingMethods(ctx)
}

// GetShippingMethod retrieves one carrier.
func (s *OrderService) GetShippingMethod(ctx context.Context, id int64) (*models.ShippingMethod, error) {
	return s.store.GetShippingMethodByID(ctx, id)
}

// QuoteShipping prices a carrier against an order total and weight.
func (s *OrderService) QuoteShipping(ctx context.Context, methodID int64, orderTotal int64, weightKg int) (int64, error) {
	method, err := s.store.GetShippingMethodByID(ctx, methodID)
	if err != nil {
		return 0, err
	}
	return method.Cost(orderTotal, weightKg), nil
}

func (s *OrderService) publishConverted(ctx context.Context, order *models.Order, reservationID int64) {
	if s.events == nil {
		return
	}
	event := &models.OrderConvertedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderConverted),
		OrderID:       order.ID,
		ReservationID: reservationID,
		AmountPaid:    order.AmountPaid,
	}
	if err := s.events.PublishOrderConverted(ctx, event); err != nil {
		s.logger.Warn("Failed to publish conversion event", zap.Error(err))
	}
}
