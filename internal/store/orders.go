package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
)

const insertOrderQuery = `
	INSERT INTO orders
		(user_id, full_name, email, shipping_address, amount_paid,
		 shipping_method_id, shipping_cost, total_with_shipping,
		 reservation_id, payment_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING *`

// ConvertReservation turns a confirmed reservation into an order with a
// snapshot of its customer, shipping and pricing data. The conversion is
// transactional and idempotent: a reservation converts at most once, and a
// repeat call returns the existing order with created == false.
func (s *Store) ConvertReservation(ctx context.Context, reservationID int64, paymentID string, shippingMethodID sql.NullInt64, shippingCost int64) (*models.Order, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var reservation models.Reservation
	err = tx.GetContext(ctx, &reservation,
		"SELECT * FROM reservations WHERE id = $1 FOR UPDATE", reservationID)
	if err == sql.ErrNoRows {
		return nil, false, fmt.Errorf("reservation %d: %w", reservationID, ErrNotFound)
	}
	if err != nil {
		return nil, false, err
	}

	if reservation.ConvertedToOrder {
		var existing models.Order
		err := tx.GetContext(ctx, &existing,
			"SELECT * FROM orders WHERE reservation_id = $1", reservationID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load order for converted reservation %d: %w", reservationID, err)
		}
		return &existing, false, nil
	}
	if reservation.Status != models.ReservationStatusConfirmed {
		return nil, false, fmt.Errorf("convert from %s: %w", reservation.Status, ErrInvalidTransition)
	}

	var order models.Order
	err = tx.GetContext(ctx, &order, insertOrderQuery,
		reservation.UserID, reservation.CustomerName, reservation.CustomerEmail,
		reservation.ShippingAddress, reservation.TotalPrice,
		shippingMethodID, shippingCost, reservation.TotalPrice+shippingCost,
		reservation.ID, nullString(paymentID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	unitPrice := reservation.TotalPrice / int64(reservation.Quantity)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`,
		order.ID, reservation.ProductID, reservation.Quantity, unitPrice); err != nil {
		return nil, false, fmt.Errorf("failed to create order item: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE reservations SET converted_to_order = true, updated_at = NOW() WHERE id = $1",
		reservation.ID); err != nil {
		return nil, false, fmt.Errorf("failed to flag reservation %d: %w", reservation.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &order, true, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByShipped lists orders filtered by shipping state, newest first.
func (s *Store) GetOrdersByShipped(ctx context.Context, shipped bool) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE shipped = $1 ORDER BY created_at DESC", shipped)
	return orders, err
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// SetOrderShipped flips the shipping flag. The shipped date is stamped only
// on the unshipped -> shipped edge.
func (s *Store) SetOrderShipped(ctx context.Context, orderID int64, shipped bool) error {
	var err error
	if shipped {
		_, err = s.db.ExecContext(ctx, `
			UPDATE orders
			SET shipped = true,
			    date_shipped = COALESCE(date_shipped, NOW())
			WHERE id = $1`, orderID)
	} else {
		_, err = s.db.ExecContext(ctx,
			"UPDATE orders SET shipped = false WHERE id = $1", orderID)
	}
	return err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// GetShippingMethods lists active shipping methods.
func (s *Store) GetShippingMethods(ctx context.Context) ([]models.ShippingMethod, error) {
	var methods []models.ShippingMethod
	err := s.db.SelectContext(ctx, &methods,
		"SELECT * FROM shipping_methods WHERE is_active ORDER BY base_cost")
	return methods, err
}

// GetShippingMethodByID retrieves a shipping method by ID.
func (s *Store) GetShippingMethodByID(ctx context.Context, id int64) (*models.ShippingMethod, error) {
	var method models.ShippingMethod
	err := s.db.GetContext(ctx, &method, "SELECT * FROM shipping_methods WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("shipping method %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &method, nil
}

// MarkNotificationProcessed records a webhook payment ID. It returns false
// when the ID was already seen, which is the duplicate-delivery guard.
func (s *Store) MarkNotificationProcessed(ctx context.Context, paymentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_notifications (payment_id, status)
		VALUES ($1, 'received')
		ON CONFLICT (payment_id) DO NOTHING`, paymentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetNotificationStatus records the gateway-reported status for a processed
// notification.
func (s *Store) SetNotificationStatus(ctx context.Context, paymentID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE processed_notifications SET status = $1, processed_at = NOW() WHERE payment_id = $2",
		status, paymentID)
	return err
}
