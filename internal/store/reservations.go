package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// CheckoutLine is one cart line entering reservation creation.
type CheckoutLine struct {
	Product  models.Product
	Quantity int
}

// CheckoutInput carries everything needed to turn a cart snapshot into a
// reservation batch.
type CheckoutInput struct {
	CheckoutID      string
	UserID          sql.NullInt64
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string
	ExpiresAt       time.Time
	Lines           []CheckoutLine
}

const insertReservationQuery = `
	INSERT INTO reservations
		(checkout_id, user_id, product_id, quantity, customer_name, customer_email,
		 customer_phone, shipping_address, total_price, status, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
	RETURNING *`

// decrementStockQuery is the atomic compare-and-decrement: it only fires
// when enough stock remains, and it derives is_available from the new
// count. RowsAffected == 0 means the stock race was lost.
const decrementStockQuery = `
	UPDATE products
	SET stock = stock - $1, is_available = (stock - $1) > 0
	WHERE id = $2 AND stock >= $1`

const restoreStockQuery = `
	UPDATE products
	SET stock = stock + $1, is_available = true
	WHERE id = $2`

// CreateCheckout creates and confirms one reservation per cart line inside a
// single transaction. Any line failing validation or losing the stock race
// rolls back the whole batch: a customer never ends up with a partial
// reservation set.
func (s *Store) CreateCheckout(ctx context.Context, in *CheckoutInput) ([]models.Reservation, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	reservations := make([]models.Reservation, 0, len(in.Lines))

	for _, line := range in.Lines {
		var available bool
		var stock int
		err := tx.QueryRowContext(ctx,
			"SELECT stock, is_available FROM products WHERE id = $1 FOR UPDATE",
			line.Product.ID).Scan(&stock, &available)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("product %d: %w", line.Product.ID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", line.Product.ID, err)
		}
		if !available {
			return nil, fmt.Errorf("%s: %w", line.Product.Name, ErrUnavailable)
		}
		if stock < line.Quantity {
			return nil, fmt.Errorf("%s has %d units left: %w", line.Product.Name, stock, ErrInsufficientStock)
		}

		totalPrice := line.Product.EffectivePrice() * int64(line.Quantity)

		var reservation models.Reservation
		err = tx.GetContext(ctx, &reservation, insertReservationQuery,
			in.CheckoutID, in.UserID, line.Product.ID, line.Quantity,
			in.CustomerName, in.CustomerEmail, nullString(in.CustomerPhone),
			in.ShippingAddress, totalPrice, in.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create reservation: %w", err)
		}

		if err := confirmTx(ctx, tx, &reservation); err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}
	return reservations, nil
}

// confirmTx applies the pending -> confirmed transition and the stock
// decrement it owns. The caller holds the transaction.
func confirmTx(ctx context.Context, tx *sqlx.Tx, reservation *models.Reservation) error {
	res, err := tx.ExecContext(ctx, decrementStockQuery, reservation.Quantity, reservation.ProductID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for product %d: %w", reservation.ProductID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", reservation.ProductID, ErrInsufficientStock)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE reservations SET status = 'confirmed', updated_at = NOW() WHERE id = $1",
		reservation.ID); err != nil {
		return fmt.Errorf("failed to confirm reservation %d: %w", reservation.ID, err)
	}
	reservation.Status = models.ReservationStatusConfirmed
	return nil
}

// ConfirmReservation transitions a pending reservation to confirmed,
// decrementing stock exactly once. Confirming an already-confirmed
// reservation is a guarded no-op (confirmed == false); any other starting
// state is rejected. The returned bool reports whether the transition
// actually fired so callers can mirror the stock decrement elsewhere.
func (s *Store) ConfirmReservation(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var reservation models.Reservation
	err = tx.GetContext(ctx, &reservation,
		"SELECT * FROM reservations WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, err
	}

	switch reservation.Status {
	case models.ReservationStatusConfirmed:
		return false, nil
	case models.ReservationStatusPending:
	default:
		return false, fmt.Errorf("confirm from %s: %w", reservation.Status, ErrInvalidTransition)
	}

	if err := confirmTx(ctx, tx, &reservation); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// CancelReservation transitions a reservation to finalStatus (cancelled or
// expired). A confirmed reservation gets back exactly the quantity it
// reserved (restored == true); a pending one never touched stock.
// Cancelling an already terminal reservation is a no-op (changed == false),
// cancelling a converted one is rejected.
func (s *Store) CancelReservation(ctx context.Context, id int64, finalStatus string) (reservation *models.Reservation, changed, restored bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, false, err
	}
	defer tx.Rollback()

	var r models.Reservation
	err = tx.GetContext(ctx, &r,
		"SELECT * FROM reservations WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, false, false, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, false, false, err
	}

	if r.ConvertedToOrder {
		return nil, false, false, fmt.Errorf("reservation %d: %w", id, ErrAlreadyConverted)
	}
	switch r.Status {
	case models.ReservationStatusCancelled, models.ReservationStatusExpired:
		return &r, false, false, nil
	}

	restored = r.Status == models.ReservationStatusConfirmed
	if restored {
		if _, err := tx.ExecContext(ctx, restoreStockQuery,
			r.Quantity, r.ProductID); err != nil {
			return nil, false, false, fmt.Errorf("failed to restore stock for product %d: %w", r.ProductID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE reservations SET status = $1, updated_at = NOW() WHERE id = $2",
		finalStatus, id); err != nil {
		return nil, false, false, fmt.Errorf("failed to update reservation %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, false, err
	}
	r.Status = finalStatus
	return &r, true, restored, nil
}

// GetReservationByID retrieves a reservation by ID.
func (s *Store) GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error) {
	var reservation models.Reservation
	err := s.db.GetContext(ctx, &reservation, "SELECT * FROM reservations WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetReservationsByUserID retrieves a user's reservations, newest first.
func (s *Store) GetReservationsByUserID(ctx context.Context, userID int64) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.SelectContext(ctx, &reservations,
		"SELECT * FROM reservations WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return reservations, err
}

// GetReservationsByCheckoutID retrieves the batch created by one checkout.
func (s *Store) GetReservationsByCheckoutID(ctx context.Context, checkoutID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.SelectContext(ctx, &reservations,
		"SELECT * FROM reservations WHERE checkout_id = $1 ORDER BY id", checkoutID)
	return reservations, err
}

// GetReservations retrieves all reservations, newest first (admin listing).
func (s *Store) GetReservations(ctx context.Context) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.SelectContext(ctx, &reservations,
		"SELECT * FROM reservations ORDER BY created_at DESC")
	return reservations, err
}

// GetOverdueReservations retrieves reservations past their expiry that are
// still holding or awaiting stock.
func (s *Store) GetOverdueReservations(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.SelectContext(ctx, &reservations, `
		SELECT * FROM reservations
		WHERE expires_at IS NOT NULL AND expires_at < $1
		  AND status IN ('pending', 'confirmed')
		ORDER BY expires_at
		LIMIT $2`, now, limit)
	return reservations, err
}

// GetUnconvertedConfirmed retrieves confirmed reservations that never became
// orders, for reconciliation.
func (s *Store) GetUnconvertedConfirmed(ctx context.Context) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.SelectContext(ctx, &reservations, `
		SELECT * FROM reservations
		WHERE status = 'confirmed' AND NOT converted_to_order
		ORDER BY created_at`)
	return reservations, err
}

// MarkReservationNotified flips the notification flags after emails go out.
func (s *Store) MarkReservationNotified(ctx context.Context, id int64, customer, admin bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reservations
		SET customer_notified = customer_notified OR $1,
		    admin_notified = admin_notified OR $2,
		    updated_at = NOW()
		WHERE id = $3`, customer, admin, id)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
