package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReservationStore is the persistence surface the reservation flow needs.
type ReservationStore interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	CreateCheckout(ctx context.Context, in *store.CheckoutInput) ([]models.Reservation, error)
	ConfirmReservation(ctx context.Context, id int64) (bool, error)
	CancelReservation(ctx context.Context, id int64, finalStatus string) (reservation *models.Reservation, changed, restored bool, err error)
	GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error)
	GetReservationsByUserID(ctx context.Context, userID int64) ([]models.Reservation, error)
	GetReservationsByCheckoutID(ctx context.Context, checkoutID string) ([]models.Reservation, error)
	GetReservations(ctx context.Context) ([]models.Reservation, error)
	GetOverdueReservations(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
	MarkReservationNotified(ctx context.Context, id int64, customer, admin bool) error
}

// StockCache is the Redis mirror of product stock counts. The database is
// the authority; the cache only rejects obviously doomed checkouts early.
type StockCache interface {
	ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error)
	RestoreStock(ctx context.Context, productID int64, quantity int) error
	SetStock(ctx context.Context, productID int64, stock int) error
	GetStock(ctx context.Context, productID int64) (int, error)
}

// ReservationEvents publishes reservation lifecycle events.
type ReservationEvents interface {
	PublishCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error
	PublishReservationCancelled(ctx context.Context, event *models.ReservationCancelledEvent) error
	PublishReservationExpired(ctx context.Context, event *models.ReservationExpiredEvent) error
}

// LineError describes why one cart line cannot be reserved.
type LineError struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Message   string `json:"message"`
}

// CheckoutValidationError aggregates per-line failures so a customer sees
// every problem in one response instead of fixing them one at a time.
type CheckoutValidationError struct {
	Lines []LineError `json:"errors"`
}

func (e *CheckoutValidationError) Error() string {
	msgs := make([]string, len(e.Lines))
	for i, line := range e.Lines {
		msgs[i] = line.Message
	}
	return strings.Join(msgs, "; ")
}

// CheckoutRequest carries the billing form plus a snapshot of the cart.
type CheckoutRequest struct {
	UserID          sql.NullInt64
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string
	Items           []cart.Item
}

// CheckoutResult is the confirmed reservation batch.
type CheckoutResult struct {
	CheckoutID   string               `json:"checkout_id"`
	Reservations []models.Reservation `json:"reservations"`
	Total        int64                `json:"total"`
	ExpiresAt    time.Time            `json:"expires_at"`
}

// ReservationService owns the checkout and reservation lifecycle.
type ReservationService struct {
	store      ReservationStore
	cache      StockCache
	events     ReservationEvents
	mailer     Mailer
	ttl        time.Duration
	adminEmail string
	logger     *zap.Logger
}

// NewReservationService creates a reservation service. events and mailer may
// be nil; the corresponding notifications are skipped.
func NewReservationService(st ReservationStore, cache StockCache, events ReservationEvents, mailer Mailer, ttl time.Duration, adminEmail string) *ReservationService {
	return &ReservationService{
		store:      st,
		cache:      cache,
		events:     events,
		mailer:     mailer,
		ttl:        ttl,
		adminEmail: adminEmail,
		logger:     util.GetLogger(),
	}
}

// Checkout turns a cart snapshot into a confirmed reservation batch. The
// batch is all-or-nothing: if any line fails validation or loses the stock
// race, nothing is reserved.
func (s *ReservationService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.Checkout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateCheckout(req); err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	products, err := s.loadProducts(ctx, req.Items)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("internal").Inc()
		return nil, err
	}

	if verr := validateLines(req.Items, products); verr != nil {
		util.CheckoutsFailedTotal.WithLabelValues("stock").Inc()
		return nil, verr
	}

	held, ok := s.precheckCache(ctx, req.Items, products)
	if !ok {
		util.StockConflictsTotal.Inc()
		util.CheckoutsFailedTotal.WithLabelValues("stock").Inc()
		return nil, &CheckoutValidationError{Lines: []LineError{{
			Message: "not enough stock to complete the checkout",
		}}}
	}

	input := &store.CheckoutInput{
		CheckoutID:      uuid.NewString(),
		UserID:          req.UserID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		ExpiresAt:       time.Now().Add(s.ttl),
	}
	for _, item := range req.Items {
		input.Lines = append(input.Lines, store.CheckoutLine{
			Product:  products[item.ProductID],
			Quantity: item.Quantity,
		})
	}

	reservations, err := s.store.CreateCheckout(ctx, input)
	if err != nil {
		s.releaseCache(ctx, held)
		switch {
		case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrUnavailable):
			util.StockConflictsTotal.Inc()
			util.CheckoutsFailedTotal.WithLabelValues("stock").Inc()
		default:
			util.CheckoutsFailedTotal.WithLabelValues("internal").Inc()
		}
		return nil, err
	}

	util.CheckoutsCompletedTotal.Inc()
	util.ReservationsCreatedTotal.Add(float64(len(reservations)))

	result := &CheckoutResult{
		CheckoutID:   input.CheckoutID,
		Reservations: reservations,
		ExpiresAt:    input.ExpiresAt,
	}
	for _, r := range reservations {
		result.Total += r.TotalPrice
	}

	s.logger.Info("Checkout completed",
		zap.String("checkout_id", result.CheckoutID),
		zap.Int("reservations", len(reservations)),
		zap.Int64("total", result.Total))

	s.notifyCheckout(ctx, req, result, products)
	s.publishCheckout(ctx, req, result)

	return result, nil
}

func validateCheckout(req *CheckoutRequest) error {
	verr := &CheckoutValidationError{}
	if strings.TrimSpace(req.CustomerName) == "" {
		verr.Lines = append(verr.Lines, LineError{Message: "customer name is required"})
	}
	if strings.TrimSpace(req.CustomerEmail) == "" {
		verr.Lines = append(verr.Lines, LineError{Message: "customer email is required"})
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		verr.Lines = append(verr.Lines, LineError{Message: "shipping address is required"})
	}
	if len(req.Items) == 0 {
		verr.Lines = append(verr.Lines, LineError{Message: "cart is empty"})
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			verr.Lines = append(verr.Lines, LineError{
				ProductID: item.ProductID,
				Message:   fmt.Sprintf("invalid quantity %d for product %d", item.Quantity, item.ProductID),
			})
		}
	}
	if len(verr.Lines) > 0 {
		return verr
	}
	return nil
}

func (s *ReservationService) loadProducts(ctx context.Context, items []cart.Item) (map[int64]models.Product, error) {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// validateLines collects every per-line problem instead of failing on the
// first one.
func validateLines(items []cart.Item, products map[int64]models.Product) *CheckoutValidationError {
	verr := &CheckoutValidationError{}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			verr.Lines = append(verr.Lines, LineError{
				ProductID: item.ProductID,
				Message:   fmt.Sprintf("product %d no longer exists", item.ProductID),
			})
			continue
		}
		if !product.IsAvailable {
			verr.Lines = append(verr.Lines, LineError{
				ProductID: product.ID,
				Name:      product.Name,
				Message:   fmt.Sprintf("%s is not available", product.Name),
			})
			continue
		}
		if product.Stock < item.Quantity {
			verr.Lines = append(verr.Lines, LineError{
				ProductID: product.ID,
				Name:      product.Name,
				Message:   fmt.Sprintf("%s has only %d units left", product.Name, product.Stock),
			})
		}
	}
	if len(verr.Lines) > 0 {
		return verr
	}
	return nil
}

// precheckCache runs the cart through the Redis stock mirror. Cache errors
// are ignored so a degraded Redis never blocks checkouts; a clean "no stock"
// answer fails fast before the database transaction starts.
func (s *ReservationService) precheckCache(ctx context.Context, items []cart.Item, products map[int64]models.Product) ([]cart.Item, bool) {
	held := make([]cart.Item, 0, len(items))
	for _, item := range items {
		ok, err := s.cache.ReserveStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			s.logger.Warn("Stock cache precheck failed",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
			continue
		}
		if !ok {
			s.logger.Info("Checkout rejected by stock cache",
				zap.Int64("product_id", item.ProductID),
				zap.String("product", products[item.ProductID].Name),
				zap.Int("quantity", item.Quantity))
			s.releaseCache(ctx, held)
			return nil, false
		}
		held = append(held, item)
	}
	return held, true
}

func (s *ReservationService) releaseCache(ctx context.Context, held []cart.Item) {
	for _, item := range held {
		if err := s.cache.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Warn("Failed to release cached stock",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}
}

// Confirm transitions a pending reservation to confirmed. Checkout confirms
// its batch inline, so this only serves reservations created pending by
// admin tooling.
func (s *ReservationService) Confirm(ctx context.Context, id int64) error {
	confirmed, err := s.store.ConfirmReservation(ctx, id)
	if err != nil {
		return err
	}
	if !confirmed {
		// Repeat confirm: the database did not decrement, so the cache
		// mirror must not either.
		return nil
	}
	reservation, err := s.store.GetReservationByID(ctx, id)
	if err == nil {
		if _, err := s.cache.ReserveStock(ctx, reservation.ProductID, reservation.Quantity); err != nil {
			s.logger.Warn("Failed to mirror confirm to stock cache",
				zap.Int64("reservation_id", id),
				zap.Error(err))
		}
	}
	return nil
}

// Cancel cancels a reservation, restoring stock when it was confirmed.
// Cancelling an already terminal reservation is a no-op.
func (s *ReservationService) Cancel(ctx context.Context, id int64, reason string) (*models.Reservation, error) {
	reservation, changed, restored, err := s.store.CancelReservation(ctx, id, models.ReservationStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !changed {
		return reservation, nil
	}

	// Pending cancellations held no stock, so only the cache mirror and
	// the stock metric are gated on restored; the log line and the event
	// fire for every real transition.
	if restored {
		util.ReservationsCancelledTotal.Inc()
		if err := s.cache.RestoreStock(ctx, reservation.ProductID, reservation.Quantity); err != nil {
			s.logger.Warn("Failed to restore cached stock",
				zap.Int64("reservation_id", id),
				zap.Error(err))
		}
	}

	s.logger.Info("Reservation cancelled",
		zap.Int64("reservation_id", id),
		zap.String("reason", reason))

	if s.events != nil {
		event := &models.ReservationCancelledEvent{
			BaseEvent:     newBaseEvent(models.EventTypeReservationCancelled),
			ReservationID: reservation.ID,
			ProductID:     reservation.ProductID,
			Quantity:      reservation.Quantity,
			Reason:        reason,
		}
		if err := s.events.PublishReservationCancelled(ctx, event); err != nil {
			s.logger.Warn("Failed to publish cancellation event", zap.Error(err))
		}
	}
	return reservation, nil
}

// ExpireOverdue sweeps reservations past their expiry into the expired state
// and returns the stock they held. One bad reservation never aborts the
// sweep.
func (s *ReservationService) ExpireOverdue(ctx context.Context, batchSize int) (int, error) {
	overdue, err := s.store.GetOverdueReservations(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue reservations: %w", err)
	}

	expired := 0
	for i := range overdue {
		id := overdue[i].ID
		reservation, changed, restored, err := s.store.CancelReservation(ctx, id, models.ReservationStatusExpired)
		if err != nil {
			// Converted or deleted between the listing and the sweep.
			s.logger.Warn("Skipping overdue reservation",
				zap.Int64("reservation_id", id),
				zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		expired++
		util.ReservationsExpiredTotal.Inc()

		if restored {
			if err := s.cache.RestoreStock(ctx, reservation.ProductID, reservation.Quantity); err != nil {
				s.logger.Warn("Failed to restore cached stock",
					zap.Int64("reservation_id", id),
					zap.Error(err))
			}
		}

		if s.events != nil {
			event := &models.ReservationExpiredEvent{
				BaseEvent:     newBaseEvent(models.EventTypeReservationExpired),
				ReservationID: reservation.ID,
				ProductID:     reservation.ProductID,
				Quantity:      reservation.Quantity,
				CustomerEmail: reservation.CustomerEmail,
			}
			if err := s.events.PublishReservationExpired(ctx, event); err != nil {
				s.logger.Warn("Failed to publish expiry event", zap.Error(err))
			}
		}
	}

	if expired > 0 {
		s.logger.Info("Expired overdue reservations", zap.Int("count", expired))
	}
	return expired, nil
}

// SyncStockCache seeds the Redis stock mirror from the database, logging any
// drift it corrects. Run at startup and whenever the cache is suspected
// stale.
func (s *ReservationService) SyncStockCache(ctx context.Context) error {
	products, err := s.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products for stock sync: %w", err)
	}
	for _, p := range products {
		if cached, err := s.cache.GetStock(ctx, p.ID); err == nil && cached != p.Stock {
			s.logger.Warn("Correcting stock cache drift",
				zap.Int64("product_id", p.ID),
				zap.Int("cached", cached),
				zap.Int("stock", p.Stock))
		}
		if err := s.cache.SetStock(ctx, p.ID, p.Stock); err != nil {
			return fmt.Errorf("failed to sync stock for product %d: %w", p.ID, err)
		}
	}
	s.logger.Info("Stock cache synced", zap.Int("products", len(products)))
	return nil
}

// GetReservation retrieves a single reservation.
func (s *ReservationService) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.store.GetReservationByID(ctx, id)
}

// ListUserReservations lists a user's reservations, newest first.
func (s *ReservationService) ListUserReservations(ctx context.Context, userID int64) ([]models.Reservation, error) {
	return s.store.GetReservationsByUserID(ctx, userID)
}

// ListReservations lists all reservations (admin view).
func (s *ReservationService) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	return s.store.GetReservations(ctx)
}

// GetCheckout retrieves the reservation batch for a checkout ID.
func (s *ReservationService) GetCheckout(ctx context.Context, checkoutID string) ([]models.Reservation, error) {
	reservations, err := s.store.GetReservationsByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, fmt.Errorf("checkout %s: %w", checkoutID, store.ErrNotFound)
	}
	return reservations, nil
}

func (s *ReservationService) notifyCheckout(ctx context.Context, req *CheckoutRequest, result *CheckoutResult, products map[int64]models.Product) {
	if s.mailer == nil {
		return
	}

	var lines strings.Builder
	for _, r := range result.Reservations {
		product := products[r.ProductID]
		fmt.Fprintf(&lines, "  %d x %s (%s)\n", r.Quantity, product.Name, formatCentavos(r.TotalPrice))
	}

	customerOK := false
	body := fmt.Sprintf(
		"Hi %s,\n\nYour items are reserved:\n\n%s\nTotal: %s\n\nComplete the payment before %s to keep the reservation.\n",
		req.CustomerName, lines.String(), formatCentavos(result.Total),
		result.ExpiresAt.Format("Mon, 02 Jan 2006 15:04 MST"))
	if err := s.mailer.Send(ctx, req.CustomerEmail, "Your reservation is confirmed", body); err != nil {
		util.EmailFailuresTotal.Inc()
		s.logger.Warn("Failed to send customer checkout email", zap.Error(err))
	} else {
		customerOK = true
		util.EmailsSentTotal.WithLabelValues("checkout_customer").Inc()
	}

	adminOK := false
	if s.adminEmail != "" {
		body := fmt.Sprintf(
			"New reservation batch %s\n\nCustomer: %s <%s>\nPhone: %s\nShip to: %s\n\n%s\nTotal: %s\n",
			result.CheckoutID, req.CustomerName, req.CustomerEmail, req.CustomerPhone,
			req.ShippingAddress, lines.String(), formatCentavos(result.Total))
		if err := s.mailer.Send(ctx, s.adminEmail, "New reservation batch", body); err != nil {
			util.EmailFailuresTotal.Inc()
			s.logger.Warn("Failed to send admin checkout email", zap.Error(err))
		} else {
			adminOK = true
			util.EmailsSentTotal.WithLabelValues("checkout_admin").Inc()
		}
	}

	if !customerOK && !adminOK {
		return
	}
	for _, r := range result.Reservations {
		if err := s.store.MarkReservationNotified(ctx, r.ID, customerOK, adminOK); err != nil {
			s.logger.Warn("Failed to flag reservation as notified",
				zap.Int64("reservation_id", r.ID),
				zap.Error(err))
		}
	}
}

func (s *ReservationService) publishCheckout(ctx context.Context, req *CheckoutRequest, result *CheckoutResult) {
	if s.events == nil {
		return
	}
	event := &models.CheckoutCompletedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeCheckoutCompleted),
		CheckoutID:    result.CheckoutID,
		UserID:        req.UserID.Int64,
		CustomerEmail: req.CustomerEmail,
		TotalAmount:   result.Total,
	}
	for _, r := range result.Reservations {
		event.Lines = append(event.Lines, models.ReservationLine{
			ReservationID: r.ID,
			ProductID:     r.ProductID,
			Quantity:      r.Quantity,
			TotalPrice:    r.TotalPrice,
		})
	}
	if err := s.events.PublishCheckoutCompleted(ctx, event); err != nil {
		s.logger.Warn("Failed to publish checkout event", zap.Error(err))
	}
}
