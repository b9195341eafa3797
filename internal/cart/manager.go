package cart

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// SessionStore is the per-session cart storage (Redis in production).
type SessionStore interface {
	SaveCart(ctx context.Context, sessionID, cartJSON string) error
	LoadCart(ctx context.Context, sessionID string) (string, error)
	DeleteCart(ctx context.Context, sessionID string) error
}

// ProfileStore is the durable cart storage for authenticated users.
type ProfileStore interface {
	GetProfileByUserID(ctx context.Context, userID int64) (*models.Profile, error)
	SaveProfileCart(ctx context.Context, userID int64, cartJSON string) error
	ClearProfileCart(ctx context.Context, userID int64) error
}

// Catalog resolves cart lines against products for pricing and display.
type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// Line is a cart line joined with its product.
type Line struct {
	Product   models.Product `json:"product"`
	Quantity  int            `json:"quantity"`
	UnitPrice int64          `json:"unit_price"`
	LineTotal int64          `json:"line_total"`
}

// Manager loads, saves and prices carts.
type Manager struct {
	sessions SessionStore
	profiles ProfileStore
	catalog  Catalog
	logger   *zap.Logger
}

// NewManager creates a cart manager.
func NewManager(sessions SessionStore, profiles ProfileStore, catalog Catalog) *Manager {
	return &Manager{
		sessions: sessions,
		profiles: profiles,
		catalog:  catalog,
		logger:   util.GetLogger(),
	}
}

// Load retrieves the session's cart, empty when none exists.
func (m *Manager) Load(ctx context.Context, sessionID string) (*Cart, error) {
	data, err := m.sessions.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return Unmarshal(data)
}

// Save writes the cart back to the session and, for authenticated users, to
// the profile row.
func (m *Manager) Save(ctx context.Context, sessionID string, userID sql.NullInt64, c *Cart) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := m.sessions.SaveCart(ctx, sessionID, data); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	if userID.Valid {
		if err := m.profiles.SaveProfileCart(ctx, userID.Int64, data); err != nil {
			m.logger.Warn("Failed to persist cart to profile",
				zap.Int64("user_id", userID.Int64),
				zap.Error(err))
		}
	}
	return nil
}

// Clear drops the session cart and the durable copy.
func (m *Manager) Clear(ctx context.Context, sessionID string, userID sql.NullInt64) error {
	if err := m.sessions.DeleteCart(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if userID.Valid {
		if err := m.profiles.ClearProfileCart(ctx, userID.Int64); err != nil {
			m.logger.Warn("Failed to clear profile cart",
				zap.Int64("user_id", userID.Int64),
				zap.Error(err))
		}
	}
	return nil
}

// MergeSaved folds the user's durable cart into the session cart on login
// and saves the result both places.
func (m *Manager) MergeSaved(ctx context.Context, sessionID string, userID int64) (*Cart, error) {
	current, err := m.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	profile, err := m.profiles.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.SavedCart.Valid && profile.SavedCart.String != "" {
		saved, err := Unmarshal(profile.SavedCart.String)
		if err != nil {
			m.logger.Warn("Discarding unreadable saved cart",
				zap.Int64("user_id", userID),
				zap.Error(err))
		} else {
			current.Merge(saved)
		}
	}

	uid := sql.NullInt64{Int64: userID, Valid: true}
	if err := m.Save(ctx, sessionID, uid, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Detail prices the cart against the catalog. Lines keep cart order; the
// effective unit price honors sales.
func (m *Manager) Detail(ctx context.Context, c *Cart) ([]Line, int64, error) {
	items := c.Items()
	if len(items) == 0 {
		return []Line{}, 0, nil
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	products, err := m.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load cart products: %w", err)
	}
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]Line, 0, len(items))
	var total int64
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			// Product removed from the catalog since it was added.
			continue
		}
		unit := product.EffectivePrice()
		lineTotal := unit * int64(item.Quantity)
		lines = append(lines, Line{
			Product:   product,
			Quantity:  item.Quantity,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		total += lineTotal
	}
	return lines, total, nil
}
