package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Domain errors surfaced by state transitions. Callers branch on these with
// errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnavailable       = errors.New("product not available")
	ErrInvalidTransition = errors.New("invalid reservation state transition")
	ErrAlreadyConverted  = errors.New("reservation already converted to order")
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection, used by tests.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProfileByUserID retrieves the profile row for a user.
func (s *Store) GetProfileByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, "SELECT * FROM profiles WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfileCart persists the serialized cart snapshot for a user.
func (s *Store) SaveProfileCart(ctx context.Context, userID int64, cartJSON string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET saved_cart = $1, updated_at = NOW() WHERE user_id = $2",
		cartJSON, userID)
	return err
}

// ClearProfileCart empties the durable cart snapshot for a user.
func (s *Store) ClearProfileCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET saved_cart = '', updated_at = NOW() WHERE user_id = $1", userID)
	return err
}
