package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetCategories retrieves all active categories, parents first.
func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories,
		"SELECT * FROM categories WHERE is_active ORDER BY parent_id NULLS FIRST, name")
	return categories, err
}

// GetCategoryByID retrieves a category by ID.
func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	err := s.db.GetContext(ctx, &category, "SELECT * FROM categories WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetCategoryProducts retrieves the products of a category. For a parent
// category the products of its subcategories are included.
func (s *Store) GetCategoryProducts(ctx context.Context, categoryID int64) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, `
		SELECT p.* FROM products p
		WHERE p.category_id = $1
		   OR p.category_id IN (SELECT id FROM categories WHERE parent_id = $1)
		ORDER BY p.id`, categoryID)
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// SearchProducts matches products by name or description.
func (s *Store) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE name ILIKE $1 OR description ILIKE $1 ORDER BY id",
		"%"+term+"%")
	return products, err
}

// GetProductImages retrieves the gallery images for a product ordered by
// position.
func (s *Store) GetProductImages(ctx context.Context, productID int64) ([]models.ProductImage, error) {
	var images []models.ProductImage
	err := s.db.SelectContext(ctx, &images,
		"SELECT * FROM product_images WHERE product_id = $1 ORDER BY position, id", productID)
	return images, err
}

// SetPrimaryImage marks one gallery image as primary, demoting any previous
// primary for the same product.
func (s *Store) SetPrimaryImage(ctx context.Context, productID, imageID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE product_images SET is_primary = false WHERE product_id = $1 AND is_primary", productID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE product_images SET is_primary = true WHERE id = $1 AND product_id = $2", imageID, productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image %d for product %d: %w", imageID, productID, ErrNotFound)
	}

	return tx.Commit()
}
