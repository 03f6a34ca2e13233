package repositories

import (
	"context"
	"errors"

	"vinotheque/internal/models"
)

var (
	// ErrNotFound is wrapped by repositories when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is wrapped by repositories when a unique column would collide.
	ErrDuplicate = errors.New("duplicate record")
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	// ListInStock returns one page of products with a positive stock,
	// newest first, projected onto the listing fields.
	ListInStock(ctx context.Context, offset, limit int) ([]models.ProductSummary, error)
	CountInStock(ctx context.Context) (int64, error)
	// GetByID returns the full product with all of its images.
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
}
