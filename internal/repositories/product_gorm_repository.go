package repositories

import (
	"context"
	"errors"
	"fmt"

	"vinotheque/internal/models"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

var summaryColumns = []string{
	"id", "reference", "name", "color", "vintage", "price_eur",
	"producer", "stock_quantity", "rating", "region", "created_at",
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

func imagesByAge(tx *gorm.DB) *gorm.DB {
	return tx.Order("created_at ASC").Order("id ASC")
}

// ListInStock retrieves one page of in-stock products from the database.
func (r *GORMProductRepository) ListInStock(ctx context.Context, offset, limit int) ([]models.ProductSummary, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Select(summaryColumns).
		Where("stock_quantity > ?", 0).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Preload("Images", func(tx *gorm.DB) *gorm.DB {
			return imagesByAge(tx.Select("id", "product_id", "object_key", "created_at"))
		}).
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list products in stock")
	}

	summaries := make([]models.ProductSummary, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, p.Summary())
	}
	return summaries, nil
}

// CountInStock counts products with a positive stock.
func (r *GORMProductRepository) CountInStock(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("stock_quantity > ?", 0).Count(&total).Error; err != nil {
		return 0, pkgerrors.Wrap(err, "failed to count products in stock")
	}
	return total, nil
}

// GetByID retrieves a single product and its images by the product ID.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Preload("Images", imagesByAge).First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
		}
		return nil, pkgerrors.Wrapf(err, "failed to get product by ID %s", id)
	}
	return &product, nil
}

// Create creates a new product, and any images attached to it, in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	for i := range product.Images {
		if product.Images[i].ID == "" {
			product.Images[i].ID = uuid.New().String()
		}
		product.Images[i].ProductID = product.ID
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("product reference %s: %w", product.Reference, ErrDuplicate)
		}
		return pkgerrors.Wrap(err, "failed to create product")
	}
	return nil
}
