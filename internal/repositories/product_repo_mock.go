package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vinotheque/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex

	calls map[string]int // read invocations by method name
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
		calls:    make(map[string]int),
	}
}

// Calls reports how many times method has been invoked.
func (r *MockProductRepository) Calls(method string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls[method]
}

func (r *MockProductRepository) inStockNewestFirst() []models.Product {
	list := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if p.StockQuantity > 0 {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// ListInStock returns one page of in-stock products, newest first.
func (r *MockProductRepository) ListInStock(_ context.Context, offset, limit int) ([]models.ProductSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["ListInStock"]++

	list := r.inStockNewestFirst()
	if offset < 0 || offset >= len(list) {
		return []models.ProductSummary{}, nil
	}
	end := len(list)
	if limit < end-offset {
		end = offset + limit
	}
	summaries := make([]models.ProductSummary, 0, end-offset)
	for _, p := range list[offset:end] {
		summaries = append(summaries, p.Summary())
	}
	return summaries, nil
}

// CountInStock counts products with a positive stock.
func (r *MockProductRepository) CountInStock(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["CountInStock"]++
	return int64(len(r.inStockNewestFirst())), nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["GetByID"]++

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	return &product, nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	for _, p := range r.products {
		if p.Reference == product.Reference {
			return fmt.Errorf("product reference %s: %w", product.Reference, ErrDuplicate)
		}
	}
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	for i := range product.Images {
		if product.Images[i].ID == "" {
			product.Images[i].ID = uuid.New().String()
		}
		product.Images[i].ProductID = product.ID
	}
	r.products[product.ID] = *product
	return nil
}

// SetStock overwrites the stock of a stored product, standing in for the
// administrative write path.
func (r *MockProductRepository) SetStock(id string, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	product.StockQuantity = stock
	r.products[id] = product
	return nil
}
