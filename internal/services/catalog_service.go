package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"vinotheque/internal/apperror"
	"vinotheque/internal/cache"
	"vinotheque/internal/models"
	"vinotheque/internal/repositories"
)

const (
	DefaultPage  = 1
	DefaultLimit = 12

	// ProductListTTL is shorter than ProductDetailTTL because list pages
	// shift with new arrivals and with stock crossing zero.
	ProductListTTL   = 5 * time.Minute
	ProductDetailTTL = 10 * time.Minute
)

// Pagination describes where a product page sits in the whole catalog.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ProductPage is the cached payload of a catalog list request.
type ProductPage struct {
	Donnees    []models.ProductSummary `json:"donnees"`
	Pagination Pagination              `json:"pagination"`
}

// ProductListResult is a ProductPage tagged with where it was read from.
type ProductListResult struct {
	Page      ProductPage
	FromCache bool
}

// ProductDetailResult is a full product tagged with where it was read from.
type ProductDetailResult struct {
	Product   *models.Product
	FromCache bool
}

// ProductListKey is the cache key of one catalog page.
func ProductListKey(page, limit int) string {
	return fmt.Sprintf("produits:page:%d:limit:%d", page, limit)
}

// ProductKey is the cache key of one product detail.
func ProductKey(id string) string {
	return "produit:" + id
}

// TotalPages returns ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	l := int64(limit)
	pages := total / l
	if total%l != 0 {
		pages++
	}
	return int(pages)
}

// pageOffset returns (page-1)*limit, or false when it does not fit in an
// int. Such a page lies past any catalog and is empty.
func pageOffset(page, limit int) (int, bool) {
	if page-1 > math.MaxInt/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}

// CatalogService serves catalog reads through a cache-aside policy.
//
// Entries are never invalidated on writes: a cached page may keep showing a
// product that sold out until ProductListTTL elapses. Concurrent misses on
// the same key all reach the store and all write equivalent entries.
type CatalogService struct {
	repo  repositories.ProductRepository
	cache cache.Store
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo repositories.ProductRepository, store cache.Store) *CatalogService {
	return &CatalogService{
		repo:  repo,
		cache: store,
	}
}

// ListProducts returns one page of in-stock products, newest first.
// Non-positive page or limit values fall back to DefaultPage and DefaultLimit.
func (s *CatalogService) ListProducts(ctx context.Context, page, limit int) (*ProductListResult, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	key := ProductListKey(page, limit)

	var cached ProductPage
	if s.lookup(ctx, key, &cached) {
		return &ProductListResult{Page: cached, FromCache: true}, nil
	}

	products := []models.ProductSummary{}
	if offset, ok := pageOffset(page, limit); ok {
		var err error
		products, err = s.repo.ListInStock(ctx, offset, limit)
		if err != nil {
			return nil, fmt.Errorf("list products page %d: %w", page, err)
		}
	}
	total, err := s.repo.CountInStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	result := ProductPage{
		Donnees: products,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: TotalPages(total, limit),
		},
	}
	s.store(ctx, key, result, ProductListTTL)
	return &ProductListResult{Page: result, FromCache: false}, nil
}

// GetProduct returns a product with all of its images.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*ProductDetailResult, error) {
	key := ProductKey(id)

	var cached models.Product
	if s.lookup(ctx, key, &cached) {
		return &ProductDetailResult{Product: &cached, FromCache: true}, nil
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.NotFound("Produit non trouvé")
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	s.store(ctx, key, product, ProductDetailTTL)
	return &ProductDetailResult{Product: product, FromCache: false}, nil
}

// lookup decodes the entry under key into dst. Cache failures and
// undecodable entries count as misses so the store stays reachable.
func (s *CatalogService) lookup(ctx context.Context, key string, dst interface{}) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			log.Printf("Cache read failed for %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Printf("Discarding undecodable cache entry %s: %v", key, err)
		return false
	}
	return true
}

func (s *CatalogService) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("Failed to encode cache entry %s: %v", key, err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		log.Printf("Cache write failed for %s: %v", key, err)
	}
}
