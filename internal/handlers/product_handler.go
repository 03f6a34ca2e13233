package handlers

import (
	"vinotheque/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service *services.CatalogService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.CatalogService) *ProductHandler {
	return &ProductHandler{
		service: service,
	}
}

// RegisterRoutes registers the catalog routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/produits")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
}

type productListResponse struct {
	services.ProductPage
	EnCache bool `json:"enCache"`
}

// HandleGetProducts serves one page of the in-stock catalog.
// Missing or non-numeric page and limit fall back to their defaults.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	page := c.QueryInt("page", services.DefaultPage)
	limit := c.QueryInt("limit", services.DefaultLimit)

	result, err := h.service.ListProducts(c.UserContext(), page, limit)
	if err != nil {
		return err
	}
	return c.JSON(productListResponse{
		ProductPage: result.Page,
		EnCache:     result.FromCache,
	})
}

// HandleGetProductByID serves one product with all of its images.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	result, err := h.service.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"donnees": result.Product,
		"enCache": result.FromCache,
	})
}
