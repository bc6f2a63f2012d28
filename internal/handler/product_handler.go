package handler

import (
	"net/http"
	"strconv"

	"github.com/thisloadme/one-ecommerce/internal/catalog"
	"github.com/thisloadme/one-ecommerce/internal/middleware"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ProductHandler serves the host-scoped product CRUD and the
// cross-tenant catalog listing.
type ProductHandler struct {
	products   *catalog.Products
	aggregator *catalog.Aggregator
}

func NewProductHandler(products *catalog.Products, aggregator *catalog.Aggregator) *ProductHandler {
	return &ProductHandler{products: products, aggregator: aggregator}
}

func filterFromQuery(c echo.Context) catalog.Filter {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return catalog.Filter{
		Search: c.QueryParam("search"),
		Page:   page,
		Limit:  limit,
	}
}

// ListAllProducts is the tenant-agnostic listing across every store,
// or a single store when the tenant query parameter is given.
func (h *ProductHandler) ListAllProducts(c echo.Context) error {
	log := logger.FromContext(c)

	var tenantID *uint
	if raw := c.QueryParam("tenant"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"tenant": {"tenant must be numeric"}})
		}
		uid := uint(id)
		tenantID = &uid
	}

	products, err := h.aggregator.ListAcrossTenants(c.Request().Context(), filterFromQuery(c), tenantID)
	if err != nil {
		if err == store.ErrTenantNotFound {
			return respondError(c, http.StatusNotFound, "Tenant not found", nil)
		}
		log.Error("Failed to aggregate products", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while retrieving products", err.Error())
	}

	return respond(c, http.StatusOK, products, "Products retrieved successfully")
}

// ListProducts lists products in the host-resolved tenant store.
func (h *ProductHandler) ListProducts(c echo.Context) error {
	handle, ok := middleware.HandleFromContext(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Tenant not found", nil)
	}

	activeOnly, _ := strconv.ParseBool(c.QueryParam("active"))
	products, err := h.products.List(c.Request().Context(), handle, filterFromQuery(c), activeOnly)
	if err != nil {
		logger.FromContext(c).Error("Failed to list products",
			zap.String("store_id", handle.Tenant.StoreID),
			zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while retrieving products", err.Error())
	}

	return respond(c, http.StatusOK, products, "Products retrieved successfully")
}

// GetProduct returns one product from the host-resolved tenant store.
func (h *ProductHandler) GetProduct(c echo.Context) error {
	handle, ok := middleware.HandleFromContext(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Tenant not found", nil)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"id": {"id must be numeric"}})
	}

	product, err := h.products.Get(c.Request().Context(), handle, uint(id))
	if err != nil {
		if err == catalog.ErrProductNotFound {
			return respondError(c, http.StatusNotFound, "Product not found", nil)
		}
		return respondError(c, http.StatusInternalServerError, "An error occurred while retrieving the product", err.Error())
	}

	return respond(c, http.StatusOK, product, "Product retrieved successfully")
}

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	SKU         string  `json:"sku"`
	IsActive    *bool   `json:"is_active"`
}

func (r *productRequest) validate() fieldErrors {
	errs := fieldErrors{}
	if r.Name == "" {
		errs.add("name", "name is required")
	}
	if r.SKU == "" {
		errs.add("sku", "sku is required")
	}
	if r.Price < 0 {
		errs.add("price", "price must not be negative")
	}
	if r.Stock < 0 {
		errs.add("stock", "stock must not be negative")
	}
	return errs
}

func (r *productRequest) input() catalog.ProductInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return catalog.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		SKU:         r.SKU,
		IsActive:    active,
	}
}

// CreateProduct adds a product to the host-resolved tenant store.
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)

	handle, ok := middleware.HandleFromContext(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Tenant not found", nil)
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", echo.Map{"body": "malformed request"})
	}
	if errs := req.validate(); !errs.empty() {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", errs)
	}

	product, err := h.products.Create(c.Request().Context(), handle, req.input())
	if err != nil {
		if err == catalog.ErrDuplicateSKU {
			return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"sku": {"sku is already taken"}})
		}
		log.Error("Failed to create product",
			zap.String("store_id", handle.Tenant.StoreID),
			zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while creating the product", err.Error())
	}

	log.Info("Product created",
		zap.String("store_id", handle.Tenant.StoreID),
		zap.Uint("product_id", product.ID),
		zap.String("sku", product.SKU))
	return respond(c, http.StatusOK, product, "Product created successfully")
}

// UpdateProduct overwrites a product in the host-resolved tenant store.
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	handle, ok := middleware.HandleFromContext(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Tenant not found", nil)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"id": {"id must be numeric"}})
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", echo.Map{"body": "malformed request"})
	}
	if errs := req.validate(); !errs.empty() {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", errs)
	}

	product, err := h.products.Update(c.Request().Context(), handle, uint(id), req.input())
	if err != nil {
		switch err {
		case catalog.ErrProductNotFound:
			return respondError(c, http.StatusNotFound, "Product not found", nil)
		case catalog.ErrDuplicateSKU:
			return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"sku": {"sku is already taken"}})
		default:
			return respondError(c, http.StatusInternalServerError, "An error occurred while updating the product", err.Error())
		}
	}

	return respond(c, http.StatusOK, product, "Product updated successfully")
}

// DeleteProduct removes a product from the host-resolved tenant store.
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	handle, ok := middleware.HandleFromContext(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Tenant not found", nil)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"id": {"id must be numeric"}})
	}

	if err := h.products.Delete(c.Request().Context(), handle, uint(id)); err != nil {
		if err == catalog.ErrProductNotFound {
			return respondError(c, http.StatusNotFound, "Product not found", nil)
		}
		return respondError(c, http.StatusInternalServerError, "An error occurred while deleting the product", err.Error())
	}

	return respond(c, http.StatusOK, nil, "Product deleted successfully")
}
