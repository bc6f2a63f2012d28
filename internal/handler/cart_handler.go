package handler

import (
	"net/http"
	"strconv"

	"github.com/thisloadme/one-ecommerce/internal/cart"
	"github.com/thisloadme/one-ecommerce/internal/checkout"
	"github.com/thisloadme/one-ecommerce/internal/middleware"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/internal/tenant"
	"github.com/thisloadme/one-ecommerce/pkg/logger"
	"github.com/thisloadme/one-ecommerce/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CartHandler serves cart line management and checkout.
type CartHandler struct {
	registry    *tenant.Registry
	ledger      *cart.Ledger
	coordinator *checkout.Coordinator
}

func NewCartHandler(registry *tenant.Registry, ledger *cart.Ledger, coordinator *checkout.Coordinator) *CartHandler {
	return &CartHandler{registry: registry, ledger: ledger, coordinator: coordinator}
}

// GetCart lists the user's unpurchased cart lines with live product data.
func (h *CartHandler) GetCart(c echo.Context) error {
	log := logger.FromContext(c)

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Unauthorized", nil)
	}

	lines, err := h.ledger.List(c.Request().Context(), user.ID)
	if err != nil {
		log.Error("Failed to list cart", zap.Uint("user_id", user.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while retrieving cart", err.Error())
	}

	return respond(c, http.StatusOK, lines, "Cart retrieved successfully")
}

type addToCartRequest struct {
	TenantID *uint `json:"tenant_id"`
	Quantity *int  `json:"quantity"`
}

// AddToCart adds the product in the path to the user's cart.
func (h *CartHandler) AddToCart(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Unauthorized", nil)
	}

	productID, err := strconv.ParseUint(c.Param("product"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"product": {"product must be numeric"}})
	}

	var req addToCartRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", echo.Map{"body": "malformed request"})
	}

	errs := fieldErrors{}
	if req.TenantID == nil {
		errs.add("tenant_id", "tenant_id is required")
	}
	if req.Quantity != nil && *req.Quantity < 1 {
		errs.add("quantity", "quantity must be at least 1")
	}
	if !errs.empty() {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", errs)
	}

	t, err := h.registry.FindByID(ctx, *req.TenantID)
	if err != nil {
		if err == store.ErrTenantNotFound {
			return respondError(c, http.StatusNotFound, "Tenant not found", nil)
		}
		return respondError(c, http.StatusInternalServerError, "An error occurred while adding product to cart", err.Error())
	}

	line, err := h.ledger.AddLine(ctx, user.ID, t.StoreID, uint(productID), req.Quantity)
	if err != nil {
		if err == cart.ErrProductNotFound {
			return respondError(c, http.StatusNotFound, "Product not found", nil)
		}
		log.Error("Failed to add product to cart",
			zap.Uint("user_id", user.ID),
			zap.String("store_id", t.StoreID),
			zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while adding product to cart", err.Error())
	}

	return respond(c, http.StatusOK, line, "Product added to cart successfully")
}

type removeFromCartRequest struct {
	TenantID *uint `json:"tenant_id"`
	IsDelete bool  `json:"is_delete"`
}

// RemoveFromCart decrements or deletes the product's cart line.
// Removing a line that does not exist succeeds as a no-op.
func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Unauthorized", nil)
	}

	productID, err := strconv.ParseUint(c.Param("product"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"product": {"product must be numeric"}})
	}

	var req removeFromCartRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", echo.Map{"body": "malformed request"})
	}
	if req.TenantID == nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"tenant_id": {"tenant_id is required"}})
	}

	t, err := h.registry.FindByID(ctx, *req.TenantID)
	if err != nil {
		if err == store.ErrTenantNotFound {
			return respondError(c, http.StatusNotFound, "Tenant not found", nil)
		}
		return respondError(c, http.StatusInternalServerError, "An error occurred while updating product quantity", err.Error())
	}

	line, err := h.ledger.RemoveLine(ctx, user.ID, t.StoreID, uint(productID), req.IsDelete)
	if err != nil {
		log.Error("Failed to remove product from cart",
			zap.Uint("user_id", user.ID),
			zap.String("store_id", t.StoreID),
			zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while updating product quantity", err.Error())
	}

	if line == nil {
		return respond(c, http.StatusOK, nil, "Product quantity updated successfully")
	}
	return respond(c, http.StatusOK, line, "Product quantity updated successfully")
}

// Checkout processes the whole cart, one transaction per tenant store.
// Partial failure is reported per tenant group, not as a request error.
func (h *CartHandler) Checkout(c echo.Context) error {
	log := logger.FromContext(c)

	user, ok := middleware.UserFromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Unauthorized", nil)
	}

	result, err := h.coordinator.Checkout(c.Request().Context(), user.ID)
	if err != nil {
		log.Error("Checkout failed", zap.Uint("user_id", user.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while checkout", err.Error())
	}

	for _, g := range result.Groups {
		if g.OK() {
			prometheus.RecordCheckoutGroup("committed")
		} else {
			prometheus.RecordCheckoutGroup("failed")
		}
	}

	message := "Checkout successfully"
	if !result.AllOK() {
		message = "Checkout completed with failures"
	}
	return respond(c, http.StatusOK, result, message)
}
