package handler

import (
	"net/http"
	"strconv"

	"github.com/thisloadme/one-ecommerce/internal/middleware"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/internal/tenant"
	"github.com/thisloadme/one-ecommerce/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TenantHandler serves the tenant directory.
type TenantHandler struct {
	registry *tenant.Registry
}

func NewTenantHandler(registry *tenant.Registry) *TenantHandler {
	return &TenantHandler{registry: registry}
}

// ListTenants returns all tenants, optionally filtered by a search term.
func (h *TenantHandler) ListTenants(c echo.Context) error {
	log := logger.FromContext(c)

	tenants, err := h.registry.List(c.Request().Context(), c.QueryParam("search"))
	if err != nil {
		log.Error("Failed to list tenants", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while retrieving tenants", err.Error())
	}

	return respond(c, http.StatusOK, tenants, "Tenants retrieved successfully")
}

// GetTenant returns one tenant by numeric id.
func (h *TenantHandler) GetTenant(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"id": {"id must be numeric"}})
	}

	t, err := h.registry.FindByID(c.Request().Context(), uint(id))
	if err != nil {
		if err == store.ErrTenantNotFound {
			return respondError(c, http.StatusNotFound, "Tenant not found", nil)
		}
		return respondError(c, http.StatusInternalServerError, "An error occurred while retrieving the tenant", err.Error())
	}

	return respond(c, http.StatusOK, t, "Tenant retrieved successfully")
}

// TenantInfo returns the tenant resolved from the request host.
func (h *TenantHandler) TenantInfo(c echo.Context) error {
	handle, ok := middleware.HandleFromContext(c)
	if !ok {
		return respondError(c, http.StatusNotFound, "Tenant not found", nil)
	}
	return respond(c, http.StatusOK, echo.Map{
		"id":   handle.Tenant.ID,
		"name": handle.Tenant.Name,
	}, "Tenant info retrieved successfully")
}
