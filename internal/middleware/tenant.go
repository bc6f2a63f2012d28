package middleware

import (
	"net/http"

	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/pkg/logger"
	"github.com/thisloadme/one-ecommerce/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StoreHandleKey is the context key carrying the resolved store handle.
const StoreHandleKey = "store_handle"

// TenantFromHost resolves the tenant from the request host name and
// binds its store handle into the request context. The handle lives
// only in this request's context; concurrent requests for different
// tenants never observe each other's handles.
func TenantFromHost(router *store.Router) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			host := c.Request().Host
			handle, err := router.ResolveHost(c.Request().Context(), host)
			if err != nil {
				prometheus.TenantResolveErrors.Inc()
				if err == store.ErrTenantNotFound {
					log.Warn("No tenant for host", zap.String("host", host))
					return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
				}
				log.Error("Failed to bind tenant store", zap.String("host", host), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant store unavailable"})
			}

			c.Set(StoreHandleKey, handle)
			return next(c)
		}
	}
}

// HandleFromContext returns the store handle bound by TenantFromHost.
func HandleFromContext(c echo.Context) (store.Handle, bool) {
	handle, ok := c.Get(StoreHandleKey).(store.Handle)
	return handle, ok
}
