package middleware

import (
	"net/http"

	"github.com/thisloadme/one-ecommerce/internal/auth"
	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/pkg/logger"
	"github.com/thisloadme/one-ecommerce/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenHeader carries the opaque session token.
const TokenHeader = "ctoken"

// Context keys set by the auth middleware.
const (
	UserIDKey = "user_id"
	UserKey   = "user"
)

// SessionAuth validates the session token from the request header and
// stores the resolved user id in the request context.
func SessionAuth(sessions *auth.Sessions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			token := c.Request().Header.Get(TokenHeader)
			if token == "" {
				log.Warn("Missing session token")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing session token"})
			}

			userID, err := sessions.Resolve(c.Request().Context(), token)
			if err != nil {
				if err == auth.ErrInvalidToken {
					log.Warn("Invalid session token")
					prometheus.RecordAuthError("invalid_token")
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
				}
				log.Error("Failed to resolve session token", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authentication unavailable"})
			}

			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// RequireShopper loads the authenticated user and requires the shopper
// role, attaching the user record to the request context.
func RequireShopper(shared *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			userID, ok := c.Get(UserIDKey).(uint)
			if !ok {
				prometheus.RecordAuthError("missing_user_context")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}

			var user model.User
			result := shared.WithContext(c.Request().Context()).
				Where("id = ? AND role = ?", userID, model.RoleUser).
				First(&user)
			if result.Error != nil {
				log.Warn("Shopper user not found", zap.Uint("user_id", userID))
				return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
			}

			c.Set(UserKey, user)
			return next(c)
		}
	}
}

// UserFromContext returns the user attached by RequireShopper.
func UserFromContext(c echo.Context) (model.User, bool) {
	user, ok := c.Get(UserKey).(model.User)
	return user, ok
}
