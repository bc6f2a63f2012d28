package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/thisloadme/one-ecommerce/internal/auth"
	"github.com/thisloadme/one-ecommerce/internal/middleware"
	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/internal/tenant"
	"github.com/thisloadme/one-ecommerce/pkg/logger"
	"github.com/thisloadme/one-ecommerce/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler serves login, registration and logout.
type AuthHandler struct {
	shared   *gorm.DB
	sessions *auth.Sessions
	registry *tenant.Registry
}

func NewAuthHandler(shared *gorm.DB, sessions *auth.Sessions, registry *tenant.Registry) *AuthHandler {
	return &AuthHandler{shared: shared, sessions: sessions, registry: registry}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", echo.Map{"body": "malformed request"})
	}

	errs := fieldErrors{}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		errs.add("email", "a valid email is required")
	}
	if req.Password == "" {
		errs.add("password", "password is required")
	}
	if !errs.empty() {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", errs)
	}

	// Find user in database - track DB operation duration
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	result := h.shared.WithContext(c.Request().Context()).Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		log.Warn("Login with unknown email", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return respondError(c, http.StatusUnauthorized, "Invalid email", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Login with wrong password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return respondError(c, http.StatusUnauthorized, "Invalid password", nil)
	}

	token, err := h.sessions.Issue(c.Request().Context(), user.ID)
	if err != nil {
		log.Error("Failed to issue session token", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while logging in", err.Error())
	}

	log.Info("User logged in", zap.Uint("user_id", user.ID))
	return respond(c, http.StatusOK, echo.Map{
		"id":        user.ID,
		"email":     user.Email,
		"name":      user.Name,
		"role":      user.Role,
		"tenant_id": user.TenantID,
		"token":     token,
	}, "Login successful")
}

type registerRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Name                 string `json:"name"`
	Role                 string `json:"role"`
	TenantName           string `json:"tenant_name"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", echo.Map{"body": "malformed request"})
	}

	errs := fieldErrors{}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		errs.add("email", "a valid email is required")
	}
	if req.Password == "" {
		errs.add("password", "password is required")
	}
	if req.PasswordConfirmation != req.Password {
		errs.add("password_confirmation", "password confirmation does not match")
	}
	if req.Name == "" {
		errs.add("name", "name is required")
	}
	if req.Role != model.RoleUser && req.Role != model.RoleTenant {
		errs.add("role", "role must be user or tenant")
	}
	if req.Role == model.RoleTenant && req.TenantName == "" {
		errs.add("tenant_name", "tenant_name is required for tenant accounts")
	}
	if !errs.empty() {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", errs)
	}

	var count int64
	if err := h.shared.WithContext(ctx).Model(&model.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "An error occurred while registering", err.Error())
	}
	if count > 0 {
		return respondError(c, http.StatusUnprocessableEntity, "Validation failed", fieldErrors{"email": {"email is already taken"}})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "An error occurred while registering", err.Error())
	}

	var tenantID *uint
	if req.Role == model.RoleTenant {
		created, err := h.registry.Create(ctx, req.TenantName)
		if err != nil {
			if err == tenant.ErrDuplicateStore {
				return respondError(c, http.StatusBadRequest, "Tenant name already exists", nil)
			}
			log.Error("Failed to create tenant during registration",
				zap.String("tenant_name", req.TenantName),
				zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "An error occurred while registering", err.Error())
		}
		tenantID = &created.ID
		prometheus.TenantStoresGauge.Inc()
	}

	user := model.User{
		Email:    req.Email,
		Password: string(hashed),
		Name:     req.Name,
		Role:     req.Role,
		TenantID: tenantID,
	}
	if err := h.shared.WithContext(ctx).Create(&user).Error; err != nil {
		log.Error("Failed to create user", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while registering", err.Error())
	}

	log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	return respond(c, http.StatusOK, nil, "Register successful")
}

func (h *AuthHandler) Logout(c echo.Context) error {
	log := logger.FromContext(c)

	token := c.Request().Header.Get(middleware.TokenHeader)
	if token == "" {
		return respondError(c, http.StatusUnauthorized, "Invalid token", nil)
	}

	if err := h.sessions.Revoke(c.Request().Context(), token); err != nil {
		log.Error("Failed to revoke session token", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "An error occurred while logging out", err.Error())
	}

	return respond(c, http.StatusOK, nil, "Logout successful")
}
