package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/thisloadme/one-ecommerce/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidToken is returned when a session token is missing, unknown
// or expired.
var ErrInvalidToken = errors.New("invalid or expired token")

// Sessions issues and resolves opaque session tokens backed by the
// shared store. Tokens are revoked by expiring them in place, never
// deleted, so recent revocations stay auditable.
type Sessions struct {
	shared *gorm.DB
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(shared *gorm.DB, ttl time.Duration) *Sessions {
	return &Sessions{shared: shared, ttl: ttl, now: time.Now}
}

// Issue returns a live token for the user, reusing an existing live
// one so a user never holds two live tokens at once. The partial
// unique index on (user_id) where active arbitrates concurrent logins:
// only one insert can claim the slot, the rest read the winner back.
func (s *Sessions) Issue(ctx context.Context, userID uint) (string, error) {
	now := s.now()
	db := s.shared.WithContext(ctx)

	// Retire tokens that expired without being revoked so they stop
	// occupying the user's active slot.
	if err := db.Model(&model.UserToken{}).
		Where("user_id = ? AND active = ? AND expires_at <= ?", userID, true, now).
		Update("active", false).Error; err != nil {
		return "", err
	}

	token := model.UserToken{
		UserID:    userID,
		Token:     generateToken(),
		Active:    true,
		ExpiresAt: now.Add(s.ttl),
	}
	res := db.Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "user_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "active"}}},
		DoNothing:   true,
	}).Create(&token)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected > 0 {
		return token.Token, nil
	}

	var existing model.UserToken
	if err := db.Where("user_id = ? AND active = ?", userID, true).
		First(&existing).Error; err != nil {
		return "", err
	}
	return existing.Token, nil
}

// Resolve maps a token to its user id. Tokens are valid strictly before
// their expiry instant.
func (s *Sessions) Resolve(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	var userToken model.UserToken
	result := s.shared.WithContext(ctx).Where("token = ?", token).First(&userToken)
	if result.Error == gorm.ErrRecordNotFound {
		return 0, ErrInvalidToken
	}
	if result.Error != nil {
		return 0, result.Error
	}
	if userToken.Expired(s.now()) {
		return 0, ErrInvalidToken
	}
	return userToken.UserID, nil
}

// Revoke expires the token immediately and frees the user's active
// slot. Revoking an unknown or already-revoked token is a no-op.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	return s.shared.WithContext(ctx).
		Model(&model.UserToken{}).
		Where("token = ? AND expires_at > ?", token, s.now()).
		Updates(map[string]interface{}{
			"expires_at": s.now(),
			"active":     false,
		}).Error
}

func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
