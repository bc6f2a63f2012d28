package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/pkg/logger"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrDuplicateStore is returned when a tenant create collides with an
// existing store ID.
var ErrDuplicateStore = errors.New("tenant with this store already exists")

// StoreIDPrefix is the naming convention for tenant stores. Store IDs
// are stable once assigned and double as the physical database name.
const StoreIDPrefix = "tenant_"

// Registry owns tenant metadata and the lifecycle of the physical
// stores behind it.
type Registry struct {
	shared *gorm.DB
	opener store.Opener
	router *store.Router
}

func NewRegistry(shared *gorm.DB, opener store.Opener, router *store.Router) *Registry {
	return &Registry{shared: shared, opener: opener, router: router}
}

// StoreIDFor derives the store ID for a tenant display name.
func StoreIDFor(name string) string {
	return StoreIDPrefix + strings.ReplaceAll(slug.Make(name), "-", "_")
}

// Create registers a tenant and provisions its physical store with the
// tenant schema applied. The metadata row is rolled back when
// provisioning or migration fails, so a half-created tenant is never
// observable. Provisioning an already-existing physical store is a
// no-op, which makes a failed create safe to retry.
func (r *Registry) Create(ctx context.Context, name string) (model.Tenant, error) {
	storeID := StoreIDFor(name)

	var count int64
	if err := r.shared.WithContext(ctx).Model(&model.Tenant{}).Where("store_id = ?", storeID).Count(&count).Error; err != nil {
		return model.Tenant{}, err
	}
	if count > 0 {
		return model.Tenant{}, ErrDuplicateStore
	}

	tenant := model.Tenant{Name: name, StoreID: storeID}
	if err := r.shared.WithContext(ctx).Create(&tenant).Error; err != nil {
		return model.Tenant{}, err
	}

	if err := r.provisionAndMigrate(storeID, false); err != nil {
		// Roll the metadata row back; otherwise find/list would report
		// a tenant whose store cannot serve requests.
		if delErr := r.shared.WithContext(ctx).Delete(&model.Tenant{}, tenant.ID).Error; delErr != nil {
			logger.GetLogger().Error("failed to roll back tenant row after provisioning failure",
				zap.String("store_id", storeID),
				zap.Error(delErr))
		}
		return model.Tenant{}, fmt.Errorf("%w: provision %s: %v", store.ErrStoreUnavailable, storeID, err)
	}

	return tenant, nil
}

func (r *Registry) provisionAndMigrate(storeID string, fresh bool) error {
	if err := r.opener.Provision(storeID); err != nil {
		return err
	}
	db, err := r.opener.Open(storeID)
	if err != nil {
		return err
	}
	return store.Migrate(db, fresh)
}

// Destroy drops the tenant's physical store and deletes the metadata
// row. Dropping an absent store is a no-op, so Destroy is safe to
// retry after a partial failure.
func (r *Registry) Destroy(ctx context.Context, tenant model.Tenant) error {
	// Evict the pooled handle first: idle connections held by the pool
	// would make the physical drop fail, and the store is going away
	// regardless of whether the drop succeeds.
	r.router.Forget(tenant.StoreID)
	if err := r.opener.Drop(tenant.StoreID); err != nil {
		return fmt.Errorf("%w: drop %s: %v", store.ErrStoreUnavailable, tenant.StoreID, err)
	}
	return r.shared.WithContext(ctx).Delete(&model.Tenant{}, tenant.ID).Error
}

// Find returns the tenant owning storeID.
func (r *Registry) Find(ctx context.Context, storeID string) (model.Tenant, error) {
	var tenant model.Tenant
	result := r.shared.WithContext(ctx).Where("store_id = ?", storeID).First(&tenant)
	if result.Error == gorm.ErrRecordNotFound {
		return model.Tenant{}, store.ErrTenantNotFound
	}
	return tenant, result.Error
}

// FindByID returns the tenant with the given numeric id.
func (r *Registry) FindByID(ctx context.Context, id uint) (model.Tenant, error) {
	var tenant model.Tenant
	result := r.shared.WithContext(ctx).First(&tenant, id)
	if result.Error == gorm.ErrRecordNotFound {
		return model.Tenant{}, store.ErrTenantNotFound
	}
	return tenant, result.Error
}

// List returns tenants, optionally filtered by a case-insensitive
// substring match on the display name.
func (r *Registry) List(ctx context.Context, search string) ([]model.Tenant, error) {
	query := r.shared.WithContext(ctx).Model(&model.Tenant{})
	if search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	var tenants []model.Tenant
	if err := query.Order("id").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

// Migrate re-applies the tenant schema to one tenant's store. With
// fresh set, existing tables are dropped first.
func (r *Registry) Migrate(ctx context.Context, id uint, fresh bool) error {
	tenant, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return r.provisionAndMigrate(tenant.StoreID, fresh)
}

// MigrateAll re-applies the tenant schema to every registered tenant.
// Failures are logged per tenant and do not stop the run.
func (r *Registry) MigrateAll(ctx context.Context, fresh bool) error {
	tenants, err := r.List(ctx, "")
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	for _, t := range tenants {
		if err := r.provisionAndMigrate(t.StoreID, fresh); err != nil {
			log.Error("tenant migration failed",
				zap.String("store_id", t.StoreID),
				zap.Error(err))
			continue
		}
		log.Info("tenant migrated", zap.String("store_id", t.StoreID), zap.Bool("fresh", fresh))
	}
	return nil
}
