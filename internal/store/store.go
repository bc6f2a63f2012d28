package store

import (
	"errors"

	"github.com/thisloadme/one-ecommerce/internal/model"

	"gorm.io/gorm"
)

var (
	// ErrTenantNotFound is returned when a routing key matches no tenant.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrStoreUnavailable wraps connection and provisioning failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Opener abstracts the physical store backend: opening a connection to
// one store, and creating/dropping the store itself.
type Opener interface {
	Open(storeID string) (*gorm.DB, error)
	Exists(storeID string) (bool, error)
	Provision(storeID string) error
	Drop(storeID string) error
}

// Handle binds exactly one tenant's store for the duration of one
// request or job. Handles are passed explicitly through every call;
// there is no process-wide "current store".
type Handle struct {
	Tenant model.Tenant
	DB     *gorm.DB
}

// Migrate applies the tenant schema to a store. With fresh set, existing
// tables are dropped first.
func Migrate(db *gorm.DB, fresh bool) error {
	if fresh {
		if db.Migrator().HasTable(&model.Product{}) {
			if err := db.Migrator().DropTable(&model.Product{}); err != nil {
				return err
			}
		}
	}
	return db.AutoMigrate(&model.Product{})
}
