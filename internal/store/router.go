package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/thisloadme/one-ecommerce/internal/model"

	"gorm.io/gorm"
)

// Router resolves tenants from routing keys and hands out store
// handles. A *gorm.DB is kept per store ID so repeated requests for the
// same tenant reuse the underlying connection pool; the pool carries no
// session state outside explicit transactions, so a pooled connection is
// always clean when the next request binds it.
type Router struct {
	shared *gorm.DB
	opener Opener

	mu   sync.RWMutex
	pool map[string]*gorm.DB
}

func NewRouter(shared *gorm.DB, opener Opener) *Router {
	return &Router{
		shared: shared,
		opener: opener,
		pool:   map[string]*gorm.DB{},
	}
}

// Shared returns the shared (non-tenant-scoped) store.
func (r *Router) Shared() *gorm.DB {
	return r.shared
}

// Handle binds a store handle for the tenant owning storeID.
func (r *Router) Handle(ctx context.Context, storeID string) (Handle, error) {
	var tenant model.Tenant
	result := r.shared.WithContext(ctx).Where("store_id = ?", storeID).First(&tenant)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return Handle{}, ErrTenantNotFound
		}
		return Handle{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Error)
	}
	return r.bind(tenant)
}

// ResolveHost binds a store handle for the tenant whose store ID equals
// the request host name, the hostname-routing convention inherited from
// the storefront domains.
func (r *Router) ResolveHost(ctx context.Context, host string) (Handle, error) {
	// Strip an explicit port before matching.
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return r.Handle(ctx, host)
}

// ResolveID binds a store handle for the tenant with the given numeric id.
func (r *Router) ResolveID(ctx context.Context, id uint) (Handle, error) {
	var tenant model.Tenant
	result := r.shared.WithContext(ctx).First(&tenant, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return Handle{}, ErrTenantNotFound
		}
		return Handle{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Error)
	}
	return r.bind(tenant)
}

// Bind returns a handle for an already-loaded tenant row.
func (r *Router) Bind(tenant model.Tenant) (Handle, error) {
	return r.bind(tenant)
}

func (r *Router) bind(tenant model.Tenant) (Handle, error) {
	r.mu.RLock()
	db, ok := r.pool[tenant.StoreID]
	r.mu.RUnlock()
	if ok {
		return Handle{Tenant: tenant, DB: db}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.pool[tenant.StoreID]; ok {
		return Handle{Tenant: tenant, DB: db}, nil
	}

	db, err := r.opener.Open(tenant.StoreID)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, tenant.StoreID, err)
	}
	r.pool[tenant.StoreID] = db
	return Handle{Tenant: tenant, DB: db}, nil
}

// Forget evicts and closes the pooled connection for a store, used after
// the physical store is dropped.
func (r *Router) Forget(storeID string) {
	r.mu.Lock()
	db, ok := r.pool[storeID]
	delete(r.pool, storeID)
	r.mu.Unlock()

	if !ok {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
