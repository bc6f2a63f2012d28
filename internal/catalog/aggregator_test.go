package catalog_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/thisloadme/one-ecommerce/internal/catalog"
	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/internal/store/storetest"
	"github.com/thisloadme/one-ecommerce/internal/tenant"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	shared     *gorm.DB
	router     *store.Router
	registry   *tenant.Registry
	aggregator *catalog.Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	shared := storetest.NewShared(t)
	opener := storetest.NewOpener()
	router := store.NewRouter(shared, opener)
	registry := tenant.NewRegistry(shared, opener, router)
	return &fixture{
		shared:     shared,
		router:     router,
		registry:   registry,
		aggregator: catalog.NewAggregator(registry, router),
	}
}

func (f *fixture) addTenant(t *testing.T, name string) model.Tenant {
	t.Helper()
	created, err := f.registry.Create(context.Background(), name)
	require.NoError(t, err)
	return created
}

func (f *fixture) addProducts(t *testing.T, storeID string, products ...model.Product) {
	t.Helper()
	handle, err := f.router.Handle(context.Background(), storeID)
	require.NoError(t, err)
	for i := range products {
		require.NoError(t, handle.DB.Create(&products[i]).Error)
	}
}

func TestListAcrossTenantsMergesInTenantOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acme := f.addTenant(t, "Acme Gadgets")
	birch := f.addTenant(t, "Birch Books")
	f.addProducts(t, acme.StoreID,
		model.Product{Name: "Widget", SKU: "W-1", Price: 10, IsActive: true},
		model.Product{Name: "Gadget", SKU: "G-1", Price: 4, IsActive: true},
	)
	f.addProducts(t, birch.StoreID,
		model.Product{Name: "Novel", SKU: "N-1", Price: 8, IsActive: true},
	)

	products, err := f.aggregator.ListAcrossTenants(ctx, catalog.Filter{}, nil)
	require.NoError(t, err)
	require.Len(t, products, 3)

	// Tenant-iteration order: all of Acme's products before Birch's.
	require.Equal(t, acme.ID, products[0].TenantID)
	require.Equal(t, acme.ID, products[1].TenantID)
	require.Equal(t, birch.ID, products[2].TenantID)
	require.Equal(t, "Birch Books", products[2].TenantName)
}

func TestListAcrossTenantsSkipsInactive(t *testing.T) {
	f := newFixture(t)

	acme := f.addTenant(t, "Acme Gadgets")
	f.addProducts(t, acme.StoreID,
		model.Product{Name: "Widget", SKU: "W-1", Price: 10, IsActive: true},
		model.Product{Name: "Retired", SKU: "R-1", Price: 1, IsActive: false},
	)

	products, err := f.aggregator.ListAcrossTenants(context.Background(), catalog.Filter{}, nil)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "Widget", products[0].Name)
}

func TestListAcrossTenantsPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acme := f.addTenant(t, "Acme Gadgets")
	for i := 1; i <= 7; i++ {
		f.addProducts(t, acme.StoreID, model.Product{
			Name: fmt.Sprintf("Item %d", i), SKU: fmt.Sprintf("I-%d", i), Price: 1, IsActive: true,
		})
	}

	page2, err := f.aggregator.ListAcrossTenants(ctx, catalog.Filter{Page: 2, Limit: 3}, nil)
	require.NoError(t, err)
	require.Len(t, page2, 3)
	require.Equal(t, "Item 4", page2[0].Name)

	page3, err := f.aggregator.ListAcrossTenants(ctx, catalog.Filter{Page: 3, Limit: 3}, nil)
	require.NoError(t, err)
	require.Len(t, page3, 1)

	beyond, err := f.aggregator.ListAcrossTenants(ctx, catalog.Filter{Page: 4, Limit: 3}, nil)
	require.NoError(t, err)
	require.Empty(t, beyond)
}

func TestListAcrossTenantsSurvivesUnreachableStore(t *testing.T) {
	f := newFixture(t)

	acme := f.addTenant(t, "Acme Gadgets")
	f.addProducts(t, acme.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 10, IsActive: true})

	// A registered tenant whose store was never provisioned: skipped,
	// not fatal.
	require.NoError(t, f.shared.Create(&model.Tenant{Name: "Ghost Shop", StoreID: "tenant_ghost_shop"}).Error)

	products, err := f.aggregator.ListAcrossTenants(context.Background(), catalog.Filter{}, nil)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "Widget", products[0].Name)
}

func TestListSingleTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acme := f.addTenant(t, "Acme Gadgets")
	birch := f.addTenant(t, "Birch Books")
	f.addProducts(t, acme.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 10, IsActive: true})
	f.addProducts(t, birch.StoreID, model.Product{Name: "Novel", SKU: "N-1", Price: 8, IsActive: true})

	products, err := f.aggregator.ListAcrossTenants(ctx, catalog.Filter{}, &birch.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "Novel", products[0].Name)

	unknown := uint(9999)
	_, err = f.aggregator.ListAcrossTenants(ctx, catalog.Filter{}, &unknown)
	require.ErrorIs(t, err, store.ErrTenantNotFound)
}

func TestListAcrossTenantsSearch(t *testing.T) {
	f := newFixture(t)

	acme := f.addTenant(t, "Acme Gadgets")
	f.addProducts(t, acme.StoreID,
		model.Product{Name: "Blue Widget", SKU: "W-1", Price: 10, IsActive: true},
		model.Product{Name: "Novel", SKU: "N-1", Price: 8, IsActive: true},
	)

	products, err := f.aggregator.ListAcrossTenants(context.Background(), catalog.Filter{Search: "wIdGeT"}, nil)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "Blue Widget", products[0].Name)
}
