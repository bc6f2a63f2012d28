package checkout_test

import (
	"context"
	"sync"
	"testing"

	"github.com/thisloadme/one-ecommerce/internal/cart"
	"github.com/thisloadme/one-ecommerce/internal/checkout"
	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/internal/store/storetest"
	"github.com/thisloadme/one-ecommerce/internal/tenant"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	shared      *gorm.DB
	router      *store.Router
	registry    *tenant.Registry
	ledger      *cart.Ledger
	coordinator *checkout.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	shared := storetest.NewShared(t)
	opener := storetest.NewOpener()
	router := store.NewRouter(shared, opener)
	return &fixture{
		shared:      shared,
		router:      router,
		registry:    tenant.NewRegistry(shared, opener, router),
		ledger:      cart.NewLedger(shared, router),
		coordinator: checkout.NewCoordinator(shared, router),
	}
}

func (f *fixture) addTenant(t *testing.T, name string) model.Tenant {
	t.Helper()
	created, err := f.registry.Create(context.Background(), name)
	require.NoError(t, err)
	return created
}

func (f *fixture) addProduct(t *testing.T, storeID string, product model.Product) model.Product {
	t.Helper()
	handle, err := f.router.Handle(context.Background(), storeID)
	require.NoError(t, err)
	require.NoError(t, handle.DB.Create(&product).Error)
	return product
}

func (f *fixture) stockOf(t *testing.T, storeID string, productID uint) int {
	t.Helper()
	handle, err := f.router.Handle(context.Background(), storeID)
	require.NoError(t, err)
	var product model.Product
	require.NoError(t, handle.DB.First(&product, productID).Error)
	return product.Stock
}

func intp(v int) *int { return &v }

// The canonical flow: stock 5, two plain adds make quantity 2 subtotal
// 20.00, checkout leaves stock 3 and the line purchased, and a repeat
// checkout changes nothing.
func TestCheckoutThenRepeatIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 10.00, Stock: 5, IsActive: true})

	_, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, nil)
	require.NoError(t, err)
	line, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 2, line.Quantity)
	require.InDelta(t, 20.00, line.Subtotal, 1e-9)

	result, err := f.coordinator.Checkout(ctx, 1)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	require.True(t, result.AllOK())
	require.Equal(t, tn.ID, result.Groups[0].TenantID)

	require.Equal(t, 3, f.stockOf(t, tn.StoreID, p.ID))

	var stored model.CartLine
	require.NoError(t, f.shared.First(&stored, line.ID).Error)
	require.True(t, stored.IsPurchased)

	// Re-running finds no open lines and decrements nothing.
	result, err = f.coordinator.Checkout(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, result.Groups)
	require.True(t, result.AllOK())
	require.Equal(t, 3, f.stockOf(t, tn.StoreID, p.ID))
}

func TestCheckoutPartialFailureAcrossTenants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acme := f.addTenant(t, "Acme Gadgets")
	birch := f.addTenant(t, "Birch Books")
	widget := f.addProduct(t, acme.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 10.00, Stock: 5, IsActive: true})
	novel := f.addProduct(t, birch.StoreID, model.Product{Name: "Novel", SKU: "N-1", Price: 8.00, Stock: 1, IsActive: true})

	_, err := f.ledger.AddLine(ctx, 1, acme.StoreID, widget.ID, intp(2))
	require.NoError(t, err)
	_, err = f.ledger.AddLine(ctx, 1, birch.StoreID, novel.ID, intp(3))
	require.NoError(t, err)

	result, err := f.coordinator.Checkout(ctx, 1)
	require.NoError(t, err)
	require.Len(t, result.Groups, 2)
	require.False(t, result.AllOK())

	byStore := map[string]checkout.GroupResult{}
	for _, g := range result.Groups {
		byStore[g.StoreID] = g
	}

	// Acme committed and stays committed despite Birch failing.
	require.True(t, byStore[acme.StoreID].OK())
	require.Equal(t, 3, f.stockOf(t, acme.StoreID, widget.ID))

	require.False(t, byStore[birch.StoreID].OK())
	require.Contains(t, byStore[birch.StoreID].Error, "insufficient stock")
	require.Equal(t, 1, f.stockOf(t, birch.StoreID, novel.ID))

	// Only the committed group's lines are purchased; the failed
	// group's line stays open for a later retry.
	var open []model.CartLine
	require.NoError(t, f.shared.Where("user_id = ? AND is_purchased = ?", 1, false).Find(&open).Error)
	require.Len(t, open, 1)
	require.Equal(t, birch.StoreID, open[0].StoreID)
}

func TestCheckoutGroupRollsBackWhole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	widget := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 10.00, Stock: 5, IsActive: true})
	gadget := f.addProduct(t, tn.StoreID, model.Product{Name: "Gadget", SKU: "G-1", Price: 4.00, Stock: 0, IsActive: true})

	_, err := f.ledger.AddLine(ctx, 1, tn.StoreID, widget.ID, intp(1))
	require.NoError(t, err)
	_, err = f.ledger.AddLine(ctx, 1, tn.StoreID, gadget.ID, intp(1))
	require.NoError(t, err)

	result, err := f.coordinator.Checkout(ctx, 1)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	require.False(t, result.AllOK())

	// The widget decrement inside the failed group must be rolled back
	// with the rest of the group's transaction.
	require.Equal(t, 5, f.stockOf(t, tn.StoreID, widget.ID))
	require.Equal(t, 0, f.stockOf(t, tn.StoreID, gadget.ID))
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 10.00, Stock: 3, IsActive: true})

	const shoppers = 5
	for userID := uint(1); userID <= shoppers; userID++ {
		_, err := f.ledger.AddLine(ctx, userID, tn.StoreID, p.ID, intp(1))
		require.NoError(t, err)
	}

	results := make([]checkout.Result, shoppers)
	var wg sync.WaitGroup
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.coordinator.Checkout(ctx, uint(i+1))
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, r := range results {
		for _, g := range r.Groups {
			if g.OK() {
				committed++
			}
		}
	}

	// Three units of stock cover exactly three shoppers; the sum of
	// decrements never exceeds the pre-checkout stock.
	require.Equal(t, 3, committed)
	require.Equal(t, 0, f.stockOf(t, tn.StoreID, p.ID))
}

func TestCheckoutUnreachableStoreReportedPerGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ghost := model.Tenant{Name: "Ghost Shop", StoreID: "tenant_ghost_shop"}
	require.NoError(t, f.shared.Create(&ghost).Error)
	require.NoError(t, f.shared.Create(&model.CartLine{
		UserID: 1, StoreID: ghost.StoreID, ProductID: 7, Quantity: 1, Subtotal: 5,
	}).Error)

	result, err := f.coordinator.Checkout(ctx, 1)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	require.False(t, result.Groups[0].OK())

	// The line stays open so checkout can be retried once the store is
	// back.
	var open int64
	require.NoError(t, f.shared.Model(&model.CartLine{}).
		Where("user_id = ? AND is_purchased = ?", 1, false).Count(&open).Error)
	require.EqualValues(t, 1, open)
}
