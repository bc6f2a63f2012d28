package cart_test

import (
	"context"
	"sync"
	"testing"

	"github.com/thisloadme/one-ecommerce/internal/cart"
	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/internal/store/storetest"
	"github.com/thisloadme/one-ecommerce/internal/tenant"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	shared   *gorm.DB
	router   *store.Router
	registry *tenant.Registry
	ledger   *cart.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	shared := storetest.NewShared(t)
	opener := storetest.NewOpener()
	router := store.NewRouter(shared, opener)
	return &fixture{
		shared:   shared,
		router:   router,
		registry: tenant.NewRegistry(shared, opener, router),
		ledger:   cart.NewLedger(shared, router),
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

func intp(v int) *int { return &v }

func TestAddLineIncrementsAndRecomputesSubtotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 10.00, Stock: 5, IsActive: true})

	line, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, line.Quantity)
	require.InDelta(t, 10.00, line.Subtotal, 1e-9)

	line, err = f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 2, line.Quantity)
	require.InDelta(t, 20.00, line.Subtotal, 1e-9)

	// Still a single unpurchased line for the triple.
	var count int64
	require.NoError(t, f.shared.Model(&model.CartLine{}).
		Where("user_id = ? AND store_id = ? AND product_id = ? AND is_purchased = ?", 1, tn.StoreID, p.ID, false).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAddLineExplicitQuantityReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 4.00, Stock: 5, IsActive: true})

	_, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, nil)
	require.NoError(t, err)
	_, err = f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, nil)
	require.NoError(t, err)

	// Explicit quantity replaces, it does not add.
	line, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, intp(5))
	require.NoError(t, err)
	require.Equal(t, 5, line.Quantity)
	require.InDelta(t, 20.00, line.Subtotal, 1e-9)
}

func TestAddLineUnknownProduct(t *testing.T) {
	f := newFixture(t)

	tn := f.addTenant(t, "Acme Gadgets")
	_, err := f.ledger.AddLine(context.Background(), 1, tn.StoreID, 42, nil)
	require.ErrorIs(t, err, cart.ErrProductNotFound)
}

func TestRemoveLineDecrementsThenDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 3.00, Stock: 5, IsActive: true})

	_, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, intp(3))
	require.NoError(t, err)

	line, err := f.ledger.RemoveLine(ctx, 1, tn.StoreID, p.ID, false)
	require.NoError(t, err)
	require.NotNil(t, line)
	require.Equal(t, 2, line.Quantity)
	require.InDelta(t, 6.00, line.Subtotal, 1e-9)

	// Dropping to zero deletes the line.
	_, err = f.ledger.RemoveLine(ctx, 1, tn.StoreID, p.ID, false)
	require.NoError(t, err)
	line, err = f.ledger.RemoveLine(ctx, 1, tn.StoreID, p.ID, false)
	require.NoError(t, err)
	require.Nil(t, line)

	var count int64
	require.NoError(t, f.shared.Model(&model.CartLine{}).Where("user_id = ?", 1).Count(&count).Error)
	require.Zero(t, count)
}

func TestRemoveLineDeleteEntirely(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 3.00, Stock: 5, IsActive: true})

	_, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, intp(4))
	require.NoError(t, err)

	line, err := f.ledger.RemoveLine(ctx, 1, tn.StoreID, p.ID, true)
	require.NoError(t, err)
	require.Nil(t, line)
}

func TestRemoveAbsentLineIsNoop(t *testing.T) {
	f := newFixture(t)

	tn := f.addTenant(t, "Acme Gadgets")

	// Removing a line that was never added succeeds, deliberately.
	line, err := f.ledger.RemoveLine(context.Background(), 1, tn.StoreID, 42, true)
	require.NoError(t, err)
	require.Nil(t, line)
}

func TestConcurrentAddsCollapseToOneLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 2.50, Stock: 50, IsActive: true})

	const adds = 10
	var wg sync.WaitGroup
	errs := make(chan error, adds)
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// The unique index collapses simultaneous first adds into a single
	// line; no increment is lost either.
	var lines []model.CartLine
	require.NoError(t, f.shared.
		Where("user_id = ? AND store_id = ? AND product_id = ? AND is_purchased = ?", 1, tn.StoreID, p.ID, false).
		Find(&lines).Error)
	require.Len(t, lines, 1)
	require.Equal(t, adds, lines[0].Quantity)
	require.InDelta(t, 2.50*adds, lines[0].Subtotal, 1e-9)
}

func TestConcurrentRemovesNeverLeaveZeroQuantityLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 3.00, Stock: 5, IsActive: true})

	_, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, intp(2))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.RemoveLine(ctx, 1, tn.StoreID, p.ID, false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Two removes against quantity two delete the line; it must not
	// linger at quantity zero.
	var count int64
	require.NoError(t, f.shared.Model(&model.CartLine{}).
		Where("user_id = ? AND store_id = ? AND product_id = ? AND is_purchased = ?", 1, tn.StoreID, p.ID, false).
		Count(&count).Error)
	require.Zero(t, count)
}

func TestListEnrichesFromLiveStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Description: "a widget", Price: 10.00, Stock: 1, IsActive: true})

	_, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, intp(2))
	require.NoError(t, err)

	lines, err := f.ledger.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	item := lines[0]
	require.Equal(t, "Widget", item.ProductName)
	require.Equal(t, "W-1", item.ProductSKU)
	require.InDelta(t, 10.00, item.Price, 1e-9)
	require.False(t, item.IsInStock, "quantity 2 against stock 1 is advisory-insufficient")
	require.Equal(t, tn.ID, item.TenantID)
	require.Equal(t, "Acme Gadgets", item.TenantName)
}

func TestListSurvivesUnreachableStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tn := f.addTenant(t, "Acme Gadgets")
	p := f.addProduct(t, tn.StoreID, model.Product{Name: "Widget", SKU: "W-1", Price: 10.00, Stock: 5, IsActive: true})
	_, err := f.ledger.AddLine(ctx, 1, tn.StoreID, p.ID, nil)
	require.NoError(t, err)

	// A tenant row whose physical store was never provisioned: its
	// line is listed unenriched instead of failing the whole cart.
	ghost := model.Tenant{Name: "Ghost Shop", StoreID: "tenant_ghost_shop"}
	require.NoError(t, f.shared.Create(&ghost).Error)
	require.NoError(t, f.shared.Create(&model.CartLine{
		UserID: 1, StoreID: ghost.StoreID, ProductID: 7, Quantity: 1, Subtotal: 5,
	}).Error)

	lines, err := f.ledger.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	var ghostLine *model.EnrichedCartLine
	for i := range lines {
		if lines[i].StoreID == ghost.StoreID {
			ghostLine = &lines[i]
		}
	}
	require.NotNil(t, ghostLine)
	require.Empty(t, ghostLine.ProductName)
	require.Zero(t, ghostLine.TenantID)
}
