package catalog

import (
	"context"
	"strings"

	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/internal/tenant"
	"github.com/thisloadme/one-ecommerce/pkg/logger"

	"go.uber.org/zap"
)

// Filter narrows a product listing. Page and Limit apply after the
// per-tenant results are concatenated.
type Filter struct {
	Search string
	Page   int
	Limit  int
}

func (f Filter) normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 15
	}
	return f
}

// Aggregator fans read-only product queries out across tenant stores
// and merges the results for a tenant-agnostic listing.
type Aggregator struct {
	registry *tenant.Registry
	router   *store.Router
}

func NewAggregator(registry *tenant.Registry, router *store.Router) *Aggregator {
	return &Aggregator{registry: registry, router: router}
}

// ListAcrossTenants collects active products from every registered
// tenant (or just one, when tenantID is given), tags each with its
// originating tenant, then pages the concatenation in memory. An
// unreachable tenant store is logged and skipped, never a hard failure
// of the listing — except when a single tenant was explicitly
// requested and does not exist.
func (a *Aggregator) ListAcrossTenants(ctx context.Context, filter Filter, tenantID *uint) ([]model.TenantProduct, error) {
	filter = filter.normalize()

	var tenants []model.Tenant
	if tenantID != nil {
		t, err := a.registry.FindByID(ctx, *tenantID)
		if err != nil {
			return nil, err
		}
		tenants = []model.Tenant{t}
	} else {
		var err error
		tenants, err = a.registry.List(ctx, "")
		if err != nil {
			return nil, err
		}
	}

	log := logger.GetLogger()
	merged := []model.TenantProduct{}
	for _, t := range tenants {
		products, err := a.listTenant(ctx, t, filter.Search)
		if err != nil {
			log.Warn("skipping tenant in catalog aggregation",
				zap.String("store_id", t.StoreID),
				zap.Error(err))
			continue
		}
		merged = append(merged, products...)
	}

	skip := (filter.Page - 1) * filter.Limit
	if skip >= len(merged) {
		return []model.TenantProduct{}, nil
	}
	end := skip + filter.Limit
	if end > len(merged) {
		end = len(merged)
	}
	return merged[skip:end], nil
}

func (a *Aggregator) listTenant(ctx context.Context, t model.Tenant, search string) ([]model.TenantProduct, error) {
	handle, err := a.router.Bind(t)
	if err != nil {
		return nil, err
	}

	query := handle.DB.WithContext(ctx).Model(&model.Product{}).Where("is_active = ?", true)
	if search != "" {
		needle := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", needle, needle)
	}

	var products []model.Product
	if err := query.Order("id").Find(&products).Error; err != nil {
		return nil, err
	}

	tagged := make([]model.TenantProduct, 0, len(products))
	for _, p := range products {
		tagged = append(tagged, model.TenantProduct{
			Product:    p,
			TenantID:   t.ID,
			TenantName: t.Name,
		})
	}
	return tagged, nil
}
