package cart

import (
	"context"
	"errors"

	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProductNotFound is returned when a cart operation references a
// product absent from the tenant's store.
var ErrProductNotFound = errors.New("product not found")

// Ledger manages cart lines in the shared store. One user's cart can
// span several tenants; each line carries the store ID it belongs to
// and product data is always fetched live from that store.
type Ledger struct {
	shared *gorm.DB
	router *store.Router
}

func NewLedger(shared *gorm.DB, router *store.Router) *Ledger {
	return &Ledger{shared: shared, router: router}
}

// AddLine adds a product to the user's cart. Without an explicit
// quantity the existing unpurchased line is incremented by one (or
// created with quantity one); an explicit quantity replaces the current
// quantity. The subtotal is recomputed from the live product price.
// Stock sufficiency is not checked here; it is enforced at checkout.
func (l *Ledger) AddLine(ctx context.Context, userID uint, storeID string, productID uint, quantity *int) (model.CartLine, error) {
	handle, err := l.router.Handle(ctx, storeID)
	if err != nil {
		return model.CartLine{}, err
	}

	var product model.Product
	result := handle.DB.WithContext(ctx).First(&product, productID)
	if result.Error == gorm.ErrRecordNotFound {
		return model.CartLine{}, ErrProductNotFound
	}
	if result.Error != nil {
		return model.CartLine{}, result.Error
	}

	qty := 1
	if quantity != nil {
		qty = *quantity
	}
	line := model.CartLine{
		UserID:    userID,
		StoreID:   storeID,
		ProductID: productID,
		Quantity:  qty,
		Subtotal:  product.Price * float64(qty),
	}

	// Single atomic upsert against the partial unique index on
	// (user_id, store_id, product_id) where unpurchased. Two concurrent
	// first adds cannot both insert; the loser folds into the winner's
	// line.
	var updates clause.Set
	if quantity == nil {
		updates = clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("quantity + 1"),
			"subtotal": gorm.Expr("(quantity + 1) * ?", product.Price),
		})
	} else {
		updates = clause.Assignments(map[string]interface{}{
			"quantity": *quantity,
			"subtotal": product.Price * float64(*quantity),
		})
	}
	err = l.shared.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "store_id"}, {Name: "product_id"},
		},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "is_purchased = false"},
		}},
		DoUpdates: updates,
	}).Create(&line).Error
	if err != nil {
		return model.CartLine{}, err
	}

	var saved model.CartLine
	err = l.shared.WithContext(ctx).
		Where("user_id = ? AND store_id = ? AND product_id = ? AND is_purchased = ?",
			userID, storeID, productID, false).
		First(&saved).Error
	if err != nil {
		return model.CartLine{}, err
	}
	return saved, nil
}

// RemoveLine decrements the unpurchased line by one, recomputing the
// subtotal from the live price. The line is deleted outright when
// deleteEntirely is set or the quantity would reach zero. Removing an
// absent line is a no-op success, deliberately lenient.
func (l *Ledger) RemoveLine(ctx context.Context, userID uint, storeID string, productID uint, deleteEntirely bool) (*model.CartLine, error) {
	var line model.CartLine
	result := l.shared.WithContext(ctx).
		Where("user_id = ? AND store_id = ? AND product_id = ? AND is_purchased = ?",
			userID, storeID, productID, false).
		First(&line)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	if deleteEntirely || line.Quantity <= 1 {
		if err := l.shared.WithContext(ctx).Delete(&model.CartLine{}, line.ID).Error; err != nil {
			return nil, err
		}
		return nil, nil
	}

	handle, err := l.router.Handle(ctx, storeID)
	if err != nil {
		return nil, err
	}
	var product model.Product
	result = handle.DB.WithContext(ctx).First(&product, productID)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, ErrProductNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	deleted := false
	err = l.shared.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The quantity > 1 guard stops concurrent removes from driving
		// the line to zero; whoever finds it already at one deletes it.
		res := tx.Model(&model.CartLine{}).
			Where("id = ? AND is_purchased = ? AND quantity > 1", line.ID, false).
			Updates(map[string]interface{}{
				"quantity": gorm.Expr("quantity - 1"),
				"subtotal": gorm.Expr("(quantity - 1) * ?", product.Price),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			deleted = true
			return tx.Delete(&model.CartLine{}, line.ID).Error
		}
		return tx.First(&line, line.ID).Error
	})
	if err != nil {
		return nil, err
	}
	if deleted {
		return nil, nil
	}
	return &line, nil
}

// List returns the user's unpurchased lines enriched with live product
// and tenant data. The enrichment is read-only; an unreachable tenant
// store leaves its lines unenriched instead of failing the listing.
func (l *Ledger) List(ctx context.Context, userID uint) ([]model.EnrichedCartLine, error) {
	var lines []model.CartLine
	if err := l.shared.WithContext(ctx).
		Where("user_id = ? AND is_purchased = ?", userID, false).
		Order("id").
		Find(&lines).Error; err != nil {
		return nil, err
	}

	log := logger.GetLogger()
	handles := map[string]store.Handle{}
	enriched := make([]model.EnrichedCartLine, 0, len(lines))
	for _, line := range lines {
		item := model.EnrichedCartLine{CartLine: line}

		handle, ok := handles[line.StoreID]
		if !ok {
			var err error
			handle, err = l.router.Handle(ctx, line.StoreID)
			if err != nil {
				log.Warn("skipping cart line enrichment, store unreachable",
					zap.String("store_id", line.StoreID),
					zap.Error(err))
				enriched = append(enriched, item)
				continue
			}
			handles[line.StoreID] = handle
		}

		var product model.Product
		if err := handle.DB.WithContext(ctx).First(&product, line.ProductID).Error; err != nil {
			log.Warn("skipping cart line enrichment, product lookup failed",
				zap.String("store_id", line.StoreID),
				zap.Uint("product_id", line.ProductID),
				zap.Error(err))
			enriched = append(enriched, item)
			continue
		}

		item.ProductName = product.Name
		item.ProductSKU = product.SKU
		item.Description = product.Description
		item.Price = product.Price
		item.IsInStock = product.Stock >= line.Quantity
		item.TenantID = handle.Tenant.ID
		item.TenantName = handle.Tenant.Name
		enriched = append(enriched, item)
	}
	return enriched, nil
}
