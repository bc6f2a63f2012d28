package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/internal/store"
	"github.com/thisloadme/one-ecommerce/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInsufficientStock is returned inside a group result when a product
// does not have enough stock to cover its cart line.
var ErrInsufficientStock = errors.New("insufficient stock")

// GroupResult reports the outcome for one tenant's slice of the cart.
// There is no transaction boundary shared between tenant stores, so
// each group commits or fails on its own.
type GroupResult struct {
	StoreID    string           `json:"store_id"`
	TenantID   uint             `json:"tenant_id"`
	TenantName string           `json:"tenant_name"`
	Lines      []model.CartLine `json:"lines"`
	Error      string           `json:"error,omitempty"`
}

// OK reports whether the group committed.
func (g GroupResult) OK() bool { return g.Error == "" }

// Result is the overall checkout report. Committed groups stay
// committed even when later groups fail.
type Result struct {
	Groups []GroupResult `json:"groups"`
}

// AllOK reports whether every tenant group committed.
func (r Result) AllOK() bool {
	for _, g := range r.Groups {
		if !g.OK() {
			return false
		}
	}
	return true
}

// Coordinator executes checkout across the tenant stores touched by a
// user's cart: one local transaction per tenant, best-effort overall.
type Coordinator struct {
	shared *gorm.DB
	router *store.Router
}

func NewCoordinator(shared *gorm.DB, router *store.Router) *Coordinator {
	return &Coordinator{shared: shared, router: router}
}

// Checkout loads the user's unpurchased cart lines, groups them by
// store, and per group decrements stock inside that store's transaction
// before marking the lines purchased in the shared store. A failing
// group rolls back only its own store; other groups are unaffected.
// Purchased lines are excluded from the load, so re-running checkout
// never decrements stock twice.
func (c *Coordinator) Checkout(ctx context.Context, userID uint) (Result, error) {
	var lines []model.CartLine
	if err := c.shared.WithContext(ctx).
		Where("user_id = ? AND is_purchased = ?", userID, false).
		Order("id").
		Find(&lines).Error; err != nil {
		return Result{}, err
	}

	// Group by store in first-seen order.
	order := []string{}
	groups := map[string][]model.CartLine{}
	for _, line := range lines {
		if _, ok := groups[line.StoreID]; !ok {
			order = append(order, line.StoreID)
		}
		groups[line.StoreID] = append(groups[line.StoreID], line)
	}

	log := logger.GetLogger()
	result := Result{Groups: make([]GroupResult, 0, len(order))}
	for _, storeID := range order {
		group := GroupResult{StoreID: storeID, Lines: groups[storeID]}
		if err := c.checkoutGroup(ctx, &group); err != nil {
			group.Error = err.Error()
			log.Warn("checkout group failed",
				zap.Uint("user_id", userID),
				zap.String("store_id", storeID),
				zap.Error(err))
		} else {
			log.Info("checkout group committed",
				zap.Uint("user_id", userID),
				zap.String("store_id", storeID),
				zap.Int("lines", len(group.Lines)))
		}
		result.Groups = append(result.Groups, group)
	}
	return result, nil
}

func (c *Coordinator) checkoutGroup(ctx context.Context, group *GroupResult) error {
	handle, err := c.router.Handle(ctx, group.StoreID)
	if err != nil {
		return err
	}
	group.TenantID = handle.Tenant.ID
	group.TenantName = handle.Tenant.Name

	err = handle.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range group.Lines {
			// The guarded UPDATE takes the row lock and enforces
			// stock >= 0 in one statement, so two concurrent
			// checkouts cannot both pass the check and oversell.
			res := tx.Model(&model.Product{}).
				Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
				Update("stock", gorm.Expr("stock - ?", line.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var count int64
				if err := tx.Model(&model.Product{}).Where("id = ?", line.ProductID).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return fmt.Errorf("product %d not found in store %s", line.ProductID, group.StoreID)
				}
				return fmt.Errorf("%w for product %d", ErrInsufficientStock, line.ProductID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The stock decrement is committed; flip the group's lines in the
	// shared store. These stores share no transaction, so this is the
	// best-effort seam: a crash here leaves stock decremented with the
	// lines still open, consistent with the documented model.
	lineIDs := make([]uint, 0, len(group.Lines))
	for i := range group.Lines {
		lineIDs = append(lineIDs, group.Lines[i].ID)
		group.Lines[i].IsPurchased = true
	}
	return c.shared.WithContext(ctx).
		Model(&model.CartLine{}).
		Where("id IN ?", lineIDs).
		Update("is_purchased", true).Error
}
