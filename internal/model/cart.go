package model

import (
	"time"
)

// CartLine lives in the shared store even though it references a
// tenant-scoped product: one user's cart can span several tenants.
// StoreID is a lookup reference to the owning tenant's store, not an
// ownership relation. A partial unique index keeps at most one
// unpurchased line per (user, store, product); purchased lines for the
// same triple accumulate freely.
type CartLine struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"uniqueIndex:uniq_open_cart_line,priority:1;not null"`
	StoreID     string    `json:"store_id" gorm:"type:varchar(120);uniqueIndex:uniq_open_cart_line,priority:2;not null"`
	ProductID   uint      `json:"product_id" gorm:"uniqueIndex:uniq_open_cart_line,priority:3,where:is_purchased = false;not null"`
	Quantity    int       `json:"quantity" gorm:"not null"`
	Subtotal    float64   `json:"subtotal" gorm:"not null"`
	IsPurchased bool      `json:"is_purchased" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EnrichedCartLine is a cart line joined with live product and tenant
// data for presentation. The enrichment never feeds back into the line.
type EnrichedCartLine struct {
	CartLine
	ProductName string  `json:"product_name"`
	ProductSKU  string  `json:"product_sku"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	IsInStock   bool    `json:"is_in_stock"`
	TenantID    uint    `json:"tenant_id"`
	TenantName  string  `json:"tenant_name"`
}
