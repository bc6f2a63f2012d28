package model

import (
	"time"
)

// Product lives in a tenant store only. SKU is unique within one store,
// not globally. Stock never goes negative; checkout enforces it.
type Product struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	SKU         string    `json:"sku" gorm:"type:varchar(100);uniqueIndex;not null"`
	Price       float64   `json:"price" gorm:"not null"`
	Stock       int       `json:"stock" gorm:"default:0"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TenantProduct is a product tagged with its originating tenant, as
// returned by the cross-tenant catalog listing.
type TenantProduct struct {
	Product
	TenantID   uint   `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
}
