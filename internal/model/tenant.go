package model

import (
	"time"
)

// Tenant represents one isolated customer organization. Each tenant's
// catalog lives in its own physical database named by StoreID; the row
// itself lives in the shared store.
type Tenant struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	StoreID   string    `json:"store_id" gorm:"type:varchar(120);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
