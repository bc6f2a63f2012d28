package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/thisloadme/one-ecommerce/internal/model"
	"github.com/thisloadme/one-ecommerce/internal/store"

	"gorm.io/gorm"
)

var (
	// ErrProductNotFound is returned for lookups of absent products.
	ErrProductNotFound = errors.New("product not found")

	// ErrDuplicateSKU is returned when a create or update collides with
	// an existing SKU in the same store.
	ErrDuplicateSKU = errors.New("product with this SKU already exists")
)

// ProductInput carries the writable product fields.
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Stock       int
	SKU         string
	IsActive    bool
}

// Products is the tenant-scoped catalog CRUD, always operating through
// an explicit store handle.
type Products struct{}

func NewProducts() *Products { return &Products{} }

// List returns products from one store, filtered and paged in the
// store's own query.
func (p *Products) List(ctx context.Context, h store.Handle, filter Filter, activeOnly bool) ([]model.Product, error) {
	filter = filter.normalize()

	query := h.DB.WithContext(ctx).Model(&model.Product{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", needle, needle)
	}

	var products []model.Product
	err := query.Order("id").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&products).Error
	return products, err
}

// Get returns one product by id.
func (p *Products) Get(ctx context.Context, h store.Handle, id uint) (model.Product, error) {
	var product model.Product
	result := h.DB.WithContext(ctx).First(&product, id)
	if result.Error == gorm.ErrRecordNotFound {
		return model.Product{}, ErrProductNotFound
	}
	return product, result.Error
}

// Create inserts a product. SKUs are unique within the store only.
func (p *Products) Create(ctx context.Context, h store.Handle, input ProductInput) (model.Product, error) {
	var count int64
	if err := h.DB.WithContext(ctx).Model(&model.Product{}).Where("sku = ?", input.SKU).Count(&count).Error; err != nil {
		return model.Product{}, err
	}
	if count > 0 {
		return model.Product{}, ErrDuplicateSKU
	}

	product := model.Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		SKU:         input.SKU,
		IsActive:    input.IsActive,
	}
	if err := h.DB.WithContext(ctx).Create(&product).Error; err != nil {
		return model.Product{}, err
	}
	return product, nil
}

// Update overwrites the writable fields of a product.
func (p *Products) Update(ctx context.Context, h store.Handle, id uint, input ProductInput) (model.Product, error) {
	product, err := p.Get(ctx, h, id)
	if err != nil {
		return model.Product{}, err
	}

	if input.SKU != product.SKU {
		var count int64
		if err := h.DB.WithContext(ctx).Model(&model.Product{}).
			Where("sku = ? AND id != ?", input.SKU, id).Count(&count).Error; err != nil {
			return model.Product{}, err
		}
		if count > 0 {
			return model.Product{}, ErrDuplicateSKU
		}
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.Stock = input.Stock
	product.SKU = input.SKU
	product.IsActive = input.IsActive

	if err := h.DB.WithContext(ctx).Save(&product).Error; err != nil {
		return model.Product{}, err
	}
	return product, nil
}

// Delete removes a product.
func (p *Products) Delete(ctx context.Context, h store.Handle, id uint) error {
	result := h.DB.WithContext(ctx).Delete(&model.Product{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
