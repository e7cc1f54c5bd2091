package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellersync/backend/internal/domain/catalog"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	SKU       string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_sku"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Cost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Stock     int             `gorm:"not null;default:0"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		ID:        m.ID,
		SKU:       m.SKU,
		Name:      m.Name,
		Cost:      m.Cost,
		Stock:     m.Stock,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.ID = p.ID
	m.SKU = p.SKU
	m.Name = p.Name
	m.Cost = p.Cost
	m.Stock = p.Stock
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}
