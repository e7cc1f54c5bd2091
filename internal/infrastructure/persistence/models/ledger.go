package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellersync/backend/internal/domain/ledger"
)

// SaleLineModel is the persistence model for a sales ledger entry. The unique
// index on (channel, order_id, item_id) is what makes ingestion idempotent:
// UpsertBatch relies on ON CONFLICT against it.
type SaleLineModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	Channel      string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_sale_line_key,priority:1"`
	OrderID      string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_sale_line_key,priority:2"`
	ItemID       string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_sale_line_key,priority:3"`
	SKU          string          `gorm:"type:varchar(100);index"`
	ProductID    *uuid.UUID      `gorm:"type:uuid;index"`
	ProductName  string          `gorm:"type:varchar(200)"`
	Quantity     int             `gorm:"not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Total        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ShippingCost decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Commission   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ProductCost  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SaleDate     time.Time       `gorm:"not null;index"`
	CreatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SaleLineModel) TableName() string {
	return "sale_lines"
}

// ToDomain converts the persistence model to a domain SaleLine entity.
func (m *SaleLineModel) ToDomain() *ledger.SaleLine {
	return &ledger.SaleLine{
		ID:           m.ID,
		Channel:      m.Channel,
		OrderID:      m.OrderID,
		ItemID:       m.ItemID,
		SKU:          m.SKU,
		ProductID:    m.ProductID,
		ProductName:  m.ProductName,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		Total:        m.Total,
		ShippingCost: m.ShippingCost,
		Commission:   m.Commission,
		ProductCost:  m.ProductCost,
		SaleDate:     m.SaleDate,
		CreatedAt:    m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain SaleLine entity.
func (m *SaleLineModel) FromDomain(l *ledger.SaleLine) {
	m.ID = l.ID
	m.Channel = l.Channel
	m.OrderID = l.OrderID
	m.ItemID = l.ItemID
	m.SKU = l.SKU
	m.ProductID = l.ProductID
	m.ProductName = l.ProductName
	m.Quantity = l.Quantity
	m.UnitPrice = l.UnitPrice
	m.Total = l.Total
	m.ShippingCost = l.ShippingCost
	m.Commission = l.Commission
	m.ProductCost = l.ProductCost
	m.SaleDate = l.SaleDate
	m.CreatedAt = l.CreatedAt
}
