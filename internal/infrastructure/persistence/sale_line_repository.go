package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sellersync/backend/internal/domain/ledger"
	"github.com/sellersync/backend/internal/infrastructure/persistence/models"
)

// GormSaleLineRepository implements ledger.SaleLineRepository using GORM
type GormSaleLineRepository struct {
	db *gorm.DB
}

var _ ledger.SaleLineRepository = (*GormSaleLineRepository)(nil)

// NewGormSaleLineRepository creates a new GormSaleLineRepository
func NewGormSaleLineRepository(db *gorm.DB) *GormSaleLineRepository {
	return &GormSaleLineRepository{db: db}
}

// ExistsOrder reports whether any line of the order is already recorded
func (r *GormSaleLineRepository) ExistsOrder(ctx context.Context, channel, orderID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SaleLineModel{}).
		Where("channel = ? AND order_id = ?", channel, orderID).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpsertBatch writes the lines in one transaction. Lines whose
// (channel, order_id, item_id) key already exists are skipped via
// ON CONFLICT DO NOTHING; the returned keys are the ones actually inserted.
// The database is authoritative here: the caller decrements stock only for
// returned keys, so a duplicate never moves stock twice.
func (r *GormSaleLineRepository) UpsertBatch(ctx context.Context, lines []*ledger.SaleLine) ([]ledger.LineKey, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	inserted := make([]ledger.LineKey, 0, len(lines))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			var model models.SaleLineModel
			model.FromDomain(line)

			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "channel"}, {Name: "order_id"}, {Name: "item_id"}},
				DoNothing: true,
			}).Create(&model)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				inserted = append(inserted, line.Key())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// CountByOrder returns the number of recorded lines for an order
func (r *GormSaleLineRepository) CountByOrder(ctx context.Context, channel, orderID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SaleLineModel{}).
		Where("channel = ? AND order_id = ?", channel, orderID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
