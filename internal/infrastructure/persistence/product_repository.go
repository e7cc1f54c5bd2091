package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sellersync/backend/internal/domain/catalog"
	"github.com/sellersync/backend/internal/domain/shared"
	"github.com/sellersync/backend/internal/infrastructure/persistence/models"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindBySKU finds a product by its normalized SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("sku = ?", catalog.NormalizeSKU(sku)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create persists a new product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	var model models.ProductModel
	model.FromDomain(product)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// DecrementStock atomically reduces stock by quantity, clamping at zero, and
// returns the resulting level. The clamp happens in SQL so concurrent runs
// cannot drive stock negative.
func (r *GormProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return r.currentStock(ctx, productID)
	}

	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("CASE WHEN stock > ? THEN stock - ? ELSE 0 END", quantity, quantity),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, shared.ErrNotFound
	}

	return r.currentStock(ctx, productID)
}

func (r *GormProductRepository) currentStock(ctx context.Context, productID string) (int, error) {
	var stock int
	if err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", productID).
		Select("stock").
		Scan(&stock).Error; err != nil {
		return 0, err
	}
	return stock, nil
}
