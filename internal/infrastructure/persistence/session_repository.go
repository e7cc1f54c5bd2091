package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sellersync/backend/internal/domain/marketplace"
	"github.com/sellersync/backend/internal/infrastructure/persistence/models"
)

// GormSessionStore implements marketplace.SessionStore using GORM
type GormSessionStore struct {
	db *gorm.DB
}

var _ marketplace.SessionStore = (*GormSessionStore)(nil)

// NewGormSessionStore creates a new GormSessionStore
func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: db}
}

// Load returns the stored session. The table holds at most one row per
// seller; the most recently updated one wins if the seller re-authorized
// under a different account.
func (s *GormSessionStore) Load(ctx context.Context) (*marketplace.Session, error) {
	var model models.SessionModel
	if err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrNoSession
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or replaces the session for the seller
func (s *GormSessionStore) Save(ctx context.Context, session *marketplace.Session) error {
	var model models.SessionModel
	model.FromDomain(session)
	if model.UpdatedAt.IsZero() {
		model.UpdatedAt = time.Now()
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "seller_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"nickname", "access_token", "refresh_token", "expires_at", "updated_at",
			}),
		}).
		Create(&model).Error
}
