package models

import (
	"time"

	"github.com/sellersync/backend/internal/domain/marketplace"
)

// SessionModel is the persistence model for the marketplace session. The
// pipeline serves a single seller account, so the table holds one row keyed
// by seller id.
type SessionModel struct {
	SellerID     int64     `gorm:"primary_key;autoIncrement:false"`
	Nickname     string    `gorm:"type:varchar(100)"`
	AccessToken  string    `gorm:"type:text;not null"`
	RefreshToken string    `gorm:"type:text;not null"`
	ExpiresAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SessionModel) TableName() string {
	return "marketplace_sessions"
}

// ToDomain converts the persistence model to a domain Session.
func (m *SessionModel) ToDomain() *marketplace.Session {
	return &marketplace.Session{
		SellerID: m.SellerID,
		Nickname: m.Nickname,
		Credential: marketplace.Credential{
			AccessToken:  m.AccessToken,
			RefreshToken: m.RefreshToken,
			ExpiresAt:    m.ExpiresAt,
		},
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Session.
func (m *SessionModel) FromDomain(s *marketplace.Session) {
	m.SellerID = s.SellerID
	m.Nickname = s.Nickname
	m.AccessToken = s.Credential.AccessToken
	m.RefreshToken = s.Credential.RefreshToken
	m.ExpiresAt = s.Credential.ExpiresAt
	m.UpdatedAt = s.UpdatedAt
}
