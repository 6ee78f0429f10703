package auth

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opRevoke       = "auth.revocations.revoke"
	opIsRevoked    = "auth.revocations.is_revoked"
	opPurgeExpired = "auth.revocations.purge_expired"
)

// RevokedToken remembers a revoked token or session id until nothing carrying it
// can still be valid.
type RevokedToken struct {
	TokenID   string    `gorm:"column:token_id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	RevokedAt time.Time `gorm:"column:revoked_at;not null"`
}

// TableName exposes the table backing revoked tokens.
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// RevocationStoreConfig describes the dependencies of the revocation store.
type RevocationStoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// RevocationStore persists revoked token ids.
type RevocationStore struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewRevocationStore constructs a RevocationStore.
func NewRevocationStore(cfg RevocationStoreConfig) (*RevocationStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevocationStore{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Revoke records the token id. Revoking the same token twice is a no-op.
func (s *RevocationStore) Revoke(ctx context.Context, claims Claims) error {
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.UTC()
	}
	return s.insert(ctx, claims.ID, claims.Subject, expiresAt)
}

// RevokeSession records the session id so every token of the session is rejected
// until the deadline.
func (s *RevocationStore) RevokeSession(ctx context.Context, claims Claims, deadline time.Time) error {
	return s.insert(ctx, claims.SessionID, claims.Subject, deadline.UTC())
}

func (s *RevocationStore) insert(ctx context.Context, id, userID string, expiresAt time.Time) error {
	if id == "" {
		return ErrInvalidToken
	}
	entry := RevokedToken{
		TokenID:   id,
		UserID:    userID,
		ExpiresAt: expiresAt,
		RevokedAt: s.clock().UTC(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).
		Error
	if err != nil {
		s.logger.Error("token revocation failed",
			zap.String("operation", opRevoke),
			zap.String("user_id", userID),
			zap.Error(err))
		return records.NewServiceError(opRevoke, "insert_failed", err)
	}
	return nil
}

// IsRevoked reports whether any of the ids was revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, ids ...string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&RevokedToken{}).
		Where("token_id IN ?", ids).
		Count(&count).
		Error
	if err != nil {
		s.logger.Error("token revocation lookup failed",
			zap.String("operation", opIsRevoked),
			zap.Error(err))
		return false, records.NewServiceError(opIsRevoked, "query_failed", err)
	}
	return count > 0, nil
}

// PurgeExpired drops entries whose tokens have expired and returns how many were removed.
func (s *RevocationStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.clock().UTC()).
		Delete(&RevokedToken{})
	if result.Error != nil {
		s.logger.Error("revoked token purge failed",
			zap.String("operation", opPurgeExpired),
			zap.Error(result.Error))
		return 0, records.NewServiceError(opPurgeExpired, "delete_failed", result.Error)
	}
	return result.RowsAffected, nil
}
