package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 72

	queryEmail = "email = ?"
	queryID    = "id = ?"

	opNewService   = "users.service.new"
	opRegister     = "users.register"
	opAuthenticate = "users.authenticate"
	opGetByID      = "users.get_by_id"
)

var (
	// ErrInvalidEmail rejects malformed email addresses.
	ErrInvalidEmail = fmt.Errorf("%w: email is invalid", records.ErrValidation)
	// ErrInvalidPassword rejects passwords outside the accepted length range.
	ErrInvalidPassword = fmt.Errorf("%w: password must be between %d and %d characters", records.ErrValidation, minPasswordLength, maxPasswordLength)
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = fmt.Errorf("%w: email already registered", records.ErrPolicyConflict)
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("users: invalid email or password")
	// ErrAccountNotFound is returned when an account id does not resolve.
	ErrAccountNotFound = fmt.Errorf("%w: account", records.ErrNotFound)

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider records.IDProvider
	Logger     *zap.Logger
	HashCost   int
}

// Service registers and authenticates local accounts.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	ids        records.IDProvider
	logger     *zap.Logger
	hashCost   int
	validation *validator.Validate
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, records.NewServiceError(opNewService, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, records.NewServiceError(opNewService, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cost := cfg.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		ids:        cfg.IDProvider,
		logger:     logger,
		hashCost:   cost,
		validation: validator.New(),
	}, nil
}

// Register creates an account for the email with a bcrypt hash of the password.
func (s *Service) Register(ctx context.Context, email, password string) (Account, error) {
	normalized := normalizeEmail(email)
	if err := s.validation.Var(normalized, "required,email,max=320"); err != nil {
		return Account{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return Account{}, ErrInvalidPassword
	}

	var existing Account
	err := s.db.WithContext(ctx).Where(queryEmail, normalized).Take(&existing).Error
	if err == nil {
		return Account{}, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opRegister, "lookup_failed", err)
		return Account{}, records.NewServiceError(opRegister, "lookup_failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		s.logError(opRegister, "hash_failed", err)
		return Account{}, records.NewServiceError(opRegister, "hash_failed", err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		s.logError(opRegister, "id_generation_failed", err)
		return Account{}, records.NewServiceError(opRegister, "id_generation_failed", err)
	}

	createdAt := s.now().UTC()
	account := Account{
		ID:           id,
		Email:        normalized,
		PasswordHash: string(hash),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Account{}, ErrEmailTaken
		}
		s.logError(opRegister, "insert_failed", err, zap.String("user_id", id))
		return Account{}, records.NewServiceError(opRegister, "insert_failed", err)
	}
	return account, nil
}

// Authenticate verifies the password for the email and records the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	normalized := normalizeEmail(email)
	if normalized == "" || strings.TrimSpace(password) == "" {
		return Account{}, ErrInvalidCredentials
	}

	var account Account
	err := s.db.WithContext(ctx).Where(queryEmail, normalized).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		s.logError(opAuthenticate, "lookup_failed", err)
		return Account{}, records.NewServiceError(opAuthenticate, "lookup_failed", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	loginAt := s.now().UTC()
	err = s.db.WithContext(ctx).
		Model(&Account{}).
		Where(queryID, account.ID).
		Updates(map[string]any{"last_login_at": loginAt, "updated_at": loginAt}).
		Error
	if err != nil {
		s.logError(opAuthenticate, "touch_failed", err, zap.String("user_id", account.ID))
		return Account{}, records.NewServiceError(opAuthenticate, "touch_failed", err)
	}
	account.LastLoginAt = &loginAt
	account.UpdatedAt = loginAt
	return account, nil
}

// GetByID returns the account with the given user id.
func (s *Service) GetByID(ctx context.Context, userID records.UserID) (Account, error) {
	if userID == "" {
		return Account{}, records.ErrInvalidUserID
	}
	var account Account
	err := s.db.WithContext(ctx).Where(queryID, userID.String()).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	if err != nil {
		s.logError(opGetByID, "query_failed", err, zap.String("user_id", userID.String()))
		return Account{}, records.NewServiceError(opGetByID, "query_failed", err)
	}
	return account, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("users service error", attrs...)
}
