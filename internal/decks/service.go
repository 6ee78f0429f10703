// Package decks implements the deck accessor: slug addressing, archive toggles and the
// delete-with-children policy on top of the ownership-scoped record accessor.
package decks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/model"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew   = "decks.service.new"
	opAllocateSlug = "decks.slug.allocate"
	opDelete       = "decks.delete"

	columnName     = "name"
	columnSlug     = "slug"
	columnArchived = "archived"

	fallbackSlug        = "deck"
	maxSlugLength       = 180
	maxSlugSuffix       = 1000
	maxCreateAttempts   = 3
	archivedInsteadNote = "deck contains cards; archived instead of deleted"
)

var (
	// ErrInvalidName rejects deck names that are blank after trimming.
	ErrInvalidName = fmt.Errorf("%w: deck name must not be empty", records.ErrValidation)
	// ErrInvalidSlug rejects blank slug lookups.
	ErrInvalidSlug = fmt.Errorf("%w: deck slug must not be empty", records.ErrValidation)

	errMissingRecords = errors.New("deck records accessor is required")
	errMissingCards   = errors.New("card index is required")
	errSlugExhausted  = errors.New("no free slug suffix")
)

// CardIndex answers card questions about a deck on behalf of the caller.
type CardIndex interface {
	GetByDeckID(ctx context.Context, userID records.UserID, deckID records.RecordID) ([]model.Card, error)
	HasCards(ctx context.Context, userID records.UserID, deckID records.RecordID) (bool, error)
}

// DeleteOutcome distinguishes a hard delete from the archive fallback.
type DeleteOutcome int

const (
	DeleteOutcomeDeleted DeleteOutcome = iota + 1
	DeleteOutcomeArchived
)

func (o DeleteOutcome) String() string {
	switch o {
	case DeleteOutcomeDeleted:
		return "deleted"
	case DeleteOutcomeArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// DeleteResult reports what Delete did. Deck is set only for DeleteOutcomeArchived.
type DeleteResult struct {
	Outcome DeleteOutcome
	Deck    *model.Deck
}

// ServiceConfig describes the dependencies of the deck accessor.
type ServiceConfig struct {
	Records *records.Accessor[model.Deck, *model.Deck]
	Cards   CardIndex
	Logger  *zap.Logger
}

// Service manages decks for their owners.
type Service struct {
	records *records.Accessor[model.Deck, *model.Deck]
	cards   CardIndex
	logger  *zap.Logger
}

// CreateInput carries a new deck.
type CreateInput struct {
	Name string
}

// UpdateInput carries a partial deck update; nil fields are left untouched.
type UpdateInput struct {
	Name     *string
	Archived *bool
}

// NewService constructs the deck accessor.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Records == nil {
		return nil, records.NewServiceError(opServiceNew, "missing_records", errMissingRecords)
	}
	if cfg.Cards == nil {
		return nil, records.NewServiceError(opServiceNew, "missing_cards", errMissingCards)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{records: cfg.Records, cards: cfg.Cards, logger: logger}, nil
}

// List returns the caller's decks.
func (s *Service) List(ctx context.Context, userID records.UserID, options records.ListOptions) ([]model.Deck, error) {
	return s.records.List(ctx, userID, options)
}

// GetByID returns one of the caller's decks, archived or not.
func (s *Service) GetByID(ctx context.Context, userID records.UserID, id records.RecordID) (model.Deck, error) {
	return s.records.GetByID(ctx, userID, id)
}

// GetBySlug returns the caller's deck with the given slug.
func (s *Service) GetBySlug(ctx context.Context, userID records.UserID, value string) (model.Deck, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return model.Deck{}, ErrInvalidSlug
	}
	return s.records.FindOne(ctx, userID, map[string]any{columnSlug: trimmed})
}

// GetCards lists the cards of one of the caller's decks. Archived decks stay readable.
func (s *Service) GetCards(ctx context.Context, userID records.UserID, id records.RecordID) ([]model.Card, error) {
	deck, err := s.records.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if deck.Archived {
		s.logger.Warn("listing cards from archived deck",
			zap.String("user_id", userID.String()),
			zap.String("deck_id", deck.ID))
	}
	return s.cards.GetByDeckID(ctx, userID, id)
}

// Create stores a new unarchived deck with a slug derived from its name.
func (s *Service) Create(ctx context.Context, userID records.UserID, input CreateInput) (model.Deck, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return model.Deck{}, ErrInvalidName
	}
	if userID == "" {
		return model.Deck{}, records.ErrInvalidUserID
	}

	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		deckSlug, err := s.allocateSlug(ctx, userID, name)
		if err != nil {
			return model.Deck{}, err
		}
		deck, err := s.records.Create(ctx, userID, &model.Deck{Name: name, Slug: deckSlug})
		if err == nil {
			return deck, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.Deck{}, err
		}
		lastErr = err
	}
	return model.Deck{}, lastErr
}

// Update renames or toggles the archived flag of one of the caller's decks.
// The slug is kept across renames.
func (s *Service) Update(ctx context.Context, userID records.UserID, id records.RecordID, input UpdateInput) (model.Deck, error) {
	fields := make(map[string]any, 2)
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return model.Deck{}, ErrInvalidName
		}
		fields[columnName] = name
	}
	if input.Archived != nil {
		fields[columnArchived] = *input.Archived
	}
	if len(fields) == 0 {
		return model.Deck{}, records.ErrNoFields
	}
	return s.records.Update(ctx, userID, id, fields)
}

// Archive hides one of the caller's decks from default listings.
func (s *Service) Archive(ctx context.Context, userID records.UserID, id records.RecordID) (model.Deck, error) {
	return s.records.Archive(ctx, userID, id)
}

// Unarchive restores one of the caller's decks to default listings.
func (s *Service) Unarchive(ctx context.Context, userID records.UserID, id records.RecordID) (model.Deck, error) {
	return s.records.Unarchive(ctx, userID, id)
}

// Delete hard-deletes an empty deck. A deck that still has cards is archived instead
// and reported with DeleteOutcomeArchived.
func (s *Service) Delete(ctx context.Context, userID records.UserID, id records.RecordID) (DeleteResult, error) {
	if _, err := s.records.GetByID(ctx, userID, id); err != nil {
		return DeleteResult{}, err
	}

	hasCards, err := s.cards.HasCards(ctx, userID, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if hasCards {
		archived, err := s.records.Archive(ctx, userID, id)
		if err != nil {
			return DeleteResult{}, err
		}
		s.logger.Info(archivedInsteadNote,
			zap.String("operation", opDelete),
			zap.String("user_id", userID.String()),
			zap.String("deck_id", id.String()))
		return DeleteResult{Outcome: DeleteOutcomeArchived, Deck: &archived}, nil
	}

	if err := s.records.Delete(ctx, userID, id); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Outcome: DeleteOutcomeDeleted}, nil
}

// allocateSlug derives a slug from the name and appends -2, -3, ... until it is free
// among the caller's decks, archived ones included.
func (s *Service) allocateSlug(ctx context.Context, userID records.UserID, name string) (string, error) {
	base := truncateSlug(slug.Make(name))
	if base == "" {
		base = fallbackSlug
	}
	candidate := base
	for suffix := 2; suffix <= maxSlugSuffix+1; suffix++ {
		taken, err := s.records.Exists(ctx, userID, map[string]any{columnSlug: candidate})
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
	s.logger.Error("deck slug allocation failed",
		zap.String("operation", opAllocateSlug),
		zap.String("user_id", userID.String()),
		zap.String("slug", base))
	return "", records.NewServiceError(opAllocateSlug, "exhausted", errSlugExhausted)
}

func truncateSlug(value string) string {
	if utf8.RuneCountInString(value) <= maxSlugLength {
		return value
	}
	runes := []rune(value)
	return strings.TrimRight(string(runes[:maxSlugLength]), "-")
}
