// Package cards implements the card accessor: ownership-scoped card storage that
// checks the target deck on every create and move.
package cards

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/model"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"go.uber.org/zap"
)

const (
	opServiceNew = "cards.service.new"

	columnDeckID    = "deck_id"
	columnFront     = "front"
	columnBack      = "back"
	sortOldestFirst = "created_at:asc"
)

var (
	// ErrArchivedDeck rejects writes that would place a card in an archived deck.
	ErrArchivedDeck = fmt.Errorf("%w: cannot add card to archived deck", records.ErrPolicyConflict)
	// ErrEmptyContent rejects card sides that are blank once trimmed.
	ErrEmptyContent = fmt.Errorf("%w: card content must not be empty", records.ErrValidation)

	errMissingRecords = errors.New("card records accessor is required")
	errMissingDecks   = errors.New("deck reader is required")
)

// DeckReader resolves a deck owned by the caller.
type DeckReader interface {
	GetByID(ctx context.Context, userID records.UserID, id records.RecordID) (model.Deck, error)
}

// ServiceConfig describes the dependencies of the card accessor.
type ServiceConfig struct {
	Records *records.Accessor[model.Card, *model.Card]
	Decks   DeckReader
	Logger  *zap.Logger
}

// Service enforces card/deck consistency on write.
type Service struct {
	records *records.Accessor[model.Card, *model.Card]
	decks   DeckReader
	logger  *zap.Logger
}

// CreateInput carries a new card.
type CreateInput struct {
	DeckID records.RecordID
	Front  string
	Back   string
}

// UpdateInput carries a partial card update; nil fields are left untouched.
type UpdateInput struct {
	DeckID *records.RecordID
	Front  *string
	Back   *string
}

// NewService constructs the card accessor.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Records == nil {
		return nil, records.NewServiceError(opServiceNew, "missing_records", errMissingRecords)
	}
	if cfg.Decks == nil {
		return nil, records.NewServiceError(opServiceNew, "missing_decks", errMissingDecks)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		records: cfg.Records,
		decks:   cfg.Decks,
		logger:  logger,
	}, nil
}

// List returns the caller's cards.
func (s *Service) List(ctx context.Context, userID records.UserID, options records.ListOptions) ([]model.Card, error) {
	return s.records.List(ctx, userID, options)
}

// GetByID returns one of the caller's cards.
func (s *Service) GetByID(ctx context.Context, userID records.UserID, id records.RecordID) (model.Card, error) {
	return s.records.GetByID(ctx, userID, id)
}

// GetByDeckID returns the caller's cards in the deck, oldest first.
func (s *Service) GetByDeckID(ctx context.Context, userID records.UserID, deckID records.RecordID) ([]model.Card, error) {
	return s.records.List(ctx, userID, records.ListOptions{
		Filters: map[string]any{columnDeckID: deckID.String()},
		Sort:    sortOldestFirst,
	})
}

// HasCards reports whether any of the caller's cards references the deck.
func (s *Service) HasCards(ctx context.Context, userID records.UserID, deckID records.RecordID) (bool, error) {
	return s.records.Exists(ctx, userID, map[string]any{columnDeckID: deckID.String()})
}

// CreateWithDeckValidation stores a card after confirming the target deck is owned by
// the caller and not archived.
func (s *Service) CreateWithDeckValidation(ctx context.Context, userID records.UserID, input CreateInput) (model.Card, error) {
	front, err := normalizeContent(input.Front)
	if err != nil {
		return model.Card{}, err
	}
	back, err := normalizeContent(input.Back)
	if err != nil {
		return model.Card{}, err
	}
	if input.DeckID == "" {
		return model.Card{}, records.ErrInvalidRecordID
	}
	if err := s.requireWritableDeck(ctx, userID, input.DeckID); err != nil {
		return model.Card{}, err
	}
	return s.records.Create(ctx, userID, &model.Card{
		DeckID: input.DeckID.String(),
		Front:  front,
		Back:   back,
	})
}

// UpdateWithDeckValidation applies a partial update. Moving the card to another deck
// repeats the ownership and archived checks against the new deck.
func (s *Service) UpdateWithDeckValidation(ctx context.Context, userID records.UserID, id records.RecordID, input UpdateInput) (model.Card, error) {
	fields := make(map[string]any, 3)
	if input.Front != nil {
		front, err := normalizeContent(*input.Front)
		if err != nil {
			return model.Card{}, err
		}
		fields[columnFront] = front
	}
	if input.Back != nil {
		back, err := normalizeContent(*input.Back)
		if err != nil {
			return model.Card{}, err
		}
		fields[columnBack] = back
	}
	if input.DeckID != nil {
		if *input.DeckID == "" {
			return model.Card{}, records.ErrInvalidRecordID
		}
		fields[columnDeckID] = input.DeckID.String()
	}
	if len(fields) == 0 {
		return model.Card{}, records.ErrNoFields
	}

	if input.DeckID != nil {
		if err := s.requireWritableDeck(ctx, userID, *input.DeckID); err != nil {
			return model.Card{}, err
		}
	}
	return s.records.Update(ctx, userID, id, fields)
}

// Delete removes one of the caller's cards.
func (s *Service) Delete(ctx context.Context, userID records.UserID, id records.RecordID) error {
	return s.records.Delete(ctx, userID, id)
}

func (s *Service) requireWritableDeck(ctx context.Context, userID records.UserID, deckID records.RecordID) error {
	deck, err := s.decks.GetByID(ctx, userID, deckID)
	if err != nil {
		return err
	}
	if deck.Archived {
		s.logger.Info("card write rejected for archived deck",
			zap.String("user_id", userID.String()),
			zap.String("deck_id", deckID.String()))
		return fmt.Errorf("%w: %s", ErrArchivedDeck, deckID)
	}
	return nil
}

// normalizeContent trims surrounding whitespace and otherwise stores the text as given.
func normalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	return trimmed, nil
}
