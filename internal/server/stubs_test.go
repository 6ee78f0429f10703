package server

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/auth"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/cards"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/decks"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/model"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/users"
)

const stubUserID records.UserID = "user-1"

var errNotStubbed = errors.New("not stubbed")

type stubAuthenticator struct {
	verifyErr error
}

func (s stubAuthenticator) Register(context.Context, string, string) (users.Account, error) {
	return users.Account{}, errNotStubbed
}

func (s stubAuthenticator) Login(context.Context, string, string) (auth.Session, users.Account, error) {
	return auth.Session{}, users.Account{}, errNotStubbed
}

func (s stubAuthenticator) Refresh(context.Context, string) (auth.Session, error) {
	return auth.Session{}, errNotStubbed
}

func (s stubAuthenticator) Logout(context.Context, auth.Identity) error {
	return errNotStubbed
}

func (s stubAuthenticator) Verify(_ context.Context, token string) (auth.Identity, error) {
	if s.verifyErr != nil {
		return auth.Identity{}, s.verifyErr
	}
	return auth.Identity{UserID: stubUserID, Token: token}, nil
}

func (s stubAuthenticator) CurrentAccount(context.Context, auth.Identity) (users.Account, error) {
	return users.Account{}, errNotStubbed
}

// recordingDeckService counts every call and returns the configured results.
type recordingDeckService struct {
	calls        []string
	deck         model.Deck
	deleteResult decks.DeleteResult
	err          error
}

func (s *recordingDeckService) record(name string) {
	s.calls = append(s.calls, name)
}

func (s *recordingDeckService) List(context.Context, records.UserID, records.ListOptions) ([]model.Deck, error) {
	s.record("List")
	return []model.Deck{s.deck}, s.err
}

func (s *recordingDeckService) GetByID(context.Context, records.UserID, records.RecordID) (model.Deck, error) {
	s.record("GetByID")
	return s.deck, s.err
}

func (s *recordingDeckService) GetBySlug(context.Context, records.UserID, string) (model.Deck, error) {
	s.record("GetBySlug")
	return s.deck, s.err
}

func (s *recordingDeckService) GetCards(context.Context, records.UserID, records.RecordID) ([]model.Card, error) {
	s.record("GetCards")
	return nil, s.err
}

func (s *recordingDeckService) Create(context.Context, records.UserID, decks.CreateInput) (model.Deck, error) {
	s.record("Create")
	return s.deck, s.err
}

func (s *recordingDeckService) Update(context.Context, records.UserID, records.RecordID, decks.UpdateInput) (model.Deck, error) {
	s.record("Update")
	return s.deck, s.err
}

func (s *recordingDeckService) Archive(context.Context, records.UserID, records.RecordID) (model.Deck, error) {
	s.record("Archive")
	return s.deck, s.err
}

func (s *recordingDeckService) Unarchive(context.Context, records.UserID, records.RecordID) (model.Deck, error) {
	s.record("Unarchive")
	return s.deck, s.err
}

func (s *recordingDeckService) Delete(context.Context, records.UserID, records.RecordID) (decks.DeleteResult, error) {
	s.record("Delete")
	return s.deleteResult, s.err
}

type recordingCardService struct {
	calls       []string
	card        model.Card
	err         error
	lastOptions records.ListOptions
}

func (s *recordingCardService) record(name string) {
	s.calls = append(s.calls, name)
}

func (s *recordingCardService) List(_ context.Context, _ records.UserID, options records.ListOptions) ([]model.Card, error) {
	s.record("List")
	s.lastOptions = options
	return []model.Card{s.card}, s.err
}

func (s *recordingCardService) GetByID(context.Context, records.UserID, records.RecordID) (model.Card, error) {
	s.record("GetByID")
	return s.card, s.err
}

func (s *recordingCardService) CreateWithDeckValidation(context.Context, records.UserID, cards.CreateInput) (model.Card, error) {
	s.record("CreateWithDeckValidation")
	return s.card, s.err
}

func (s *recordingCardService) UpdateWithDeckValidation(context.Context, records.UserID, records.RecordID, cards.UpdateInput) (model.Card, error) {
	s.record("UpdateWithDeckValidation")
	return s.card, s.err
}

func (s *recordingCardService) Delete(context.Context, records.UserID, records.RecordID) error {
	s.record("Delete")
	return s.err
}
