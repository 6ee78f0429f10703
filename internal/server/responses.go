package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/auth"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/model"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	codeInternalError      = "internal_error"
	messageInternalError   = "Internal server error"
	messageUnauthorized    = "Authentication required"
	messageInvalidLogin    = "Invalid email or password"
	messageRouteNotFound   = "Route not found"
	messageDeckArchived    = "Deck archived successfully"
	messageDeckUnarchived  = "Deck unarchived successfully"
	messageDeckDeleted     = "Deck deleted successfully"
	messageDeckArchivedNot = "Deck contains cards and was archived instead of deleted"
	messageCardDeleted     = "Card deleted successfully"
	messageLoggedOut       = "Logged out successfully"
	messageAuthAvailable   = "Auth service available"
)

type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Results *int   `json:"results,omitempty"`
	Code    string `json:"code,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

type deckPayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type cardPayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	DeckID    string    `json:"deck_id"`
	Front     string    `json:"front"`
	Back      string    `json:"back"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type accountPayload struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	CreatedAt   time.Time         `json:"created_at"`
	LastLoginAt *time.Time        `json:"last_sign_in_at,omitempty"`
	AppMetadata map[string]string `json:"app_metadata"`
}

type sessionPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"`
	ExpiresIn    int64  `json:"expires_in"`
}

func newDeckPayload(deck model.Deck) deckPayload {
	return deckPayload{
		ID:        deck.ID,
		UserID:    deck.UserID,
		Name:      deck.Name,
		Slug:      deck.Slug,
		Archived:  deck.Archived,
		CreatedAt: deck.CreatedAt.UTC(),
		UpdatedAt: deck.UpdatedAt.UTC(),
	}
}

func newDeckPayloads(decks []model.Deck) []deckPayload {
	payloads := make([]deckPayload, 0, len(decks))
	for _, deck := range decks {
		payloads = append(payloads, newDeckPayload(deck))
	}
	return payloads
}

func newCardPayload(card model.Card) cardPayload {
	return cardPayload{
		ID:        card.ID,
		UserID:    card.UserID,
		DeckID:    card.DeckID,
		Front:     card.Front,
		Back:      card.Back,
		CreatedAt: card.CreatedAt.UTC(),
		UpdatedAt: card.UpdatedAt.UTC(),
	}
}

func newCardPayloads(cards []model.Card) []cardPayload {
	payloads := make([]cardPayload, 0, len(cards))
	for _, card := range cards {
		payloads = append(payloads, newCardPayload(card))
	}
	return payloads
}

func newAccountPayload(account users.Account) accountPayload {
	return accountPayload{
		ID:          account.ID,
		Email:       account.Email,
		CreatedAt:   account.CreatedAt.UTC(),
		LastLoginAt: account.LastLoginAt,
		AppMetadata: map[string]string{"provider": "email"},
	}
}

func newSessionPayload(session auth.Session) sessionPayload {
	return sessionPayload{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    session.ExpiresAt.Unix(),
		ExpiresIn:    session.ExpiresIn,
	}
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Status: statusSuccess, Data: data})
}

func respondList(c *gin.Context, data any, count int) {
	c.JSON(http.StatusOK, envelope{Status: statusSuccess, Data: data, Results: &count})
}

func respondMessage(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Status: statusSuccess, Message: message, Data: data})
}

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Status: statusError, Message: message})
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, records.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, records.ErrPolicyConflict):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	status := statusForError(err)
	if status != http.StatusInternalServerError {
		message := err.Error()
		switch {
		case errors.Is(err, users.ErrInvalidCredentials):
			message = messageInvalidLogin
		case errors.Is(err, auth.ErrUnauthorized):
			message = messageUnauthorized
		}
		abortWithMessage(c, status, message)
		return
	}

	code := codeInternalError
	var serviceErr *records.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}
	h.logger.Error("request failed",
		zap.String("operation", operation),
		zap.String("code", code),
		zap.Error(err))
	c.AbortWithStatusJSON(status, envelope{Status: statusError, Message: messageInternalError, Code: code})
}
