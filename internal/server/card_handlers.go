package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/cards"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListCards(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	var query listQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.respondError(c, "cards.list", bindingError(err))
		return
	}

	found, err := h.cards.List(c.Request.Context(), identity.UserID, query.options())
	if err != nil {
		h.respondError(c, "cards.list", err)
		return
	}
	respondList(c, newCardPayloads(found), len(found))
}

func (h *httpHandler) handleCreateCard(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	var request createCardRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, "cards.create", bindingError(err))
		return
	}
	if err := request.validate(); err != nil {
		h.respondError(c, "cards.create", err)
		return
	}
	deckID, err := records.NewRecordID(request.DeckID)
	if err != nil {
		h.respondError(c, "cards.create", err)
		return
	}

	card, err := h.cards.CreateWithDeckValidation(c.Request.Context(), identity.UserID, cards.CreateInput{
		DeckID: deckID,
		Front:  request.Front,
		Back:   request.Back,
	})
	if err != nil {
		h.respondError(c, "cards.create", err)
		return
	}
	respondData(c, http.StatusCreated, newCardPayload(card))
}

func (h *httpHandler) handleGetCard(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, err := pathRecordID(c)
	if err != nil {
		h.respondError(c, "cards.get", err)
		return
	}

	card, err := h.cards.GetByID(c.Request.Context(), identity.UserID, id)
	if err != nil {
		h.respondError(c, "cards.get", err)
		return
	}
	respondData(c, http.StatusOK, newCardPayload(card))
}

func (h *httpHandler) handleUpdateCard(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, err := pathRecordID(c)
	if err != nil {
		h.respondError(c, "cards.update", err)
		return
	}
	var request updateCardRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, "cards.update", bindingError(err))
		return
	}
	if err := request.validate(); err != nil {
		h.respondError(c, "cards.update", err)
		return
	}

	input := cards.UpdateInput{Front: request.Front, Back: request.Back}
	if request.DeckID != nil {
		deckID := records.RecordID(strings.TrimSpace(*request.DeckID))
		input.DeckID = &deckID
	}
	card, err := h.cards.UpdateWithDeckValidation(c.Request.Context(), identity.UserID, id, input)
	if err != nil {
		h.respondError(c, "cards.update", err)
		return
	}
	respondData(c, http.StatusOK, newCardPayload(card))
}

func (h *httpHandler) handleDeleteCard(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, err := pathRecordID(c)
	if err != nil {
		h.respondError(c, "cards.delete", err)
		return
	}

	if err := h.cards.Delete(c.Request.Context(), identity.UserID, id); err != nil {
		h.respondError(c, "cards.delete", err)
		return
	}
	respondMessage(c, http.StatusOK, messageCardDeleted, nil)
}
