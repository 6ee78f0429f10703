package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/decks"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListDecks(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	var query listQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.respondError(c, "decks.list", bindingError(err))
		return
	}
	options := query.options()
	options.Filters = nil

	found, err := h.decks.List(c.Request.Context(), identity.UserID, options)
	if err != nil {
		h.respondError(c, "decks.list", err)
		return
	}
	respondList(c, newDeckPayloads(found), len(found))
}

func (h *httpHandler) handleCreateDeck(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	var request createDeckRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, "decks.create", bindingError(err))
		return
	}
	if err := request.validate(); err != nil {
		h.respondError(c, "decks.create", err)
		return
	}

	deck, err := h.decks.Create(c.Request.Context(), identity.UserID, decks.CreateInput{Name: request.Name})
	if err != nil {
		h.respondError(c, "decks.create", err)
		return
	}
	respondData(c, http.StatusCreated, newDeckPayload(deck))
}

func (h *httpHandler) handleGetDeck(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, err := pathRecordID(c)
	if err != nil {
		h.respondError(c, "decks.get", err)
		return
	}

	deck, err := h.decks.GetByID(c.Request.Context(), identity.UserID, id)
	if err != nil {
		h.respondError(c, "decks.get", err)
		return
	}
	respondData(c, http.StatusOK, newDeckPayload(deck))
}

func (h *httpHandler) handleGetDeckBySlug(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}

	deck, err := h.decks.GetBySlug(c.Request.Context(), identity.UserID, c.Param("slug"))
	if err != nil {
		h.respondError(c, "decks.get_by_slug", err)
		return
	}
	respondData(c, http.StatusOK, newDeckPayload(deck))
}

func (h *httpHandler) handleGetDeckCards(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, err := pathRecordID(c)
	if err != nil {
		h.respondError(c, "decks.cards", err)
		return
	}

	found, err := h.decks.GetCards(c.Request.Context(), identity.UserID, id)
	if err != nil {
		h.respondError(c, "decks.cards", err)
		return
	}
	respondList(c, newCardPayloads(found), len(found))
}

func (h *httpHandler) handleUpdateDeck(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, err := pathRecordID(c)
	if err != nil {
		h.respondError(c, "decks.update", err)
		return
	}
	var request updateDeckRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, "decks.update", bindingError(err))
		return
	}
	if err := request.validate(); err != nil {
		h.respondError(c, "decks.update", err)
		return
	}

	deck, err := h.decks.Update(c.Request.Context(), identity.UserID, id, decks.UpdateInput{
		Name:     request.Name,
		Archived: request.Archived,
	})
	if err != nil {
		h.respondError(c, "decks.update", err)
		return
	}
	respondData(c, http.StatusOK, newDeckPayload(deck))
}

func (h *httpHandler) handleArchiveDeck(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, err := pathRecordID(c)
	if err != nil {
		h.respondError(c, "decks.archive", err)
		return
	}

	deck, err := h.decks.Archive(c.Request.Context(), identity.UserID, id)
	if err != nil {
		h.respondError(c, "decks.archive", err)
		return
	}
	respondMessage(c, http.StatusOK, messageDeckArchived, newDeckPayload(deck))
}

func (h *httpHandler) handleUnarchiveDeck(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, err := pathRecordID(c)
	if err != nil {
		h.respondError(c, "decks.unarchive", err)
		return
	}

	deck, err := h.decks.Unarchive(c.Request.Context(), identity.UserID, id)
	if err != nil {
		h.respondError(c, "decks.unarchive", err)
		return
	}
	respondMessage(c, http.StatusOK, messageDeckUnarchived, newDeckPayload(deck))
}

func (h *httpHandler) handleDeleteDeck(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	id, err := pathRecordID(c)
	if err != nil {
		h.respondError(c, "decks.delete", err)
		return
	}

	result, err := h.decks.Delete(c.Request.Context(), identity.UserID, id)
	if err != nil {
		h.respondError(c, "decks.delete", err)
		return
	}
	response := envelope{Status: statusSuccess, Outcome: result.Outcome.String(), Message: messageDeckDeleted}
	if result.Outcome == decks.DeleteOutcomeArchived && result.Deck != nil {
		response.Message = messageDeckArchivedNot
		response.Data = newDeckPayload(*result.Deck)
	}
	c.JSON(http.StatusOK, response)
}
