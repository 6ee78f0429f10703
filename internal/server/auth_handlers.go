package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleAuthStatus(c *gin.Context) {
	respondMessage(c, http.StatusOK, messageAuthAvailable, nil)
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, "auth.register", bindingError(err))
		return
	}

	account, err := h.authenticator.Register(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, "auth.register", err)
		return
	}
	h.logger.Info("account registered", zap.String("user_id", account.ID))
	respondData(c, http.StatusCreated, gin.H{"user": newAccountPayload(account)})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, "auth.login", bindingError(err))
		return
	}

	session, account, err := h.authenticator.Login(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, "auth.login", err)
		return
	}
	respondData(c, http.StatusOK, gin.H{
		"session": newSessionPayload(session),
		"user":    newAccountPayload(account),
	})
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	var request refreshRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, "auth.refresh", bindingError(err))
		return
	}

	session, err := h.authenticator.Refresh(c.Request.Context(), request.RefreshToken)
	if err != nil {
		h.respondError(c, "auth.refresh", err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"session": newSessionPayload(session)})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	if err := h.authenticator.Logout(c.Request.Context(), identity); err != nil {
		h.respondError(c, "auth.logout", err)
		return
	}
	respondMessage(c, http.StatusOK, messageLoggedOut, nil)
}

func (h *httpHandler) handleMe(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	account, err := h.authenticator.CurrentAccount(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, "auth.me", err)
		return
	}
	respondData(c, http.StatusOK, newAccountPayload(account))
}
