// Package server exposes the flashdeck HTTP API over gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/auth"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/cards"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/decks"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/model"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const identityContextKey = "flashdeck_identity"

var (
	errMissingAuthenticator = errors.New("authenticator dependency required")
	errMissingDeckService   = errors.New("deck service dependency required")
	errMissingCardService   = errors.New("card service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// Authenticator issues sessions and resolves bearer tokens.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (users.Account, error)
	Login(ctx context.Context, email, password string) (auth.Session, users.Account, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Session, error)
	Logout(ctx context.Context, identity auth.Identity) error
	Verify(ctx context.Context, token string) (auth.Identity, error)
	CurrentAccount(ctx context.Context, identity auth.Identity) (users.Account, error)
}

// DeckService is the deck accessor used by the deck handlers.
type DeckService interface {
	List(ctx context.Context, userID records.UserID, options records.ListOptions) ([]model.Deck, error)
	GetByID(ctx context.Context, userID records.UserID, id records.RecordID) (model.Deck, error)
	GetBySlug(ctx context.Context, userID records.UserID, slug string) (model.Deck, error)
	GetCards(ctx context.Context, userID records.UserID, id records.RecordID) ([]model.Card, error)
	Create(ctx context.Context, userID records.UserID, input decks.CreateInput) (model.Deck, error)
	Update(ctx context.Context, userID records.UserID, id records.RecordID, input decks.UpdateInput) (model.Deck, error)
	Archive(ctx context.Context, userID records.UserID, id records.RecordID) (model.Deck, error)
	Unarchive(ctx context.Context, userID records.UserID, id records.RecordID) (model.Deck, error)
	Delete(ctx context.Context, userID records.UserID, id records.RecordID) (decks.DeleteResult, error)
}

// CardService is the card accessor used by the card handlers.
type CardService interface {
	List(ctx context.Context, userID records.UserID, options records.ListOptions) ([]model.Card, error)
	GetByID(ctx context.Context, userID records.UserID, id records.RecordID) (model.Card, error)
	CreateWithDeckValidation(ctx context.Context, userID records.UserID, input cards.CreateInput) (model.Card, error)
	UpdateWithDeckValidation(ctx context.Context, userID records.UserID, id records.RecordID, input cards.UpdateInput) (model.Card, error)
	Delete(ctx context.Context, userID records.UserID, id records.RecordID) error
}

// Dependencies lists the services and settings the HTTP handler is built from.
type Dependencies struct {
	Authenticator  Authenticator
	Decks          DeckService
	Cards          CardService
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router serving the /api routes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Authenticator == nil {
		return nil, errMissingAuthenticator
	}
	if deps.Decks == nil {
		return nil, errMissingDeckService
	}
	if deps.Cards == nil {
		return nil, errMissingCardService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registerFieldNames()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		authenticator: deps.Authenticator,
		decks:         deps.Decks,
		cards:         deps.Cards,
		logger:        logger,
	}

	router.NoRoute(func(c *gin.Context) {
		abortWithMessage(c, http.StatusNotFound, messageRouteNotFound)
	})

	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.GET("/status", handler.handleAuthStatus)
	authRoutes.POST("/register", handler.handleRegister)
	authRoutes.POST("/login", handler.handleLogin)
	authRoutes.POST("/refresh", handler.handleRefresh)
	authRoutes.POST("/logout", handler.authorizeRequest, handler.handleLogout)
	authRoutes.GET("/me", handler.authorizeRequest, handler.handleMe)

	deckRoutes := api.Group("/decks")
	deckRoutes.Use(handler.authorizeRequest)
	deckRoutes.GET("", handler.handleListDecks)
	deckRoutes.POST("", handler.handleCreateDeck)
	deckRoutes.GET("/slug/:slug", handler.handleGetDeckBySlug)
	deckRoutes.GET("/:id", handler.handleGetDeck)
	deckRoutes.GET("/:id/cards", handler.handleGetDeckCards)
	deckRoutes.PATCH("/:id", handler.handleUpdateDeck)
	deckRoutes.POST("/:id/archive", handler.handleArchiveDeck)
	deckRoutes.POST("/:id/unarchive", handler.handleUnarchiveDeck)
	deckRoutes.DELETE("/:id", handler.handleDeleteDeck)

	cardRoutes := api.Group("/cards")
	cardRoutes.Use(handler.authorizeRequest)
	cardRoutes.GET("", handler.handleListCards)
	cardRoutes.POST("", handler.handleCreateCard)
	cardRoutes.GET("/:id", handler.handleGetCard)
	cardRoutes.PATCH("/:id", handler.handleUpdateCard)
	cardRoutes.DELETE("/:id", handler.handleDeleteCard)

	return router, nil
}

type httpHandler struct {
	authenticator Authenticator
	decks         DeckService
	cards         CardService
	logger        *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(started)),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		abortWithMessage(c, http.StatusUnauthorized, errInvalidAuthorization.Error())
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		abortWithMessage(c, http.StatusUnauthorized, errInvalidAuthorization.Error())
		return
	}

	identity, err := h.authenticator.Verify(c.Request.Context(), token)
	if err != nil {
		var serviceErr *records.ServiceError
		switch {
		case errors.Is(err, auth.ErrExpiredToken), errors.Is(err, jwt.ErrTokenExpired):
			h.logger.Info("token validation failed", zap.Error(err))
		case errors.As(err, &serviceErr):
			h.respondError(c, "auth.verify", err)
			return
		default:
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		abortWithMessage(c, http.StatusUnauthorized, messageUnauthorized)
		return
	}
	c.Set(identityContextKey, identity)
	c.Next()
}

// identityFrom returns the identity stored by authorizeRequest, aborting with 401 when absent.
func identityFrom(c *gin.Context) (auth.Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if exists {
		if identity, ok := value.(auth.Identity); ok && identity.UserID != "" {
			return identity, true
		}
	}
	abortWithMessage(c, http.StatusUnauthorized, messageUnauthorized)
	return auth.Identity{}, false
}

func pathRecordID(c *gin.Context) (records.RecordID, error) {
	return records.NewRecordID(c.Param("id"))
}
