package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 60 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenType separates short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the JWT payload issued for flashdeck sessions. SessionID is shared by
// the access and refresh tokens of one login.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	SessionID string    `json:"sid"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token with its id and expiry.
type IssuedToken struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// TokenIssuerConfig configures the session JWT issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Clock         func() time.Time
}

// TokenIssuer signs and validates HS256 session tokens.
type TokenIssuer struct {
	signingSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         func() time.Time
}

// NewTokenIssuer validates the configuration and constructs a TokenIssuer.
// Zero TTLs fall back to defaults; negative TTLs are rejected.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errMissingIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, errMissingAudience
	}
	accessTTL := cfg.AccessTTL
	if accessTTL == 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL == 0 {
		refreshTTL = defaultRefreshTTL
	}
	if accessTTL < 0 || refreshTTL < 0 {
		return nil, errNonPositiveTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		audience:      audience,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		clock:         clock,
	}, nil
}

// IssueAccessToken signs an access token for the subject within the session.
func (i *TokenIssuer) IssueAccessToken(subject, sessionID string) (IssuedToken, error) {
	return i.issue(subject, sessionID, TokenTypeAccess, i.accessTTL)
}

// IssueRefreshToken signs a refresh token for the subject within the session.
func (i *TokenIssuer) IssueRefreshToken(subject, sessionID string) (IssuedToken, error) {
	return i.issue(subject, sessionID, TokenTypeRefresh, i.refreshTTL)
}

// SessionDeadline is the latest expiry of any refresh token issued up to now.
func (i *TokenIssuer) SessionDeadline() time.Time {
	return i.clock().UTC().Add(i.refreshTTL)
}

// ValidateAccessToken parses an access token and returns its claims.
func (i *TokenIssuer) ValidateAccessToken(tokenString string) (Claims, error) {
	return i.validate(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken parses a refresh token and returns its claims.
func (i *TokenIssuer) ValidateRefreshToken(tokenString string) (Claims, error) {
	return i.validate(tokenString, TokenTypeRefresh)
}

func (i *TokenIssuer) issue(subject, sessionID string, tokenType TokenType, ttl time.Duration) (IssuedToken, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return IssuedToken{}, errMissingSubjectClaim
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return IssuedToken{}, errMissingSessionClaim
	}
	tokenID, err := uuid.NewRandom()
	if err != nil {
		return IssuedToken{}, err
	}

	now := i.clock().UTC()
	expiresAt := now.Add(ttl).UTC()
	claims := Claims{
		TokenType: tokenType,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   subject,
			Issuer:    i.issuer,
			Audience:  []string{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingSecret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Value: signed, ID: claims.ID, ExpiresAt: expiresAt}, nil
}

func (i *TokenIssuer) validate(tokenString string, expected TokenType) (Claims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return Claims{}, ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(parsed *jwt.Token) (interface{}, error) {
			if parsed.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", parsed.Method.Alg())
			}
			return i.signingSecret, nil
		},
		jwt.WithAudience(i.audience),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %w", ErrExpiredToken, err)
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.TokenType != expected {
		return Claims{}, fmt.Errorf("%w: expected %s token", ErrInvalidToken, expected)
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ID == "" {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, errMissingSubjectClaim)
	}
	if claims.SessionID == "" {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, errMissingSessionClaim)
	}
	return *claims, nil
}
