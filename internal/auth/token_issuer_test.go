package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T, clock func() time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "flashdeck-auth",
		Audience:      "flashdeck-api",
		AccessTTL:     30 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return issuer
}

func TestTokenIssuerIssuesAccessTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	issued, err := issuer.IssueAccessToken("user-123", "session-1")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if issued.ID == "" || !issued.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected issued token: %+v", issued)
	}

	parser := jwt.Parser{}
	claims := &Claims{}
	_, err = parser.ParseWithClaims(issued.Value, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "flashdeck-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "flashdeck-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
	if claims.TokenType != TokenTypeAccess || claims.ID != issued.ID || claims.SessionID != "session-1" {
		t.Fatalf("unexpected token type or id: %+v", claims)
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	access, err := issuer.IssueAccessToken("user-321", "session-1")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	claims, err := issuer.ValidateAccessToken(access.Value)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}
	if claims.Subject != "user-321" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}

	if _, err := issuer.ValidateAccessToken("invalid.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for malformed input, got %v", err)
	}
	if _, err := issuer.ValidateAccessToken("  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
}

func TestTokenIssuerSeparatesTokenTypes(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	refresh, err := issuer.IssueRefreshToken("user-1", "session-1")
	if err != nil {
		t.Fatalf("unexpected error issuing refresh token: %v", err)
	}
	if _, err := issuer.ValidateAccessToken(refresh.Value); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token to be rejected as access token, got %v", err)
	}
	if _, err := issuer.ValidateRefreshToken(refresh.Value); err != nil {
		t.Fatalf("expected refresh token to validate: %v", err)
	}
}

func TestTokenIssuerReportsExpiredTokens(t *testing.T) {
	issuedAt := time.Unix(1700000000, 0)
	now := issuedAt
	issuer := newTestIssuer(t, func() time.Time { return now })

	access, err := issuer.IssueAccessToken("user-1", "session-1")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	now = issuedAt.Add(31 * time.Minute)

	_, err = issuer.ValidateAccessToken(access.Value)
	if !errors.Is(err, ErrExpiredToken) || !errors.Is(err, jwt.ErrTokenExpired) || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestTokenIssuerRejectsForeignAudience(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	other, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "flashdeck-auth",
		Audience:      "other-api",
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	foreign, err := other.IssueAccessToken("user-1", "session-1")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if _, err := issuer.ValidateAccessToken(foreign.Value); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for foreign audience, got %v", err)
	}
}

func TestNewTokenIssuerValidatesConfig(t *testing.T) {
	testCases := []struct {
		name   string
		config TokenIssuerConfig
	}{
		{name: "missing secret", config: TokenIssuerConfig{Issuer: "flashdeck-auth", Audience: "flashdeck-api"}},
		{name: "missing issuer", config: TokenIssuerConfig{SigningSecret: []byte("secret"), Audience: "flashdeck-api"}},
		{name: "blank audience", config: TokenIssuerConfig{SigningSecret: []byte("secret"), Issuer: "flashdeck-auth", Audience: " "}},
		{name: "negative ttl", config: TokenIssuerConfig{SigningSecret: []byte("secret"), Issuer: "flashdeck-auth", Audience: "flashdeck-api", AccessTTL: -time.Minute}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := NewTokenIssuer(testCase.config); err == nil {
				t.Fatalf("expected constructor error")
			}
		})
	}
}

func TestTokenIssuerRequiresSubjectAndSession(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	if _, err := issuer.IssueAccessToken(" ", "session-1"); err == nil {
		t.Fatalf("expected error for blank subject")
	}
	if _, err := issuer.IssueRefreshToken("user-1", " "); err == nil {
		t.Fatalf("expected error for blank session")
	}
}

func TestTokenIssuerSharesSessionAcrossTokenTypes(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	access, err := issuer.IssueAccessToken("user-1", "session-7")
	if err != nil {
		t.Fatalf("unexpected error issuing access token: %v", err)
	}
	refresh, err := issuer.IssueRefreshToken("user-1", "session-7")
	if err != nil {
		t.Fatalf("unexpected error issuing refresh token: %v", err)
	}
	accessClaims, err := issuer.ValidateAccessToken(access.Value)
	if err != nil {
		t.Fatalf("expected access token to validate: %v", err)
	}
	refreshClaims, err := issuer.ValidateRefreshToken(refresh.Value)
	if err != nil {
		t.Fatalf("expected refresh token to validate: %v", err)
	}
	if accessClaims.SessionID != "session-7" || refreshClaims.SessionID != "session-7" {
		t.Fatalf("expected shared session id, got %q and %q", accessClaims.SessionID, refreshClaims.SessionID)
	}
	if accessClaims.ID == refreshClaims.ID {
		t.Fatalf("expected distinct token ids")
	}
}

func TestTokenIssuerSessionDeadlineCoversRefreshTokens(t *testing.T) {
	now := time.Unix(1700000000, 0)
	issuer := newTestIssuer(t, func() time.Time { return now })

	refresh, err := issuer.IssueRefreshToken("user-1", "session-1")
	if err != nil {
		t.Fatalf("unexpected error issuing refresh token: %v", err)
	}
	if deadline := issuer.SessionDeadline(); deadline.Before(refresh.ExpiresAt) {
		t.Fatalf("expected deadline %v to cover refresh expiry %v", deadline, refresh.ExpiresAt)
	}
}
