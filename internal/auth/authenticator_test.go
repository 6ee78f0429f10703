package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type sequenceIDGenerator struct {
	next int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("user-%d", g.next), nil
}

type authFixture struct {
	authenticator *Authenticator
	revocations   *RevocationStore
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:auth_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.Account{}, &RevokedToken{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	accounts, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: &sequenceIDGenerator{},
		HashCost:   bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("failed to construct users service: %v", err)
	}
	revocations, err := NewRevocationStore(RevocationStoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct revocation store: %v", err)
	}
	authenticator, err := NewAuthenticator(AuthenticatorConfig{
		Accounts:    accounts,
		Tokens:      newTestIssuer(t, nil),
		Revocations: revocations,
	})
	if err != nil {
		t.Fatalf("failed to construct authenticator: %v", err)
	}
	return authFixture{authenticator: authenticator, revocations: revocations}
}

func (f authFixture) login(t *testing.T) (Session, users.Account) {
	t.Helper()
	if _, err := f.authenticator.Register(context.Background(), "learner@example.com", "secret-1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	session, account, err := f.authenticator.Login(context.Background(), "learner@example.com", "secret-1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return session, account
}

func TestLoginIssuesVerifiableSession(t *testing.T) {
	f := newAuthFixture(t)
	session, account := f.login(t)

	if session.AccessToken == "" || session.RefreshToken == "" || session.ExpiresIn <= 0 {
		t.Fatalf("unexpected session: %+v", session)
	}
	identity, err := f.authenticator.Verify(context.Background(), session.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if identity.UserID != records.UserID(account.ID) || identity.Token != session.AccessToken {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	current, err := f.authenticator.CurrentAccount(context.Background(), identity)
	if err != nil {
		t.Fatalf("current account failed: %v", err)
	}
	if current.Email != "learner@example.com" {
		t.Fatalf("unexpected current account: %+v", current)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.login(t)

	_, _, err := f.authenticator.Login(context.Background(), "learner@example.com", "wrong-pass")
	if !errors.Is(err, users.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	f := newAuthFixture(t)
	session, _ := f.login(t)

	testCases := []struct {
		name     string
		token    string
		expected error
	}{
		{name: "missing", token: "", expected: ErrMissingToken},
		{name: "garbage", token: "not-a-token", expected: ErrInvalidToken},
		{name: "refresh token", token: session.RefreshToken, expected: ErrInvalidToken},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := f.authenticator.Verify(context.Background(), testCase.token)
			if !errors.Is(err, testCase.expected) || !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	session, _ := f.login(t)

	identity, err := f.authenticator.Verify(context.Background(), session.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := f.authenticator.Logout(context.Background(), identity); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if err := f.authenticator.Logout(context.Background(), identity); err != nil {
		t.Fatalf("repeated logout failed: %v", err)
	}

	if _, err := f.authenticator.Verify(context.Background(), session.AccessToken); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected revoked token, got %v", err)
	}
}

func TestLogoutEndsRefreshForTheSession(t *testing.T) {
	f := newAuthFixture(t)
	session, _ := f.login(t)

	identity, err := f.authenticator.Verify(context.Background(), session.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := f.authenticator.Logout(context.Background(), identity); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, err := f.authenticator.Refresh(context.Background(), session.RefreshToken); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected refresh after logout to be revoked, got %v", err)
	}
}

func TestLogoutEndsRotatedSession(t *testing.T) {
	f := newAuthFixture(t)
	session, _ := f.login(t)

	refreshed, err := f.authenticator.Refresh(context.Background(), session.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	// Logging out with the original access token still ends the refreshed pair.
	identity, err := f.authenticator.Verify(context.Background(), session.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := f.authenticator.Logout(context.Background(), identity); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, err := f.authenticator.Verify(context.Background(), refreshed.AccessToken); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected refreshed access token to be revoked, got %v", err)
	}
	if _, err := f.authenticator.Refresh(context.Background(), refreshed.RefreshToken); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected refreshed refresh token to be revoked, got %v", err)
	}
}

func TestLogoutLeavesOtherSessionsActive(t *testing.T) {
	f := newAuthFixture(t)
	first, _ := f.login(t)
	second, _, err := f.authenticator.Login(context.Background(), "learner@example.com", "secret-1")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	identity, err := f.authenticator.Verify(context.Background(), first.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := f.authenticator.Logout(context.Background(), identity); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, err := f.authenticator.Verify(context.Background(), second.AccessToken); err != nil {
		t.Fatalf("expected other session to stay valid, got %v", err)
	}
	if _, err := f.authenticator.Refresh(context.Background(), second.RefreshToken); err != nil {
		t.Fatalf("expected other session to refresh, got %v", err)
	}
}

func TestRefreshRotatesRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	session, account := f.login(t)

	refreshed, err := f.authenticator.Refresh(context.Background(), session.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	identity, err := f.authenticator.Verify(context.Background(), refreshed.AccessToken)
	if err != nil {
		t.Fatalf("verify of refreshed token failed: %v", err)
	}
	if identity.UserID != records.UserID(account.ID) {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	if _, err := f.authenticator.Refresh(context.Background(), session.RefreshToken); !errors.Is(err, ErrRevokedToken) {
		t.Fatalf("expected replayed refresh token to be revoked, got %v", err)
	}
	if _, err := f.authenticator.Refresh(context.Background(), session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token to be rejected for refresh, got %v", err)
	}
}

func TestRevocationStorePurgesExpiredEntries(t *testing.T) {
	f := newAuthFixture(t)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := Claims{}
	expired.ID = "expired-token"
	expired.Subject = "user-1"
	expired.ExpiresAt = jwt.NewNumericDate(past)
	active := Claims{}
	active.ID = "active-token"
	active.Subject = "user-1"
	active.ExpiresAt = jwt.NewNumericDate(future)

	for _, claims := range []Claims{expired, active} {
		if err := f.revocations.Revoke(context.Background(), claims); err != nil {
			t.Fatalf("revoke failed: %v", err)
		}
	}
	purged, err := f.revocations.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one purged entry, got %d", purged)
	}
	stillRevoked, err := f.revocations.IsRevoked(context.Background(), "active-token")
	if err != nil || !stillRevoked {
		t.Fatalf("expected active token to stay revoked, got %v, %v", stillRevoked, err)
	}
}

func TestNewAuthenticatorRequiresDependencies(t *testing.T) {
	_, err := NewAuthenticator(AuthenticatorConfig{})
	var serviceErr *records.ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "auth.authenticator.new.missing_accounts" {
		t.Fatalf("expected missing_accounts service error, got %v", err)
	}
}
