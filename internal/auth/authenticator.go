package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/users"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	opNewAuthenticator = "auth.authenticator.new"
	opIssueSession     = "auth.session.issue"
)

// Identity is the resolved caller of a request.
type Identity struct {
	UserID    records.UserID
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// Session is the token pair returned on login and refresh.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	ExpiresIn    int64
}

// AccountStore manages the accounts sessions are issued for.
type AccountStore interface {
	Register(ctx context.Context, email, password string) (users.Account, error)
	Authenticate(ctx context.Context, email, password string) (users.Account, error)
	GetByID(ctx context.Context, userID records.UserID) (users.Account, error)
}

// AuthenticatorConfig describes the dependencies of the Authenticator.
type AuthenticatorConfig struct {
	Accounts    AccountStore
	Tokens      *TokenIssuer
	Revocations *RevocationStore
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Authenticator issues sessions and resolves bearer tokens to identities.
type Authenticator struct {
	accounts    AccountStore
	tokens      *TokenIssuer
	revocations *RevocationStore
	clock       func() time.Time
	logger      *zap.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(cfg AuthenticatorConfig) (*Authenticator, error) {
	if cfg.Accounts == nil {
		return nil, records.NewServiceError(opNewAuthenticator, "missing_accounts", errMissingAccounts)
	}
	if cfg.Tokens == nil {
		return nil, records.NewServiceError(opNewAuthenticator, "missing_tokens", errMissingTokens)
	}
	if cfg.Revocations == nil {
		return nil, records.NewServiceError(opNewAuthenticator, "missing_revocations", errMissingRevocations)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		accounts:    cfg.Accounts,
		tokens:      cfg.Tokens,
		revocations: cfg.Revocations,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Register creates an account.
func (a *Authenticator) Register(ctx context.Context, email, password string) (users.Account, error) {
	return a.accounts.Register(ctx, email, password)
}

// Login checks the credentials and issues a session.
func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, users.Account, error) {
	account, err := a.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, users.Account{}, err
	}
	sessionID, err := uuid.NewRandom()
	if err != nil {
		return Session{}, users.Account{}, records.NewServiceError(opIssueSession, "session_id_failed", err)
	}
	session, err := a.issueSession(account.ID, sessionID.String())
	if err != nil {
		return Session{}, users.Account{}, err
	}
	return session, account, nil
}

// Refresh exchanges a refresh token for a new token pair in the same session. The
// presented refresh token is revoked so it cannot be replayed.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := a.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return Session{}, err
	}
	if err := a.ensureNotRevoked(ctx, claims); err != nil {
		return Session{}, err
	}

	userID, err := records.NewUserID(claims.Subject)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := a.accounts.GetByID(ctx, userID); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return Session{}, fmt.Errorf("%w: account no longer exists", ErrInvalidToken)
		}
		return Session{}, err
	}

	if err := a.revocations.Revoke(ctx, claims); err != nil {
		return Session{}, err
	}
	return a.issueSession(userID.String(), claims.SessionID)
}

// Logout ends the session of the identity: its access token and every refresh token
// issued for the same login stop working.
func (a *Authenticator) Logout(ctx context.Context, identity Identity) error {
	claims, err := a.tokens.ValidateAccessToken(identity.Token)
	if err != nil {
		return err
	}
	if err := a.revocations.Revoke(ctx, claims); err != nil {
		return err
	}
	if err := a.revocations.RevokeSession(ctx, claims, a.tokens.SessionDeadline()); err != nil {
		return err
	}
	if purged, err := a.revocations.PurgeExpired(ctx); err == nil && purged > 0 {
		a.logger.Debug("purged expired revocations", zap.Int64("count", purged))
	}
	return nil
}

// Verify resolves a bearer token to the caller's identity.
func (a *Authenticator) Verify(ctx context.Context, token string) (Identity, error) {
	claims, err := a.tokens.ValidateAccessToken(token)
	if err != nil {
		return Identity{}, err
	}
	if err := a.ensureNotRevoked(ctx, claims); err != nil {
		return Identity{}, err
	}
	userID, err := records.NewUserID(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	identity := Identity{UserID: userID, Token: token, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return identity, nil
}

// CurrentAccount returns the account behind the identity.
func (a *Authenticator) CurrentAccount(ctx context.Context, identity Identity) (users.Account, error) {
	return a.accounts.GetByID(ctx, identity.UserID)
}

func (a *Authenticator) ensureNotRevoked(ctx context.Context, claims Claims) error {
	revoked, err := a.revocations.IsRevoked(ctx, claims.ID, claims.SessionID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrRevokedToken
	}
	return nil
}

func (a *Authenticator) issueSession(subject, sessionID string) (Session, error) {
	access, err := a.tokens.IssueAccessToken(subject, sessionID)
	if err != nil {
		a.logger.Error("failed to issue access token", zap.String("user_id", subject), zap.Error(err))
		return Session{}, records.NewServiceError(opIssueSession, "access_token_failed", err)
	}
	refresh, err := a.tokens.IssueRefreshToken(subject, sessionID)
	if err != nil {
		a.logger.Error("failed to issue refresh token", zap.String("user_id", subject), zap.Error(err))
		return Session{}, records.NewServiceError(opIssueSession, "refresh_token_failed", err)
	}
	expiresIn := int64(access.ExpiresAt.Sub(a.clock().UTC()).Seconds())
	return Session{
		AccessToken:  access.Value,
		RefreshToken: refresh.Value,
		ExpiresAt:    access.ExpiresAt,
		ExpiresIn:    expiresIn,
	}, nil
}
