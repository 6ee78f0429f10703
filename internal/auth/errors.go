package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is the root of every credential rejection.
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingToken = fmt.Errorf("%w: bearer token required", ErrUnauthorized)
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrExpiredToken = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrRevokedToken = fmt.Errorf("%w: token revoked", ErrUnauthorized)

	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingIssuer        = errors.New("issuer must be provided")
	errMissingAudience      = errors.New("audience must be provided")
	errNonPositiveTTL       = errors.New("token ttl must be positive")
	errMissingSubjectClaim  = errors.New("subject claim must be provided")
	errMissingSessionClaim  = errors.New("session claim must be provided")
	errMissingDatabase      = errors.New("database handle is required")
	errMissingAccounts      = errors.New("account store is required")
	errMissingTokens        = errors.New("token issuer is required")
	errMissingRevocations   = errors.New("revocation store is required")
)
