package records

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or incomplete input detected before any store access.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound covers both absent records and records owned by another user.
	ErrNotFound = errors.New("record not found")
	// ErrPolicyConflict marks writes rejected by a lifecycle rule.
	ErrPolicyConflict = errors.New("policy conflict")

	ErrInvalidUserID      = fmt.Errorf("%w: invalid user id", ErrValidation)
	ErrInvalidRecordID    = fmt.Errorf("%w: invalid record id", ErrValidation)
	ErrInvalidOptions     = fmt.Errorf("%w: invalid query options", ErrValidation)
	ErrNoFields           = fmt.Errorf("%w: at least one field must be provided for update", ErrValidation)
	ErrImmutableField     = fmt.Errorf("%w: field cannot be modified", ErrValidation)
	ErrArchiveUnsupported = fmt.Errorf("%w: archive not supported", ErrPolicyConflict)
)

// ServiceError carries a stable code for unexpected store failures.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

// NewServiceError builds a ServiceError coded as operation.reason.
func NewServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
