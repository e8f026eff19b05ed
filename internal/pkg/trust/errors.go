package trust

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the trust engine. Controllers translate these
// into structured HTTP responses; none of them crash the process.
var (
	ErrReportNotFound         = errors.New("report not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrForbidden              = errors.New("role lacks permission")
	ErrDuplicateVerification  = errors.New("report already verified by this user")
	ErrNotEnoughVerifications = errors.New("report has not reached the verification threshold")
	ErrNothingToUnconfirm     = errors.New("report is not confirmed")
)

// ValidationError reports malformed client input (status, vote type, role).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// OptimisticLockError is returned when a status update carries a stale
// expected version. It carries both versions so the caller can refetch
// and retry; the engine never attempts a merge.
type OptimisticLockError struct {
	Expected int
	Actual   int
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, actual %d", e.Expected, e.Actual)
}
