package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCredits means the user has no active, unexpired credit.
	ErrInsufficientCredits  = errors.New("ledger: insufficient credits")
	ErrUserNotFound         = errors.New("ledger: user not found")
	ErrSubscriptionNotFound = errors.New("ledger: subscription not found")
	ErrInvalidArgument      = errors.New("ledger: invalid argument")
	// ErrLedgerInfrastructure wraps every storage failure.
	ErrLedgerInfrastructure = errors.New("ledger: infrastructure failure")
	// ErrClaimConflict is returned when a claimed row changed status before
	// it could be marked used.
	ErrClaimConflict = errors.New("ledger: claim conflict")
)

// infra tags a storage error. Domain errors pass through untouched.
func infra(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) || errors.Is(err, ErrLedgerInfrastructure) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrLedgerInfrastructure, err)
}

// IsDomainError reports whether err is a caller-facing ledger outcome rather
// than an infrastructure failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrClaimConflict)
}

func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
