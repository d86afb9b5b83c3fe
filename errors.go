package lockup

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every operation validates before it mutates, so any of
// these means the operation had no effect.
var (
	// General errors
	ErrNotFound      = errors.New("lockup: not found")
	ErrAlreadyExists = errors.New("lockup: already exists")
	ErrUnauthorized  = errors.New("lockup: unauthorized")
	ErrInvalidAmount = errors.New("lockup: invalid amount")

	// Lifecycle errors
	ErrNotInitialized     = errors.New("lockup: not initialized")
	ErrAlreadyInitialized = errors.New("lockup: already initialized")

	// Vesting errors
	ErrPoolNotFound           = errors.New("lockup: pool not found")
	ErrInvalidScheduleConfig  = errors.New("lockup: invalid schedule configuration")
	ErrExceedsAllocation      = errors.New("lockup: exceeds pool allocation")
	ErrNotYetClaimable        = errors.New("lockup: nothing claimable yet")
	ErrBeneficiaryNotFound    = errors.New("lockup: beneficiary not found")
	ErrBeneficiaryExists      = errors.New("lockup: beneficiary already exists")
	ErrDuplicateBeneficiaries = errors.New("lockup: beneficiary listed twice")

	// Staking errors
	ErrExceedsBalance   = errors.New("lockup: exceeds balance")
	ErrPositionNotFound = errors.New("lockup: stake position not found")
	ErrInvalidTier      = errors.New("lockup: staking option does not exist")
	ErrMaxPositions     = errors.New("lockup: too many stake positions")
	ErrCooldownActive   = errors.New("lockup: airdrop cooldown active")

	// Fee errors
	ErrInvalidFee         = errors.New("lockup: invalid fee")
	ErrTimelockNotElapsed = errors.New("lockup: minimum change interval not elapsed")

	// Store errors
	ErrStoreClosed     = errors.New("lockup: store is closed")
	ErrMigrationFailed = errors.New("lockup: migration failed")
)

// ValidationError names the offending field of a rejected request.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("lockup: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap returns the sentinel the failure maps to.
func (e ValidationError) Unwrap() error { return e.Err }

func invalid(sentinel error, field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: sentinel}
}

// MultiError collects the failures of a bulk request.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "lockup: no errors"
	case 1:
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("lockup: %d errors occurred (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add appends err when it is non-nil.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether anything was collected.
func (e MultiError) HasErrors() bool { return len(e.Errors) > 0 }

// ErrorOrNil returns e when it holds errors.
func (e MultiError) ErrorOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound reports whether err means a record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPoolNotFound) ||
		errors.Is(err, ErrBeneficiaryNotFound) ||
		errors.Is(err, ErrPositionNotFound)
}

// IsAuthError reports whether err is an authorization failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable reports whether resubmitting the same request later may
// succeed without any other change.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotYetClaimable) ||
		errors.Is(err, ErrCooldownActive) ||
		errors.Is(err, ErrTimelockNotElapsed)
}
