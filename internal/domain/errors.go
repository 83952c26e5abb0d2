package domain

import "errors"

// Validation errors
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrNameRequired            = errors.New("name is required")
	ErrNameTooLong             = errors.New("name exceeds maximum length")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrInvalidFrequency        = errors.New("invalid frequency")
	ErrInvalidDate             = errors.New("invalid date")
	ErrInvalidKind             = errors.New("invalid obligation kind")
	ErrInvalidProviderType     = errors.New("invalid notification provider type")
	ErrInvalidNotificationType = errors.New("invalid notification type")
	ErrInvalidSettings         = errors.New("invalid notification settings")
	ErrMissingCredential       = errors.New("missing provider credential")
)

// Lookup and ownership errors
var (
	ErrNotFound              = errors.New("resource not found")
	ErrOwnerNotFound         = errors.New("owner not found")
	ErrTemplateNotFound      = errors.New("recurring template not found")
	ErrObligationNotFound    = errors.New("obligation not found")
	ErrCategoryNotFound      = errors.New("category not found")
	ErrProviderNotConfigured = errors.New("notification provider not configured")
	ErrAccessDenied          = errors.New("access denied")
)

// State conflicts
var (
	ErrAlreadyPaid       = errors.New("obligation is already paid")
	ErrNotPaid           = errors.New("obligation is not paid")
	ErrLedgerMissing     = errors.New("paid obligation has no ledger entry")
	ErrJobAlreadyRunning = errors.New("job is already running")
)

// ErrGenerationRace is returned when a concurrent writer inserted occurrences for the same
// template while a generation pass was in flight. Retrying the pass is safe.
var ErrGenerationRace = errors.New("concurrent occurrence generation")

// Validation constants
const (
	MaxNameLength = 255
)

// IsValidation reports whether err belongs to the validation class
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrNameRequired, ErrNameTooLong, ErrInvalidAmount, ErrInvalidFrequency,
		ErrInvalidDate, ErrInvalidKind, ErrInvalidProviderType, ErrInvalidNotificationType,
		ErrInvalidSettings, ErrMissingCredential,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyPaid) || errors.Is(err, ErrNotPaid) || errors.Is(err, ErrLedgerMissing)
}

// IsNotFound reports whether err is any of the lookup errors
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrOwnerNotFound, ErrTemplateNotFound, ErrObligationNotFound,
		ErrCategoryNotFound, ErrProviderNotConfigured,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
