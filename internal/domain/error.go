package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Membership errors surfaced to API callers
	ErrUserNotFound         = errors.New("user not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPlanRequired         = errors.New("subscription requires a plan")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrDuplicateTransaction = errors.New("transaction hash already used")
	ErrInvalidTransaction   = errors.New("transaction failed ledger validation")
	ErrPlanInUse            = errors.New("plan is referenced by subscriptions")
)

// IsValidationFailure reports errors caused by caller input. They are never retried.
func IsValidationFailure(err error) bool {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrPlanNotFound),
		errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, ErrInvalidTransaction),
		errors.Is(err, ErrInvalidArgument):
		return true
	}
	return IsIntegrityViolation(err)
}

// IsIntegrityViolation reports writes rejected at the store boundary.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrDuplicateTransaction) ||
		errors.Is(err, ErrPlanRequired) ||
		errors.Is(err, ErrPlanInUse) ||
		errors.Is(err, ErrAlreadyExists)
}
