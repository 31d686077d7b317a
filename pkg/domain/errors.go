package domain

import "errors"

// Common domain errors
var (
	ErrTransactionClosed  = errors.New("transaction already committed or rolled back")
	ErrUserActionRequired = errors.New("pending failures require user action")
	ErrUnresolvedFailures = errors.New("unresolved error-severity failures pending")
	ErrRolledBack         = errors.New("transaction rolled back by resolver directive")
	ErrResolutionLoop     = errors.New("failure resolution did not converge")
	ErrConfigInvalid      = errors.New("invalid configuration")
)
