package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limited")
	ErrOutputNotAvailable = errors.New("output not available")

	// Generation lifecycle
	ErrAlreadyTerminal   = errors.New("generation already in a terminal state")
	ErrIllegalTransition = errors.New("illegal generation status transition")
	ErrPollInProgress    = errors.New("generation poll already in progress")

	// Upstream / settlement
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrSettlementFailed    = errors.New("credit settlement failed")
	ErrStorageUnavailable  = errors.New("object storage not configured")

	// Persistence
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)
