package db

import "errors"

// Domain-level database error sentinels.
var (
	// Credit errors
	ErrAccountNotFound   = errors.New("credit account not found")
	ErrInsufficientFunds = errors.New("insufficient credits")

	// Workflow config errors
	ErrWorkflowConfigNotFound = errors.New("workflow config not found")

	// API key errors
	ErrAPIKeyNotFound  = errors.New("api key not found")
	ErrDuplicatePrefix = errors.New("api key prefix already exists")
)
