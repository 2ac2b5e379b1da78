package models

import "errors"

var (
	// Ledger errors
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrDuplicateActivityID = errors.New("activity id already present in log")
	ErrInvariantViolation  = errors.New("ledger invariant violated")

	// Account errors
	ErrAlreadyExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
	ErrStaleAccount       = errors.New("account snapshot is stale")
	ErrPersistence        = errors.New("failed to persist account")
)
