package model

import "errors"

// Sentinel errors for every failure kind the registry can surface.
// Callers match with errors.Is; wrapping adds context, never changes the kind.
var (
	ErrExpired                = errors.New("deadline expired")
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")
	ErrPoolNotFound           = errors.New("pool not found")
	ErrPoolNotInitialized     = errors.New("pool not initialized")
	ErrSlippageExceeded       = errors.New("slippage exceeded")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrNotApproved            = errors.New("caller not approved")
	ErrNotCleared             = errors.New("position not cleared")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrSignatureReplayed      = errors.New("signature replayed")
	ErrZeroAmountRequest      = errors.New("zero amount request")
	ErrNotFound               = errors.New("position not found")
	ErrUnderflow              = errors.New("liquidity underflow")
	ErrExists                 = errors.New("position already exists")
)
