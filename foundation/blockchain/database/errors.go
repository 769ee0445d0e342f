package database

import (
	"errors"
	"fmt"
)

// ErrChainForked is returned when a foreign block does not extend the local
// head. It signals the caller to start a full chain resolution since the
// local node may simply be behind.
var ErrChainForked = errors.New("blockchain forked, start resolve")

// ErrStaleBlock is returned when the chain advanced while a block was being
// mined and the mined block no longer extends the head.
var ErrStaleBlock = errors.New("chain advanced while mining, block abandoned")

// Validation failures for externally supplied blocks and chains. These are
// never raised against the local chain, which is trusted once appended.
var (
	ErrHashMismatch     = errors.New("block hash does not match recomputed digest")
	ErrBrokenLinkage    = errors.New("previous hash does not match the parent block")
	ErrDifficultyNotMet = errors.New("block hash does not meet the difficulty target")
)

// Signature failures for transaction verification.
var (
	ErrMissingSignature = errors.New("transaction has no signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

// =============================================================================

// InsufficientBalanceError is returned when a transaction is admitted or
// verified against a sender who cannot cover the amount.
type InsufficientBalanceError struct {
	Sender string
	Have   float64
	Need   float64
}

// Error implements the error interface.
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: account %.8s has %s, needs %s", e.Sender, formatAmount(e.Have), formatAmount(e.Need))
}

// IsInsufficientBalance checks if an InsufficientBalanceError exists
// in the specified error chain.
func IsInsufficientBalance(err error) bool {
	var ibe *InsufficientBalanceError
	return errors.As(err, &ibe)
}
