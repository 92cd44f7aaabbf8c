package ratchet

import "errors"

// Error kinds the key-management core may raise. Every
// non-fatal kind is meant to be dropped and logged by the caller;
// fatal kinds end the conversation.
var (
	// ErrKeyExchange means an ECDH/DH agreement failed or produced a
	// forbidden value (identity point, out-of-range DH public value).
	// Fatal to the conversation.
	ErrKeyExchange = errors.New("ratchet: key exchange failed")

	// ErrRatchetNotFound means a receive referenced a ratchet id that
	// is neither the current nor the immediately previous one. Not
	// fatal; the message is dropped.
	ErrRatchetNotFound = errors.New("ratchet: ratchet id not found")

	// ErrMessageIDTooLarge means the requested chain index exceeds the
	// backfill cap. Not fatal; the message is dropped.
	ErrMessageIDTooLarge = errors.New("ratchet: message id exceeds backfill cap")

	// ErrInternalInvariant means a computed chain link id disagreed
	// with the expected sending index j. Fatal; indicates a
	// programming error.
	ErrInternalInvariant = errors.New("ratchet: internal invariant violated")

	// ErrOutOfMemory signals an allocation failure while extending a
	// chain. Fatal to the current operation.
	ErrOutOfMemory = errors.New("ratchet: out of memory extending chain")
)
