package dake

import "errors"

// ErrInvalidPreKey covers both structural decode failures and the
// semantic validity checks on a received pre-key message: an
// identity-point Y, an out-of-range B, or a sender profile whose
// signature does not verify. Not fatal to the host; it aborts only
// this DAKE attempt.
var ErrInvalidPreKey = errors.New("dake: invalid pre-key message")
