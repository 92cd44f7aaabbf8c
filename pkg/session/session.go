// Package session implements the conversation-level state machine that
// sits above the key-management core: which phase of the DAKE a
// conversation is in, and the handling of a pre-key message that
// arrives while a conversation is already encrypted.
package session

import (
	"errors"
	"fmt"
	"log/slog"
)

// State mirrors the conversation's otrng_state enum, kept numerically
// stable for wire/logging compatibility with the source it was
// distilled from.
type State int

const (
	StateNone         State = 0
	StateStart        State = 1
	StateEncrypted    State = 2
	StateWaitingAuthI State = 3
	StateWaitingAuthR State = 4
	StateFinished     State = 5
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateStart:
		return "START"
	case StateEncrypted:
		return "ENCRYPTED"
	case StateWaitingAuthI:
		return "WAITING_AUTH_I"
	case StateWaitingAuthR:
		return "WAITING_AUTH_R"
	case StateFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInvalidTransition means the requested event is not legal from the
// conversation's current state.
var ErrInvalidTransition = errors.New("session: invalid state transition")

// Session tracks one conversation's DAKE phase. It is not safe for
// concurrent use without external synchronization, matching the rest
// of this module's single-goroutine-per-conversation design.
type Session struct {
	state State

	// pendingPreKey holds a DAKE pre-key message received while the
	// conversation is already ENCRYPTED, until the host explicitly
	// decides to start a new session from it. A pre-key arriving mid
	// conversation must never implicitly disturb the active ratchet:
	// it is opaque to this package, carried only so the host can commit
	// to it later via AcceptPendingPreKey.
	pendingPreKey any
}

// New creates a Session in its initial NONE state.
func New() *Session {
	return &Session{state: StateNone}
}

// State returns the conversation's current phase.
func (s *Session) State() State { return s.state }

// Start begins a new DAKE. Legal from NONE or FINISHED only: an
// in-progress or already-encrypted conversation must be explicitly
// reset or finished first.
func (s *Session) Start() error {
	if s.state != StateNone && s.state != StateFinished {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateStart
	s.pendingPreKey = nil
	return nil
}

// SentIdentity records that this side sent the first DAKE message (the
// identity / pre-key message) and is now waiting for the peer's
// auth-R. Legal only from START.
func (s *Session) SentIdentity() error {
	if s.state != StateStart {
		return fmt.Errorf("%w: sent identity from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateWaitingAuthR
	return nil
}

// ReceivedIdentity records that this side received the peer's first
// DAKE message and sent its own auth-R in response, and is now waiting
// for the peer's auth-I. Legal only from START.
func (s *Session) ReceivedIdentity() error {
	if s.state != StateStart {
		return fmt.Errorf("%w: received identity from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateWaitingAuthI
	return nil
}

// ReceivedAuthR completes the DAKE on the side that sent the identity
// message: the peer's auth-R has verified and the ratchet core is
// ready. Legal only from WAITING_AUTH_R.
func (s *Session) ReceivedAuthR() error {
	if s.state != StateWaitingAuthR {
		return fmt.Errorf("%w: received auth-r from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateEncrypted
	return nil
}

// ReceivedAuthI completes the DAKE on the side that received the
// identity message: the peer's auth-I has verified and the ratchet
// core is ready. Legal only from WAITING_AUTH_I.
func (s *Session) ReceivedAuthI() error {
	if s.state != StateWaitingAuthI {
		return fmt.Errorf("%w: received auth-i from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateEncrypted
	return nil
}

// End moves the conversation to FINISHED from any state. A finished
// conversation can only be revived by calling Start, which installs a
// fresh key-management core at the host layer.
func (s *Session) End() {
	s.state = StateFinished
	s.pendingPreKey = nil
}

// ReceivePreKeyWhileEncrypted stores a DAKE pre-key message received
// while the conversation is already ENCRYPTED, without disturbing the
// active ratchet. Only one pending pre-key is held at a time; a second
// arrival replaces the first, matching the source's "latest wins"
// handling of overlapping session requests.
func (s *Session) ReceivePreKeyWhileEncrypted(preKey any) error {
	if s.state != StateEncrypted {
		return fmt.Errorf(
			"%w: receive pending pre-key from %s", ErrInvalidTransition, s.state,
		)
	}
	if s.pendingPreKey != nil {
		slog.Warn("session: replacing pending pre-key from a prior new-session request")
	}
	s.pendingPreKey = preKey
	return nil
}

// PendingPreKey returns the pre-key message queued by
// ReceivePreKeyWhileEncrypted, or nil if none is pending.
func (s *Session) PendingPreKey() any { return s.pendingPreKey }

// AcceptPendingPreKey commits to starting a new session from the
// queued pre-key, returning it and resetting the conversation to START
// so the host can drive the DAKE to completion with a fresh
// key-management core.
func (s *Session) AcceptPendingPreKey() (any, error) {
	if s.pendingPreKey == nil {
		return nil, fmt.Errorf("session: no pending pre-key to accept")
	}
	preKey := s.pendingPreKey
	s.pendingPreKey = nil
	s.state = StateStart
	return preKey, nil
}

// DiscardPendingPreKey drops a queued pre-key without starting a new
// session, keeping the conversation ENCRYPTED.
func (s *Session) DiscardPendingPreKey() {
	s.pendingPreKey = nil
}
