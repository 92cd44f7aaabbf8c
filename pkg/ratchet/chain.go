package ratchet

import (
	"fmt"

	"github.com/twstrike/libotrv4/pkg/primitive"
)

// DefaultBackfillCap bounds how far extendTo will hash forward to
// satisfy a single requested index, so a remote peer cannot force
// unbounded hashing by claiming a very large message id.
const DefaultBackfillCap = 1 << 16

// ChainKeySize is the width of every chain key.
const ChainKeySize = primitive.SHA3512Size

// link is one node of a forward-only chain: an id and the 64-byte key
// at that position. A singly linked list grown on demand would work
// equally well; a vector indexed by id is simpler to reason about and
// is what we use here.
type link struct {
	id       uint32
	key      []byte
	consumed bool
}

// Chain is a forward-only sequence of symmetric chain keys, each
// derived from the previous by SHA3-512. The head, id 0, holds the
// seed passed to NewChain.
type Chain struct {
	links []link
	cap   int
}

// NewChain creates a chain whose head (id 0) holds a copy of seed.
func NewChain(seed []byte) *Chain {
	head := make([]byte, len(seed))
	copy(head, seed)
	return &Chain{
		links: []link{{id: 0, key: head}},
		cap:   DefaultBackfillCap,
	}
}

// SetCap overrides the backfill cap (default DefaultBackfillCap).
func (c *Chain) SetCap(cap int) { c.cap = cap }

// Last returns the id and key of the highest-materialized link. The
// returned key slice must not be retained past the next mutation.
func (c *Chain) Last() (id uint32, key []byte) {
	l := c.links[len(c.links)-1]
	return l.id, l.key
}

// Get returns the key at id if it has already been materialized.
func (c *Chain) Get(id uint32) (key []byte, ok bool) {
	if int(id) >= len(c.links) {
		return nil, false
	}
	return c.links[id].key, true
}

// ExtendTo derives forward links, one SHA3-512 hash at a time, until
// the link at id exists, and returns its key. It fails with
// ErrMessageIDTooLarge if doing so would exceed the configured cap.
//
// Deriving link n+1 hashes link n's key, so a link already marked
// consumed by MarkConsumed only has its key erased here, once its
// successor exists and that key is no longer needed as hash input —
// erasing it at consumption time would destroy material a later
// out-of-order or same-ratchet derivation still needs.
func (c *Chain) ExtendTo(id uint32) ([]byte, error) {
	if int(id) > c.cap {
		return nil, ErrMessageIDTooLarge
	}
	for uint32(len(c.links)) <= id {
		lastIdx := len(c.links) - 1
		last := c.links[lastIdx]
		digest := primitive.SHA3512(last.key)
		next := make([]byte, len(digest))
		copy(next, digest[:])
		c.links = append(c.links, link{id: last.id + 1, key: next})
		if last.consumed {
			primitive.Zero(c.links[lastIdx].key)
		}
	}
	return c.links[id].key, nil
}

// Advance derives exactly one new link past the current last and
// returns its id and key; equivalent to ExtendTo(last.id + 1).
func (c *Chain) Advance() (id uint32, key []byte, err error) {
	lastID, _ := c.Last()
	key, err = c.ExtendTo(lastID + 1)
	if err != nil {
		return 0, nil, err
	}
	return lastID + 1, key, nil
}

// MarkConsumed records that per-message keys have been derived from
// the link at id. If a successor link already exists, id's key is no
// longer needed for anything and is zeroized immediately; otherwise
// erasure is deferred until ExtendTo/Advance derives that successor,
// since id's key is still the hash input for deriving it.
func (c *Chain) MarkConsumed(id uint32) error {
	if int(id) >= len(c.links) {
		return fmt.Errorf("ratchet: mark consumed: id %d not materialized", id)
	}
	l := &c.links[id]
	if l.consumed {
		return nil
	}
	l.consumed = true
	if int(id)+1 < len(c.links) {
		primitive.Zero(l.key)
	}
	return nil
}

// Zeroize scrubs every materialized link's key, used when a Ratchet is
// displaced and securely erased.
func (c *Chain) Zeroize() {
	for i := range c.links {
		primitive.Zero(c.links[i].key)
	}
}
