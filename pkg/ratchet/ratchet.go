package ratchet

import "github.com/twstrike/libotrv4/pkg/primitive"

// Domain separators for the three KDFs that turn one shared secret
// into a root key and two chain seeds.
const (
	magicRootKey = 0x01
	magicChainA  = 0x02
	magicChainB  = 0x03
)

// Ratchet is a pair of forward-only chains plus a root key, all
// derived from one 64-byte shared secret. ChainA and ChainB are never
// nil after construction; id is the ratchet's monotonically increasing
// index within its KeyManager.
type Ratchet struct {
	id      uint32
	rootKey []byte
	chainA  *Chain
	chainB  *Chain

	// cmp freezes the outcome of comparing our ECDH public key against
	// the peer's at the moment this ratchet was created. The per-ratchet
	// view of these keys must be preserved even after our_ecdh/their_ecdh
	// have since rotated, so the comparison is computed once here rather
	// than recomputed live.
	cmp int
}

// FromShared deterministically derives (root_key, chain_a seed,
// chain_b seed) from a 64-byte shared secret using SHA3-512 KDFs with
// domain separators 0x01/0x02/0x03, and initializes both chains at id
// 0. Derivation is atomic: either all three succeed and a fully formed
// Ratchet is returned, or nothing is allocated. KDF512 cannot fail once
// its input length has been checked, so there is no partial-init path.
func FromShared(id uint32, shared []byte, cmp int) (*Ratchet, error) {
	if len(shared) != primitive.SHA3512Size {
		return nil, ErrKeyExchange
	}

	root := primitive.KDF512(magicRootKey, shared, ChainKeySize)
	seedA := primitive.KDF512(magicChainA, shared, ChainKeySize)
	seedB := primitive.KDF512(magicChainB, shared, ChainKeySize)

	r := &Ratchet{
		id:      id,
		rootKey: root,
		chainA:  NewChain(seedA),
		chainB:  NewChain(seedB),
		cmp:     cmp,
	}
	primitive.Zero(seedA)
	primitive.Zero(seedB)
	return r, nil
}

// ID returns the ratchet's identifier.
func (r *Ratchet) ID() uint32 { return r.id }

// RootKey returns the ratchet's root key. Callers must not retain or
// mutate the returned slice past the ratchet's lifetime.
func (r *Ratchet) RootKey() []byte { return r.rootKey }

// SetCap propagates a non-default backfill cap to both chains.
func (r *Ratchet) SetCap(cap int) {
	r.chainA.SetCap(cap)
	r.chainB.SetCap(cap)
}

// chains selects (sending, receiving) by lexicographic comparison: the
// side whose ECDH public key compares greater, as a big-endian
// unsigned integer, sends on chain A. Equality fails with
// ErrKeyExchange — it should be cryptographically impossible outside
// of a failure.
func (r *Ratchet) chains() (sending, receiving *Chain, err error) {
	switch {
	case r.cmp > 0:
		return r.chainA, r.chainB, nil
	case r.cmp < 0:
		return r.chainB, r.chainA, nil
	default:
		return nil, nil, ErrKeyExchange
	}
}

// Zeroize securely erases the root key and both chains' keys. Called
// when a ratchet is displaced from the "previous" slot.
func (r *Ratchet) Zeroize() {
	primitive.Zero(r.rootKey)
	r.chainA.Zeroize()
	r.chainB.Zeroize()
}
