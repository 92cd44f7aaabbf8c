package ratchet

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/twstrike/libotrv4/pkg/primitive"
)

// SSIDSize is the width of the stable session identifier.
const SSIDSize = 8

// MixKeySize is the width of the mix-key.
const MixKeySize = primitive.SHA3256Size

// dhRotationPeriod: a fresh DH-3072 keypair is generated, and k_dh
// mixed into mix_key, every this-many'th ratchet.
const dhRotationPeriod = 3

// MessageKeys is the (encryption key, MAC key) pair returned by both
// the sending and the receiving key-retrieval paths, tagged with the
// ratchet and message id they belong to.
type MessageKeys struct {
	EncKey    []byte
	MacKey    []byte
	RatchetID uint32
	MessageID uint32
}

// Option configures a KeyManager at construction time.
type Option func(*KeyManager)

// WithBackfillCap overrides the default chain backfill cap.
func WithBackfillCap(cap int) Option {
	return func(m *KeyManager) { m.backfillCap = cap }
}

// KeyManager owns the current and previous ratchet, the local and
// peer ephemeral keys, the mix-key, the session id, and old MAC keys
// retained for later publication.
type KeyManager struct {
	i uint32
	j uint32

	current  *Ratchet
	previous *Ratchet

	ourECDH   *primitive.ECDHKeyPair
	ourDH     *primitive.DHKeyPair
	theirECDH []byte
	theirDH   *big.Int

	mixKey []byte
	ssid   []byte

	oldMACKeys [][]byte

	backfillCap int
}

// New creates an inert KeyManager with fresh local ephemerals. Callers
// must install the peer's ephemerals and call EnterFirstRatchet
// (or have their DAKE layer do so) before sending or
// receiving anything.
func New(opts ...Option) (*KeyManager, error) {
	ourECDH, err := primitive.ECDHGenerate()
	if err != nil {
		return nil, fmt.Errorf("ratchet: generating ecdh keypair: %w", err)
	}
	ourDH, err := primitive.DHGenerate()
	if err != nil {
		return nil, fmt.Errorf("ratchet: generating dh keypair: %w", err)
	}
	mixKey, err := primitive.RandomBytes(MixKeySize)
	if err != nil {
		return nil, fmt.Errorf("ratchet: seeding mix key: %w", err)
	}

	m := &KeyManager{
		ourECDH:     ourECDH,
		ourDH:       ourDH,
		mixKey:      mixKey,
		backfillCap: DefaultBackfillCap,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// OurECDHPublic returns our current ECDH ephemeral public value.
func (m *KeyManager) OurECDHPublic() []byte {
	return append([]byte(nil), m.ourECDH.Pub[:]...)
}

// OurDHPublic returns our current DH ephemeral public value.
func (m *KeyManager) OurDHPublic() *big.Int { return m.ourDH.Pub }

// SetTheirKeys installs the peer's ECDH and DH ephemeral public keys.
func (m *KeyManager) SetTheirKeys(theirECDH []byte, theirDH *big.Int) {
	m.theirECDH = append([]byte(nil), theirECDH...)
	m.theirDH = theirDH
}

// SSID returns the stable 64-bit session identifier, valid once the
// first ratchet has been entered.
func (m *KeyManager) SSID() []byte { return m.ssid }

// OldMACKeys returns the MAC keys retained for later publication. The
// host layer owns deciding when to actually publish them.
func (m *KeyManager) OldMACKeys() [][]byte { return m.oldMACKeys }

// RatchetID returns i, the current ratchet id.
func (m *KeyManager) RatchetID() uint32 { return m.i }

// SendIndex returns j, the index of the next sending message within
// the current sending chain.
func (m *KeyManager) SendIndex() uint32 { return m.j }

// compareECDH compares our ECDH public key against the peer's as
// big-endian unsigned integers.
func (m *KeyManager) compareECDH() int {
	return bytes.Compare(m.ourECDH.Pub[:], m.theirECDH)
}

// mixMixKey refreshes mix_key: a fresh DH agreement every
// dhRotationPeriod'th ratchet, otherwise a self-hash.
func (m *KeyManager) mixMixKey() error {
	if m.i%dhRotationPeriod == 0 {
		kDH, err := primitive.DHAgree(m.ourDH.Priv, m.theirDH)
		if err != nil {
			return fmt.Errorf("%w: dh agreement: %v", ErrKeyExchange, err)
		}
		digest := primitive.SHA3256(kDH)
		primitive.Zero(kDH)
		primitive.ZeroDH(m.ourDH.Priv)
		next := make([]byte, len(digest))
		copy(next, digest[:])
		primitive.Zero(m.mixKey)
		m.mixKey = next
		return nil
	}

	digest := primitive.SHA3256(m.mixKey)
	next := make([]byte, len(digest))
	copy(next, digest[:])
	primitive.Zero(m.mixKey)
	m.mixKey = next
	return nil
}

// EnterFirstRatchet installs ratchet 0 once the peer's ephemeral keys
// have been set via SetTheirKeys, invoked by the DAKE layer once the
// key exchange completes. It must be called exactly once, before any
// Rotate, EnsureOnRatchet, or key-retrieval call.
func (m *KeyManager) EnterFirstRatchet() error {
	if m.current != nil {
		return fmt.Errorf("ratchet: first ratchet already installed")
	}
	if m.theirECDH == nil || m.theirDH == nil {
		return fmt.Errorf("ratchet: peer keys not set")
	}
	return m.enterNewRatchet()
}

// enterNewRatchet performs the ECDH agreement, rolls mix_key, assembles
// the shared secret, derives ssid on the very first ratchet, retires
// the old "previous" ratchet, and installs a freshly derived ratchet
// at id i.
func (m *KeyManager) enterNewRatchet() error {
	kECDH, err := primitive.ECDHAgree(&m.ourECDH.Priv, m.theirECDH)
	if err != nil {
		return fmt.Errorf("%w: ecdh agreement: %v", ErrKeyExchange, err)
	}

	if err := m.mixMixKey(); err != nil {
		primitive.Zero(kECDH)
		return err
	}
	primitive.Zero(m.ourECDH.Priv[:])

	sharedArr := primitive.SHA3512(kECDH, m.mixKey)
	shared := make([]byte, len(sharedArr))
	copy(shared, sharedArr[:])
	primitive.Zero(kECDH)

	if m.current == nil {
		// This is the very first ratchet this KeyManager will ever
		// hold; ssid is derived once, here, and never again.
		ssidArr := primitive.SHA3256(shared)
		m.ssid = append([]byte(nil), ssidArr[:SSIDSize]...)
	}

	cmp := m.compareECDH()
	ratchet, err := FromShared(m.i, shared, cmp)
	primitive.Zero(shared)
	if err != nil {
		return err
	}
	ratchet.SetCap(m.backfillCap)

	if m.previous != nil {
		m.previous.Zeroize()
	}
	m.previous = m.current
	m.current = ratchet

	return nil
}

// regenerateEphemerals generates a fresh ECDH ephemeral unconditionally
// and a fresh DH ephemeral only when the new ratchet id is divisible
// by dhRotationPeriod.
func (m *KeyManager) regenerateEphemerals() error {
	ecdh, err := primitive.ECDHGenerate()
	if err != nil {
		return fmt.Errorf("ratchet: regenerating ecdh keypair: %w", err)
	}
	m.ourECDH = ecdh

	if m.i%dhRotationPeriod == 0 {
		dh, err := primitive.DHGenerate()
		if err != nil {
			return fmt.Errorf("ratchet: regenerating dh keypair: %w", err)
		}
		m.ourDH = dh
	}
	return nil
}

// Rotate performs a sender-initiated ratchet rotation: i++, j=0,
// ephemerals regenerated per the cadence rule, then enterNewRatchet.
func (m *KeyManager) Rotate() error {
	m.i++
	m.j = 0
	if err := m.regenerateEphemerals(); err != nil {
		return err
	}
	return m.enterNewRatchet()
}

// EnsureOnRatchet is the receiver-side counterpart of Rotate: a no-op
// if id already equals i; otherwise i <- id, ephemerals are
// regenerated per the same cadence rule, and a new ratchet is entered.
// Callers must call SetTheirKeys with the peer's new ephemerals before
// calling this.
//
// A receive referencing id == i-1 must NOT reach this function at
// all — that case is served directly from "previous" by
// RetrieveReceivingMessageKeys. An id older than that is rejected here
// with ErrRatchetNotFound rather than rolling the ratchet backward,
// which would otherwise let a malicious peer force it.
func (m *KeyManager) EnsureOnRatchet(id uint32) error {
	if id == m.i {
		return nil
	}
	if id < m.i {
		return ErrRatchetNotFound
	}

	m.i = id
	if err := m.regenerateEphemerals(); err != nil {
		return err
	}
	return m.enterNewRatchet()
}

// RetrieveSendingMessageKeys rotates if j==0 (should-ratchet),
// otherwise advances the sending chain by one link, derives enc/mac
// keys, verifies the computed id matches j, increments j, and returns
// the keys tagged with (ratchet_id=i, message_id).
func (m *KeyManager) RetrieveSendingMessageKeys() (*MessageKeys, error) {
	if m.j == 0 {
		if err := m.Rotate(); err != nil {
			return nil, err
		}
	}

	sending, _, err := m.current.chains()
	if err != nil {
		return nil, err
	}

	var id uint32
	var chainKey []byte
	if m.j == 0 {
		id, chainKey = sending.Last()
	} else {
		id, chainKey, err = sending.Advance()
		if err != nil {
			return nil, err
		}
	}

	if id != m.j {
		slog.Error(
			"ratchet: sending index mismatch",
			slog.Uint64("want", uint64(m.j)), slog.Uint64("got", uint64(id)),
		)
		return nil, ErrInternalInvariant
	}

	encKey := primitive.KDF256(0x01, chainKey, primitive.SHA3256Size)
	macKey := primitive.KDF512(0x02, chainKey, primitive.SHA3512Size)
	if err := sending.MarkConsumed(id); err != nil {
		return nil, err
	}

	keys := &MessageKeys{
		EncKey:    encKey,
		MacKey:    macKey,
		RatchetID: m.i,
		MessageID: id,
	}
	m.j++
	return keys, nil
}

// RetrieveReceivingMessageKeys selects the ratchet by id (current or
// previous only), backfills its receiving chain up to messageID, and
// derives enc/mac keys. old_mac_keys is NOT updated here — the caller
// must call AcknowledgeReceived after verifying decryption succeeded.
func (m *KeyManager) RetrieveReceivingMessageKeys(
	ratchetID, messageID uint32,
) (*MessageKeys, error) {
	var ratchet *Ratchet
	switch {
	case m.current != nil && ratchetID == m.i:
		ratchet = m.current
	case m.previous != nil && m.previous.ID() == ratchetID:
		ratchet = m.previous
	default:
		slog.Warn(
			"ratchet: dropping message for unknown ratchet",
			slog.Uint64("ratchet_id", uint64(ratchetID)),
		)
		return nil, ErrRatchetNotFound
	}

	_, receiving, err := ratchet.chains()
	if err != nil {
		return nil, err
	}

	chainKey, err := receiving.ExtendTo(messageID)
	if err != nil {
		slog.Warn(
			"ratchet: dropping message past backfill cap",
			slog.Uint64("message_id", uint64(messageID)),
		)
		return nil, err
	}

	encKey := primitive.KDF256(0x01, chainKey, primitive.SHA3256Size)
	macKey := primitive.KDF512(0x02, chainKey, primitive.SHA3512Size)

	return &MessageKeys{
		EncKey:    encKey,
		MacKey:    macKey,
		RatchetID: ratchetID,
		MessageID: messageID,
	}, nil
}

// AcknowledgeReceived marks the link at (ratchetID, messageID) as
// consumed (its chain key is zeroized at once if its successor link
// already exists, otherwise when that successor is derived; see
// Chain.MarkConsumed), and appends macKey to
// old_mac_keys for eventual deniability publication by the host
// layer. Callers must only call this once decryption and MAC
// verification of the corresponding message have both succeeded.
func (m *KeyManager) AcknowledgeReceived(
	ratchetID, messageID uint32, macKey []byte,
) error {
	var ratchet *Ratchet
	switch {
	case m.current != nil && ratchetID == m.i:
		ratchet = m.current
	case m.previous != nil && m.previous.ID() == ratchetID:
		ratchet = m.previous
	default:
		return ErrRatchetNotFound
	}

	_, receiving, err := ratchet.chains()
	if err != nil {
		return err
	}
	if err := receiving.MarkConsumed(messageID); err != nil {
		return err
	}

	m.oldMACKeys = append(m.oldMACKeys, append([]byte(nil), macKey...))
	return nil
}

// Destroy securely erases every secret the KeyManager holds: both
// ratchets' keys, both local private scalars, mix_key, and any MAC
// keys not yet published.
func (m *KeyManager) Destroy() {
	if m.current != nil {
		m.current.Zeroize()
	}
	if m.previous != nil {
		m.previous.Zeroize()
	}
	primitive.Zero(m.ourECDH.Priv[:])
	primitive.ZeroDH(m.ourDH.Priv)
	primitive.Zero(m.mixKey)
	for _, k := range m.oldMACKeys {
		primitive.Zero(k)
	}
	m.oldMACKeys = nil
}
