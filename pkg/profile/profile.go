// Package profile is a minimal stand-in for the externally-owned user-
// and client-profile subsystem; full profile management (expiry,
// transitional signatures, revocation) belongs to a collaborating
// layer. The DAKE pre-key codec only needs a capability that can (a)
// marshal itself into the TLV-shaped slot the wire layout reserves for
// it and (b) verify its own signature against an embedded long-term
// key; this package provides exactly that, generalized from the
// teacher's ed25519/ML-DSA attestation split to Ed448.
package profile

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"
)

// ErrInvalidSignature names the failure of a profile whose embedded
// signature does not validate against the embedded long-term key.
// Verify itself reports that outcome as a bool and does not return it.
var ErrInvalidSignature = errors.New("profile: signature verification failed")

// Profile is a signed long-term-key announcement. Only the fields the
// DAKE pre-key message's validity check needs are modeled: a long-term
// Ed448 public key, an expiry-free opaque payload, and a
// self-signature over that payload.
type Profile struct {
	LongTermKey ed448.PublicKey
	Payload     []byte // application-defined; opaque to this package
	Signature   []byte
}

// context is the domain-separation string signed over, binding
// signatures produced here to this protocol and preventing
// cross-protocol signature reuse.
const context = "otrng-pre-key-profile"

// New creates a Profile by signing payload under priv, whose matching
// public key becomes the profile's long-term key.
func New(priv ed448.PrivateKey, payload []byte) (*Profile, error) {
	pub, ok := priv.Public().(ed448.PublicKey)
	if !ok {
		return nil, fmt.Errorf("profile: unexpected public key type")
	}
	sig := ed448.Sign(priv, payload, context)

	return &Profile{
		LongTermKey: pub,
		Payload:     append([]byte(nil), payload...),
		Signature:   sig,
	}, nil
}

// GenerateLongTermKey is a convenience wrapper for tests and examples.
func GenerateLongTermKey() (ed448.PublicKey, ed448.PrivateKey, error) {
	pub, priv, err := ed448.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("profile: generating long-term key: %w", err)
	}
	return pub, priv, nil
}

// Verify checks the profile's self-signature against its own embedded
// long-term key.
func (p *Profile) Verify() bool {
	if len(p.LongTermKey) != ed448.PublicKeySize {
		return false
	}
	return ed448.Verify(p.LongTermKey, p.Payload, p.Signature, context)
}

// Marshal encodes the profile as length-prefixed key || payload ||
// signature, the TLV-ish form the pre-key wire layout's variable-length
// sender-profile field holds. Real TLV framing rules for application
// payloads are out of scope; this is the minimal self-delimiting form
// needed to round-trip within a larger pre-key message.
func (p *Profile) Marshal() []byte {
	buf := new(bytes.Buffer)
	writeChunk(buf, p.LongTermKey)
	writeChunk(buf, p.Payload)
	writeChunk(buf, p.Signature)
	return buf.Bytes()
}

// Unmarshal decodes the form written by Marshal, returning the number
// of bytes consumed.
func Unmarshal(data []byte) (*Profile, int, error) {
	r := bytes.NewReader(data)
	key, err := readChunk(r)
	if err != nil {
		return nil, 0, fmt.Errorf("profile: reading long-term key: %w", err)
	}
	payload, err := readChunk(r)
	if err != nil {
		return nil, 0, fmt.Errorf("profile: reading payload: %w", err)
	}
	sig, err := readChunk(r)
	if err != nil {
		return nil, 0, fmt.Errorf("profile: reading signature: %w", err)
	}

	p := &Profile{
		LongTermKey: ed448.PublicKey(key),
		Payload:     payload,
		Signature:   sig,
	}
	return p, len(data) - r.Len(), nil
}

func writeChunk(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readChunk(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if int64(n) > int64(r.Len()) {
		return nil, fmt.Errorf("profile: chunk length %d exceeds remaining input", n)
	}
	out := make([]byte, n)
	if _, err := readFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, fmt.Errorf("profile: short read: got %d want %d", n, len(buf))
	}
	return n, nil
}
