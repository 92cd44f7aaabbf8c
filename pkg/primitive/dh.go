package primitive

import (
	"fmt"
	"math/big"

	"github.com/twstrike/libotrv4/internal/dhgroup"
)

// DHExponentBytes bounds the size of generated private exponents. A
// full-width exponent is unnecessary for a safe-prime group of this
// size; 256 bytes (2048 bits) of entropy gives a comfortable security
// margin while keeping modexp cost bounded.
const DHExponentBytes = 256

// DHKeyPair is a local ephemeral 3072-bit MODP Diffie-Hellman keypair.
type DHKeyPair struct {
	Priv *big.Int
	Pub  *big.Int
}

// DHGenerate draws a fresh private exponent and computes g^priv mod p.
func DHGenerate() (*DHKeyPair, error) {
	buf, err := RandomBytes(DHExponentBytes)
	if err != nil {
		return nil, fmt.Errorf("dh: generating exponent: %w", err)
	}
	defer Zero(buf)

	priv := new(big.Int).SetBytes(buf)
	priv.Mod(priv, new(big.Int).Sub(dhgroup.Prime(), big.NewInt(3)))
	priv.Add(priv, big.NewInt(2)) // priv in [2, p-2]

	pub := new(big.Int).Exp(dhgroup.Generator(), priv, dhgroup.Prime())

	return &DHKeyPair{Priv: priv, Pub: pub}, nil
}

// ValidDHPublicValue reports whether pub lies in [2, p-2], the range
// required before accepting a peer's B.
func ValidDHPublicValue(pub *big.Int) bool {
	if pub == nil {
		return false
	}
	lower := big.NewInt(2)
	upper := new(big.Int).Sub(dhgroup.Prime(), big.NewInt(2))
	return pub.Cmp(lower) >= 0 && pub.Cmp(upper) <= 0
}

// DHAgree computes peerPub^priv mod p, the k_dh value mixed into
// mix_key every third ratchet.
func DHAgree(priv *big.Int, peerPub *big.Int) ([]byte, error) {
	if !ValidDHPublicValue(peerPub) {
		return nil, fmt.Errorf("dh: peer public value out of range")
	}
	shared := new(big.Int).Exp(peerPub, priv, dhgroup.Prime())
	out := make([]byte, dhgroup.Bytes)
	shared.FillBytes(out)
	return out, nil
}

// MarshalDHPublic encodes a DH public value as a 4-byte big-endian
// length prefix followed by its minimal big-endian representation,
// the "mpi" convention used for field B.
func MarshalDHPublic(pub *big.Int) []byte {
	b := pub.Bytes()
	out := make([]byte, 4+len(b))
	out[0] = byte(len(b) >> 24)
	out[1] = byte(len(b) >> 16)
	out[2] = byte(len(b) >> 8)
	out[3] = byte(len(b))
	copy(out[4:], b)
	return out
}

// UnmarshalDHPublic decodes the mpi form written by MarshalDHPublic,
// returning the value and the number of bytes consumed from buf.
func UnmarshalDHPublic(buf []byte) (*big.Int, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("dh: truncated mpi length prefix")
	}
	n := int(buf[0])<<24 | int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
	if n < 0 || 4+n > len(buf) {
		return nil, 0, fmt.Errorf("dh: truncated mpi body")
	}
	val := new(big.Int).SetBytes(buf[4 : 4+n])
	return val, 4 + n, nil
}

// ZeroDH scrubs a private exponent in place.
func ZeroDH(priv *big.Int) {
	if priv == nil {
		return
	}
	priv.SetInt64(0)
}
