package primitive

import (
	"crypto/subtle"

	"golang.org/x/crypto/sha3"
)

// SHA3256Size and SHA3512Size are the digest sizes of the two hash
// functions the ratchet core is built on.
const (
	SHA3256Size = 32
	SHA3512Size = 64
)

// SHA3256 returns the SHA3-256 digest of data.
func SHA3256(data ...[]byte) [SHA3256Size]byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	var out [SHA3256Size]byte
	h.Sum(out[:0])
	return out
}

// SHA3512 returns the SHA3-512 digest of data.
func SHA3512(data ...[]byte) [SHA3512Size]byte {
	h := sha3.New512()
	for _, d := range data {
		h.Write(d)
	}
	var out [SHA3512Size]byte
	h.Sum(out[:0])
	return out
}

// KDF256 computes SHA3-256(magic || key)[:outlen], the one-byte domain
// separated KDF variant used for enc_key derivation.
func KDF256(magic byte, key []byte, outlen int) []byte {
	h := sha3.New256()
	h.Write([]byte{magic})
	h.Write(key)
	digest := h.Sum(nil)
	return digest[:outlen]
}

// KDF512 computes SHA3-512(magic || key)[:outlen], used for mac_key
// and root/chain-seed derivation (magic bytes 0x01/0x02/0x03).
func KDF512(magic byte, key []byte, outlen int) []byte {
	h := sha3.New512()
	h.Write([]byte{magic})
	h.Write(key)
	digest := h.Sum(nil)
	return digest[:outlen]
}

// ConstantTimeEqual reports whether a and b hold identical bytes,
// without branching on secret data partway through the comparison.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
