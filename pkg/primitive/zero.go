// Package primitive is the typed façade over the cryptographic building
// blocks the ratchet and DAKE layers consume: Ed448/X448 ECDH, 3072-bit
// finite-field DH, SHA3 hashing and KDFs, and a CSPRNG. It owns the
// secure-erasure contract: every function here that hands back secret
// bytes also hands back a precise way to destroy them.
package primitive

import "runtime"

// Zero overwrites b with zeros. The runtime.KeepAlive call after the
// loop stops the compiler from eliding the writes as dead stores, which
// a plain "clear(b)" at a point where b is never read again would risk.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// ZeroAll zeroes every slice in bs, skipping nils.
func ZeroAll(bs ...[]byte) {
	for _, b := range bs {
		if b != nil {
			Zero(b)
		}
	}
}
