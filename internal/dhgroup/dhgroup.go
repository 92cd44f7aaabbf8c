// Package dhgroup holds the process-wide 3072-bit MODP group parameters
// (RFC 3526 group 15) used by the DH-3072 half of the key exchange.
// This is a one-shot process initialization, not a mutable global
// exposed to the rest of the core: callers read the parameters through
// Prime/Generator, they never mutate them.
package dhgroup

import (
	"math/big"
	"sync"
)

const primeHex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E208E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"

var (
	once  sync.Once
	prime *big.Int
	gen   = big.NewInt(2)
)

func init() {
	prime, _ = new(big.Int).SetString(primeHex, 16)
}

// Init is a no-op placeholder for an explicit process-wide one-shot;
// the parameters are derived from a compile-time constant so there is
// nothing to fail, but Init gives callers an explicit init/teardown
// point to pair with Teardown instead of relying on package init()
// alone.
func Init() {
	once.Do(func() {})
}

// Teardown exists for symmetry with Init; the group parameters are
// immutable and public, so there is no secret state to scrub here.
func Teardown() {}

// Prime returns the 3072-bit MODP prime. The returned value must not be
// mutated by callers.
func Prime() *big.Int { return prime }

// Generator returns the group generator (2).
func Generator() *big.Int { return gen }

// Bytes is the byte length of the group prime (384 for 3072 bits).
const Bytes = 3072 / 8
