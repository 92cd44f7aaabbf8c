package primitive

import (
	"errors"
	"fmt"

	"github.com/cloudflare/circl/dh/x448"
)

// ECDHPointSize is the wire size of a serialized Ed448/X448 public
// point, matching x448.Size. The DAKE codec (pkg/dake) adds its own
// 2-byte length prefix on top of this in the pre-key wire layout.
const ECDHPointSize = x448.Size

// ErrIdentityPoint is returned when a peer's public value is the
// all-zero X448 identity, which must never be accepted as a DH input
// (it collapses the shared secret to a known constant).
var ErrIdentityPoint = errors.New("ecdh: public value is the identity point")

// ECDHKeyPair is a local Ed448/X448 ephemeral keypair. The private
// scalar must be zeroized via Zero(kp.Priv[:]) once it is no longer
// needed.
type ECDHKeyPair struct {
	Priv x448.Key
	Pub  x448.Key
}

// ECDHGenerate produces a fresh ephemeral keypair from the CSPRNG.
func ECDHGenerate() (*ECDHKeyPair, error) {
	seed, err := RandomBytes(x448.Size)
	if err != nil {
		return nil, fmt.Errorf("ecdh: generating seed: %w", err)
	}
	defer Zero(seed)

	var kp ECDHKeyPair
	copy(kp.Priv[:], seed)
	x448.KeyGen(&kp.Pub, &kp.Priv)
	return &kp, nil
}

// ECDHAgree performs the constant-time Ed448/X448 Diffie-Hellman
// agreement and returns the 56-byte shared value.
// It rejects a peer public key that decodes to the identity point.
func ECDHAgree(priv *x448.Key, peerPub []byte) ([]byte, error) {
	if len(peerPub) != x448.Size {
		return nil, fmt.Errorf("ecdh: invalid public key length %d", len(peerPub))
	}
	var pub, shared x448.Key
	copy(pub[:], peerPub)
	if isZero(pub[:]) {
		return nil, ErrIdentityPoint
	}
	ok := x448.Shared(&shared, priv, &pub)
	if !ok {
		Zero(shared[:])
		return nil, fmt.Errorf("ecdh: shared value is low-order")
	}
	out := make([]byte, x448.Size)
	copy(out, shared[:])
	Zero(shared[:])
	return out, nil
}

func isZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
