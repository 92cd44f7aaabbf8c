package primitive

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes fills a freshly allocated len(size) buffer from the
// process CSPRNG. Mirrors kamune's handshake.go randomBytes helper,
// but returns an error instead of panicking: primitive is a library
// façade, not an application entry point.
func RandomBytes(size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	return buf, nil
}
