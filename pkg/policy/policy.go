// Package policy defines the wire-level protocol-version discriminants
// a conversation may be configured to allow.
package policy

import "fmt"

// Policy selects which protocol version a conversation is willing to
// negotiate. These are deliberately non-combinable: the source's
// POLICY_ALLOW_V3/POLICY_ALLOW_V4 constants were bit flags OR-able into
// an "opportunistic" composite, but that composite relied on exactly
// two flags never colliding with a third. We keep the wire-compatible
// numeric values and drop the OR-based composite.
type Policy int

const (
	// AllowV3 restricts a conversation to OTR version 3. Negotiating v3
	// is out of scope for this module; the discriminant exists for wire
	// compatibility with peers that still advertise it.
	AllowV3 Policy = 0x04

	// AllowV4 restricts a conversation to OTRv4, the only version this
	// module's DAKE and ratchet core actually implement.
	AllowV4 Policy = 0x05
)

// String renders p for logging.
func (p Policy) String() string {
	switch p {
	case AllowV3:
		return "AllowV3"
	case AllowV4:
		return "AllowV4"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Valid reports whether p is one of the defined discriminants.
func (p Policy) Valid() bool {
	return p == AllowV3 || p == AllowV4
}
