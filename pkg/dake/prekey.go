// Package dake implements the wire codec and validity checks for the
// DAKE pre-key message: the first message that carries the sender's
// profile, ephemeral ECDH public Y, and ephemeral DH public B, and
// whose completion bootstraps the ratchet core in pkg/ratchet.
package dake

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/twstrike/libotrv4/pkg/primitive"
	"github.com/twstrike/libotrv4/pkg/profile"
)

// ProtocolVersion is the fixed 2-byte protocol version field.
const ProtocolVersion uint16 = 0x0004

// PreKeyMessageType is the message_type discriminant for this message,
// matching the original OTRv4 wire constant PRE_KEY_MSG_TYPE.
const PreKeyMessageType byte = 0x0F

// headerSize is protocol_version(2) + message_type(1) +
// sender_instance_tag(4) + receiver_instance_tag(4).
const headerSize = 2 + 1 + 4 + 4

// PreKeyMessage is the wire-level DAKE pre-key message.
type PreKeyMessage struct {
	SenderInstanceTag   uint32
	ReceiverInstanceTag uint32
	SenderProfile       *profile.Profile
	Y                   []byte   // serialized ECDH public point
	B                   *big.Int // DH public value
}

// Serialize encodes m into its big-endian wire layout: a fixed header,
// the self-delimiting profile TLV, a 2-byte length-prefixed Y, and a
// 4-byte length-prefixed B.
func (m *PreKeyMessage) Serialize() []byte {
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint16(header[0:2], ProtocolVersion)
	header[2] = PreKeyMessageType
	binary.BigEndian.PutUint32(header[3:7], m.SenderInstanceTag)
	binary.BigEndian.PutUint32(header[7:11], m.ReceiverInstanceTag)

	profileBytes := m.SenderProfile.Marshal()

	yLen := make([]byte, 2)
	binary.BigEndian.PutUint16(yLen, uint16(len(m.Y)))

	bBytes := primitive.MarshalDHPublic(m.B)

	out := make([]byte, 0, len(header)+len(profileBytes)+len(yLen)+len(m.Y)+len(bBytes))
	out = append(out, header...)
	out = append(out, profileBytes...)
	out = append(out, yLen...)
	out = append(out, m.Y...)
	out = append(out, bBytes...)
	return out
}

// Deserialize decodes the wire form written by Serialize. It performs
// no validity checks beyond structural well-formedness; call
// ValidReceivedValues on the result before trusting it.
func Deserialize(data []byte) (*PreKeyMessage, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidPreKey)
	}
	version := binary.BigEndian.Uint16(data[0:2])
	msgType := data[2]
	if version != ProtocolVersion {
		return nil, fmt.Errorf(
			"%w: unexpected protocol version %#04x", ErrInvalidPreKey, version,
		)
	}
	if msgType != PreKeyMessageType {
		return nil, fmt.Errorf(
			"%w: unexpected message type %#02x", ErrInvalidPreKey, msgType,
		)
	}
	senderTag := binary.BigEndian.Uint32(data[3:7])
	receiverTag := binary.BigEndian.Uint32(data[7:11])

	rest := data[headerSize:]
	prof, n, err := profile.Unmarshal(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: sender profile: %v", ErrInvalidPreKey, err)
	}
	rest = rest[n:]

	if len(rest) < 2 {
		return nil, fmt.Errorf("%w: truncated Y length", ErrInvalidPreKey)
	}
	yLen := int(binary.BigEndian.Uint16(rest[0:2]))
	rest = rest[2:]
	if len(rest) < yLen {
		return nil, fmt.Errorf("%w: truncated Y", ErrInvalidPreKey)
	}
	y := append([]byte(nil), rest[:yLen]...)
	rest = rest[yLen:]

	b, consumed, err := primitive.UnmarshalDHPublic(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: B: %v", ErrInvalidPreKey, err)
	}
	rest = rest[consumed:]
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrInvalidPreKey)
	}

	return &PreKeyMessage{
		SenderInstanceTag:   senderTag,
		ReceiverInstanceTag: receiverTag,
		SenderProfile:       prof,
		Y:                   y,
		B:                   b,
	}, nil
}

// ValidReceivedValues checks a received pre-key message against the
// protocol's validity rules: Y must decode to a non-identity point of
// the right size, B must lie in the valid DH range, and the sender
// profile's self-signature must verify.
func ValidReceivedValues(m *PreKeyMessage) error {
	if len(m.Y) != primitive.ECDHPointSize {
		return fmt.Errorf("%w: Y has wrong size", ErrInvalidPreKey)
	}
	if isZero(m.Y) {
		return fmt.Errorf("%w: Y is the identity point", ErrInvalidPreKey)
	}
	if !primitive.ValidDHPublicValue(m.B) {
		return fmt.Errorf("%w: B out of range", ErrInvalidPreKey)
	}
	if m.SenderProfile == nil || !m.SenderProfile.Verify() {
		return fmt.Errorf("%w: sender profile signature", ErrInvalidPreKey)
	}
	return nil
}

func isZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
