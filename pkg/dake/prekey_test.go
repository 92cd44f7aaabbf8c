package dake

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twstrike/libotrv4/internal/dhgroup"
	"github.com/twstrike/libotrv4/pkg/primitive"
	"github.com/twstrike/libotrv4/pkg/profile"
)

func testPreKeyMessage(t *testing.T, senderTag, receiverTag uint32) *PreKeyMessage {
	t.Helper()
	a := require.New(t)

	_, priv, err := profile.GenerateLongTermKey()
	a.NoError(err)
	prof, err := profile.New(priv, []byte("test profile payload"))
	a.NoError(err)

	ecdh, err := primitive.ECDHGenerate()
	a.NoError(err)
	dh, err := primitive.DHGenerate()
	a.NoError(err)

	return &PreKeyMessage{
		SenderInstanceTag:   senderTag,
		ReceiverInstanceTag: receiverTag,
		SenderProfile:       prof,
		Y:                   append([]byte(nil), ecdh.Pub[:]...),
		B:                   dh.Pub,
	}
}

func TestPreKeyMessageSerializeHeader(t *testing.T) {
	a := require.New(t)
	m := testPreKeyMessage(t, 1, 0)

	wire := m.Serialize()
	a.GreaterOrEqual(len(wire), headerSize)

	want := []byte{0x00, 0x04, PreKeyMessageType, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	a.Equal(want, wire[:11])
}

func TestPreKeyMessageRoundTrip(t *testing.T) {
	a := require.New(t)
	m := testPreKeyMessage(t, 42, 7)

	wire := m.Serialize()
	got, err := Deserialize(wire)
	a.NoError(err)

	a.Equal(m.SenderInstanceTag, got.SenderInstanceTag)
	a.Equal(m.ReceiverInstanceTag, got.ReceiverInstanceTag)
	a.Equal(m.Y, got.Y)
	a.Zero(m.B.Cmp(got.B))
	a.Equal(m.SenderProfile.LongTermKey, got.SenderProfile.LongTermKey)
	a.Equal(m.SenderProfile.Signature, got.SenderProfile.Signature)

	a.NoError(ValidReceivedValues(got))
}

func TestPreKeyMessageRejectsWrongVersion(t *testing.T) {
	a := require.New(t)
	m := testPreKeyMessage(t, 1, 1)
	wire := m.Serialize()
	wire[1] = 0x03

	_, err := Deserialize(wire)
	a.ErrorIs(err, ErrInvalidPreKey)
}

func TestPreKeyMessageRejectsWrongType(t *testing.T) {
	a := require.New(t)
	m := testPreKeyMessage(t, 1, 1)
	wire := m.Serialize()
	wire[2] = 0x00

	_, err := Deserialize(wire)
	a.ErrorIs(err, ErrInvalidPreKey)
}

func TestPreKeyMessageRejectsTruncated(t *testing.T) {
	a := require.New(t)
	m := testPreKeyMessage(t, 1, 1)
	wire := m.Serialize()

	_, err := Deserialize(wire[:len(wire)-5])
	a.ErrorIs(err, ErrInvalidPreKey)
}

func TestValidReceivedValuesRejectsIdentityY(t *testing.T) {
	a := require.New(t)
	m := testPreKeyMessage(t, 1, 1)
	m.Y = make([]byte, primitive.ECDHPointSize)

	a.ErrorIs(ValidReceivedValues(m), ErrInvalidPreKey)
}

func TestValidReceivedValuesRejectsOutOfRangeB(t *testing.T) {
	a := require.New(t)
	m := testPreKeyMessage(t, 1, 1)
	m.B = big.NewInt(1)

	a.ErrorIs(ValidReceivedValues(m), ErrInvalidPreKey)
}

func TestValidReceivedValuesRejectsTamperedProfile(t *testing.T) {
	a := require.New(t)
	m := testPreKeyMessage(t, 1, 1)
	m.SenderProfile.Payload = append(m.SenderProfile.Payload, '!')

	a.ErrorIs(ValidReceivedValues(m), ErrInvalidPreKey)
}

func TestValidReceivedValuesAcceptsUpperBoundB(t *testing.T) {
	a := require.New(t)
	m := testPreKeyMessage(t, 1, 1)
	m.B = new(big.Int).Sub(dhgroup.Prime(), big.NewInt(2))

	a.NoError(ValidReceivedValues(m))
}
