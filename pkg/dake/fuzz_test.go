package dake

import (
	"testing"

	fuzz "github.com/trailofbits/go-fuzz-utils"

	"github.com/twstrike/libotrv4/pkg/primitive"
	"github.com/twstrike/libotrv4/pkg/profile"
)

// FuzzPreKeyRoundTrip builds a structurally valid pre-key message from
// fuzzer-controlled field values, serializes it, and checks that
// Deserialize accepts it, recovers both instance tags, and yields a
// message that passes ValidReceivedValues.
func FuzzPreKeyRoundTrip(f *testing.F) {
	seed := mustSeedMessage()
	f.Add(seed.Serialize())

	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}

		senderTag, err := tp.GetUint32()
		if err != nil {
			t.Skip(err)
		}
		receiverTag, err := tp.GetUint32()
		if err != nil {
			t.Skip(err)
		}
		payload, err := tp.GetBytes()
		if err != nil {
			t.Skip(err)
		}

		_, priv, err := profile.GenerateLongTermKey()
		if err != nil {
			t.Fatalf("generating long-term key: %v", err)
		}
		prof, err := profile.New(priv, payload)
		if err != nil {
			t.Fatalf("signing profile: %v", err)
		}

		ecdh, err := primitive.ECDHGenerate()
		if err != nil {
			t.Fatalf("generating ecdh keypair: %v", err)
		}
		dh, err := primitive.DHGenerate()
		if err != nil {
			t.Fatalf("generating dh keypair: %v", err)
		}

		m := &PreKeyMessage{
			SenderInstanceTag:   senderTag,
			ReceiverInstanceTag: receiverTag,
			SenderProfile:       prof,
			Y:                   append([]byte(nil), ecdh.Pub[:]...),
			B:                   dh.Pub,
		}

		wire := m.Serialize()
		got, err := Deserialize(wire)
		if err != nil {
			t.Fatalf("deserializing a message this package just serialized: %v", err)
		}
		if got.SenderInstanceTag != senderTag || got.ReceiverInstanceTag != receiverTag {
			t.Fatalf("instance tags did not round-trip")
		}
		if err := ValidReceivedValues(got); err != nil {
			t.Fatalf("round-tripped message failed validity check: %v", err)
		}
	})
}

// FuzzPreKeyDeserializeNeverPanics feeds arbitrary bytes to Deserialize;
// the codec must reject malformed input with an error, never panic.
func FuzzPreKeyDeserializeNeverPanics(f *testing.F) {
	f.Add(mustSeedMessage().Serialize())
	f.Add([]byte{})
	f.Add([]byte{0x00, 0x04})

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Deserialize panicked on malformed input: %v", r)
			}
		}()
		_, _ = Deserialize(data)
	})
}

func mustSeedMessage() *PreKeyMessage {
	_, priv, err := profile.GenerateLongTermKey()
	if err != nil {
		panic(err)
	}
	prof, err := profile.New(priv, []byte("seed"))
	if err != nil {
		panic(err)
	}
	ecdh, err := primitive.ECDHGenerate()
	if err != nil {
		panic(err)
	}
	dh, err := primitive.DHGenerate()
	if err != nil {
		panic(err)
	}
	return &PreKeyMessage{
		SenderInstanceTag:   1,
		ReceiverInstanceTag: 2,
		SenderProfile:       prof,
		Y:                   append([]byte(nil), ecdh.Pub[:]...),
		B:                   dh.Pub,
	}
}
