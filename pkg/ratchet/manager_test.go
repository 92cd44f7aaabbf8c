package ratchet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twstrike/libotrv4/pkg/primitive"
)

// pairedManagers returns two KeyManagers with each other's initial
// ephemeral public keys installed, ready for EnterFirstRatchet.
func pairedManagers(t *testing.T, opts ...Option) (alice, bob *KeyManager) {
	t.Helper()
	a := require.New(t)

	alice, err := New(opts...)
	a.NoError(err)
	bob, err = New(opts...)
	a.NoError(err)

	alice.SetTheirKeys(bob.OurECDHPublic(), bob.OurDHPublic())
	bob.SetTheirKeys(alice.OurECDHPublic(), alice.OurDHPublic())
	return alice, bob
}

func TestEnterFirstRatchetMatchesBetweenPeers(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)

	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	a.Equal(alice.SSID(), bob.SSID())
	a.Len(alice.SSID(), SSIDSize)
	a.Equal(alice.current.RootKey(), bob.current.RootKey())
}

func TestEnterFirstRatchetRequiresPeerKeys(t *testing.T) {
	a := require.New(t)
	m, err := New()
	a.NoError(err)

	a.Error(m.EnterFirstRatchet())
}

func TestEnterFirstRatchetOnlyOnce(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	_ = bob

	a.Error(alice.EnterFirstRatchet())
}

func TestChainSelectionComplementaryAcrossPeers(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	aliceSending, aliceReceiving, err := alice.current.chains()
	a.NoError(err)
	bobSending, bobReceiving, err := bob.current.chains()
	a.NoError(err)

	_, aliceSendKey, err := aliceSending.Advance()
	a.NoError(err)
	_, bobRecvKey, err := bobReceiving.Advance()
	a.NoError(err)
	a.Equal(aliceSendKey, bobRecvKey)

	_, bobSendKey, err := bobSending.Advance()
	a.NoError(err)
	_, aliceRecvKey, err := aliceReceiving.Advance()
	a.NoError(err)
	a.Equal(bobSendKey, aliceRecvKey)
}

func TestRetrieveSendingMessageKeysRotatesOnFirstCall(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	a.Equal(uint32(0), alice.RatchetID())
	keys, err := alice.RetrieveSendingMessageKeys()
	a.NoError(err)
	a.Equal(uint32(1), keys.RatchetID)
	a.Equal(uint32(0), keys.MessageID)
	a.Equal(uint32(1), alice.RatchetID())
	a.Equal(uint32(1), alice.SendIndex())
}

func TestRetrieveSendingMessageKeysIncrementsWithinRatchet(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	k1, err := alice.RetrieveSendingMessageKeys()
	a.NoError(err)
	k2, err := alice.RetrieveSendingMessageKeys()
	a.NoError(err)

	a.Equal(k1.RatchetID, k2.RatchetID)
	a.Equal(k1.MessageID+1, k2.MessageID)
	a.NotEqual(k1.EncKey, k2.EncKey)
}

func TestRetrieveReceivingMessageKeysOutOfOrder(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	sending, _, err := alice.current.chains()
	a.NoError(err)

	var sent []*MessageKeys
	for i := 0; i < 5; i++ {
		var id uint32
		var key []byte
		if i == 0 {
			id, key = sending.Last()
		} else {
			id, key, err = sending.Advance()
			a.NoError(err)
		}
		sent = append(sent, &MessageKeys{
			EncKey:    primitive.KDF256(0x01, key, primitive.SHA3256Size),
			MacKey:    primitive.KDF512(0x02, key, primitive.SHA3512Size),
			RatchetID: alice.RatchetID(),
			MessageID: id,
		})
	}

	order := []int{2, 0, 4, 1, 3}
	for _, idx := range order {
		want := sent[idx]
		got, err := bob.RetrieveReceivingMessageKeys(alice.RatchetID(), want.MessageID)
		a.NoError(err)
		a.Equal(want.EncKey, got.EncKey)
		a.Equal(want.MacKey, got.MacKey)

		a.NoError(bob.AcknowledgeReceived(want.RatchetID, want.MessageID, got.MacKey))
	}

	a.Len(bob.OldMACKeys(), 5)
	for i, idx := range order {
		a.Equal(sent[idx].MacKey, bob.OldMACKeys()[i], "mac keys must appear in acknowledge order")
	}
}

func TestRetrieveReceivingMessageKeysUnknownRatchet(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	_, err := bob.RetrieveReceivingMessageKeys(99, 0)
	a.ErrorIs(err, ErrRatchetNotFound)
}

func TestRetrieveReceivingMessageKeysRespectsBackfillCap(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t, WithBackfillCap(4))
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	_, err := bob.RetrieveReceivingMessageKeys(0, 4)
	a.NoError(err)
	_, err = bob.RetrieveReceivingMessageKeys(0, 5)
	a.ErrorIs(err, ErrMessageIDTooLarge)
}

func TestEnsureOnRatchetNoOpAtCurrent(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	a.NoError(bob.EnsureOnRatchet(0))
	a.Equal(uint32(0), bob.RatchetID())
}

func TestEnsureOnRatchetRejectsOlder(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())
	bob.i = 3

	a.ErrorIs(bob.EnsureOnRatchet(1), ErrRatchetNotFound)
}

func TestDHRotationCadence(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	prevDH := alice.OurDHPublic()
	for range 9 {
		a.NoError(alice.Rotate())
		curDH := alice.OurDHPublic()
		if alice.RatchetID()%dhRotationPeriod == 0 {
			a.NotZero(prevDH.Cmp(curDH), "ratchet %d should have regenerated the DH keypair", alice.RatchetID())
		} else {
			a.Zero(prevDH.Cmp(curDH), "ratchet %d should not have regenerated the DH keypair", alice.RatchetID())
		}
		prevDH = curDH
	}
}

func TestDestroyZeroizesSecrets(t *testing.T) {
	a := require.New(t)
	alice, bob := pairedManagers(t)
	a.NoError(alice.EnterFirstRatchet())
	a.NoError(bob.EnterFirstRatchet())

	_, err := alice.RetrieveSendingMessageKeys()
	a.NoError(err)

	alice.Destroy()

	a.Equal(make([]byte, len(alice.current.RootKey())), alice.current.RootKey())
	a.Equal(make([]byte, len(alice.mixKey)), alice.mixKey)
	a.Zero(alice.ourDH.Priv.Sign())
	a.Empty(alice.OldMACKeys())
}
