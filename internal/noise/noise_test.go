package noise

import (
	"bytes"
	"testing"

	"github.com/rfmesh/rfmesh/internal/common"
)

func mustStaticPair(t *testing.T) *StaticKeyPair {
	t.Helper()
	kp, err := GenerateStaticKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

// S2 from spec §8: a full three-message handshake between two
// independently generated identities must leave both sides with
// symmetric transport keys.
func TestHandshakeFullExchangeScenario(t *testing.T) {
	initiatorStatic := mustStaticPair(t)
	responderStatic := mustStaticPair(t)

	initiator := NewInitiatorHandshake(initiatorStatic)
	responder := NewResponderHandshake(responderStatic)

	msg1, err := initiator.CreateMsg1()
	if err != nil {
		t.Fatal(err)
	}

	msg2, err := responder.ProcessMsg1AndCreateMsg2(msg1)
	if err != nil {
		t.Fatal(err)
	}

	msg3, initiatorSession, err := initiator.ProcessMsg2AndCreateMsg3(msg2)
	if err != nil {
		t.Fatal(err)
	}

	responderSession, err := responder.ProcessMsg3(msg3)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(initiatorSession.sendKey, responderSession.receiveKey) {
		t.Fatal("initiator send key does not match responder receive key")
	}
	if !bytes.Equal(initiatorSession.receiveKey, responderSession.sendKey) {
		t.Fatal("initiator receive key does not match responder send key")
	}
	if !bytes.Equal(initiatorSession.RemoteStaticPub(), responderStatic.Public) {
		t.Fatal("initiator did not learn responder's static key")
	}
	if !bytes.Equal(responderSession.RemoteStaticPub(), initiatorStatic.Public) {
		t.Fatal("responder did not learn initiator's static key")
	}
}

// S3 from spec §8: transport frames round-trip, and any previously
// accepted nonce is rejected as a replay.
func TestTransportEncryptDecryptAndReplayScenario(t *testing.T) {
	initiatorStatic := mustStaticPair(t)
	responderStatic := mustStaticPair(t)

	initiator := NewInitiatorHandshake(initiatorStatic)
	responder := NewResponderHandshake(responderStatic)

	msg1, _ := initiator.CreateMsg1()
	msg2, _ := responder.ProcessMsg1AndCreateMsg2(msg1)
	msg3, initiatorSession, _ := initiator.ProcessMsg2AndCreateMsg3(msg2)
	responderSession, err := responder.ProcessMsg3(msg3)
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte("hello over the mesh")
	frame, err := initiatorSession.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	got, err := responderSession.Decrypt(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted mismatch: %q", got)
	}

	if _, err := responderSession.Decrypt(frame); err == nil {
		t.Fatal("expected replay of the same frame to be rejected")
	}

	frame2, err := initiatorSession.Encrypt([]byte("second message"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := responderSession.Decrypt(frame2); err != nil {
		t.Fatalf("second distinct frame should decrypt: %v", err)
	}
}

func TestHandshakeRejectsTamperedMsg3(t *testing.T) {
	initiatorStatic := mustStaticPair(t)
	responderStatic := mustStaticPair(t)

	initiator := NewInitiatorHandshake(initiatorStatic)
	responder := NewResponderHandshake(responderStatic)

	msg1, _ := initiator.CreateMsg1()
	msg2, _ := responder.ProcessMsg1AndCreateMsg2(msg1)
	msg3, _, _ := initiator.ProcessMsg2AndCreateMsg3(msg2)

	tampered := append([]byte(nil), msg3...)
	tampered[0] ^= 0xFF

	if _, err := responder.ProcessMsg3(tampered); err == nil {
		t.Fatal("expected tampered msg3 to fail")
	}
}

func TestPSKRoundTrip(t *testing.T) {
	plaintext := []byte("legacy v1 peer payload, arbitrary length here")
	ct, err := EncryptPSK(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := DecryptPSK(ct)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("psk round trip mismatch: %q", pt)
	}
}

func TestSessionManagerDestroyRemovesSession(t *testing.T) {
	m := NewManager(common.SessionLifetime)
	peer := common.Fingerprint("deadbeef")
	s := newSession(make([]byte, 32))
	m.Store(peer, s)

	if _, ok := m.Get(peer); !ok {
		t.Fatal("expected session present immediately after store")
	}

	m.Destroy(peer)
	if _, ok := m.Get(peer); ok {
		t.Fatal("expected session gone after explicit destroy")
	}
}
