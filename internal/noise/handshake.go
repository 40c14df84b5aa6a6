// Package noise implements the Noise-XX-shaped mutual handshake and
// transport encryption described in spec §4.4. The derivation is
// spec-literal (an explicit three-message exchange with a custom
// "combine" KDF step over the ephemeral DH outputs, and transport keys
// derived from the raw static-static DH) rather than a
// delegation to a general-purpose Noise library, because the transport
// keys must be reproducible bit-for-bit by any implementation following
// the same written protocol.
package noise

import (
	"crypto/rand"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
)

var zeroNonce12 = make([]byte, 12)

const combineInfo = "meshIt-combine"
const key1Info = "meshIt-key-1"
const key2Info = "meshIt-key-2"

// StaticKeyPair is a node's long-term X25519 Noise identity (distinct
// from its Ed25519 signing identity — spec §3 "Identity").
type StaticKeyPair struct {
	Private []byte
	Public  []byte
}

// GenerateStaticKeyPair creates a fresh X25519 keypair for the Noise
// layer.
func GenerateStaticKeyPair() (*StaticKeyPair, error) {
	priv, pub, err := crypto.X25519Generate(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &StaticKeyPair{Private: priv, Public: pub}, nil
}

// HandshakeState tracks one in-progress handshake. It is not safe for
// concurrent use; callers own one instance per in-flight handshake
// attempt and discard it on any error (spec §4.4: "the pending state is
// discarded").
type HandshakeState struct {
	isInitiator bool
	local       *StaticKeyPair

	ephPriv []byte
	ephPub  []byte

	remoteEphPub    []byte
	remoteStaticPub []byte

	ee []byte // cached DH(local ephemeral, remote ephemeral) — responder needs it again in msg3
}

// NewInitiatorHandshake begins the initiator side of the exchange.
func NewInitiatorHandshake(local *StaticKeyPair) *HandshakeState {
	return &HandshakeState{isInitiator: true, local: local}
}

// NewResponderHandshake begins the responder side of the exchange.
func NewResponderHandshake(local *StaticKeyPair) *HandshakeState {
	return &HandshakeState{isInitiator: false, local: local}
}

// CreateMsg1 builds message 1 (initiator → responder): the initiator's
// ephemeral public key, 32 bytes.
func (h *HandshakeState) CreateMsg1() ([]byte, error) {
	priv, pub, err := crypto.X25519Generate(rand.Reader)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}
	h.ephPriv, h.ephPub = priv, pub
	return pub, nil
}

// ProcessMsg1AndCreateMsg2 is the responder's reaction to message 1: it
// generates its own ephemeral keypair, computes ee = DH(responder_eph,
// initiator_eph), and returns message 2 (e || AEAD(ee; responder_static_pub)).
func (h *HandshakeState) ProcessMsg1AndCreateMsg2(msg1 []byte) ([]byte, error) {
	if len(msg1) != 32 {
		return nil, common.ErrHandshakeFailed
	}
	h.remoteEphPub = append([]byte(nil), msg1...)

	priv, pub, err := crypto.X25519Generate(rand.Reader)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}
	h.ephPriv, h.ephPub = priv, pub

	ee, err := crypto.X25519Agree(h.ephPriv, h.remoteEphPub)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}
	h.ee = ee

	ct, err := crypto.AEADEncrypt(ee, zeroNonce12, nil, h.local.Public)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}

	msg2 := make([]byte, 0, len(pub)+len(ct))
	msg2 = append(msg2, pub...)
	msg2 = append(msg2, ct...)
	return msg2, nil
}

// ProcessMsg2AndCreateMsg3 is the initiator's reaction to message 2: it
// recovers the responder's static key, computes se = DH(initiator_eph,
// responder_static), derives the combine key, and returns message 3
// (AEAD(combine(ee,se); initiator_static_pub)). On success it also
// finalizes the session (the initiator has now seen both DH outputs).
func (h *HandshakeState) ProcessMsg2AndCreateMsg3(msg2 []byte) ([]byte, *Session, error) {
	if len(msg2) < 32+16+32 {
		return nil, nil, common.ErrHandshakeFailed
	}
	remoteEphPub := msg2[:32]
	ct := msg2[32:]

	ee, err := crypto.X25519Agree(h.ephPriv, remoteEphPub)
	if err != nil {
		return nil, nil, common.ErrHandshakeFailed
	}

	responderStaticPub, err := crypto.AEADDecrypt(ee, zeroNonce12, nil, ct)
	if err != nil {
		return nil, nil, common.ErrHandshakeFailed
	}
	h.remoteStaticPub = responderStaticPub

	se, err := crypto.X25519Agree(h.ephPriv, h.remoteStaticPub)
	if err != nil {
		return nil, nil, common.ErrHandshakeFailed
	}

	combineKey, err := combine(ee, se)
	if err != nil {
		return nil, nil, common.ErrHandshakeFailed
	}

	msg3, err := crypto.AEADEncrypt(combineKey, zeroNonce12, nil, h.local.Public)
	if err != nil {
		return nil, nil, common.ErrHandshakeFailed
	}

	session, err := deriveSession(h.local, h.remoteStaticPub, true)
	if err != nil {
		return nil, nil, common.ErrHandshakeFailed
	}

	return msg3, session, nil
}

// ProcessMsg3 is the responder's reaction to message 3: it recomputes
// se = DH(responder_static, initiator_eph) — the same value the
// initiator computed as DH(initiator_eph, responder_static) — derives the
// same combine key, recovers the initiator's static key and finalizes the
// session.
func (h *HandshakeState) ProcessMsg3(msg3 []byte) (*Session, error) {
	if h.ee == nil || h.remoteEphPub == nil {
		return nil, common.ErrHandshakeFailed
	}

	se, err := crypto.X25519Agree(h.local.Private, h.remoteEphPub)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}

	combineKey, err := combine(h.ee, se)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}

	initiatorStaticPub, err := crypto.AEADDecrypt(combineKey, zeroNonce12, nil, msg3)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}
	h.remoteStaticPub = initiatorStaticPub

	return deriveSession(h.local, h.remoteStaticPub, false)
}

// combine implements spec §4.4's combine(a,b) = hkdfExpand(a||b,
// "meshIt-combine", 32).
func combine(a, b []byte) ([]byte, error) {
	ab := make([]byte, 0, len(a)+len(b))
	ab = append(ab, a...)
	ab = append(ab, b...)
	return crypto.HKDFExpand(ab, []byte(combineInfo), 32)
}

// deriveSession computes ss = DH(local_static, remote_static) and the two
// transport keys, assigning send/receive by role (spec §4.4: "the
// initiator uses k1 for sending and k2 for receiving; the responder is
// reversed").
func deriveSession(local *StaticKeyPair, remoteStaticPub []byte, isInitiator bool) (*Session, error) {
	ss, err := crypto.X25519Agree(local.Private, remoteStaticPub)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}

	k1, err := crypto.HKDFExpand(ss, []byte(key1Info), 32)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}
	k2, err := crypto.HKDFExpand(ss, []byte(key2Info), 32)
	if err != nil {
		return nil, common.ErrHandshakeFailed
	}

	s := newSession(remoteStaticPub)
	if isInitiator {
		s.sendKey, s.receiveKey = k1, k2
	} else {
		s.sendKey, s.receiveKey = k2, k1
	}
	return s, nil
}
