package node

import (
	"github.com/rs/zerolog/log"

	"github.com/rfmesh/rfmesh/internal/codec"
	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
	"github.com/rfmesh/rfmesh/internal/noise"
)

func (n *Node) localStaticKeyPair() *noise.StaticKeyPair {
	return &noise.StaticKeyPair{Private: n.identity.StaticPriv, Public: n.identity.StaticPub}
}

func (n *Node) sendNoiseMsg(address string, typ byte, payload []byte) {
	p := &codec.Packet{
		Version:  1,
		Type:     typ,
		SeqNum:   n.nextSeq(),
		SenderID: codec.NewV1SenderID(),
		Payload:  payload,
	}
	wire, err := codec.Serialize(p)
	if err != nil {
		log.Error().Err(err).Msg("[node] failed to serialize noise handshake packet")
		return
	}
	n.transport.Send(address, wire)
}

// beginHandshake starts the initiator side of the exchange immediately
// after a link comes up (spec §4.4: "the side that dialed out is always
// the initiator").
func (n *Node) beginHandshake(address string) {
	h := noise.NewInitiatorHandshake(n.localStaticKeyPair())
	msg1, err := h.CreateMsg1()
	if err != nil {
		log.Warn().Str("address", address).Err(err).Msg("[node] failed to start handshake")
		return
	}

	n.mu.Lock()
	n.pendingHandshake[address] = h
	n.mu.Unlock()

	n.sendNoiseMsg(address, common.TypeNoiseMsg1, msg1)
}

func (n *Node) handleMessagePacket(address string, p *codec.Packet) {
	switch p.Type {
	case common.TypeNoiseMsg1:
		n.handleNoiseMsg1(address, p.Payload)
	case common.TypeNoiseMsg2:
		n.handleNoiseMsg2(address, p.Payload)
	case common.TypeNoiseMsg3:
		n.handleNoiseMsg3(address, p.Payload)
	case common.TypeTextMessage:
		n.handleDirectText(address, p)
	}
}

// handleNoiseMsg1 is the responder's reaction to an incoming message 1.
func (n *Node) handleNoiseMsg1(address string, msg1 []byte) {
	h := noise.NewResponderHandshake(n.localStaticKeyPair())
	msg2, err := h.ProcessMsg1AndCreateMsg2(msg1)
	if err != nil {
		log.Warn().Str("address", address).Err(err).Msg("[node] handshake message 1 rejected")
		return
	}

	n.mu.Lock()
	n.pendingHandshake[address] = h
	n.mu.Unlock()

	n.sendNoiseMsg(address, common.TypeNoiseMsg2, msg2)
}

// handleNoiseMsg2 is the initiator's reaction to message 2: it completes
// its half of the session and transmits message 3.
func (n *Node) handleNoiseMsg2(address string, msg2 []byte) {
	h, ok := n.takePending(address)
	if !ok {
		log.Debug().Str("address", address).Msg("[node] handshake message 2 with no pending initiator state")
		return
	}

	msg3, session, err := h.ProcessMsg2AndCreateMsg3(msg2)
	if err != nil {
		log.Warn().Str("address", address).Err(err).Msg("[node] handshake message 2 rejected")
		return
	}

	n.sendNoiseMsg(address, common.TypeNoiseMsg3, msg3)
	n.finalizeSession(address, session)
}

// handleNoiseMsg3 is the responder's reaction to message 3: the session
// is now mutually established.
func (n *Node) handleNoiseMsg3(address string, msg3 []byte) {
	h, ok := n.takePending(address)
	if !ok {
		log.Debug().Str("address", address).Msg("[node] handshake message 3 with no pending responder state")
		return
	}

	session, err := h.ProcessMsg3(msg3)
	if err != nil {
		log.Warn().Str("address", address).Err(err).Msg("[node] handshake message 3 rejected")
		return
	}

	n.finalizeSession(address, session)
}

func (n *Node) takePending(address string) (*noise.HandshakeState, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h, ok := n.pendingHandshake[address]
	if ok {
		delete(n.pendingHandshake, address)
	}
	return h, ok
}

// finalizeSession registers a freshly completed handshake: the session
// is stored, the peer becomes a direct routing neighbor, and any mail
// queued for it while it was offline is flushed.
func (n *Node) finalizeSession(address string, session *noise.Session) {
	fp := crypto.Fingerprint(session.RemoteStaticPub())

	n.sessions.Store(fp, session)

	n.mu.Lock()
	n.addrToFP[address] = fp
	n.fpToAddr[fp] = address
	n.mu.Unlock()

	n.routing.RegisterDirectPeer(address, fp)
	log.Info().Str("address", address).Str("peer", fp.Short()).Msg("[node] session established")

	n.flushQueued(fp, address)

	if n.onPeerConnected != nil {
		n.onPeerConnected(fp, address)
	}
}

func (n *Node) flushQueued(fp common.Fingerprint, address string) {
	payloads, err := n.queue.Flush(fp, nowUnix())
	if err != nil {
		log.Warn().Str("peer", fp.Short()).Err(err).Msg("[node] failed to flush pending queue")
		return
	}
	for _, wire := range payloads {
		n.transport.Send(address, wire)
	}
}
