package node

import (
	"github.com/rs/zerolog/log"

	"github.com/rfmesh/rfmesh/internal/codec"
	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
	"github.com/rfmesh/rfmesh/internal/noise"
)

// encryptFor seals plaintext for fp: the established Noise session when
// one exists, or the fixed pre-shared key as an interoperability
// fallback for peers this node has not yet completed a handshake with
// (spec §4.4, §9 Open Questions).
func (n *Node) encryptFor(fp common.Fingerprint, plaintext []byte) ([]byte, error) {
	if s, ok := n.sessions.Get(fp); ok {
		return s.Encrypt(plaintext)
	}
	return noise.EncryptPSK(plaintext)
}

// decryptFrom reverses encryptFor.
func (n *Node) decryptFrom(fp common.Fingerprint, frame []byte) ([]byte, error) {
	if s, ok := n.sessions.Get(fp); ok {
		return s.Decrypt(frame)
	}
	return noise.DecryptPSK(frame)
}

// sealForRoute compresses plaintext with LZ4 when it is large enough to
// benefit (spec §4.1), then encrypts the result for fp. It returns the
// v2 flags byte the caller must carry on the wire so the receiver knows
// whether to reverse the compression after decrypting.
func (n *Node) sealForRoute(fp common.Fingerprint, plaintext []byte) (ciphertext []byte, flags byte, err error) {
	toEncrypt := plaintext
	if compressed, ok, cerr := crypto.LZ4CompressFast(plaintext); cerr == nil && ok {
		toEncrypt = compressed
		flags |= common.FlagCompressed
	}
	ciphertext, err = n.encryptFor(fp, toEncrypt)
	return ciphertext, flags, err
}

// openFromRoute reverses sealForRoute: decrypt, then decompress if p's
// flags say the plaintext was compressed.
func (n *Node) openFromRoute(fp common.Fingerprint, p *codec.Packet) ([]byte, error) {
	plaintext, err := n.decryptFrom(fp, p.Payload)
	if err != nil {
		return nil, err
	}
	if p.IsCompressed() {
		return crypto.LZ4Decompress(plaintext, 0)
	}
	return plaintext, nil
}

// SendMessage delivers text to destFp: directly over its session if it
// is a current direct peer, through the mesh otherwise, or queued for
// store-and-forward if no path currently exists (spec §4.9). The v1
// direct fast path never compresses: v1's wire header has no flags byte
// to carry the compressed bit, so only the v2 mesh/queue paths do.
func (n *Node) SendMessage(destFp common.Fingerprint, destPub [32]byte, text string) error {
	plaintext := []byte(text)

	if addr, ok := n.addressFor(destFp); ok {
		ciphertext, err := n.encryptFor(destFp, plaintext)
		if err != nil {
			return err
		}
		p := &codec.Packet{
			Version:  1,
			Type:     common.TypeTextMessage,
			SeqNum:   n.nextSeq(),
			SenderID: codec.NewV1SenderID(),
			Payload:  ciphertext,
		}
		wire, err := codec.Serialize(p)
		if err != nil {
			return err
		}
		if n.transport.Send(addr, wire) {
			return nil
		}
	}

	ciphertext, flags, err := n.sealForRoute(destFp, plaintext)
	if err != nil {
		return err
	}

	peers := n.activePeers()
	if len(peers) == 0 {
		wire, err := n.buildRoutedFrame(destFp, destPub, ciphertext, flags)
		if err != nil {
			return err
		}
		return n.queue.Queue(destFp, wire, nowUnix())
	}

	n.routing.SendDirect(destFp, destPub, ciphertext, flags, peers)
	return nil
}

// buildRoutedFrame serializes a routed-message packet identical to the
// one routing.Engine.SendDirect would originate, so a queued message
// can be replayed verbatim onto the wire once the destination
// reconnects directly (spec §4.9: queued payloads are the same bytes
// flush hands back to the caller to resend).
func (n *Node) buildRoutedFrame(destFp common.Fingerprint, destPub [32]byte, ciphertext []byte, flags byte) ([]byte, error) {
	p := &codec.Packet{
		Version:        2,
		Type:           common.TypeRoutedMessage,
		SeqNum:         n.nextSeq(),
		TTL:            common.DefaultTTL,
		DestinationPub: destPub,
		Flags:          flags,
		Payload:        ciphertext,
	}
	copy(p.SenderID[:], n.identity.StaticPub[:16])
	copy(p.OriginatorPub[:], n.identity.StaticPub[:])
	return codec.Serialize(p)
}

func (n *Node) handleDirectText(address string, p *codec.Packet) {
	n.mu.Lock()
	fp, ok := n.addrToFP[address]
	n.mu.Unlock()
	if !ok {
		log.Debug().Str("address", address).Msg("[node] text message from unrecognized peer, dropping")
		return
	}

	plaintext, err := n.decryptFrom(fp, p.Payload)
	if err != nil {
		log.Warn().Str("peer", fp.Short()).Err(err).Msg("[node] failed to decrypt direct message")
		return
	}
	if n.onMessageDelivered != nil {
		n.onMessageDelivered(fp, string(plaintext))
	}
}

func (n *Node) handleRoutedPacket(_ string, p *codec.Packet) {
	n.routing.IngestRouted(p, n.activePeers())
}

// deliverLocal is the routing engine's local-delivery callback for
// packets addressed to, or broadcast past, this node.
func (n *Node) deliverLocal(p *codec.Packet) {
	if p.Type != common.TypeRoutedMessage {
		return
	}
	originFp := crypto.Fingerprint(p.OriginatorPub[:])

	plaintext, err := n.openFromRoute(originFp, p)
	if err != nil {
		log.Debug().Str("peer", originFp.Short()).Err(err).Msg("[node] failed to decrypt routed message")
		return
	}
	if n.onMessageDelivered != nil {
		n.onMessageDelivered(originFp, string(plaintext))
	}
}
