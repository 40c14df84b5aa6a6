package routing

import (
	"testing"

	"github.com/rfmesh/rfmesh/internal/codec"
	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
)

type sentFrame struct {
	address string
	frame   []byte
}

func newTestEngine(t *testing.T) (*Engine, *[]sentFrame, *[]*codec.Packet) {
	t.Helper()
	_, pub, err := crypto.X25519Generate(cryptoReader{})
	if err != nil {
		t.Fatal(err)
	}

	var sent []sentFrame
	var delivered []*codec.Packet

	e := New(pub, func(address string, frame []byte) bool {
		sent = append(sent, sentFrame{address, frame})
		return true
	}, func(p *codec.Packet) {
		delivered = append(delivered, p)
	}, common.RouteExpiry, common.SeenCacheMax)
	return e, &sent, &delivered
}

// cryptoReader is a trivial deterministic-enough reader for test key
// generation; crypto/rand semantics are not under test here.
type cryptoReader struct{}

func (cryptoReader) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = byte(i + 1)
	}
	return len(b), nil
}

func genPeerFingerprint(t *testing.T, seed byte) (common.Fingerprint, [32]byte) {
	t.Helper()
	var pub [32]byte
	for i := range pub {
		pub[i] = seed
	}
	return crypto.Fingerprint(pub[:]), pub
}

func TestIngestDedupDropsRepeat(t *testing.T) {
	e, sent, _ := newTestEngine(t)
	peerFp, _ := genPeerFingerprint(t, 0xAA)
	e.RegisterDirectPeer("addr-peer", peerFp)

	p := &codec.Packet{Version: 2, Type: common.TypeChannelMessage, TTL: 5, Payload: []byte("hi")}
	e.IngestRouted(p, []common.Fingerprint{peerFp})
	first := len(*sent)
	if first == 0 {
		t.Fatal("expected first ingest to forward")
	}

	e.IngestRouted(p, []common.Fingerprint{peerFp})
	if len(*sent) != first {
		t.Fatal("expected duplicate ingest to be dropped")
	}
}

func TestIngestDropsZeroTTL(t *testing.T) {
	e, sent, delivered := newTestEngine(t)
	peerFp, _ := genPeerFingerprint(t, 0xAA)
	e.RegisterDirectPeer("addr-peer", peerFp)

	p := &codec.Packet{Version: 2, Type: common.TypeChannelMessage, TTL: 0, Payload: []byte("hi")}
	e.IngestRouted(p, []common.Fingerprint{peerFp})

	if len(*sent) != 0 || len(*delivered) != 0 {
		t.Fatal("expected zero-TTL packet to be dropped outright")
	}
}

func TestIngestDropsLoop(t *testing.T) {
	e, sent, _ := newTestEngine(t)
	peerFp, _ := genPeerFingerprint(t, 0xAA)
	e.RegisterDirectPeer("addr-peer", peerFp)

	p := &codec.Packet{
		Version:      2,
		Type:         common.TypeChannelMessage,
		TTL:          5,
		RouteHistory: []string{string(e.LocalFingerprint())},
		Payload:      []byte("hi"),
	}
	e.IngestRouted(p, []common.Fingerprint{peerFp})

	if len(*sent) != 0 {
		t.Fatal("expected packet containing our own fingerprint in history to be dropped")
	}
}

func TestIngestDeliversForMeWithoutForwarding(t *testing.T) {
	e, sent, delivered := newTestEngine(t)
	peerFp, _ := genPeerFingerprint(t, 0xAA)
	e.RegisterDirectPeer("addr-peer", peerFp)

	var p codec.Packet
	p.Version = 2
	p.Type = common.TypeRoutedMessage
	p.TTL = 5
	p.DestinationPub = e.localStaticPub
	p.Payload = []byte("for you")

	e.IngestRouted(&p, []common.Fingerprint{peerFp})

	if len(*delivered) != 1 {
		t.Fatal("expected local delivery")
	}
	if len(*sent) != 0 {
		t.Fatal("unicast addressed to us must not be forwarded")
	}
}

func TestIngestBroadcastDeliversAndForwards(t *testing.T) {
	e, sent, delivered := newTestEngine(t)
	peerFp, _ := genPeerFingerprint(t, 0xAA)
	e.RegisterDirectPeer("addr-peer", peerFp)

	p := &codec.Packet{Version: 2, Type: common.TypeRoutedMessage, TTL: 5, Payload: []byte("broadcast")}
	e.IngestRouted(p, []common.Fingerprint{peerFp})

	if len(*delivered) != 1 {
		t.Fatal("expected local delivery of broadcast")
	}
	if len(*sent) != 1 {
		t.Fatalf("expected broadcast forwarded to the one direct peer, got %d sends", len(*sent))
	}
}

func TestRouteDiscoveryRepliesWhenTargetIsLocal(t *testing.T) {
	e, sent, _ := newTestEngine(t)
	peerFp, _ := genPeerFingerprint(t, 0xAA)
	e.RegisterDirectPeer("addr-peer", peerFp)

	p := &codec.Packet{
		Version:      2,
		Type:         common.TypeRouteDiscovery,
		TTL:          5,
		RouteHistory: []string{string(peerFp)},
		Payload:      []byte(e.LocalFingerprint()),
	}
	e.IngestRouted(p, []common.Fingerprint{peerFp})

	if len(*sent) != 1 {
		t.Fatalf("expected a route-reply to be sent, got %d sends", len(*sent))
	}
	reply, err := codec.Parse((*sent)[0].frame)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Type != common.TypeRouteReply {
		t.Fatalf("expected route-reply packet, got type %#x", reply.Type)
	}
}

func TestRouteReplyLearnsRoute(t *testing.T) {
	e, _, _ := newTestEngine(t)
	peerFp, _ := genPeerFingerprint(t, 0xAA)
	e.RegisterDirectPeer("addr-peer", peerFp)

	originFp, _ := genPeerFingerprint(t, 0xBB)
	p := &codec.Packet{
		Version:      2,
		Type:         common.TypeRouteReply,
		TTL:          5,
		RouteHistory: []string{string(peerFp)},
		Payload:      []byte(originFp),
	}
	e.IngestRouted(p, []common.Fingerprint{peerFp})

	hop, ok := e.NextHop(originFp)
	if !ok {
		t.Fatal("expected a learned route to originFp")
	}
	if hop != peerFp {
		t.Fatalf("expected next hop %q, got %q", peerFp, hop)
	}
}

func TestUnregisterDirectPeerRemovesRoute(t *testing.T) {
	e, _, _ := newTestEngine(t)
	peerFp, _ := genPeerFingerprint(t, 0xAA)
	e.RegisterDirectPeer("addr-peer", peerFp)

	if _, ok := e.NextHop(peerFp); !ok {
		t.Fatal("expected direct-peer seed route")
	}
	e.UnregisterDirectPeer(peerFp)
	if _, ok := e.NextHop(peerFp); ok {
		t.Fatal("expected route removed after unregister")
	}
}
