package dispatch

import (
	"testing"

	"github.com/rfmesh/rfmesh/internal/codec"
	"github.com/rfmesh/rfmesh/internal/common"
)

func frameOf(t *testing.T, typ byte) []byte {
	t.Helper()
	p := &codec.Packet{Version: 1, Type: typ, SeqNum: 1}
	wire, err := codec.Serialize(p)
	if err != nil {
		t.Fatal(err)
	}
	return wire
}

func TestDispatchRoutesByType(t *testing.T) {
	d := New()

	var gotMessage, gotFile, gotRouting, gotRoute, gotChannel bool
	d.OnMessage(func(addr string, p *codec.Packet) { gotMessage = true })
	d.OnFile(func(addr string, p *codec.Packet) { gotFile = true })
	d.OnRoutingIngest(func(addr string, p *codec.Packet) { gotRouting = true })
	d.OnRoute(func(addr string, p *codec.Packet) { gotRoute = true })
	d.OnChannel(func(addr string, p *codec.Packet) { gotChannel = true })

	d.Dispatch("peer-1", frameOf(t, common.TypeTextMessage))
	d.Dispatch("peer-1", frameOf(t, common.TypeFileChunk))
	d.Dispatch("peer-1", frameOf(t, common.TypeRoutedMessage))
	d.Dispatch("peer-1", frameOf(t, common.TypeRouteDiscovery))
	d.Dispatch("peer-1", frameOf(t, common.TypeChannelMessage))

	if !gotMessage || !gotFile || !gotRouting || !gotRoute || !gotChannel {
		t.Fatalf("expected all handler classes to fire: msg=%v file=%v routing=%v route=%v channel=%v",
			gotMessage, gotFile, gotRouting, gotRoute, gotChannel)
	}
}

func TestDispatchDropsUnknownType(t *testing.T) {
	d := New()
	fired := false
	d.OnMessage(func(addr string, p *codec.Packet) { fired = true })

	d.Dispatch("peer-1", frameOf(t, 0x7F))

	if fired {
		t.Fatal("unknown packet type should not reach any handler")
	}
}

func TestDispatchDropsUnparseableFrame(t *testing.T) {
	d := New()
	fired := false
	d.OnMessage(func(addr string, p *codec.Packet) { fired = true })

	d.Dispatch("peer-1", []byte{0xFF, 0xFF})

	if fired {
		t.Fatal("malformed frame should not reach any handler")
	}
}
