// Package dispatch is the single entry point for inbound wire bytes
// (spec §4.6): it parses each frame with internal/codec and fans it out
// by packet type to whichever subsystem owns that type.
package dispatch

import (
	"github.com/rs/zerolog/log"

	"github.com/rfmesh/rfmesh/internal/codec"
	"github.com/rfmesh/rfmesh/internal/common"
)

// Handler receives one successfully parsed packet, along with the
// transport address it arrived from.
type Handler func(address string, p *codec.Packet)

// Dispatcher owns the type → handler fan-out table.
type Dispatcher struct {
	messageHandlers []Handler
	fileHandlers    []Handler
	routingIngest   Handler
	routeHandlers   []Handler
	channelHandlers []Handler
}

// New constructs an empty Dispatcher; callers wire subsystems in with
// the On* methods before connecting it to a transport.Manager's
// dataReceived event.
func New() *Dispatcher {
	return &Dispatcher{}
}

// OnMessage registers a handler for text-message and noise-msg-1..3
// packets.
func (d *Dispatcher) OnMessage(h Handler) { d.messageHandlers = append(d.messageHandlers, h) }

// OnFile registers a handler for file-metadata and file-chunk packets.
func (d *Dispatcher) OnFile(h Handler) { d.fileHandlers = append(d.fileHandlers, h) }

// OnRoutingIngest registers the mesh-routing engine's ingest entry
// point for routed-message packets. Only one may be registered.
func (d *Dispatcher) OnRoutingIngest(h Handler) { d.routingIngest = h }

// OnRoute registers a handler for route-discovery and route-reply
// packets.
func (d *Dispatcher) OnRoute(h Handler) { d.routeHandlers = append(d.routeHandlers, h) }

// OnChannel registers a handler for channel-message, channel-join,
// channel-leave and channel-announce packets. Channel handlers are
// expected to re-submit the packet to the routing engine for forwarding
// themselves (spec §4.6) — the dispatcher does not do this on their
// behalf.
func (d *Dispatcher) OnChannel(h Handler) { d.channelHandlers = append(d.channelHandlers, h) }

// Dispatch parses raw and fans it out. It is meant to be wired directly
// as a transport.Manager OnDataReceived callback.
func (d *Dispatcher) Dispatch(address string, raw []byte) {
	p, err := codec.Parse(raw)
	if err != nil {
		log.Debug().Str("address", address).Err(err).Msg("[dispatch] dropping unparseable frame")
		return
	}

	switch p.Type {
	case common.TypeTextMessage, common.TypeNoiseMsg1, common.TypeNoiseMsg2, common.TypeNoiseMsg3:
		for _, h := range d.messageHandlers {
			h(address, p)
		}
	case common.TypeFileMetadata, common.TypeFileChunk:
		for _, h := range d.fileHandlers {
			h(address, p)
		}
	case common.TypeRoutedMessage:
		if d.routingIngest != nil {
			d.routingIngest(address, p)
		}
	case common.TypeRouteDiscovery, common.TypeRouteReply:
		for _, h := range d.routeHandlers {
			h(address, p)
		}
	case common.TypeChannelMessage, common.TypeChannelJoin, common.TypeChannelLeave, common.TypeChannelAnnounce:
		for _, h := range d.channelHandlers {
			h(address, p)
		}
	default:
		log.Debug().Str("address", address).Uint8("type", p.Type).Msg("[dispatch] unknown packet type, dropping")
	}
}
