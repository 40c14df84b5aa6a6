// Package routing implements the mesh routing engine (spec §4.7): TTL-
// bounded flood forwarding with loop prevention, opportunistic route
// learning from observed route history, and the route-discovery/reply
// exchange peers use to learn multi-hop paths.
package routing

import (
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rfmesh/rfmesh/internal/codec"
	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
)

// SendFunc transmits a serialized frame to the direct peer at address.
// It is expected to be transport.Manager.Send (or equivalent), injected
// so this package has no transport dependency.
type SendFunc func(address string, frame []byte) bool

// DeliverFunc is invoked for a packet addressed to, or broadcast past,
// this node.
type DeliverFunc func(p *codec.Packet)

// directPeer pairs a peer's address with its fingerprint, the unit
// registerDirectPeer/unregisterDirectPeer operate on.
type directPeer struct {
	address     string
	fingerprint common.Fingerprint
}

// Engine owns the routing table, direct-peer set and dedup cache for
// one node.
type Engine struct {
	localFingerprint common.Fingerprint
	localStaticPub   [32]byte

	seen  *seenCache
	table *table

	mu          sync.RWMutex
	directPeers map[common.Fingerprint]directPeer

	send    SendFunc
	deliver DeliverFunc

	now func() time.Time
}

// New constructs a routing Engine for the node identified by
// localStaticPub, sending forwarded frames through send and delivering
// locally-addressed packets through deliver. routeExpiry and
// seenCacheMax override the spec defaults (common.RouteExpiry,
// common.SeenCacheMax) per node configuration.
func New(localStaticPub []byte, send SendFunc, deliver DeliverFunc, routeExpiry time.Duration, seenCacheMax int) *Engine {
	var pub32 [32]byte
	copy(pub32[:], localStaticPub)

	return &Engine{
		localFingerprint: crypto.Fingerprint(localStaticPub),
		localStaticPub:   pub32,
		seen:             newSeenCache(seenCacheMax),
		table:            newTable(routeExpiry),
		directPeers:      make(map[common.Fingerprint]directPeer),
		send:             send,
		deliver:          deliver,
		now:              time.Now,
	}
}

// LocalFingerprint returns this node's fingerprint.
func (e *Engine) LocalFingerprint() common.Fingerprint { return e.localFingerprint }

// RegisterDirectPeer records a newly connected direct peer and seeds
// the routing table with a one-hop entry for it.
func (e *Engine) RegisterDirectPeer(address string, fp common.Fingerprint) {
	e.mu.Lock()
	e.directPeers[fp] = directPeer{address: address, fingerprint: fp}
	e.mu.Unlock()
	e.table.seedDirect(fp, e.now())
}

// UnregisterDirectPeer forgets a direct peer and its one-hop seed.
func (e *Engine) UnregisterDirectPeer(fp common.Fingerprint) {
	e.mu.Lock()
	delete(e.directPeers, fp)
	e.mu.Unlock()
	e.table.removeDirect(fp)
}

// NextHop returns the fingerprint of the peer this node should forward
// traffic for destFp through, if any route is known.
func (e *Engine) NextHop(destFp common.Fingerprint) (common.Fingerprint, bool) {
	return e.table.nextHop(destFp)
}

// RunCleanup blocks, sweeping the routing table every
// common.RoutingCleanupInterval, until ctx-like stop channel closes.
func (e *Engine) RunCleanup(stop <-chan struct{}) {
	ticker := time.NewTicker(common.RoutingCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.table.cleanup(e.now())
		case <-stop:
			return
		}
	}
}

// IngestRouted runs the full ingest pipeline (spec §4.7) for a routed
// or bare packet, forwarding to the subset of activePeers that can
// still usefully receive it.
func (e *Engine) IngestRouted(p *codec.Packet, activePeers []common.Fingerprint) {
	now := e.now()

	key := dedupKey(p)
	if !e.seen.addIfAbsent(key, now) {
		return
	}
	if p.TTL == 0 {
		return
	}
	if containsFingerprint(p.RouteHistory, e.localFingerprint) {
		return
	}

	e.learnFromRouteHistory(p, now)

	if p.Type == common.TypeRouteDiscovery {
		target := common.Fingerprint(p.Payload)
		if target == e.localFingerprint {
			e.replyRoute(p, activePeers)
			return
		}
		e.forward(p, activePeers)
		return
	}

	switch {
	case p.DestinationPub == e.localStaticPub:
		if e.deliver != nil {
			e.deliver(p)
		}
	case isBroadcastDest(p.DestinationPub):
		if e.deliver != nil {
			e.deliver(p)
		}
		e.forward(p, activePeers)
	default:
		e.forward(p, activePeers)
	}
}

// SendChannel builds and floods a channel-message packet (spec §4.7).
func (e *Engine) SendChannel(channelName string, text []byte, activePeers []common.Fingerprint) {
	p := &codec.Packet{
		Version:     2,
		Type:        common.TypeChannelMessage,
		TTL:         common.DefaultTTL,
		ChannelName: channelName,
		Payload:     text,
	}
	copy(p.SenderID[:], e.localStaticPub[:16])
	copy(p.OriginatorPub[:], e.localStaticPub[:])
	e.floodNew(p, activePeers)
}

// SendChannelControl builds a join/leave/announce control packet whose
// payload is "nickname" or "nickname|extraData".
func (e *Engine) SendChannelControl(typ byte, channelName, nickname, extraData string, activePeers []common.Fingerprint) {
	payload := nickname
	if extraData != "" {
		payload += "|" + extraData
	}
	p := &codec.Packet{
		Version:     2,
		Type:        typ,
		TTL:         common.DefaultTTL,
		ChannelName: channelName,
		Payload:     []byte(payload),
	}
	copy(p.SenderID[:], e.localStaticPub[:16])
	copy(p.OriginatorPub[:], e.localStaticPub[:])
	e.floodNew(p, activePeers)
}

// SendDirect builds and transmits a unicast routed-message packet
// toward destFp, using an already-learned next hop when one exists and
// falling back to flooding every active direct peer otherwise. flags is
// written through unchanged (e.g. common.FlagCompressed when payload was
// compressed by the caller before encryption).
func (e *Engine) SendDirect(destFp common.Fingerprint, destPub [32]byte, payload []byte, flags byte, activePeers []common.Fingerprint) {
	p := &codec.Packet{
		Version:        2,
		Type:           common.TypeRoutedMessage,
		TTL:            common.DefaultTTL,
		DestinationPub: destPub,
		Flags:          flags,
		Payload:        payload,
	}
	copy(p.SenderID[:], e.localStaticPub[:16])
	copy(p.OriginatorPub[:], e.localStaticPub[:])

	if hop, ok := e.table.nextHop(destFp); ok {
		if addr, ok := e.addressOf(hop); ok {
			wire, err := codec.Serialize(p)
			if err != nil {
				log.Error().Err(err).Msg("[routing] failed to serialize originated direct packet")
				return
			}
			e.send(addr, wire)
			return
		}
	}
	e.floodNew(p, activePeers)
}

// DiscoverRoute builds and floods a route-discovery packet targeting
// destFp.
func (e *Engine) DiscoverRoute(destFp common.Fingerprint, activePeers []common.Fingerprint) {
	p := &codec.Packet{
		Version: 2,
		Type:    common.TypeRouteDiscovery,
		TTL:     common.DefaultTTL,
		Payload: []byte(destFp),
	}
	copy(p.SenderID[:], e.localStaticPub[:16])
	copy(p.OriginatorPub[:], e.localStaticPub[:])
	e.floodNew(p, activePeers)
}

// floodNew serializes a freshly originated packet (hopCount=0) and
// sends it to every currently active direct peer.
func (e *Engine) floodNew(p *codec.Packet, activePeers []common.Fingerprint) {
	wire, err := codec.Serialize(p)
	if err != nil {
		log.Error().Err(err).Msg("[routing] failed to serialize originated packet")
		return
	}
	for _, fp := range activePeers {
		if addr, ok := e.addressOf(fp); ok {
			e.send(addr, wire)
		}
	}
}

func (e *Engine) replyRoute(p *codec.Packet, activePeers []common.Fingerprint) {
	reply := &codec.Packet{
		Version:      2,
		Type:         common.TypeRouteReply,
		TTL:          common.DefaultTTL,
		RouteHistory: append([]string(nil), p.RouteHistory...),
		Payload:      []byte(e.localFingerprint),
	}
	copy(reply.SenderID[:], e.localStaticPub[:16])
	copy(reply.OriginatorPub[:], e.localStaticPub[:])
	e.floodNew(reply, activePeers)
}

// learnFromRouteHistory applies spec §4.7's opportunistic route-table
// population: the first fingerprint in routeHistory that is also a
// direct peer becomes the next hop toward the packet's origin, recorded
// if strictly shorter than any existing route.
func (e *Engine) learnFromRouteHistory(p *codec.Packet, now time.Time) {
	if len(p.RouteHistory) == 0 {
		return
	}
	hop, ok := e.firstDirectHop(p.RouteHistory)
	if !ok {
		return
	}

	// The payload of both route-discovery and route-reply packets carries
	// the fingerprint this route leads to: the discovery target, or the
	// responder answering it.
	originFp := common.Fingerprint(p.Payload)
	e.table.learn(originFp, hop, len(p.RouteHistory), now)
}

func (e *Engine) firstDirectHop(routeHistory []string) (common.Fingerprint, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, fp := range routeHistory {
		if _, ok := e.directPeers[common.Fingerprint(fp)]; ok {
			return common.Fingerprint(fp), true
		}
	}
	return "", false
}

// forward decrements TTL, extends hop bookkeeping and sends the packet
// on toward its destination (spec §4.7 step 5).
func (e *Engine) forward(p *codec.Packet, activePeers []common.Fingerprint) {
	fwd := *p
	fwd.TTL--
	fwd.HopCount++
	fwd.RouteHistory = append(append([]string(nil), p.RouteHistory...), string(e.localFingerprint))
	copy(fwd.SenderID[:], e.localStaticPub[:16])

	wire, err := codec.Serialize(&fwd)
	if err != nil {
		log.Error().Err(err).Msg("[routing] failed to serialize forwarded packet")
		return
	}

	if !isBroadcastDest(p.DestinationPub) {
		destFp := crypto.Fingerprint(p.DestinationPub[:])
		if hop, ok := e.table.nextHop(destFp); ok {
			if !containsFingerprint(p.RouteHistory, hop) && containsFingerprintStr(fpStrings(activePeers), string(hop)) {
				if addr, ok := e.addressOf(hop); ok {
					e.send(addr, wire)
				}
			}
			return
		}
	}

	for _, fp := range activePeers {
		if containsFingerprint(p.RouteHistory, fp) {
			continue
		}
		if addr, ok := e.addressOf(fp); ok {
			e.send(addr, wire)
		}
	}
}

func (e *Engine) addressOf(fp common.Fingerprint) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	dp, ok := e.directPeers[fp]
	if !ok {
		return "", false
	}
	return dp.address, true
}

func isBroadcastDest(dest [32]byte) bool {
	var zero [32]byte
	return dest == zero
}

func containsFingerprint(history []string, fp common.Fingerprint) bool {
	return containsFingerprintStr(history, string(fp))
}

func containsFingerprintStr(history []string, fp string) bool {
	for _, h := range history {
		if h == fp {
			return true
		}
	}
	return false
}

func fpStrings(fps []common.Fingerprint) []string {
	out := make([]string, len(fps))
	for i, fp := range fps {
		out[i] = string(fp)
	}
	return out
}

// dedupKey derives spec §3's message key — hex(originatorPubKey):seqNum
// — which is stable across hops since neither field mutates as a
// packet propagates (unlike TTL, hopCount and routeHistory).
func dedupKey(p *codec.Packet) string {
	return hex.EncodeToString(p.OriginatorPub[:]) + ":" + strconv.FormatUint(uint64(p.SeqNum), 10)
}
