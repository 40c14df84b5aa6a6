// Package node wires the mesh engine's components — identity, Noise
// sessions, transport, dispatch, routing, channels and store-and-forward
// — into the single external API a shell binds to (spec §9: "a narrow
// event/command interface that a shell binds to").
package node

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/99designs/keyring"
	"github.com/rs/zerolog/log"

	"github.com/rfmesh/rfmesh/internal/channel"
	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/dispatch"
	"github.com/rfmesh/rfmesh/internal/identity"
	"github.com/rfmesh/rfmesh/internal/noise"
	"github.com/rfmesh/rfmesh/internal/queue"
	"github.com/rfmesh/rfmesh/internal/routing"
	"github.com/rfmesh/rfmesh/internal/store"
	"github.com/rfmesh/rfmesh/internal/transport"
)

// Node is one running mesh participant.
type Node struct {
	identity *identity.Identity
	settings *identity.Settings
	trust    *identity.TrustStore

	db       *store.DB
	keyring  keyring.Keyring
	queue    *queue.Store
	sessions *noise.Manager

	transport  *transport.Manager
	dispatcher *dispatch.Dispatcher
	routing    *routing.Engine
	channels   *channel.Service

	mu               sync.Mutex
	addrToFP         map[string]common.Fingerprint
	fpToAddr         map[common.Fingerprint]string
	pendingHandshake map[string]*noise.HandshakeState // address -> in-flight state, discarded on any error

	seqCounter uint32

	fileTransfers *fileTransfers

	onMessageDelivered func(from common.Fingerprint, text string)
	onChannelDelivered func(channelName string, from common.Fingerprint, text string)
	onFileReceived     func(filename string, data []byte)
	onPeerConnected    func(fp common.Fingerprint, address string)

	stopCleanup chan struct{}
}

// Deps bundles the already-opened resources New needs; callers own
// their lifecycle (closing the DB, etc).
type Deps struct {
	DB       *store.DB
	Keyring  keyring.Keyring
	Dialer   transport.Dialer
	Nickname string

	// SessionLifetime, RouteExpiry and SeenCacheMax override the spec
	// defaults (common.SessionLifetime, common.RouteExpiry,
	// common.SeenCacheMax) when non-zero.
	SessionLifetime time.Duration
	RouteExpiry     time.Duration
	SeenCacheMax    int
}

// New loads or creates this node's identity and settings from deps.DB,
// then wires every subsystem together.
func New(deps Deps) (*Node, error) {
	id, err := identity.LoadOrCreate(deps.DB, deps.Keyring, deps.Nickname)
	if err != nil {
		return nil, err
	}
	settings, err := identity.LoadOrCreateSettings(deps.DB, deps.Nickname)
	if err != nil {
		return nil, err
	}
	trust, err := identity.LoadTrustStore(deps.DB)
	if err != nil {
		return nil, err
	}

	sessionLifetime := orDefaultDuration(deps.SessionLifetime, common.SessionLifetime)
	routeExpiry := orDefaultDuration(deps.RouteExpiry, common.RouteExpiry)
	seenCacheMax := deps.SeenCacheMax
	if seenCacheMax == 0 {
		seenCacheMax = common.SeenCacheMax
	}

	n := &Node{
		identity:         id,
		settings:         settings,
		trust:            trust,
		db:               deps.DB,
		keyring:          deps.Keyring,
		queue:            queue.New(deps.DB),
		sessions:         noise.NewManager(sessionLifetime),
		transport:        transport.NewManager(deps.Dialer),
		dispatcher:       dispatch.New(),
		channels:         channel.New(),
		addrToFP:         make(map[string]common.Fingerprint),
		fpToAddr:         make(map[common.Fingerprint]string),
		pendingHandshake: make(map[string]*noise.HandshakeState),
		fileTransfers:    newFileTransfers(),
		stopCleanup:      make(chan struct{}),
	}
	n.routing = routing.New(id.StaticPub, n.transport.Send, n.deliverLocal, routeExpiry, seenCacheMax)

	n.wireTransport()
	n.wireDispatch()
	n.wireChannels()

	go n.routing.RunCleanup(n.stopCleanup)

	return n, nil
}

// Close stops background work. It does not close the underlying store
// or keyring, which the caller owns.
func (n *Node) Close() {
	close(n.stopCleanup)
}

// Fingerprint returns this node's own fingerprint.
func (n *Node) Fingerprint() common.Fingerprint { return n.identity.Fingerprint() }

// Nickname returns this node's display nickname.
func (n *Node) Nickname() string { return n.settings.Nickname }

func (n *Node) wireTransport() {
	n.transport.OnConnected(func(address string) {
		log.Info().Str("address", address).Msg("[node] link connected")
	})
	n.transport.OnDisconnected(func(address string) {
		log.Info().Str("address", address).Msg("[node] link disconnected")
		n.handleDisconnect(address)
	})
	n.transport.OnDataReceived(n.dispatcher.Dispatch)
}

func (n *Node) wireDispatch() {
	n.dispatcher.OnMessage(n.handleMessagePacket)
	n.dispatcher.OnFile(n.handleFilePacket)
	n.dispatcher.OnRoutingIngest(n.handleRoutedPacket)
	n.dispatcher.OnRoute(n.handleRoutedPacket)
	n.dispatcher.OnChannel(n.handleChannelPacket)
}

func (n *Node) wireChannels() {
	n.channels.OnJoinBroadcast(func(name string) {
		n.routing.SendChannelControl(common.TypeChannelJoin, name, n.settings.Nickname, "", n.activePeers())
	})
	n.channels.OnLeaveBroadcast(func(name string) {
		n.routing.SendChannelControl(common.TypeChannelLeave, name, n.settings.Nickname, "", n.activePeers())
	})
	n.channels.OnMessageReady(func(name, text string) {
		n.routing.SendChannel(name, []byte(text), n.activePeers())
	})
}

// Connect dials address and, once the link is up, begins a Noise
// handshake as the initiator — the side that dials out always starts
// the exchange (spec §4.4); the accepting side only answers message 1.
func (n *Node) Connect(ctx context.Context, address string) (bool, error) {
	ok, err := n.transport.Connect(ctx, address)
	if ok {
		n.beginHandshake(address)
	}
	return ok, err
}

// RegisterIncomingLink installs a Link accepted from the remote side
// (e.g. an inbound wslink.Accept upgrade). It does not initiate a
// handshake; it waits for the dialing peer's message 1.
func (n *Node) RegisterIncomingLink(link transport.Link) {
	n.transport.RegisterIncoming(link)
}

// OnMessageDelivered registers the callback fired when a decrypted
// direct text message addressed to this node arrives.
func (n *Node) OnMessageDelivered(fn func(from common.Fingerprint, text string)) {
	n.onMessageDelivered = fn
}

// OnChannelDelivered registers the callback fired when a channel
// message for a joined channel arrives.
func (n *Node) OnChannelDelivered(fn func(channelName string, from common.Fingerprint, text string)) {
	n.onChannelDelivered = fn
}

// OnPeerConnected registers the callback fired once a direct peer's
// Noise session has been established, in either handshake role.
func (n *Node) OnPeerConnected(fn func(fp common.Fingerprint, address string)) {
	n.onPeerConnected = fn
}

func (n *Node) activePeers() []common.Fingerprint {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]common.Fingerprint, 0, len(n.fpToAddr))
	for fp := range n.fpToAddr {
		out = append(out, fp)
	}
	return out
}

func (n *Node) addressFor(fp common.Fingerprint) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	addr, ok := n.fpToAddr[fp]
	return addr, ok
}

func (n *Node) nextSeq() uint32 {
	return atomic.AddUint32(&n.seqCounter, 1)
}

func nowUnix() int64 { return time.Now().Unix() }

func orDefaultDuration(v, fallback time.Duration) time.Duration {
	if v == 0 {
		return fallback
	}
	return v
}

func (n *Node) handleDisconnect(address string) {
	n.mu.Lock()
	fp, ok := n.addrToFP[address]
	if ok {
		delete(n.addrToFP, address)
		delete(n.fpToAddr, fp)
	}
	delete(n.pendingHandshake, address)
	n.mu.Unlock()

	if ok {
		n.routing.UnregisterDirectPeer(fp)
		n.sessions.OnDisconnect(fp)
	}
}
