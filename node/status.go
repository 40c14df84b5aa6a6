package node

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/rfmesh/rfmesh/internal/admin"
	"github.com/rfmesh/rfmesh/internal/common"
)

// AdminHandler returns the read-only admin HTTP surface for this node,
// implementing admin.StatusSource directly.
func (n *Node) AdminHandler() http.Handler {
	return admin.NewRouter(n)
}

// DirectPeers implements admin.StatusSource.
func (n *Node) DirectPeers() []admin.PeerStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]admin.PeerStatus, 0, len(n.fpToAddr))
	for fp, addr := range n.fpToAddr {
		out = append(out, admin.PeerStatus{Address: addr, Fingerprint: string(fp)})
	}
	return out
}

// JoinedChannels implements admin.StatusSource.
func (n *Node) JoinedChannels() []string { return n.channels.Joined() }

// AvailableChannels implements admin.StatusSource.
func (n *Node) AvailableChannels() []string { return n.channels.Available() }

// PendingQueueDepths implements admin.StatusSource, reporting the
// store-and-forward backlog for every peer this node has ever recorded
// a trust level for, plus any currently direct-connected peer (whose
// backlog is always zero, since a direct peer's queue is flushed on
// connect).
func (n *Node) PendingQueueDepths() map[string]int {
	n.mu.Lock()
	known := make(map[common.Fingerprint]struct{}, len(n.fpToAddr))
	for fp := range n.fpToAddr {
		known[fp] = struct{}{}
	}
	n.mu.Unlock()
	for _, fp := range n.trust.Known() {
		known[fp] = struct{}{}
	}

	out := make(map[string]int, len(known))
	for fp := range known {
		depth, err := n.queue.Depth(fp)
		if err != nil {
			log.Warn().Str("peer", fp.Short()).Err(err).Msg("[node] failed to read queue depth")
			continue
		}
		out[string(fp)] = depth
	}
	return out
}

var _ admin.StatusSource = (*Node)(nil)
