package node

import (
	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/identity"
)

// Wipe destroys this node's persisted identity and tears down every
// live session, the strongest reset spec §6 describes ("Wipe").
func (n *Node) Wipe() error {
	n.mu.Lock()
	peers := make([]common.Fingerprint, 0, len(n.fpToAddr))
	for fp := range n.fpToAddr {
		peers = append(peers, fp)
	}
	n.mu.Unlock()

	for _, fp := range peers {
		n.sessions.Destroy(fp)
	}

	return identity.Wipe(n.db, n.keyring)
}
