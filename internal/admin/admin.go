// Package admin exposes a read-only HTTP status surface over the
// node's live state — peers, channels, queue depths — for
// operators and local tooling. It is explicitly read-only: nothing
// here can mutate mesh state.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rfmesh/rfmesh/internal/common"
)

// StatusSource is implemented by whatever owns the live node state
// (node.Node); admin depends only on this narrow view so it cannot be
// used to drive behavior, only observe it.
type StatusSource interface {
	Fingerprint() common.Fingerprint
	DirectPeers() []PeerStatus
	JoinedChannels() []string
	AvailableChannels() []string
	PendingQueueDepths() map[string]int
}

// PeerStatus summarizes one directly connected peer.
type PeerStatus struct {
	Address     string `json:"address"`
	Fingerprint string `json:"fingerprint"`
}

// NewRouter builds the admin HTTP surface backed by src.
func NewRouter(src StatusSource) http.Handler {
	r := chi.NewRouter()

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]any{
			"fingerprint":    src.Fingerprint(),
			"directPeers":    src.DirectPeers(),
			"joinedChannels": src.JoinedChannels(),
		})
	})

	r.Get("/peers", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, src.DirectPeers())
	})

	r.Get("/channels", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]any{
			"joined":    src.JoinedChannels(),
			"available": src.AvailableChannels(),
		})
	})

	r.Get("/queue", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, src.PendingQueueDepths())
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
