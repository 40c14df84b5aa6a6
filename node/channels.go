package node

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rfmesh/rfmesh/internal/codec"
	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
)

// JoinChannel joins name, broadcasting the join to the mesh on success.
func (n *Node) JoinChannel(name, password string) error {
	return n.channels.JoinChannel(name, password, n.Fingerprint(), n.settings.Nickname)
}

// LeaveChannel leaves name, broadcasting the leave to the mesh.
func (n *Node) LeaveChannel(name string) {
	n.channels.LeaveChannel(name, n.Fingerprint())
}

// SendChannelMessage broadcasts text to a channel this node has joined.
func (n *Node) SendChannelMessage(name, text string) error {
	return n.channels.SendChannelMessage(name, text)
}

// handleChannelPacket implements the dispatcher contract for channel
// packets (spec §4.6): update local channel state, then resubmit the
// packet to the routing engine so it keeps propagating through the
// mesh.
func (n *Node) handleChannelPacket(address string, p *codec.Packet) {
	originFp := crypto.Fingerprint(p.OriginatorPub[:])

	switch p.Type {
	case common.TypeChannelMessage:
		if n.channels.IsJoined(p.ChannelName) && n.onChannelDelivered != nil {
			n.onChannelDelivered(p.ChannelName, originFp, string(p.Payload))
		}
	case common.TypeChannelJoin:
		n.channels.ObserveMember(p.ChannelName, originFp, nicknameFromPayload(p.Payload), true)
	case common.TypeChannelLeave:
		n.channels.ObserveMember(p.ChannelName, originFp, nicknameFromPayload(p.Payload), false)
	case common.TypeChannelAnnounce:
		n.channels.ObserveAnnounce(p.ChannelName, memberCountFromPayload(p.Payload))
	default:
		log.Debug().Str("address", address).Uint8("type", p.Type).Msg("[node] unexpected channel packet type")
		return
	}

	n.routing.IngestRouted(p, n.activePeers())
}

func nicknameFromPayload(payload []byte) string {
	s := string(payload)
	if idx := strings.IndexByte(s, '|'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func memberCountFromPayload(payload []byte) int {
	s := string(payload)
	if idx := strings.LastIndexByte(s, '|'); idx >= 0 {
		s = s[idx+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
