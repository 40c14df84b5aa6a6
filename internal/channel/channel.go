// Package channel implements the channel service (spec §4.8): joined
// and available channel bookkeeping, membership, and the slash-command
// surface used to drive it from a chat-style UI.
package channel

import (
	"strings"
	"sync"

	"github.com/rfmesh/rfmesh/internal/common"
)

// Channel is one chat room's membership state.
type Channel struct {
	Name               string
	Password           string
	IsJoined           bool
	MemberFingerprints map[common.Fingerprint]struct{}
	MemberNames        map[common.Fingerprint]string
	MemberCount        int // from the most recent channel-announce, for channels not yet joined
}

// Service owns every channel this node knows about, joined or merely
// observed via announcements.
type Service struct {
	mu       sync.RWMutex
	channels map[string]*Channel

	onJoinBroadcast  func(name string)
	onLeaveBroadcast func(name string)
	onMessageReady   func(name string, text string)
}

// New constructs an empty channel Service.
func New() *Service {
	return &Service{channels: make(map[string]*Channel)}
}

// OnJoinBroadcast registers the callback fired when this node joins a
// channel and needs to announce it to the mesh.
func (s *Service) OnJoinBroadcast(fn func(name string)) { s.onJoinBroadcast = fn }

// OnLeaveBroadcast registers the callback fired on leaving a channel.
func (s *Service) OnLeaveBroadcast(fn func(name string)) { s.onLeaveBroadcast = fn }

// OnMessageReady registers the callback fired when a locally authored
// channel message is ready to be sent.
func (s *Service) OnMessageReady(fn func(name, text string)) { s.onMessageReady = fn }

// NormalizeName trims, lowercases and ensures the leading '#' spec
// §4.8 requires.
func NormalizeName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(name, "#") {
		name = "#" + name
	}
	return name
}

func (s *Service) getOrCreateLocked(name string) *Channel {
	ch, ok := s.channels[name]
	if !ok {
		ch = &Channel{
			Name:               name,
			MemberFingerprints: make(map[common.Fingerprint]struct{}),
			MemberNames:        make(map[common.Fingerprint]string),
		}
		s.channels[name] = ch
	}
	return ch
}

// JoinChannel implements spec §4.8's joinChannel.
func (s *Service) JoinChannel(rawName, password string, localFp common.Fingerprint, nickname string) error {
	name := NormalizeName(rawName)

	s.mu.Lock()
	ch := s.getOrCreateLocked(name)
	if ch.Password != "" && ch.Password != password {
		s.mu.Unlock()
		return common.ErrUnauthorized
	}
	if ch.Password == "" && password != "" {
		ch.Password = password
	}
	ch.MemberFingerprints[localFp] = struct{}{}
	ch.MemberNames[localFp] = nickname
	ch.IsJoined = true
	s.mu.Unlock()

	if s.onJoinBroadcast != nil {
		s.onJoinBroadcast(name)
	}
	return nil
}

// LeaveChannel implements spec §4.8's leaveChannel.
func (s *Service) LeaveChannel(rawName string, localFp common.Fingerprint) {
	name := NormalizeName(rawName)

	s.mu.Lock()
	ch, ok := s.channels[name]
	if ok {
		delete(ch.MemberFingerprints, localFp)
		delete(ch.MemberNames, localFp)
		ch.IsJoined = false
	}
	s.mu.Unlock()

	if ok && s.onLeaveBroadcast != nil {
		s.onLeaveBroadcast(name)
	}
}

// SendChannelMessage implements spec §4.8's sendChannelMessage,
// requiring the node to already be joined.
func (s *Service) SendChannelMessage(rawName, text string) error {
	name := NormalizeName(rawName)

	s.mu.RLock()
	ch, ok := s.channels[name]
	joined := ok && ch.IsJoined
	s.mu.RUnlock()

	if !joined {
		return common.ErrUnauthorized
	}
	if s.onMessageReady != nil {
		s.onMessageReady(name, text)
	}
	return nil
}

// ObserveAnnounce records a remote channel-announce, populating
// availableChannels for channels this node has not joined (spec §4.8).
func (s *Service) ObserveAnnounce(rawName string, memberCount int) {
	name := NormalizeName(rawName)

	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.getOrCreateLocked(name)
	if !ch.IsJoined {
		ch.MemberCount = memberCount
	}
}

// ObserveMember records a remote join/leave, updating the channel's
// known membership without implying local participation.
func (s *Service) ObserveMember(rawName string, fp common.Fingerprint, nickname string, present bool) {
	name := NormalizeName(rawName)

	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.getOrCreateLocked(name)
	if present {
		ch.MemberFingerprints[fp] = struct{}{}
		ch.MemberNames[fp] = nickname
	} else {
		delete(ch.MemberFingerprints, fp)
		delete(ch.MemberNames, fp)
	}
}

// Joined returns the names of every channel this node is currently a
// member of.
func (s *Service) Joined() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name, ch := range s.channels {
		if ch.IsJoined {
			out = append(out, name)
		}
	}
	return out
}

// Available returns the names of known channels this node has not
// joined.
func (s *Service) Available() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name, ch := range s.channels {
		if !ch.IsJoined {
			out = append(out, name)
		}
	}
	return out
}

// IsJoined reports whether this node is currently a member of rawName.
func (s *Service) IsJoined(rawName string) bool {
	name := NormalizeName(rawName)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[name]
	return ok && ch.IsJoined
}

// Members returns the nicknames currently known for a channel.
func (s *Service) Members(rawName string) []string {
	name := NormalizeName(rawName)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ch.MemberNames))
	for _, nick := range ch.MemberNames {
		out = append(out, nick)
	}
	return out
}
