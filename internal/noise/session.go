package noise

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
)

// Session holds the transport keys and nonce state for one established
// peer connection (spec §4.4). Session is safe for concurrent use.
type Session struct {
	remoteStaticPub []byte

	sendKey    []byte
	receiveKey []byte

	sendNonce         int64 // next nonce to use, monotonic
	lastReceivedNonce int64 // highest nonce accepted so far; -1 means none yet
}

func newSession(remoteStaticPub []byte) *Session {
	return &Session{
		remoteStaticPub:   append([]byte(nil), remoteStaticPub...),
		lastReceivedNonce: -1,
	}
}

// RemoteStaticPub returns the peer's X25519 static public key, the value
// the caller fingerprints to learn who it has a session with.
func (s *Session) RemoteStaticPub() []byte {
	return append([]byte(nil), s.remoteStaticPub...)
}

// Encrypt seals plaintext for transport: an 8-byte little-endian nonce
// counter followed by the ChaCha20-Poly1305 ciphertext (spec §4.4
// "transport encryption").
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	n := atomic.AddInt64(&s.sendNonce, 1) - 1

	nonce12 := transportNonce(uint64(n))
	ct, err := crypto.AEADEncrypt(s.sendKey, nonce12, nil, plaintext)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 8+len(ct))
	binary.LittleEndian.PutUint64(frame[:8], uint64(n))
	copy(frame[8:], ct)
	return frame, nil
}

// Decrypt opens a transport frame, rejecting any nonce not strictly
// greater than the highest one already accepted (spec §4.4 replay
// protection).
func (s *Session) Decrypt(frame []byte) ([]byte, error) {
	if len(frame) < 8 {
		return nil, common.ErrParse
	}
	n := binary.LittleEndian.Uint64(frame[:8])

	last := atomic.LoadInt64(&s.lastReceivedNonce)
	if int64(n) <= last {
		return nil, common.ErrReplayDetected
	}

	nonce12 := transportNonce(n)
	pt, err := crypto.AEADDecrypt(s.receiveKey, nonce12, nil, frame[8:])
	if err != nil {
		return nil, err
	}

	for {
		last = atomic.LoadInt64(&s.lastReceivedNonce)
		if int64(n) <= last {
			break
		}
		if atomic.CompareAndSwapInt64(&s.lastReceivedNonce, last, int64(n)) {
			break
		}
	}
	return pt, nil
}

// transportNonce builds the 12-byte AEAD nonce from a monotonic counter:
// 4 zero bytes followed by the same little-endian counter bytes carried
// on the wire (spec §4.4: nonce12 = [0,0,0,0] || nonceCounter).
func transportNonce(n uint64) []byte {
	nonce := make([]byte, 12)
	binary.LittleEndian.PutUint64(nonce[4:], n)
	return nonce
}

// Manager tracks live sessions by peer fingerprint and evicts them a
// fixed window after the peer disconnects (spec §3: sessions are
// "destroyed ... when the peer disconnects for longer than a
// session-lifetime window").
type Manager struct {
	sessions map[common.Fingerprint]*Session
	mu       sync.RWMutex

	pendingEviction *expirable.LRU[common.Fingerprint, struct{}]
}

// NewManager constructs a session manager whose disconnected-peer
// eviction window is sessionLifetime (spec default: common.SessionLifetime).
func NewManager(sessionLifetime time.Duration) *Manager {
	m := &Manager{sessions: make(map[common.Fingerprint]*Session)}
	m.pendingEviction = expirable.NewLRU[common.Fingerprint, struct{}](0, func(peer common.Fingerprint, _ struct{}) {
		m.mu.Lock()
		delete(m.sessions, peer)
		m.mu.Unlock()
	}, sessionLifetime)
	return m
}

// Store installs an established session for peer, replacing any prior
// one, and cancels any pending eviction for it.
func (m *Manager) Store(peer common.Fingerprint, s *Session) {
	// Removing a pending entry runs the eviction callback, so it must
	// happen before the new session is installed.
	m.pendingEviction.Remove(peer)
	m.mu.Lock()
	m.sessions[peer] = s
	m.mu.Unlock()
}

// Get returns the live session for peer, if any.
func (m *Manager) Get(peer common.Fingerprint) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[peer]
	return s, ok
}

// OnDisconnect starts the eviction countdown for peer's session. If the
// peer reconnects and a new session replaces it (via Store) before the
// window elapses, the old countdown is cancelled.
func (m *Manager) OnDisconnect(peer common.Fingerprint) {
	m.mu.RLock()
	_, ok := m.sessions[peer]
	m.mu.RUnlock()
	if ok {
		m.pendingEviction.Add(peer, struct{}{})
	}
}

// Destroy immediately removes peer's session, used on explicit identity
// wipe (spec §6 "Wipe").
func (m *Manager) Destroy(peer common.Fingerprint) {
	m.mu.Lock()
	delete(m.sessions, peer)
	m.mu.Unlock()
	m.pendingEviction.Remove(peer)
}
