package transport

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/rfmesh/rfmesh/internal/common"
)

// Manager is the connection manager of spec §4.5: it owns at most one
// live Link per remote address, serializes connect attempts through a
// singleflight group, and runs one length-prefixed read loop per link.
type Manager struct {
	dialer Dialer

	mu    sync.Mutex
	links map[string]Link
	group singleflight.Group

	onConnected    func(address string)
	onDisconnected func(address string)
	onDataReceived func(address string, data []byte)
}

// NewManager constructs a Manager that dials outbound links with
// dialer. dialer may be nil for a manager that only ever registers
// incoming links (e.g. a pure listener).
func NewManager(dialer Dialer) *Manager {
	return &Manager{
		dialer: dialer,
		links:  make(map[string]Link),
	}
}

// OnConnected registers the connected(address) event handler.
func (m *Manager) OnConnected(fn func(address string)) { m.onConnected = fn }

// OnDisconnected registers the disconnected(address) event handler.
func (m *Manager) OnDisconnected(fn func(address string)) { m.onDisconnected = fn }

// OnDataReceived registers the dataReceived(address, bytes) event
// handler.
func (m *Manager) OnDataReceived(fn func(address string, data []byte)) { m.onDataReceived = fn }

// Connect implements spec §4.5's connect policy: an existing entry for
// address is treated as success; otherwise up to common.MaxRetries
// attempts are made with 2^attempt-second backoff between them.
// Concurrent callers for the same address coalesce onto one attempt.
func (m *Manager) Connect(ctx context.Context, address string) (bool, error) {
	if m.hasLink(address) {
		return true, nil
	}
	if m.dialer == nil {
		return false, common.ErrNotConnected
	}

	v, err, _ := m.group.Do(address, func() (interface{}, error) {
		if m.hasLink(address) {
			return true, nil
		}

		var lastErr error
		for attempt := 1; attempt <= common.MaxRetries; attempt++ {
			link, dialErr := m.dialer.Dial(ctx, address)
			if dialErr == nil {
				m.register(address, link)
				return true, nil
			}
			lastErr = dialErr
			log.Warn().Str("address", address).Int("attempt", attempt).Err(dialErr).
				Msg("[transport] connect attempt failed")

			if attempt == common.MaxRetries {
				break
			}
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
		return false, lastErr
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// RegisterIncoming installs a link accepted from the remote side. Any
// pre-existing link for the same remote address is closed first (spec
// §4.5).
func (m *Manager) RegisterIncoming(link Link) {
	m.register(link.RemoteAddress(), link)
}

func (m *Manager) hasLink(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[address]
	return ok
}

func (m *Manager) register(address string, link Link) {
	m.mu.Lock()
	if old, ok := m.links[address]; ok {
		old.Close()
	}
	m.links[address] = link
	m.mu.Unlock()

	if m.onConnected != nil {
		m.onConnected(address)
	}
	go m.readLoop(address, link)
}

// Send writes a length-prefixed frame to the link registered for
// address, returning false if there is no such link or the write fails.
func (m *Manager) Send(address string, payload []byte) bool {
	m.mu.Lock()
	link, ok := m.links[address]
	m.mu.Unlock()
	if !ok {
		return false
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	if _, err := link.Write(frame); err != nil {
		m.Disconnect(address)
		return false
	}
	return true
}

// Disconnect closes and forgets the link for address, firing
// disconnected(address) if one existed.
func (m *Manager) Disconnect(address string) {
	m.mu.Lock()
	link, ok := m.links[address]
	if ok {
		delete(m.links, address)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	link.Close()
	if m.onDisconnected != nil {
		m.onDisconnected(address)
	}
}

// readLoop implements the per-link background reader: exactly 4 bytes
// of big-endian length, validated against MaxPayloadFrame, then exactly
// that many payload bytes (spec §4.5).
func (m *Manager) readLoop(address string, link Link) {
	lenBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(link, lenBuf); err != nil {
			m.Disconnect(address)
			return
		}
		payloadLen := binary.BigEndian.Uint32(lenBuf)
		if payloadLen == 0 || payloadLen > common.MaxPayloadFrame {
			log.Warn().Str("address", address).Uint32("len", payloadLen).
				Msg("[transport] invalid frame length, dropping link")
			m.Disconnect(address)
			return
		}

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(link, payload); err != nil {
			m.Disconnect(address)
			return
		}

		if m.onDataReceived != nil {
			m.onDataReceived(address, payload)
		}
	}
}
