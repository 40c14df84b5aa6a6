package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// pipeLink adapts one end of a net.Pipe to the Link interface for
// in-process tests.
type pipeLink struct {
	net.Conn
	remote string
}

func (p *pipeLink) RemoteAddress() string { return p.remote }

// fakeDialer hands out one end of a net.Pipe per address, keeping the
// other end available for the test to drive directly.
type fakeDialer struct {
	mu      sync.Mutex
	servers map[string]net.Conn
	fail    map[string]bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{servers: make(map[string]net.Conn), fail: make(map[string]bool)}
}

func (d *fakeDialer) Dial(ctx context.Context, address string) (Link, error) {
	d.mu.Lock()
	shouldFail := d.fail[address]
	d.mu.Unlock()
	if shouldFail {
		return nil, errors.New("simulated dial failure")
	}

	client, server := net.Pipe()
	d.mu.Lock()
	d.servers[address] = server
	d.mu.Unlock()
	return &pipeLink{Conn: client, remote: address}, nil
}

func TestConnectRegistersLinkAndFiresConnected(t *testing.T) {
	d := newFakeDialer()
	m := NewManager(d)

	var connected []string
	m.OnConnected(func(addr string) { connected = append(connected, addr) })

	ok, err := m.Connect(context.Background(), "peer-1")
	if err != nil || !ok {
		t.Fatalf("expected successful connect, got ok=%v err=%v", ok, err)
	}
	if len(connected) != 1 || connected[0] != "peer-1" {
		t.Fatalf("expected connected event for peer-1, got %v", connected)
	}

	// Second connect to the same address is a no-op success, no new event.
	ok, err = m.Connect(context.Background(), "peer-1")
	if err != nil || !ok {
		t.Fatal("expected idempotent success on already-connected address")
	}
	if len(connected) != 1 {
		t.Fatalf("expected no duplicate connected event, got %v", connected)
	}
}

func TestSendAndReceiveRoundTrip(t *testing.T) {
	d := newFakeDialer()
	m := NewManager(d)

	received := make(chan []byte, 1)
	m.OnDataReceived(func(addr string, data []byte) { received <- data })

	if ok, err := m.Connect(context.Background(), "peer-1"); err != nil || !ok {
		t.Fatal("connect failed")
	}

	if ok := m.Send("peer-1", []byte("hello mesh")); !ok {
		t.Fatal("send reported failure")
	}

	d.mu.Lock()
	server := d.servers["peer-1"]
	d.mu.Unlock()

	buf := make([]byte, 4+len("hello mesh"))
	if _, err := readFull(server, buf); err != nil {
		t.Fatal(err)
	}

	select {
	case <-received:
		t.Fatal("should not have fired dataReceived from our own send")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDisconnectClosesLinkAndFiresEvent(t *testing.T) {
	d := newFakeDialer()
	m := NewManager(d)

	var disconnected []string
	m.OnDisconnected(func(addr string) { disconnected = append(disconnected, addr) })

	if _, err := m.Connect(context.Background(), "peer-1"); err != nil {
		t.Fatal(err)
	}
	m.Disconnect("peer-1")

	if len(disconnected) != 1 || disconnected[0] != "peer-1" {
		t.Fatalf("expected disconnected event, got %v", disconnected)
	}
	if ok := m.Send("peer-1", []byte("x")); ok {
		t.Fatal("expected send to fail after disconnect")
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
