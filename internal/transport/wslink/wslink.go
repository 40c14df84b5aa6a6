// Package wslink is a development/simulation transport: it implements
// transport.Link over a WebSocket connection, standing in for the BLE
// GATT and Classic RFCOMM radios the mesh engine targets in production
// (spec §1 Non-goals explicitly excludes real radio I/O from this
// engine's scope — it only needs a stream-capable Link to exercise
// against).
package wslink

import (
	"context"
	"net"
	"net/http"

	"github.com/coder/websocket"

	"github.com/rfmesh/rfmesh/internal/transport"
)

// Link adapts a *websocket.Conn, read via websocket.NetConn so it
// satisfies io.ReadWriteCloser, to transport.Link.
type Link struct {
	net.Conn
	remoteAddress string
}

// Dial opens a WebSocket connection to address (a ws:// or wss:// URL)
// and wraps it as a transport.Link.
func Dial(ctx context.Context, address string) (transport.Link, error) {
	conn, _, err := websocket.Dial(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	return &Link{
		Conn:          websocket.NetConn(context.Background(), conn, websocket.MessageBinary),
		remoteAddress: address,
	}, nil
}

// Accept upgrades an incoming HTTP request to a WebSocket and wraps it
// as a transport.Link, identified by the client's observed remote
// address.
func Accept(w http.ResponseWriter, r *http.Request) (transport.Link, error) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Link{
		Conn:          websocket.NetConn(context.Background(), conn, websocket.MessageBinary),
		remoteAddress: r.RemoteAddr,
	}, nil
}

// RemoteAddress returns the address this link was dialed to or
// accepted from.
func (l *Link) RemoteAddress() string { return l.remoteAddress }

// dialerImpl is the transport.Dialer implementation backed by Dial, so a
// Manager can be constructed with transport.NewManager(wslink.Dialer).
type dialerImpl struct{}

// Dialer is a ready-to-use transport.Dialer for WebSocket links.
var Dialer transport.Dialer = dialerImpl{}

func (dialerImpl) Dial(ctx context.Context, address string) (transport.Link, error) {
	return Dial(ctx, address)
}
