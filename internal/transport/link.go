// Package transport abstracts the two radio modalities (BLE GATT and
// Classic RFCOMM) the mesh engine runs over behind a single Link
// contract, and implements the connect/send/disconnect policy spec
// §4.5 describes (retry with backoff, connect-attempt coalescing,
// length-prefixed framing on stream-oriented links).
package transport

import (
	"context"
	"io"
)

// Link is the external adapter contract spec §6 calls out: "connect,
// accept, read, write, close. No other assumptions." Any concrete radio
// transport — RFCOMM, BLE GATT, or (for development) a WebSocket —
// implements this.
type Link interface {
	io.ReadWriteCloser
	RemoteAddress() string
}

// Dialer opens an outbound Link to address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Link, error)
}
