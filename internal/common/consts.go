// Package common holds wire constants, shared small types and the error
// taxonomy used across the mesh protocol engine.
package common

import "time"

// Packet type tags, stable across wire versions (spec §6).
const (
	TypeTextMessage      = 0x01
	TypeFileMetadata     = 0x02
	TypeFileChunk        = 0x03
	TypeAck              = 0x04
	TypeNoiseMsg1        = 0x10
	TypeNoiseMsg2        = 0x11
	TypeNoiseMsg3        = 0x12
	TypeRoutedMessage    = 0x20
	TypeChannelMessage   = 0x21
	TypeChannelJoin      = 0x22
	TypeChannelLeave     = 0x23
	TypeRouteDiscovery   = 0x24
	TypeRouteReply       = 0x25
	TypeChannelAnnounce  = 0x26
	TypePeerAnnouncement = 0x30
)

// Header widths and flags (spec §3, §4.3).
//
// V1FixedLen/V2FixedLen are the fixed-width fields before the payload;
// V1HeaderLen/V2HeaderLen are the minimum *total* frame size (fixed
// fields + trailing 4-byte CRC, zero-length payload) — 26 and 93 bytes
// respectively, matching spec §3's header-size figures.
const (
	V1FixedLen  = 22 // version(1) type(1) seqNum(4) senderId(16)
	V1HeaderLen = V1FixedLen + 4

	V2FixedLen  = 89 // V1FixedLen + originatorPub(32) destinationPub(32) hopCount(1) flags(1) ttl(1)
	V2HeaderLen = V2FixedLen + 4

	FlagCompressed = 1 << 0
)

// Protocol-wide constants (spec §6).
const (
	MaxHops                = 7
	DefaultTTL             = 7
	AckWindow              = 10
	MaxPayloadFrame        = 10 << 20 // 10 MiB
	RouteExpiry            = 5 * time.Minute
	SeenCacheMax           = 10_000
	StoreAndForwardPerPeer = 100
	QueueExpiry            = 7 * 24 * time.Hour

	RoutingCleanupInterval = 60 * time.Second

	// SessionLifetime bounds how long a Noise session survives after its
	// peer disconnects before it is evicted (spec §3: "destroyed ... when
	// the peer disconnects for longer than a session-lifetime window").
	SessionLifetime = 10 * time.Minute

	MaxRetries = 3

	FingerprintLen      = 64 // hex chars
	ShortFingerprintLen = 8
)

// NoisePSKKey is the fixed 32-byte pre-shared key used for the v1
// interoperability fallback (spec §4.4, §9 Open Questions). It is not a
// secret in the cryptographic sense — it exists only so that peers who
// have not yet completed a Noise-XX handshake can still exchange
// symmetrically "wrapped" frames with legacy v1-only peers.
var NoisePSKKey = [32]byte{
	0x6d, 0x65, 0x73, 0x68, 0x2d, 0x66, 0x61, 0x6c,
	0x6c, 0x62, 0x61, 0x63, 0x6b, 0x2d, 0x70, 0x73,
	0x6b, 0x2d, 0x30, 0x31, 0x2d, 0x64, 0x6f, 0x2d,
	0x6e, 0x6f, 0x74, 0x2d, 0x74, 0x72, 0x75, 0x73,
}
