// Package codec implements the on-wire packet framing (spec §3, §4.3):
// the 26-byte v1 header, the 93-byte v2 header, the optional v2 metadata
// prefix, and CRC-32 integrity validation.
package codec

import (
	"encoding/binary"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
)

// Packet is the in-memory representation of a parsed or to-be-serialized
// frame. Version selects which wire layout Serialize emits; v1-only
// packets leave the v2-only fields at their zero value.
type Packet struct {
	Version byte
	Type    byte
	SeqNum  uint32
	SenderID [16]byte

	// v2-only fields.
	OriginatorPub  [32]byte
	DestinationPub [32]byte
	HopCount       byte
	Flags          byte
	TTL            byte
	RouteHistory   []string
	ChannelName    string

	Payload []byte
}

// IsCompressed reports whether the compressed-payload flag bit is set.
func (p *Packet) IsCompressed() bool {
	return p.Flags&common.FlagCompressed != 0
}

// metadata is the JSON block spec §3 describes: an optional prefix to a
// v2 payload carrying loop-prevention and channel-routing hints.
type metadata struct {
	RouteHistory []string `json:"routeHistory,omitempty"`
	ChannelName  string   `json:"channelName,omitempty"`
}

func (p *Packet) hasMetadata() bool {
	return len(p.RouteHistory) > 0 || p.ChannelName != ""
}

// NewV1SenderID returns a random 16-byte node identifier suitable for a
// v1 packet's senderId field, when no originator public key is available.
func NewV1SenderID() [16]byte {
	var id [16]byte
	u := uuid.New()
	copy(id[:], u[:])
	return id
}

// Serialize writes a packet to its wire form, choosing v1 or v2 framing
// from p.Version (spec §4.3).
func Serialize(p *Packet) ([]byte, error) {
	switch p.Version {
	case 1:
		return serializeV1(p)
	case 2:
		return serializeV2(p)
	default:
		return nil, common.ErrParse
	}
}

func serializeV1(p *Packet) ([]byte, error) {
	buf := make([]byte, common.V1FixedLen+len(p.Payload)+4)
	pos := 0
	buf[pos] = 1
	pos++
	buf[pos] = p.Type
	pos++
	binary.BigEndian.PutUint32(buf[pos:pos+4], p.SeqNum)
	pos += 4
	copy(buf[pos:pos+16], p.SenderID[:])
	pos += 16
	copy(buf[pos:], p.Payload)
	pos += len(p.Payload)

	crc := crypto.CRC32(buf[:pos])
	binary.BigEndian.PutUint32(buf[pos:pos+4], crc)
	return buf, nil
}

func serializeV2(p *Packet) ([]byte, error) {
	payload := p.Payload
	if p.hasMetadata() {
		metaJSON, err := json.Marshal(metadata{RouteHistory: p.RouteHistory, ChannelName: p.ChannelName})
		if err != nil {
			return nil, err
		}
		combined := make([]byte, 4+len(metaJSON)+len(p.Payload))
		binary.LittleEndian.PutUint32(combined[:4], uint32(int32(len(metaJSON))))
		copy(combined[4:], metaJSON)
		copy(combined[4+len(metaJSON):], p.Payload)
		payload = combined
	}

	buf := make([]byte, common.V2FixedLen+len(payload)+4)
	pos := 0
	buf[pos] = 2
	pos++
	buf[pos] = p.Type
	pos++
	binary.BigEndian.PutUint32(buf[pos:pos+4], p.SeqNum)
	pos += 4
	copy(buf[pos:pos+16], p.SenderID[:])
	pos += 16
	copy(buf[pos:pos+32], p.OriginatorPub[:])
	pos += 32
	copy(buf[pos:pos+32], p.DestinationPub[:])
	pos += 32
	buf[pos] = p.HopCount
	pos++
	buf[pos] = p.Flags
	pos++
	buf[pos] = p.TTL
	pos++
	copy(buf[pos:], payload)
	pos += len(payload)

	crc := crypto.CRC32(buf[:pos])
	binary.BigEndian.PutUint32(buf[pos:pos+4], crc)
	return buf, nil
}

// Parse decodes a wire frame, validating its CRC-32 trailer and
// dispatching on its version byte. It returns (nil, err) for any
// malformed or corrupted frame (spec §4.3) — the caller drops the frame.
func Parse(data []byte) (*Packet, error) {
	if len(data) < common.V1HeaderLen {
		return nil, common.ErrParse
	}
	switch data[0] {
	case 1:
		return parseV1(data)
	case 2:
		return parseV2(data)
	default:
		return nil, common.ErrParse
	}
}

func parseV1(data []byte) (*Packet, error) {
	if len(data) < common.V1HeaderLen {
		return nil, common.ErrParse
	}
	if !crcValid(data) {
		return nil, common.ErrParse
	}

	p := &Packet{Version: 1}
	pos := 1
	p.Type = data[pos]
	pos++
	p.SeqNum = binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	copy(p.SenderID[:], data[pos:pos+16])
	pos += 16

	payloadEnd := len(data) - 4
	p.Payload = append([]byte(nil), data[pos:payloadEnd]...)
	return p, nil
}

func parseV2(data []byte) (*Packet, error) {
	if len(data) < common.V2HeaderLen {
		return nil, common.ErrParse
	}
	if !crcValid(data) {
		return nil, common.ErrParse
	}

	p := &Packet{Version: 2}
	pos := 1
	p.Type = data[pos]
	pos++
	p.SeqNum = binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	copy(p.SenderID[:], data[pos:pos+16])
	pos += 16
	copy(p.OriginatorPub[:], data[pos:pos+32])
	pos += 32
	copy(p.DestinationPub[:], data[pos:pos+32])
	pos += 32
	p.HopCount = data[pos]
	pos++
	p.Flags = data[pos]
	pos++
	p.TTL = data[pos]
	pos++

	payloadEnd := len(data) - 4
	rawPayload := data[pos:payloadEnd]
	p.Payload, p.RouteHistory, p.ChannelName = stripMetadata(rawPayload)
	return p, nil
}

// stripMetadata attempts to parse a leading metadata block from a v2
// payload. A malformed block is not a fatal error (spec §4.3): the
// payload is returned unmodified in that case.
func stripMetadata(payload []byte) (realPayload []byte, routeHistory []string, channelName string) {
	if len(payload) < 4 {
		return payload, nil, ""
	}
	metaLen := int32(binary.LittleEndian.Uint32(payload[:4]))
	if metaLen < 0 || int(metaLen) > len(payload)-4 {
		return payload, nil, ""
	}

	var meta metadata
	if err := json.Unmarshal(payload[4:4+metaLen], &meta); err != nil {
		return payload, nil, ""
	}

	rest := append([]byte(nil), payload[4+metaLen:]...)
	return rest, meta.RouteHistory, meta.ChannelName
}

func crcValid(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	body := data[:len(data)-4]
	want := binary.BigEndian.Uint32(data[len(data)-4:])
	return crypto.CRC32(body) == want
}
