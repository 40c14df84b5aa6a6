package node

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rfmesh/rfmesh/internal/codec"
	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
)

const fileChunkSize = 4096

type fileMetadataMsg struct {
	TransferID string `json:"transferId"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	ChunkCount int    `json:"chunkCount"`
}

type fileChunkMsg struct {
	TransferID string `json:"transferId"`
	Index      int    `json:"index"`
	Data       []byte `json:"data"`
}

type incomingFile struct {
	filename   string
	size       int64
	chunkCount int
	chunks     map[int][]byte
}

// fileTransfers tracks in-progress inbound transfers by transfer ID.
type fileTransfers struct {
	mu      sync.Mutex
	pending map[string]*incomingFile
}

func newFileTransfers() *fileTransfers {
	return &fileTransfers{pending: make(map[string]*incomingFile)}
}

// OnFileReceived registers the callback fired once every chunk of an
// incoming file has arrived and been reassembled.
func (n *Node) OnFileReceived(fn func(filename string, data []byte)) {
	n.onFileReceived = fn
}

// SendFile splits data into fixed-size chunks, encrypts each, and
// sends a file-metadata packet followed by the file-chunk packets to
// destFp (spec §3 packet types file-metadata/file-chunk).
func (n *Node) SendFile(destFp common.Fingerprint, destPub [32]byte, filename string, data []byte) error {
	transferID := crypto.Fingerprint(append([]byte(filename), data...)).Short()
	chunkCount := (len(data) + fileChunkSize - 1) / fileChunkSize
	if chunkCount == 0 {
		chunkCount = 1
	}

	meta := fileMetadataMsg{TransferID: transferID, Filename: filename, Size: int64(len(data)), ChunkCount: chunkCount}
	if err := n.sendFilePacket(destFp, destPub, common.TypeFileMetadata, meta); err != nil {
		return err
	}

	for i := 0; i < chunkCount; i++ {
		start := i * fileChunkSize
		end := start + fileChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := fileChunkMsg{TransferID: transferID, Index: i, Data: data[start:end]}
		if err := n.sendFilePacket(destFp, destPub, common.TypeFileChunk, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) sendFilePacket(destFp common.Fingerprint, destPub [32]byte, typ byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if addr, ok := n.addressFor(destFp); ok {
		ciphertext, err := n.encryptFor(destFp, raw)
		if err != nil {
			return err
		}
		p := &codec.Packet{Version: 1, Type: typ, SeqNum: n.nextSeq(), SenderID: codec.NewV1SenderID(), Payload: ciphertext}
		wire, err := codec.Serialize(p)
		if err != nil {
			return err
		}
		if n.transport.Send(addr, wire) {
			return nil
		}
	}

	ciphertext, flags, err := n.sealForRoute(destFp, raw)
	if err != nil {
		return err
	}

	peers := n.activePeers()
	if len(peers) == 0 {
		p := &codec.Packet{Version: 2, Type: typ, SeqNum: n.nextSeq(), TTL: common.DefaultTTL, DestinationPub: destPub, Flags: flags, Payload: ciphertext}
		copy(p.SenderID[:], n.identity.StaticPub[:16])
		copy(p.OriginatorPub[:], n.identity.StaticPub[:])
		wire, err := codec.Serialize(p)
		if err != nil {
			return err
		}
		return n.queue.Queue(destFp, wire, nowUnix())
	}
	// File packets are single-hop in this engine's scope; multi-hop file
	// relay is not implemented (see Non-goals).
	for _, fp := range peers {
		if addr, ok := n.addressFor(fp); ok {
			p := &codec.Packet{Version: 2, Type: typ, SeqNum: n.nextSeq(), TTL: common.DefaultTTL, DestinationPub: destPub, Flags: flags, Payload: ciphertext}
			copy(p.SenderID[:], n.identity.StaticPub[:16])
			copy(p.OriginatorPub[:], n.identity.StaticPub[:])
			wire, err := codec.Serialize(p)
			if err != nil {
				continue
			}
			n.transport.Send(addr, wire)
		}
	}
	return nil
}

func (n *Node) handleFilePacket(address string, p *codec.Packet) {
	n.mu.Lock()
	fp, ok := n.addrToFP[address]
	n.mu.Unlock()
	if !ok {
		log.Debug().Str("address", address).Msg("[node] file packet from unrecognized peer, dropping")
		return
	}

	plaintext, err := n.openFromRoute(fp, p)
	if err != nil {
		log.Warn().Str("peer", fp.Short()).Err(err).Msg("[node] failed to decrypt file packet")
		return
	}

	switch p.Type {
	case common.TypeFileMetadata:
		var meta fileMetadataMsg
		if err := json.Unmarshal(plaintext, &meta); err != nil {
			log.Warn().Err(err).Msg("[node] malformed file-metadata payload")
			return
		}
		n.fileTransfers.mu.Lock()
		n.fileTransfers.pending[meta.TransferID] = &incomingFile{
			filename:   meta.Filename,
			size:       meta.Size,
			chunkCount: meta.ChunkCount,
			chunks:     make(map[int][]byte, meta.ChunkCount),
		}
		n.fileTransfers.mu.Unlock()

	case common.TypeFileChunk:
		var chunk fileChunkMsg
		if err := json.Unmarshal(plaintext, &chunk); err != nil {
			log.Warn().Err(err).Msg("[node] malformed file-chunk payload")
			return
		}
		n.receiveChunk(chunk)
	}
}

func (n *Node) receiveChunk(chunk fileChunkMsg) {
	n.fileTransfers.mu.Lock()
	defer n.fileTransfers.mu.Unlock()

	f, ok := n.fileTransfers.pending[chunk.TransferID]
	if !ok {
		log.Debug().Str("transferId", chunk.TransferID).Msg("[node] file chunk for unknown transfer, dropping")
		return
	}
	f.chunks[chunk.Index] = chunk.Data
	if len(f.chunks) < f.chunkCount {
		return
	}

	data := make([]byte, 0, f.size)
	for i := 0; i < f.chunkCount; i++ {
		data = append(data, f.chunks[i]...)
	}
	delete(n.fileTransfers.pending, chunk.TransferID)

	if n.onFileReceived != nil {
		n.onFileReceived(f.filename, data)
	}
}
