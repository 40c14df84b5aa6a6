// Package crypto implements the pure-function cryptographic primitives
// the rest of the mesh engine builds on (spec §4.1): X25519 agreement,
// Ed25519 signatures, ChaCha20-Poly1305 AEAD, HKDF-SHA256 expansion,
// SHA-256 fingerprints, CRC-32 framing checksums and LZ4 compression.
//
// Every function here is a pure transform over byte slices — no session
// state, no I/O — so that internal/noise and internal/codec can be tested
// against it independently of any network or storage concern.
package crypto

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/sha256"
	"hash/crc32"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/rfmesh/rfmesh/internal/common"
)

// X25519Agree performs a Curve25519 Diffie-Hellman agreement and returns
// the raw 32-byte shared secret. It fails with ErrCrypto if either key is
// malformed.
func X25519Agree(privKey, pubKey []byte) ([]byte, error) {
	curve := ecdh.X25519()

	priv, err := curve.NewPrivateKey(privKey)
	if err != nil {
		return nil, wrapCrypto(err)
	}
	pub, err := curve.NewPublicKey(pubKey)
	if err != nil {
		return nil, wrapCrypto(err)
	}

	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, wrapCrypto(err)
	}
	return secret, nil
}

// X25519Generate returns a fresh X25519 private/public keypair.
func X25519Generate(rnd interface {
	Read([]byte) (int, error)
}) (priv, pub []byte, err error) {
	curve := ecdh.X25519()
	key, err := curve.GenerateKey(rnd)
	if err != nil {
		return nil, nil, wrapCrypto(err)
	}
	return key.Bytes(), key.PublicKey().Bytes(), nil
}

// Ed25519Sign signs msg with a 64-byte Ed25519 private key.
func Ed25519Sign(msg, priv []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv), msg)
}

// Ed25519Verify verifies an Ed25519 signature.
func Ed25519Verify(msg, sig, pub []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// AEADEncrypt encrypts plaintext under ChaCha20-Poly1305 with the given
// 32-byte key and 12-byte nonce, returning ciphertext||tag.
func AEADEncrypt(key, nonce, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, wrapCrypto(err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, common.ErrCrypto
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// AEADDecrypt decrypts a ChaCha20-Poly1305 frame, returning ErrCrypto on
// any tag-verification failure.
func AEADDecrypt(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, wrapCrypto(err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, common.ErrCrypto
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, wrapCrypto(err)
	}
	return pt, nil
}

// HKDFExpand implements RFC 5869 HKDF with a 32-byte all-zero extraction
// salt, matching spec §4.1's "identical output to standard RFC 5869
// expand with the zero-extract PRK" requirement.
func HKDFExpand(ikm, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, make([]byte, sha256.Size), info)
	out := make([]byte, length)
	if _, err := r.Read(out); err != nil {
		return nil, wrapCrypto(err)
	}
	return out, nil
}

// SHA256 returns the 32-byte SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Fingerprint returns the lowercase-hex SHA-256 fingerprint of a public
// key, per spec §3.
func Fingerprint(pub []byte) common.Fingerprint {
	sum := sha256.Sum256(pub)
	return common.Fingerprint(hexEncode(sum[:]))
}

// CRC32 computes the IEEE/ISO-HDLC polynomial CRC-32 of data, the same
// polynomial spec §6 calls "CRC-32/ISO-HDLC".
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func wrapCrypto(err error) error {
	if err == nil {
		return nil
	}
	return &wrappedErr{common.ErrCrypto, err}
}

type wrappedErr struct {
	kind error
	err  error
}

func (w *wrappedErr) Error() string { return w.kind.Error() + ": " + w.err.Error() }
func (w *wrappedErr) Unwrap() error { return w.kind }

const hextable = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
