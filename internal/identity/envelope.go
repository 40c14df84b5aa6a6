package identity

import (
	"crypto/rand"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
)

// wrapKeys seals plain under wrapKey with a random 12-byte nonce
// prepended to the ciphertext.
func wrapKeys(wrapKey, plain []byte) ([]byte, error) {
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, common.ErrCrypto
	}
	ct, err := crypto.AEADEncrypt(wrapKey, nonce, nil, plain)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(ct))
	out = append(out, nonce...)
	out = append(out, ct...)
	return out, nil
}

// unwrapKeys reverses wrapKeys.
func unwrapKeys(wrapKey, wrapped []byte) ([]byte, error) {
	if len(wrapped) < 12 {
		return nil, common.ErrCrypto
	}
	return crypto.AEADDecrypt(wrapKey, wrapped[:12], nil, wrapped[12:])
}
