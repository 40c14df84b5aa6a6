package noise

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/rfmesh/rfmesh/internal/common"
)

// EncryptPSK wraps plaintext under the fixed pre-shared key with
// AES-256-CBC and PKCS#7 padding, prefixed with a random 16-byte IV —
// the fallback used when no Noise session exists yet with a v1-only
// peer (spec §4.4, §9 Open Questions).
func EncryptPSK(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(common.NoisePSKKey[:])
	if err != nil {
		return nil, common.ErrCrypto
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())

	iv := make([]byte, block.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, common.ErrCrypto
	}

	out := make([]byte, len(iv)+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(iv):], padded)
	return out, nil
}

// DecryptPSK reverses EncryptPSK.
func DecryptPSK(frame []byte) ([]byte, error) {
	block, err := aes.NewCipher(common.NoisePSKKey[:])
	if err != nil {
		return nil, common.ErrCrypto
	}
	bs := block.BlockSize()
	if len(frame) < bs || (len(frame)-bs)%bs != 0 {
		return nil, common.ErrCrypto
	}

	iv, ct := frame[:bs], frame[bs:]
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	return pkcs7Unpad(out, bs)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, common.ErrCrypto
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, common.ErrCrypto
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, common.ErrCrypto
		}
	}
	return data[:len(data)-padLen], nil
}
