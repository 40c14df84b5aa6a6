// Package identity implements the node's long-term cryptographic
// identity: generation, OS-scoped at-rest protection, and the
// fingerprint/verification-URI surface built on top of it (spec §4.2,
// §6).
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"github.com/99designs/keyring"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/crypto"
	"github.com/rfmesh/rfmesh/internal/noise"
	"github.com/rfmesh/rfmesh/internal/store"
)

const (
	keyringService  = "rfmesh"
	keyringItemName = "identity-protection-key"
	identityDBKey   = "identity/self"
)

// Identity is a node's full long-term key material.
type Identity struct {
	Nickname string

	StaticPriv []byte // X25519, 32 bytes
	StaticPub  []byte // X25519, 32 bytes

	SigningPriv ed25519.PrivateKey
	SigningPub  ed25519.PublicKey
}

// Fingerprint is the lowercase-hex SHA-256 of the X25519 static public
// key (spec §3).
func (id *Identity) Fingerprint() common.Fingerprint {
	return crypto.Fingerprint(id.StaticPub)
}

// diskRecord is the persisted, partially-protected form of an identity:
// public material is plaintext, private material is wrapped.
type diskRecord struct {
	Nickname         string `json:"nickname"`
	StaticPubB64     string `json:"staticPub"`
	SigningPubB64    string `json:"signingPub"`
	ProtectedKeysB64 string `json:"protectedKeys"` // envelope-encrypted staticPriv||signingPriv
}

// LoadOrCreate implements spec §4.2's loadOrCreate: it attempts to
// decrypt a stored identity bound to the current user account, falling
// back to generating a fresh one on any missing-or-corrupt storage
// condition. nickname, when non-empty, overlays whatever nickname is
// stored.
func LoadOrCreate(db *store.DB, kr keyring.Keyring, nickname string) (*Identity, error) {
	id, err := load(db, kr)
	if err != nil {
		id, genErr := generate(nickname)
		if genErr != nil {
			return nil, genErr
		}
		if saveErr := Save(db, kr, id); saveErr != nil {
			return nil, saveErr
		}
		return id, nil
	}
	if nickname != "" {
		id.Nickname = nickname
	}
	return id, nil
}

func generate(nickname string) (*Identity, error) {
	staticKP, err := noise.GenerateStaticKeyPair()
	if err != nil {
		return nil, err
	}
	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, common.ErrCrypto
	}
	return &Identity{
		Nickname:    nickname,
		StaticPriv:  staticKP.Private,
		StaticPub:   staticKP.Public,
		SigningPriv: signPriv,
		SigningPub:  signPub,
	}, nil
}

func load(db *store.DB, kr keyring.Keyring) (*Identity, error) {
	raw, found, err := db.Get([]byte(identityDBKey))
	if err != nil {
		return nil, common.ErrStorageIO
	}
	if !found {
		return nil, common.ErrCorruptIdentity
	}

	var rec diskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, common.ErrCorruptIdentity
	}

	staticPub, err := base64.StdEncoding.DecodeString(rec.StaticPubB64)
	if err != nil || len(staticPub) != 32 {
		return nil, common.ErrCorruptIdentity
	}
	signingPub, err := base64.StdEncoding.DecodeString(rec.SigningPubB64)
	if err != nil || len(signingPub) != ed25519.PublicKeySize {
		return nil, common.ErrCorruptIdentity
	}

	wrapped, err := base64.StdEncoding.DecodeString(rec.ProtectedKeysB64)
	if err != nil {
		return nil, common.ErrCorruptIdentity
	}

	wrapKey, err := loadOrCreateWrapKey(kr)
	if err != nil {
		return nil, common.ErrCrypto
	}

	plain, err := unwrapKeys(wrapKey, wrapped)
	if err != nil {
		return nil, common.ErrCrypto
	}
	if len(plain) != 32+ed25519.PrivateKeySize {
		return nil, common.ErrCorruptIdentity
	}

	return &Identity{
		Nickname:    rec.Nickname,
		StaticPriv:  plain[:32],
		StaticPub:   staticPub,
		SigningPriv: ed25519.PrivateKey(plain[32:]),
		SigningPub:  signingPub,
	}, nil
}

// Save persists id, wrapping its private key material with a key held
// in the OS-scoped keyring (spec §6 identity-store contract: protection
// "binds decryption ability to the current user account").
func Save(db *store.DB, kr keyring.Keyring, id *Identity) error {
	wrapKey, err := loadOrCreateWrapKey(kr)
	if err != nil {
		return common.ErrCrypto
	}

	plain := make([]byte, 0, 32+len(id.SigningPriv))
	plain = append(plain, id.StaticPriv...)
	plain = append(plain, id.SigningPriv...)

	wrapped, err := wrapKeys(wrapKey, plain)
	if err != nil {
		return common.ErrCrypto
	}

	rec := diskRecord{
		Nickname:         id.Nickname,
		StaticPubB64:     base64.StdEncoding.EncodeToString(id.StaticPub),
		SigningPubB64:    base64.StdEncoding.EncodeToString(id.SigningPub),
		ProtectedKeysB64: base64.StdEncoding.EncodeToString(wrapped),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := db.Put([]byte(identityDBKey), raw); err != nil {
		return common.ErrStorageIO
	}
	return nil
}

// Wipe destroys the persisted identity and its keyring-held wrap key
// (spec §6 "Wipe").
func Wipe(db *store.DB, kr keyring.Keyring) error {
	_ = kr.Remove(keyringItemName)
	if err := db.Delete([]byte(identityDBKey)); err != nil {
		return common.ErrStorageIO
	}
	return nil
}

// loadOrCreateWrapKey returns the 32-byte envelope key used to wrap
// private key material, creating and storing one in the OS-scoped
// keyring on first use.
func loadOrCreateWrapKey(kr keyring.Keyring) ([]byte, error) {
	item, err := kr.Get(keyringItemName)
	if err == nil && len(item.Data) == 32 {
		return item.Data, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, common.ErrCrypto
	}
	if err := kr.Set(keyring.Item{
		Key:  keyringItemName,
		Data: key,
	}); err != nil {
		return nil, common.ErrCrypto
	}
	return key, nil
}
