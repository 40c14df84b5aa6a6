package identity

import (
	"bytes"
	"testing"

	"github.com/99designs/keyring"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testKeyring() keyring.Keyring {
	return keyring.NewArrayKeyring(nil)
}

func TestLoadOrCreateGeneratesFreshIdentity(t *testing.T) {
	db := openTestDB(t)
	kr := testKeyring()

	id, err := LoadOrCreate(db, kr, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if id.Nickname != "alice" {
		t.Fatalf("nickname mismatch: %q", id.Nickname)
	}
	if len(id.StaticPub) != 32 || len(id.StaticPriv) != 32 {
		t.Fatal("expected 32-byte X25519 keys")
	}
	if len(id.Fingerprint()) != common.FingerprintLen {
		t.Fatalf("expected %d-char fingerprint, got %d", common.FingerprintLen, len(id.Fingerprint()))
	}
}

func TestLoadOrCreateRoundTripsStoredIdentity(t *testing.T) {
	db := openTestDB(t)
	kr := testKeyring()

	first, err := LoadOrCreate(db, kr, "alice")
	if err != nil {
		t.Fatal(err)
	}

	second, err := LoadOrCreate(db, kr, "")
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first.StaticPriv, second.StaticPriv) {
		t.Fatal("expected the same identity to be reloaded, not regenerated")
	}
	if second.Nickname != "alice" {
		t.Fatalf("expected stored nickname preserved, got %q", second.Nickname)
	}
}

func TestLoadOrCreateOverlaysNicknameOnReload(t *testing.T) {
	db := openTestDB(t)
	kr := testKeyring()

	if _, err := LoadOrCreate(db, kr, "alice"); err != nil {
		t.Fatal(err)
	}
	reloaded, err := LoadOrCreate(db, kr, "alice-renamed")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Nickname != "alice-renamed" {
		t.Fatalf("expected overlay nickname, got %q", reloaded.Nickname)
	}
}

func TestLoadOrCreateFallsBackOnCorruptStorage(t *testing.T) {
	db := openTestDB(t)
	kr := testKeyring()

	if err := db.Put([]byte(identityDBKey), []byte("not json")); err != nil {
		t.Fatal(err)
	}

	id, err := LoadOrCreate(db, kr, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if id.Nickname != "bob" {
		t.Fatalf("expected fresh identity with requested nickname, got %q", id.Nickname)
	}
}

func TestWipeRemovesStoredIdentity(t *testing.T) {
	db := openTestDB(t)
	kr := testKeyring()

	if _, err := LoadOrCreate(db, kr, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := Wipe(db, kr); err != nil {
		t.Fatal(err)
	}

	_, found, err := db.Get([]byte(identityDBKey))
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected identity record removed after wipe")
	}
}

func TestVerificationURIRoundTrip(t *testing.T) {
	fp := common.Fingerprint("ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34")
	uri := VerificationURI(fp, "Alice Example")

	gotFP, gotNick, err := ParseVerificationURI(uri)
	if err != nil {
		t.Fatal(err)
	}
	if gotFP != fp {
		t.Fatalf("fingerprint mismatch: %q", gotFP)
	}
	if gotNick != "Alice Example" {
		t.Fatalf("nickname mismatch: %q", gotNick)
	}
}

func TestParseVerificationURIRejectsWrongScheme(t *testing.T) {
	if _, _, err := ParseVerificationURI("https://verify?fp=aa&nick=bob"); err == nil {
		t.Fatal("expected rejection of non-meshit scheme")
	}
}

func TestTrustStoreDefaultsUnknown(t *testing.T) {
	db := openTestDB(t)
	ts, err := LoadTrustStore(db)
	if err != nil {
		t.Fatal(err)
	}
	if lvl := ts.Get("deadbeef"); lvl != TrustUnknown {
		t.Fatalf("expected Unknown default, got %q", lvl)
	}
}

func TestTrustStorePersistsAcrossReload(t *testing.T) {
	db := openTestDB(t)
	ts, err := LoadTrustStore(db)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Set("deadbeef", TrustFavorite); err != nil {
		t.Fatal(err)
	}

	reloaded, err := LoadTrustStore(db)
	if err != nil {
		t.Fatal(err)
	}
	if lvl := reloaded.Get("deadbeef"); lvl != TrustFavorite {
		t.Fatalf("expected persisted Favorite, got %q", lvl)
	}
}

func TestSettingsPersistUserID(t *testing.T) {
	db := openTestDB(t)
	s1, err := LoadOrCreateSettings(db, "alice")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := LoadOrCreateSettings(db, "")
	if err != nil {
		t.Fatal(err)
	}
	if s1.UserID != s2.UserID {
		t.Fatal("expected stable userId across loads")
	}
	if s2.Nickname != "alice" {
		t.Fatalf("expected stored nickname preserved, got %q", s2.Nickname)
	}
}
