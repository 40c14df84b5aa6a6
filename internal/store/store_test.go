package store

import (
	"fmt"
	"testing"
)

func TestPutGetDelete(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	key := []byte("peer/abc")
	if err := db.Put(key, []byte("hello")); err != nil {
		t.Fatal(err)
	}

	v, found, err := db.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(v) != "hello" {
		t.Fatalf("got %q found=%v", v, found)
	}

	if err := db.Delete(key); err != nil {
		t.Fatal(err)
	}
	if _, found, err := db.Get(key); err != nil || found {
		t.Fatalf("expected key gone, found=%v err=%v", found, err)
	}
}

func TestGetMissingKeyNotFound(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	_, found, err := db.Get([]byte("nope"))
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestIterPrefix(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for i := 0; i < 5; i++ {
		if err := db.Put([]byte(fmt.Sprintf("queue/peerA/%d", i)), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Put([]byte("queue/peerB/0"), []byte("x")); err != nil {
		t.Fatal(err)
	}

	count := 0
	err = db.IterPrefix([]byte("queue/peerA/"), func(key, value []byte) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Fatalf("expected 5 keys under prefix, got %d", count)
	}
}
