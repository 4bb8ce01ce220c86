package storage

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestBoltBlobStoreRoundTrip(t *testing.T) {
	store, err := NewBoltBlobStore(filepath.Join(t.TempDir(), "blobs.db"))
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	defer store.Close()

	scope := []byte("chronicle-1/key-a")
	hash := []byte("content-hash-1")
	payload := []byte("the payload")

	if err := store.PutBlob(scope, hash, payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.GetBlob(scope, hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}

	// Re-storing the same hash is a no-op, not an overwrite.
	if err := store.PutBlob(scope, hash, []byte("different bytes, same hash")); err != nil {
		t.Fatalf("re-put: %v", err)
	}
	got, err = store.GetBlob(scope, hash)
	if err != nil {
		t.Fatalf("get after re-put: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("content-addressed entry was overwritten: %q", got)
	}

	if _, err := store.GetBlob(scope, []byte("missing")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing hash, got %v", err)
	}
}

func TestMemBlobStoreScopesKeys(t *testing.T) {
	store := NewMemBlobStore()
	hash := []byte("h")
	if err := store.PutBlob([]byte("scope-a"), hash, []byte("a")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.PutBlob([]byte("scope-b"), hash, []byte("b")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.GetBlob([]byte("scope-a"), hash)
	if err != nil || !bytes.Equal(got, []byte("a")) {
		t.Fatalf("scope-a payload: %q err=%v", got, err)
	}
	got, err = store.GetBlob([]byte("scope-b"), hash)
	if err != nil || !bytes.Equal(got, []byte("b")) {
		t.Fatalf("scope-b payload: %q err=%v", got, err)
	}
}
