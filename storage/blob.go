package storage

import (
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketBlobs = []byte("blobs")

// BlobStore is a content-addressed payload store: payloads are keyed by a
// scope (chronicle address plus data key) and their own content hash, so the
// same payload written at different times is stored once. The Merkle and
// snapshot paths only ever carry the hash; the bulk bytes live here.
type BlobStore interface {
	PutBlob(scope, hash, payload []byte) error
	GetBlob(scope, hash []byte) ([]byte, error)
	Close()
}

// --- In-memory blob store (for testing) ---

type MemBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemBlobStore() *MemBlobStore {
	return &MemBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemBlobStore) PutBlob(scope, hash, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[blobKey(scope, hash)] = append([]byte(nil), payload...)
	return nil
}

func (s *MemBlobStore) GetBlob(scope, hash []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.blobs[blobKey(scope, hash)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

func (s *MemBlobStore) Close() {}

// --- BoltDB blob store ---

// BoltBlobStore persists payloads in a single bbolt bucket.
type BoltBlobStore struct {
	db *bolt.DB
}

// NewBoltBlobStore opens (or creates) the bolt file at path and ensures the
// blob bucket exists.
func NewBoltBlobStore(path string) (*BoltBlobStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltBlobStore{db: db}, nil
}

func (s *BoltBlobStore) PutBlob(scope, hash, payload []byte) error {
	key := []byte(blobKey(scope, hash))
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBlobs)
		if existing := bucket.Get(key); existing != nil {
			// Content-addressed: identical hash means identical payload.
			return nil
		}
		return bucket.Put(key, payload)
	})
}

func (s *BoltBlobStore) GetBlob(scope, hash []byte) ([]byte, error) {
	key := []byte(blobKey(scope, hash))
	var payload []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketBlobs).Get(key)
		if value == nil {
			return ErrNotFound
		}
		payload = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *BoltBlobStore) Close() {
	s.db.Close()
}

func blobKey(scope, hash []byte) string {
	key := make([]byte, 0, len(scope)+1+len(hash))
	key = append(key, scope...)
	key = append(key, '/')
	key = append(key, hash...)
	return string(key)
}
