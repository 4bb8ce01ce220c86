package chronicle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"chronicle/storage"
)

// Storage abstracts the subset of key-value functionality the chronicle
// needs to persist its committed state.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// kvStore adapts a storage.Database into the RLP-encoded Storage contract.
type kvStore struct {
	db storage.Database
}

// NewKVStorage wraps db so records are stored RLP-encoded.
func NewKVStorage(db storage.Database) Storage {
	return &kvStore{db: db}
}

func (s *kvStore) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.db.Put(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the
// key existed.
func (s *kvStore) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := s.db.Get(key)
	if err != nil {
		if err == storage.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
