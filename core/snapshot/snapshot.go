package snapshot

import "sort"

// Word is the fixed-width value recorded by a store. The store is
// type-agnostic: callers decide whether a word is an opaque hash or a
// two's-complement signed integer.
type Word [32]byte

// Zero is the sentinel returned for queries that predate any write.
var Zero Word

// Entry pairs a recorded value with the timestamp it was set at.
type Entry struct {
	Timestamp uint64
	Value     Word
}

// Store is a timestamp-ordered history of a single scalar. It grows
// monotonically and is never truncated, so any past value stays queryable.
// Timestamps are supplied by the caller and assumed non-decreasing; a write
// at the same timestamp as the last entry overwrites it in place, which is
// what makes replayed mutations idempotent.
//
// Store is not safe for concurrent use; each chronicle owns its stores
// exclusively.
type Store struct {
	entries []Entry
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// FromEntries reconstructs a store from a persisted timeline. The entries
// must already be in non-decreasing timestamp order.
func FromEntries(entries []Entry) *Store {
	return &Store{entries: append([]Entry(nil), entries...)}
}

// Set records value at the given timestamp. If the timestamp does not
// advance past the last entry, the last entry is overwritten instead of
// appending a duplicate slot.
func (s *Store) Set(timestamp uint64, value Word) {
	if n := len(s.entries); n > 0 && timestamp <= s.entries[n-1].Timestamp {
		s.entries[n-1].Value = value
		return
	}
	s.entries = append(s.entries, Entry{Timestamp: timestamp, Value: value})
}

// Get returns the most recently set value, or the zero sentinel if the store
// has never been written.
func (s *Store) Get() Word {
	if len(s.entries) == 0 {
		return Zero
	}
	return s.entries[len(s.entries)-1].Value
}

// GetAt returns the value of the latest entry whose timestamp is at most the
// query timestamp, or the zero sentinel if the query predates the first
// write.
func (s *Store) GetAt(timestamp uint64) Word {
	// First index with Timestamp > query; the answer sits just before it.
	idx := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Timestamp > timestamp
	})
	if idx == 0 {
		return Zero
	}
	return s.entries[idx-1].Value
}

// Len returns the number of recorded entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the full timeline, oldest first.
func (s *Store) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}
