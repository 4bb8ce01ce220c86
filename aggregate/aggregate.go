// Package aggregate provides an in-process implementation of the top-level
// aggregator boundary: it records composite commitments forwarded by
// chronicles, assigns sequential indices per (version, application) scope,
// and owns the live pause flags. The production tree-of-trees aggregator is
// external; chronicles only ever see the interface.
package aggregate

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"chronicle/core/chronicle"
	"chronicle/crypto"
)

// ErrNotOwner rejects pause toggles from anyone but the configured owner.
var ErrNotOwner = errors.New("aggregate: caller is not the owner")

// ErrUnknownAction rejects pause toggles for action kinds that do not exist.
var ErrUnknownAction = errors.New("aggregate: unknown action kind")

var (
	liquidityCommitPrefix = []byte("aggregate/commit/liquidity/")
	dataCommitPrefix      = []byte("aggregate/commit/data/")
)

// Aggregator records top-level commitments and answers owner/pause queries.
// It satisfies both chronicle.Aggregator and chronicle.PauseView.
type Aggregator struct {
	mu    sync.Mutex
	owner crypto.Address
	store chronicle.Storage

	paused map[chronicle.Action]bool
}

// New constructs an aggregator owned by owner, persisting commitments
// through store.
func New(owner crypto.Address, store chronicle.Storage) *Aggregator {
	return &Aggregator{
		owner:  owner,
		store:  store,
		paused: make(map[chronicle.Action]bool),
	}
}

// CurrentOwner resolves who may toggle pause flags. Queried live by
// callers; the owner can change between calls.
func (a *Aggregator) CurrentOwner() crypto.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}

// TransferOwnership hands the pause authority to a new owner.
func (a *Aggregator) TransferOwnership(caller, newOwner crypto.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !caller.Equal(a.owner) {
		return ErrNotOwner
	}
	a.owner = newOwner
	return nil
}

// IsPaused implements chronicle.PauseView.
func (a *Aggregator) IsPaused(action chronicle.Action) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused[action]
}

// SetPaused flips the flag for one action kind. Owner only.
func (a *Aggregator) SetPaused(caller crypto.Address, action chronicle.Action, paused bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !caller.Equal(a.owner) {
		return ErrNotOwner
	}
	switch action {
	case chronicle.ActionUpdateLiquidity, chronicle.ActionUpdateData:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	a.paused[action] = paused
	return nil
}

// RecordTopLiquidityCommitment appends a composite liquidity root for the
// (version, application) scope and returns its sequential index.
func (a *Aggregator) RecordTopLiquidityCommitment(version uint64, application crypto.Address, compositeRoot common.Hash) (uint64, error) {
	return a.record(liquidityCommitPrefix, version, application, compositeRoot)
}

// RecordTopDataCommitment appends a data root for the (version, application)
// scope and returns its sequential index.
func (a *Aggregator) RecordTopDataCommitment(version uint64, application crypto.Address, dataRoot common.Hash) (uint64, error) {
	return a.record(dataCommitPrefix, version, application, dataRoot)
}

// LiquidityCommitments returns the recorded composite liquidity roots for a
// scope, oldest first.
func (a *Aggregator) LiquidityCommitments(version uint64, application crypto.Address) ([]common.Hash, error) {
	return a.commitments(liquidityCommitPrefix, version, application)
}

// DataCommitments returns the recorded data roots for a scope, oldest first.
func (a *Aggregator) DataCommitments(version uint64, application crypto.Address) ([]common.Hash, error) {
	return a.commitments(dataCommitPrefix, version, application)
}

func (a *Aggregator) record(prefix []byte, version uint64, application crypto.Address, root common.Hash) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := scopeKey(prefix, version, application)
	var roots [][32]byte
	if _, err := a.store.KVGet(key, &roots); err != nil {
		return 0, err
	}
	index := uint64(len(roots))
	roots = append(roots, [32]byte(root))
	if err := a.store.KVPut(key, roots); err != nil {
		return 0, err
	}
	return index, nil
}

func (a *Aggregator) commitments(prefix []byte, version uint64, application crypto.Address) ([]common.Hash, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var roots [][32]byte
	if _, err := a.store.KVGet(scopeKey(prefix, version, application), &roots); err != nil {
		return nil, err
	}
	out := make([]common.Hash, len(roots))
	for i, root := range roots {
		out[i] = common.Hash(root)
	}
	return out, nil
}

func scopeKey(prefix []byte, version uint64, application crypto.Address) []byte {
	var versionRaw [8]byte
	binary.BigEndian.PutUint64(versionRaw[:], version)
	app := hex.EncodeToString(application.Bytes())
	buf := make([]byte, 0, len(prefix)+16+1+len(app))
	buf = append(buf, prefix...)
	buf = append(buf, hex.EncodeToString(versionRaw[:])...)
	buf = append(buf, '/')
	buf = append(buf, app...)
	return buf
}
