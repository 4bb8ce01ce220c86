// Package chronicle tracks per-application liquidity and key/value state
// under a single logical version. Every mutation lands in a timestamped
// snapshot timeline and an incremental Merkle commitment, and the composite
// root is forwarded synchronously to the top-level aggregator before any
// local state is committed. A new version means a fresh chronicle with empty
// state; rolled-back data from a reorganized chain never contaminates it.
package chronicle

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"

	"chronicle/core/events"
	"chronicle/core/merkle"
	"chronicle/core/snapshot"
	"chronicle/crypto"
	"chronicle/storage"
)

// ErrUnauthorized rejects mutation calls from anyone other than the owning
// application or the aggregator.
var ErrUnauthorized = errors.New("chronicle: caller not authorized")

// ErrLiquidityRange rejects liquidity values (or computed totals) that do
// not fit a 256-bit two's-complement word.
var ErrLiquidityRange = errors.New("chronicle: liquidity outside signed 256-bit range")

// Config collects the collaborators and immutable identity of a chronicle.
type Config struct {
	Address     crypto.Address
	Application crypto.Address
	Version     uint64
	// RemoteChain scopes the remote variant; zero for the local chain.
	RemoteChain uint64

	Aggregator     Aggregator
	AggregatorAddr crypto.Address
	Pauses         PauseView
	Store          Storage
	Blobs          storage.BlobStore
	Emitter        events.Emitter
}

// Chronicle is one (application, version) state container. All methods are
// strictly sequential; the instance exclusively owns its snapshot stores and
// accumulators and must not be shared across goroutines without external
// coordination.
type Chronicle struct {
	address        crypto.Address
	application    crypto.Address
	version        uint64
	remoteChain    uint64
	aggregator     Aggregator
	aggregatorAddr crypto.Address
	pauses         PauseView
	store          Storage
	blobs          storage.BlobStore
	emitter        events.Emitter
	clock          func() time.Time

	totalLiquidity   *snapshot.Store
	accountLiquidity map[common.Hash]*snapshot.Store
	liquidityTree    *merkle.Accumulator

	dataHashes map[common.Hash]*snapshot.Store
	dataTree   *merkle.Accumulator
}

type leafRecord struct {
	Key   [32]byte
	Value [32]byte
}

// New constructs a chronicle, loading any previously persisted state for its
// address so a daemon restart resumes exactly where it stopped.
func New(cfg Config) (*Chronicle, error) {
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("chronicle: aggregator required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("chronicle: storage required")
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	c := &Chronicle{
		address:          cfg.Address,
		application:      cfg.Application,
		version:          cfg.Version,
		remoteChain:      cfg.RemoteChain,
		aggregator:       cfg.Aggregator,
		aggregatorAddr:   cfg.AggregatorAddr,
		pauses:           cfg.Pauses,
		store:            cfg.Store,
		blobs:            cfg.Blobs,
		emitter:          emitter,
		clock:            time.Now,
		totalLiquidity:   snapshot.New(),
		accountLiquidity: make(map[common.Hash]*snapshot.Store),
		liquidityTree:    merkle.New(),
		dataHashes:       make(map[common.Hash]*snapshot.Store),
		dataTree:         merkle.New(),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetClock overrides the time source (primarily for deterministic testing).
func (c *Chronicle) SetClock(clock func() time.Time) {
	if c == nil || clock == nil {
		return
	}
	c.clock = clock
}

// Address returns the chronicle's deterministic identity.
func (c *Chronicle) Address() crypto.Address { return c.address }

// Application returns the owning application address.
func (c *Chronicle) Application() crypto.Address { return c.application }

// Version returns the logical version this chronicle isolates.
func (c *Chronicle) Version() uint64 { return c.version }

// RemoteChain returns the remote chain identifier, zero for local.
func (c *Chronicle) RemoteChain() uint64 { return c.remoteChain }

func (c *Chronicle) authorize(caller crypto.Address) error {
	if caller.Equal(c.application) || caller.Equal(c.aggregatorAddr) {
		return nil
	}
	return ErrUnauthorized
}

func (c *Chronicle) now() uint64 {
	return uint64(c.clock().Unix())
}

func (c *Chronicle) addressBytes() [20]byte {
	var out [20]byte
	copy(out[:], c.address.Bytes())
	return out
}

func (c *Chronicle) applicationBytes() [20]byte {
	var out [20]byte
	copy(out[:], c.application.Bytes())
	return out
}

func accountLeaf(account crypto.Address) common.Hash {
	return common.BytesToHash(account.Bytes())
}

// UpdateLiquidity sets account's signed liquidity, maintains the running
// total, and commits a composite root binding the tree root to the new
// total. The aggregator call happens before any snapshot write; if it
// rejects the commitment, the tree update is reverted and prior state is
// unchanged.
//
// Returns the aggregator-assigned commitment index and the account's stable
// leaf index.
func (c *Chronicle) UpdateLiquidity(caller, account crypto.Address, liquidity *big.Int) (uint64, uint64, error) {
	if err := c.authorize(caller); err != nil {
		return 0, 0, err
	}
	if err := Guard(c.pauses, ActionUpdateLiquidity); err != nil {
		return 0, 0, err
	}

	if liquidity == nil {
		liquidity = new(big.Int)
	}
	if !fitsSignedWord(liquidity) {
		return 0, 0, ErrLiquidityRange
	}

	leaf := accountLeaf(account)
	accountStore, ok := c.accountLiquidity[leaf]
	if !ok {
		accountStore = snapshot.New()
	}
	oldValue := decodeSigned(accountStore.Get())
	oldTotal := decodeSigned(c.totalLiquidity.Get())
	newTotal := new(big.Int).Sub(oldTotal, oldValue)
	newTotal.Add(newTotal, liquidity)
	if !fitsSignedWord(newTotal) {
		return 0, 0, ErrLiquidityRange
	}

	newWord := encodeSigned(liquidity)
	rec := c.liquidityTree.Update(leaf, common.Hash(newWord))
	totalWord := encodeSigned(newTotal)
	// One commitment attests to both the per-account tree and the reported
	// aggregate, so downstream verifiers check an individual balance and the
	// total against a single value.
	composite := gethcrypto.Keccak256Hash(c.liquidityTree.Root().Bytes(), totalWord[:])

	topIndex, err := c.aggregator.RecordTopLiquidityCommitment(c.version, c.application, composite)
	if err != nil {
		c.liquidityTree.Revert(rec)
		return 0, 0, fmt.Errorf("chronicle: record top liquidity commitment: %w", err)
	}

	timestamp := c.now()
	accountStore.Set(timestamp, newWord)
	c.accountLiquidity[leaf] = accountStore
	c.totalLiquidity.Set(timestamp, totalWord)

	if err := c.persistLiquidity(leaf, accountStore); err != nil {
		return 0, 0, err
	}

	var accountRaw [20]byte
	copy(accountRaw[:], account.Bytes())
	c.emitter.Emit(events.LiquidityUpdated{
		Application: c.applicationBytes(),
		Version:     c.version,
		Account:     accountRaw,
		Liquidity:   new(big.Int).Set(liquidity),
		TopIndex:    topIndex,
		LocalIndex:  rec.Index,
		Timestamp:   timestamp,
	})
	return topIndex, rec.Index, nil
}

// UpdateData sets the payload for key. The Merkle leaf and snapshot timeline
// carry only the blake3 content hash; the payload itself goes to the
// content-addressed blob store, so identical payloads written at different
// times share storage.
func (c *Chronicle) UpdateData(caller crypto.Address, key common.Hash, payload []byte) (uint64, uint64, error) {
	if err := c.authorize(caller); err != nil {
		return 0, 0, err
	}
	if err := Guard(c.pauses, ActionUpdateData); err != nil {
		return 0, 0, err
	}

	contentHash := common.Hash(blake3.Sum256(payload))
	rec := c.dataTree.Update(key, contentHash)

	topIndex, err := c.aggregator.RecordTopDataCommitment(c.version, c.application, c.dataTree.Root())
	if err != nil {
		c.dataTree.Revert(rec)
		return 0, 0, fmt.Errorf("chronicle: record top data commitment: %w", err)
	}

	timestamp := c.now()
	keyStore, ok := c.dataHashes[key]
	if !ok {
		keyStore = snapshot.New()
		c.dataHashes[key] = keyStore
	}
	keyStore.Set(timestamp, snapshot.Word(contentHash))

	if c.blobs != nil {
		if err := c.blobs.PutBlob(c.blobScope(key), contentHash.Bytes(), payload); err != nil {
			return 0, 0, fmt.Errorf("chronicle: store payload: %w", err)
		}
	}
	if err := c.persistData(key, keyStore); err != nil {
		return 0, 0, err
	}

	c.emitter.Emit(events.DataUpdated{
		Application: c.applicationBytes(),
		Version:     c.version,
		Key:         [32]byte(key),
		ContentHash: [32]byte(contentHash),
		TopIndex:    topIndex,
		LocalIndex:  rec.Index,
		Timestamp:   timestamp,
	})
	return topIndex, rec.Index, nil
}

// TotalLiquidity returns the aggregate signed liquidity across all accounts.
func (c *Chronicle) TotalLiquidity() *big.Int {
	return decodeSigned(c.totalLiquidity.Get())
}

// TotalLiquidityAt returns the aggregate as of the given timestamp.
func (c *Chronicle) TotalLiquidityAt(timestamp uint64) *big.Int {
	return decodeSigned(c.totalLiquidity.GetAt(timestamp))
}

// AccountLiquidity returns account's current signed liquidity, zero if the
// account has no history.
func (c *Chronicle) AccountLiquidity(account crypto.Address) *big.Int {
	store, ok := c.accountLiquidity[accountLeaf(account)]
	if !ok {
		return big.NewInt(0)
	}
	return decodeSigned(store.Get())
}

// AccountLiquidityAt returns account's liquidity as of the given timestamp.
func (c *Chronicle) AccountLiquidityAt(account crypto.Address, timestamp uint64) *big.Int {
	store, ok := c.accountLiquidity[accountLeaf(account)]
	if !ok {
		return big.NewInt(0)
	}
	return decodeSigned(store.GetAt(timestamp))
}

// Data returns the current payload for key. The second return value is false
// when the key has no recorded history.
func (c *Chronicle) Data(key common.Hash) ([]byte, bool, error) {
	store, ok := c.dataHashes[key]
	if !ok {
		return nil, false, nil
	}
	return c.resolvePayload(key, store.Get())
}

// DataAt returns the payload for key as of the given timestamp.
func (c *Chronicle) DataAt(key common.Hash, timestamp uint64) ([]byte, bool, error) {
	store, ok := c.dataHashes[key]
	if !ok {
		return nil, false, nil
	}
	return c.resolvePayload(key, store.GetAt(timestamp))
}

// DataHash returns the current content hash committed for key.
func (c *Chronicle) DataHash(key common.Hash) (common.Hash, bool) {
	store, ok := c.dataHashes[key]
	if !ok {
		return common.Hash{}, false
	}
	word := store.Get()
	if word == snapshot.Zero {
		return common.Hash{}, false
	}
	return common.Hash(word), true
}

// LiquidityRoot returns the current liquidity tree commitment.
func (c *Chronicle) LiquidityRoot() common.Hash {
	return c.liquidityTree.Root()
}

// DataRoot returns the current data tree commitment.
func (c *Chronicle) DataRoot() common.Hash {
	return c.dataTree.Root()
}

// LiquidityLeafCount reports the number of accounts ever written.
func (c *Chronicle) LiquidityLeafCount() uint64 {
	return c.liquidityTree.LeafCount()
}

// DataLeafCount reports the number of data keys ever written.
func (c *Chronicle) DataLeafCount() uint64 {
	return c.dataTree.LeafCount()
}

func (c *Chronicle) resolvePayload(key common.Hash, word snapshot.Word) ([]byte, bool, error) {
	if word == snapshot.Zero {
		return nil, false, nil
	}
	if c.blobs == nil {
		return nil, false, fmt.Errorf("chronicle: no blob store configured")
	}
	payload, err := c.blobs.GetBlob(c.blobScope(key), word[:])
	if err != nil {
		return nil, false, fmt.Errorf("chronicle: resolve payload: %w", err)
	}
	return payload, true, nil
}

func (c *Chronicle) blobScope(key common.Hash) []byte {
	scope := make([]byte, 0, 52)
	scope = append(scope, c.address.Bytes()...)
	scope = append(scope, key.Bytes()...)
	return scope
}

// --- persistence ---

func (c *Chronicle) persistLiquidity(leaf common.Hash, accountStore *snapshot.Store) error {
	addr := c.addressBytes()
	if err := c.store.KVPut(totalLiquidityKey(addr), c.totalLiquidity.Entries()); err != nil {
		return err
	}
	if err := c.store.KVPut(accountLiquidityKey(addr, leaf), accountStore.Entries()); err != nil {
		return err
	}
	return c.store.KVPut(liquidityLeavesKey(addr), c.leafRecords(c.liquidityTree))
}

func (c *Chronicle) persistData(key common.Hash, keyStore *snapshot.Store) error {
	addr := c.addressBytes()
	if err := c.store.KVPut(dataHashKey(addr, key), keyStore.Entries()); err != nil {
		return err
	}
	return c.store.KVPut(dataLeavesKey(addr), c.leafRecords(c.dataTree))
}

func (c *Chronicle) leafRecords(tree *merkle.Accumulator) []leafRecord {
	records := make([]leafRecord, 0, tree.LeafCount())
	for _, key := range tree.Keys() {
		value, _ := tree.Value(key)
		records = append(records, leafRecord{Key: [32]byte(key), Value: [32]byte(value)})
	}
	return records
}

// load restores persisted trees and timelines. Replaying the leaf records in
// index order reproduces the exact roots, since the root is a pure function
// of the ordered update sequence.
func (c *Chronicle) load() error {
	addr := c.addressBytes()

	var totalEntries []snapshot.Entry
	if ok, err := c.store.KVGet(totalLiquidityKey(addr), &totalEntries); err != nil {
		return err
	} else if ok {
		c.totalLiquidity = snapshot.FromEntries(totalEntries)
	}

	var liquidityLeaves []leafRecord
	if ok, err := c.store.KVGet(liquidityLeavesKey(addr), &liquidityLeaves); err != nil {
		return err
	} else if ok {
		for _, record := range liquidityLeaves {
			leaf := common.Hash(record.Key)
			c.liquidityTree.Update(leaf, common.Hash(record.Value))
			var entries []snapshot.Entry
			if ok, err := c.store.KVGet(accountLiquidityKey(addr, record.Key), &entries); err != nil {
				return err
			} else if ok {
				c.accountLiquidity[leaf] = snapshot.FromEntries(entries)
			}
		}
	}

	var dataLeaves []leafRecord
	if ok, err := c.store.KVGet(dataLeavesKey(addr), &dataLeaves); err != nil {
		return err
	} else if ok {
		for _, record := range dataLeaves {
			key := common.Hash(record.Key)
			c.dataTree.Update(key, common.Hash(record.Value))
			var entries []snapshot.Entry
			if ok, err := c.store.KVGet(dataHashKey(addr, record.Key), &entries); err != nil {
				return err
			} else if ok {
				c.dataHashes[key] = snapshot.FromEntries(entries)
			}
		}
	}
	return nil
}
