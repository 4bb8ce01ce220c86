package chronicle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"chronicle/core/events"
	"chronicle/crypto"
	"chronicle/storage"
)

// ErrAlreadyDeployed rejects a second deployment for an identity tuple. The
// derived address is occupied, which is exactly the "one chronicle per
// (application, version)" guarantee.
var ErrAlreadyDeployed = errors.New("chronicle: address already deployed")

// chronicleCodeHash stands in for the construction-bytecode digest bound
// into the address derivation; changing the chronicle's construction logic
// changes every derived address.
var chronicleCodeHash = gethcrypto.Keccak256Hash([]byte("chronicle/instance/v1"))

var factoryCountKey = []byte("chronicle/factory/count")

// deployedRecord is the durable registry entry written at deploy time. It
// carries the identity tuple so a restarted factory can both refuse a
// colliding deploy and rebuild the instance on first access.
type deployedRecord struct {
	Application [20]byte
	Version     uint64
	RemoteChain uint64
}

// Factory constructs chronicle instances at deterministic, precomputable
// addresses keyed by (application, version, remote chain). Only the
// aggregator may deploy. Safe for concurrent use: lookups may rebuild an
// instance from the registry, so reads mutate the cache too.
type Factory struct {
	address        crypto.Address
	aggregator     Aggregator
	aggregatorAddr crypto.Address
	pauses         PauseView
	store          Storage
	blobs          storage.BlobStore
	emitter        events.Emitter

	mu        sync.Mutex
	instances map[[20]byte]*Chronicle
	deployed  uint64
}

// FactoryConfig wires the collaborators shared by every deployed chronicle.
type FactoryConfig struct {
	Address        crypto.Address
	Aggregator     Aggregator
	AggregatorAddr crypto.Address
	Pauses         PauseView
	Store          Storage
	Blobs          storage.BlobStore
	Emitter        events.Emitter
}

// NewFactory constructs a factory bound to its aggregator, restoring the
// deployment count from the durable registry.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	f := &Factory{
		address:        cfg.Address,
		aggregator:     cfg.Aggregator,
		aggregatorAddr: cfg.AggregatorAddr,
		pauses:         cfg.Pauses,
		store:          cfg.Store,
		blobs:          cfg.Blobs,
		emitter:        emitter,
		instances:      make(map[[20]byte]*Chronicle),
	}
	if _, err := f.store.KVGet(factoryCountKey, &f.deployed); err != nil {
		return nil, fmt.Errorf("chronicle: load factory deployment count: %w", err)
	}
	return f, nil
}

// ComputeAddress derives the address a chronicle for the identity tuple
// would be deployed at. Pure: it never touches factory state, and it always
// matches the address Deploy produces for the same arguments.
func (f *Factory) ComputeAddress(application crypto.Address, version, remoteChain uint64) crypto.Address {
	salt := identitySalt(application, version, remoteChain)
	derived := gethcrypto.Keccak256(
		[]byte{0xff},
		f.address.Bytes(),
		salt[:],
		chronicleCodeHash.Bytes(),
	)
	return crypto.NewAddress(crypto.ChroniclePrefix, derived[12:])
}

// Deploy constructs the chronicle for the identity tuple at its
// deterministic address. Restricted to the aggregator; a repeat deployment
// with the same arguments fails at the address-collision level.
func (f *Factory) Deploy(caller, application crypto.Address, version, remoteChain uint64) (*Chronicle, error) {
	if !caller.Equal(f.aggregatorAddr) {
		return nil, ErrUnauthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := f.ComputeAddress(application, version, remoteChain)
	var key [20]byte
	copy(key[:], addr.Bytes())
	if _, exists := f.instances[key]; exists {
		return nil, ErrAlreadyDeployed
	}
	// The in-memory map only covers this process lifetime; the durable
	// registry is what makes the collision check survive a restart.
	var existing deployedRecord
	occupied, err := f.store.KVGet(factoryDeployedKey(key), &existing)
	if err != nil {
		return nil, fmt.Errorf("chronicle: check deployment registry: %w", err)
	}
	if occupied {
		return nil, ErrAlreadyDeployed
	}

	instance, err := New(Config{
		Address:        addr,
		Application:    application,
		Version:        version,
		RemoteChain:    remoteChain,
		Aggregator:     f.aggregator,
		AggregatorAddr: f.aggregatorAddr,
		Pauses:         f.pauses,
		Store:          f.store,
		Blobs:          f.blobs,
		Emitter:        f.emitter,
	})
	if err != nil {
		return nil, err
	}

	var appRaw [20]byte
	copy(appRaw[:], application.Bytes())
	record := deployedRecord{Application: appRaw, Version: version, RemoteChain: remoteChain}
	if err := f.store.KVPut(factoryDeployedKey(key), record); err != nil {
		return nil, fmt.Errorf("chronicle: persist deployment registry: %w", err)
	}
	f.deployed++
	if err := f.store.KVPut(factoryCountKey, f.deployed); err != nil {
		return nil, fmt.Errorf("chronicle: persist factory deployment count: %w", err)
	}
	f.instances[key] = instance

	f.emitter.Emit(events.ChronicleDeployed{
		Application: appRaw,
		Version:     version,
		RemoteChain: remoteChain,
		Address:     key,
	})
	return instance, nil
}

// Get returns the deployed chronicle at addr, if any. Instances deployed
// before a restart are rebuilt from the registry and their persisted state on
// first access.
func (f *Factory) Get(addr crypto.Address) (*Chronicle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var key [20]byte
	copy(key[:], addr.Bytes())
	if instance, ok := f.instances[key]; ok {
		return instance, true
	}
	var record deployedRecord
	ok, err := f.store.KVGet(factoryDeployedKey(key), &record)
	if err != nil || !ok {
		return nil, false
	}
	instance, err := New(Config{
		Address:        addr,
		Application:    crypto.NewAddress(crypto.ChroniclePrefix, record.Application[:]),
		Version:        record.Version,
		RemoteChain:    record.RemoteChain,
		Aggregator:     f.aggregator,
		AggregatorAddr: f.aggregatorAddr,
		Pauses:         f.pauses,
		Store:          f.store,
		Blobs:          f.blobs,
		Emitter:        f.emitter,
	})
	if err != nil {
		return nil, false
	}
	f.instances[key] = instance
	return instance, true
}

// Deployed reports how many chronicles this factory has ever deployed,
// including those from before a restart.
func (f *Factory) Deployed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deployed
}

// Lookup resolves the chronicle for an identity tuple through its derived
// address.
func (f *Factory) Lookup(application crypto.Address, version, remoteChain uint64) (*Chronicle, bool) {
	return f.Get(f.ComputeAddress(application, version, remoteChain))
}

func identitySalt(application crypto.Address, version, remoteChain uint64) [32]byte {
	var numeric [16]byte
	binary.BigEndian.PutUint64(numeric[:8], version)
	binary.BigEndian.PutUint64(numeric[8:], remoteChain)
	digest := gethcrypto.Keccak256(application.Bytes(), numeric[:])
	var salt [32]byte
	copy(salt[:], digest)
	return salt
}
