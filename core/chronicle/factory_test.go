package chronicle

import (
	"errors"
	"math/big"
	"testing"

	"chronicle/storage"
)

func newTestFactory(t *testing.T, cfg FactoryConfig) *Factory {
	t.Helper()
	factory, err := NewFactory(cfg)
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	return factory
}

func TestComputeAddressMatchesDeploy(t *testing.T) {
	aggregator := &mockAggregator{owner: testAddress(0xaa)}
	factory := newTestFactory(t, FactoryConfig{
		Address:        testAddress(0xf0),
		Aggregator:     aggregator,
		AggregatorAddr: testAddress(0xaa),
		Store:          NewKVStorage(storage.NewMemDB()),
		Blobs:          storage.NewMemBlobStore(),
	})
	app := testAddress(0x01)

	predicted := factory.ComputeAddress(app, 3, 0)
	deployed, err := factory.Deploy(testAddress(0xaa), app, 3, 0)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !deployed.Address().Equal(predicted) {
		t.Fatalf("deployed address %s does not match prediction %s", deployed.Address(), predicted)
	}

	found, ok := factory.Lookup(app, 3, 0)
	if !ok || found != deployed {
		t.Fatalf("lookup did not resolve the deployed chronicle")
	}
}

func TestSecondDeployFailsOnCollision(t *testing.T) {
	aggregator := &mockAggregator{owner: testAddress(0xaa)}
	factory := newTestFactory(t, FactoryConfig{
		Address:        testAddress(0xf0),
		Aggregator:     aggregator,
		AggregatorAddr: testAddress(0xaa),
		Store:          NewKVStorage(storage.NewMemDB()),
		Blobs:          storage.NewMemBlobStore(),
	})
	app := testAddress(0x01)

	if _, err := factory.Deploy(testAddress(0xaa), app, 1, 0); err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	_, err := factory.Deploy(testAddress(0xaa), app, 1, 0)
	if !errors.Is(err, ErrAlreadyDeployed) {
		t.Fatalf("expected ErrAlreadyDeployed, got %v", err)
	}

	// A new version is a fresh identity tuple and deploys cleanly.
	next, err := factory.Deploy(testAddress(0xaa), app, 2, 0)
	if err != nil {
		t.Fatalf("deploy next version: %v", err)
	}
	if next.LiquidityLeafCount() != 0 {
		t.Fatalf("new version must start with empty state")
	}
}

func TestDeployRestrictedToAggregator(t *testing.T) {
	aggregator := &mockAggregator{owner: testAddress(0xaa)}
	factory := newTestFactory(t, FactoryConfig{
		Address:        testAddress(0xf0),
		Aggregator:     aggregator,
		AggregatorAddr: testAddress(0xaa),
		Store:          NewKVStorage(storage.NewMemDB()),
		Blobs:          storage.NewMemBlobStore(),
	})

	_, err := factory.Deploy(testAddress(0x01), testAddress(0x01), 1, 0)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, ok := factory.Lookup(testAddress(0x01), 1, 0); ok {
		t.Fatalf("rejected deploy must leave no instance behind")
	}
}

func TestDeployCollisionSurvivesRestart(t *testing.T) {
	aggregator := &mockAggregator{owner: testAddress(0xaa)}
	store := NewKVStorage(storage.NewMemDB())
	blobs := storage.NewMemBlobStore()
	cfg := FactoryConfig{
		Address:        testAddress(0xf0),
		Aggregator:     aggregator,
		AggregatorAddr: testAddress(0xaa),
		Store:          store,
		Blobs:          blobs,
	}
	factory := newTestFactory(t, cfg)
	app := testAddress(0x01)

	deployed, err := factory.Deploy(testAddress(0xaa), app, 1, 0)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, _, err := deployed.UpdateLiquidity(testAddress(0xaa), testAddress(0x02), big.NewInt(75)); err != nil {
		t.Fatalf("update liquidity: %v", err)
	}

	// A fresh factory over the same store stands in for a process restart.
	reopened := newTestFactory(t, cfg)
	if _, err := reopened.Deploy(testAddress(0xaa), app, 1, 0); !errors.Is(err, ErrAlreadyDeployed) {
		t.Fatalf("expected ErrAlreadyDeployed after restart, got %v", err)
	}
	if got := reopened.Deployed(); got != 1 {
		t.Fatalf("deployment count not restored, got %d", got)
	}

	restored, ok := reopened.Lookup(app, 1, 0)
	if !ok {
		t.Fatalf("lookup after restart did not resolve the chronicle")
	}
	if got := restored.AccountLiquidity(testAddress(0x02)); got.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("restored liquidity = %s, want 75", got)
	}
	if restored.LiquidityRoot() != deployed.LiquidityRoot() {
		t.Fatalf("restored root differs from pre-restart root")
	}
}

func TestRemoteChainScopesTheAddress(t *testing.T) {
	aggregator := &mockAggregator{owner: testAddress(0xaa)}
	factory := newTestFactory(t, FactoryConfig{
		Address:        testAddress(0xf0),
		Aggregator:     aggregator,
		AggregatorAddr: testAddress(0xaa),
		Store:          NewKVStorage(storage.NewMemDB()),
		Blobs:          storage.NewMemBlobStore(),
	})
	app := testAddress(0x01)

	local := factory.ComputeAddress(app, 1, 0)
	remote := factory.ComputeAddress(app, 1, 137)
	if local.Equal(remote) {
		t.Fatalf("remote chain id must change the derived address")
	}

	deployed, err := factory.Deploy(testAddress(0xaa), app, 1, 137)
	if err != nil {
		t.Fatalf("deploy remote: %v", err)
	}
	if deployed.RemoteChain() != 137 {
		t.Fatalf("remote chain id not carried, got %d", deployed.RemoteChain())
	}
}
