package aggregate

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"chronicle/core/chronicle"
	"chronicle/crypto"
	"chronicle/storage"
)

func testAddress(seed byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = seed
	}
	return crypto.NewAddress(crypto.ChroniclePrefix, raw)
}

func newTestAggregator() (*Aggregator, crypto.Address) {
	owner := testAddress(0xaa)
	return New(owner, chronicle.NewKVStorage(storage.NewMemDB())), owner
}

func TestCommitmentIndicesAreSequentialPerScope(t *testing.T) {
	agg, _ := newTestAggregator()
	app := testAddress(0x01)
	other := testAddress(0x02)

	for want := uint64(0); want < 3; want++ {
		index, err := agg.RecordTopLiquidityCommitment(1, app, common.Hash{byte(want)})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if index != want {
			t.Fatalf("expected index %d, got %d", want, index)
		}
	}

	// Different application, version, and kind each get their own sequence.
	if index, _ := agg.RecordTopLiquidityCommitment(1, other, common.Hash{0x10}); index != 0 {
		t.Fatalf("other application should start at 0, got %d", index)
	}
	if index, _ := agg.RecordTopLiquidityCommitment(2, app, common.Hash{0x11}); index != 0 {
		t.Fatalf("other version should start at 0, got %d", index)
	}
	if index, _ := agg.RecordTopDataCommitment(1, app, common.Hash{0x12}); index != 0 {
		t.Fatalf("data commitments should start at 0, got %d", index)
	}

	roots, err := agg.LiquidityCommitments(1, app)
	if err != nil {
		t.Fatalf("list commitments: %v", err)
	}
	if len(roots) != 3 || roots[2] != (common.Hash{0x02}) {
		t.Fatalf("unexpected commitment log: %v", roots)
	}
}

func TestPauseFlagsAreOwnerControlled(t *testing.T) {
	agg, owner := newTestAggregator()
	stranger := testAddress(0x77)

	if err := agg.SetPaused(stranger, chronicle.ActionUpdateLiquidity, true); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if agg.IsPaused(chronicle.ActionUpdateLiquidity) {
		t.Fatalf("rejected toggle must not change state")
	}

	if err := agg.SetPaused(owner, chronicle.ActionUpdateLiquidity, true); err != nil {
		t.Fatalf("owner toggle: %v", err)
	}
	if !agg.IsPaused(chronicle.ActionUpdateLiquidity) {
		t.Fatalf("flag not set")
	}
	if agg.IsPaused(chronicle.ActionUpdateData) {
		t.Fatalf("flags must be independent per action")
	}

	if err := agg.SetPaused(owner, chronicle.Action("settle"), true); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestOwnershipTransferMovesPauseAuthority(t *testing.T) {
	agg, owner := newTestAggregator()
	successor := testAddress(0xbb)

	if err := agg.TransferOwnership(successor, successor); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := agg.TransferOwnership(owner, successor); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !agg.CurrentOwner().Equal(successor) {
		t.Fatalf("owner not updated")
	}
	if err := agg.SetPaused(owner, chronicle.ActionUpdateData, true); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("former owner kept authority")
	}
	if err := agg.SetPaused(successor, chronicle.ActionUpdateData, true); err != nil {
		t.Fatalf("successor toggle: %v", err)
	}
}
