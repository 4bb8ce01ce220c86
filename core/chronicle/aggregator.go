package chronicle

import (
	"github.com/ethereum/go-ethereum/common"

	"chronicle/crypto"
)

// Aggregator is the top-level collaborator receiving composite commitments
// from every chronicle. It assigns each recorded commitment a sequential
// index within the (version, application) scope. The tree-of-trees it
// maintains across applications is outside this module.
//
// Calls are synchronous: a rejected commitment aborts the whole chronicle
// mutation, so local and top-level roots never diverge.
type Aggregator interface {
	RecordTopLiquidityCommitment(version uint64, application crypto.Address, compositeRoot common.Hash) (uint64, error)
	RecordTopDataCommitment(version uint64, application crypto.Address, dataRoot common.Hash) (uint64, error)
	CurrentOwner() crypto.Address
}
