package events

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"chronicle/core/types"
)

const (
	// TypeLiquidityUpdated is emitted after a liquidity mutation commits.
	TypeLiquidityUpdated = "chronicle.liquidity.updated"
	// TypeDataUpdated is emitted after a key/value mutation commits.
	TypeDataUpdated = "chronicle.data.updated"
	// TypeChronicleDeployed is emitted when the factory opens a new chronicle.
	TypeChronicleDeployed = "chronicle.deployed"
)

// LiquidityUpdated is the audit-log record for a committed liquidity change.
// External systems replay these to reconstruct history without re-querying
// full state.
type LiquidityUpdated struct {
	Application [20]byte
	Version     uint64
	Account     [20]byte
	Liquidity   *big.Int
	TopIndex    uint64
	LocalIndex  uint64
	Timestamp   uint64
}

func (LiquidityUpdated) EventType() string { return TypeLiquidityUpdated }

// Event renders the structured liquidity event for downstream consumers.
func (e LiquidityUpdated) Event() *types.Event {
	attrs := map[string]string{
		"application": hex.EncodeToString(e.Application[:]),
		"version":     fmt.Sprintf("%d", e.Version),
		"account":     hex.EncodeToString(e.Account[:]),
		"topIndex":    fmt.Sprintf("%d", e.TopIndex),
		"localIndex":  fmt.Sprintf("%d", e.LocalIndex),
		"timestamp":   fmt.Sprintf("%d", e.Timestamp),
	}
	liquidity := big.NewInt(0)
	if e.Liquidity != nil {
		liquidity = new(big.Int).Set(e.Liquidity)
	}
	attrs["liquidity"] = liquidity.String()
	return &types.Event{Type: TypeLiquidityUpdated, Attributes: attrs}
}

// DataUpdated is the audit-log record for a committed key/value change. The
// attribute set carries the content hash, not the payload.
type DataUpdated struct {
	Application [20]byte
	Version     uint64
	Key         [32]byte
	ContentHash [32]byte
	TopIndex    uint64
	LocalIndex  uint64
	Timestamp   uint64
}

func (DataUpdated) EventType() string { return TypeDataUpdated }

// Event renders the structured data event for downstream consumers.
func (e DataUpdated) Event() *types.Event {
	return &types.Event{Type: TypeDataUpdated, Attributes: map[string]string{
		"application": hex.EncodeToString(e.Application[:]),
		"version":     fmt.Sprintf("%d", e.Version),
		"key":         hex.EncodeToString(e.Key[:]),
		"contentHash": hex.EncodeToString(e.ContentHash[:]),
		"topIndex":    fmt.Sprintf("%d", e.TopIndex),
		"localIndex":  fmt.Sprintf("%d", e.LocalIndex),
		"timestamp":   fmt.Sprintf("%d", e.Timestamp),
	}}
}

// ChronicleDeployed records the opening of a new (application, version)
// chronicle by the factory.
type ChronicleDeployed struct {
	Application [20]byte
	Version     uint64
	RemoteChain uint64
	Address     [20]byte
}

func (ChronicleDeployed) EventType() string { return TypeChronicleDeployed }

// Event renders the structured deployment event.
func (e ChronicleDeployed) Event() *types.Event {
	attrs := map[string]string{
		"application": hex.EncodeToString(e.Application[:]),
		"version":     fmt.Sprintf("%d", e.Version),
		"address":     hex.EncodeToString(e.Address[:]),
	}
	if e.RemoteChain != 0 {
		attrs["remoteChain"] = fmt.Sprintf("%d", e.RemoteChain)
	}
	return &types.Event{Type: TypeChronicleDeployed, Attributes: attrs}
}
