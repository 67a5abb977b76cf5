package chaindata

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/nando-os/ghostpbm/eth"
)

// NativeChainID is the chain served by the native explorer.
const NativeChainID uint64 = 18

// Aggregator routes queries to a Source by chain id. Chains without an
// explicit route go to the fallback source.
type Aggregator struct {
	routes   map[uint64]Source
	fallback Source
}

// NewAggregator routes NativeChainID to native and every other chain to unified.
func NewAggregator(native, unified Source) *Aggregator {
	a := &Aggregator{routes: make(map[uint64]Source), fallback: unified}
	if native != nil {
		a.routes[NativeChainID] = native
	}
	return a
}

// Route overrides the source used for chainID.
func (a *Aggregator) Route(chainID uint64, src Source) {
	a.routes[chainID] = src
}

// SourceFor returns the source serving chainID.
func (a *Aggregator) SourceFor(chainID uint64) (Source, error) {
	if src, ok := a.routes[chainID]; ok {
		return src, nil
	}
	if a.fallback != nil {
		return a.fallback, nil
	}
	return nil, &eth.UnsupportedChainError{ChainID: chainID}
}

// GetTransactions returns the native transactions of address, optionally
// restricted to one side.
func (a *Aggregator) GetTransactions(ctx context.Context, address common.Address, chainID uint64, dir eth.Direction) ([]Transaction, error) {
	src, query, err := a.prepare(address, chainID)
	if err != nil {
		return nil, err
	}
	txs, err := src.GetTransactions(ctx, query, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions from %s: %w", src.Name(), err)
	}
	out := txs[:0]
	for _, tx := range txs {
		if matchesDirection(tx.From, tx.To, query, dir) {
			out = append(out, tx)
		}
	}
	log.Info("Fetched transactions", "source", src.Name(), "chain_id", chainID, "count", len(out))
	return out, nil
}

// GetERC20Balance returns the ERC-20 holdings of address.
func (a *Aggregator) GetERC20Balance(ctx context.Context, address common.Address, chainID uint64) ([]TokenBalance, error) {
	src, query, err := a.prepare(address, chainID)
	if err != nil {
		return nil, err
	}
	balances, err := src.GetERC20Balances(ctx, query, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balances from %s: %w", src.Name(), err)
	}
	log.Info("Fetched token balances", "source", src.Name(), "chain_id", chainID, "count", len(balances))
	return balances, nil
}

// GetERC20Transfers returns the ERC-20 transfers of address, optionally
// restricted to one side.
func (a *Aggregator) GetERC20Transfers(ctx context.Context, address common.Address, chainID uint64, dir eth.Direction) ([]TokenTransfer, error) {
	src, query, err := a.prepare(address, chainID)
	if err != nil {
		return nil, err
	}
	transfers, err := src.GetERC20Transfers(ctx, query, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get token transfers from %s: %w", src.Name(), err)
	}
	out := transfers[:0]
	for _, t := range transfers {
		if matchesDirection(t.From, t.To, query, dir) {
			out = append(out, t)
		}
	}
	log.Info("Fetched token transfers", "source", src.Name(), "chain_id", chainID, "count", len(out))
	return out, nil
}

// GetBalance returns the native balance of address.
func (a *Aggregator) GetBalance(ctx context.Context, address common.Address, chainID uint64) (*uint256.Int, error) {
	src, query, err := a.prepare(address, chainID)
	if err != nil {
		return nil, err
	}
	balance, err := src.GetNativeBalance(ctx, query, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance from %s: %w", src.Name(), err)
	}
	return balance, nil
}

func (a *Aggregator) prepare(address common.Address, chainID uint64) (Source, string, error) {
	src, err := a.SourceFor(chainID)
	if err != nil {
		return nil, "", err
	}
	return src, strings.ToLower(address.Hex()), nil
}

// matchesDirection compares normalized (lower-case) addresses against the
// lower-cased query address.
func matchesDirection(from, to, query string, dir eth.Direction) bool {
	switch dir {
	case eth.DirectionFrom:
		return from == query
	case eth.DirectionTo:
		return to == query
	default:
		return true
	}
}
