package eth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

type GhostClient interface {
	// Pay calls pay(receiver, amount) on the PBM contract from the configured key
	Pay(ctx context.Context, receiver common.Address, amount *uint256.Int) (common.Hash, error)

	// FundUser calls fundUser(user, amount) on the PBM contract
	FundUser(ctx context.Context, user common.Address, amount *uint256.Int) (common.Hash, error)

	// Send builds, signs and broadcasts an arbitrary intent
	Send(ctx context.Context, intent TransactionIntent) (common.Hash, error)

	// GetBalance returns the native balance of an address
	GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error)

	// GetPBMBalance returns balanceOf(address) from the PBM contract
	GetPBMBalance(ctx context.Context, address common.Address) (*uint256.Int, error)

	// PBMTransfers decodes PBM transfer logs where address is on the given side
	PBMTransfers(ctx context.Context, address common.Address, dir Direction) ([]TransferRecord, error)

	// GetTransaction returns a transaction object by hash
	GetTransaction(ctx context.Context, hash common.Hash) (json.RawMessage, error)

	// Close releases idle connections
	Close()
}

type ghostClient struct {
	node    Node
	builder *TxBuilder
	encoder *CallEncoder
	decoder *LogDecoder
	config  Config
}

// NewGhostClient wires the RPC client, builder, encoder and log decoder from cfg.
func NewGhostClient(cfg Config) (GhostClient, error) {
	node, err := NewRPCClient(cfg.RPCURL(), cfg.HTTPTimeout())
	if err != nil {
		return nil, err
	}
	log.Info("Using Ethereum RPC", "url", cfg.RPCURL(), "chain_id", cfg.ChainID())
	return newGhostClient(node, cfg)
}

func newGhostClient(node Node, cfg Config) (*ghostClient, error) {
	builder, err := NewTxBuilder(node, cfg.ChainID())
	if err != nil {
		return nil, err
	}
	decoder := NewLogDecoder(node, cfg.PBMContract(), cfg.PBMEventTopic()).WithFromBlock(cfg.LogFromBlock())
	return &ghostClient{
		node:    node,
		builder: builder,
		encoder: PBMEncoder(),
		decoder: decoder,
		config:  cfg,
	}, nil
}

func (gc *ghostClient) Pay(ctx context.Context, receiver common.Address, amount *uint256.Int) (common.Hash, error) {
	contract, err := gc.contract()
	if err != nil {
		return common.Hash{}, err
	}
	data, err := gc.encoder.PayData(receiver, amount)
	if err != nil {
		return common.Hash{}, err
	}
	return gc.Send(ctx, TransactionIntent{To: contract, Value: uint256.NewInt(0), Data: data})
}

func (gc *ghostClient) FundUser(ctx context.Context, user common.Address, amount *uint256.Int) (common.Hash, error) {
	contract, err := gc.contract()
	if err != nil {
		return common.Hash{}, err
	}
	data, err := gc.encoder.FundUserData(user, amount)
	if err != nil {
		return common.Hash{}, err
	}
	return gc.Send(ctx, TransactionIntent{To: contract, Value: uint256.NewInt(0), Data: data})
}

// Send parses the signing key for this call only; BuildAndSend zeroes it.
func (gc *ghostClient) Send(ctx context.Context, intent TransactionIntent) (common.Hash, error) {
	key, err := parseKey(gc.config.SigningKey())
	if err != nil {
		return common.Hash{}, err
	}
	return gc.builder.BuildAndSend(ctx, key, intent)
}

func (gc *ghostClient) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	balance, err := gc.node.GetBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (gc *ghostClient) GetPBMBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	contract, err := gc.contract()
	if err != nil {
		return nil, err
	}
	data, err := gc.encoder.Encode("balanceOf", address)
	if err != nil {
		return nil, err
	}
	out, err := gc.node.CallContract(ctx, CallRequest{From: address, To: contract, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	values, err := gc.encoder.DecodeOutput("balanceOf", out)
	if err != nil {
		return nil, err
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return nil, &ParseError{Field: "balanceOf output", Err: fmt.Errorf("unexpected type %T", values[0])}
	}
	balance, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, &ParseError{Field: "balanceOf output", Value: raw.String(), Err: errors.New("overflows 256 bits")}
	}
	return balance, nil
}

func (gc *ghostClient) PBMTransfers(ctx context.Context, address common.Address, dir Direction) ([]TransferRecord, error) {
	if _, err := gc.contract(); err != nil {
		return nil, err
	}
	if gc.config.PBMEventTopic() == (common.Hash{}) {
		return nil, &ConfigError{Key: envPBMEventTopic, Reason: "is not set"}
	}
	return gc.decoder.DecodeTransfers(ctx, address, dir)
}

func (gc *ghostClient) GetTransaction(ctx context.Context, hash common.Hash) (json.RawMessage, error) {
	tx, err := gc.node.GetTransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (gc *ghostClient) Close() {
	if c, ok := gc.node.(interface{ Close() }); ok {
		c.Close()
	}
}

func (gc *ghostClient) contract() (common.Address, error) {
	contract := gc.config.PBMContract()
	if contract == (common.Address{}) {
		return common.Address{}, &ConfigError{Key: envPBMContract, Reason: "is not set"}
	}
	return contract, nil
}
