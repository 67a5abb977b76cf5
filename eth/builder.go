package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// TxState is a step of the build-and-send pipeline.
type TxState int

const (
	StateDraft TxState = iota
	StateNonceResolved
	StatePriced
	StateGasEstimated
	StateSigned
	StateBroadcast
	StateAborted
)

func (s TxState) String() string {
	switch s {
	case StateDraft:
		return "Draft"
	case StateNonceResolved:
		return "NonceResolved"
	case StatePriced:
		return "Priced"
	case StateGasEstimated:
		return "GasEstimated"
	case StateSigned:
		return "Signed"
	case StateBroadcast:
		return "Broadcast"
	case StateAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("TxState(%d)", int(s))
	}
}

// TxBuilder assembles, signs and broadcasts legacy transactions. It keeps no
// state between calls: nonce, gas price and gas limit are fetched for every
// transaction.
//
// Two concurrent sends from the same address can resolve the same pending
// nonce. Callers that need that must serialise sends per sender themselves.
type TxBuilder struct {
	node    Node
	chainID uint64
}

func NewTxBuilder(node Node, chainID uint64) (*TxBuilder, error) {
	if node == nil {
		return nil, &ConfigError{Key: envRpcURL, Reason: "node client is nil"}
	}
	if chainID == 0 {
		return nil, &ConfigError{Key: envChainID, Reason: "is not set"}
	}
	return &TxBuilder{node: node, chainID: chainID}, nil
}

// Build resolves the nonce, gas price and gas limit for intent sent from
// from. The steps run in order and the first failure aborts the build.
func (b *TxBuilder) Build(ctx context.Context, from common.Address, intent TransactionIntent) (*UnsignedTransaction, error) {
	value := intent.Value
	if value == nil {
		value = uint256.NewInt(0)
	}

	log.Info("Getting nonce for address", "address", from.Hex())
	nonce, err := b.node.GetTransactionCount(ctx, from, "pending")
	if err != nil {
		return nil, b.abort(StateNonceResolved, fmt.Errorf("failed to get nonce: %w", err))
	}
	log.Info("Got nonce", "nonce", nonce.Dec())

	gasPrice, err := b.node.GasPrice(ctx)
	if err != nil {
		return nil, b.abort(StatePriced, fmt.Errorf("failed to get gas price: %w", err))
	}
	log.Info("Got gas price", "gas_price", gasPrice.Dec())

	estimate, err := b.node.EstimateGas(ctx, CallRequest{
		From:  from,
		To:    intent.To,
		Value: value,
		Data:  intent.Data,
	})
	if err != nil {
		return nil, b.abort(StateGasEstimated, fmt.Errorf("failed to estimate gas: %w", err))
	}
	gasLimit, err := GasWithMargin(estimate)
	if err != nil {
		return nil, b.abort(StateGasEstimated, err)
	}
	log.Info("Gas limit calculated", "estimated", estimate.Dec(), "with_buffer", gasLimit.Dec())

	return &UnsignedTransaction{
		From:     from,
		To:       intent.To,
		Nonce:    nonce,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		ChainID:  b.chainID,
		Value:    new(uint256.Int).Set(value),
		Data:     slices.Clone(intent.Data),
	}, nil
}

// Sign signs tx with key using the EIP-155 signer for tx.ChainID.
func (b *TxBuilder) Sign(tx *UnsignedTransaction, key *ecdsa.PrivateKey) (*SignedTransaction, error) {
	if key == nil {
		return nil, &SigningError{Err: errors.New("private key is nil")}
	}
	if tx.Nonce == nil || tx.GasPrice == nil || tx.GasLimit == nil {
		return nil, &SigningError{Err: errors.New("transaction has unresolved fields")}
	}
	if signer := crypto.PubkeyToAddress(key.PublicKey); signer != tx.From {
		return nil, &SigningError{Err: fmt.Errorf("key for %s cannot sign for %s", signer.Hex(), tx.From.Hex())}
	}
	if !tx.Nonce.IsUint64() {
		return nil, &ParseError{Field: "nonce", Value: tx.Nonce.Dec(), Err: errors.New("exceeds 64 bits")}
	}
	if !tx.GasLimit.IsUint64() {
		return nil, &ParseError{Field: "gas limit", Value: tx.GasLimit.Dec(), Err: errors.New("exceeds 64 bits")}
	}

	to := tx.To
	value := uint256.NewInt(0)
	if tx.Value != nil {
		value = tx.Value
	}
	legacy := types.NewTx(&types.LegacyTx{
		Nonce:    tx.Nonce.Uint64(),
		GasPrice: tx.GasPrice.ToBig(),
		Gas:      tx.GasLimit.Uint64(),
		To:       &to,
		Value:    value.ToBig(),
		Data:     tx.Data,
	})

	log.Info("Signing transaction", "from", tx.From.Hex(), "to", to.Hex(), "chain_id", tx.ChainID)
	signed, err := types.SignTx(legacy, types.NewEIP155Signer(bigChainID(tx.ChainID)), key)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, &SigningError{Err: fmt.Errorf("failed to encode signed transaction: %w", err)}
	}

	log.Info("Transaction signed successfully", "hash", signed.Hash().Hex())
	return &SignedTransaction{
		Hash:    signed.Hash(),
		Payload: hexutil.Encode(raw),
		Tx:      signed,
	}, nil
}

// BuildAndSend runs the whole pipeline for intent and returns the hash the
// node reported. key is zeroed before returning, whatever the outcome. A
// failed broadcast leaves the pending nonce as it was; retrying may reuse it.
func (b *TxBuilder) BuildAndSend(ctx context.Context, key *ecdsa.PrivateKey, intent TransactionIntent) (common.Hash, error) {
	defer zeroKey(key)

	if key == nil {
		return common.Hash{}, b.abort(StateNonceResolved, &SigningError{Err: errors.New("private key is nil")})
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	unsigned, err := b.Build(ctx, from, intent)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := b.Sign(unsigned, key)
	if err != nil {
		return common.Hash{}, b.abort(StateSigned, err)
	}

	log.Info("Sending transaction to network", "hash", signed.Hash.Hex())
	hash, err := b.node.SendRawTransaction(ctx, signed.Payload)
	if err != nil {
		return common.Hash{}, b.abort(StateBroadcast, fmt.Errorf("failed to send transaction: %w", err))
	}
	log.Info("Transaction sent successfully", "hash", hash.Hex(), "state", StateBroadcast)
	return hash, nil
}

// BuildAndSend dials rpcEndpoint, parses keyHex and sends intent on chainID.
func BuildAndSend(ctx context.Context, rpcEndpoint string, chainID uint64, keyHex string, intent TransactionIntent) (common.Hash, error) {
	node, err := NewRPCClient(rpcEndpoint, 0)
	if err != nil {
		return common.Hash{}, err
	}
	builder, err := NewTxBuilder(node, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	key, err := parseKey(keyHex)
	if err != nil {
		return common.Hash{}, err
	}
	return builder.BuildAndSend(ctx, key, intent)
}

func (b *TxBuilder) abort(step TxState, err error) error {
	log.Error("Transaction aborted", "step", step, "state", StateAborted, "error", err)
	return &BuildError{Step: step, Err: err}
}

func parseKey(keyHex string) (*ecdsa.PrivateKey, error) {
	if keyHex == "" {
		return nil, &ConfigError{Key: envPrivateKey, Reason: "is not set"}
	}
	raw, err := hexutil.Decode(ensureHexPrefix(keyHex))
	if err != nil {
		return nil, &SigningError{Err: errors.New("private key is not valid hex")}
	}
	defer clear(raw)
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, &SigningError{Err: errors.New("private key is not a valid secp256k1 scalar")}
	}
	return key, nil
}

func zeroKey(k *ecdsa.PrivateKey) {
	if k == nil || k.D == nil {
		return
	}
	b := k.D.Bits()
	for i := range b {
		b[i] = 0
	}
	k.D.SetInt64(0)
}

func ensureHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s
	}
	return "0x" + s
}
