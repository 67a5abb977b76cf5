package eth

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Account is the signing identity for one request. The private key is parsed
// right before signing and zeroed when the request ends.
type Account struct {
	Address common.Address // Ethereum address derived from the key
	ChainId uint64         // Chain ID for transaction signing
	Label   string         // Optional: human-readable label
}

// TransactionIntent is what a caller wants executed on chain.
type TransactionIntent struct {
	To    common.Address `json:"to"`
	Value *uint256.Int   `json:"value"`
	Data  []byte         `json:"data"`
}

// UnsignedTransaction has every field resolved and is ready for signing.
type UnsignedTransaction struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Nonce    *uint256.Int   `json:"nonce"`
	GasPrice *uint256.Int   `json:"gas_price"`
	GasLimit *uint256.Int   `json:"gas_limit"`
	ChainID  uint64         `json:"chain_id"`
	Value    *uint256.Int   `json:"value"`
	Data     []byte         `json:"data"`
}

// SignedTransaction is the broadcast-ready form of an UnsignedTransaction.
type SignedTransaction struct {
	Hash    common.Hash // transaction hash computed locally
	Payload string      // 0x-prefixed RLP encoding
	Tx      *types.Transaction
}

// CallRequest is the {from, to, value, data} object used by eth_call and eth_estimateGas.
type CallRequest struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
	Data  []byte
}

// LogFilter is an eth_getLogs filter. A nil topic is a wildcard for that position.
type LogFilter struct {
	Address   common.Address
	Topics    []*common.Hash
	FromBlock string
	ToBlock   string
}

// LogEntry is a single log as returned by eth_getLogs.
type LogEntry struct {
	Address         common.Address `json:"address"`
	Topics          []common.Hash  `json:"topics"`
	Data            []byte         `json:"data"`
	TransactionHash common.Hash    `json:"transaction_hash"`
}

// TransferRecord is one decoded PBM transfer event.
type TransferRecord struct {
	Timestamp         *uint256.Int    `json:"timestamp"`
	From              common.Address  `json:"from"`
	To                common.Address  `json:"to"`
	Amount            *uint256.Int    `json:"amount"`
	TransactionDetail json.RawMessage `json:"transaction_detail"`
}

// Direction selects which side of a transfer an address filter applies to.
type Direction int

const (
	DirectionAny Direction = iota
	DirectionFrom
	DirectionTo
)

func (d Direction) String() string {
	switch d {
	case DirectionFrom:
		return "from"
	case DirectionTo:
		return "to"
	default:
		return "any"
	}
}

// ParseDirection accepts "from", "to" or an empty string/"any".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "any", "all":
		return DirectionAny, nil
	case "from":
		return DirectionFrom, nil
	case "to":
		return DirectionTo, nil
	default:
		return DirectionAny, &ParseError{Field: "direction", Value: s}
	}
}

func bigChainID(id uint64) *big.Int {
	return new(big.Int).SetUint64(id)
}
