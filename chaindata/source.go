// Package chaindata answers balance and transfer queries from one of two
// explorer-style backends and normalizes their answers into one schema.
package chaindata

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/nando-os/ghostpbm/eth"
)

// ERC20Type is the token standard tag the native explorer puts in "type".
const ERC20Type = "ERC-20"

// Source is a backend able to answer account queries for one or more chains.
type Source interface {
	Name() string
	GetTransactions(ctx context.Context, address string, chainID uint64) ([]Transaction, error)
	GetERC20Balances(ctx context.Context, address string, chainID uint64) ([]TokenBalance, error)
	GetERC20Transfers(ctx context.Context, address string, chainID uint64) ([]TokenTransfer, error)
	GetNativeBalance(ctx context.Context, address string, chainID uint64) (*uint256.Int, error)
}

// Transaction is a normalized native transaction. Addresses are lower-case.
type Transaction struct {
	Hash        string       `json:"hash"`
	BlockNumber uint64       `json:"blockNumber"`
	Timestamp   time.Time    `json:"timestamp"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Value       *uint256.Int `json:"value"`
	Gas         *uint256.Int `json:"gas"`
	GasPrice    *uint256.Int `json:"gasPrice"`
	Input       string       `json:"input"`
	Success     bool         `json:"success"`
}

// TokenBalance is a normalized ERC-20 holding.
type TokenBalance struct {
	Name            string       `json:"name"`
	Symbol          string       `json:"symbol"`
	Balance         *uint256.Int `json:"balance"`
	ContractAddress string       `json:"contractAddress"`
	Decimals        uint8        `json:"decimals"`
}

// TokenTransfer is a normalized ERC-20 transfer. Addresses are lower-case.
type TokenTransfer struct {
	Hash            string       `json:"hash"`
	BlockNumber     uint64       `json:"blockNumber"`
	Timestamp       time.Time    `json:"timestamp"`
	From            string       `json:"from"`
	To              string       `json:"to"`
	Value           *uint256.Int `json:"value"`
	ContractAddress string       `json:"contractAddress"`
	TokenName       string       `json:"tokenName"`
	TokenSymbol     string       `json:"tokenSymbol"`
	TokenDecimals   uint8        `json:"tokenDecimals"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func normalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseUint64(field string, s flexString) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return 0, &eth.ParseError{Field: field, Value: string(s), Err: err}
	}
	return v, nil
}

func parseDecimals(field string, s flexString) (uint8, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(string(s), 10, 8)
	if err != nil {
		return 0, &eth.ParseError{Field: field, Value: string(s), Err: err}
	}
	return uint8(v), nil
}

// requireAmount parses a balance or transferred value. A missing or null
// field is an error rather than a zero amount.
func requireAmount(field string, s flexString) (*uint256.Int, error) {
	if s == "" {
		return nil, &eth.ParseError{Field: field, Err: errors.New("missing")}
	}
	return eth.ParseAmount(field, string(s))
}

// parseAmount parses gas figures, which some explorers leave out for
// pending or internal entries. A missing value reads as zero.
func parseAmount(field string, s flexString) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	return eth.ParseAmount(field, string(s))
}

func parseUnixTime(field string, s flexString) (time.Time, error) {
	secs, err := parseUint64(field, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}

func parseISOTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &eth.ParseError{Field: field, Value: s, Err: err}
	}
	return t.UTC(), nil
}
