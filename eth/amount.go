package eth

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	GWEI          = 1000000000 // 1 gwei in wei
	EtherDecimals = 18

	gasMarginNumerator   = 12
	gasMarginDenominator = 10
)

// ParseQuantity parses a 0x-prefixed JSON-RPC quantity into a 256-bit integer.
// Leading zeros are accepted; values wider than 256 bits are rejected.
func ParseQuantity(field, s string) (*uint256.Int, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, &ParseError{Field: field, Value: s, Err: errors.New("missing 0x prefix")}
	}
	digits := s[2:]
	if digits == "" {
		return nil, &ParseError{Field: field, Value: s, Err: errors.New("empty hex value")}
	}
	for _, c := range digits {
		if !isHexDigit(c) {
			return nil, &ParseError{Field: field, Value: s, Err: fmt.Errorf("invalid hex digit %q", c)}
		}
	}
	b, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, &ParseError{Field: field, Value: s, Err: errors.New("not a hex number")}
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, &ParseError{Field: field, Value: s, Err: errors.New("overflows 256 bits")}
	}
	return v, nil
}

// ParseAmount parses a base-10 wei amount.
func ParseAmount(field, s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return nil, &ParseError{Field: field, Value: s, Err: err}
	}
	return v, nil
}

// ParseAddress requires a 0x-prefixed 40 hex digit address.
func ParseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return common.Address{}, &ParseError{Field: field, Value: s}
	}
	return common.HexToAddress(s), nil
}

// GasWithMargin returns floor(estimate * 12 / 10).
func GasWithMargin(estimate *uint256.Int) (*uint256.Int, error) {
	scaled, overflow := new(uint256.Int).MulOverflow(estimate, uint256.NewInt(gasMarginNumerator))
	if overflow {
		return nil, &ParseError{Field: "gas estimate", Value: estimate.Dec(), Err: errors.New("margin overflows 256 bits")}
	}
	return scaled.Div(scaled, uint256.NewInt(gasMarginDenominator)), nil
}

// ParseUnits converts a human readable amount such as "1.5" into base units.
func ParseUnits(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, &ParseError{Field: "amount", Value: s, Err: err}
	}
	if d.IsNegative() {
		return nil, &ParseError{Field: "amount", Value: s, Err: errors.New("negative amount")}
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, &ParseError{Field: "amount", Value: s, Err: errors.New("too many decimal places")}
	}
	v, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return nil, &ParseError{Field: "amount", Value: s, Err: errors.New("overflows 256 bits")}
	}
	return v, nil
}

// FormatUnits renders base units with the given number of decimals.
func FormatUnits(v *uint256.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -decimals).String()
}

func isHexDigit(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
