package eth

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// pbmABI is the subset of the PBM contract this module calls.
const pbmABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "receiver", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "pay",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "user", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "fundUser",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "account", "type": "address"}
		],
		"name": "balanceOf",
		"outputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// CallEncoder builds contract call data from a fixed ABI fragment.
type CallEncoder struct {
	abi abi.ABI
}

// NewCallEncoder parses abiJSON once; lookups afterwards are by exact name.
func NewCallEncoder(abiJSON string) (*CallEncoder, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, &ParseError{Field: "abi", Err: err}
	}
	return &CallEncoder{abi: parsed}, nil
}

// PBMEncoder returns the encoder for the PBM contract.
func PBMEncoder() *CallEncoder {
	enc, err := NewCallEncoder(pbmABI)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in PBM ABI: %v", err))
	}
	return enc
}

// Selector returns the 4-byte selector of the named function.
func (e *CallEncoder) Selector(name string) ([]byte, error) {
	method, ok := e.abi.Methods[name]
	if !ok {
		return nil, &FunctionNotFoundError{Name: name}
	}
	return method.ID, nil
}

// Encode returns selector ++ 32-byte aligned arguments. *uint256.Int
// arguments are accepted wherever the ABI expects uint256.
func (e *CallEncoder) Encode(name string, args ...any) ([]byte, error) {
	if _, ok := e.abi.Methods[name]; !ok {
		return nil, &FunctionNotFoundError{Name: name}
	}
	packed, err := e.abi.Pack(name, normalizeArgs(args)...)
	if err != nil {
		return nil, &ParseError{Field: name + " arguments", Err: err}
	}
	return packed, nil
}

// Decode reverses Encode, returning the arguments in declaration order.
func (e *CallEncoder) Decode(name string, data []byte) ([]any, error) {
	method, ok := e.abi.Methods[name]
	if !ok {
		return nil, &FunctionNotFoundError{Name: name}
	}
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return nil, &ParseError{Field: name + " selector"}
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, &ParseError{Field: name + " arguments", Err: err}
	}
	return values, nil
}

// DecodeOutput unpacks the return data of a read-only call.
func (e *CallEncoder) DecodeOutput(name string, data []byte) ([]any, error) {
	method, ok := e.abi.Methods[name]
	if !ok {
		return nil, &FunctionNotFoundError{Name: name}
	}
	values, err := method.Outputs.Unpack(data)
	if err != nil {
		return nil, &ParseError{Field: name + " output", Err: err}
	}
	return values, nil
}

// PayData encodes pay(receiver, amount).
func (e *CallEncoder) PayData(receiver common.Address, amount *uint256.Int) ([]byte, error) {
	return e.Encode("pay", receiver, amount)
}

// FundUserData encodes fundUser(user, amount).
func (e *CallEncoder) FundUserData(user common.Address, amount *uint256.Int) ([]byte, error) {
	return e.Encode("fundUser", user, amount)
}

func normalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		if v, ok := arg.(*uint256.Int); ok && v != nil {
			out[i] = v.ToBig()
			continue
		}
		out[i] = arg
	}
	return out
}
