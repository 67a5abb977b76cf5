package eth

import (
	"errors"
	"fmt"
)

var (
	ErrRPC              = errors.New("rpc error")
	ErrParse            = errors.New("parse error")
	ErrFunctionNotFound = errors.New("function not found")
	ErrConfig           = errors.New("config error")
	ErrSigning          = errors.New("signing error")
	ErrUnsupportedChain = errors.New("unsupported chain")
)

// RPCError is returned when a remote call fails, carries an "error" member or
// has no "result". Request and Response hold the raw bodies for diagnosis.
type RPCError struct {
	Method   string
	Code     int
	Message  string
	Request  []byte
	Response []byte
	Err      error
}

func (e *RPCError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("rpc %s failed: %v", e.Method, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("rpc %s failed: code %d: %s", e.Method, e.Code, e.Message)
	default:
		return fmt.Sprintf("rpc %s failed: %s", e.Method, e.Message)
	}
}

func (e *RPCError) Unwrap() error { return e.Err }

func (e *RPCError) Is(target error) bool { return target == ErrRPC }

// ParseError reports a malformed hex value, address, amount or log entry.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

type FunctionNotFoundError struct {
	Name string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function %q not found in ABI", e.Name)
}

func (e *FunctionNotFoundError) Is(target error) bool { return target == ErrFunctionNotFound }

type ConfigError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := e.Key + " " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign transaction: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

func (e *SigningError) Is(target error) bool { return target == ErrSigning }

type UnsupportedChainError struct {
	ChainID uint64
}

func (e *UnsupportedChainError) Error() string {
	return fmt.Sprintf("no data source for chain %d", e.ChainID)
}

func (e *UnsupportedChainError) Is(target error) bool { return target == ErrUnsupportedChain }

// BuildError names the builder step that aborted a transaction. Step is the
// state the builder was trying to reach.
type BuildError struct {
	Step TxState
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("transaction aborted before %s: %v", e.Step, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
