package eth

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"
)

// mockNode is a mock type for the Node type
type mockNode struct {
	mock.Mock
}

var _ Node = (*mockNode)(nil)

func (m *mockNode) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	ret := m.Called(ctx, address)
	var r0 *uint256.Int
	if v := ret.Get(0); v != nil {
		r0 = v.(*uint256.Int)
	}
	return r0, ret.Error(1)
}

func (m *mockNode) GetTransactionCount(ctx context.Context, address common.Address, block string) (*uint256.Int, error) {
	ret := m.Called(ctx, address, block)
	var r0 *uint256.Int
	if v := ret.Get(0); v != nil {
		r0 = v.(*uint256.Int)
	}
	return r0, ret.Error(1)
}

func (m *mockNode) GasPrice(ctx context.Context) (*uint256.Int, error) {
	ret := m.Called(ctx)
	var r0 *uint256.Int
	if v := ret.Get(0); v != nil {
		r0 = v.(*uint256.Int)
	}
	return r0, ret.Error(1)
}

func (m *mockNode) EstimateGas(ctx context.Context, msg CallRequest) (*uint256.Int, error) {
	ret := m.Called(ctx, msg)
	var r0 *uint256.Int
	if v := ret.Get(0); v != nil {
		r0 = v.(*uint256.Int)
	}
	return r0, ret.Error(1)
}

func (m *mockNode) SendRawTransaction(ctx context.Context, signedHex string) (common.Hash, error) {
	ret := m.Called(ctx, signedHex)
	return ret.Get(0).(common.Hash), ret.Error(1)
}

func (m *mockNode) CallContract(ctx context.Context, msg CallRequest) ([]byte, error) {
	ret := m.Called(ctx, msg)
	var r0 []byte
	if v := ret.Get(0); v != nil {
		r0 = v.([]byte)
	}
	return r0, ret.Error(1)
}

func (m *mockNode) GetLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	ret := m.Called(ctx, filter)
	var r0 []LogEntry
	if v := ret.Get(0); v != nil {
		r0 = v.([]LogEntry)
	}
	return r0, ret.Error(1)
}

func (m *mockNode) GetTransactionByHash(ctx context.Context, hash common.Hash) (json.RawMessage, error) {
	ret := m.Called(ctx, hash)
	var r0 json.RawMessage
	if v := ret.Get(0); v != nil {
		r0 = v.(json.RawMessage)
	}
	return r0, ret.Error(1)
}

func (m *mockNode) Close() {
	m.Called()
}
