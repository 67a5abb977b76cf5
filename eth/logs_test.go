package eth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	testTopic    = EventTopic("Transfer(address,address,uint256,uint256)")
	testFrom     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testTo       = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func word(v uint64) []byte {
	w := uint256.NewInt(v).Bytes32()
	return w[:]
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(a.Bytes(), WordSize))
}

func transferLog(txHash common.Hash, data []byte) LogEntry {
	return LogEntry{
		Address:         testContract,
		Topics:          []common.Hash{testTopic, addressTopic(testFrom), addressTopic(testTo)},
		Data:            data,
		TransactionHash: txHash,
	}
}

func TestReadWord(t *testing.T) {
	data := append(word(1), word(2)...)

	w, err := ReadWord(data, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(2), w[31])

	_, err = ReadWord(data, 2)
	assert.ErrorIs(t, err, ErrParse)

	_, err = ReadWord(data, -1)
	assert.ErrorIs(t, err, ErrParse)

	_, err = ReadWord(data[:40], 1)
	assert.ErrorIs(t, err, ErrParse)
}

func TestReadUint(t *testing.T) {
	v, err := ReadUint(append(word(0), word(1_700_000_000)...), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_000), v.Uint64())
}

func TestTopicAddress(t *testing.T) {
	assert.Equal(t, testFrom, TopicAddress(addressTopic(testFrom)))
}

func TestLogDecoder_Filter(t *testing.T) {
	decoder := NewLogDecoder(&mockNode{}, testContract, testTopic).WithFromBlock("0x10")

	from, err := decoder.Filter(testFrom, DirectionFrom)
	require.NoError(t, err)
	require.Len(t, from.Topics, 2)
	assert.Equal(t, testTopic, *from.Topics[0])
	assert.Equal(t, addressTopic(testFrom), *from.Topics[1])
	assert.Equal(t, "0x10", from.FromBlock)
	assert.Equal(t, testContract, from.Address)

	to, err := decoder.Filter(testTo, DirectionTo)
	require.NoError(t, err)
	require.Len(t, to.Topics, 3)
	assert.Nil(t, to.Topics[1])
	assert.Equal(t, addressTopic(testTo), *to.Topics[2])

	_, err = decoder.Filter(testTo, DirectionAny)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLogDecoder_DecodeTransfers(t *testing.T) {
	node := &mockNode{}
	txHash := common.HexToHash("0x01")
	data := append(word(1_700_000_000), word(500)...)
	node.On("GetLogs", mock.Anything, mock.Anything).Return([]LogEntry{transferLog(txHash, data)}, nil)
	node.On("GetTransactionByHash", mock.Anything, txHash).Return(json.RawMessage(`{"hash":"0x01"}`), nil)

	decoder := NewLogDecoder(node, testContract, testTopic)
	records, err := decoder.DecodeTransfers(context.Background(), testTo, DirectionTo)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1_700_000_000), records[0].Timestamp.Uint64())
	assert.Equal(t, uint64(500), records[0].Amount.Uint64())
	assert.Equal(t, testFrom, records[0].From)
	assert.Equal(t, testTo, records[0].To)
	assert.JSONEq(t, `{"hash":"0x01"}`, string(records[0].TransactionDetail))
	node.AssertExpectations(t)
}

func TestLogDecoder_DecodeTransfers_SkipsShortData(t *testing.T) {
	node := &mockNode{}
	good := common.HexToHash("0x01")
	short := common.HexToHash("0x02")
	node.On("GetLogs", mock.Anything, mock.Anything).Return([]LogEntry{
		transferLog(short, word(1)),
		transferLog(good, append(word(10), word(20)...)),
	}, nil)
	node.On("GetTransactionByHash", mock.Anything, good).Return(json.RawMessage(`{}`), nil)

	decoder := NewLogDecoder(node, testContract, testTopic)
	records, err := decoder.DecodeTransfers(context.Background(), testFrom, DirectionFrom)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(20), records[0].Amount.Uint64())

	require.Error(t, err)
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Contains(t, err.Error(), short.Hex())
	node.AssertNotCalled(t, "GetTransactionByHash", mock.Anything, short)
	node.AssertExpectations(t)
}

func TestLogDecoder_DecodeTransfers_SkipsMissingTopics(t *testing.T) {
	node := &mockNode{}
	entry := transferLog(common.HexToHash("0x03"), append(word(1), word(2)...))
	entry.Topics = entry.Topics[:2]
	node.On("GetLogs", mock.Anything, mock.Anything).Return([]LogEntry{entry}, nil)

	decoder := NewLogDecoder(node, testContract, testTopic)
	records, err := decoder.DecodeTransfers(context.Background(), testFrom, DirectionFrom)
	assert.Empty(t, records)
	assert.ErrorIs(t, err, ErrParse)
}

func TestLogDecoder_DecodeTransfers_RPCErrorAbortsBatch(t *testing.T) {
	node := &mockNode{}
	txHash := common.HexToHash("0x01")
	node.On("GetLogs", mock.Anything, mock.Anything).Return([]LogEntry{transferLog(txHash, append(word(1), word(2)...))}, nil)
	node.On("GetTransactionByHash", mock.Anything, txHash).Return(nil, &RPCError{Method: "eth_getTransactionByHash", Message: "response has no result"})

	decoder := NewLogDecoder(node, testContract, testTopic)
	records, err := decoder.DecodeTransfers(context.Background(), testTo, DirectionTo)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, ErrRPC)
}

func TestLogDecoder_DecodeTransfers_GetLogsError(t *testing.T) {
	node := &mockNode{}
	node.On("GetLogs", mock.Anything, mock.Anything).Return(nil, &RPCError{Method: "eth_getLogs", Message: "boom"})

	decoder := NewLogDecoder(node, testContract, testTopic)
	_, err := decoder.DecodeTransfers(context.Background(), testTo, DirectionTo)
	assert.ErrorIs(t, err, ErrRPC)
}
