package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nando-os/ghostpbm/chaindata"
	"github.com/nando-os/ghostpbm/eth"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const holder = "0x00000000000000000000000000000000000000aa"

type mockGhostClient struct {
	mock.Mock
}

var _ eth.GhostClient = (*mockGhostClient)(nil)

func (m *mockGhostClient) Pay(ctx context.Context, receiver common.Address, amount *uint256.Int) (common.Hash, error) {
	ret := m.Called(ctx, receiver, amount)
	return ret.Get(0).(common.Hash), ret.Error(1)
}

func (m *mockGhostClient) FundUser(ctx context.Context, user common.Address, amount *uint256.Int) (common.Hash, error) {
	ret := m.Called(ctx, user, amount)
	return ret.Get(0).(common.Hash), ret.Error(1)
}

func (m *mockGhostClient) Send(ctx context.Context, intent eth.TransactionIntent) (common.Hash, error) {
	ret := m.Called(ctx, intent)
	return ret.Get(0).(common.Hash), ret.Error(1)
}

func (m *mockGhostClient) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	ret := m.Called(ctx, address)
	var r0 *uint256.Int
	if v := ret.Get(0); v != nil {
		r0 = v.(*uint256.Int)
	}
	return r0, ret.Error(1)
}

func (m *mockGhostClient) GetPBMBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	ret := m.Called(ctx, address)
	var r0 *uint256.Int
	if v := ret.Get(0); v != nil {
		r0 = v.(*uint256.Int)
	}
	return r0, ret.Error(1)
}

func (m *mockGhostClient) PBMTransfers(ctx context.Context, address common.Address, dir eth.Direction) ([]eth.TransferRecord, error) {
	ret := m.Called(ctx, address, dir)
	var r0 []eth.TransferRecord
	if v := ret.Get(0); v != nil {
		r0 = v.([]eth.TransferRecord)
	}
	return r0, ret.Error(1)
}

func (m *mockGhostClient) GetTransaction(ctx context.Context, hash common.Hash) (json.RawMessage, error) {
	ret := m.Called(ctx, hash)
	var r0 json.RawMessage
	if v := ret.Get(0); v != nil {
		r0 = v.(json.RawMessage)
	}
	return r0, ret.Error(1)
}

func (m *mockGhostClient) Close() {}

func testServer(t *testing.T, client eth.GhostClient, explorerBodies map[string]string) *Server {
	t.Helper()
	explorer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := explorerBodies[r.URL.Query().Get("action")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(explorer.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	agg := chaindata.NewAggregator(chaindata.NewNativeExplorerSource(explorer.URL, nil, 0), nil)
	return NewServer(client, agg, chaindata.NativeChainID, logger)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := testServer(t, &mockGhostClient{}, nil)

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ERC20Balance(t *testing.T) {
	s := testServer(t, &mockGhostClient{}, map[string]string{
		"tokenlist": `{"status":"1","message":"OK","result":[
			{"balance":"1000","contractAddress":"0xcc","decimals":"18","name":"Token A","symbol":"TKA","type":"ERC-20"},
			{"balance":"1","contractAddress":"0xdd","decimals":"0","name":"NFT","symbol":"NFT","type":"ERC-721"}
		]}`,
	})

	rec := do(t, s, http.MethodGet, "/addresses/"+holder+"/erc20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var balances []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balances))
	require.Len(t, balances, 1)
	assert.Equal(t, "TKA", balances[0]["symbol"])
	assert.Equal(t, "0xcc", balances[0]["contractAddress"])
}

func TestServer_UnsupportedChain(t *testing.T) {
	s := testServer(t, &mockGhostClient{}, nil)

	rec := do(t, s, http.MethodGet, "/addresses/"+holder+"/transactions?chain_id=1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_chain")
}

func TestServer_UpstreamError(t *testing.T) {
	s := testServer(t, &mockGhostClient{}, nil)

	rec := do(t, s, http.MethodGet, "/addresses/"+holder+"/transactions", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"rpc"`)
}

func TestServer_BadInput(t *testing.T) {
	s := testServer(t, &mockGhostClient{}, nil)

	for _, path := range []string{
		"/addresses/0x1234/balance",
		"/addresses/" + holder + "/transactions?direction=sideways",
		"/addresses/" + holder + "/erc20?chain_id=abc",
		"/transactions/0x1234",
	} {
		rec := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestServer_Pay(t *testing.T) {
	client := &mockGhostClient{}
	client.On("Pay", mock.Anything, common.HexToAddress(holder), uint256.NewInt(1000)).Return(common.HexToHash("0xabc"), nil)
	s := testServer(t, client, nil)

	rec := do(t, s, http.MethodPost, "/pbm/pay", `{"address":"`+holder+`","amount":"1000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), common.HexToHash("0xabc").Hex())
	client.AssertExpectations(t)
}

func TestServer_Fund_SigningError(t *testing.T) {
	client := &mockGhostClient{}
	client.On("FundUser", mock.Anything, mock.Anything, mock.Anything).Return(common.Hash{}, &eth.BuildError{Step: eth.StateSigned, Err: &eth.SigningError{Err: errors.New("bad key")}})
	s := testServer(t, client, nil)

	rec := do(t, s, http.MethodPost, "/pbm/fund", `{"address":"`+holder+`","amount":"1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"signing"`)
}

func TestServer_Pay_BadAmount(t *testing.T) {
	s := testServer(t, &mockGhostClient{}, nil)

	rec := do(t, s, http.MethodPost, "/pbm/pay", `{"address":"`+holder+`","amount":"1.5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PBMTransfers_PartialResult(t *testing.T) {
	client := &mockGhostClient{}
	records := []eth.TransferRecord{{Amount: uint256.NewInt(5), Timestamp: uint256.NewInt(1)}}
	client.On("PBMTransfers", mock.Anything, common.HexToAddress(holder), eth.DirectionTo).
		Return(records, &eth.ParseError{Field: "log data"})
	s := testServer(t, client, nil)

	rec := do(t, s, http.MethodGet, "/pbm/"+holder+"/transfers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Transfers []json.RawMessage `json:"transfers"`
		Errors    []string          `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Transfers, 1)
	assert.Len(t, resp.Errors, 1)
	client.AssertExpectations(t)
}

func TestServer_PBMBalance(t *testing.T) {
	client := &mockGhostClient{}
	client.On("GetPBMBalance", mock.Anything, common.HexToAddress(holder)).Return(uint256.NewInt(7), nil)
	s := testServer(t, client, nil)

	rec := do(t, s, http.MethodGet, "/pbm/"+holder+"/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	client.AssertExpectations(t)
}

func TestServer_Transaction(t *testing.T) {
	client := &mockGhostClient{}
	hash := common.HexToHash("0x01")
	client.On("GetTransaction", mock.Anything, hash).Return(json.RawMessage(`{"hash":"0x01"}`), nil)
	s := testServer(t, client, nil)

	rec := do(t, s, http.MethodGet, "/transactions/"+hash.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hash":"0x01"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&eth.FunctionNotFoundError{Name: "x"}))
	assert.Equal(t, http.StatusBadRequest, statusFor(&eth.ConfigError{Key: "K", Reason: "is not set"}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&eth.BuildError{Step: eth.StateBroadcast, Err: &eth.RPCError{Method: "eth_sendRawTransaction"}}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
