package eth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// Node is the set of JSON-RPC methods the rest of the module relies on.
type Node interface {
	// GetBalance returns the native balance of an address at the latest block
	GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error)

	// GetTransactionCount returns the transaction count of an address at the given block tag
	GetTransactionCount(ctx context.Context, address common.Address, block string) (*uint256.Int, error)

	// GasPrice returns the node's current gas price
	GasPrice(ctx context.Context) (*uint256.Int, error)

	// EstimateGas simulates msg and returns the gas it would use
	EstimateGas(ctx context.Context, msg CallRequest) (*uint256.Int, error)

	// SendRawTransaction broadcasts a signed payload and returns its hash
	SendRawTransaction(ctx context.Context, signedHex string) (common.Hash, error)

	// CallContract executes a read-only call against the latest block
	CallContract(ctx context.Context, msg CallRequest) ([]byte, error)

	// GetLogs returns the logs matching filter in node order
	GetLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error)

	// GetTransactionByHash returns the transaction object as the node sent it
	GetTransactionByHash(ctx context.Context, hash common.Hash) (json.RawMessage, error)
}

// Ensure *RPCClient implements Node
var _ Node = (*RPCClient)(nil)

// RPCClient is a JSON-RPC 2.0 client bound to one node endpoint.
type RPCClient struct {
	url        string
	httpClient *http.Client
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcLog struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	TransactionHash string   `json:"transactionHash"`
}

// NewRPCClient creates a client for url. A zero timeout leaves requests
// bounded only by the caller's context.
func NewRPCClient(url string, timeout time.Duration) (*RPCClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, &ConfigError{Key: envRpcURL, Reason: "is required"}
	}
	return &RPCClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Call invokes method with params and returns the raw "result" member.
// A response without "result", with a null result, or with an "error" member
// is returned as *RPCError.
func (c *RPCClient) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, &RPCError{Method: method, Message: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &RPCError{Method: method, Request: payload, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(&RPCError{Method: method, Request: payload, Message: "request failed", Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&RPCError{Method: method, Request: payload, Message: "failed to read response", Err: err})
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, c.fail(&RPCError{
			Method:   method,
			Message:  fmt.Sprintf("undecodable response (status %d)", resp.StatusCode),
			Request:  payload,
			Response: body,
			Err:      err,
		})
	}
	if decoded.Error != nil {
		return nil, c.fail(&RPCError{
			Method:   method,
			Code:     decoded.Error.Code,
			Message:  decoded.Error.Message,
			Request:  payload,
			Response: body,
		})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fail(&RPCError{
			Method:   method,
			Message:  fmt.Sprintf("rpc status %d", resp.StatusCode),
			Request:  payload,
			Response: body,
		})
	}
	if len(decoded.Result) == 0 || string(decoded.Result) == "null" {
		return nil, c.fail(&RPCError{
			Method:   method,
			Message:  "response has no result",
			Request:  payload,
			Response: body,
		})
	}
	return decoded.Result, nil
}

func (c *RPCClient) fail(err *RPCError) error {
	log.Error("JSON-RPC call failed",
		"method", err.Method,
		"request", string(err.Request),
		"response", string(err.Response),
		"error", err)
	return err
}

// GetBalance returns the balance of address at the latest block.
func (c *RPCClient) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	return c.callQuantity(ctx, "eth_getBalance", addressParam(address), "latest")
}

// GetTransactionCount returns the nonce of address at the given block tag.
func (c *RPCClient) GetTransactionCount(ctx context.Context, address common.Address, block string) (*uint256.Int, error) {
	return c.callQuantity(ctx, "eth_getTransactionCount", addressParam(address), block)
}

// GasPrice returns the node's current gas price.
func (c *RPCClient) GasPrice(ctx context.Context) (*uint256.Int, error) {
	return c.callQuantity(ctx, "eth_gasPrice")
}

// EstimateGas asks the node to simulate msg with its exact from/to/value/data.
func (c *RPCClient) EstimateGas(ctx context.Context, msg CallRequest) (*uint256.Int, error) {
	return c.callQuantity(ctx, "eth_estimateGas", callObject(msg, true))
}

// SendRawTransaction broadcasts a 0x-prefixed signed payload.
func (c *RPCClient) SendRawTransaction(ctx context.Context, signedHex string) (common.Hash, error) {
	raw, err := c.callString(ctx, "eth_sendRawTransaction", signedHex)
	if err != nil {
		return common.Hash{}, err
	}
	return parseHash("transaction hash", raw)
}

// CallContract performs a read-only eth_call at the latest block.
func (c *RPCClient) CallContract(ctx context.Context, msg CallRequest) ([]byte, error) {
	raw, err := c.callString(ctx, "eth_call", callObject(msg, false), "latest")
	if err != nil {
		return nil, err
	}
	out, err := hexutil.Decode(raw)
	if err != nil {
		return nil, &ParseError{Field: "call result", Value: raw, Err: err}
	}
	return out, nil
}

// GetLogs queries logs for filter. Entries keep the order the node returned.
func (c *RPCClient) GetLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	result, err := c.Call(ctx, "eth_getLogs", filterObject(filter))
	if err != nil {
		return nil, err
	}
	var raw []rpcLog
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, &ParseError{Field: "eth_getLogs result", Err: err}
	}

	logs := make([]LogEntry, 0, len(raw))
	for _, l := range raw {
		entry, err := l.toEntry()
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

// GetTransactionByHash returns the transaction object unmodified.
func (c *RPCClient) GetTransactionByHash(ctx context.Context, hash common.Hash) (json.RawMessage, error) {
	return c.Call(ctx, "eth_getTransactionByHash", hash.Hex())
}

func (c *RPCClient) callString(ctx context.Context, method string, params ...any) (string, error) {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return "", &ParseError{Field: method + " result", Value: string(result), Err: err}
	}
	return s, nil
}

func (c *RPCClient) callQuantity(ctx context.Context, method string, params ...any) (*uint256.Int, error) {
	s, err := c.callString(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	return ParseQuantity(method+" result", s)
}

func (l rpcLog) toEntry() (LogEntry, error) {
	address, err := ParseAddress("log address", l.Address)
	if err != nil {
		return LogEntry{}, err
	}
	topics := make([]common.Hash, 0, len(l.Topics))
	for _, t := range l.Topics {
		h, err := parseHash("log topic", t)
		if err != nil {
			return LogEntry{}, err
		}
		topics = append(topics, h)
	}
	data, err := hexutil.Decode(l.Data)
	if err != nil && l.Data != "" {
		return LogEntry{}, &ParseError{Field: "log data", Value: l.Data, Err: err}
	}
	txHash, err := parseHash("log transaction hash", l.TransactionHash)
	if err != nil {
		return LogEntry{}, err
	}
	return LogEntry{
		Address:         address,
		Topics:          topics,
		Data:            data,
		TransactionHash: txHash,
	}, nil
}

func parseHash(field, s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, &ParseError{Field: field, Value: s, Err: err}
	}
	if len(b) != common.HashLength {
		return common.Hash{}, &ParseError{Field: field, Value: s, Err: errors.New("expected 32 bytes")}
	}
	return common.BytesToHash(b), nil
}

func addressParam(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func callObject(msg CallRequest, withValue bool) map[string]string {
	obj := map[string]string{
		"from": addressParam(msg.From),
		"to":   addressParam(msg.To),
		"data": hexutil.Encode(msg.Data),
	}
	if withValue {
		value := uint256.NewInt(0)
		if msg.Value != nil {
			value = msg.Value
		}
		obj["value"] = value.Hex()
	}
	return obj
}

func filterObject(f LogFilter) map[string]any {
	obj := map[string]any{
		"address": addressParam(f.Address),
	}
	if f.FromBlock != "" {
		obj["fromBlock"] = f.FromBlock
	}
	if f.ToBlock != "" {
		obj["toBlock"] = f.ToBlock
	}
	if len(f.Topics) > 0 {
		topics := make([]any, len(f.Topics))
		for i, t := range f.Topics {
			if t != nil {
				topics[i] = strings.ToLower(t.Hex())
			}
		}
		obj["topics"] = topics
	}
	return obj
}

// Close releases idle connections held by the underlying HTTP client.
func (c *RPCClient) Close() {
	c.httpClient.CloseIdleConnections()
}
