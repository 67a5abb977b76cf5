package chaindata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/nando-os/ghostpbm/eth"
)

// UnifiedMultiChainSource reads any EVM chain from a multi-chain indexing API
// addressed as /{address}[/erc20[/transfers]]?chain=0x<id>.
type UnifiedMultiChainSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type unifiedTx struct {
	Hash           string     `json:"hash"`
	FromAddress    string     `json:"from_address"`
	ToAddress      string     `json:"to_address"`
	Value          flexString `json:"value"`
	Gas            flexString `json:"gas"`
	GasPrice       flexString `json:"gas_price"`
	Input          string     `json:"input"`
	ReceiptStatus  flexString `json:"receipt_status"`
	BlockTimestamp string     `json:"block_timestamp"`
	BlockNumber    flexString `json:"block_number"`
}

type unifiedToken struct {
	TokenAddress string     `json:"token_address"`
	Name         string     `json:"name"`
	Symbol       string     `json:"symbol"`
	Decimals     flexString `json:"decimals"`
	Balance      flexString `json:"balance"`
}

type unifiedTransfer struct {
	TransactionHash string     `json:"transaction_hash"`
	Address         string     `json:"address"`
	TokenAddress    string     `json:"token_address"`
	BlockTimestamp  string     `json:"block_timestamp"`
	BlockNumber     flexString `json:"block_number"`
	FromAddress     string     `json:"from_address"`
	ToAddress       string     `json:"to_address"`
	Value           flexString `json:"value"`
	TokenName       string     `json:"token_name"`
	TokenSymbol     string     `json:"token_symbol"`
	TokenDecimals   flexString `json:"token_decimals"`
}

func NewUnifiedMultiChainSource(baseURL, apiKey string, timeout time.Duration) *UnifiedMultiChainSource {
	return &UnifiedMultiChainSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *UnifiedMultiChainSource) Name() string { return "unified-multichain" }

func (s *UnifiedMultiChainSource) GetTransactions(ctx context.Context, address string, chainID uint64) ([]Transaction, error) {
	var raw []unifiedTx
	if err := s.get(ctx, "transactions", address, "", chainID, &raw); err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(raw))
	for _, r := range raw {
		tx, err := r.normalize()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// GetERC20Balances trusts the API to return ERC-20 holdings only.
func (s *UnifiedMultiChainSource) GetERC20Balances(ctx context.Context, address string, chainID uint64) ([]TokenBalance, error) {
	var raw []unifiedToken
	if err := s.get(ctx, "erc20", address, "/erc20", chainID, &raw); err != nil {
		return nil, err
	}
	out := make([]TokenBalance, 0, len(raw))
	for _, r := range raw {
		balance, err := requireAmount("balance", r.Balance)
		if err != nil {
			return nil, err
		}
		decimals, err := parseDecimals("decimals", r.Decimals)
		if err != nil {
			return nil, err
		}
		out = append(out, TokenBalance{
			Name:            r.Name,
			Symbol:          r.Symbol,
			Balance:         balance,
			ContractAddress: normalizeAddress(r.TokenAddress),
			Decimals:        decimals,
		})
	}
	return out, nil
}

func (s *UnifiedMultiChainSource) GetERC20Transfers(ctx context.Context, address string, chainID uint64) ([]TokenTransfer, error) {
	var raw []unifiedTransfer
	if err := s.get(ctx, "erc20/transfers", address, "/erc20/transfers", chainID, &raw); err != nil {
		return nil, err
	}
	out := make([]TokenTransfer, 0, len(raw))
	for _, r := range raw {
		t, err := r.normalize()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *UnifiedMultiChainSource) GetNativeBalance(ctx context.Context, address string, chainID uint64) (*uint256.Int, error) {
	var resp struct {
		Balance flexString `json:"balance"`
	}
	if err := s.get(ctx, "balance", address, "/balance", chainID, &resp); err != nil {
		return nil, err
	}
	if resp.Balance == "" {
		return nil, &eth.RPCError{Method: "balance", Message: "response has no balance"}
	}
	return requireAmount("balance", resp.Balance)
}

// get fetches /{address}{suffix}?chain=0x<id>. Responses wrapped in a
// {"result": ...} object are unwrapped before decoding into out.
func (s *UnifiedMultiChainSource) get(ctx context.Context, method, address, suffix string, chainID uint64, out any) error {
	if s.apiKey == "" {
		return &eth.ConfigError{Key: "MORALIS_API_KEY", Reason: "is not set"}
	}
	endpoint := fmt.Sprintf("%s/%s%s?chain=%s",
		s.baseURL, url.PathEscape(address), suffix, url.QueryEscape(fmt.Sprintf("%#x", chainID)))
	header := http.Header{}
	header.Set("X-API-Key", s.apiKey)

	body, err := getJSON(ctx, s.httpClient, method, endpoint, header)
	if err != nil {
		return err
	}

	payload := json.RawMessage(body)
	var wrapped struct {
		Result json.RawMessage `json:"result"`
	}
	if trimmed := strings.TrimSpace(string(body)); strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Result) > 0 {
			if string(wrapped.Result) == "null" {
				return fail(&eth.RPCError{
					Method:   method,
					Message:  "response has no result",
					Request:  []byte(endpoint),
					Response: body,
				})
			}
			payload = wrapped.Result
		}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &eth.ParseError{Field: method + " response", Err: err}
	}
	return nil
}

func (r unifiedTx) normalize() (Transaction, error) {
	block, err := parseUint64("block_number", r.BlockNumber)
	if err != nil {
		return Transaction{}, err
	}
	ts, err := parseISOTime("block_timestamp", r.BlockTimestamp)
	if err != nil {
		return Transaction{}, err
	}
	value, err := requireAmount("value", r.Value)
	if err != nil {
		return Transaction{}, err
	}
	gas, err := parseAmount("gas", r.Gas)
	if err != nil {
		return Transaction{}, err
	}
	gasPrice, err := parseAmount("gas_price", r.GasPrice)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		Hash:        strings.ToLower(r.Hash),
		BlockNumber: block,
		Timestamp:   ts,
		From:        normalizeAddress(r.FromAddress),
		To:          normalizeAddress(r.ToAddress),
		Value:       value,
		Gas:         gas,
		GasPrice:    gasPrice,
		Input:       r.Input,
		Success:     r.ReceiptStatus != "0",
	}, nil
}

func (r unifiedTransfer) normalize() (TokenTransfer, error) {
	block, err := parseUint64("block_number", r.BlockNumber)
	if err != nil {
		return TokenTransfer{}, err
	}
	ts, err := parseISOTime("block_timestamp", r.BlockTimestamp)
	if err != nil {
		return TokenTransfer{}, err
	}
	value, err := requireAmount("value", r.Value)
	if err != nil {
		return TokenTransfer{}, err
	}
	decimals, err := parseDecimals("token_decimals", r.TokenDecimals)
	if err != nil {
		return TokenTransfer{}, err
	}
	contract := r.TokenAddress
	if contract == "" {
		contract = r.Address
	}
	return TokenTransfer{
		Hash:            strings.ToLower(r.TransactionHash),
		BlockNumber:     block,
		Timestamp:       ts,
		From:            normalizeAddress(r.FromAddress),
		To:              normalizeAddress(r.ToAddress),
		Value:           value,
		ContractAddress: normalizeAddress(contract),
		TokenName:       r.TokenName,
		TokenSymbol:     r.TokenSymbol,
		TokenDecimals:   decimals,
	}, nil
}
