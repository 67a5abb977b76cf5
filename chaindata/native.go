package chaindata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nando-os/ghostpbm/eth"
)

// NativeExplorerSource reads the native chain's explorer through its
// module=account query API. Native balances go through the chain's RPC node.
type NativeExplorerSource struct {
	baseURL    string
	httpClient *http.Client
	node       eth.Node
}

type explorerEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type explorerTx struct {
	BlockNumber flexString `json:"blockNumber"`
	TimeStamp   flexString `json:"timeStamp"`
	Hash        string     `json:"hash"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Value       flexString `json:"value"`
	Gas         flexString `json:"gas"`
	GasPrice    flexString `json:"gasPrice"`
	IsError     string     `json:"isError"`
	Input       string     `json:"input"`
}

type explorerToken struct {
	Balance         flexString `json:"balance"`
	ContractAddress string     `json:"contractAddress"`
	Decimals        flexString `json:"decimals"`
	Name            string     `json:"name"`
	Symbol          string     `json:"symbol"`
	Type            string     `json:"type"`
}

type explorerTokenTx struct {
	BlockNumber     flexString `json:"blockNumber"`
	TimeStamp       flexString `json:"timeStamp"`
	Hash            string     `json:"hash"`
	From            string     `json:"from"`
	To              string     `json:"to"`
	Value           flexString `json:"value"`
	ContractAddress string     `json:"contractAddress"`
	TokenName       string     `json:"tokenName"`
	TokenSymbol     string     `json:"tokenSymbol"`
	TokenDecimal    flexString `json:"tokenDecimal"`
}

func NewNativeExplorerSource(baseURL string, node eth.Node, timeout time.Duration) *NativeExplorerSource {
	return &NativeExplorerSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		node:       node,
	}
}

func (s *NativeExplorerSource) Name() string { return "native-explorer" }

func (s *NativeExplorerSource) GetTransactions(ctx context.Context, address string, _ uint64) ([]Transaction, error) {
	var raw []explorerTx
	if err := s.query(ctx, "txlist", address, &raw); err != nil {
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

// GetERC20Balances keeps only entries whose type is ERC-20.
func (s *NativeExplorerSource) GetERC20Balances(ctx context.Context, address string, _ uint64) ([]TokenBalance, error) {
	var raw []explorerToken
	if err := s.query(ctx, "tokenlist", address, &raw); err != nil {
		return nil, err
	}
	out := make([]TokenBalance, 0, len(raw))
	for _, r := range raw {
		if r.Type != ERC20Type {
			continue
		}
		balance, err := requireAmount("token balance", r.Balance)
		if err != nil {
			return nil, err
		}
		decimals, err := parseDecimals("token decimals", r.Decimals)
		if err != nil {
			return nil, err
		}
		out = append(out, TokenBalance{
			Name:            r.Name,
			Symbol:          r.Symbol,
			Balance:         balance,
			ContractAddress: normalizeAddress(r.ContractAddress),
			Decimals:        decimals,
		})
	}
	return out, nil
}

func (s *NativeExplorerSource) GetERC20Transfers(ctx context.Context, address string, _ uint64) ([]TokenTransfer, error) {
	var raw []explorerTokenTx
	if err := s.query(ctx, "tokentx", address, &raw); err != nil {
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

func (s *NativeExplorerSource) GetNativeBalance(ctx context.Context, address string, _ uint64) (*uint256.Int, error) {
	if s.node == nil {
		return nil, &eth.ConfigError{Key: "ETH_RPC_URL", Reason: "native source has no RPC node"}
	}
	return s.node.GetBalance(ctx, common.HexToAddress(address))
}

// query calls ?module=account&action=<action>&address=<address> and decodes
// the result list into out. A "No ... found" answer is an empty list.
func (s *NativeExplorerSource) query(ctx context.Context, action, address string, out any) error {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", action)
	params.Set("address", address)
	endpoint := s.baseURL + "?" + params.Encode()

	body, err := getJSON(ctx, s.httpClient, action, endpoint, nil)
	if err != nil {
		return err
	}
	var env explorerEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &eth.ParseError{Field: action + " response", Err: err}
	}
	trimmed := strings.TrimSpace(string(env.Result))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return &eth.ParseError{Field: action + " result", Err: err}
		}
		return nil
	}
	if env.Status == "0" && strings.HasPrefix(env.Message, "No ") {
		return nil
	}
	return fail(&eth.RPCError{
		Method:   action,
		Message:  fmt.Sprintf("explorer returned %q: %s", env.Message, trimmed),
		Request:  []byte(endpoint),
		Response: body,
	})
}

func (r explorerTx) normalize() (Transaction, error) {
	block, err := parseUint64("blockNumber", r.BlockNumber)
	if err != nil {
		return Transaction{}, err
	}
	ts, err := parseUnixTime("timeStamp", r.TimeStamp)
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
	gasPrice, err := parseAmount("gasPrice", r.GasPrice)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		Hash:        strings.ToLower(r.Hash),
		BlockNumber: block,
		Timestamp:   ts,
		From:        normalizeAddress(r.From),
		To:          normalizeAddress(r.To),
		Value:       value,
		Gas:         gas,
		GasPrice:    gasPrice,
		Input:       r.Input,
		Success:     r.IsError != "1",
	}, nil
}

func (r explorerTokenTx) normalize() (TokenTransfer, error) {
	block, err := parseUint64("blockNumber", r.BlockNumber)
	if err != nil {
		return TokenTransfer{}, err
	}
	ts, err := parseUnixTime("timeStamp", r.TimeStamp)
	if err != nil {
		return TokenTransfer{}, err
	}
	value, err := requireAmount("value", r.Value)
	if err != nil {
		return TokenTransfer{}, err
	}
	decimals, err := parseDecimals("tokenDecimal", r.TokenDecimal)
	if err != nil {
		return TokenTransfer{}, err
	}
	return TokenTransfer{
		Hash:            strings.ToLower(r.Hash),
		BlockNumber:     block,
		Timestamp:       ts,
		From:            normalizeAddress(r.From),
		To:              normalizeAddress(r.To),
		Value:           value,
		ContractAddress: normalizeAddress(r.ContractAddress),
		TokenName:       r.TokenName,
		TokenSymbol:     r.TokenSymbol,
		TokenDecimals:   decimals,
	}, nil
}
