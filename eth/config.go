package eth

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	envRpcURL      = "ETH_RPC_URL"
	envChainID     = "ETH_CHAIN_ID"
	envPrivateKey  = "ETH_PRIVATE_KEY"
	envHTTPTimeout = "ETH_HTTP_TIMEOUT_SECONDS"

	// -- PBM contract
	envPBMContract       = "PBM_CONTRACT_ADDRESS"
	envPBMEventTopic     = "PBM_EVENT_TOPIC"
	envPBMEventSignature = "PBM_EVENT_SIGNATURE" // hashed when PBM_EVENT_TOPIC is not set
	envPBMLogFromBlock   = "PBM_LOG_FROM_BLOCK"

	// -- chain data sources
	envNativeExplorerURL = "NATIVE_EXPLORER_URL"
	envMultiChainAPIURL  = "MULTICHAIN_API_URL"
	envMultiChainAPIKey  = "MORALIS_API_KEY"

	DEFAULT_HTTP_TIMEOUT_SECONDS = 30
	DEFAULT_LOG_FROM_BLOCK       = "earliest"
	DEFAULT_NATIVE_EXPLORER_URL  = "https://www.cmttracking.io/api"
	DEFAULT_MULTICHAIN_API_URL   = "https://deep-index.moralis.io/api/v2.2"
)

// Config is the explicit configuration handed to every component. Nothing in
// this module reads the environment after NewConfiguration returns.
type Config interface {
	RPCURL() string
	ChainID() uint64
	SigningKey() string
	HTTPTimeout() time.Duration
	PBMContract() common.Address
	PBMEventTopic() common.Hash
	LogFromBlock() string
	NativeExplorerURL() string
	MultiChainAPIURL() string
	MultiChainAPIKey() string
}

type config struct {
	rpcURL            string
	chainId           uint64
	signingKey        string
	httpTimeout       time.Duration
	pbmContract       common.Address
	pbmEventTopic     common.Hash
	logFromBlock      string
	nativeExplorerURL string
	multiChainAPIURL  string
	multiChainAPIKey  string
}

// NewConfiguration reads the configuration from the process environment.
func NewConfiguration() (*config, error) {
	rpcURL := getenv(envRpcURL)
	if rpcURL == "" {
		return nil, &ConfigError{Key: envRpcURL, Reason: "environment variable is not set"}
	}

	chainIDStr := getenv(envChainID)
	if chainIDStr == "" {
		return nil, &ConfigError{Key: envChainID, Reason: "environment variable is not set"}
	}
	chainId, err := strconv.ParseUint(chainIDStr, 10, 64)
	if err != nil || chainId == 0 {
		return nil, &ConfigError{Key: envChainID, Reason: "is not a positive integer", Err: err}
	}

	timeout := time.Duration(DEFAULT_HTTP_TIMEOUT_SECONDS) * time.Second
	if raw := getenv(envHTTPTimeout); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return nil, &ConfigError{Key: envHTTPTimeout, Reason: "is not a positive integer", Err: err}
		}
		timeout = time.Duration(seconds) * time.Second
	}

	var contract common.Address
	if raw := getenv(envPBMContract); raw != "" {
		contract, err = ParseAddress(envPBMContract, raw)
		if err != nil {
			return nil, &ConfigError{Key: envPBMContract, Reason: "is not an address", Err: err}
		}
	}

	var topic common.Hash
	if raw := getenv(envPBMEventTopic); raw != "" {
		topic, err = parseHash(envPBMEventTopic, raw)
		if err != nil {
			return nil, &ConfigError{Key: envPBMEventTopic, Reason: "is not a 32-byte hex value", Err: err}
		}
	} else if sig := getenv(envPBMEventSignature); sig != "" {
		topic = EventTopic(sig)
	}

	return &config{
		rpcURL:            rpcURL,
		chainId:           chainId,
		signingKey:        getenv(envPrivateKey),
		httpTimeout:       timeout,
		pbmContract:       contract,
		pbmEventTopic:     topic,
		logFromBlock:      getenvDefault(envPBMLogFromBlock, DEFAULT_LOG_FROM_BLOCK),
		nativeExplorerURL: getenvDefault(envNativeExplorerURL, DEFAULT_NATIVE_EXPLORER_URL),
		multiChainAPIURL:  getenvDefault(envMultiChainAPIURL, DEFAULT_MULTICHAIN_API_URL),
		multiChainAPIKey:  getenv(envMultiChainAPIKey),
	}, nil
}

func (c *config) RPCURL() string {
	return c.rpcURL
}

func (c *config) ChainID() uint64 {
	return c.chainId
}

// SigningKey returns the hex private key, or "" when the process is read-only.
func (c *config) SigningKey() string {
	return c.signingKey
}

func (c *config) HTTPTimeout() time.Duration {
	return c.httpTimeout
}

func (c *config) PBMContract() common.Address {
	return c.pbmContract
}

func (c *config) PBMEventTopic() common.Hash {
	return c.pbmEventTopic
}

func (c *config) LogFromBlock() string {
	return c.logFromBlock
}

func (c *config) NativeExplorerURL() string {
	return c.nativeExplorerURL
}

func (c *config) MultiChainAPIURL() string {
	return c.multiChainAPIURL
}

func (c *config) MultiChainAPIKey() string {
	return c.multiChainAPIKey
}

// SenderAccount derives the account of the configured signing key. The
// parsed key is zeroed before returning.
func SenderAccount(cfg Config) (*Account, error) {
	key, err := parseKey(cfg.SigningKey())
	if err != nil {
		return nil, err
	}
	defer zeroKey(key)
	return &Account{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		ChainId: cfg.ChainID(),
		Label:   "sender",
	}, nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}
