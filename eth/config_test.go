package eth

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envRpcURL, envChainID, envPrivateKey, envHTTPTimeout,
		envPBMContract, envPBMEventTopic, envPBMEventSignature, envPBMLogFromBlock,
		envNativeExplorerURL, envMultiChainAPIURL, envMultiChainAPIKey,
	} {
		t.Setenv(key, "")
	}
}

func TestNewConfiguration_Success(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ETH_CHAIN_ID", "1234")
	t.Setenv("ETH_PRIVATE_KEY", "4f3edf983ac636a65a842ce7c78d9aa706d3b113b37e5a4d5e1e4e6a1f7a1e08") // test key
	t.Setenv("ETH_RPC_URL", " http://localhost:8545 ")
	t.Setenv("PBM_CONTRACT_ADDRESS", "0x00000000000000000000000000000000000000cc")

	cfg, err := NewConfiguration()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ChainID() != 1234 {
		t.Errorf("expected chain ID 1234, got %d", cfg.ChainID())
	}
	if cfg.RPCURL() != "http://localhost:8545" {
		t.Errorf("expected RPC URL http://localhost:8545, got %s", cfg.RPCURL())
	}
	if cfg.PBMContract() != common.HexToAddress("0xcc") {
		t.Errorf("unexpected PBM contract %s", cfg.PBMContract().Hex())
	}
	if cfg.SigningKey() == "" {
		t.Error("expected signing key to be set")
	}
}

func TestNewConfiguration_MissingEnv(t *testing.T) {
	clearConfigEnv(t)
	_, err := NewConfiguration()
	if err == nil {
		t.Fatal("expected error for missing env vars, got nil")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Key != envRpcURL {
		t.Errorf("expected ConfigError for %s, got %v", envRpcURL, err)
	}
}

func TestNewConfiguration_InvalidChainID(t *testing.T) {
	for _, value := range []string{"abc", "0", "-1"} {
		clearConfigEnv(t)
		t.Setenv("ETH_RPC_URL", "http://localhost:8545")
		t.Setenv("ETH_CHAIN_ID", value)
		_, err := NewConfiguration()
		if !errors.Is(err, ErrConfig) {
			t.Errorf("chain id %q: expected config error, got %v", value, err)
		}
	}
}

func TestNewConfiguration_Defaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ETH_RPC_URL", "http://localhost:8545")
	t.Setenv("ETH_CHAIN_ID", "18")

	cfg, err := NewConfiguration()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTPTimeout() != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cfg.HTTPTimeout())
	}
	if cfg.LogFromBlock() != DEFAULT_LOG_FROM_BLOCK {
		t.Errorf("expected default from block %s, got %s", DEFAULT_LOG_FROM_BLOCK, cfg.LogFromBlock())
	}
	if cfg.NativeExplorerURL() != DEFAULT_NATIVE_EXPLORER_URL {
		t.Errorf("expected default explorer url, got %s", cfg.NativeExplorerURL())
	}
	if cfg.MultiChainAPIURL() != DEFAULT_MULTICHAIN_API_URL {
		t.Errorf("expected default multi-chain url, got %s", cfg.MultiChainAPIURL())
	}
	if cfg.PBMContract() != (common.Address{}) {
		t.Errorf("expected no PBM contract, got %s", cfg.PBMContract().Hex())
	}
	if cfg.SigningKey() != "" {
		t.Error("expected no signing key")
	}
}

func TestNewConfiguration_EventTopic(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ETH_RPC_URL", "http://localhost:8545")
	t.Setenv("ETH_CHAIN_ID", "1")
	t.Setenv("PBM_EVENT_SIGNATURE", "Transfer(address,address,uint256)")

	cfg, err := NewConfiguration()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	if cfg.PBMEventTopic() != want {
		t.Errorf("expected topic %s, got %s", want.Hex(), cfg.PBMEventTopic().Hex())
	}

	t.Setenv("PBM_EVENT_TOPIC", "0x1234")
	if _, err := NewConfiguration(); !errors.Is(err, ErrConfig) {
		t.Errorf("expected config error for short topic, got %v", err)
	}
}

func TestNewConfiguration_InvalidTimeout(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ETH_RPC_URL", "http://localhost:8545")
	t.Setenv("ETH_CHAIN_ID", "1")
	t.Setenv("ETH_HTTP_TIMEOUT_SECONDS", "0")

	if _, err := NewConfiguration(); !errors.Is(err, ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestSenderAccount(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ETH_RPC_URL", "http://localhost:8545")
	t.Setenv("ETH_CHAIN_ID", "1")
	t.Setenv("ETH_PRIVATE_KEY", "4f3edf983ac636a65a842ce7c78d9aa706d3b113b37e5a4d5e1e4e6a1f7a1e08")

	cfg, err := NewConfiguration()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	acc, err := SenderAccount(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	key, _ := crypto.HexToECDSA("4f3edf983ac636a65a842ce7c78d9aa706d3b113b37e5a4d5e1e4e6a1f7a1e08")
	if acc.Address != crypto.PubkeyToAddress(key.PublicKey) {
		t.Errorf("unexpected sender %s", acc.Address.Hex())
	}
	if acc.ChainId != 1 {
		t.Errorf("expected chain 1, got %d", acc.ChainId)
	}
}
