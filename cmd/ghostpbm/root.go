package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/nando-os/ghostpbm/chaindata"
	"github.com/nando-os/ghostpbm/eth"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
	chainID  uint64
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ghostpbm",
	Short: "PBM contract gateway and multi-chain account explorer",
	Long: `ghostpbm signs and broadcasts PBM contract calls and answers balance and
transfer queries for EVM accounts.

Configuration is read from the environment (and from --env-file):
  ETH_RPC_URL, ETH_CHAIN_ID, ETH_PRIVATE_KEY, PBM_CONTRACT_ADDRESS,
  PBM_EVENT_TOPIC or PBM_EVENT_SIGNATURE, MORALIS_API_KEY

Examples:
  ghostpbm pay 0x1234... 1000            # pay(receiver, amount) on the PBM contract
  ghostpbm pbm-transfers 0x1234... --direction to
  ghostpbm tokens 0x1234... --chain-id 1
  ghostpbm serve --addr :8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setup(envFile)
		return configureLogging(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file to load before reading configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(fundCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(pbmBalanceCmd)
	rootCmd.AddCommand(pbmTransfersCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(tokenTransfersCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(serveCmd)
}

// configureLogging sets the logrus level and routes go-ethereum's logger
// through a terminal handler at the matching level.
func configureLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)

	var gethLevel slog.Level
	switch {
	case lvl >= logrus.TraceLevel:
		gethLevel = log.LevelTrace
	case lvl >= logrus.DebugLevel:
		gethLevel = log.LevelDebug
	case lvl >= logrus.InfoLevel:
		gethLevel = log.LevelInfo
	case lvl >= logrus.WarnLevel:
		gethLevel = log.LevelWarn
	default:
		gethLevel = log.LevelError
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, gethLevel, true)))
	return nil
}

func loadConfig() (eth.Config, error) {
	cfg, err := eth.NewConfiguration()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func loadClient() (eth.GhostClient, eth.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := eth.NewGhostClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, cfg, nil
}

// newAggregator routes the native chain to its explorer (with native
// balances from the configured node) and everything else to the
// multi-chain API.
func newAggregator(cfg eth.Config) (*chaindata.Aggregator, error) {
	node, err := eth.NewRPCClient(cfg.RPCURL(), cfg.HTTPTimeout())
	if err != nil {
		return nil, err
	}
	native := chaindata.NewNativeExplorerSource(cfg.NativeExplorerURL(), node, cfg.HTTPTimeout())
	unified := chaindata.NewUnifiedMultiChainSource(cfg.MultiChainAPIURL(), cfg.MultiChainAPIKey(), cfg.HTTPTimeout())
	return chaindata.NewAggregator(native, unified), nil
}

func parseAddressArg(s string) (common.Address, error) {
	return eth.ParseAddress("address", s)
}

func chainOrDefault(cfg eth.Config) uint64 {
	if chainID != 0 {
		return chainID
	}
	return cfg.ChainID()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
