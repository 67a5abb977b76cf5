package main

import (
	"fmt"
	"strings"

	"github.com/nando-os/ghostpbm/eth"
	"github.com/spf13/cobra"
)

var direction string

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show the native balance of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddressArg(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		agg, err := newAggregator(cfg)
		if err != nil {
			return err
		}
		balance, err := agg.GetBalance(cmd.Context(), address, chainOrDefault(cfg))
		if err != nil {
			return err
		}
		fmt.Println(eth.FormatUnits(balance, eth.EtherDecimals))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <address>",
	Short: "List native transactions of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddressArg(args[0])
		if err != nil {
			return err
		}
		dir, err := eth.ParseDirection(strings.ToLower(direction))
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		agg, err := newAggregator(cfg)
		if err != nil {
			return err
		}
		txs, err := agg.GetTransactions(cmd.Context(), address, chainOrDefault(cfg), dir)
		if err != nil {
			return err
		}
		return printJSON(txs)
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens <address>",
	Short: "List ERC-20 balances of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddressArg(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		agg, err := newAggregator(cfg)
		if err != nil {
			return err
		}
		balances, err := agg.GetERC20Balance(cmd.Context(), address, chainOrDefault(cfg))
		if err != nil {
			return err
		}
		return printJSON(balances)
	},
}

var tokenTransfersCmd = &cobra.Command{
	Use:   "token-transfers <address>",
	Short: "List ERC-20 transfers of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddressArg(args[0])
		if err != nil {
			return err
		}
		dir, err := eth.ParseDirection(strings.ToLower(direction))
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		agg, err := newAggregator(cfg)
		if err != nil {
			return err
		}
		transfers, err := agg.GetERC20Transfers(cmd.Context(), address, chainOrDefault(cfg), dir)
		if err != nil {
			return err
		}
		return printJSON(transfers)
	},
}

func init() {
	for _, c := range []*cobra.Command{balanceCmd, historyCmd, tokensCmd, tokenTransfersCmd} {
		c.Flags().Uint64Var(&chainID, "chain-id", 0, "chain to query (defaults to ETH_CHAIN_ID)")
	}
	for _, c := range []*cobra.Command{historyCmd, tokenTransfersCmd} {
		c.Flags().StringVar(&direction, "direction", "", "only transactions sent from or to the address (from, to)")
	}
}
