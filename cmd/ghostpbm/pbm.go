package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/nando-os/ghostpbm/eth"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	tokenDecimals int32
	sendData      string
	pbmDirection  string
)

var payCmd = &cobra.Command{
	Use:   "pay <receiver> <amount>",
	Short: "Call pay(receiver, amount) on the PBM contract",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runContractWrite(cmd.Context(), args, eth.GhostClient.Pay, "pay")
	},
}

var fundCmd = &cobra.Command{
	Use:   "fund <user> <amount>",
	Short: "Call fundUser(user, amount) on the PBM contract",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runContractWrite(cmd.Context(), args, eth.GhostClient.FundUser, "fundUser")
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <to> <amount-in-ether>",
	Short: "Send native value (and optional call data) to an address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := parseAddressArg(args[0])
		if err != nil {
			return err
		}
		value, err := eth.ParseUnits(args[1], eth.EtherDecimals)
		if err != nil {
			return err
		}
		var data []byte
		if sendData != "" {
			data, err = hexutil.Decode(sendData)
			if err != nil {
				return &eth.ParseError{Field: "data", Value: sendData, Err: err}
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sender, err := eth.SenderAccount(cfg)
		if err != nil {
			return err
		}

		intent := eth.TransactionIntent{To: to, Value: value, Data: data}
		hash, err := eth.BuildAndSend(cmd.Context(), cfg.RPCURL(), cfg.ChainID(), cfg.SigningKey(), intent)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"sender": sender.Address.Hex(),
			"to":     to.Hex(),
			"value":  args[1],
		}).Info("Transaction sent")
		fmt.Println(hash.Hex())
		return nil
	},
}

var pbmBalanceCmd = &cobra.Command{
	Use:   "pbm-balance <address>",
	Short: "Show balanceOf(address) on the PBM contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddressArg(args[0])
		if err != nil {
			return err
		}
		client, _, err := loadClient()
		if err != nil {
			return err
		}
		defer client.Close()

		balance, err := client.GetPBMBalance(cmd.Context(), address)
		if err != nil {
			return err
		}
		fmt.Println(eth.FormatUnits(balance, tokenDecimals))
		return nil
	},
}

var pbmTransfersCmd = &cobra.Command{
	Use:   "pbm-transfers <address>",
	Short: "Decode PBM transfer logs sent from or to an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseAddressArg(args[0])
		if err != nil {
			return err
		}
		dir, err := eth.ParseDirection(strings.ToLower(pbmDirection))
		if err != nil {
			return err
		}
		if dir == eth.DirectionAny {
			return fmt.Errorf("--direction must be from or to")
		}
		client, _, err := loadClient()
		if err != nil {
			return err
		}
		defer client.Close()

		records, err := client.PBMTransfers(cmd.Context(), address, dir)
		if err != nil && records == nil {
			return err
		}
		if err != nil {
			logrus.WithError(err).Warn("Some transfer logs could not be decoded")
		}
		return printJSON(records)
	},
}

var txCmd = &cobra.Command{
	Use:   "tx <hash>",
	Short: "Print a transaction object by hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hexutil.Decode(args[0])
		if err != nil || len(raw) != common.HashLength {
			return &eth.ParseError{Field: "hash", Value: args[0], Err: err}
		}
		client, _, err := loadClient()
		if err != nil {
			return err
		}
		defer client.Close()

		tx, err := client.GetTransaction(cmd.Context(), common.BytesToHash(raw))
		if err != nil {
			return err
		}
		return printJSON(tx)
	},
}

func init() {
	for _, c := range []*cobra.Command{payCmd, fundCmd, pbmBalanceCmd} {
		c.Flags().Int32Var(&tokenDecimals, "decimals", 0, "decimals of the PBM token amount")
	}
	sendCmd.Flags().StringVar(&sendData, "data", "", "0x-prefixed call data")
	pbmTransfersCmd.Flags().StringVar(&pbmDirection, "direction", "to", "side of the transfer to match (from, to)")
}

type contractWrite func(eth.GhostClient, context.Context, common.Address, *uint256.Int) (common.Hash, error)

func runContractWrite(ctx context.Context, args []string, write contractWrite, method string) error {
	address, err := parseAddressArg(args[0])
	if err != nil {
		return err
	}
	amount, err := eth.ParseUnits(args[1], tokenDecimals)
	if err != nil {
		return err
	}
	client, cfg, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	sender, err := eth.SenderAccount(cfg)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"method":   method,
		"sender":   sender.Address.Hex(),
		"chain_id": sender.ChainId,
	}).Debug("Preparing PBM transaction")

	hash, err := write(client, ctx, address, amount)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"method":  method,
		"address": address.Hex(),
		"amount":  amount.Dec(),
		"hash":    hash.Hex(),
	}).Info("PBM transaction sent")
	fmt.Println(hash.Hex())
	return nil
}
