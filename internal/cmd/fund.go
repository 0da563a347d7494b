package cmd

import (
	"fmt"

	"debatebet/internal/units"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var fundCmd = &cobra.Command{
	Use:   "fund <address> <amount>",
	Short: "Credit a wallet with spendable balance",
	Long: `Credit a wallet with spendable balance.

The amount is given in whole units, e.g.:
  debatebet fund 0x00000000000000000000000000000000000000a1 1.5`,
	Args: cobra.ExactArgs(2),
	RunE: runFund,
}

func init() {
	rootCmd.AddCommand(fundCmd)
}

func runFund(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid address %q", args[0])
	}
	addr := common.HexToAddress(args[0])
	amount, err := units.Parse(args[1])
	if err != nil {
		return err
	}

	_, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if err := engine.Deposit(ctx, addr, amount); err != nil {
		return err
	}
	balance, err := engine.WalletBalance(ctx, addr)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Funded %s with %s, balance %s\n", addr.Hex(), units.Format(amount), units.Format(balance))
	return nil
}
