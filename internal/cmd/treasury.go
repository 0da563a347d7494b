package cmd

import (
	"fmt"

	"debatebet/internal/service"
	"debatebet/internal/units"

	"github.com/spf13/cobra"
)

var treasuryCmd = &cobra.Command{
	Use:   "treasury",
	Short: "Show the custodied balance",
	RunE:  runTreasuryShow,
}

var treasuryWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Sweep the whole treasury to the owner",
	Long: `Sweep the whole treasury to the owner.

Stakes of unsettled debates are swept as well; later claims and refunds
fail until the treasury is refilled.`,
	Args: cobra.NoArgs,
	RunE: runTreasuryWithdraw,
}

func init() {
	rootCmd.AddCommand(treasuryCmd)
	treasuryCmd.AddCommand(treasuryWithdrawCmd)
}

func runTreasuryShow(cmd *cobra.Command, args []string) error {
	_, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	balance, err := engine.TreasuryBalance(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Treasury balance: %s\n", units.Format(balance))
	return nil
}

func runTreasuryWithdraw(cmd *cobra.Command, args []string) error {
	_, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	amount, err := engine.WithdrawAll(cmd.Context(), service.From(engine.Owner()))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Withdrew %s to %s\n", units.Format(amount), engine.Owner().Hex())
	return nil
}
