package cmd

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"debatebet/internal/service"
	"debatebet/internal/units"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var debateCmd = &cobra.Command{
	Use:   "debate",
	Short: "Manage debates as the configured moderator",
}

var debateCreateCmd = &cobra.Command{
	Use:   "create <id> <agent-a> <agent-b>",
	Short: "Create a debate",
	Args:  cobra.ExactArgs(3),
	RunE:  runDebateCreate,
}

var debateShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a debate and its pools",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebateShow,
}

var debateResolveCmd = &cobra.Command{
	Use:   "resolve <id> <winning-agent>",
	Short: "Resolve a debate in favor of one agent",
	Args:  cobra.ExactArgs(2),
	RunE:  runDebateResolve,
}

var debateRefundableCmd = &cobra.Command{
	Use:   "refundable <id>",
	Short: "Call a debate off and open refunds",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebateRefundable,
}

var debateRefundsCmd = &cobra.Command{
	Use:   "refunds <id>",
	Short: "List refund status of every bettor",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebateRefunds,
}

var debateSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Process outstanding refunds of every refundable debate once",
	Args:  cobra.NoArgs,
	RunE:  runDebateSweep,
}

func init() {
	rootCmd.AddCommand(debateCmd)
	debateCmd.AddCommand(debateCreateCmd)
	debateCmd.AddCommand(debateShowCmd)
	debateCmd.AddCommand(debateResolveCmd)
	debateCmd.AddCommand(debateRefundableCmd)
	debateCmd.AddCommand(debateRefundsCmd)
	debateCmd.AddCommand(debateSweepCmd)

	debateCreateCmd.Flags().Int64("fee-bps", -1, "platform fee in basis points (default from engine.default_fee_bps)")
	debateCreateCmd.Flags().Duration("opens-in", 0, "delay until betting opens")
	debateCreateCmd.Flags().Duration("starts-in", 0, "delay until the debate starts")
	debateCreateCmd.Flags().Duration("duration", time.Hour, "debate duration")
}

func parseID(s, what string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

func runDebateCreate(cmd *cobra.Command, args []string) error {
	var ids [3]uint64
	for i, what := range []string{"debate id", "agent", "agent"} {
		id, err := parseID(args[i], what)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	cfg, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	fee := int64(cfg.Engine.DefaultFeeBps)
	if v, _ := cmd.Flags().GetInt64("fee-bps"); v >= 0 {
		fee = v
	}
	if fee > service.MaxFeeBps {
		return fmt.Errorf("fee-bps must be at most %d", service.MaxFeeBps)
	}
	opensIn, _ := cmd.Flags().GetDuration("opens-in")
	startsIn, _ := cmd.Flags().GetDuration("starts-in")
	duration, _ := cmd.Flags().GetDuration("duration")

	now := time.Now()
	d, err := engine.CreateDebate(cmd.Context(), service.From(engine.Moderator()), service.DebateParams{
		ID:       ids[0],
		AgentA:   ids[1],
		AgentB:   ids[2],
		FeeBps:   uint32(fee),
		PublicTs: now.Add(opensIn).Unix(),
		StartTs:  now.Add(startsIn).Unix(),
		Duration: int64(duration.Seconds()),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created debate %d: agent %d vs agent %d\n", d.ID, d.AgentA, d.AgentB)
	return nil
}

func runDebateShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "debate id")
	if err != nil {
		return err
	}

	_, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	return printDebate(cmd.Context(), cmd.OutOrStdout(), engine, id)
}

func printDebate(ctx context.Context, out io.Writer, engine *service.Engine, id uint64) error {
	d, err := engine.GetDebate(ctx, id)
	if err != nil {
		return err
	}
	totals, err := engine.PoolTotals(ctx, id)
	if err != nil {
		return err
	}
	bettors, err := engine.Bettors(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Debate %d\n", d.ID)
	fmt.Fprintf(out, "  state:       %s\n", d.State)
	if d.WinningAgentID != 0 {
		fmt.Fprintf(out, "  winner:      agent %d\n", d.WinningAgentID)
	}
	fmt.Fprintf(out, "  fee:         %d bps\n", d.FeeBps)
	fmt.Fprintf(out, "  opens:       %s\n", humanize.Time(time.Unix(d.PublicTs, 0)))
	fmt.Fprintf(out, "  agent %d:   %s\n", d.AgentA, units.Format(totals[d.AgentA]))
	fmt.Fprintf(out, "  agent %d:   %s\n", d.AgentB, units.Format(totals[d.AgentB]))
	fmt.Fprintf(out, "  total pool:  %s\n", units.Format(new(big.Int).Add(totals[d.AgentA], totals[d.AgentB])))
	fmt.Fprintf(out, "  bettors:     %d\n", len(bettors))
	return nil
}

func runDebateResolve(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "debate id")
	if err != nil {
		return err
	}
	winner, err := parseID(args[1], "agent")
	if err != nil {
		return err
	}

	_, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := engine.ResolveDebate(cmd.Context(), service.From(engine.Moderator()), id, winner); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Resolved debate %d: agent %d won\n", id, winner)
	return nil
}

func runDebateRefundable(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "debate id")
	if err != nil {
		return err
	}

	_, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := engine.MarkRefundable(cmd.Context(), service.From(engine.Moderator()), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Debate %d is now refundable\n", id)
	return nil
}

func runDebateRefunds(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "debate id")
	if err != nil {
		return err
	}

	_, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if _, err := engine.GetDebate(ctx, id); err != nil {
		return err
	}
	infos, err := engine.GetUsersRefundInfo(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintf(out, "Debate %d has no bettors\n", id)
		return nil
	}
	for _, info := range infos {
		status := "pending"
		if info.Refunded {
			status = "refunded"
		}
		fmt.Fprintf(out, "%s  %s  %s\n", info.User.Hex(), units.Format(info.Amount), status)
	}
	return nil
}

func runDebateSweep(cmd *cobra.Command, args []string) error {
	_, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	n := service.NewRefundWorker(engine, 0).RunOnce(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d refunds\n", n)
	return nil
}
