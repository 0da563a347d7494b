package cmd

import (
	"fmt"

	"debatebet/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View debatebet configuration",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func redact(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "********"
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults and %s_* environment)\n", config.EnvPrefix)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "server:")
	fmt.Fprintf(out, "  port: %s\n", cfg.Server.Port)
	fmt.Fprintln(out, "database:")
	fmt.Fprintf(out, "  path: %s\n", cfg.Database.Path)
	fmt.Fprintln(out, "engine:")
	fmt.Fprintf(out, "  owner: %s\n", cfg.Engine.OwnerAddress().Hex())
	fmt.Fprintf(out, "  moderator: %s\n", cfg.Engine.ModeratorAddress().Hex())
	fmt.Fprintf(out, "  default_fee_bps: %d\n", cfg.Engine.DefaultFeeBps)
	fmt.Fprintln(out, "auth:")
	fmt.Fprintf(out, "  secret: %s\n", redact(cfg.Auth.Secret))
	fmt.Fprintf(out, "  max_age: %s\n", cfg.Auth.MaxAge)
	fmt.Fprintln(out, "telegram:")
	fmt.Fprintf(out, "  token: %s\n", redact(cfg.Telegram.Token))
	fmt.Fprintf(out, "  channel_id: %s\n", cfg.Telegram.ChannelID)
	fmt.Fprintf(out, "  web_app_url: %s\n", cfg.Telegram.WebAppURL)
	fmt.Fprintln(out, "worker:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Worker.Enabled)
	fmt.Fprintf(out, "  interval: %s\n", cfg.Worker.Interval)
	fmt.Fprintln(out, "cache:")
	fmt.Fprintf(out, "  size: %d\n", cfg.Cache.Size)

	return nil
}
