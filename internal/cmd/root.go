package cmd

import (
	"fmt"

	"debatebet/internal/config"
	"debatebet/internal/service"
	"debatebet/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "debatebet",
	Short: "Debate wagering and settlement engine",
	Long: `Debatebet custodies stakes placed on one of two agents in a debate,
pays out the winning side after resolution and refunds every bettor
when a debate is called off.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/app/config")
	}

	config.BindEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// openEngine loads the configuration and opens the engine on its database.
// The caller closes the returned store.
func openEngine() (*config.Config, *storage.Store, *service.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	engine := service.NewEngine(store, cfg.Engine.OwnerAddress(), cfg.Engine.ModeratorAddress())
	return cfg, store, engine, nil
}
