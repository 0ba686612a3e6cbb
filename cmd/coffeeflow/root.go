package main

import (
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/0xVanfer/tg-flow/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "coffeeflow",
	Short:         "Coffee credit bot for Telegram",
	Long:          "Tracks who owes what for office coffee and walks creditors through settling it, one Telegram dialog at a time.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML or JSON configuration")
}

// loadConfig reads the configuration file, falling back to defaults plus environment
// overrides when the file does not exist and --config was not given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err == nil {
		return cfg, nil
	}
	if cmd.Flags().Changed("config") || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = config.NewConfig()
	cfg.ApplyEnv()
	return cfg, nil
}
