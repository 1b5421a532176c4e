package main

import (
	"fmt"

	"github.com/shenikar/civic_reporting_system/internal/config"
	"github.com/shenikar/civic_reporting_system/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "civic",
	Short: "Civic issue reporting service",
	Long: `civic runs the issue reporting API with push notifications and a websocket
event stream, and provides maintenance commands for the schema and accounts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(tokenCmd)
}

// bootstrap загружает конфигурацию и создает логгер
func bootstrap() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat), nil
}
