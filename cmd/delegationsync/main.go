package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"delegation_sync/internal/config"
	"delegation_sync/internal/logger"
)

const programName = "delegationsync"

var globalFlags = struct {
	debug bool
}{}

// commonRun loads the environment and configures logging for a command.
func commonRun() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if globalFlags.debug {
		level = "debug"
	}
	if err := logger.Setup(cfg.LogFile, level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Keeps a delegation dashboard's data in sync with the backend",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.AddCommand(
		watchCommand(),
		delegationsCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		logrus.WithField("component", programName).Error(err)
		os.Exit(1)
	}
}
