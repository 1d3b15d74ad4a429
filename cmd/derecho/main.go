package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/NB-T/derecho/internal/cmd/logcmd"
	cfgpkg "github.com/NB-T/derecho/internal/config"
	logpkg "github.com/NB-T/derecho/pkg/log"
)

func main() {
	// initialize logger for CLI
	// Respect DERECHO_LOG_LEVEL and DERECHO_LOG_FORMAT
	logger, err := logpkg.ApplyConfig(logpkg.Config{
		Level:  os.Getenv("DERECHO_LOG_LEVEL"),
		Format: os.Getenv("DERECHO_LOG_FORMAT"),
	})
	if err != nil {
		logger = logpkg.NewLogger()
	}

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "derecho",
		Short: "Derecho persistence CLI",
		Long:  "Derecho stores versioned append-only logs. This CLI operates a local data directory.",
	}
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if lv, _ := cmd.Flags().GetString("log-level"); lv != "" {
			if parsed, err := logpkg.ParseLevel(lv); err == nil {
				logger.SetLevel(parsed)
			}
		}
	}

	// config helpers
	configCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	configCmd.AddCommand(&cobra.Command{
		Use:   "default-dir",
		Short: "Print the default data directory",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(cfgpkg.DefaultDataDir())
		},
	})
	rootCmd.AddCommand(configCmd)

	// log commands
	rootCmd.AddCommand(logcmd.NewLogCommand(logger))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
