package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/restock-alert/restock-alert/internal/logging"
)

var (
	dbPath   string
	logMode  string
	logLevel string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "restock",
	Short: "restock-alert - back-in-stock SMS sign-ups for storefront widgets",
	Long: `restock-alert runs the back-in-stock SMS widget outside the browser.

It can relay widget sign-ups and analytics beacons (serve), drive a widget
from a saved storefront page in the terminal (subscribe), and inspect the
widgets and merchant settings a page exposes (widgets, config).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logMode, logLevel)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env must be applied before the flag defaults below read the environment.
	loadDotEnv()

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("RA_DB_PATH", "./restock.db"), "database path")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", getEnvOrDefault("RA_LOG_MODE", "production"), "log format: production or development")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", getEnvOrDefault("RA_LOG_LEVEL", "warn"), "minimum log level")
}

// loadDotEnv loads ./.env without overriding variables already set. A
// missing file is fine; anything else is worth a warning.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
