package commands

import (
	"fmt"

	"github.com/manish3089/Token-Generator/pkg/config"
	"github.com/manish3089/Token-Generator/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	envFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "token-generator",
	Short: "Sharekhan access token generator",
	Long: `Generates Sharekhan API access tokens and downloads historical market data.

Features:
• Browser login flow with encrypted token exchange and plaintext fallback
• AES-256-GCM credential codec
• Historical OHLCV download with normalization and CSV export
• Optional Redis token cache, NATS events and InfluxDB storage`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment from this file instead of searching for .env")
}

// loadConfig reads the .env file, then the environment. Notes go to the
// command's stderr so stdout stays clean for piping.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else if _, err := config.LoadDotEnv(); err != nil {
		// .env is optional
		fmt.Fprintf(cmd.ErrOrStderr(), "Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
