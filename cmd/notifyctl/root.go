package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"homly-notify/internal/config"
	"homly-notify/internal/logging"
)

var version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "notifyctl",
	Short: "Render and send Homly order and service request notifications",
	Long: `notifyctl runs the notification path outside the server: render a
payload to check the message, push it through Telegram, or check whether the
current configuration can deliver at all.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file (defaults and environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for the notification path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Logging.Level = logLevel
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	logger, err := logging.SetupLogger(cfg.Logging.Level, "text")
	if err != nil {
		return nil, err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	logger.AddHook(&logging.SensitiveHook{})
	return logger, nil
}

// readPayload decodes the JSON document at path into v. "-" reads stdin.
func readPayload(cmd *cobra.Command, path string, v interface{}) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode payload %s: %w", path, err)
	}
	return nil
}
