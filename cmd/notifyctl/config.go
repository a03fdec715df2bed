package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"homly-notify/internal/notification"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and report whether Telegram can deliver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		tg := cfg.Notification.Telegram
		creds := notification.Credentials{BotToken: tg.BotToken, ChatID: tg.ChatID}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "configuration valid")
		fmt.Fprintf(out, "  server:     %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Fprintf(out, "  database:   %s\n", cfg.Database.Path)
		fmt.Fprintf(out, "  timezone:   %s\n", cfg.Notification.Timezone)
		fmt.Fprintf(out, "  bot token:  %s\n", credentialState(tg.BotToken, notification.PlaceholderToken))
		fmt.Fprintf(out, "  chat id:    %s\n", credentialState(tg.ChatID, notification.PlaceholderChatID))
		if cfg.Security.TriggerToken == "" {
			fmt.Fprintln(out, "  trigger:    missing, /api/notify endpoints disabled")
		} else {
			fmt.Fprintln(out, "  trigger:    set")
		}
		if creds.Configured() {
			fmt.Fprintln(out, "telegram: configured")
		} else {
			fmt.Fprintln(out, "telegram: not configured, notifications will be skipped")
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func credentialState(value, placeholder string) string {
	switch v := strings.TrimSpace(value); v {
	case "":
		return "missing"
	case placeholder:
		return "placeholder"
	default:
		return "set"
	}
}
