package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"homly-notify/internal/message"
)

var formatFile string

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Render a notification payload without sending it",
}

var formatOrderCmd = &cobra.Command{
	Use:   "order",
	Short: "Render an order notification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		var order message.OrderNotificationInput
		if err := readPayload(cmd, formatFile, &order); err != nil {
			return err
		}

		text, err := formatter.FormatOrderMessage(&order)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var formatServiceRequestCmd = &cobra.Command{
	Use:   "service-request",
	Short: "Render a service request notification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		var req message.ServiceRequestNotificationInput
		if err := readPayload(cmd, formatFile, &req); err != nil {
			return err
		}

		text, err := formatter.FormatServiceRequestMessage(&req)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	formatCmd.PersistentFlags().StringVarP(&formatFile, "file", "f", "-", "JSON payload file, - for stdin")
	formatCmd.AddCommand(formatOrderCmd, formatServiceRequestCmd)
	rootCmd.AddCommand(formatCmd)
}

func newFormatter() (*message.Formatter, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Notification.Location()
	if err != nil {
		return nil, err
	}
	return message.NewFormatter(message.Options{
		PlatformName:   cfg.Notification.PlatformName,
		CurrencySymbol: cfg.Notification.CurrencySymbol,
		Location:       loc,
	}), nil
}
