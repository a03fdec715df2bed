package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"homly-notify/internal/message"
	"homly-notify/internal/svc"
)

var sendFile string

var errNotDelivered = errors.New("notification was not delivered, see log output")

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Format, dispatch and record a notification",
	Long: `Runs the same path as the server trigger, synchronously. The attempt is
recorded in the configured history database. A missing bot token or chat id
is not an error for the server, but send reports it as not delivered.`,
}

var sendOrderCmd = &cobra.Command{
	Use:   "order",
	Short: "Send an order notification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var order message.OrderNotificationInput
		if err := readPayload(cmd, sendFile, &order); err != nil {
			return err
		}
		return runSend(cmd, func(ctx context.Context, sc *svc.ServiceContext) bool {
			return sc.NotificationService.NotifyOrder(ctx, &order)
		})
	},
}

var sendServiceRequestCmd = &cobra.Command{
	Use:   "service-request",
	Short: "Send a service request notification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var req message.ServiceRequestNotificationInput
		if err := readPayload(cmd, sendFile, &req); err != nil {
			return err
		}
		return runSend(cmd, func(ctx context.Context, sc *svc.ServiceContext) bool {
			return sc.NotificationService.NotifyServiceRequest(ctx, &req)
		})
	},
}

func init() {
	sendCmd.PersistentFlags().StringVarP(&sendFile, "file", "f", "-", "JSON payload file, - for stdin")
	sendCmd.AddCommand(sendOrderCmd, sendServiceRequestCmd)
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, notify func(context.Context, *svc.ServiceContext) bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	sc, err := svc.NewServiceContext(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Close()

	delivered := notify(cmd.Context(), sc)
	fmt.Fprintf(cmd.OutOrStdout(), "delivered: %t\n", delivered)
	if !delivered {
		return errNotDelivered
	}
	return nil
}
