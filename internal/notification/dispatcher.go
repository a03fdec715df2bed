package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"homly-notify/internal/logging"
)

// Delivery statuses recorded for each dispatch.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Outcome describes what happened to one dispatch.
type Outcome struct {
	Status string
	Detail string
}

// Delivered reports whether the provider accepted the message.
func (o Outcome) Delivered() bool {
	return o.Status == StatusSuccess
}

// Dispatcher delivers formatted messages on a best-effort basis: at most
// one attempt per call, and failures are logged and absorbed.
type Dispatcher struct {
	sender      MessageSender
	credentials Credentials
	logger      *logrus.Logger
}

// NewDispatcher creates a Dispatcher that sends through sender using creds.
func NewDispatcher(sender MessageSender, creds Credentials, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{
		sender:      sender,
		credentials: creds,
		logger:      logger,
	}
}

// Configured reports whether the dispatcher has usable credentials.
func (d *Dispatcher) Configured() bool {
	return d.credentials.Configured()
}

// Channel is the sender's channel name.
func (d *Dispatcher) Channel() string {
	return d.sender.Channel()
}

// Dispatch delivers message and reports whether it was accepted.
func (d *Dispatcher) Dispatch(ctx context.Context, message string) bool {
	return d.Deliver(ctx, message).Delivered()
}

// Deliver is Dispatch with the outcome detail kept for history records.
func (d *Dispatcher) Deliver(ctx context.Context, message string) (out Outcome) {
	if !d.credentials.Configured() {
		d.logger.WithField("channel", d.sender.Channel()).
			Warn("notification skipped: bot token or chat id not configured")
		return Outcome{Status: StatusSkipped, Detail: "credentials not configured"}
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"channel": d.sender.Channel(),
				"panic":   r,
			}).Error("notification sender panicked")
			out = Outcome{Status: StatusFailed, Detail: d.redact(fmt.Sprintf("sender panic: %v", r))}
		}
	}()

	err := d.sender.SendMessage(ctx, d.credentials.BotToken, SendMessageRequest{
		ChatID:    d.credentials.ChatID,
		Text:      message,
		ParseMode: ParseModeHTML,
	})
	if err != nil {
		entry := d.logger.WithField("channel", d.sender.Channel())
		detail := err.Error()

		var perr *ProviderError
		if errors.As(err, &perr) && perr.Description != "" {
			detail = perr.Description
			entry = entry.WithFields(logrus.Fields{
				"status_code":    perr.StatusCode,
				"provider_error": perr.Description,
			})
		} else {
			entry = entry.WithError(err)
		}
		entry.Error("notification delivery failed")
		return Outcome{Status: StatusFailed, Detail: d.redact(detail)}
	}

	d.logger.WithField("channel", d.sender.Channel()).Info("notification delivered")
	return Outcome{Status: StatusSuccess, Detail: "delivered"}
}

// redact masks the bot token in text that ends up in history records,
// which the log hook never sees.
func (d *Dispatcher) redact(text string) string {
	if token := d.credentials.BotToken; token != "" {
		text = strings.ReplaceAll(text, token, "****")
	}
	return logging.RedactSensitiveData(text)
}
