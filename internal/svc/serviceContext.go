package svc

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"homly-notify/internal/auth"
	"homly-notify/internal/config"
	"homly-notify/internal/httpclient"
	"homly-notify/internal/message"
	"homly-notify/internal/notification"
	"homly-notify/internal/service"
	"homly-notify/internal/storage"
)

// ServiceContext holds the process-wide dependencies shared by the
// server and the CLI.
type ServiceContext struct {
	Config              *config.Config
	Logger              *logrus.Logger
	Repository          storage.Repository
	Dispatcher          *notification.Dispatcher
	Formatter           *message.Formatter
	NotificationService *service.NotificationService
	AuthService         auth.Service
}

// NewServiceContext wires every dependency from cfg. Credentials are read
// once here; missing ones only produce a warning.
func NewServiceContext(cfg *config.Config, logger *logrus.Logger) (*ServiceContext, error) {
	repository, err := storage.NewSqliteRepository(storage.SqliteConfig{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		MaxRetries:      3,
		RetryDelay:      100 * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	return NewServiceContextWithRepository(cfg, logger, repository)
}

// NewServiceContextWithRepository is NewServiceContext over an existing
// repository.
func NewServiceContextWithRepository(cfg *config.Config, logger *logrus.Logger, repository storage.Repository) (*ServiceContext, error) {
	loc, err := cfg.Notification.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid notification timezone: %w", err)
	}

	formatter := message.NewFormatter(message.Options{
		PlatformName:   cfg.Notification.PlatformName,
		CurrencySymbol: cfg.Notification.CurrencySymbol,
		Location:       loc,
	})

	telegram := cfg.Notification.Telegram
	sender := notification.NewTelegramSender(telegram.BaseURL, httpclient.New(cfg.Notification.HTTP), logger)
	dispatcher := notification.NewDispatcher(sender, notification.Credentials{
		BotToken: telegram.BotToken,
		ChatID:   telegram.ChatID,
	}, logger)

	if dispatcher.Configured() {
		logger.WithField("channel", dispatcher.Channel()).Info("notification dispatcher initialized")
	} else {
		logger.Warn("telegram bot token or chat id not configured, notifications will be skipped")
	}

	return &ServiceContext{
		Config:              cfg,
		Logger:              logger,
		Repository:          repository,
		Dispatcher:          dispatcher,
		Formatter:           formatter,
		NotificationService: service.NewNotificationService(formatter, dispatcher, repository, logger),
		AuthService: auth.NewService(
			cfg.Admin.Username,
			cfg.Admin.PasswordHash,
			cfg.Admin.TokenSecret,
			cfg.Admin.TokenDuration,
		),
	}, nil
}

// Close waits for in-flight notifications, then closes the repository.
func (s *ServiceContext) Close() error {
	s.NotificationService.Wait()
	return s.Repository.Close()
}
