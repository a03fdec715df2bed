package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"homly-notify/internal/logging"
	"homly-notify/internal/message"
	"homly-notify/internal/notification"
	"homly-notify/internal/storage"

	"github.com/sirupsen/logrus"
)

// NotificationService formats domain events, dispatches them, and keeps a
// history record of every attempt.
type NotificationService struct {
	formatter  *message.Formatter
	dispatcher *notification.Dispatcher
	repository storage.Repository
	logger     *logrus.Logger

	inflight sync.WaitGroup
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	formatter *message.Formatter,
	dispatcher *notification.Dispatcher,
	repository storage.Repository,
	logger *logrus.Logger,
) *NotificationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &NotificationService{
		formatter:  formatter,
		dispatcher: dispatcher,
		repository: repository,
		logger:     logger,
	}
}

// Configured reports whether delivery credentials are present.
func (s *NotificationService) Configured() bool {
	return s.dispatcher.Configured()
}

// NotifyOrder formats and dispatches an order alert. The result is true only
// when the provider accepted the message.
func (s *NotificationService) NotifyOrder(ctx context.Context, order *message.OrderNotificationInput) bool {
	var ref string
	if order != nil {
		ref = order.ID
	}

	text, err := s.formatter.FormatOrderMessage(order)
	return s.deliverAndRecord(ctx, storage.NotificationKindOrder, ref,
		fmt.Sprintf("Order %s", message.ShortCode(ref)), text, err)
}

// NotifyServiceRequest is NotifyOrder for service requests.
func (s *NotificationService) NotifyServiceRequest(ctx context.Context, req *message.ServiceRequestNotificationInput) bool {
	var ref string
	if req != nil {
		ref = req.ID
	}

	text, err := s.formatter.FormatServiceRequestMessage(req)
	return s.deliverAndRecord(ctx, storage.NotificationKindServiceRequest, ref,
		fmt.Sprintf("Service Request %s", message.ShortCode(ref)), text, err)
}

// SendTest dispatches a fixed message so operators can check credentials.
func (s *NotificationService) SendTest(ctx context.Context) bool {
	text := fmt.Sprintf("✅ <b>Test notification</b>\nSent at %s", time.Now().UTC().Format(time.RFC3339))
	return s.deliverAndRecord(ctx, storage.NotificationKindTest, "", "Test notification", text, nil)
}

// TriggerOrder runs NotifyOrder in the background and returns at once. The
// call is detached from any request context and is never cancelled.
func (s *NotificationService) TriggerOrder(order *message.OrderNotificationInput) {
	s.trigger(func(ctx context.Context) { s.NotifyOrder(ctx, order) })
}

// TriggerServiceRequest runs NotifyServiceRequest in the background.
func (s *NotificationService) TriggerServiceRequest(req *message.ServiceRequestNotificationInput) {
	s.trigger(func(ctx context.Context) { s.NotifyServiceRequest(ctx, req) })
}

// Wait blocks until every triggered notification has finished.
func (s *NotificationService) Wait() {
	s.inflight.Wait()
}

func (s *NotificationService) trigger(run func(ctx context.Context)) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithField("panic", r).Error("notification trigger panicked")
			}
		}()
		run(context.Background())
	}()
}

func (s *NotificationService) deliverAndRecord(ctx context.Context, kind, ref, title, text string, formatErr error) bool {
	log := logging.WithOperation(s.logger.WithFields(logrus.Fields{
		"kind":         kind,
		"reference_id": ref,
		"channel":      s.dispatcher.Channel(),
	}), "notify_"+kind)

	record := &storage.Notification{
		Kind:        kind,
		ReferenceID: ref,
		Channel:     s.dispatcher.Channel(),
		Title:       title,
		Content:     text,
		CreatedAt:   time.Now(),
	}

	var delivered bool
	if formatErr != nil {
		log.WithError(formatErr).Error("notification not formatted")
		record.Status = storage.NotificationStatusFailed
		record.Result = formatErr.Error()
	} else {
		outcome := s.dispatcher.Deliver(ctx, text)
		record.Status = outcome.Status
		record.Result = outcome.Detail
		delivered = outcome.Delivered()
	}

	if s.repository == nil {
		return delivered
	}
	if err := s.repository.SaveNotification(ctx, record); err != nil {
		log.WithError(err).Error("failed to save notification record")
		return delivered
	}

	log.WithFields(logrus.Fields{
		"id":     record.ID,
		"status": record.Status,
	}).Debug("notification record saved")

	return delivered
}
