package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "homly-notify/internal/errors"
	"homly-notify/internal/logging"
	"homly-notify/internal/message"
	"homly-notify/internal/storage"
)

// Notifier is the notification surface the handlers drive.
// *service.NotificationService satisfies it.
type Notifier interface {
	TriggerOrder(order *message.OrderNotificationInput)
	TriggerServiceRequest(req *message.ServiceRequestNotificationInput)
	SendTest(ctx context.Context) bool
	Configured() bool
}

// Handlers serves the trigger endpoints called by the commerce backend
// once an order or service request has been committed.
type Handlers struct {
	notifier   Notifier
	repository storage.Repository
	logger     *logrus.Logger
}

func NewHandlers(notifier Notifier, repository storage.Repository, logger *logrus.Logger) *Handlers {
	return &Handlers{
		notifier:   notifier,
		repository: repository,
		logger:     logger,
	}
}

// TriggerResponse acknowledges an accepted trigger.
type TriggerResponse struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Configured bool   `json:"configured"`
}

// NotifyOrder handles POST /api/notify/orders.
func (h *Handlers) NotifyOrder(c *gin.Context) {
	log := logging.WithOperation(requestLogger(c, h.logger), "notify_order")

	var order message.OrderNotificationInput
	if err := c.ShouldBindJSON(&order); err != nil {
		log.WithField("error", err.Error()).Warn("invalid order payload")
		c.JSON(http.StatusBadRequest, ErrorResponse(apperrors.ErrCodeValidation, err.Error()))
		return
	}
	if err := order.Validate(); err != nil {
		log.WithField("error", err.Error()).Warn("order payload rejected")
		respondError(c, err)
		return
	}

	h.notifier.TriggerOrder(&order)

	log.WithField("reference_id", order.ID).Info("order notification triggered")
	c.JSON(http.StatusAccepted, SuccessResponse(TriggerResponse{
		ID:         order.ID,
		Code:       message.ShortCode(order.ID),
		Configured: h.notifier.Configured(),
	}))
}

// NotifyServiceRequest handles POST /api/notify/service-requests.
func (h *Handlers) NotifyServiceRequest(c *gin.Context) {
	log := logging.WithOperation(requestLogger(c, h.logger), "notify_service_request")

	var req message.ServiceRequestNotificationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.WithField("error", err.Error()).Warn("invalid service request payload")
		c.JSON(http.StatusBadRequest, ErrorResponse(apperrors.ErrCodeValidation, err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		log.WithField("error", err.Error()).Warn("service request payload rejected")
		respondError(c, err)
		return
	}

	h.notifier.TriggerServiceRequest(&req)

	log.WithField("reference_id", req.ID).Info("service request notification triggered")
	c.JSON(http.StatusAccepted, SuccessResponse(TriggerResponse{
		ID:         req.ID,
		Code:       message.ShortCode(req.ID),
		Configured: h.notifier.Configured(),
	}))
}

// Health handles GET /healthz. An unconfigured notifier is reported but
// does not make the service unhealthy.
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	database := "ok"
	if err := h.repository.Ping(ctx); err != nil {
		requestLogger(c, h.logger).WithField("error", err.Error()).Error("health check: database ping failed")
		status = http.StatusServiceUnavailable
		database = "unavailable"
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data: gin.H{
			"database":            database,
			"telegram_configured": h.notifier.Configured(),
		},
	})
}
