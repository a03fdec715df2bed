package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"homly-notify/internal/auth"
	apperrors "homly-notify/internal/errors"
	"homly-notify/internal/storage"
)

// AdminHandlers serves the operator endpoints for notification history.
type AdminHandlers struct {
	authService auth.Service
	notifier    Notifier
	repository  storage.Repository
	logger      *logrus.Logger
}

func NewAdminHandlers(authService auth.Service, notifier Notifier, repository storage.Repository, logger *logrus.Logger) *AdminHandlers {
	return &AdminHandlers{
		authService: authService,
		notifier:    notifier,
		repository:  repository,
		logger:      logger,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/admin/login.
func (h *AdminHandlers) Login(c *gin.Context) {
	log := requestLogger(c, h.logger)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.WithField("error", err.Error()).Warn("login request validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse(apperrors.ErrCodeValidation, err.Error()))
		return
	}

	session, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			log.WithField("username", req.Username).Warn("invalid credentials")
			c.JSON(http.StatusUnauthorized, ErrorResponse("INVALID_CREDENTIALS", "Invalid username or password"))
			return
		}
		log.WithField("error", err.Error()).Error("login failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse(apperrors.ErrCodeInternal, "Failed to log in"))
		return
	}

	log.WithField("username", session.Username).Info("admin logged in")
	c.JSON(http.StatusOK, SuccessResponse(LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}))
}

// ListNotifications handles GET /api/admin/notifications. With kind and
// reference_id it returns every attempt for that record; otherwise the
// newest `limit` records.
func (h *AdminHandlers) ListNotifications(c *gin.Context) {
	log := requestLogger(c, h.logger)
	ctx := c.Request.Context()

	var (
		notifications []*storage.Notification
		err           error
	)

	kind := strings.TrimSpace(c.Query("kind"))
	ref := strings.TrimSpace(c.Query("reference_id"))
	switch {
	case ref != "" && kind == "":
		c.JSON(http.StatusBadRequest, ErrorResponse(apperrors.ErrCodeValidation, "kind is required with reference_id"))
		return
	case ref != "":
		notifications, err = h.repository.ListNotificationsByReference(ctx, kind, ref)
	default:
		limit := 0
		if v := c.Query("limit"); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil || limit < 0 {
				c.JSON(http.StatusBadRequest, ErrorResponse(apperrors.ErrCodeValidation, "limit must be a non-negative integer"))
				return
			}
		}
		notifications, err = h.repository.ListNotifications(ctx, limit)
	}
	if err != nil {
		log.WithField("error", err.Error()).Error("failed to fetch notifications")
		respondError(c, err)
		return
	}

	if notifications == nil {
		notifications = []*storage.Notification{}
	}

	log.WithField("count", len(notifications)).Debug("notifications fetched")
	c.JSON(http.StatusOK, SuccessResponse(gin.H{"notifications": notifications}))
}

// GetNotification handles GET /api/admin/notifications/:id.
func (h *AdminHandlers) GetNotification(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse(apperrors.ErrCodeValidation, "id must be a positive integer"))
		return
	}

	n, err := h.repository.GetNotification(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotificationNotFound) {
		respondError(c, apperrors.NewNotFoundError("notification", c.Param("id")))
		return
	}
	if err != nil {
		requestLogger(c, h.logger).WithFields(logrus.Fields{
			"id":    id,
			"error": err.Error(),
		}).Error("failed to fetch notification")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse(n))
}

// NotificationStats handles GET /api/admin/notifications/stats.
func (h *AdminHandlers) NotificationStats(c *gin.Context) {
	counts, err := h.repository.CountNotificationsByStatus(c.Request.Context())
	if err != nil {
		requestLogger(c, h.logger).WithField("error", err.Error()).Error("failed to count notifications")
		respondError(c, err)
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	c.JSON(http.StatusOK, SuccessResponse(gin.H{
		"by_status":           counts,
		"total":               total,
		"telegram_configured": h.notifier.Configured(),
	}))
}

// SendTestNotification handles POST /api/admin/notifications/test. The
// dispatch runs synchronously so the operator sees the outcome.
func (h *AdminHandlers) SendTestNotification(c *gin.Context) {
	if !h.notifier.Configured() {
		respondError(c, apperrors.NewNotConfiguredError("telegram"))
		return
	}

	delivered := h.notifier.SendTest(c.Request.Context())

	requestLogger(c, h.logger).WithFields(logrus.Fields{
		"username":  c.GetString(adminUsernameKey),
		"delivered": delivered,
	}).Info("test notification sent")

	c.JSON(http.StatusOK, SuccessResponse(gin.H{"delivered": delivered}))
}
