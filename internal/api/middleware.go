package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"homly-notify/internal/auth"
	apperrors "homly-notify/internal/errors"
	"homly-notify/internal/logging"
)

const (
	triggerTokenHeader = "X-Trigger-Token"
	requestIDHeader    = "X-Request-ID"
	requestIDKey       = "request_id"
	adminUsernameKey   = "admin_username"
)

// RequestIDMiddleware propagates X-Request-ID, generating one when absent.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()
	}
}

// LoggerMiddleware logs one entry per completed request.
func LoggerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := requestLogger(c, logger).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Milliseconds(),
			"size":     c.Writer.Size(),
			"ip":       c.ClientIP(),
		})

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}

// RecoveryMiddleware turns a handler panic into a 500 envelope.
func RecoveryMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestLogger(c, logger).WithFields(logrus.Fields{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"panic":  err,
				}).Error("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					ErrorResponse(apperrors.ErrCodeInternal, "Internal server error"))
			}
		}()

		c.Next()
	}
}

// RateLimitMiddleware applies one token bucket shared by every client.
func RateLimitMiddleware(rps int, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				ErrorResponse(apperrors.ErrCodeRateLimit, "Too many requests"))
			return
		}
		c.Next()
	}
}

// ValidationMiddleware rejects bodies that are not JSON.
func ValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ct := c.ContentType(); ct != "" && ct != gin.MIMEJSON {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, ErrorResponse("UNSUPPORTED_MEDIA_TYPE",
					fmt.Sprintf("Content-Type '%s' is not supported", ct)))
				return
			}
		}
		c.Next()
	}
}

// TokenVerifier validates admin bearer tokens. auth.Service satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware requires a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(verifier TokenVerifier, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := requestLogger(c, logger).WithField("path", c.Request.URL.Path)

		header := c.GetHeader("Authorization")
		if header == "" {
			log.Warn("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				ErrorResponse(apperrors.ErrCodeUnauthorized, "Missing authorization header"))
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			log.Warn("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse("INVALID_TOKEN_FORMAT",
				"Authorization header must be in format: Bearer <token>"))
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			log.WithField("error", err.Error()).Warn("token validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				ErrorResponse(apperrors.ErrCodeUnauthorized, "Invalid or expired token"))
			return
		}

		c.Set(adminUsernameKey, claims.Username)
		log.WithField("username", claims.Username).Debug("authentication successful")

		c.Next()
	}
}

// TriggerTokenMiddleware requires X-Trigger-Token to equal token. An empty
// token refuses every request with 503.
func TriggerTokenMiddleware(token string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := requestLogger(c, logger).WithField("path", c.Request.URL.Path)

		if token == "" {
			log.Warn("trigger token not configured, rejecting trigger")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				ErrorResponse(apperrors.ErrCodeNotConfigured, "Trigger token is not configured"))
			return
		}

		got := c.GetHeader(triggerTokenHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Warn("invalid trigger token")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				ErrorResponse(apperrors.ErrCodeUnauthorized, "Missing or invalid trigger token"))
			return
		}

		c.Next()
	}
}

func requestLogger(c *gin.Context, logger *logrus.Logger) *logrus.Entry {
	return logging.WithRequestID(logrus.NewEntry(logger), c.GetString(requestIDKey))
}
