package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "homly-notify/internal/errors"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func SuccessResponse(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

func ErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

var statusByCode = map[string]int{
	apperrors.ErrCodeValidation:        http.StatusBadRequest,
	apperrors.ErrCodeContractViolation: http.StatusBadRequest,
	apperrors.ErrCodeNotFound:          http.StatusNotFound,
	apperrors.ErrCodeUnauthorized:      http.StatusUnauthorized,
	apperrors.ErrCodeRateLimit:         http.StatusTooManyRequests,
	apperrors.ErrCodeNotConfigured:     http.StatusServiceUnavailable,
	apperrors.ErrCodeExternal:          http.StatusBadGateway,
}

// respondError writes err as an envelope. AppErrors keep their code and
// message; database and unknown errors are reported generically.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, ErrorResponse(apperrors.ErrCodeInternal, "Internal server error"))
		return
	}

	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	msg := appErr.Message
	if appErr.Code == apperrors.ErrCodeDatabase {
		msg = "Database operation failed"
	}
	c.JSON(status, ErrorResponse(appErr.Code, msg))
}
