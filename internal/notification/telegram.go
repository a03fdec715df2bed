package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "homly-notify/internal/errors"
	"homly-notify/internal/httpclient"
	"homly-notify/internal/logging"
)

// DefaultTelegramBaseURL is the Bot API root.
const DefaultTelegramBaseURL = "https://api.telegram.org"

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 64 << 10

// TelegramSender implements MessageSender against the Telegram Bot API.
type TelegramSender struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// telegramResponse is the envelope every Bot API method returns.
type telegramResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// NewTelegramSender creates a sender. An empty baseURL selects
// DefaultTelegramBaseURL and a nil client the pooled default client.
func NewTelegramSender(baseURL string, client *http.Client, logger *logrus.Logger) *TelegramSender {
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	if client == nil {
		client = httpclient.NewDefaultClient()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &TelegramSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// SendMessage issues POST <base>/bot<token>/sendMessage once.
func (s *TelegramSender) SendMessage(ctx context.Context, token string, req SendMessageRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return apperrors.NewInternalError("marshal sendMessage request", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewInternalError("create sendMessage request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return apperrors.NewExternalAPIError("telegram.sendMessage", stripRequestURL(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.NewExternalAPIError("telegram.sendMessage", err)
	}

	var tgResp telegramResponse
	parseErr := json.Unmarshal(respBody, &tgResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (parseErr == nil && !tgResp.OK) {
		perr := &ProviderError{StatusCode: resp.StatusCode}
		if parseErr == nil {
			perr.ErrorCode = tgResp.ErrorCode
			perr.Description = tgResp.Description
		} else {
			perr.Description = strings.TrimSpace(logging.SanitizeForLog(string(respBody)))
		}
		return apperrors.NewExternalAPIError("telegram.sendMessage", perr).
			WithContext("status_code", resp.StatusCode)
	}

	if parseErr != nil {
		// 2xx with an unreadable body still means Telegram accepted it.
		s.logger.WithError(parseErr).Warn("telegram response not parseable, treating as delivered")
	}

	s.logger.WithFields(logrus.Fields{
		"chat_id":     req.ChatID,
		"status_code": resp.StatusCode,
	}).Debug("telegram sendMessage accepted")

	return nil
}

// Channel implements MessageSender.
func (s *TelegramSender) Channel() string {
	return "telegram"
}

// stripRequestURL drops the request URL from a transport error. The URL
// path embeds the bot token.
func stripRequestURL(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	return fmt.Errorf("%s sendMessage: %w", uerr.Op, uerr.Err)
}
