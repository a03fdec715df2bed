package notification

import (
	"context"
	"fmt"
	"strings"
)

// ParseModeHTML asks the provider to render the message's HTML markup.
const ParseModeHTML = "HTML"

// Placeholder values shipped in sample configs. Either one means the
// credential has not been configured.
const (
	PlaceholderToken  = "REPLACE_TOKEN"
	PlaceholderChatID = "REPLACE_ID"
)

// MessageSender delivers a single message to the messaging provider.
type MessageSender interface {
	// SendMessage performs exactly one delivery attempt.
	SendMessage(ctx context.Context, token string, req SendMessageRequest) error

	// Channel returns the channel name recorded in notification history.
	Channel() string
}

// SendMessageRequest is the sendMessage body.
type SendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// ProviderError carries the error payload returned by the provider.
type ProviderError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider error: status=%d code=%d: %s", e.StatusCode, e.ErrorCode, e.Description)
	}
	return fmt.Sprintf("provider error: status=%d code=%d", e.StatusCode, e.ErrorCode)
}

// Credentials identify the bot and the chat that receives alerts.
type Credentials struct {
	BotToken string
	ChatID   string
}

// Configured reports whether both values are present and not placeholders.
func (c Credentials) Configured() bool {
	token := strings.TrimSpace(c.BotToken)
	chat := strings.TrimSpace(c.ChatID)
	return token != "" && chat != "" &&
		token != PlaceholderToken && chat != PlaceholderChatID
}
