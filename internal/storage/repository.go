package storage

import (
	"context"
	"errors"
	"time"
)

// Repository stores the notification history. The domain records that
// notifications describe live in the primary database and are never
// written here.
type Repository interface {
	SaveNotification(ctx context.Context, notification *Notification) error
	GetNotification(ctx context.Context, id int64) (*Notification, error)
	ListNotifications(ctx context.Context, limit int) ([]*Notification, error)
	ListNotificationsByReference(ctx context.Context, kind, referenceID string) ([]*Notification, error)
	CountNotificationsByStatus(ctx context.Context) (map[string]int64, error)
	// DeleteNotificationsBefore removes records created before the cutoff
	// and returns how many were removed.
	DeleteNotificationsBefore(ctx context.Context, before time.Time) (int64, error)

	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Notification is one dispatch attempt.
type Notification struct {
	ID          int64     `json:"id"`
	Kind        string    `json:"kind"`
	ReferenceID string    `json:"reference_id"`
	Channel     string    `json:"channel"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Result      string    `json:"result"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification kinds.
const (
	NotificationKindOrder          = "order"
	NotificationKindServiceRequest = "service_request"
	NotificationKindTest           = "test"
)

// Notification statuses.
const (
	NotificationStatusSuccess = "success"
	NotificationStatusFailed  = "failed"
	NotificationStatusSkipped = "skipped"
)

// ErrNotificationNotFound is returned by GetNotification for unknown ids.
var ErrNotificationNotFound = errors.New("notification not found")

func validStatus(status string) bool {
	switch status {
	case NotificationStatusSuccess, NotificationStatusFailed, NotificationStatusSkipped:
		return true
	}
	return false
}
