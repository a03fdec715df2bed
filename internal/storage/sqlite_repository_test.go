package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "homly-notify/internal/errors"
)

func newTestRepository(t *testing.T) *SqliteRepository {
	t.Helper()

	config := DefaultSqliteConfig()
	config.Path = filepath.Join(t.TempDir(), "notifications.db")

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	repo, err := NewSqliteRepository(config, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestNewSqliteRepository(t *testing.T) {
	repo := newTestRepository(t)

	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestSqliteRepository_SaveAndGetNotification(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created := time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)
	n := &Notification{
		Kind:        NotificationKindOrder,
		ReferenceID: "abc123def456",
		Channel:     "telegram",
		Title:       "Order 23DEF456",
		Content:     "<b>NEW ORDER</b>",
		Result:      "delivered",
		Status:      NotificationStatusSuccess,
		CreatedAt:   created,
	}
	require.NoError(t, repo.SaveNotification(ctx, n))
	assert.NotZero(t, n.ID)

	got, err := repo.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.Kind, got.Kind)
	assert.Equal(t, n.ReferenceID, got.ReferenceID)
	assert.Equal(t, n.Content, got.Content)
	assert.Equal(t, n.Status, got.Status)
	assert.True(t, created.Equal(got.CreatedAt), "created_at round-trips, got %v", got.CreatedAt)

	_, err = repo.GetNotification(ctx, n.ID+100)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestSqliteRepository_SaveNotificationValidation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	err := repo.SaveNotification(ctx, &Notification{Kind: NotificationKindOrder, Status: "pending"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	err = repo.SaveNotification(ctx, &Notification{Status: NotificationStatusFailed})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestSqliteRepository_ListNotifications(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.SaveNotification(ctx, &Notification{
			Kind:        NotificationKindServiceRequest,
			ReferenceID: fmt.Sprintf("sr-%d", i),
			Channel:     "telegram",
			Content:     "msg",
			Status:      NotificationStatusSkipped,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := repo.ListNotifications(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "sr-4", list[0].ReferenceID)
	assert.Equal(t, "sr-2", list[2].ReferenceID)

	all, err := repo.ListNotifications(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestSqliteRepository_ListByReferenceAndCounts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, n := range []*Notification{
		{Kind: NotificationKindOrder, ReferenceID: "o1", Channel: "telegram", Content: "a", Status: NotificationStatusFailed},
		{Kind: NotificationKindOrder, ReferenceID: "o1", Channel: "telegram", Content: "b", Status: NotificationStatusSuccess},
		{Kind: NotificationKindOrder, ReferenceID: "o2", Channel: "telegram", Content: "c", Status: NotificationStatusSuccess},
		{Kind: NotificationKindServiceRequest, ReferenceID: "o1", Channel: "telegram", Content: "d", Status: NotificationStatusSkipped},
	} {
		require.NoError(t, repo.SaveNotification(ctx, n))
	}

	byRef, err := repo.ListNotificationsByReference(ctx, NotificationKindOrder, "o1")
	require.NoError(t, err)
	assert.Len(t, byRef, 2)

	counts, err := repo.CountNotificationsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[NotificationStatusSuccess])
	assert.Equal(t, int64(1), counts[NotificationStatusFailed])
	assert.Equal(t, int64(1), counts[NotificationStatusSkipped])
}

func TestSqliteRepository_DeleteNotificationsBefore(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	now := time.Now()
	for i, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour} {
		require.NoError(t, repo.SaveNotification(ctx, &Notification{
			Kind:        NotificationKindOrder,
			ReferenceID: fmt.Sprintf("o%d", i),
			Channel:     "telegram",
			Content:     "x",
			Status:      NotificationStatusSuccess,
			CreatedAt:   now.Add(-age),
		}))
	}

	deleted, err := repo.DeleteNotificationsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := repo.ListNotifications(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "o2", remaining[0].ReferenceID)
}

func TestSqliteRepository_WithTransactionRollback(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(tx Repository) error {
		if err := tx.SaveNotification(ctx, &Notification{
			Kind: NotificationKindTest, Channel: "telegram", Content: "x", Status: NotificationStatusSuccess,
		}); err != nil {
			return err
		}
		return fmt.Errorf("intentional error to trigger rollback")
	})
	require.Error(t, err)

	list, err := repo.ListNotifications(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = repo.WithTransaction(ctx, func(tx Repository) error {
		return tx.SaveNotification(ctx, &Notification{
			Kind: NotificationKindTest, Channel: "telegram", Content: "y", Status: NotificationStatusSuccess,
		})
	})
	require.NoError(t, err)

	list, err = repo.ListNotifications(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMigrator_IdempotentAndRollback(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	migrator := NewMigrator(repo.raw, nil)
	require.NoError(t, migrator.Migrate(ctx))

	var count int
	require.NoError(t, repo.raw.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)

	require.NoError(t, migrator.Rollback(ctx, 2))
	require.NoError(t, repo.raw.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 0, count)

	_, err := repo.ListNotifications(ctx, 0)
	assert.Error(t, err, "notifications table should be gone after rollback")

	require.NoError(t, migrator.Migrate(ctx))
	_, err = repo.ListNotifications(ctx, 0)
	assert.NoError(t, err)
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		filename  string
		version   int
		name      string
		direction string
		ok        bool
	}{
		{"000001_create_notifications.up.sql", 1, "create_notifications", "up", true},
		{"000002_notification_indexes.down.sql", 2, "notification_indexes", "down", true},
		{"bad.sql", 0, "", "", false},
		{"x_name.up.sql", 0, "", "", false},
		{"000003_name.sideways.sql", 0, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, direction, ok := parseMigrationName(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.direction, direction)
		})
	}
}

func TestMockRepository(t *testing.T) {
	repo := &MockRepository{}
	ctx := context.Background()

	old := &Notification{Kind: NotificationKindOrder, ReferenceID: "a", Status: NotificationStatusFailed, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &Notification{Kind: NotificationKindOrder, ReferenceID: "a", Status: NotificationStatusSuccess}
	require.NoError(t, repo.SaveNotification(ctx, old))
	require.NoError(t, repo.SaveNotification(ctx, fresh))

	byRef, _ := repo.ListNotificationsByReference(ctx, NotificationKindOrder, "a")
	assert.Len(t, byRef, 2)

	deleted, _ := repo.DeleteNotificationsBefore(ctx, time.Now().Add(-time.Hour))
	assert.Equal(t, int64(1), deleted)

	got, err := repo.GetNotification(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, NotificationStatusSuccess, got.Status)
}
