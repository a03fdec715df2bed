package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/sirupsen/logrus"

	"homly-notify/internal/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SqliteRepository is the SQLite-backed Repository.
type SqliteRepository struct {
	db     querier
	raw    *sql.DB
	logger *logrus.Logger
}

// SqliteConfig configures the connection pool and connect retries.
type SqliteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
}

func DefaultSqliteConfig() SqliteConfig {
	return SqliteConfig{
		Path:            "./notifications.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		MaxRetries:      3,
		RetryDelay:      100 * time.Millisecond,
	}
}

// NewSqliteRepository opens the database, retrying with exponential
// backoff, and applies pending migrations.
func NewSqliteRepository(config SqliteConfig, logger *logrus.Logger) (*SqliteRepository, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	var db *sql.DB
	var err error

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		db, err = sql.Open("sqlite3", config.Path)
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
			db.Close()
		}

		if attempt < config.MaxRetries-1 {
			delay := config.RetryDelay * time.Duration(1<<uint(attempt))
			logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"delay":   delay,
				"error":   err,
			}).Warn("failed to connect to database, retrying...")
			time.Sleep(delay)
		}
	}

	if err != nil {
		return nil, errors.NewDatabaseError("connect", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := NewMigrator(db, logger).Migrate(context.Background()); err != nil {
		db.Close()
		return nil, errors.NewDatabaseError("run_migrations", err)
	}

	logger.WithFields(logrus.Fields{
		"path":              config.Path,
		"max_open_conns":    config.MaxOpenConns,
		"max_idle_conns":    config.MaxIdleConns,
		"conn_max_lifetime": config.ConnMaxLifetime,
	}).Info("sqlite repository initialized")

	return &SqliteRepository{db: db, raw: db, logger: logger}, nil
}

// SaveNotification inserts n and sets its ID. A zero CreatedAt is set to now.
func (r *SqliteRepository) SaveNotification(ctx context.Context, n *Notification) error {
	if !validStatus(n.Status) {
		r.logger.WithField("status", n.Status).Error("invalid notification status")
		return errors.NewValidationError("status", "must be 'success', 'failed' or 'skipped'")
	}
	if strings.TrimSpace(n.Kind) == "" {
		return errors.NewValidationError("kind", "is required")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	query := `INSERT INTO notifications (kind, reference_id, channel, title, content, result, status, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		n.Kind,
		n.ReferenceID,
		n.Channel,
		n.Title,
		n.Content,
		n.Result,
		n.Status,
		n.CreatedAt.UnixMilli(),
	)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"kind":         n.Kind,
			"reference_id": n.ReferenceID,
			"error":        err,
		}).Error("failed to save notification")
		return errors.NewDatabaseError("save_notification", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.NewDatabaseError("notification_last_insert_id", err)
	}
	n.ID = id

	r.logger.WithFields(logrus.Fields{
		"id":     id,
		"kind":   n.Kind,
		"status": n.Status,
	}).Debug("notification saved")

	return nil
}

const selectNotification = `SELECT id, kind, reference_id, channel, title, content, result, status, created_at FROM notifications`

func (r *SqliteRepository) GetNotification(ctx context.Context, id int64) (*Notification, error) {
	row := r.db.QueryRowContext(ctx, selectNotification+` WHERE id = ?`, id)

	n, err := scanNotification(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, errors.NewDatabaseError("get_notification", err)
	}
	return n, nil
}

// ListNotifications returns the newest records first. Non-positive limits
// select the default; limits are capped.
func (r *SqliteRepository) ListNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx, selectNotification+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list_notifications", err)
	}
	return collectNotifications(rows, "list_notifications")
}

func (r *SqliteRepository) ListNotificationsByReference(ctx context.Context, kind, referenceID string) ([]*Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		selectNotification+` WHERE kind = ? AND reference_id = ? ORDER BY created_at DESC, id DESC`,
		kind, referenceID)
	if err != nil {
		return nil, errors.NewDatabaseError("list_notifications_by_reference", err)
	}
	return collectNotifications(rows, "list_notifications_by_reference")
}

func (r *SqliteRepository) CountNotificationsByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM notifications GROUP BY status`)
	if err != nil {
		return nil, errors.NewDatabaseError("count_notifications", err)
	}
	defer rows.Close()

	counts := map[string]int64{
		NotificationStatusSuccess: 0,
		NotificationStatusFailed:  0,
		NotificationStatusSkipped: 0,
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.NewDatabaseError("scan_notification_count", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("iterate_notification_counts", err)
	}
	return counts, nil
}

func (r *SqliteRepository) DeleteNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, errors.NewDatabaseError("delete_notifications_before", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("delete_notifications_rows_affected", err)
	}

	r.logger.WithFields(logrus.Fields{
		"before":  before,
		"deleted": deleted,
	}).Debug("old notifications deleted")

	return deleted, nil
}

// WithTransaction runs fn against a repository bound to one transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (r *SqliteRepository) WithTransaction(ctx context.Context, fn func(Repository) error) error {
	if r.raw == nil {
		return errors.NewInternalError("nested transactions are not supported", nil)
	}

	tx, err := r.raw.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseError("begin_transaction", err)
	}

	txRepo := &SqliteRepository{db: tx, logger: r.logger}

	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.WithFields(logrus.Fields{
				"error":          err,
				"rollback_error": rbErr,
			}).Error("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError("commit_transaction", err)
	}
	return nil
}

func (r *SqliteRepository) Ping(ctx context.Context) error {
	if r.raw == nil {
		return nil
	}
	if err := r.raw.PingContext(ctx); err != nil {
		return errors.NewDatabaseError("ping", err)
	}
	return nil
}

func (r *SqliteRepository) Close() error {
	if r.raw == nil {
		return nil
	}
	if err := r.raw.Close(); err != nil {
		return errors.NewDatabaseError("close", err)
	}
	r.logger.Info("sqlite repository closed")
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var n Notification
	var createdAt int64
	if err := row.Scan(&n.ID, &n.Kind, &n.ReferenceID, &n.Channel, &n.Title, &n.Content, &n.Result, &n.Status, &createdAt); err != nil {
		return nil, err
	}
	n.CreatedAt = time.UnixMilli(createdAt)
	return &n, nil
}

func collectNotifications(rows *sql.Rows, operation string) ([]*Notification, error) {
	defer rows.Close()

	notifications := make([]*Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.NewDatabaseError(fmt.Sprintf("scan_%s", operation), err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError(fmt.Sprintf("iterate_%s", operation), err)
	}
	return notifications, nil
}
