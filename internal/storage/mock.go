package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockRepository is an in-memory Repository for tests. SaveErr, when set,
// is returned by SaveNotification.
type MockRepository struct {
	mu            sync.Mutex
	notifications []*Notification
	nextID        int64

	SaveErr error
}

func (m *MockRepository) SaveNotification(ctx context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.nextID++
	n.ID = m.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	saved := *n
	m.notifications = append(m.notifications, &saved)
	return nil
}

func (m *MockRepository) GetNotification(ctx context.Context, id int64) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.notifications {
		if n.ID == id {
			c := *n
			return &c, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (m *MockRepository) ListNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	all := m.Saved()
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MockRepository) ListNotificationsByReference(ctx context.Context, kind, referenceID string) ([]*Notification, error) {
	var out []*Notification
	for _, n := range m.Saved() {
		if n.Kind == kind && n.ReferenceID == referenceID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MockRepository) CountNotificationsByStatus(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{
		NotificationStatusSuccess: 0,
		NotificationStatusFailed:  0,
		NotificationStatusSkipped: 0,
	}
	for _, n := range m.Saved() {
		counts[n.Status]++
	}
	return counts, nil
}

func (m *MockRepository) DeleteNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.notifications[:0]
	var deleted int64
	for _, n := range m.notifications {
		if n.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	m.notifications = kept
	return deleted, nil
}

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(Repository) error) error {
	return fn(m)
}

func (m *MockRepository) Ping(ctx context.Context) error {
	return nil
}

func (m *MockRepository) Close() error {
	return nil
}

// Saved returns copies of every stored record in insertion order.
func (m *MockRepository) Saved() []*Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		c := *n
		out = append(out, &c)
	}
	return out
}
