package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/jobs"
)

type notificationStoreStub struct {
	mu            sync.Mutex
	notifications []models.Notification
	created       chan models.Notification
	markReadErr   error
	listResponse  []models.Notification
	listUnread    bool
	listLimit     int
}

func newNotificationStoreStub() *notificationStoreStub {
	return &notificationStoreStub{created: make(chan models.Notification, 8)}
}

func (s *notificationStoreStub) Create(ctx context.Context, notification *models.Notification) error {
	s.mu.Lock()
	s.notifications = append(s.notifications, *notification)
	s.mu.Unlock()
	s.created <- *notification
	return nil
}

func (s *notificationStoreStub) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listUnread = unreadOnly
	s.listLimit = limit
	return s.listResponse, nil
}

func (s *notificationStoreStub) MarkRead(ctx context.Context, id, userID string) error {
	return s.markReadErr
}

func newTestNotificationService(store *notificationStoreStub) *NotificationService {
	return NewNotificationService(store, nil, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 8,
		RetryDelay: 10 * time.Millisecond,
	})
}

func TestNotificationServiceNotifyPersistsAsync(t *testing.T) {
	store := newNotificationStoreStub()
	svc := newTestNotificationService(store)

	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify("student-1", "req-1", models.NotificationStatusChange, "Your request is now approved")

	select {
	case notification := <-store.created:
		assert.Equal(t, "student-1", notification.UserID)
		assert.Equal(t, "req-1", notification.RequestID)
		assert.Equal(t, models.NotificationStatusChange, notification.Kind)
		assert.Equal(t, "Your request is now approved", notification.Message)
		assert.False(t, notification.Read)
		assert.NotEmpty(t, notification.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not persisted")
	}
}

func TestNotificationServiceNotifyBeforeStartDoesNotPanic(t *testing.T) {
	store := newNotificationStoreStub()
	svc := newTestNotificationService(store)

	// Enqueue fails because the queue has no workers yet; the failure is
	// logged and swallowed.
	svc.Notify("student-1", "req-1", models.NotificationRemark, "hello")

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.notifications)
}

func TestNotificationServiceListScopesToActor(t *testing.T) {
	store := newNotificationStoreStub()
	store.listResponse = []models.Notification{{ID: "n-1", UserID: "student-1"}}
	svc := newTestNotificationService(store)

	notifications, err := svc.List(context.Background(), studentClaims("student-1"), true, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.True(t, store.listUnread)
	assert.Equal(t, 10, store.listLimit)

	_, err = svc.List(context.Background(), nil, false, 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestNotificationServiceMarkReadMapsNotFound(t *testing.T) {
	store := newNotificationStoreStub()
	store.markReadErr = sql.ErrNoRows
	svc := newTestNotificationService(store)

	err := svc.MarkRead(context.Background(), "missing", studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	store.markReadErr = nil
	require.NoError(t, svc.MarkRead(context.Background(), "n-1", studentClaims("student-1")))
}
