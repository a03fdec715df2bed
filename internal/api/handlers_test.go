package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"homly-notify/internal/auth"
	"homly-notify/internal/message"
	"homly-notify/internal/storage"
)

type fakeNotifier struct {
	mu         sync.Mutex
	orders     []*message.OrderNotificationInput
	requests   []*message.ServiceRequestNotificationInput
	tests      int
	configured bool
	delivered  bool
}

func (f *fakeNotifier) TriggerOrder(order *message.OrderNotificationInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
}

func (f *fakeNotifier) TriggerServiceRequest(req *message.ServiceRequestNotificationInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeNotifier) SendTest(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tests++
	return f.delivered
}

func (f *fakeNotifier) Configured() bool { return f.configured }

type testServer struct {
	engine   *gin.Engine
	notifier *fakeNotifier
	repo     *storage.MockRepository
	auth     auth.Service
}

const testTriggerToken = "commerce-backend-secret"

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithTriggerToken(t, testTriggerToken)
}

func newTestServerWithTriggerToken(t *testing.T, triggerToken string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	authService := auth.NewService("admin", string(hash), "test-secret-key-that-is-at-least-32-chars", time.Hour)

	notifier := &fakeNotifier{configured: true, delivered: true}
	repo := &storage.MockRepository{}

	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.Use(RecoveryMiddleware(logger))
	engine.Use(ValidationMiddleware())
	RegisterRoutes(engine,
		NewHandlers(notifier, repo, logger),
		NewAdminHandlers(authService, notifier, repo, logger),
		authService, triggerToken, logger)

	return &testServer{engine: engine, notifier: notifier, repo: repo, auth: authService}
}

func (s *testServer) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(triggerTokenHeader, testTriggerToken)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	session, err := s.auth.Login("admin", "s3cret")
	require.NoError(t, err)
	return session.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestNotifyOrder_Accepted(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/notify/orders", map[string]interface{}{
		"_id":   "6650f1a2b3c4d5e6f7a8b9c0",
		"items": []map[string]interface{}{{"name": "Milk", "quantity": 1}},
		"total": 60,
	}, "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "F7A8B9C0", data["code"])
	assert.Equal(t, true, data["configured"])

	require.Len(t, s.notifier.orders, 1)
	assert.Equal(t, "Milk", s.notifier.orders[0].Items[0].Name)
}

func TestNotifyOrder_ContractViolation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/notify/orders", map[string]interface{}{
		"_id":   "abc",
		"items": []interface{}{},
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "CONTRACT_VIOLATION", body["error"].(map[string]interface{})["code"])
	assert.Empty(t, s.notifier.orders)
}

func TestNotifyOrder_MalformedJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/notify/orders", bytes.NewBufferString("{not json"))
	req.Header.Set(triggerTokenHeader, testTriggerToken)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.notifier.orders)
}

func TestNotifyServiceRequest(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/notify/service-requests", map[string]interface{}{
		"_id":       "sr0000000000abcd1234",
		"serviceId": map[string]interface{}{"name": "Cleaning"},
	}, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, s.notifier.requests, 1)
	assert.Equal(t, "Cleaning", s.notifier.requests[0].Service.Name)

	w = s.do(http.MethodPost, "/api/notify/service-requests", map[string]interface{}{"status": "pending"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifyRoutesRequireTriggerToken(t *testing.T) {
	s := newTestServer(t)
	body := `{"_id":"abc12345","items":[],"total":10}`

	for _, path := range []string{"/api/notify/orders", "/api/notify/service-requests"} {
		for _, header := range []string{"", "wrong-secret-value"} {
			req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
			if header != "" {
				req.Header.Set(triggerTokenHeader, header)
			}
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code, path)
			assert.Equal(t, "UNAUTHORIZED", decode(t, w)["error"].(map[string]interface{})["code"])
		}
	}

	assert.Empty(t, s.notifier.orders)
	assert.Empty(t, s.notifier.requests)
}

func TestNotifyRoutesDisabledWithoutTriggerToken(t *testing.T) {
	s := newTestServerWithTriggerToken(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/notify/orders", bytes.NewBufferString(`{"_id":"abc12345","items":[],"total":10}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(triggerTokenHeader, "")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, s.notifier.orders)
}

func TestUnsupportedContentType(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/notify/orders", bytes.NewBufferString("_id=1"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	s.notifier.configured = false

	w := s.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["database"])
	assert.Equal(t, false, data["telegram_configured"])
}

func TestAdminLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/admin/login", LoginRequest{Username: "admin", Password: "s3cret"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.NotEmpty(t, data["token"])

	w = s.do(http.MethodPost, "/api/admin/login", LoginRequest{Username: "admin", Password: "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/admin/login", map[string]string{"username": "admin"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/admin/notifications", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/notifications", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/admin/notifications", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListAndGetNotifications(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)
	ctx := context.Background()

	first := &storage.Notification{Kind: storage.NotificationKindOrder, ReferenceID: "o1", Status: storage.NotificationStatusSuccess}
	second := &storage.Notification{Kind: storage.NotificationKindServiceRequest, ReferenceID: "s1", Status: storage.NotificationStatusFailed}
	require.NoError(t, s.repo.SaveNotification(ctx, first))
	require.NoError(t, s.repo.SaveNotification(ctx, second))

	w := s.do(http.MethodGet, "/api/admin/notifications?limit=1", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["data"].(map[string]interface{})["notifications"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].(map[string]interface{})["reference_id"])

	w = s.do(http.MethodGet, "/api/admin/notifications?kind=order&reference_id=o1", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	list = decode(t, w)["data"].(map[string]interface{})["notifications"].([]interface{})
	assert.Len(t, list, 1)

	w = s.do(http.MethodGet, "/api/admin/notifications?reference_id=o1", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/admin/notifications?limit=-3", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/admin/notifications/1", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "o1", decode(t, w)["data"].(map[string]interface{})["reference_id"])

	w = s.do(http.MethodGet, "/api/admin/notifications/99", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/admin/notifications/abc", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationStats(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)
	ctx := context.Background()

	for _, status := range []string{storage.NotificationStatusSuccess, storage.NotificationStatusSuccess, storage.NotificationStatusSkipped} {
		require.NoError(t, s.repo.SaveNotification(ctx, &storage.Notification{Kind: storage.NotificationKindOrder, Status: status}))
	}

	w := s.do(http.MethodGet, "/api/admin/notifications/stats", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total"])
	assert.Equal(t, float64(2), data["by_status"].(map[string]interface{})["success"])
}

func TestSendTestNotification(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	w := s.do(http.MethodPost, "/api/admin/notifications/test", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["data"].(map[string]interface{})["delivered"])
	assert.Equal(t, 1, s.notifier.tests)

	s.notifier.configured = false
	w = s.do(http.MethodPost, "/api/admin/notifications/test", nil, token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 1, s.notifier.tests)
}
