package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/internal/notification/diagnostics"
	"freelancer_ops_backend/internal/notification/dispatcher"
	"freelancer_ops_backend/internal/notification/inapp"
	"freelancer_ops_backend/internal/notification/notiflog"
	"freelancer_ops_backend/internal/notification/preference"
	"freelancer_ops_backend/internal/notification/transport"
	"freelancer_ops_backend/platform/apperr"
	"freelancer_ops_backend/platform/httpkit"
	"freelancer_ops_backend/platform/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakePreferences struct{}

func (fakePreferences) Get(_ context.Context, tenantID, userID uuid.UUID) (preference.Preference, error) {
	return preference.Defaults(tenantID, userID), nil
}

func (fakePreferences) Update(_ context.Context, tenantID, userID uuid.UUID, req transport.UpdatePreferencesRequest) (preference.Preference, error) {
	if req.MinMatchPercentage != nil && *req.MinMatchPercentage > 100 {
		return preference.Preference{}, apperr.Validation("invalid notification preferences")
	}
	return preference.Defaults(tenantID, userID), nil
}

func (fakePreferences) SetPushSubscription(_ context.Context, tenantID, userID uuid.UUID, _ transport.PushSubscriptionRequest) (preference.Preference, error) {
	return preference.Defaults(tenantID, userID), nil
}

func (fakePreferences) RemovePushSubscription(_ context.Context, tenantID, userID uuid.UUID) (preference.Preference, error) {
	return preference.Defaults(tenantID, userID), nil
}

func (fakePreferences) ExtensionConfig(context.Context, uuid.UUID, uuid.UUID) (transport.ExtensionConfigResponse, error) {
	return transport.ExtensionConfigResponse{IntervalMinutes: 30, MinMatchPercentage: 70}, nil
}

type fakeHistory struct {
	limit, offset int
}

func (f *fakeHistory) ListByUser(_ context.Context, _, _ uuid.UUID, limit, offset int) ([]notiflog.Entry, int, error) {
	f.limit, f.offset = limit, offset
	return []notiflog.Entry{{ID: uuid.New(), Channel: channel.SMS, Status: notiflog.StatusFailed}}, 41, nil
}

type fakeTests struct{ calls int }

func (f *fakeTests) SendTest(context.Context, uuid.UUID, uuid.UUID) ([]dispatcher.ChannelResult, error) {
	f.calls++
	return []dispatcher.ChannelResult{
		{Channel: channel.InApp, State: dispatcher.StateSent},
		{Channel: channel.SMS, State: dispatcher.StateFailed, Error: "missing delivery target: no phone number configured"},
	}, nil
}

type fakeDiagnostics struct{}

func (fakeDiagnostics) Run(context.Context, uuid.UUID, uuid.UUID) (diagnostics.Report, error) {
	return diagnostics.Report{Issues: []string{"Notifications are turned off"}}, nil
}

type fakeInbox struct{}

func (fakeInbox) List(context.Context, uuid.UUID, uuid.UUID, int, int) ([]inapp.Notification, int, error) {
	return nil, 0, nil
}
func (fakeInbox) CountUnread(context.Context, uuid.UUID, uuid.UUID) (int, error) { return 3, nil }
func (fakeInbox) MarkRead(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	return apperr.NotFound("notification not found")
}
func (fakeInbox) MarkAllRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (fakeInbox) Delete(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	return nil
}

type testServer struct {
	router  *gin.Engine
	history *fakeHistory
	tests   *fakeTests
}

func newTestServer(t *testing.T, limiter Limiter, authenticated bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{history: &fakeHistory{}, tests: &fakeTests{}}
	h := NewHTTPHandler(Deps{
		Preferences: fakePreferences{},
		History:     ts.history,
		Tests:       ts.tests,
		Diagnostics: fakeDiagnostics{},
		Inbox:       fakeInbox{},
		TestLimiter: limiter,
	})

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if authenticated {
			httpkit.SetIdentity(c, httpkit.NewIdentity(uuid.New(), uuid.MustParse("6f1c2a52-6b7e-4c1e-9d1a-2f7c3e4b5a60")))
		}
		c.Next()
	})
	h.RegisterRoutes(router.Group("/notifications"))
	router.GET("/extension/config", h.ExtensionConfig)
	ts.router = router
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestSendTestIsRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ts := newTestServer(t, ratelimit.New(client, "notify-test", 1, time.Minute), true)

	first := ts.do(http.MethodPost, "/notifications/test", "")
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	if !strings.Contains(first.Body.String(), `"channel":"SMS"`) {
		t.Fatalf("expected per-channel results, got %s", first.Body.String())
	}

	second := ts.do(http.MethodPost, "/notifications/test", "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if ts.tests.calls != 1 {
		t.Fatalf("expected one send, got %d", ts.tests.calls)
	}
}

func TestUpdatePreferencesMapsValidationError(t *testing.T) {
	ts := newTestServer(t, nil, true)

	rec := ts.do(http.MethodPut, "/notifications/preferences", `{"minMatchPercentage":150}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = ts.do(http.MethodPut, "/notifications/preferences", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestHistoryPaging(t *testing.T) {
	ts := newTestServer(t, nil, true)

	rec := ts.do(http.MethodGet, "/notifications/history?page=3&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ts.history.limit != 10 || ts.history.offset != 20 {
		t.Fatalf("expected limit 10 offset 20, got %d/%d", ts.history.limit, ts.history.offset)
	}
	if !strings.Contains(rec.Body.String(), `"total":41`) {
		t.Fatalf("expected total in body, got %s", rec.Body.String())
	}

	if rec := ts.do(http.MethodGet, "/notifications/history?limit=500", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", rec.Code)
	}
}

func TestInboxNotFoundMapsTo404(t *testing.T) {
	ts := newTestServer(t, nil, true)

	rec := ts.do(http.MethodPatch, "/notifications/inbox/"+uuid.NewString()+"/read", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPatch, "/notifications/inbox/not-a-uuid/read", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	ts := newTestServer(t, nil, false)

	for _, path := range []string{"/notifications/preferences", "/notifications/diagnostics", "/extension/config"} {
		if rec := ts.do(http.MethodGet, path, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestPublicKeyWithoutProvider(t *testing.T) {
	ts := newTestServer(t, nil, true)

	rec := ts.do(http.MethodGet, "/notifications/push/public-key", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"configured":false`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}
