package handler

import (
	"context"
	"net/http"

	"freelancer_ops_backend/internal/notification/diagnostics"
	"freelancer_ops_backend/internal/notification/dispatcher"
	"freelancer_ops_backend/internal/notification/inapp"
	"freelancer_ops_backend/internal/notification/notiflog"
	"freelancer_ops_backend/internal/notification/preference"
	"freelancer_ops_backend/internal/notification/transport"
	"freelancer_ops_backend/platform/apperr"
	"freelancer_ops_backend/platform/httpkit"
	"freelancer_ops_backend/platform/logger"
	"freelancer_ops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
	msgTooManyTests     = "too many test notifications, try again later"

	defaultHistoryLimit = 20
)

type PreferenceService interface {
	Get(ctx context.Context, tenantID, userID uuid.UUID) (preference.Preference, error)
	Update(ctx context.Context, tenantID, userID uuid.UUID, req transport.UpdatePreferencesRequest) (preference.Preference, error)
	SetPushSubscription(ctx context.Context, tenantID, userID uuid.UUID, req transport.PushSubscriptionRequest) (preference.Preference, error)
	RemovePushSubscription(ctx context.Context, tenantID, userID uuid.UUID) (preference.Preference, error)
	ExtensionConfig(ctx context.Context, tenantID, userID uuid.UUID) (transport.ExtensionConfigResponse, error)
}

type HistoryReader interface {
	ListByUser(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]notiflog.Entry, int, error)
}

type TestSender interface {
	SendTest(ctx context.Context, tenantID, userID uuid.UUID) ([]dispatcher.ChannelResult, error)
}

type DiagnosticsRunner interface {
	Run(ctx context.Context, tenantID, userID uuid.UUID) (diagnostics.Report, error)
}

type Inbox interface {
	List(ctx context.Context, tenantID, userID uuid.UUID, page, pageSize int) ([]inapp.Notification, int, error)
	CountUnread(ctx context.Context, tenantID, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, tenantID, userID uuid.UUID) error
	Delete(ctx context.Context, tenantID, userID, id uuid.UUID) error
}

// Limiter is implemented by ratelimit.Limiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// PublicKeySource is implemented by channel.DesktopProvider.
type PublicKeySource interface {
	PublicKey() string
	HealthCheck() bool
}

type Deps struct {
	Preferences PreferenceService
	History     HistoryReader
	Tests       TestSender
	Diagnostics DiagnosticsRunner
	Inbox       Inbox
	TestLimiter Limiter
	PushKeys    PublicKeySource
	Validator   *validator.Validator
	Log         *logger.Logger
}

type HTTPHandler struct {
	deps Deps
}

func NewHTTPHandler(deps Deps) *HTTPHandler {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &HTTPHandler{deps: deps}
}

// RegisterRoutes mounts the notification routes on rg (/notifications).
func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/preferences", h.GetPreferences)
	rg.PUT("/preferences", h.UpdatePreferences)
	rg.PUT("/preferences/push-subscription", h.SetPushSubscription)
	rg.DELETE("/preferences/push-subscription", h.RemovePushSubscription)
	rg.GET("/push/public-key", h.PublicKey)
	rg.GET("/history", h.ListHistory)
	rg.POST("/test", h.SendTest)
	rg.GET("/diagnostics", h.RunDiagnostics)

	inbox := rg.Group("/inbox")
	inbox.GET("", h.ListInbox)
	inbox.GET("/unread", h.CountUnread)
	inbox.PATCH("/:id/read", h.MarkRead)
	inbox.PATCH("/read-all", h.MarkAllRead)
	inbox.DELETE("/:id", h.Delete)
}

// GET /api/v1/notifications/preferences
func (h *HTTPHandler) GetPreferences(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	pref, err := h.deps.Preferences.Get(c.Request.Context(), identity.TenantID(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, pref)
}

// PUT /api/v1/notifications/preferences
func (h *HTTPHandler) UpdatePreferences(c *gin.Context) {
	var req transport.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	pref, err := h.deps.Preferences.Update(c.Request.Context(), identity.TenantID(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, pref)
}

// PUT /api/v1/notifications/preferences/push-subscription
func (h *HTTPHandler) SetPushSubscription(c *gin.Context) {
	var req transport.PushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	pref, err := h.deps.Preferences.SetPushSubscription(c.Request.Context(), identity.TenantID(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, pref)
}

// DELETE /api/v1/notifications/preferences/push-subscription
func (h *HTTPHandler) RemovePushSubscription(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	pref, err := h.deps.Preferences.RemovePushSubscription(c.Request.Context(), identity.TenantID(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, pref)
}

// GET /api/v1/notifications/push/public-key
func (h *HTTPHandler) PublicKey(c *gin.Context) {
	if h.deps.PushKeys == nil {
		httpkit.OK(c, transport.PublicKeyResponse{})
		return
	}
	httpkit.OK(c, transport.PublicKeyResponse{
		PublicKey:  h.deps.PushKeys.PublicKey(),
		Configured: h.deps.PushKeys.HealthCheck(),
	})
}

// GET /api/v1/notifications/history?page=&limit=
func (h *HTTPHandler) ListHistory(c *gin.Context) {
	var q transport.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.deps.Validator.Struct(q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = defaultHistoryLimit
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	entries, total, err := h.deps.History.ListByUser(c.Request.Context(), identity.TenantID(), identity.UserID(), q.Limit, (q.Page-1)*q.Limit)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, transport.HistoryEntry{
			ID:           e.ID,
			Channel:      string(e.Channel),
			EventName:    e.EventName,
			Title:        e.Title,
			Status:       string(e.Status),
			ErrorMessage: e.ErrorMessage,
			CreatedAt:    e.CreatedAt,
		})
	}
	httpkit.OK(c, transport.HistoryResponse{Items: items, Total: total, Page: q.Page, Limit: q.Limit})
}

// SendTest delivers a test message to every enabled channel. Rate limited
// per user.
// POST /api/v1/notifications/test
func (h *HTTPHandler) SendTest(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	ctx := c.Request.Context()

	if h.deps.TestLimiter != nil {
		key := identity.TenantID().String() + ":" + identity.UserID().String()
		allowed, err := h.deps.TestLimiter.Allow(ctx, key)
		if err != nil {
			h.deps.Log.Warn("test notification rate limiter unavailable", "error", err)
		} else if !allowed {
			h.deps.Log.RateLimitExceeded(key, c.Request.URL.Path)
			httpkit.HandleError(c, apperr.TooManyRequests(msgTooManyTests))
			return
		}
	}

	results, err := h.deps.Tests.SendTest(ctx, identity.TenantID(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.TestNotificationResponse{Results: make([]transport.ChannelOutcome, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, transport.ChannelOutcome{
			Channel: string(r.Channel),
			Success: r.State == dispatcher.StateSent,
			Error:   r.Error,
		})
	}
	httpkit.OK(c, resp)
}

// GET /api/v1/notifications/diagnostics
func (h *HTTPHandler) RunDiagnostics(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	report, err := h.deps.Diagnostics.Run(c.Request.Context(), identity.TenantID(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, report)
}

// ExtensionConfig is polled by the browser extension.
// GET /api/v1/extension/config
func (h *HTTPHandler) ExtensionConfig(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	cfg, err := h.deps.Preferences.ExtensionConfig(c.Request.Context(), identity.TenantID(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, cfg)
}

func (h *HTTPHandler) ListInbox(c *gin.Context) {
	var q transport.InboxQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	items, total, err := h.deps.Inbox.List(c.Request.Context(), identity.TenantID(), identity.UserID(), q.Page, q.PageSize)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"items": items,
		"total": total,
		"page":  max(q.Page, 1),
	})
}

func (h *HTTPHandler) CountUnread(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	count, err := h.deps.Inbox.CountUnread(c.Request.Context(), identity.TenantID(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.UnreadCountResponse{Count: count})
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.deps.Inbox.MarkRead(c.Request.Context(), identity.TenantID(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.deps.Inbox.MarkAllRead(c.Request.Context(), identity.TenantID(), identity.UserID()); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) Delete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.deps.Inbox.Delete(c.Request.Context(), identity.TenantID(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}
