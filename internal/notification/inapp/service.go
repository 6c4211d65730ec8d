// Package inapp stores the in-app notification inbox and announces new
// entries on the event bus so open streams can show them immediately.
package inapp

import (
	"context"

	"freelancer_ops_backend/internal/events"
	"freelancer_ops_backend/platform/apperr"
	"freelancer_ops_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence port of the inbox.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, tenantID, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, tenantID, userID uuid.UUID) error
	Delete(ctx context.Context, tenantID, userID, notificationID uuid.UUID) error
}

type Service struct {
	repo Store
	bus  events.Bus
	log  *logger.Logger
}

func NewService(repo Store, bus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo: repo,
		bus:  bus,
		log:  log,
	}
}

type SendParams struct {
	TenantID   uuid.UUID
	UserID     uuid.UUID
	Title      string
	Content    string
	EventName  string
	ResourceID *uuid.UUID
	Category   string // "info", "success", "warning", "error"
}

// Send persists the notification and publishes notification:created.
func (s *Service) Send(ctx context.Context, p SendParams) (Notification, error) {
	if s == nil || s.repo == nil {
		return Notification{}, apperr.Internal("in-app notification service not configured")
	}

	if p.Category == "" {
		p.Category = "info"
	}

	notif, err := s.repo.Create(ctx, CreateParams(p))
	if err != nil {
		s.log.Error("failed to persist in-app notification", "error", err, "userId", p.UserID)
		return Notification{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.NotificationCreated{
			BaseEvent:      events.NewBaseEvent(p.TenantID),
			NotificationID: notif.ID,
			UserID:         p.UserID,
			Title:          notif.Title,
			Content:        notif.Content,
			Category:       notif.Category,
			SourceEvent:    notif.EventName,
		})
	}

	return notif, nil
}

func (s *Service) List(ctx context.Context, tenantID, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, tenantID, userID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, tenantID, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, tenantID, userID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, tenantID, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, tenantID, userID)
}

func (s *Service) Delete(ctx context.Context, tenantID, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, tenantID, userID, id)
}
