package inapp

import (
	"context"
	"fmt"
	"time"

	"freelancer_ops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate      = "notification.inapp.repository.create"
	opList        = "notification.inapp.repository.list"
	opCountUnread = "notification.inapp.repository.count_unread"
	opMarkRead    = "notification.inapp.repository.mark_read"
	opMarkAllRead = "notification.inapp.repository.mark_all_read"
	opDelete      = "notification.inapp.repository.delete"

	errRepoNotConfigured = "in-app notification repository not configured"
	errUserIDRequired    = "userId is required"
	errNotFound          = "notification not found"
)

type Notification struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	EventName  string     `json:"eventName"`
	ResourceID *uuid.UUID `json:"resourceId,omitempty"`
	Category   string     `json:"category"`
	IsRead     bool       `json:"isRead"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type CreateParams struct {
	TenantID   uuid.UUID
	UserID     uuid.UUID
	Title      string
	Content    string
	EventName  string
	ResourceID *uuid.UUID
	Category   string
}

const notificationCols = `id, user_id, title, content, event_name, resource_id, category, is_read, created_at`

const createQuery = `
	INSERT INTO in_app_notifications
	(tenant_id, user_id, title, content, event_name, resource_id, category)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + notificationCols

const countQuery = `SELECT COUNT(*) FROM in_app_notifications WHERE tenant_id = $1 AND user_id = $2`

const listQuery = `
	SELECT ` + notificationCols + `
	FROM in_app_notifications
	WHERE tenant_id = $1 AND user_id = $2
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4`

const countUnreadQuery = `
	SELECT COUNT(*) FROM in_app_notifications
	WHERE tenant_id = $1 AND user_id = $2 AND is_read = FALSE`

const markReadQuery = `
	UPDATE in_app_notifications
	SET is_read = TRUE, read_at = now()
	WHERE id = $1 AND tenant_id = $2 AND user_id = $3`

const markAllReadQuery = `
	UPDATE in_app_notifications
	SET is_read = TRUE, read_at = now()
	WHERE tenant_id = $1 AND user_id = $2 AND is_read = FALSE`

const deleteQuery = `
	DELETE FROM in_app_notifications
	WHERE id = $1 AND tenant_id = $2 AND user_id = $3`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if r == nil || r.pool == nil {
		return Notification{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.TenantID == uuid.Nil || p.UserID == uuid.Nil {
		return Notification{}, apperr.Validation("tenantId and userId are required").WithOp(opCreate)
	}
	if p.Title == "" || p.Content == "" {
		return Notification{}, apperr.Validation("title and content are required").WithOp(opCreate)
	}

	category := p.Category
	if category == "" {
		category = "info"
	}

	var n Notification
	err := r.pool.QueryRow(ctx, createQuery,
		p.TenantID, p.UserID, p.Title, p.Content, p.EventName, p.ResourceID, category,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.EventName, &n.ResourceID, &n.Category, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return Notification{}, apperr.Internal(fmt.Sprintf("create in-app notification failed: %v", err)).WithOp(opCreate)
	}

	return n, nil
}

func (r *Repository) List(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if userID == uuid.Nil {
		return nil, 0, apperr.Validation(errUserIDRequired).WithOp(opList)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, tenantID, userID).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notifications failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, listQuery, tenantID, userID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if scanErr := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.EventName, &n.ResourceID, &n.Category, &n.IsRead, &n.CreatedAt); scanErr != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan notifications failed: %v", scanErr)).WithOp(opList)
		}
		items = append(items, n)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", rowsErr)).WithOp(opList)
	}

	return items, total, nil
}

func (r *Repository) CountUnread(ctx context.Context, tenantID, userID uuid.UUID) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opCountUnread)
	}
	if userID == uuid.Nil {
		return 0, apperr.Validation(errUserIDRequired).WithOp(opCountUnread)
	}

	var count int
	if err := r.pool.QueryRow(ctx, countUnreadQuery, tenantID, userID).Scan(&count); err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread notifications failed: %v", err)).WithOp(opCountUnread)
	}

	return count, nil
}

func (r *Repository) MarkRead(ctx context.Context, tenantID, userID, notificationID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}
	if userID == uuid.Nil || notificationID == uuid.Nil {
		return apperr.Validation("userId and notificationId are required").WithOp(opMarkRead)
	}

	tag, err := r.pool.Exec(ctx, markReadQuery, notificationID, tenantID, userID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark notification read failed: %v", err)).WithOp(opMarkRead)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(errNotFound).WithOp(opMarkRead)
	}

	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, tenantID, userID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkAllRead)
	}
	if userID == uuid.Nil {
		return apperr.Validation(errUserIDRequired).WithOp(opMarkAllRead)
	}

	if _, err := r.pool.Exec(ctx, markAllReadQuery, tenantID, userID); err != nil {
		return apperr.Internal(fmt.Sprintf("mark all notifications read failed: %v", err)).WithOp(opMarkAllRead)
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, tenantID, userID, notificationID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opDelete)
	}
	if userID == uuid.Nil || notificationID == uuid.Nil {
		return apperr.Validation("userId and notificationId are required").WithOp(opDelete)
	}

	tag, err := r.pool.Exec(ctx, deleteQuery, notificationID, tenantID, userID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("delete notification failed: %v", err)).WithOp(opDelete)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(errNotFound).WithOp(opDelete)
	}

	return nil
}
