// Package notiflog records one row per channel delivery attempt.
package notiflog

import (
	"context"
	"fmt"
	"time"

	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

const (
	opCreate = "notification.log.repository.create"
	opList   = "notification.log.repository.list"
	opRecent = "notification.log.repository.recent"

	errRepoNotConfigured = "notification log repository not configured"
)

type Entry struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"-"`
	UserID       *uuid.UUID      `json:"userId,omitempty"`
	Channel      channel.Channel `json:"channel"`
	EventName    string          `json:"eventName"`
	Title        string          `json:"title"`
	Status       Status          `json:"status"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NewEntry builds the log row for a provider result.
func NewEntry(tenantID uuid.UUID, userID *uuid.UUID, ch channel.Channel, eventName, title string, res channel.Result) Entry {
	e := Entry{
		TenantID:  tenantID,
		UserID:    userID,
		Channel:   ch,
		EventName: eventName,
		Title:     title,
		Status:    StatusSent,
	}
	if !res.Success {
		e.Status = StatusFailed
		msg := res.Error
		if msg == "" {
			msg = "delivery failed"
		}
		e.ErrorMessage = &msg
	}
	return e
}

const entryCols = `id, tenant_id, user_id, channel, event_name, title, status, error_message, created_at`

const createQuery = `
	INSERT INTO notification_log (tenant_id, user_id, channel, event_name, title, status, error_message)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at`

const countQuery = `SELECT COUNT(*) FROM notification_log WHERE tenant_id = $1 AND user_id = $2`

const listQuery = `
	SELECT ` + entryCols + `
	FROM notification_log
	WHERE tenant_id = $1 AND user_id = $2
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, e Entry) (Entry, error) {
	if r == nil || r.pool == nil {
		return Entry{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	err := r.pool.QueryRow(ctx, createQuery,
		e.TenantID, e.UserID, string(e.Channel), e.EventName, e.Title, string(e.Status), e.ErrorMessage,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Entry{}, apperr.Internal(fmt.Sprintf("create notification log entry failed: %v", err)).WithOp(opCreate)
	}
	return e, nil
}

// ListByUser returns one page, newest first, plus the total count.
func (r *Repository) ListByUser(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]Entry, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, tenantID, userID).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notification log failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, listQuery, tenantID, userID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notification log failed: %v", err)).WithOp(opList)
	}
	entries, err := collect(rows)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("scan notification log failed: %v", err)).WithOp(opList)
	}
	return entries, total, nil
}

// Recent returns the user's last n entries, newest first.
func (r *Repository) Recent(ctx context.Context, tenantID, userID uuid.UUID, n int) ([]Entry, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opRecent)
	}
	rows, err := r.pool.Query(ctx, listQuery, tenantID, userID, n, 0)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list recent notification log failed: %v", err)).WithOp(opRecent)
	}
	entries, err := collect(rows)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("scan notification log failed: %v", err)).WithOp(opRecent)
	}
	return entries, nil
}

func collect(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e          Entry
			ch, status string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &ch, &e.EventName, &e.Title, &status, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Channel = channel.Channel(ch)
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
