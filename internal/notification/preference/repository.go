package preference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opFind       = "notification.preference.repository.find"
	opEnsure     = "notification.preference.repository.ensure"
	opUpsert     = "notification.preference.repository.upsert"
	opListTenant = "notification.preference.repository.list_by_tenant"
	opMarkStale  = "notification.preference.repository.mark_stale"

	errRepoNotConfigured = "notification preference repository not configured"
	errNotFound          = "notification preferences not found"
)

const preferenceCols = `tenant_id, user_id, is_enabled, auto_scan_enabled, scan_interval_minutes,
	min_match_percentage, categories, target_skills, desktop_enabled, push_subscription,
	push_subscription_stale, sms_enabled, sms_phone_number, sms_country_code,
	whatsapp_enabled, whatsapp_phone_number, whatsapp_country_code, created_at, updated_at`

const findQuery = `
	SELECT ` + preferenceCols + `
	FROM notification_preferences
	WHERE tenant_id = $1 AND user_id = $2`

// The no-op update makes RETURNING yield the existing row on conflict.
const ensureQuery = `
	INSERT INTO notification_preferences (tenant_id, user_id)
	VALUES ($1, $2)
	ON CONFLICT (tenant_id, user_id) DO UPDATE
	SET updated_at = notification_preferences.updated_at
	RETURNING ` + preferenceCols

const upsertQuery = `
	INSERT INTO notification_preferences (
		tenant_id, user_id, is_enabled, auto_scan_enabled, scan_interval_minutes,
		min_match_percentage, categories, target_skills, desktop_enabled, push_subscription,
		push_subscription_stale, sms_enabled, sms_phone_number, sms_country_code,
		whatsapp_enabled, whatsapp_phone_number, whatsapp_country_code
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (tenant_id, user_id) DO UPDATE SET
		is_enabled = EXCLUDED.is_enabled,
		auto_scan_enabled = EXCLUDED.auto_scan_enabled,
		scan_interval_minutes = EXCLUDED.scan_interval_minutes,
		min_match_percentage = EXCLUDED.min_match_percentage,
		categories = EXCLUDED.categories,
		target_skills = EXCLUDED.target_skills,
		desktop_enabled = EXCLUDED.desktop_enabled,
		push_subscription = EXCLUDED.push_subscription,
		push_subscription_stale = EXCLUDED.push_subscription_stale,
		sms_enabled = EXCLUDED.sms_enabled,
		sms_phone_number = EXCLUDED.sms_phone_number,
		sms_country_code = EXCLUDED.sms_country_code,
		whatsapp_enabled = EXCLUDED.whatsapp_enabled,
		whatsapp_phone_number = EXCLUDED.whatsapp_phone_number,
		whatsapp_country_code = EXCLUDED.whatsapp_country_code,
		updated_at = now()
	RETURNING ` + preferenceCols

const listByTenantQuery = `
	SELECT ` + preferenceCols + `
	FROM notification_preferences
	WHERE tenant_id = $1
	ORDER BY created_at ASC`

const markStaleQuery = `
	UPDATE notification_preferences
	SET push_subscription_stale = TRUE, updated_at = now()
	WHERE tenant_id = $1 AND user_id = $2
	  AND push_subscription->>'endpoint' = $3`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Find returns apperr.NotFound when the user has no row yet.
func (r *Repository) Find(ctx context.Context, tenantID, userID uuid.UUID) (Preference, error) {
	if r == nil || r.pool == nil {
		return Preference{}, apperr.Internal(errRepoNotConfigured).WithOp(opFind)
	}
	p, err := scanPreference(r.pool.QueryRow(ctx, findQuery, tenantID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Preference{}, apperr.NotFound(errNotFound).WithOp(opFind)
	}
	if err != nil {
		return Preference{}, apperr.Internal(fmt.Sprintf("find notification preferences failed: %v", err)).WithOp(opFind)
	}
	return p, nil
}

// Ensure returns the user's row, creating it with column defaults first.
func (r *Repository) Ensure(ctx context.Context, tenantID, userID uuid.UUID) (Preference, error) {
	if r == nil || r.pool == nil {
		return Preference{}, apperr.Internal(errRepoNotConfigured).WithOp(opEnsure)
	}
	p, err := scanPreference(r.pool.QueryRow(ctx, ensureQuery, tenantID, userID))
	if err != nil {
		return Preference{}, apperr.Internal(fmt.Sprintf("ensure notification preferences failed: %v", err)).WithOp(opEnsure)
	}
	return p, nil
}

func (r *Repository) Upsert(ctx context.Context, p Preference) (Preference, error) {
	if r == nil || r.pool == nil {
		return Preference{}, apperr.Internal(errRepoNotConfigured).WithOp(opUpsert)
	}
	sub, err := encodeSubscription(p.PushSubscription)
	if err != nil {
		return Preference{}, apperr.Internal(err.Error()).WithOp(opUpsert)
	}

	saved, err := scanPreference(r.pool.QueryRow(ctx, upsertQuery,
		p.TenantID, p.UserID, p.IsEnabled, p.AutoScanEnabled, p.ScanIntervalMinutes,
		p.MinMatchPercentage, nonNil(p.Categories), nonNil(p.TargetSkills), p.DesktopEnabled, sub,
		p.PushSubscriptionStale, p.SMSEnabled, p.SMSPhoneNumber, p.SMSCountryCode,
		p.WhatsAppEnabled, p.WhatsAppPhoneNumber, p.WhatsAppCountryCode,
	))
	if err != nil {
		return Preference{}, apperr.Internal(fmt.Sprintf("upsert notification preferences failed: %v", err)).WithOp(opUpsert)
	}
	return saved, nil
}

func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Preference, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListTenant)
	}
	rows, err := r.pool.Query(ctx, listByTenantQuery, tenantID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list notification preferences failed: %v", err)).WithOp(opListTenant)
	}
	defer rows.Close()

	out := make([]Preference, 0)
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan notification preferences failed: %v", err)).WithOp(opListTenant)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate notification preferences failed: %v", err)).WithOp(opListTenant)
	}
	return out, nil
}

// MarkPushSubscriptionStale flags the subscription only if it is still the
// one registered, so a fresh registration is never overwritten.
func (r *Repository) MarkPushSubscriptionStale(ctx context.Context, tenantID, userID uuid.UUID, endpoint string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkStale)
	}
	if _, err := r.pool.Exec(ctx, markStaleQuery, tenantID, userID, endpoint); err != nil {
		return apperr.Internal(fmt.Sprintf("mark push subscription stale failed: %v", err)).WithOp(opMarkStale)
	}
	return nil
}

func scanPreference(row pgx.Row) (Preference, error) {
	var (
		p   Preference
		sub []byte
	)
	err := row.Scan(
		&p.TenantID, &p.UserID, &p.IsEnabled, &p.AutoScanEnabled, &p.ScanIntervalMinutes,
		&p.MinMatchPercentage, &p.Categories, &p.TargetSkills, &p.DesktopEnabled, &sub,
		&p.PushSubscriptionStale, &p.SMSEnabled, &p.SMSPhoneNumber, &p.SMSCountryCode,
		&p.WhatsAppEnabled, &p.WhatsAppPhoneNumber, &p.WhatsAppCountryCode, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Preference{}, err
	}
	if len(sub) > 0 {
		var decoded channel.PushSubscription
		if err := json.Unmarshal(sub, &decoded); err != nil {
			return Preference{}, fmt.Errorf("decode push subscription: %w", err)
		}
		p.PushSubscription = &decoded
	}
	return p, nil
}

func encodeSubscription(sub *channel.PushSubscription) ([]byte, error) {
	if sub == nil {
		return nil, nil
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode push subscription: %w", err)
	}
	return raw, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
