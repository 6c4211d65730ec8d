// Package repository stores the journey activity ledger and reads job
// summaries from the record store.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"freelancer_ops_backend/internal/journey/domain"
	"freelancer_ops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opAppend         = "journey.repository.append"
	opListByJob      = "journey.repository.list_by_job"
	opLatestByTenant = "journey.repository.latest_by_tenant"
	opListIdle       = "journey.repository.list_idle"
	opJobSummaries   = "journey.repository.job_summaries"
	opCreateJob      = "journey.repository.create_job"
)

// Activity is one immutable ledger row.
type Activity struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	JobID       uuid.UUID
	ProposalID  *uuid.UUID
	ProjectID   *uuid.UUID
	Phase       domain.Phase
	Title       string
	Description *string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// AppendParams describes a new ledger row. OccurredAt defaults to now().
type AppendParams struct {
	TenantID    uuid.UUID
	JobID       uuid.UUID
	ProposalID  *uuid.UUID
	ProjectID   *uuid.UUID
	Phase       domain.Phase
	Title       string
	Description *string
	Metadata    map[string]any
	OccurredAt  *time.Time
}

// JobSummary is the slice of a job record shown next to its pipeline row.
type JobSummary struct {
	Title      string  `json:"title"`
	ClientName *string `json:"clientName,omitempty"`
	SourceURL  *string `json:"sourceUrl,omitempty"`
	Budget     *string `json:"budget,omitempty"`
}

// Repository is the pgx backed ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a ledger repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activitySelectCols = `
	id, tenant_id, job_id, proposal_id, project_id, phase, title, description, metadata, created_at`

const appendActivityQuery = `
	INSERT INTO journey_activities (
		tenant_id, job_id, proposal_id, project_id, phase, title, description, metadata, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
	RETURNING id, created_at`

const listByJobQuery = `
	SELECT` + activitySelectCols + `
	FROM journey_activities
	WHERE tenant_id = $1 AND job_id = $2
	ORDER BY created_at ASC, seq ASC`

const latestByTenantQuery = `
	SELECT DISTINCT ON (job_id)` + activitySelectCols + `
	FROM journey_activities
	WHERE tenant_id = $1
	ORDER BY job_id, created_at DESC, seq DESC`

const listIdleQuery = `
	SELECT` + activitySelectCols + `
	FROM (
		SELECT DISTINCT ON (tenant_id, job_id)` + activitySelectCols + `
		FROM journey_activities
		ORDER BY tenant_id, job_id, created_at DESC, seq DESC
	) latest
	WHERE latest.created_at < $1 AND latest.phase = ANY($2)
	ORDER BY latest.created_at ASC
	LIMIT $3`

const jobSummariesQuery = `
	SELECT id, title, client_name, source_url, budget
	FROM jobs
	WHERE tenant_id = $1 AND id = ANY($2)`

const createJobQuery = `
	INSERT INTO jobs (tenant_id, title, client_name, source_url, budget)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id`

// Append writes a new activity. Rows are never updated afterwards.
func (r *Repository) Append(ctx context.Context, params AppendParams) (Activity, error) {
	if r == nil || r.pool == nil {
		return Activity{}, apperr.Internal("journey repository not configured").WithOp(opAppend)
	}

	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return Activity{}, apperr.Wrap(apperr.KindInternal, "encode activity metadata", err).WithOp(opAppend)
	}

	activity := Activity{
		TenantID:    params.TenantID,
		JobID:       params.JobID,
		ProposalID:  params.ProposalID,
		ProjectID:   params.ProjectID,
		Phase:       params.Phase,
		Title:       params.Title,
		Description: params.Description,
		Metadata:    metadata,
	}

	err = r.pool.QueryRow(ctx, appendActivityQuery,
		params.TenantID, params.JobID, params.ProposalID, params.ProjectID,
		string(params.Phase), params.Title, params.Description, metadataJSON, params.OccurredAt,
	).Scan(&activity.ID, &activity.CreatedAt)
	if err != nil {
		return Activity{}, apperr.Wrap(apperr.KindInternal, "append activity", err).WithOp(opAppend)
	}
	return activity, nil
}

// ListByJob returns a job's activities, oldest first.
func (r *Repository) ListByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]Activity, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal("journey repository not configured").WithOp(opListByJob)
	}

	rows, err := r.pool.Query(ctx, listByJobQuery, tenantID, jobID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list activities", err).WithOp(opListByJob)
	}
	defer rows.Close()

	items, err := collectActivities(rows)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "scan activities", err).WithOp(opListByJob)
	}
	return items, nil
}

// LatestByTenant returns the most recent activity of every job in a tenant.
func (r *Repository) LatestByTenant(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]Activity, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal("journey repository not configured").WithOp(opLatestByTenant)
	}

	rows, err := r.pool.Query(ctx, latestByTenantQuery, tenantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list latest activities", err).WithOp(opLatestByTenant)
	}
	defer rows.Close()

	items, err := collectActivities(rows)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "scan latest activities", err).WithOp(opLatestByTenant)
	}

	latest := make(map[uuid.UUID]Activity, len(items))
	for _, item := range items {
		latest[item.JobID] = item
	}
	return latest, nil
}

// ListIdle returns, across all tenants, the latest activity of jobs whose
// current phase is one of phases and which have not moved since before.
func (r *Repository) ListIdle(ctx context.Context, before time.Time, phases []domain.Phase, limit int) ([]Activity, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal("journey repository not configured").WithOp(opListIdle)
	}

	names := make([]string, 0, len(phases))
	for _, p := range phases {
		names = append(names, string(p))
	}

	rows, err := r.pool.Query(ctx, listIdleQuery, before, names, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list idle jobs", err).WithOp(opListIdle)
	}
	defer rows.Close()

	items, err := collectActivities(rows)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "scan idle jobs", err).WithOp(opListIdle)
	}
	return items, nil
}

// JobSummaries reads job titles and client data for the given ids.
// Jobs missing from the record store are absent from the result.
func (r *Repository) JobSummaries(ctx context.Context, tenantID uuid.UUID, jobIDs []uuid.UUID) (map[uuid.UUID]JobSummary, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal("journey repository not configured").WithOp(opJobSummaries)
	}
	out := make(map[uuid.UUID]JobSummary, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, jobSummariesQuery, tenantID, jobIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list job summaries", err).WithOp(opJobSummaries)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var summary JobSummary
		if err := rows.Scan(&id, &summary.Title, &summary.ClientName, &summary.SourceURL, &summary.Budget); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan job summary", err).WithOp(opJobSummaries)
		}
		out[id] = summary
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "iterate job summaries", err).WithOp(opJobSummaries)
	}
	return out, nil
}

// CreateJob stores a job captured by the browser extension.
func (r *Repository) CreateJob(ctx context.Context, tenantID uuid.UUID, summary JobSummary) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, apperr.Internal("journey repository not configured").WithOp(opCreateJob)
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, createJobQuery,
		tenantID, summary.Title, summary.ClientName, summary.SourceURL, summary.Budget,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInternal, "create job", err).WithOp(opCreateJob)
	}
	return id, nil
}

type activityScanner interface {
	Scan(dest ...any) error
}

// scanActivity expects the column order of activitySelectCols.
func scanActivity(s activityScanner) (Activity, error) {
	var item Activity
	var phase string
	var rawMetadata []byte
	if err := s.Scan(
		&item.ID,
		&item.TenantID,
		&item.JobID,
		&item.ProposalID,
		&item.ProjectID,
		&phase,
		&item.Title,
		&item.Description,
		&rawMetadata,
		&item.CreatedAt,
	); err != nil {
		return Activity{}, err
	}
	item.Phase = domain.Phase(phase)
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &item.Metadata); err != nil {
			return Activity{}, fmt.Errorf("decode metadata of activity %s: %w", item.ID, err)
		}
	}
	return item, nil
}

func collectActivities(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Activity, error) {
	items := make([]Activity, 0)
	for rows.Next() {
		item, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
