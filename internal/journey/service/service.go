// Package service implements the activity ledger, the pipeline aggregator
// and the recorder that turns domain events into ledger rows.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"freelancer_ops_backend/internal/events"
	"freelancer_ops_backend/internal/journey/domain"
	"freelancer_ops_backend/internal/journey/repository"
	"freelancer_ops_backend/platform/apperr"
	"freelancer_ops_backend/platform/logger"
	"freelancer_ops_backend/platform/metrics"
	"freelancer_ops_backend/platform/sanitize"

	"github.com/google/uuid"
)

// ActivityStore is the persistence port of the ledger.
type ActivityStore interface {
	Append(ctx context.Context, params repository.AppendParams) (repository.Activity, error)
	ListByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]repository.Activity, error)
	LatestByTenant(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]repository.Activity, error)
	ListIdle(ctx context.Context, before time.Time, phases []domain.Phase, limit int) ([]repository.Activity, error)
}

// JobSummaryReader reads job records owned by the dashboard's CRUD layer.
type JobSummaryReader interface {
	JobSummaries(ctx context.Context, tenantID uuid.UUID, jobIDs []uuid.UUID) (map[uuid.UUID]repository.JobSummary, error)
	CreateJob(ctx context.Context, tenantID uuid.UUID, summary repository.JobSummary) (uuid.UUID, error)
}

// Service owns the ledger. All reads recompute from it; nothing is cached.
type Service struct {
	store       ActivityStore
	jobs        JobSummaryReader
	bus         events.Bus
	log         *logger.Logger
	expireBatch int
}

// New creates the journey service. jobs and bus may be nil.
func New(store ActivityStore, jobs JobSummaryReader, bus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, jobs: jobs, bus: bus, log: log, expireBatch: expireBatchSize}
}

// Append writes an activity and returns its id. The phase must belong to the
// closed enum; callers holding user input validate with domain.ParsePhase.
func (s *Service) Append(ctx context.Context, params repository.AppendParams) (uuid.UUID, error) {
	activity, err := s.append(ctx, params)
	if err != nil {
		return uuid.Nil, err
	}
	return activity.ID, nil
}

// Record appends an activity and announces it on the bus as journey:advanced.
func (s *Service) Record(ctx context.Context, params repository.AppendParams) (repository.Activity, error) {
	activity, err := s.append(ctx, params)
	if err != nil {
		return repository.Activity{}, err
	}

	if s.bus != nil {
		advanced := events.JourneyAdvanced{
			BaseEvent:  events.NewBaseEvent(activity.TenantID),
			JobID:      activity.JobID,
			ActivityID: activity.ID,
			Phase:      string(activity.Phase),
			Title:      activity.Title,
		}
		advanced.Timestamp = activity.CreatedAt
		s.bus.Publish(ctx, advanced)
	}
	return activity, nil
}

func (s *Service) append(ctx context.Context, params repository.AppendParams) (repository.Activity, error) {
	if !params.Phase.IsValid() {
		panic(fmt.Sprintf("journey: append with invalid phase %q", params.Phase))
	}
	params.Title = sanitize.Text(params.Title)
	params.Description = sanitize.TextPtr(params.Description)
	if params.Title == "" {
		params.Title = params.Phase.Display().Label
	}

	activity, err := s.store.Append(ctx, params)
	if err != nil {
		return repository.Activity{}, err
	}
	metrics.JourneyActivities.WithLabelValues(string(activity.Phase)).Inc()
	return activity, nil
}

// RecordForJob is Record for manual input: the job must exist in the
// tenant's record store.
func (s *Service) RecordForJob(ctx context.Context, params repository.AppendParams) (repository.Activity, error) {
	if s.jobs == nil {
		return repository.Activity{}, apperr.Unavailable("job store not configured")
	}
	known, err := s.jobs.JobSummaries(ctx, params.TenantID, []uuid.UUID{params.JobID})
	if err != nil {
		return repository.Activity{}, err
	}
	if _, ok := known[params.JobID]; !ok {
		return repository.Activity{}, apperr.NotFound("job not found")
	}
	return s.Record(ctx, params)
}

// ListByJob returns a job's activities in ascending time order.
func (s *Service) ListByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]repository.Activity, error) {
	return s.store.ListByJob(ctx, tenantID, jobID)
}

// LatestByTenant maps every job of the tenant to its most recent activity.
func (s *Service) LatestByTenant(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]repository.Activity, error) {
	return s.store.LatestByTenant(ctx, tenantID)
}

// CaptureParams describes a job reported by the browser extension.
type CaptureParams struct {
	UserID          uuid.UUID
	Title           string
	ClientName      *string
	SourceURL       *string
	Budget          *string
	MatchPercentage *int
}

// Capture stores the job record, appends DISCOVERED and then publishes
// job:captured. A failed append is returned to the caller.
func (s *Service) Capture(ctx context.Context, tenantID uuid.UUID, params CaptureParams) (uuid.UUID, error) {
	if s.jobs == nil {
		return uuid.Nil, fmt.Errorf("job store not configured")
	}

	summary := repository.JobSummary{
		Title:      sanitize.Text(params.Title),
		ClientName: sanitize.TextPtr(params.ClientName),
		SourceURL:  params.SourceURL,
		Budget:     sanitize.TextPtr(params.Budget),
	}
	jobID, err := s.jobs.CreateJob(ctx, tenantID, summary)
	if err != nil {
		return uuid.Nil, err
	}

	captured := events.JobCaptured{
		BaseEvent:       events.NewBaseEvent(tenantID),
		JobID:           jobID,
		UserID:          params.UserID,
		Title:           summary.Title,
		ClientName:      deref(summary.ClientName),
		SourceURL:       deref(summary.SourceURL),
		Budget:          deref(summary.Budget),
		MatchPercentage: params.MatchPercentage,
	}
	if _, err := s.Record(ctx, activityFromEvent(captured)); err != nil {
		s.log.Error("captured job has no ledger row", "jobId", jobID, "tenantId", tenantID, "error", err)
		return uuid.Nil, err
	}
	if s.bus != nil {
		s.bus.Publish(ctx, captured)
	}
	return jobID, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// idlePhases are the phases a job may expire from. Once a proposal is out
// the job is waiting on the client and never expires.
var idlePhases = []domain.Phase{
	domain.PhaseDiscovered,
	domain.PhaseAnalyzed,
	domain.PhaseShortlisted,
	domain.PhaseProposalDrafted,
}

const expireBatchSize = 500

// ExpireStale appends EXPIRED to jobs that have been idle since before
// cutoff in a pre-proposal phase, batch by batch until none are left.
// Returns the number of jobs expired.
func (s *Service) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		idle, err := s.store.ListIdle(ctx, cutoff, idlePhases, s.expireBatch)
		if err != nil {
			return total, err
		}
		expired := s.expireBatchOf(ctx, idle)
		total += expired
		// A short batch is the last one. A batch where every append failed
		// would come back unchanged.
		if len(idle) < s.expireBatch || expired == 0 {
			return total, nil
		}
	}
}

func (s *Service) expireBatchOf(ctx context.Context, idle []repository.Activity) int {
	expired := 0
	for _, latest := range idle {
		_, err := s.Record(ctx, repository.AppendParams{
			TenantID: latest.TenantID,
			JobID:    latest.JobID,
			Phase:    domain.PhaseExpired,
			Title:    "Expired after inactivity",
			Metadata: map[string]any{
				"previousPhase": string(latest.Phase),
				"idleSince":     latest.CreatedAt.UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			s.log.Error("failed to expire job", "jobId", latest.JobID, "tenantId", latest.TenantID, "error", err)
			continue
		}
		expired++
	}
	return expired
}

// =============================================================================
// Aggregation
// =============================================================================

// PipelineRow is one job in the pipeline view.
type PipelineRow struct {
	JobID          uuid.UUID             `json:"jobId"`
	CurrentPhase   domain.Phase          `json:"currentPhase"`
	Display        domain.Display        `json:"display"`
	LastActivityAt time.Time             `json:"lastActivityAt"`
	Job            repository.JobSummary `json:"job"`
}

// Stats is the funnel summary of a tenant.
type Stats struct {
	PhaseCounts     map[domain.Phase]int `json:"phaseCounts"`
	ConversionRates map[string]int       `json:"conversionRates"`
	TotalJobs       int                  `json:"totalJobs"`
}

// TimelineEntry is an activity with display metadata for the UI.
type TimelineEntry struct {
	ID          uuid.UUID      `json:"id"`
	JobID       uuid.UUID      `json:"jobId"`
	ProposalID  *uuid.UUID     `json:"proposalId,omitempty"`
	ProjectID   *uuid.UUID     `json:"projectId,omitempty"`
	Phase       domain.Phase   `json:"phase"`
	Display     domain.Display `json:"display"`
	Title       string         `json:"title"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// GetPipeline returns one row per job, most recently active first.
func (s *Service) GetPipeline(ctx context.Context, tenantID uuid.UUID) ([]PipelineRow, error) {
	latest, err := s.store.LatestByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	jobIDs := make([]uuid.UUID, 0, len(latest))
	for jobID := range latest {
		jobIDs = append(jobIDs, jobID)
	}

	summaries := map[uuid.UUID]repository.JobSummary{}
	if s.jobs != nil && len(jobIDs) > 0 {
		summaries, err = s.jobs.JobSummaries(ctx, tenantID, jobIDs)
		if err != nil {
			return nil, err
		}
	}

	rows := make([]PipelineRow, 0, len(latest))
	for jobID, activity := range latest {
		summary, ok := summaries[jobID]
		if !ok {
			summary = repository.JobSummary{Title: activity.Title}
		}
		rows = append(rows, PipelineRow{
			JobID:          jobID,
			CurrentPhase:   activity.Phase,
			Display:        activity.Phase.Display(),
			LastActivityAt: activity.CreatedAt,
			Job:            summary,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].LastActivityAt.Equal(rows[j].LastActivityAt) {
			return rows[i].LastActivityAt.After(rows[j].LastActivityAt)
		}
		return rows[i].JobID.String() < rows[j].JobID.String()
	})
	return rows, nil
}

// GetStats counts jobs per current phase and derives the funnel rates.
func (s *Service) GetStats(ctx context.Context, tenantID uuid.UUID) (Stats, error) {
	latest, err := s.store.LatestByTenant(ctx, tenantID)
	if err != nil {
		return Stats{}, err
	}

	counts := make(map[domain.Phase]int, len(domain.AllPhases()))
	for _, p := range domain.AllPhases() {
		counts[p] = 0
	}

	current := make([]domain.Phase, 0, len(latest))
	for _, activity := range latest {
		counts[activity.Phase]++
		current = append(current, activity.Phase)
	}

	rates := make(map[string]int, len(domain.ConversionPairs))
	for _, pair := range domain.ConversionPairs {
		rates[pair.Name] = domain.ConversionRate(current, pair)
	}

	return Stats{
		PhaseCounts:     counts,
		ConversionRates: rates,
		TotalJobs:       len(latest),
	}, nil
}

// GetJobTimeline returns the job's activities, oldest first, with display data.
func (s *Service) GetJobTimeline(ctx context.Context, tenantID, jobID uuid.UUID) ([]TimelineEntry, error) {
	activities, err := s.store.ListByJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	entries := make([]TimelineEntry, 0, len(activities))
	for _, a := range activities {
		metadata := a.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		entries = append(entries, TimelineEntry{
			ID:          a.ID,
			JobID:       a.JobID,
			ProposalID:  a.ProposalID,
			ProjectID:   a.ProjectID,
			Phase:       a.Phase,
			Display:     a.Phase.Display(),
			Title:       a.Title,
			Description: a.Description,
			Metadata:    metadata,
			CreatedAt:   a.CreatedAt,
		})
	}
	return entries, nil
}
