package service

import (
	"context"
	"fmt"

	"freelancer_ops_backend/internal/events"
	"freelancer_ops_backend/internal/journey/domain"
	"freelancer_ops_backend/internal/journey/repository"
)

// RecordedEvents are the bus events that advance a job's journey.
// job:captured is absent: Capture appends DISCOVERED before publishing it.
var RecordedEvents = []string{
	events.NameAnalysisComplete,
	events.NameProposalGenerated,
	events.NameProposalSent,
	events.NameJourneyWon,
	events.NamePaymentReceived,
}

// HandleEvent appends the ledger row matching a journey event and republishes
// it as journey:advanced. Events outside RecordedEvents are ignored.
func (s *Service) HandleEvent(ctx context.Context, event events.Event) error {
	if _, ok := event.(events.JobCaptured); ok {
		return nil
	}
	params := activityFromEvent(event)
	if params.Phase == "" {
		return nil
	}
	_, err := s.Record(ctx, params)
	return err
}

func activityFromEvent(event events.Event) repository.AppendParams {
	occurred := event.OccurredAt()
	params := repository.AppendParams{TenantID: event.Tenant()}
	if !occurred.IsZero() {
		params.OccurredAt = &occurred
	}

	switch e := event.(type) {
	case events.JobCaptured:
		params.JobID = e.JobID
		params.Phase = domain.PhaseDiscovered
		params.Title = "Job captured: " + e.Title
		params.Metadata = map[string]any{}
		if e.SourceURL != "" {
			params.Metadata["sourceUrl"] = e.SourceURL
		}
		if e.MatchPercentage != nil {
			params.Metadata["matchPercentage"] = *e.MatchPercentage
		}
	case events.AnalysisComplete:
		params.JobID = e.JobID
		params.Phase = domain.PhaseAnalyzed
		params.Title = fmt.Sprintf("Analysis complete (%d%% match)", e.MatchPercentage)
		params.Metadata = map[string]any{"matchPercentage": e.MatchPercentage}
		if e.Recommendation != "" {
			params.Metadata["recommendation"] = e.Recommendation
		}
	case events.ProposalGenerated:
		params.JobID = e.JobID
		params.ProposalID = &e.ProposalID
		params.Phase = domain.PhaseProposalDrafted
		params.Title = "Proposal drafted"
	case events.ProposalSent:
		params.JobID = e.JobID
		params.ProposalID = &e.ProposalID
		params.Phase = domain.PhaseProposalSent
		params.Title = "Proposal sent"
	case events.JourneyWon:
		params.JobID = e.JobID
		params.ProjectID = e.ProjectID
		params.Phase = domain.PhaseWon
		params.Title = "Job won"
		if e.ClientName != "" {
			params.Title = "Job won with " + e.ClientName
		}
	case events.PaymentReceived:
		params.JobID = e.JobID
		params.ProjectID = e.ProjectID
		params.Phase = domain.PhasePaymentReceived
		params.Title = fmt.Sprintf("Payment received: %s %s", e.Amount, e.Currency)
		params.Metadata = map[string]any{"amount": e.Amount, "currency": e.Currency}
	}
	return params
}
