// Package events defines the domain events modules publish to each other.
// The bus itself lives in platform/events.
package events

import (
	"freelancer_ops_backend/platform/events"
	"freelancer_ops_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	Matcher     = events.Matcher
	Raw         = events.Raw
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent = events.NewBaseEvent
	Named        = events.Named
)

// NewInMemoryBus creates the process-local bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus { return events.NewInMemoryBus(log) }

// Any matches every event.
func Any(name string) bool { return events.Any(name) }

// Event names as they appear on the realtime stream.
const (
	NameJobCaptured         = "job:captured"
	NameAnalysisComplete    = "analysis:complete"
	NameProposalGenerated   = "proposal:generated"
	NameProposalSent        = "proposal:sent"
	NameJourneyWon          = "journey:won"
	NamePaymentReceived     = "payment:received"
	NameJourneyAdvanced     = "journey:advanced"
	NameNotificationCreated = "notification:created"
)

// Targeted is implemented by events addressed to one user of the tenant.
type Targeted interface {
	TargetUser() (uuid.UUID, bool)
}

// Scored is implemented by events that carry a job match percentage.
type Scored interface {
	MatchScore() (int, bool)
}

func target(id uuid.UUID) (uuid.UUID, bool) { return id, id != uuid.Nil }

// =============================================================================
// Job Discovery Events
// =============================================================================

// JobCaptured is published when the browser extension or a scan captures a job.
type JobCaptured struct {
	BaseEvent
	JobID           uuid.UUID `json:"jobId"`
	UserID          uuid.UUID `json:"userId"`
	Title           string    `json:"title"`
	SourceURL       string    `json:"sourceUrl,omitempty"`
	ClientName      string    `json:"clientName,omitempty"`
	Budget          string    `json:"budget,omitempty"`
	MatchPercentage *int      `json:"matchPercentage,omitempty"`
}

func (e JobCaptured) EventName() string { return NameJobCaptured }

func (e JobCaptured) TargetUser() (uuid.UUID, bool) { return target(e.UserID) }

func (e JobCaptured) MatchScore() (int, bool) {
	if e.MatchPercentage == nil {
		return 0, false
	}
	return *e.MatchPercentage, true
}

// AnalysisComplete is published when the job fit analysis has finished.
type AnalysisComplete struct {
	BaseEvent
	JobID           uuid.UUID `json:"jobId"`
	UserID          uuid.UUID `json:"userId"`
	JobTitle        string    `json:"jobTitle"`
	MatchPercentage int       `json:"matchPercentage"`
	Recommendation  string    `json:"recommendation,omitempty"`
}

func (e AnalysisComplete) EventName() string { return NameAnalysisComplete }

func (e AnalysisComplete) TargetUser() (uuid.UUID, bool) { return target(e.UserID) }

func (e AnalysisComplete) MatchScore() (int, bool) { return e.MatchPercentage, true }

// =============================================================================
// Proposal Events
// =============================================================================

// ProposalGenerated is published when a proposal draft is ready for review.
type ProposalGenerated struct {
	BaseEvent
	JobID      uuid.UUID `json:"jobId"`
	ProposalID uuid.UUID `json:"proposalId"`
	UserID     uuid.UUID `json:"userId"`
	JobTitle   string    `json:"jobTitle"`
}

func (e ProposalGenerated) EventName() string { return NameProposalGenerated }

func (e ProposalGenerated) TargetUser() (uuid.UUID, bool) { return target(e.UserID) }

// ProposalSent is published when the freelancer submits a proposal.
type ProposalSent struct {
	BaseEvent
	JobID      uuid.UUID `json:"jobId"`
	ProposalID uuid.UUID `json:"proposalId"`
	UserID     uuid.UUID `json:"userId"`
	JobTitle   string    `json:"jobTitle"`
}

func (e ProposalSent) EventName() string { return NameProposalSent }

func (e ProposalSent) TargetUser() (uuid.UUID, bool) { return target(e.UserID) }

// =============================================================================
// Project Events
// =============================================================================

// JourneyWon is published when a client accepts the freelancer for a job.
type JourneyWon struct {
	BaseEvent
	JobID      uuid.UUID  `json:"jobId"`
	ProjectID  *uuid.UUID `json:"projectId,omitempty"`
	UserID     uuid.UUID  `json:"userId"`
	JobTitle   string     `json:"jobTitle"`
	ClientName string     `json:"clientName,omitempty"`
}

func (e JourneyWon) EventName() string { return NameJourneyWon }

func (e JourneyWon) TargetUser() (uuid.UUID, bool) { return target(e.UserID) }

// PaymentReceived is published when a project payment is recorded.
type PaymentReceived struct {
	BaseEvent
	JobID     uuid.UUID  `json:"jobId"`
	ProjectID *uuid.UUID `json:"projectId,omitempty"`
	UserID    uuid.UUID  `json:"userId"`
	JobTitle  string     `json:"jobTitle"`
	Amount    string     `json:"amount"`
	Currency  string     `json:"currency"`
}

func (e PaymentReceived) EventName() string { return NamePaymentReceived }

func (e PaymentReceived) TargetUser() (uuid.UUID, bool) { return target(e.UserID) }

// =============================================================================
// Journey & Notification Events
// =============================================================================

// JourneyAdvanced is published after an activity is appended to the ledger.
type JourneyAdvanced struct {
	BaseEvent
	JobID      uuid.UUID `json:"jobId"`
	ActivityID uuid.UUID `json:"activityId"`
	Phase      string    `json:"phase"`
	Title      string    `json:"title"`
}

func (e JourneyAdvanced) EventName() string { return NameJourneyAdvanced }

// NotificationCreated is published when an in-app notification is stored.
type NotificationCreated struct {
	BaseEvent
	NotificationID uuid.UUID `json:"notificationId"`
	UserID         uuid.UUID `json:"userId"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Category       string    `json:"category"`
	SourceEvent    string    `json:"sourceEvent,omitempty"`
}

func (e NotificationCreated) EventName() string { return NameNotificationCreated }

func (e NotificationCreated) TargetUser() (uuid.UUID, bool) { return target(e.UserID) }
