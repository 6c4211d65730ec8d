// Package domain holds the job journey phase model and funnel math.
package domain

import (
	"fmt"
	"math"
	"strings"
)

// Phase is a named stage in a job's lifecycle. The wire form is the
// upper-case name.
type Phase string

const (
	PhaseDiscovered         Phase = "DISCOVERED"
	PhaseAnalyzed           Phase = "ANALYZED"
	PhaseShortlisted        Phase = "SHORTLISTED"
	PhaseProposalDrafted    Phase = "PROPOSAL_DRAFTED"
	PhaseProposalSent       Phase = "PROPOSAL_SENT"
	PhaseInterviewing       Phase = "INTERVIEWING"
	PhaseOfferReceived      Phase = "OFFER_RECEIVED"
	PhaseWon                Phase = "WON"
	PhaseProjectStarted     Phase = "PROJECT_STARTED"
	PhaseMilestoneCompleted Phase = "MILESTONE_COMPLETED"
	PhaseProjectDelivered   Phase = "PROJECT_DELIVERED"
	PhasePaymentReceived    Phase = "PAYMENT_RECEIVED"
	PhaseFeedbackReceived   Phase = "FEEDBACK_RECEIVED"

	PhaseLost    Phase = "LOST"
	PhaseSkipped Phase = "SKIPPED"
	PhaseExpired Phase = "EXPIRED"
)

// successPath is the canonical funnel order. Index = rank.
var successPath = []Phase{
	PhaseDiscovered,
	PhaseAnalyzed,
	PhaseShortlisted,
	PhaseProposalDrafted,
	PhaseProposalSent,
	PhaseInterviewing,
	PhaseOfferReceived,
	PhaseWon,
	PhaseProjectStarted,
	PhaseMilestoneCompleted,
	PhaseProjectDelivered,
	PhasePaymentReceived,
	PhaseFeedbackReceived,
}

var failurePhases = []Phase{PhaseLost, PhaseSkipped, PhaseExpired}

var ranks = func() map[Phase]int {
	out := make(map[Phase]int, len(successPath))
	for i, p := range successPath {
		out[p] = i
	}
	return out
}()

// Display is the presentation metadata attached to timeline entries.
type Display struct {
	Label    string `json:"label"`
	Color    string `json:"color"`
	Terminal bool   `json:"terminal"`
}

var displays = map[Phase]Display{
	PhaseDiscovered:         {Label: "Discovered", Color: "slate"},
	PhaseAnalyzed:           {Label: "Analyzed", Color: "sky"},
	PhaseShortlisted:        {Label: "Shortlisted", Color: "indigo"},
	PhaseProposalDrafted:    {Label: "Proposal drafted", Color: "violet"},
	PhaseProposalSent:       {Label: "Proposal sent", Color: "purple"},
	PhaseInterviewing:       {Label: "Interviewing", Color: "fuchsia"},
	PhaseOfferReceived:      {Label: "Offer received", Color: "amber"},
	PhaseWon:                {Label: "Won", Color: "green"},
	PhaseProjectStarted:     {Label: "Project started", Color: "teal"},
	PhaseMilestoneCompleted: {Label: "Milestone completed", Color: "cyan"},
	PhaseProjectDelivered:   {Label: "Project delivered", Color: "emerald"},
	PhasePaymentReceived:    {Label: "Payment received", Color: "lime"},
	PhaseFeedbackReceived:   {Label: "Feedback received", Color: "yellow", Terminal: true},
	PhaseLost:               {Label: "Lost", Color: "red", Terminal: true},
	PhaseSkipped:            {Label: "Skipped", Color: "gray", Terminal: true},
	PhaseExpired:            {Label: "Expired", Color: "stone", Terminal: true},
}

// AllPhases returns every phase, success path first.
func AllPhases() []Phase {
	out := make([]Phase, 0, len(successPath)+len(failurePhases))
	out = append(out, successPath...)
	return append(out, failurePhases...)
}

// ParsePhase accepts the wire form, case-insensitively.
func ParsePhase(raw string) (Phase, error) {
	p := Phase(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown journey phase %q", raw)
	}
	return p, nil
}

// IsValid reports whether p belongs to the closed enum.
func (p Phase) IsValid() bool {
	_, ok := displays[p]
	return ok
}

// Rank returns the position on the success path. Failure phases have none.
func (p Phase) Rank() (int, bool) {
	r, ok := ranks[p]
	return r, ok
}

// IsFailure reports whether p is one of the terminal failure phases.
func (p Phase) IsFailure() bool {
	return p == PhaseLost || p == PhaseSkipped || p == PhaseExpired
}

// Display returns presentation metadata for p.
func (p Phase) Display() Display {
	if d, ok := displays[p]; ok {
		return d
	}
	return Display{Label: string(p), Color: "gray"}
}

// AtLeast reports whether p is on the success path at or beyond target.
func (p Phase) AtLeast(target Phase) bool {
	pr, ok := p.Rank()
	if !ok {
		return false
	}
	tr, ok := target.Rank()
	if !ok {
		return false
	}
	return pr >= tr
}

// ConversionPair names one funnel step reported in stats.
type ConversionPair struct {
	Name string
	From Phase
	To   Phase
}

// ConversionPairs are the funnel steps shown on the dashboard.
var ConversionPairs = []ConversionPair{
	{Name: "discoveredToProposal", From: PhaseDiscovered, To: PhaseProposalSent},
	{Name: "proposalToWon", From: PhaseProposalSent, To: PhaseWon},
	{Name: "wonToDelivered", From: PhaseWon, To: PhaseProjectDelivered},
}

// ConversionRate returns the share (0-100, rounded) of jobs that reached
// pair.From and also reached pair.To. Zero when nobody reached pair.From.
func ConversionRate(current []Phase, pair ConversionPair) int {
	var reachedFrom, reachedTo int
	for _, p := range current {
		if p.AtLeast(pair.From) {
			reachedFrom++
		}
		if p.AtLeast(pair.To) {
			reachedTo++
		}
	}
	if reachedFrom == 0 {
		return 0
	}
	return int(math.Round(float64(reachedTo) * 100 / float64(reachedFrom)))
}
