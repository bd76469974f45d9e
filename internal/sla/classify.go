package sla

import (
	"math"
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// Status is the categorical SLA state derived from the due timestamp.
// It is computed on every read and never persisted.
type Status string

const (
	StatusUnknown     Status = "Unknown"
	StatusBreached    Status = "Breached"
	StatusAtRisk      Status = "At Risk"
	StatusOnTrack     Status = "On Track"
	StatusMetResolved Status = "Met/Resolved"
)

// atRiskWindowMinutes is the remaining-time window (inclusive) in which
// an unresolved ticket counts as at risk.
const atRiskWindowMinutes = 60

// View is the classification result attached to ticket reads.
type View struct {
	Status           Status `json:"status"`
	MinutesRemaining *int   `json:"minutes_remaining"`
}

// Classify derives the SLA state for a ticket at the given instant.
// Resolved tickets are frozen at Met/Resolved regardless of timing.
// Exactly 60 minutes remaining is At Risk; 61 is On Track. Breached
// tickets carry the negative overdue minutes.
func Classify(dueAt *time.Time, status domain.TicketStatus, now time.Time) View {
	if dueAt == nil {
		return View{Status: StatusUnknown}
	}
	if status == domain.TicketStatusResolved {
		return View{Status: StatusMetResolved}
	}

	diff := int(math.Round(dueAt.Sub(now).Minutes()))
	view := View{MinutesRemaining: &diff}
	switch {
	case diff < 0:
		view.Status = StatusBreached
	case diff <= atRiskWindowMinutes:
		view.Status = StatusAtRisk
	default:
		view.Status = StatusOnTrack
	}
	return view
}

// DueAt anchors a fresh SLA deadline at the given instant for the
// priority's target window.
func DueAt(p domain.TicketPriority, now time.Time) time.Time {
	return now.Add(time.Duration(TargetHours(p)) * time.Hour)
}
