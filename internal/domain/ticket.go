package domain

import "time"

// TicketType distinguishes incidents from service requests.
type TicketType string

const (
	TicketTypeIncident TicketType = "incident"
	TicketTypeService  TicketType = "service"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "New"
	TicketStatusInProgress TicketStatus = "InProgress"
	TicketStatusResolved   TicketStatus = "Resolved"
)

// TicketPriority enumerates SLA urgency, P1 most severe.
type TicketPriority string

const (
	TicketPriorityP1 TicketPriority = "P1"
	TicketPriorityP2 TicketPriority = "P2"
	TicketPriorityP3 TicketPriority = "P3"
	TicketPriorityP4 TicketPriority = "P4"
)

// RootCause enumerates accepted resolution root causes. The zero value
// means unset, which blocks resolution.
type RootCause string

const (
	RootCauseConfiguration RootCause = "Configuration"
	RootCauseHardware      RootCause = "Hardware"
	RootCauseHumanError    RootCause = "Human Error"
	RootCauseVendorIssue   RootCause = "Vendor Issue"
)

// IsValid reports whether the root cause is one of the defined values.
func (rc RootCause) IsValid() bool {
	switch rc {
	case RootCauseConfiguration, RootCauseHardware, RootCauseHumanError, RootCauseVendorIssue:
		return true
	}
	return false
}

// DefaultAssignee is the placeholder owner for unassigned tickets.
const DefaultAssignee = "Unassigned"

// Ticket is the aggregate for support requests. Priority always holds the
// effective (derived) value; the raw manual choice is never stored.
type Ticket struct {
	ID               int64
	TicketNumber     string
	Type             TicketType
	Title            string
	Description      string
	Category         string
	Priority         TicketPriority
	Status           TicketStatus
	RequesterEmail   string
	ResolverGroup    string
	AssignedTo       string
	AffectedUsers    int
	BusinessCritical bool
	RootCause        RootCause
	LinkedChangeID   string
	ChangeApproved   bool
	SLATargetHours   int
	SLADueAt         *time.Time
	UpdatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastTouched      time.Time
	ResolvedAt       *time.Time
}
