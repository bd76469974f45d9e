package domain

import "time"

// SystemActor identifies writes made by the escalation engine rather
// than a human.
const SystemActor = "escalation-engine"

// Audit action labels. Field changes use the pattern "<field>_change".
const (
	AuditActionCreated      = "created"
	AuditActionCommentAdded = "comment_added"
)

// AuditLogEntry is an immutable audit trail record. One entry is written
// per observable field change per mutation.
type AuditLogEntry struct {
	ID          int64
	TicketID    int64
	Action      string
	Detail      string
	PerformedBy string
	CreatedAt   time.Time
}
