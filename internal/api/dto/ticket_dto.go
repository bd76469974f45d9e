package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	"github.com/spec-kit/servicedesk/internal/sla"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Type             domain.TicketType     `json:"type"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Category         string                `json:"category"`
	Priority         domain.TicketPriority `json:"priority"`
	AffectedUsers    int                   `json:"affected_users"`
	BusinessCritical bool                  `json:"business_critical"`
	LinkedChangeID   string                `json:"linked_change_id"`
}

// UpdateTicketRequest payload for admin edits. Omitted fields keep the
// ticket's current values.
type UpdateTicketRequest struct {
	Status           *domain.TicketStatus   `json:"status"`
	Priority         *domain.TicketPriority `json:"priority"`
	ResolverGroup    *string                `json:"resolver_group"`
	AssignedTo       *string                `json:"assigned_to"`
	Category         *string                `json:"category"`
	AffectedUsers    *int                   `json:"affected_users"`
	BusinessCritical *bool                  `json:"business_critical"`
	RootCause        *domain.RootCause      `json:"root_cause"`
	LinkedChangeID   *string                `json:"linked_change_id"`
	ChangeApproved   *bool                  `json:"change_approved"`
	Justification    string                 `json:"justification"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Message    string                   `json:"message"`
	Visibility domain.CommentVisibility `json:"visibility"`
}

// TicketResponse is the full ticket representation with its SLA view.
type TicketResponse struct {
	ID               int64                 `json:"id"`
	TicketNumber     string                `json:"ticket_number"`
	Type             domain.TicketType     `json:"type"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Category         string                `json:"category"`
	Priority         domain.TicketPriority `json:"priority"`
	Status           domain.TicketStatus   `json:"status"`
	RequesterEmail   string                `json:"requester_email"`
	ResolverGroup    string                `json:"resolver_group"`
	AssignedTo       string                `json:"assigned_to"`
	AffectedUsers    int                   `json:"affected_users"`
	BusinessCritical bool                  `json:"business_critical"`
	RootCause        domain.RootCause      `json:"root_cause,omitempty"`
	LinkedChangeID   string                `json:"linked_change_id,omitempty"`
	ChangeApproved   bool                  `json:"change_approved"`
	SLATargetHours   int                   `json:"sla_target_hours"`
	SLADueAt         *time.Time            `json:"sla_due_at"`
	Sla              sla.View              `json:"sla"`
	UpdatedBy        string                `json:"updated_by"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	LastTouched      time.Time             `json:"last_touched"`
	ResolvedAt       *time.Time            `json:"resolved_at"`
}

// CommentResponse payload.
type CommentResponse struct {
	ID          int64                    `json:"id"`
	TicketID    int64                    `json:"ticket_id"`
	Message     string                   `json:"message"`
	Visibility  domain.CommentVisibility `json:"visibility"`
	AuthorEmail string                   `json:"author_email"`
	CreatedAt   time.Time                `json:"created_at"`
}

// AuditEntryResponse payload.
type AuditEntryResponse struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	Detail      string    `json:"detail"`
	PerformedBy string    `json:"performed_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromTicketView maps a classified ticket to its response shape.
func FromTicketView(view service.TicketView) TicketResponse {
	t := view.Ticket
	return TicketResponse{
		ID:               t.ID,
		TicketNumber:     t.TicketNumber,
		Type:             t.Type,
		Title:            t.Title,
		Description:      t.Description,
		Category:         t.Category,
		Priority:         t.Priority,
		Status:           t.Status,
		RequesterEmail:   t.RequesterEmail,
		ResolverGroup:    t.ResolverGroup,
		AssignedTo:       t.AssignedTo,
		AffectedUsers:    t.AffectedUsers,
		BusinessCritical: t.BusinessCritical,
		RootCause:        t.RootCause,
		LinkedChangeID:   t.LinkedChangeID,
		ChangeApproved:   t.ChangeApproved,
		SLATargetHours:   t.SLATargetHours,
		SLADueAt:         t.SLADueAt,
		Sla:              view.Sla,
		UpdatedBy:        t.UpdatedBy,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		LastTouched:      t.LastTouched,
		ResolvedAt:       t.ResolvedAt,
	}
}

// FromComment maps a comment to its response shape.
func FromComment(comment domain.Comment) CommentResponse {
	return CommentResponse{
		ID:          comment.ID,
		TicketID:    comment.TicketID,
		Message:     comment.Message,
		Visibility:  comment.Visibility,
		AuthorEmail: comment.AuthorEmail,
		CreatedAt:   comment.CreatedAt,
	}
}

// FromAuditEntry maps an audit entry to its response shape.
func FromAuditEntry(entry domain.AuditLogEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:          entry.ID,
		Action:      entry.Action,
		Detail:      entry.Detail,
		PerformedBy: entry.PerformedBy,
		CreatedAt:   entry.CreatedAt,
	}
}
