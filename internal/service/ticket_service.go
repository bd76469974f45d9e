package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/sla"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// TicketService guards every ticket mutation: creation, edits, comments
// and escalation writes all pass through it so that priority derivation,
// SLA recomputation and the audit trail stay consistent.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	audit      repository.AuditRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	AuditRepo   repository.AuditRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// TicketCreateInput describes ticket creation payload. Priority is the
// manual choice; the stored value is always the derived effective one.
type TicketCreateInput struct {
	Type             domain.TicketType
	Title            string
	Description      string
	Category         string
	Priority         domain.TicketPriority
	AffectedUsers    int
	BusinessCritical bool
	LinkedChangeID   string
}

// TicketUpdateInput describes a requested mutation. Nil fields retain
// the current ticket value.
type TicketUpdateInput struct {
	Status           *domain.TicketStatus
	Priority         *domain.TicketPriority
	ResolverGroup    *string
	AssignedTo       *string
	Category         *string
	AffectedUsers    *int
	BusinessCritical *bool
	RootCause        *domain.RootCause
	LinkedChangeID   *string
	ChangeApproved   *bool
	Justification    string
}

// TicketView pairs a ticket with its derived SLA classification.
type TicketView struct {
	Ticket domain.Ticket
	Sla    sla.View
}

// ListOptions captures listing filters and ordering.
type ListOptions struct {
	Filter      repository.TicketFilter
	SlaStatuses []sla.Status
	Sort        string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		audit:      deps.AuditRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		clock:      clock,
	}
}

// CreateTicket creates a ticket for a requester. The effective priority
// and SLA deadline are derived here; the raw manual priority is not kept.
func (s *TicketService) CreateTicket(ctx context.Context, actor string, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}

	ticketType := input.Type
	if ticketType != domain.TicketTypeService {
		ticketType = domain.TicketTypeIncident
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = "General"
	}
	affected := input.AffectedUsers
	if affected < 1 {
		affected = 1
	}

	now := s.clock()
	effective := sla.Derive(input.Priority, affected, input.BusinessCritical)
	dueAt := sla.DueAt(effective, now)
	resolverGroup := sla.ResolverGroupFor(category)

	ticket := &domain.Ticket{
		TicketNumber:     generateTicketNumber(ticketType),
		Type:             ticketType,
		Title:            title,
		Description:      strings.TrimSpace(input.Description),
		Category:         category,
		Priority:         effective,
		Status:           domain.TicketStatusNew,
		RequesterEmail:   actor,
		ResolverGroup:    resolverGroup,
		AssignedTo:       resolverGroup,
		AffectedUsers:    affected,
		BusinessCritical: input.BusinessCritical,
		LinkedChangeID:   strings.TrimSpace(input.LinkedChangeID),
		SLATargetHours:   sla.TargetHours(effective),
		SLADueAt:         &dueAt,
		UpdatedBy:        actor,
		LastTouched:      now,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, ticket.ID, domain.AuditActionCreated,
		fmt.Sprintf("Ticket created (%s)", ticket.TicketNumber), actor)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Type:         ticket.Type,
			Priority:     ticket.Priority,
			Category:     ticket.Category,
			Title:        ticket.Title,
		},
	})
	return ticket, nil
}

// UpdateTicket merges the requested changes over the current row,
// applies the transition rules in order, and persists atomically. Any
// rejection leaves the ticket untouched and writes no audit entry.
func (s *TicketService) UpdateTicket(ctx context.Context, id int64, input TicketUpdateInput, actor string) (*domain.Ticket, error) {
	current, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	if input.Status != nil {
		next.Status = *input.Status
	}
	if input.ResolverGroup != nil {
		next.ResolverGroup = *input.ResolverGroup
	}
	if input.AssignedTo != nil {
		next.AssignedTo = *input.AssignedTo
	}
	if input.Category != nil {
		next.Category = *input.Category
	}
	if input.AffectedUsers != nil {
		next.AffectedUsers = *input.AffectedUsers
	}
	if input.BusinessCritical != nil {
		next.BusinessCritical = *input.BusinessCritical
	}
	if input.RootCause != nil {
		next.RootCause = *input.RootCause
	}
	if input.LinkedChangeID != nil {
		next.LinkedChangeID = strings.TrimSpace(*input.LinkedChangeID)
	}
	if input.ChangeApproved != nil {
		next.ChangeApproved = *input.ChangeApproved
	}

	resolving := next.Status == domain.TicketStatusResolved
	justification := strings.TrimSpace(input.Justification)

	if resolving && !next.RootCause.IsValid() {
		return nil, apperrors.NewRejection(apperrors.CodeMissingRootCause,
			"resolution requires a root cause")
	}
	if resolving && next.LinkedChangeID != "" && !next.ChangeApproved {
		return nil, apperrors.NewRejection(apperrors.CodeChangeNotApproved,
			"linked change must be approved before resolution")
	}
	priorityChanging := input.Priority != nil && *input.Priority != current.Priority
	if (priorityChanging || (resolving && current.Priority == domain.TicketPriorityP1)) && justification == "" {
		return nil, apperrors.NewRejection(apperrors.CodeJustificationRequired,
			"justification required for priority changes and P1 closure")
	}

	manual := current.Priority
	if input.Priority != nil {
		manual = *input.Priority
	}
	if next.AffectedUsers < 1 {
		next.AffectedUsers = 1
	}
	now := s.clock()
	next.Priority = sla.Derive(manual, next.AffectedUsers, next.BusinessCritical)
	next.SLATargetHours = sla.TargetHours(next.Priority)
	dueAt := sla.DueAt(next.Priority, now)
	next.SLADueAt = &dueAt
	// resolved_at is set once, on the first transition into Resolved.
	if resolving && current.ResolvedAt == nil {
		next.ResolvedAt = &now
	}
	next.UpdatedBy = actor
	next.LastTouched = now

	if err := s.tickets.Update(ctx, &next); err != nil {
		return nil, err
	}

	s.recordFieldChanges(ctx, current, &next, actor, justification)

	if current.Status != next.Status {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: next.ID,
			Actor:    actor,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: current.Status,
				NewStatus: next.Status,
			},
		})
	}
	if current.Priority != next.Priority {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketPriorityChanged,
			TicketID: next.ID,
			Actor:    actor,
			Payload: events.TicketPriorityChangedPayload{
				OldPriority: current.Priority,
				NewPriority: next.Priority,
			},
		})
	}
	return &next, nil
}

// Escalate bumps a stale ticket one severity step. The write shares the
// guard's audit path and bumps last_touched, which resets the staleness
// window and prevents back-to-back escalation.
func (s *TicketService) Escalate(ctx context.Context, ticket *domain.Ticket, now time.Time) (*domain.Ticket, error) {
	if ticket.Status == domain.TicketStatusResolved || ticket.Priority == domain.TicketPriorityP1 {
		return ticket, nil
	}

	next := *ticket
	oldPriority := ticket.Priority
	next.Priority = sla.NextMoreSevere(oldPriority)
	next.SLATargetHours = sla.TargetHours(next.Priority)
	dueAt := sla.DueAt(next.Priority, now)
	next.SLADueAt = &dueAt
	next.UpdatedBy = domain.SystemActor
	next.LastTouched = now

	if err := s.tickets.Update(ctx, &next); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, next.ID, "priority_change",
		fmt.Sprintf("priority -> %s", next.Priority), domain.SystemActor)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: next.ID,
		Actor:    domain.SystemActor,
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: next.Priority,
			Escalated:   true,
		},
	})
	return &next, nil
}

// AddComment appends a comment, bumps the ticket's touch timestamp and
// records a single audit entry tagging visibility. Non-admin authors
// are forced to public visibility.
func (s *TicketService) AddComment(ctx context.Context, ticketID int64, message string, visibility domain.CommentVisibility, actor *domain.User) (*domain.Comment, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message required", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && ticket.RequesterEmail != actor.Email {
		return nil, apperrors.NewForbidden("not your ticket")
	}
	if !actor.IsAdmin() || visibility != domain.CommentVisibilityInternal {
		visibility = domain.CommentVisibilityPublic
	}

	comment := &domain.Comment{
		TicketID:    ticket.ID,
		Message:     message,
		Visibility:  visibility,
		AuthorEmail: actor.Email,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	// Comments count as touching the ticket.
	ticket.LastTouched = s.clock()
	ticket.UpdatedBy = actor.Email
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, ticket.ID, domain.AuditActionCommentAdded,
		fmt.Sprintf("%s comment added", visibility), actor.Email)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		Actor:    actor.Email,
		Payload: events.TicketCommentAddedPayload{
			CommentID:  comment.ID,
			Visibility: comment.Visibility,
		},
	})
	return comment, nil
}

// GetTicketForActor fetches a ticket with its visible comments,
// enforcing ownership for requesters.
func (s *TicketService) GetTicketForActor(ctx context.Context, id int64, actor *domain.User) (*TicketView, []domain.Comment, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsAdmin() && ticket.RequesterEmail != actor.Email {
		return nil, nil, apperrors.NewForbidden("not your ticket")
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID, !actor.IsAdmin())
	if err != nil {
		return nil, nil, err
	}
	view := &TicketView{Ticket: *ticket, Sla: sla.Classify(ticket.SLADueAt, ticket.Status, s.clock())}
	return view, comments, nil
}

// ListTickets returns tickets visible to the actor, SLA-classified,
// filtered and sorted. SLA-status filtering happens after
// classification since the state is derived, never stored.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, opts ListOptions) ([]TicketView, error) {
	filter := opts.Filter
	if !actor.IsAdmin() {
		email := actor.Email
		filter.RequesterEmail = &email
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	views := make([]TicketView, 0, len(tickets))
	for _, t := range tickets {
		view := TicketView{Ticket: t, Sla: sla.Classify(t.SLADueAt, t.Status, now)}
		if len(opts.SlaStatuses) > 0 && !containsSlaStatus(opts.SlaStatuses, view.Sla.Status) {
			continue
		}
		views = append(views, view)
	}
	sortTicketViews(views, opts.Sort)
	return views, nil
}

// ListAudit returns the audit trail for a ticket.
func (s *TicketService) ListAudit(ctx context.Context, ticketID int64, limit, offset int) ([]domain.AuditLogEntry, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.audit.ListByTicket(ctx, ticketID, limit, offset)
}

// DashboardCounts returns ticket totals grouped by status and priority.
func (s *TicketService) DashboardCounts(ctx context.Context) (map[domain.TicketStatus]int, map[domain.TicketPriority]int, error) {
	byStatus, err := s.tickets.CountsByStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	byPriority, err := s.tickets.CountsByPriority(ctx)
	if err != nil {
		return nil, nil, err
	}
	return byStatus, byPriority, nil
}

// ClassifySla exposes the read-only SLA classification.
func (s *TicketService) ClassifySla(ticket *domain.Ticket, now time.Time) sla.View {
	return sla.Classify(ticket.SLADueAt, ticket.Status, now)
}

// auditedFields are the ticket fields whose changes produce one audit
// entry each, in a stable order.
func (s *TicketService) recordFieldChanges(ctx context.Context, old, next *domain.Ticket, actor, justification string) {
	changes := []struct {
		field    string
		old, new string
	}{
		{"status", string(old.Status), string(next.Status)},
		{"priority", string(old.Priority), string(next.Priority)},
		{"resolver_group", old.ResolverGroup, next.ResolverGroup},
		{"assigned_to", old.AssignedTo, next.AssignedTo},
		{"category", old.Category, next.Category},
		{"affected_users", fmt.Sprint(old.AffectedUsers), fmt.Sprint(next.AffectedUsers)},
		{"business_critical", fmt.Sprint(old.BusinessCritical), fmt.Sprint(next.BusinessCritical)},
		{"root_cause", string(old.RootCause), string(next.RootCause)},
		{"linked_change_id", old.LinkedChangeID, next.LinkedChangeID},
	}

	for _, change := range changes {
		if change.old == change.new {
			continue
		}
		detail := fmt.Sprintf("%s -> %s", change.field, change.new)
		if justification != "" {
			detail += fmt.Sprintf("; justification: %s", justification)
		}
		s.recordAudit(ctx, next.ID, change.field+"_change", detail, actor)
	}
}

func (s *TicketService) recordAudit(ctx context.Context, ticketID int64, action, detail, actor string) {
	entry := &domain.AuditLogEntry{
		TicketID:    ticketID,
		Action:      action,
		Detail:      detail,
		PerformedBy: actor,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			zap.Int64("ticket_id", ticketID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketNumber(ticketType domain.TicketType) string {
	prefix := "INC"
	if ticketType == domain.TicketTypeService {
		prefix = "SR"
	}
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func containsSlaStatus(statuses []sla.Status, status sla.Status) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
