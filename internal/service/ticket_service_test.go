package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/sla"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

type serviceFixture struct {
	tickets  *fakeTicketRepo
	comments *fakeCommentRepo
	audit    *fakeAuditRepo
	service  *TicketService
	now      time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	f := &serviceFixture{
		tickets:  newFakeTicketRepo(),
		comments: newFakeCommentRepo(),
		audit:    newFakeAuditRepo(),
		now:      now,
	}
	f.service = NewTicketService(TicketDependencies{
		TicketRepo:  f.tickets,
		CommentRepo: f.comments,
		AuditRepo:   f.audit,
		Clock:       func() time.Time { return f.now },
	})
	return f
}

func (f *serviceFixture) createTicket(t *testing.T, input TicketCreateInput) *domain.Ticket {
	t.Helper()
	if input.Title == "" {
		input.Title = "VPN outage"
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityP4
	}
	if input.AffectedUsers == 0 {
		input.AffectedUsers = 1
	}
	ticket, err := f.service.CreateTicket(context.Background(), "alice@example.com", input)
	require.NoError(t, err)
	return ticket
}

func strPtr(s string) *string  { return &s }
func intPtr(n int) *int        { return &n }
func boolPtr(b bool) *bool     { return &b }

func statusPtr(s domain.TicketStatus) *domain.TicketStatus       { return &s }
func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }
func rootCausePtr(rc domain.RootCause) *domain.RootCause         { return &rc }

func TestCreateTicketDerivesEffectivePriority(t *testing.T) {
	f := newServiceFixture(t)

	ticket := f.createTicket(t, TicketCreateInput{
		Title:            "Core switch down",
		Category:         "Network",
		Priority:         domain.TicketPriorityP4,
		AffectedUsers:    60,
		BusinessCritical: true,
	})

	assert.Equal(t, domain.TicketPriorityP1, ticket.Priority)
	assert.Equal(t, 4, ticket.SLATargetHours)
	require.NotNil(t, ticket.SLADueAt)
	assert.Equal(t, f.now.Add(4*time.Hour), *ticket.SLADueAt)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, "Network Team", ticket.ResolverGroup)
	assert.Equal(t, "Network Team", ticket.AssignedTo)
	assert.True(t, strings.HasPrefix(ticket.TicketNumber, "INC-"))

	entries := f.audit.forTicket(ticket.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditActionCreated, entries[0].Action)
	assert.Equal(t, "alice@example.com", entries[0].PerformedBy)
}

func TestCreateTicketServiceRequestNumbering(t *testing.T) {
	f := newServiceFixture(t)

	ticket := f.createTicket(t, TicketCreateInput{
		Type:  domain.TicketTypeService,
		Title: "New laptop",
	})

	assert.True(t, strings.HasPrefix(ticket.TicketNumber, "SR-"))
	assert.Equal(t, domain.TicketPriorityP4, ticket.Priority)
	assert.Equal(t, 72, ticket.SLATargetHours)
}

func TestCreateTicketRequiresTitle(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.CreateTicket(context.Background(), "alice@example.com", TicketCreateInput{
		Title: "   ",
	})

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestUpdateRejectsResolutionWithoutRootCause(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{})

	_, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		Status: statusPtr(domain.TicketStatusResolved),
	}, "admin@example.com")

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, apperrors.CodeMissingRootCause, domainErr.Code)

	// Rejected update leaves the row and the trail untouched.
	stored, getErr := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.TicketStatusNew, stored.Status)
	assert.Len(t, f.audit.forTicket(ticket.ID), 1)
}

func TestUpdateRejectsResolutionWithUnapprovedChange(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{LinkedChangeID: "CHG-1042"})

	_, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		Status:    statusPtr(domain.TicketStatusResolved),
		RootCause: rootCausePtr(domain.RootCauseConfiguration),
	}, "admin@example.com")

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, apperrors.CodeChangeNotApproved, domainErr.Code)

	// Approving the change clears the rejection.
	updated, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		Status:         statusPtr(domain.TicketStatusResolved),
		RootCause:      rootCausePtr(domain.RootCauseConfiguration),
		ChangeApproved: boolPtr(true),
	}, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
}

func TestUpdateRejectsPriorityChangeWithoutJustification(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{})

	_, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		Priority: priorityPtr(domain.TicketPriorityP2),
	}, "admin@example.com")

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, apperrors.CodeJustificationRequired, domainErr.Code)
}

func TestUpdateRejectsP1ClosureWithoutJustification(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{
		AffectedUsers:    60,
		BusinessCritical: true,
	})
	require.Equal(t, domain.TicketPriorityP1, ticket.Priority)

	_, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		Status:    statusPtr(domain.TicketStatusResolved),
		RootCause: rootCausePtr(domain.RootCauseHardware),
	}, "admin@example.com")

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, apperrors.CodeJustificationRequired, domainErr.Code)
}

func TestUpdateJustificationLandsInAuditDetail(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{})

	_, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		Priority:      priorityPtr(domain.TicketPriorityP2),
		Justification: "major client impact",
	}, "admin@example.com")
	require.NoError(t, err)

	entries := f.audit.forTicket(ticket.ID)
	var priorityEntry *domain.AuditLogEntry
	for i := range entries {
		if entries[i].Action == "priority_change" {
			priorityEntry = &entries[i]
		}
	}
	require.NotNil(t, priorityEntry)
	assert.Equal(t, "priority -> P2; justification: major client impact", priorityEntry.Detail)
	assert.Equal(t, "admin@example.com", priorityEntry.PerformedBy)
}

func TestUpdateManualPriorityNeverDowngradesDerived(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{
		AffectedUsers: 120,
	})
	require.Equal(t, domain.TicketPriorityP2, ticket.Priority)

	// A manual P4 loses to the derived P2; the stored value stays P2,
	// so no justification is demanded and no priority audit is cut.
	updated, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		Priority: priorityPtr(domain.TicketPriorityP4),
		Justification: "attempted downgrade",
	}, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityP2, updated.Priority)

	for _, entry := range f.audit.forTicket(ticket.ID) {
		assert.NotEqual(t, "priority_change", entry.Action)
	}
}

func TestUpdateSignalChangeRecomputesPriorityAndDeadline(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{AffectedUsers: 5})
	require.Equal(t, domain.TicketPriorityP4, ticket.Priority)

	f.now = f.now.Add(30 * time.Minute)
	updated, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		AffectedUsers:    intPtr(60),
		BusinessCritical: boolPtr(true),
	}, "admin@example.com")
	require.NoError(t, err)

	assert.Equal(t, domain.TicketPriorityP1, updated.Priority)
	assert.Equal(t, 4, updated.SLATargetHours)
	require.NotNil(t, updated.SLADueAt)
	assert.Equal(t, f.now.Add(4*time.Hour), *updated.SLADueAt)
}

func TestUpdateResolvedAtSetOnce(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{})

	resolvedAt := f.now.Add(time.Hour)
	f.now = resolvedAt
	first, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		Status:    statusPtr(domain.TicketStatusResolved),
		RootCause: rootCausePtr(domain.RootCauseVendorIssue),
	}, "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, first.ResolvedAt)
	assert.Equal(t, resolvedAt, *first.ResolvedAt)

	// Editing the resolved ticket later keeps the original timestamp.
	f.now = f.now.Add(2 * time.Hour)
	second, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		AssignedTo: strPtr("bob@example.com"),
	}, "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, second.ResolvedAt)
	assert.Equal(t, resolvedAt, *second.ResolvedAt)
}

func TestUpdateWritesOneAuditEntryPerChangedField(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{})

	_, err := f.service.UpdateTicket(context.Background(), ticket.ID, TicketUpdateInput{
		Status:     statusPtr(domain.TicketStatusInProgress),
		AssignedTo: strPtr("bob@example.com"),
		Category:   strPtr("Hardware"),
	}, "admin@example.com")
	require.NoError(t, err)

	actions := map[string]string{}
	for _, entry := range f.audit.forTicket(ticket.ID) {
		actions[entry.Action] = entry.Detail
	}
	assert.Equal(t, "status -> InProgress", actions["status_change"])
	assert.Equal(t, "assigned_to -> bob@example.com", actions["assigned_to_change"])
	assert.Equal(t, "category -> Hardware", actions["category_change"])
}

func TestAddCommentBumpsLastTouched(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{})
	requester := &domain.User{Email: "alice@example.com", Role: domain.RoleRequester}

	f.now = f.now.Add(45 * time.Minute)
	comment, err := f.service.AddComment(context.Background(), ticket.ID, "any update?", domain.CommentVisibilityInternal, requester)
	require.NoError(t, err)

	// Requesters cannot author internal comments.
	assert.Equal(t, domain.CommentVisibilityPublic, comment.Visibility)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, f.now, stored.LastTouched)

	entries := f.audit.forTicket(ticket.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditActionCommentAdded, entries[1].Action)
	assert.Equal(t, "public comment added", entries[1].Detail)
}

func TestAddCommentForbiddenForStrangers(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{})
	stranger := &domain.User{Email: "mallory@example.com", Role: domain.RoleRequester}

	_, err := f.service.AddComment(context.Background(), ticket.ID, "hello", domain.CommentVisibilityPublic, stranger)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "FORBIDDEN", domainErr.Code)
}

func TestGetTicketForActorHidesInternalComments(t *testing.T) {
	f := newServiceFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{})
	admin := &domain.User{Email: "admin@example.com", Role: domain.RoleAdmin}
	requester := &domain.User{Email: "alice@example.com", Role: domain.RoleRequester}

	_, err := f.service.AddComment(context.Background(), ticket.ID, "internal note", domain.CommentVisibilityInternal, admin)
	require.NoError(t, err)
	_, err = f.service.AddComment(context.Background(), ticket.ID, "we are on it", domain.CommentVisibilityPublic, admin)
	require.NoError(t, err)

	_, visible, err := f.service.GetTicketForActor(context.Background(), ticket.ID, requester)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "we are on it", visible[0].Message)

	_, all, err := f.service.GetTicketForActor(context.Background(), ticket.ID, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListTicketsFiltersBySlaStatus(t *testing.T) {
	f := newServiceFixture(t)
	f.createTicket(t, TicketCreateInput{Title: "fresh", AffectedUsers: 5})

	breached := f.createTicket(t, TicketCreateInput{Title: "old", AffectedUsers: 5})
	stored, err := f.tickets.GetByID(context.Background(), breached.ID)
	require.NoError(t, err)
	past := f.now.Add(-time.Hour)
	stored.SLADueAt = &past
	require.NoError(t, f.tickets.Update(context.Background(), stored))

	admin := &domain.User{Email: "admin@example.com", Role: domain.RoleAdmin}
	views, err := f.service.ListTickets(context.Background(), admin, ListOptions{
		SlaStatuses: []sla.Status{sla.StatusBreached},
	})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, breached.ID, views[0].Ticket.ID)
	assert.Equal(t, sla.StatusBreached, views[0].Sla.Status)
}
