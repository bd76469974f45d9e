package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/observability"
)

func newEscalationFixture(t *testing.T) (*serviceFixture, *EscalationService, *observability.Metrics) {
	t.Helper()
	f := newServiceFixture(t)
	metrics := observability.NewMetrics()
	escalator := NewEscalationService(f.tickets, f.service, metrics, nil, 4*time.Hour)
	return f, escalator, metrics
}

func (f *serviceFixture) ageTicket(t *testing.T, id int64, idle time.Duration) {
	t.Helper()
	stored, err := f.tickets.GetByID(context.Background(), id)
	require.NoError(t, err)
	stored.LastTouched = f.now.Add(-idle)
	require.NoError(t, f.tickets.Update(context.Background(), stored))
}

func TestSweepEscalatesStaleTicketOneStep(t *testing.T) {
	f, escalator, metrics := newEscalationFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{AffectedUsers: 12})
	require.Equal(t, domain.TicketPriorityP3, ticket.Priority)
	f.ageTicket(t, ticket.ID, 5*time.Hour)

	require.NoError(t, escalator.RunSweep(context.Background(), f.now))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityP2, stored.Priority)
	assert.Equal(t, 8, stored.SLATargetHours)
	require.NotNil(t, stored.SLADueAt)
	assert.Equal(t, f.now.Add(8*time.Hour), *stored.SLADueAt)
	assert.Equal(t, domain.SystemActor, stored.UpdatedBy)
	assert.Equal(t, f.now, stored.LastTouched)

	entries := f.audit.forTicket(ticket.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, "priority_change", entries[1].Action)
	assert.Equal(t, "priority -> P2", entries[1].Detail)
	assert.Equal(t, domain.SystemActor, entries[1].PerformedBy)

	runs, escalated, failures := metrics.SweepStats()
	assert.Equal(t, int64(1), runs)
	assert.Equal(t, int64(1), escalated)
	assert.Equal(t, int64(0), failures)
}

func TestSweepIsIdempotentAcrossImmediateReruns(t *testing.T) {
	f, escalator, _ := newEscalationFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{AffectedUsers: 12})
	f.ageTicket(t, ticket.ID, 5*time.Hour)

	require.NoError(t, escalator.RunSweep(context.Background(), f.now))
	// The escalation write bumped last_touched, so the ticket is no
	// longer stale for a second pass at the same instant.
	require.NoError(t, escalator.RunSweep(context.Background(), f.now))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityP2, stored.Priority)
	assert.Len(t, f.audit.forTicket(ticket.ID), 2)
}

func TestSweepNeverEscalatesP1OrResolved(t *testing.T) {
	f, escalator, _ := newEscalationFixture(t)

	p1 := f.createTicket(t, TicketCreateInput{AffectedUsers: 60, BusinessCritical: true})
	require.Equal(t, domain.TicketPriorityP1, p1.Priority)
	f.ageTicket(t, p1.ID, 10*time.Hour)

	resolved := f.createTicket(t, TicketCreateInput{AffectedUsers: 5})
	_, err := f.service.UpdateTicket(context.Background(), resolved.ID, TicketUpdateInput{
		Status:    statusPtr(domain.TicketStatusResolved),
		RootCause: rootCausePtr(domain.RootCauseHumanError),
	}, "admin@example.com")
	require.NoError(t, err)
	f.ageTicket(t, resolved.ID, 10*time.Hour)

	require.NoError(t, escalator.RunSweep(context.Background(), f.now))

	storedP1, err := f.tickets.GetByID(context.Background(), p1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityP1, storedP1.Priority)

	storedResolved, err := f.tickets.GetByID(context.Background(), resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, storedResolved.Status)
}

func TestSweepSkipsFreshTickets(t *testing.T) {
	f, escalator, metrics := newEscalationFixture(t)
	ticket := f.createTicket(t, TicketCreateInput{AffectedUsers: 12})
	f.ageTicket(t, ticket.ID, 3*time.Hour)

	require.NoError(t, escalator.RunSweep(context.Background(), f.now))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityP3, stored.Priority)

	_, escalated, _ := metrics.SweepStats()
	assert.Equal(t, int64(0), escalated)
}

func TestSweepContinuesPastPerTicketFailures(t *testing.T) {
	f, escalator, metrics := newEscalationFixture(t)

	broken := f.createTicket(t, TicketCreateInput{Title: "broken", AffectedUsers: 12})
	healthy := f.createTicket(t, TicketCreateInput{Title: "healthy", AffectedUsers: 12})
	f.ageTicket(t, broken.ID, 5*time.Hour)
	f.ageTicket(t, healthy.ID, 5*time.Hour)
	f.tickets.updateErrs[broken.ID] = errors.New("connection reset")

	require.NoError(t, escalator.RunSweep(context.Background(), f.now))

	stored, err := f.tickets.GetByID(context.Background(), healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityP2, stored.Priority)

	_, escalated, failures := metrics.SweepStats()
	assert.Equal(t, int64(1), escalated)
	assert.Equal(t, int64(1), failures)
}
