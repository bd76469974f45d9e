package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/repository"
)

// EscalationService sweeps for stale tickets and bumps their priority.
// It owns no state of its own beyond the ticket table: the staleness
// window resets because the escalation write bumps last_touched, which
// is the only guard against double escalation.
type EscalationService struct {
	tickets   repository.TicketRepository
	guard     *TicketService
	metrics   *observability.Metrics
	logger    *zap.Logger
	threshold time.Duration
}

// NewEscalationService constructs the service.
func NewEscalationService(tickets repository.TicketRepository, guard *TicketService, metrics *observability.Metrics, logger *zap.Logger, threshold time.Duration) *EscalationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = 4 * time.Hour
	}
	return &EscalationService{
		tickets:   tickets,
		guard:     guard,
		metrics:   metrics,
		logger:    logger,
		threshold: threshold,
	}
}

// RunSweep executes one escalation cycle: select unresolved, non-P1
// tickets idle past the threshold and escalate each one step. Per-ticket
// failures are logged and skipped; the sweep itself never returns an
// error for them so the remaining candidates are still processed.
func (s *EscalationService) RunSweep(ctx context.Context, now time.Time) error {
	stale, err := s.tickets.ListStale(ctx, s.threshold, now)
	if err != nil {
		s.logger.Error("escalation sweep: staleness scan failed", zap.Error(err))
		s.metrics.RecordSweep(0, 1)
		return err
	}

	escalated, failed := 0, 0
	for i := range stale {
		ticket := stale[i]
		updated, err := s.guard.Escalate(ctx, &ticket, now)
		if err != nil {
			failed++
			s.logger.Error("escalation sweep: ticket escalation failed",
				zap.Int64("ticket_id", ticket.ID),
				zap.String("ticket_number", ticket.TicketNumber),
				zap.Error(err))
			continue
		}
		escalated++
		s.logger.Info("ticket escalated",
			zap.Int64("ticket_id", updated.ID),
			zap.String("ticket_number", updated.TicketNumber),
			zap.String("old_priority", string(ticket.Priority)),
			zap.String("new_priority", string(updated.Priority)))
	}

	s.metrics.RecordSweep(escalated, failed)
	if escalated > 0 || failed > 0 {
		s.logger.Info("escalation sweep finished",
			zap.Int("candidates", len(stale)),
			zap.Int("escalated", escalated),
			zap.Int("failed", failed))
	}
	return nil
}
