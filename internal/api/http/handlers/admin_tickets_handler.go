package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// dashboardCacheKey holds the cached aggregate counts.
const dashboardCacheKey = "servicedesk:dashboard"

// dashboardCacheTTL bounds staleness of the cached dashboard.
const dashboardCacheTTL = 30 * time.Second

// AdminTicketsHandler serves admin-only ticket operations.
type AdminTicketsHandler struct {
	service  *service.TicketService
	activity *service.ActivityService
	metrics  *observability.Metrics
	redis    *redis.Client
	logger   *zap.Logger
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(ticketService *service.TicketService, activity *service.ActivityService, metrics *observability.Metrics, redisClient *redis.Client, logger *zap.Logger) *AdminTicketsHandler {
	return &AdminTicketsHandler{
		service:  ticketService,
		activity: activity,
		metrics:  metrics,
		redis:    redisClient,
		logger:   logger,
	}
}

// UpdateTicket PATCH /admin/tickets/:id. All edits pass through the
// transition guard; rejections surface with their specific codes.
func (h *AdminTicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketUpdateInput{
		Status:           req.Status,
		Priority:         req.Priority,
		ResolverGroup:    req.ResolverGroup,
		AssignedTo:       req.AssignedTo,
		Category:         req.Category,
		AffectedUsers:    req.AffectedUsers,
		BusinessCritical: req.BusinessCritical,
		RootCause:        req.RootCause,
		LinkedChangeID:   req.LinkedChangeID,
		ChangeApproved:   req.ChangeApproved,
		Justification:    req.Justification,
	}
	ticket, err := h.service.UpdateTicket(c.Context(), id, input, user.Email)
	if err != nil {
		return err
	}
	view := service.TicketView{Ticket: *ticket, Sla: h.service.ClassifySla(ticket, time.Now())}
	return c.JSON(fiber.Map{"ticket": dto.FromTicketView(view)})
}

// ListAudit GET /tickets/:id/audit.
func (h *AdminTicketsHandler) ListAudit(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListAudit(c.Context(), id, parseInt(c.Query("limit"), 100), parseInt(c.Query("offset"), 0))
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.FromAuditEntry(entry))
	}
	return c.JSON(fiber.Map{"audit": items})
}

// dashboardPayload is the cached aggregate shape.
type dashboardPayload struct {
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
}

// Dashboard GET /admin/dashboard. Aggregates are cached briefly in
// Redis; sweep metrics and the activity feed are always live.
func (h *AdminTicketsHandler) Dashboard(c *fiber.Ctx) error {
	payload, err := h.loadDashboard(c.Context())
	if err != nil {
		return err
	}

	runs, escalated, failures := h.metrics.SweepStats()
	response := fiber.Map{
		"by_status":   payload.ByStatus,
		"by_priority": payload.ByPriority,
		"escalation": fiber.Map{
			"sweep_runs":        runs,
			"tickets_escalated": escalated,
			"sweep_failures":    failures,
		},
	}

	if h.activity != nil {
		recent, err := h.activity.Recent(c.Context(), 20)
		if err != nil {
			h.logger.Warn("activity feed read failed", zap.Error(err))
		} else {
			response["recent_activity"] = recent
		}
	}
	return c.JSON(response)
}

func (h *AdminTicketsHandler) loadDashboard(ctx context.Context) (*dashboardPayload, error) {
	if h.redis != nil {
		if cached, err := h.redis.Get(ctx, dashboardCacheKey).Result(); err == nil {
			var payload dashboardPayload
			if err := json.Unmarshal([]byte(cached), &payload); err == nil {
				return &payload, nil
			}
		}
	}

	byStatus, byPriority, err := h.service.DashboardCounts(ctx)
	if err != nil {
		return nil, err
	}
	payload := &dashboardPayload{
		ByStatus:   make(map[string]int, len(byStatus)),
		ByPriority: make(map[string]int, len(byPriority)),
	}
	for status, count := range byStatus {
		payload.ByStatus[string(status)] = count
	}
	for priority, count := range byPriority {
		payload.ByPriority[string(priority)] = count
	}

	if h.redis != nil {
		if encoded, err := json.Marshal(payload); err == nil {
			if err := h.redis.Set(ctx, dashboardCacheKey, encoded, dashboardCacheTTL).Err(); err != nil {
				h.logger.Warn("dashboard cache write failed", zap.Error(err))
			}
		}
	}
	return payload, nil
}
