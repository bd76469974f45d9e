package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	"github.com/spec-kit/servicedesk/internal/sla"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// TicketsHandler serves ticket endpoints for requesters and admins.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Type:             req.Type,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Priority:         req.Priority,
		AffectedUsers:    req.AffectedUsers,
		BusinessCritical: req.BusinessCritical,
		LinkedChangeID:   req.LinkedChangeID,
	}
	ticket, err := h.service.CreateTicket(c.Context(), user.Email, input)
	if err != nil {
		return err
	}
	view := service.TicketView{Ticket: *ticket, Sla: h.service.ClassifySla(ticket, time.Now())}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ticket": dto.FromTicketView(view)})
}

// ListTickets GET /tickets. Requesters see their own tickets; admins
// see everything.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	views, err := h.service.ListTickets(c.Context(), user, parseListOptions(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(views))
	for _, view := range views {
		items = append(items, dto.FromTicketView(view))
	}
	return c.JSON(fiber.Map{"tickets": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	view, comments, err := h.service.GetTicketForActor(c.Context(), id, user)
	if err != nil {
		return err
	}
	commentItems := make([]dto.CommentResponse, 0, len(comments))
	for _, comment := range comments {
		commentItems = append(commentItems, dto.FromComment(comment))
	}
	return c.JSON(fiber.Map{
		"ticket":   dto.FromTicketView(*view),
		"comments": commentItems,
	})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	_, comments, err := h.service.GetTicketForActor(c.Context(), id, user)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for _, comment := range comments {
		items = append(items, dto.FromComment(comment))
	}
	return c.JSON(fiber.Map{"comments": items})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.AddComment(c.Context(), id, req.Message, req.Visibility, user)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"comment": dto.FromComment(*comment)})
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func parseListOptions(c *fiber.Ctx) service.ListOptions {
	opts := service.ListOptions{Sort: c.Query("sort")}
	filter := repository.TicketFilter{}

	for _, part := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitQuery(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(part))
	}
	filter.Categories = splitQuery(c.Query("category"))
	filter.AssignedTo = splitQuery(c.Query("assigned_to"))
	filter.Unassigned = c.Query("unassigned") == "1"
	if critical := c.Query("critical"); critical == "0" || critical == "1" {
		value := critical == "1"
		filter.Critical = &value
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	if dateRange := c.Query("date_range"); dateRange != "" && dateRange != "all" {
		if cutoff := rangeCutoff(dateRange); cutoff != nil {
			filter.CreatedFrom = cutoff
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	for _, part := range splitQuery(c.Query("sla_status")) {
		opts.SlaStatuses = append(opts.SlaStatuses, sla.Status(part))
	}

	opts.Filter = filter
	return opts
}

func rangeCutoff(dateRange string) *time.Time {
	var window time.Duration
	switch dateRange {
	case "24h":
		window = 24 * time.Hour
	case "7d":
		window = 7 * 24 * time.Hour
	case "30d":
		window = 30 * 24 * time.Hour
	default:
		return nil
	}
	cutoff := time.Now().Add(-window)
	return &cutoff
}

func splitQuery(val string) []string {
	if val == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
