package service

import (
	"math"
	"sort"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// Sort keys accepted by ListTickets.
const (
	SortCreatedDesc  = "created_desc"
	SortCreatedAsc   = "created_asc"
	SortPriorityDesc = "priority_desc"
	SortPriorityAsc  = "priority_asc"
	SortSlaAsc       = "sla_asc"
)

var prioritySortRank = map[domain.TicketPriority]int{
	domain.TicketPriorityP1: 0,
	domain.TicketPriorityP2: 1,
	domain.TicketPriorityP3: 2,
	domain.TicketPriorityP4: 3,
}

func sortTicketViews(views []TicketView, key string) {
	switch key {
	case SortCreatedAsc:
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Ticket.CreatedAt.Before(views[j].Ticket.CreatedAt)
		})
	case SortPriorityDesc:
		sort.SliceStable(views, func(i, j int) bool {
			return prioritySortRank[views[i].Ticket.Priority] < prioritySortRank[views[j].Ticket.Priority]
		})
	case SortPriorityAsc:
		sort.SliceStable(views, func(i, j int) bool {
			return prioritySortRank[views[i].Ticket.Priority] > prioritySortRank[views[j].Ticket.Priority]
		})
	case SortSlaAsc:
		// Tightest remaining SLA first; tickets without a deadline sink.
		sort.SliceStable(views, func(i, j int) bool {
			return slaSortValue(views[i]) < slaSortValue(views[j])
		})
	case SortCreatedDesc, "":
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Ticket.CreatedAt.After(views[j].Ticket.CreatedAt)
		})
	}
}

func slaSortValue(view TicketView) float64 {
	if view.Sla.MinutesRemaining == nil {
		return math.Inf(1)
	}
	return float64(*view.Sla.MinutesRemaining)
}
