package sla

import "github.com/spec-kit/servicedesk/internal/domain"

// DefaultManualPriority is assumed when the caller supplies no priority
// or an unknown value.
const DefaultManualPriority = domain.TicketPriorityP3

// severityRank orders priorities with P1 most severe. Lower rank wins.
var severityRank = map[domain.TicketPriority]int{
	domain.TicketPriorityP1: 0,
	domain.TicketPriorityP2: 1,
	domain.TicketPriorityP3: 2,
	domain.TicketPriorityP4: 3,
}

// targetHours maps effective priority to the SLA window in hours.
var targetHours = map[domain.TicketPriority]int{
	domain.TicketPriorityP1: 4,
	domain.TicketPriorityP2: 8,
	domain.TicketPriorityP3: 24,
	domain.TicketPriorityP4: 72,
}

// categoryResolverGroups routes new tickets to a resolver group by
// category. Unmapped categories land on the service desk.
var categoryResolverGroups = map[string]string{
	"Network":  "Network Team",
	"Accounts": "IAM Team",
	"Hardware": "Desktop Support",
	"Software": "Application Support",
}

// DefaultResolverGroup is the fallback for unmapped categories.
const DefaultResolverGroup = "Service Desk"

// Normalize coerces an arbitrary priority value to a known one,
// falling back to the default manual priority.
func Normalize(p domain.TicketPriority) domain.TicketPriority {
	if _, ok := severityRank[p]; !ok {
		return DefaultManualPriority
	}
	return p
}

// MoreSevere returns the more severe (lower-numbered) of two priorities.
// Unknown inputs are normalized first.
func MoreSevere(a, b domain.TicketPriority) domain.TicketPriority {
	a, b = Normalize(a), Normalize(b)
	if severityRank[a] < severityRank[b] {
		return a
	}
	return b
}

// Derive computes the effective priority from the manually chosen
// priority plus severity signals. The result is never less severe than
// either input: a low manual priority cannot mask a high-impact
// incident, and the signal ladder cannot downgrade an explicit urgent
// classification. Total function; invalid inputs are coerced, never
// rejected.
func Derive(manual domain.TicketPriority, affectedUsers int, businessCritical bool) domain.TicketPriority {
	if affectedUsers < 1 {
		affectedUsers = 1
	}

	derived := domain.TicketPriorityP4
	switch {
	case businessCritical && affectedUsers >= 50:
		derived = domain.TicketPriorityP1
	case (businessCritical && affectedUsers >= 10) || affectedUsers >= 100:
		derived = domain.TicketPriorityP2
	case businessCritical || affectedUsers >= 50:
		derived = domain.TicketPriorityP2
	case affectedUsers >= 10:
		derived = domain.TicketPriorityP3
	}

	return MoreSevere(Normalize(manual), derived)
}

// TargetHours returns the SLA window for a priority.
func TargetHours(p domain.TicketPriority) int {
	if hours, ok := targetHours[p]; ok {
		return hours
	}
	return targetHours[DefaultManualPriority]
}

// NextMoreSevere returns the priority one step up the escalation ladder
// (P4 -> P3 -> P2 -> P1). P1 is the ceiling and maps to itself.
func NextMoreSevere(p domain.TicketPriority) domain.TicketPriority {
	switch Normalize(p) {
	case domain.TicketPriorityP4:
		return domain.TicketPriorityP3
	case domain.TicketPriorityP3:
		return domain.TicketPriorityP2
	case domain.TicketPriorityP2:
		return domain.TicketPriorityP1
	default:
		return domain.TicketPriorityP1
	}
}

// ResolverGroupFor returns the default resolver group for a category.
func ResolverGroupFor(category string) string {
	if group, ok := categoryResolverGroups[category]; ok {
		return group
	}
	return DefaultResolverGroup
}
