// Package models defines shared domain constants for Shop Queue.
//
// Note: The entity definitions live in the store package alongside their
// data access methods. This package holds the enumerations shared across
// the store, engine, and API layers.
package models

// QueueStatus constants.
const (
	QueueStatusWaiting    = "waiting"
	QueueStatusConfirmed  = "confirmed"
	QueueStatusInProgress = "in_progress"
	QueueStatusServing    = "serving"
	QueueStatusCompleted  = "completed"
	QueueStatusCancelled  = "cancelled"
)

// QueuePriority constants, ordinal: urgent > high > normal.
const (
	QueuePriorityNormal = "normal"
	QueuePriorityHigh   = "high"
	QueuePriorityUrgent = "urgent"
)

// EmployeeStatus constants. Only active employees are assignable.
const (
	EmployeeStatusActive   = "active"
	EmployeeStatusInactive = "inactive"
	EmployeeStatusOnLeave  = "on_leave"
)

// CustomerTier constants.
const (
	TierRegular = "regular"
	TierSilver  = "silver"
	TierGold    = "gold"
	TierPremium = "premium"
	TierVIP     = "vip"
)

// ScoringStrategy names. Unrecognized names fall back to wait-time scoring.
const (
	ScoringWaitTime          = "wait_time"
	ScoringCustomerTier      = "customer_tier"
	ScoringServiceComplexity = "service_complexity"
	ScoringRevenue           = "revenue"
	ScoringCombined          = "combined"
)

// AssignmentStrategy names. Unrecognized names fall back to load balancing.
const (
	AssignLoadBalancing = "load_balancing"
	AssignPriority      = "priority"
	AssignRoundRobin    = "round_robin"
	AssignSkills        = "skills"
)

// ShopTier constants.
const (
	ShopTierFree       = "free"
	ShopTierPro        = "pro"
	ShopTierEnterprise = "enterprise"
)

// ValidQueueTransitions maps a queue status to the statuses it may move to
// through the status endpoint. Auto-assignment performs waiting →
// in_progress through its own conditional update.
var ValidQueueTransitions = map[string][]string{
	QueueStatusWaiting:    {QueueStatusConfirmed, QueueStatusInProgress, QueueStatusCancelled},
	QueueStatusConfirmed:  {QueueStatusWaiting, QueueStatusCancelled},
	QueueStatusInProgress: {QueueStatusServing, QueueStatusCompleted, QueueStatusCancelled},
	QueueStatusServing:    {QueueStatusCompleted, QueueStatusCancelled},
	QueueStatusCompleted:  {},
	QueueStatusCancelled:  {},
}

// CanTransitionQueue reports whether a queue may move from one status to
// another.
func CanTransitionQueue(from, to string) bool {
	for _, allowed := range ValidQueueTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
