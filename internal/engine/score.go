package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopqueue/shop-queue/internal/models"
)

// PriorityResult is the outcome of scoring one queue.
type PriorityResult struct {
	QueueID  string  `json:"queue_id"`
	Priority string  `json:"priority"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// Combined-strategy weights. They sum to 1.00, so the blended score stays
// within the union range of its inputs under normal inputs.
const (
	combinedWaitWeight       = 0.30
	combinedTierWeight       = 0.25
	combinedComplexityWeight = 0.25
	combinedRevenueWeight    = 0.20

	combinedUrgentThreshold = 75.0
	combinedHighThreshold   = 50.0
)

// Score computes a priority and score for one queue snapshot under the named
// strategy. It is pure: same snapshot and strategy, same result. Unknown
// strategy names fall back to wait-time scoring.
func Score(snapshot QueueSnapshot, strategy string) PriorityResult {
	var result PriorityResult
	switch strategy {
	case models.ScoringCustomerTier:
		result = scoreCustomerTier(snapshot)
	case models.ScoringServiceComplexity:
		result = scoreServiceComplexity(snapshot)
	case models.ScoringRevenue:
		result = scoreRevenue(snapshot)
	case models.ScoringCombined:
		result = scoreCombined(snapshot)
	default:
		result = scoreWaitTime(snapshot)
	}
	result.QueueID = snapshot.QueueID
	return result
}

// NotFoundResult is the sentinel for a requested queue id absent from the
// waiting pool. One stale id does not fail a batch.
func NotFoundResult(queueID string) PriorityResult {
	return PriorityResult{
		QueueID:  queueID,
		Priority: models.QueuePriorityNormal,
		Score:    50,
		Reason:   "not found",
	}
}

func scoreWaitTime(snapshot QueueSnapshot) PriorityResult {
	minutes := snapshot.WaitTimeMinutes
	reason := fmt.Sprintf("waiting %d minutes", minutes)

	switch {
	case minutes > 30:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 90, Reason: reason}
	case minutes > 15:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 60, Reason: reason}
	default:
		return PriorityResult{Priority: models.QueuePriorityNormal, Score: 30, Reason: reason}
	}
}

func scoreCustomerTier(snapshot QueueSnapshot) PriorityResult {
	tier := strings.ToLower(strings.TrimSpace(snapshot.CustomerTier))
	reason := fmt.Sprintf("customer tier %s", tierLabel(tier))

	switch tier {
	case models.TierVIP:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 90, Reason: reason}
	case models.TierPremium:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 80, Reason: reason}
	case models.TierGold:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 70, Reason: reason}
	case models.TierSilver:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 60, Reason: reason}
	default:
		return PriorityResult{Priority: models.QueuePriorityNormal, Score: 40, Reason: reason}
	}
}

func scoreServiceComplexity(snapshot QueueSnapshot) PriorityResult {
	complexity := complexityOf(snapshot.Services)
	reason := fmt.Sprintf("service complexity %d (%d service(s))", complexity, len(snapshot.Services))

	switch {
	case complexity > 80:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 85, Reason: reason}
	case complexity > 50:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 60, Reason: reason}
	default:
		return PriorityResult{Priority: models.QueuePriorityNormal, Score: 35, Reason: reason}
	}
}

func scoreRevenue(snapshot QueueSnapshot) PriorityResult {
	revenue := revenueOf(snapshot.Services)
	reason := fmt.Sprintf("estimated revenue %.2f", revenue)

	switch {
	case revenue > 1000:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 90, Reason: reason}
	case revenue > 500:
		return PriorityResult{Priority: models.QueuePriorityHigh, Score: 65, Reason: reason}
	default:
		return PriorityResult{Priority: models.QueuePriorityNormal, Score: 40, Reason: reason}
	}
}

func scoreCombined(snapshot QueueSnapshot) PriorityResult {
	wait := scoreWaitTime(snapshot)
	tier := scoreCustomerTier(snapshot)
	complexity := scoreServiceComplexity(snapshot)
	revenue := scoreRevenue(snapshot)

	score := wait.Score*combinedWaitWeight +
		tier.Score*combinedTierWeight +
		complexity.Score*combinedComplexityWeight +
		revenue.Score*combinedRevenueWeight

	priority := models.QueuePriorityNormal
	switch {
	case score >= combinedUrgentThreshold:
		priority = models.QueuePriorityUrgent
	case score >= combinedHighThreshold:
		priority = models.QueuePriorityHigh
	}

	return PriorityResult{
		Priority: priority,
		Score:    score,
		Reason:   wait.Reason + "; " + tier.Reason,
	}
}

// complexityOf derives a 0-100 complexity figure: the service count drives a
// capped base, specific service keywords add a bonus.
func complexityOf(services []ServiceLine) int {
	base := math.Min(float64(len(services))*20, 60)

	hasComplex := false
	hasPremium := false
	hasSpecial := false
	for _, line := range services {
		name := strings.ToLower(line.Name)
		if strings.Contains(name, "complex") {
			hasComplex = true
		}
		if strings.Contains(name, "premium") {
			hasPremium = true
		}
		if strings.Contains(name, "special") {
			hasSpecial = true
		}
	}

	bonus := 0.0
	if hasComplex {
		bonus += 20
	}
	if hasPremium {
		bonus += 15
	}
	if hasSpecial {
		bonus += 10
	}

	return int(math.Min(base+bonus, 100))
}

func revenueOf(services []ServiceLine) float64 {
	total := 0.0
	for _, line := range services {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}

func tierLabel(tier string) string {
	switch tier {
	case models.TierVIP, models.TierPremium, models.TierGold, models.TierSilver:
		return tier
	default:
		return models.TierRegular
	}
}
