package alert

import (
	"fmt"
	"time"
)

// RuleType tags the detection rule that produced an alert.
type RuleType string

const (
	RuleContractEnding    RuleType = "contract_ending"
	RuleFreeAgent         RuleType = "free_agent"
	RulePriceDrop         RuleType = "price_drop"
	RulePerformanceSurge  RuleType = "performance_surge"
	RuleInjuryRecovery    RuleType = "injury_recovery"
	RuleUndervaluedPlayer RuleType = "undervalued_player"
	RuleRisingStar        RuleType = "rising_star"
	RuleLoanOpportunity   RuleType = "loan_opportunity"
	RuleReleaseClause     RuleType = "release_clause"
	RuleTransferRumor     RuleType = "transfer_rumor"
)

var AllRuleTypes = []RuleType{
	RuleContractEnding,
	RuleFreeAgent,
	RulePriceDrop,
	RulePerformanceSurge,
	RuleInjuryRecovery,
	RuleUndervaluedPlayer,
	RuleRisingStar,
	RuleLoanOpportunity,
	RuleReleaseClause,
	RuleTransferRumor,
}

func ValidRuleType(rule RuleType) bool {
	for _, known := range AllRuleTypes {
		if rule == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// rank orders priorities for listing; higher sorts first.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

func MorePressing(a, b Priority) bool {
	return a.rank() > b.rank()
}

// Alert is one fired occurrence of a rule for a tenant and subject player.
// The payload is immutable after creation; only the read/acted flags flip.
type Alert struct {
	ID        string         `json:"id" db:"id"`
	TenantID  string         `json:"tenant_id" db:"tenant_id"`
	Rule      RuleType       `json:"rule" db:"rule"`
	SubjectID int64          `json:"subject_id" db:"subject_id"`
	Priority  Priority       `json:"priority" db:"priority"`
	Title     string         `json:"title" db:"title"`
	Message   string         `json:"message" db:"message"`
	Payload   map[string]any `json:"payload" db:"-"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	ExpiresAt time.Time      `json:"expires_at" db:"expires_at"`
	Read      bool           `json:"read" db:"read"`
	Acted     bool           `json:"acted" db:"acted"`
}

// DedupKey identifies an alert occurrence. While an un-expired, un-acted
// alert with the same key exists, the engine must not fire again.
func (a Alert) DedupKey() string {
	return DedupKey(a.TenantID, a.Rule, a.SubjectID)
}

func DedupKey(tenantID string, rule RuleType, subjectID int64) string {
	return fmt.Sprintf("%s|%s|%d", tenantID, rule, subjectID)
}

// Live reports whether the alert still suppresses re-firing at now.
func (a Alert) Live(now time.Time) bool {
	return !a.Acted && a.ExpiresAt.After(now)
}

// SuppressionWindow returns the default re-fire suppression per rule type.
// Slow-moving rules keep alerts live longer than fast market signals.
func SuppressionWindow(rule RuleType) time.Duration {
	switch rule {
	case RuleContractEnding, RuleFreeAgent, RuleRisingStar:
		return 30 * 24 * time.Hour
	case RuleUndervaluedPlayer:
		return 21 * 24 * time.Hour
	case RulePerformanceSurge, RuleLoanOpportunity:
		return 14 * 24 * time.Hour
	case RuleInjuryRecovery:
		return 10 * 24 * time.Hour
	case RulePriceDrop, RuleReleaseClause:
		return 7 * 24 * time.Hour
	case RuleTransferRumor:
		return 3 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Stats summarizes a tenant's alerts for the dashboard endpoint.
type Stats struct {
	Total        int              `json:"total"`
	Unread       int              `json:"unread"`
	HighPriority int              `json:"high_priority"`
	PerRule      map[RuleType]int `json:"per_rule"`
}
