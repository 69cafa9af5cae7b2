package alert

import (
	"fmt"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/player"
)

// Candidate is a rule firing before tenant persistence and dedup.
type Candidate struct {
	Rule      RuleType
	SubjectID int64
	Priority  Priority
	Title     string
	Message   string
	Payload   map[string]any
}

// Evaluate runs one rule predicate over a player snapshot. Predicates only
// read the snapshot and produce at most one candidate per subject per pass.
func Evaluate(rule RuleType, s player.Snapshot, cfg RuleConfig, now time.Time) (Candidate, bool) {
	cfg = NormalizeRuleConfig(cfg)

	switch rule {
	case RuleContractEnding:
		return evaluateContractEnding(s, cfg, now)
	case RuleFreeAgent:
		return evaluateFreeAgent(s, cfg, now)
	case RulePriceDrop:
		return evaluatePriceDrop(s, cfg)
	case RulePerformanceSurge:
		return evaluatePerformanceSurge(s, cfg)
	case RuleInjuryRecovery:
		return evaluateInjuryRecovery(s, cfg)
	case RuleUndervaluedPlayer:
		return evaluateUndervalued(s, cfg)
	case RuleRisingStar:
		return evaluateRisingStar(s, cfg)
	case RuleLoanOpportunity:
		return evaluateLoanOpportunity(s, cfg)
	case RuleReleaseClause:
		return evaluateReleaseClause(s, cfg)
	case RuleTransferRumor:
		return evaluateTransferRumor(s, cfg)
	default:
		return Candidate{}, false
	}
}

func evaluateContractEnding(s player.Snapshot, cfg RuleConfig, now time.Time) (Candidate, bool) {
	months := s.ContractMonthsLeft(now)
	if months < 0 || months > cfg.ContractMonths {
		return Candidate{}, false
	}
	if s.FreeAgent(now) {
		// Handled by the free-agent rule instead.
		return Candidate{}, false
	}
	if s.OverallRating < cfg.MinRating || s.Age > cfg.MaxAge || s.MarketValue > cfg.MaxBudget {
		return Candidate{}, false
	}

	priority := PriorityMedium
	if months <= 3 {
		priority = PriorityHigh
	}

	return Candidate{
		Rule:      RuleContractEnding,
		SubjectID: s.ID,
		Priority:  priority,
		Title:     fmt.Sprintf("Contract ending: %s", s.Name),
		Message: fmt.Sprintf("%s (%s) is out of contract in %d months. Value €%.1fM, rating %.1f/10",
			s.Name, s.Position, months, s.MarketValue, s.OverallRating),
		Payload: map[string]any{
			"months_remaining": months,
			"market_value":     s.MarketValue,
			"position":         s.Position,
			"age":              s.Age,
			"current_team":     s.CurrentTeam,
		},
	}, true
}

func evaluateFreeAgent(s player.Snapshot, cfg RuleConfig, now time.Time) (Candidate, bool) {
	if !s.FreeAgent(now) || s.OverallRating < cfg.MinRating || s.Age > cfg.MaxAge {
		return Candidate{}, false
	}

	return Candidate{
		Rule:      RuleFreeAgent,
		SubjectID: s.ID,
		Priority:  PriorityHigh,
		Title:     fmt.Sprintf("Free agent: %s", s.Name),
		Message: fmt.Sprintf("%s (%s) is available on a free transfer. Rating %.1f/10",
			s.Name, s.Position, s.OverallRating),
		Payload: map[string]any{
			"position":  s.Position,
			"age":       s.Age,
			"last_team": s.CurrentTeam,
		},
	}, true
}

func evaluatePriceDrop(s player.Snapshot, cfg RuleConfig) (Candidate, bool) {
	if s.LastTransferValue <= 0 || s.MarketValue <= 0 || s.OverallRating < cfg.MinRating {
		return Candidate{}, false
	}

	change := (s.MarketValue - s.LastTransferValue) / s.LastTransferValue
	if change > -cfg.PriceDropFraction {
		return Candidate{}, false
	}

	dropPct := -change * 100

	return Candidate{
		Rule:      RulePriceDrop,
		SubjectID: s.ID,
		Priority:  PriorityMedium,
		Title:     fmt.Sprintf("Price drop: %s", s.Name),
		Message: fmt.Sprintf("%s dropped %.1f%% in value, from €%.1fM to €%.1fM",
			s.Name, dropPct, s.LastTransferValue, s.MarketValue),
		Payload: map[string]any{
			"drop_percent": dropPct,
			"old_value":    s.LastTransferValue,
			"new_value":    s.MarketValue,
		},
	}, true
}

func evaluatePerformanceSurge(s player.Snapshot, cfg RuleConfig) (Candidate, bool) {
	if s.GoalsSeason < 15 || s.Age > cfg.MaxAge || s.MarketValue > cfg.MaxBudget {
		return Candidate{}, false
	}

	score := float64(s.GoalsSeason)*0.4 + float64(s.AssistsSeason)*0.3 + s.OverallRating*0.3
	if score < cfg.PerformanceThreshold*10 {
		return Candidate{}, false
	}

	return Candidate{
		Rule:      RulePerformanceSurge,
		SubjectID: s.ID,
		Priority:  PriorityHigh,
		Title:     fmt.Sprintf("Exceptional form: %s", s.Name),
		Message: fmt.Sprintf("%s is in excellent form: %dG + %dA in %d appearances",
			s.Name, s.GoalsSeason, s.AssistsSeason, s.AppearancesSeason),
		Payload: map[string]any{
			"goals":             s.GoalsSeason,
			"assists":           s.AssistsSeason,
			"appearances":       s.AppearancesSeason,
			"performance_score": score,
		},
	}, true
}

func evaluateInjuryRecovery(s player.Snapshot, cfg RuleConfig) (Candidate, bool) {
	if s.Injured || s.DaysInjuredSeason <= 30 || s.OverallRating < 8.0 || s.Age > cfg.MaxAge {
		return Candidate{}, false
	}

	return Candidate{
		Rule:      RuleInjuryRecovery,
		SubjectID: s.ID,
		Priority:  PriorityMedium,
		Title:     fmt.Sprintf("Back from injury: %s", s.Name),
		Message: fmt.Sprintf("%s returned after %d days out. A window to negotiate at a discount",
			s.Name, s.DaysInjuredSeason),
		Payload: map[string]any{
			"days_injured":      s.DaysInjuredSeason,
			"pre_injury_rating": s.OverallRating,
		},
	}, true
}

func evaluateUndervalued(s player.Snapshot, cfg RuleConfig) (Candidate, bool) {
	if s.OverallRating < 8.0 || s.MarketValue <= 0 || s.MarketValue > 15.0 || s.Age > cfg.MaxAge {
		return Candidate{}, false
	}

	// Less than 2M per rating point reads as a bargain.
	ratio := s.MarketValue / s.OverallRating
	if ratio >= 2.0 {
		return Candidate{}, false
	}

	return Candidate{
		Rule:      RuleUndervaluedPlayer,
		SubjectID: s.ID,
		Priority:  PriorityHigh,
		Title:     fmt.Sprintf("Undervalued: %s", s.Name),
		Message: fmt.Sprintf("%s rates %.1f/10 for only €%.1fM",
			s.Name, s.OverallRating, s.MarketValue),
		Payload: map[string]any{
			"value_quality_ratio": ratio,
			"market_value":        s.MarketValue,
			"overall_rating":      s.OverallRating,
		},
	}, true
}

func evaluateRisingStar(s player.Snapshot, cfg RuleConfig) (Candidate, bool) {
	if s.Age > 22 || s.PotentialRating < 8.5 || s.Trend != player.TrendRising || s.MarketValue > cfg.MaxBudget {
		return Candidate{}, false
	}

	growth := s.PotentialRating - s.OverallRating
	if growth < 1.5 {
		return Candidate{}, false
	}

	return Candidate{
		Rule:      RuleRisingStar,
		SubjectID: s.ID,
		Priority:  PriorityMedium,
		Title:     fmt.Sprintf("Rising star: %s", s.Name),
		Message: fmt.Sprintf("%s (%d) has potential %.1f/10 against current %.1f/10 (+%.1f headroom)",
			s.Name, s.Age, s.PotentialRating, s.OverallRating, growth),
		Payload: map[string]any{
			"potential_rating": s.PotentialRating,
			"current_rating":   s.OverallRating,
			"growth_potential": growth,
		},
	}, true
}

func evaluateLoanOpportunity(s player.Snapshot, cfg RuleConfig) (Candidate, bool) {
	if !s.LoanListed || s.Age > cfg.MaxAge || s.OverallRating < cfg.MinRating {
		return Candidate{}, false
	}

	return Candidate{
		Rule:      RuleLoanOpportunity,
		SubjectID: s.ID,
		Priority:  PriorityMedium,
		Title:     fmt.Sprintf("Loan available: %s", s.Name),
		Message: fmt.Sprintf("%s (%s) is listed for loan. Rating %.1f/10, age %d",
			s.Name, s.Position, s.OverallRating, s.Age),
		Payload: map[string]any{
			"parent_club": s.CurrentTeam,
			"position":    s.Position,
			"rating":      s.OverallRating,
		},
	}, true
}

func evaluateReleaseClause(s player.Snapshot, cfg RuleConfig) (Candidate, bool) {
	if s.ReleaseClause <= 0 || s.ReleaseClause > cfg.MaxBudget || s.OverallRating < cfg.MinRating {
		return Candidate{}, false
	}
	if s.ReleaseClause >= s.MarketValue*0.9 {
		return Candidate{}, false
	}

	return Candidate{
		Rule:      RuleReleaseClause,
		SubjectID: s.ID,
		Priority:  PriorityHigh,
		Title:     fmt.Sprintf("Affordable clause: %s", s.Name),
		Message: fmt.Sprintf("%s has a €%.1fM release clause against a €%.1fM market value",
			s.Name, s.ReleaseClause, s.MarketValue),
		Payload: map[string]any{
			"release_clause": s.ReleaseClause,
			"market_value":   s.MarketValue,
			"savings":        s.MarketValue - s.ReleaseClause,
		},
	}, true
}

func evaluateTransferRumor(s player.Snapshot, cfg RuleConfig) (Candidate, bool) {
	if !s.TransferRumor || s.OverallRating < cfg.MinRating {
		return Candidate{}, false
	}

	return Candidate{
		Rule:      RuleTransferRumor,
		SubjectID: s.ID,
		Priority:  PriorityLow,
		Title:     fmt.Sprintf("Transfer rumor: %s", s.Name),
		Message: fmt.Sprintf("%s (%s, %s) is linked with a move",
			s.Name, s.Position, s.CurrentTeam),
		Payload: map[string]any{
			"current_team": s.CurrentTeam,
			"market_value": s.MarketValue,
		},
	}, true
}
