package alert

import (
	"testing"
	"time"

	"github.com/scoutpulse/scout-engine/internal/domain/player"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func contractEnd(months int) *time.Time {
	t := testNow.AddDate(0, months, 0)
	return &t
}

func baseSnapshot() player.Snapshot {
	return player.Snapshot{
		ID:            42,
		Name:          "J. Silva",
		Position:      "CM",
		Age:           25,
		CurrentTeam:   "FC Porto",
		MarketValue:   20,
		OverallRating: 7.5,
		ContractEndsAt: func() *time.Time {
			t := testNow.AddDate(2, 0, 0)
			return &t
		}(),
	}
}

func TestEvaluate_PriceDropThreshold(t *testing.T) {
	t.Parallel()

	cfg := DefaultRuleConfig("tenant-1", RulePriceDrop)
	cfg.PriceDropFraction = 0.15

	s := baseSnapshot()
	s.LastTransferValue = 20
	s.MarketValue = 16 // 20% drop

	c, fired := Evaluate(RulePriceDrop, s, cfg, testNow)
	if !fired {
		t.Fatal("20% drop against a 15% threshold should fire")
	}
	if got := c.Payload["drop_percent"].(float64); got < 19.9 || got > 20.1 {
		t.Fatalf("drop_percent = %v, want ~20", got)
	}

	s.MarketValue = 18 // 10% drop
	if _, fired := Evaluate(RulePriceDrop, s, cfg, testNow); fired {
		t.Fatal("10% drop against a 15% threshold must not fire")
	}
}

func TestEvaluate_ContractEndingPriority(t *testing.T) {
	t.Parallel()

	cfg := DefaultRuleConfig("tenant-1", RuleContractEnding)

	s := baseSnapshot()
	s.ContractEndsAt = contractEnd(2)

	c, fired := Evaluate(RuleContractEnding, s, cfg, testNow)
	if !fired {
		t.Fatal("contract ending in 2 months should fire")
	}
	if c.Priority != PriorityHigh {
		t.Fatalf("priority = %s, want high for <=3 months", c.Priority)
	}

	s.ContractEndsAt = contractEnd(5)
	c, fired = Evaluate(RuleContractEnding, s, cfg, testNow)
	if !fired || c.Priority != PriorityMedium {
		t.Fatalf("fired=%v priority=%s, want medium firing for 5 months", fired, c.Priority)
	}

	s.ContractEndsAt = contractEnd(9)
	if _, fired := Evaluate(RuleContractEnding, s, cfg, testNow); fired {
		t.Fatal("contract ending in 9 months is outside the 6-month window")
	}
}

func TestEvaluate_RuleGatesOnThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		rule    RuleType
		mutate  func(*player.Snapshot)
		fired   bool
		wantPri Priority
	}{
		{
			name: "undervalued fires below 2M per rating point",
			rule: RuleUndervaluedPlayer,
			mutate: func(s *player.Snapshot) {
				s.OverallRating = 8.2
				s.MarketValue = 12
			},
			fired:   true,
			wantPri: PriorityHigh,
		},
		{
			name: "undervalued ignores fair pricing",
			rule: RuleUndervaluedPlayer,
			mutate: func(s *player.Snapshot) {
				s.OverallRating = 7.0
				s.MarketValue = 14.5
			},
			fired: false,
		},
		{
			name: "rising star needs growth headroom",
			rule: RuleRisingStar,
			mutate: func(s *player.Snapshot) {
				s.Age = 19
				s.OverallRating = 7.2
				s.PotentialRating = 9.0
				s.Trend = player.TrendRising
			},
			fired:   true,
			wantPri: PriorityMedium,
		},
		{
			name: "rising star ignores flat trend",
			rule: RuleRisingStar,
			mutate: func(s *player.Snapshot) {
				s.Age = 19
				s.OverallRating = 7.2
				s.PotentialRating = 9.0
				s.Trend = player.TrendStable
			},
			fired: false,
		},
		{
			name: "release clause below 90% of value",
			rule: RuleReleaseClause,
			mutate: func(s *player.Snapshot) {
				s.OverallRating = 8.0
				s.MarketValue = 30
				s.ReleaseClause = 22
			},
			fired:   true,
			wantPri: PriorityHigh,
		},
		{
			name: "release clause near market value stays quiet",
			rule: RuleReleaseClause,
			mutate: func(s *player.Snapshot) {
				s.OverallRating = 8.0
				s.MarketValue = 30
				s.ReleaseClause = 29
			},
			fired: false,
		},
		{
			name: "performance surge on goal involvement",
			rule: RulePerformanceSurge,
			mutate: func(s *player.Snapshot) {
				s.GoalsSeason = 18
				s.AssistsSeason = 7
				s.AppearancesSeason = 25
			},
			fired:   true,
			wantPri: PriorityHigh,
		},
		{
			name: "loan opportunity requires listing",
			rule: RuleLoanOpportunity,
			mutate: func(s *player.Snapshot) {
				s.LoanListed = false
			},
			fired: false,
		},
		{
			name: "transfer rumor is low priority",
			rule: RuleTransferRumor,
			mutate: func(s *player.Snapshot) {
				s.TransferRumor = true
			},
			fired:   true,
			wantPri: PriorityLow,
		},
		{
			name: "injury recovery after a long layoff",
			rule: RuleInjuryRecovery,
			mutate: func(s *player.Snapshot) {
				s.OverallRating = 8.3
				s.DaysInjuredSeason = 60
				s.Injured = false
			},
			fired:   true,
			wantPri: PriorityMedium,
		},
		{
			name: "injury recovery waits until fit",
			rule: RuleInjuryRecovery,
			mutate: func(s *player.Snapshot) {
				s.OverallRating = 8.3
				s.DaysInjuredSeason = 60
				s.Injured = true
			},
			fired: false,
		},
		{
			name: "free agent after contract end",
			rule: RuleFreeAgent,
			mutate: func(s *player.Snapshot) {
				past := testNow.AddDate(0, -1, 0)
				s.ContractEndsAt = &past
			},
			fired:   true,
			wantPri: PriorityHigh,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := baseSnapshot()
			tc.mutate(&s)

			cfg := DefaultRuleConfig("tenant-1", tc.rule)
			c, fired := Evaluate(tc.rule, s, cfg, testNow)
			if fired != tc.fired {
				t.Fatalf("fired = %v, want %v", fired, tc.fired)
			}
			if fired {
				if c.SubjectID != s.ID {
					t.Fatalf("subject = %d, want %d", c.SubjectID, s.ID)
				}
				if c.Priority != tc.wantPri {
					t.Fatalf("priority = %s, want %s", c.Priority, tc.wantPri)
				}
			}
		})
	}
}
