package scoring

import (
	"math"
	"testing"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	a, err := NewAggregatorFromPolicy(config.DefaultPolicy())
	if err != nil {
		t.Fatalf("NewAggregatorFromPolicy: %v", err)
	}
	return a
}

func TestAggregate_NoSignals(t *testing.T) {
	res := newTestAggregator(t).Aggregate(nil)
	if res.Score != 100 || len(res.Contributions) != 0 {
		t.Errorf("expected clean 100, got %s", res.Describe())
	}
}

func TestAggregate_ObservedPenalty(t *testing.T) {
	res := newTestAggregator(t).Aggregate([]domain.RiskSignal{
		domain.Observed(domain.SignalMintAuthorityActive, 1),
		domain.Observed(domain.SignalWashTradingDetected, 0.5),
	})
	// 100 - 30 - 20*0.5
	if res.Score != 60 {
		t.Errorf("expected 60, got %s", res.Describe())
	}
	if res.Contributions[0].Name != domain.SignalMintAuthorityActive || res.Contributions[0].Contribution != -30 {
		t.Errorf("unexpected first contribution %+v", res.Contributions[0])
	}
	if res.Contributions[1].Severity != 20 || res.Contributions[1].Contribution != -10 {
		t.Errorf("unexpected second contribution %+v", res.Contributions[1])
	}
}

func TestAggregate_ClampsAtZero(t *testing.T) {
	var signals []domain.RiskSignal
	for _, name := range domain.AllSignals {
		signals = append(signals, domain.Observed(name, 1))
	}
	res := newTestAggregator(t).Aggregate(signals)
	if res.Score != 0 {
		t.Errorf("expected 0, got %s", res.Describe())
	}
	if res.Total >= 0 {
		t.Errorf("expected negative unclamped total, got %v", res.Total)
	}
}

func TestAggregate_UnknownPenaltyIsSmaller(t *testing.T) {
	a := newTestAggregator(t)

	unknown := a.Penalty(domain.Unknown(domain.SignalLiquidityUnlocked))
	// the mildest observed Unlocked has lockedFraction just under 0.30
	observed := a.Penalty(domain.Observed(domain.SignalLiquidityUnlocked, 1-0.29999))
	if !(unknown > 0 && unknown < observed) {
		t.Errorf("expected 0 < unknown (%v) < observed (%v)", unknown, observed)
	}
}

func TestAggregate_OrderIsDeclarationOrder(t *testing.T) {
	res := newTestAggregator(t).Aggregate([]domain.RiskSignal{
		domain.Observed(domain.SignalHolderConcentration, 0.1),
		domain.Unknown(domain.SignalLiquidityUnlocked),
		domain.Observed(domain.SignalMintAuthorityActive, 1),
	})
	want := []domain.SignalName{
		domain.SignalMintAuthorityActive,
		domain.SignalLiquidityUnlocked,
		domain.SignalHolderConcentration,
	}
	for i, name := range want {
		if res.Contributions[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, res.Contributions[i].Name)
		}
	}
}

func TestAggregate_Violations(t *testing.T) {
	res := newTestAggregator(t).Aggregate([]domain.RiskSignal{
		domain.Observed(domain.SignalMintAuthorityActive, 1.7),
		domain.Observed(domain.SignalMintAuthorityActive, 1),
		domain.Observed(domain.SignalWashTradingDetected, math.NaN()),
		domain.Observed("Bogus", 1),
		domain.Observed(domain.SignalHolderConcentration, -0.5),
	})

	if len(res.Violations) != 5 {
		t.Fatalf("expected 5 violations, got %+v", res.Violations)
	}
	for _, v := range res.Violations {
		if v.Kind != domain.NoteInvariantViolation {
			t.Errorf("unexpected note kind %s", v.Kind)
		}
	}
	// 100 - 30 (clamped to 1) - 20 (NaN treated as 1) - 0
	if res.Score != 50 {
		t.Errorf("expected 50, got %s", res.Describe())
	}
}

func TestAggregate_RoundsHalfAwayFromZero(t *testing.T) {
	a := newTestAggregator(t)
	// 100 - 15*0.5 = 92.5
	res := a.Aggregate([]domain.RiskSignal{domain.Observed(domain.SignalFreshWalletSurge, 0.5)})
	if res.Score != 93 {
		t.Errorf("expected 93, got %s", res.Describe())
	}
}

func TestNewAggregator_Validation(t *testing.T) {
	weights := config.DefaultPolicy().Weights()
	factors := config.DefaultPolicy().UnknownFactors()

	delete(weights, domain.SignalBotBuyingPattern)
	if _, err := NewAggregator(weights, factors); err == nil {
		t.Error("expected error for missing weight")
	}

	weights = config.DefaultPolicy().Weights()
	factors[domain.SignalBotBuyingPattern] = 1
	if _, err := NewAggregator(weights, factors); err == nil {
		t.Error("expected error for unknown factor of 1")
	}
}
