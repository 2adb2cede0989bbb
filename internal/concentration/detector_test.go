package concentration

import (
	"strings"
	"testing"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
)

func testPolicy() config.ConcentrationPolicy {
	return config.ConcentrationPolicy{TopN: 10, TopHoldersThreshold: 0.30, WhaleThreshold: 0.10}
}

func snapshot(holders ...domain.HolderBalance) *domain.Snapshot {
	return &domain.Snapshot{
		HoldersResolved: true,
		HolderSupply:    1000,
		Holders:         holders,
		Pool:            &domain.LiquidityPool{PoolID: "amm", VaultOwners: []string{"ammAuthority"}},
	}
}

func TestDetect_Concentrated(t *testing.T) {
	d := NewDetector(testPolicy(), []string{"locker"})
	f := d.Detect(snapshot(
		domain.HolderBalance{Owner: "whale", TokenAccount: "a1", Amount: 300},
		domain.HolderBalance{Owner: "whale", TokenAccount: "a2", Amount: 100},
		domain.HolderBalance{Owner: "ammAuthority", TokenAccount: "vault", Amount: 500},
		domain.HolderBalance{Owner: "x", TokenAccount: "locker", Amount: 50},
		domain.HolderBalance{Owner: "small", TokenAccount: "a3", Amount: 50},
	))

	if len(f.Signals) != 1 {
		t.Fatalf("expected 1 signal, got %+v", f.Signals)
	}
	// whale 400 + small 50 = 45% of supply
	want := (0.45 - 0.30) / 0.70
	if got := f.Signals[0].RawValue; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("expected raw %v, got %v", want, got)
	}

	var whale bool
	for _, n := range f.Notes {
		if strings.Contains(n.Detail, "whale whale") {
			whale = true
		}
	}
	if !whale {
		t.Errorf("expected whale note, got %+v", f.Notes)
	}
}

func TestDetect_Distributed(t *testing.T) {
	d := NewDetector(testPolicy(), nil)
	var holders []domain.HolderBalance
	for _, o := range []string{"a", "b", "c", "d", "e"} {
		holders = append(holders, domain.HolderBalance{Owner: o, TokenAccount: o + "-acct", Amount: 50})
	}
	f := d.Detect(snapshot(holders...))
	if len(f.Signals) != 0 {
		t.Errorf("25%% top share must not signal, got %+v", f.Signals)
	}
}

func TestDetect_TopNLimit(t *testing.T) {
	p := testPolicy()
	p.TopN = 2
	d := NewDetector(p, nil)
	f := d.Detect(snapshot(
		domain.HolderBalance{Owner: "a", Amount: 200},
		domain.HolderBalance{Owner: "b", Amount: 150},
		domain.HolderBalance{Owner: "c", Amount: 100},
	))
	if len(f.Signals) != 1 {
		t.Fatalf("expected signal from top 2 (35%%), got %+v", f.Signals)
	}
	want := (0.35 - 0.30) / 0.70
	if got := f.Signals[0].RawValue; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("expected raw %v, got %v", want, got)
	}
}

func TestDetect_Unavailable(t *testing.T) {
	d := NewDetector(testPolicy(), nil)
	f := d.Detect(&domain.Snapshot{Unavailable: map[domain.Fact]string{domain.FactHolders: "timeout"}})
	if len(f.Signals) != 1 || f.Signals[0].Confidence != domain.ConfidenceUnknown {
		t.Errorf("expected unknown signal, got %+v", f.Signals)
	}
}
