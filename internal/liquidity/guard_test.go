package liquidity

import (
	"testing"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
)

const locker = "LockerVault"

func newGuard() *Guard {
	return NewGuard(config.LiquidityPolicy{
		LockedThreshold:          0.95,
		PartialThreshold:         0.30,
		KnownBurnOrLockAddresses: []string{locker},
	})
}

func pool(lockedAmount float64, rest ...domain.LPHolding) *domain.LiquidityPool {
	holders := append([]domain.LPHolding{
		{TokenAccount: "acct-burn", Owner: domain.BurnSentinel, Amount: lockedAmount, Resolved: true},
	}, rest...)
	return &domain.LiquidityPool{PoolID: "pool", LPMint: "lp", LPSupply: 100, LPSupplyResolved: true, Holders: holders}
}

func TestClassify_Boundaries(t *testing.T) {
	g := newGuard()
	tests := []struct {
		name   string
		locked float64
		want   domain.LockClass
	}{
		{"all burned", 100, domain.LockClassLocked},
		{"exactly locked threshold", 95, domain.LockClassLocked},
		{"just below locked", 94.999, domain.LockClassPartiallyLocked},
		{"exactly partial threshold", 30, domain.LockClassPartiallyLocked},
		{"just below partial", 29.999, domain.LockClassUnlocked},
		{"nothing locked", 0, domain.LockClassUnlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Classify(pool(tt.locked))
			if got.Class != tt.want {
				t.Errorf("locked %v: expected %s, got %s (fraction %v)", tt.locked, tt.want, got.Class, got.LockedFraction)
			}
		})
	}
}

func TestClassify_MatchesTokenAccountOrOwner(t *testing.T) {
	g := newGuard()
	p := &domain.LiquidityPool{
		LPSupply:         100,
		LPSupplyResolved: true,
		Holders: []domain.LPHolding{
			{TokenAccount: locker, Owner: "someone", Amount: 50, Resolved: true},
			{TokenAccount: "x", Owner: locker, Amount: 46, Resolved: true},
			{TokenAccount: "y", Owner: "dev", Amount: 4, Resolved: true},
		},
	}
	got := g.Classify(p)
	if got.Class != domain.LockClassLocked || got.LockedFraction != 0.96 {
		t.Errorf("expected LOCKED at 0.96, got %+v", got)
	}
}

func TestClassify_Unknown(t *testing.T) {
	g := newGuard()

	if got := g.Classify(nil); got.Class != domain.LockClassUnknown {
		t.Errorf("nil pool: expected UNKNOWN, got %s", got.Class)
	}

	p := pool(100)
	p.LPSupplyResolved = false
	if got := g.Classify(p); got.Class != domain.LockClassUnknown {
		t.Errorf("unresolved supply: expected UNKNOWN, got %s", got.Class)
	}

	p = pool(10, domain.LPHolding{TokenAccount: "v", Owner: locker, Resolved: false})
	if got := g.Classify(p); got.Class != domain.LockClassUnknown {
		t.Errorf("unresolved locker below threshold: expected UNKNOWN, got %s", got.Class)
	}

	p = pool(96, domain.LPHolding{TokenAccount: "v", Owner: locker, Resolved: false})
	if got := g.Classify(p); got.Class != domain.LockClassLocked {
		t.Errorf("unresolved locker above threshold: expected LOCKED, got %s", got.Class)
	}

	p = pool(10, domain.LPHolding{TokenAccount: "dev", Owner: "dev", Resolved: false})
	if got := g.Classify(p); got.Class != domain.LockClassUnlocked {
		t.Errorf("unresolved non-locker holder must not matter, got %s", got.Class)
	}
}

func TestClassify_UnresolvedOwnerIsPossibleVault(t *testing.T) {
	g := newGuard()
	p := &domain.LiquidityPool{
		LPSupply:         100,
		LPSupplyResolved: true,
		Holders: []domain.LPHolding{
			{TokenAccount: "acct-of-locker", Owner: "", Amount: 96, Resolved: false},
			{TokenAccount: "d", Owner: "dev", Amount: 4, Resolved: true},
		},
	}
	if got := g.Classify(p); got.Class != domain.LockClassUnknown {
		t.Fatalf("holding with unresolved owner: expected UNKNOWN, got %s", got.Class)
	}

	f := g.Detect(&domain.Snapshot{Pool: p})
	if len(f.Signals) != 1 || f.Signals[0].Name != domain.SignalLiquidityUnlocked ||
		f.Signals[0].Confidence != domain.ConfidenceUnknown {
		t.Errorf("expected unknown liquidity signal, got %+v", f.Signals)
	}
}

func TestDetect_Signals(t *testing.T) {
	g := newGuard()

	f := g.Detect(&domain.Snapshot{Pool: pool(95)})
	if len(f.Signals) != 0 {
		t.Errorf("locked pool must not signal, got %+v", f.Signals)
	}

	f = g.Detect(&domain.Snapshot{Pool: pool(50)})
	if len(f.Signals) != 1 || f.Signals[0].Name != domain.SignalLiquidityPartiallyLocked || f.Signals[0].RawValue != 0.5 {
		t.Errorf("expected partially locked at 0.5, got %+v", f.Signals)
	}

	f = g.Detect(&domain.Snapshot{Pool: pool(29.999)})
	if len(f.Signals) != 1 || f.Signals[0].Name != domain.SignalLiquidityUnlocked || f.Signals[0].Confidence != domain.ConfidenceObserved {
		t.Errorf("expected observed unlocked, got %+v", f.Signals)
	}

	f = g.Detect(&domain.Snapshot{Unavailable: map[domain.Fact]string{domain.FactPool: "rpc down"}})
	if len(f.Signals) != 1 || f.Signals[0].Confidence != domain.ConfidenceUnknown || f.Signals[0].Name != domain.SignalLiquidityUnlocked {
		t.Errorf("expected unknown unlocked, got %+v", f.Signals)
	}
	if len(f.Notes) != 1 || f.Notes[0].Kind != domain.NoteDataUnavailable {
		t.Errorf("expected data_unavailable note, got %+v", f.Notes)
	}
}
