// Package liquidity classifies how much of a pool's LP supply is locked or burned.
package liquidity

import (
	"fmt"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/riskerr"
)

// Assessment is the lock classification of a pool.
type Assessment struct {
	Class          domain.LockClass
	LockedFraction float64 // resolved locked share of LP supply, [0,1]
	Reason         string  // set when Class is UNKNOWN
}

// Guard classifies LP lock state against burn and locker addresses.
type Guard struct {
	lockedThreshold  float64
	partialThreshold float64
	known            map[string]bool
}

// NewGuard creates a Guard. The system program address is always a known burn address.
func NewGuard(p config.LiquidityPolicy) *Guard {
	known := map[string]bool{domain.BurnSentinel: true}
	for _, addr := range p.KnownBurnOrLockAddresses {
		known[addr] = true
	}
	return &Guard{
		lockedThreshold:  p.LockedThreshold,
		partialThreshold: p.PartialThreshold,
		known:            known,
	}
}

// Name returns the detector name.
func (g *Guard) Name() string {
	return "liquidity"
}

// Signals lists the signal reported when the lock class is unknown.
func (g *Guard) Signals() []domain.SignalName {
	return []domain.SignalName{domain.SignalLiquidityUnlocked}
}

// Classify computes the lock class of pool.
func (g *Guard) Classify(pool *domain.LiquidityPool) Assessment {
	if pool == nil {
		return Assessment{Class: domain.LockClassUnknown, Reason: "pool unavailable"}
	}
	if !pool.LPSupplyResolved || pool.LPSupply <= 0 {
		return Assessment{Class: domain.LockClassUnknown, Reason: "lp supply unresolved"}
	}

	var locked float64
	unresolvedVault := false
	for _, h := range pool.Holders {
		vault := g.known[h.Owner] || g.known[h.TokenAccount]
		if !h.Resolved {
			// an account with no resolved owner may belong to a locker
			if vault || h.Owner == "" {
				unresolvedVault = true
			}
			continue
		}
		if vault {
			locked += h.Amount
		}
	}

	fraction := locked / pool.LPSupply
	if fraction > 1 {
		fraction = 1
	}

	switch {
	case fraction >= g.lockedThreshold:
		// unresolved vaults can only add to the locked side
		return Assessment{Class: domain.LockClassLocked, LockedFraction: fraction}
	case unresolvedVault:
		return Assessment{
			Class:          domain.LockClassUnknown,
			LockedFraction: fraction,
			Reason:         fmt.Sprintf("locker balance unresolved, resolved fraction %.4f", fraction),
		}
	case fraction >= g.partialThreshold:
		return Assessment{Class: domain.LockClassPartiallyLocked, LockedFraction: fraction}
	default:
		return Assessment{Class: domain.LockClassUnlocked, LockedFraction: fraction}
	}
}

// Detect classifies the snapshot pool.
func (g *Guard) Detect(s *domain.Snapshot) domain.Finding {
	var f domain.Finding
	a := g.Classify(s.Pool)

	switch a.Class {
	case domain.LockClassPartiallyLocked:
		f.Add(domain.Observed(domain.SignalLiquidityPartiallyLocked, 1-a.LockedFraction))
	case domain.LockClassUnlocked:
		f.Add(domain.Observed(domain.SignalLiquidityUnlocked, 1-a.LockedFraction))
	case domain.LockClassUnknown:
		f.Add(domain.Unknown(domain.SignalLiquidityUnlocked))
		detail := riskerr.DataUnavailable("get_liquidity_pool", nil).Error() + ": " + a.Reason
		if reason, ok := s.Unavailable[domain.FactPool]; ok {
			detail += ": " + reason
		}
		f.Note(domain.SignalLiquidityUnlocked, domain.NoteDataUnavailable, detail)
	}
	return f
}
