// Package concentration measures how much of a mint's supply sits with its
// largest holders.
package concentration

import (
	"fmt"
	"sort"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/normalization"
	"solana-risk-engine/internal/riskerr"
)

// Detector flags concentrated holder distributions.
type Detector struct {
	policy   config.ConcentrationPolicy
	excluded map[string]bool
	isPDA    func(string) bool
}

// NewDetector creates a Detector. Burn and lock addresses never count as holders.
func NewDetector(p config.ConcentrationPolicy, burnOrLock []string) *Detector {
	excluded := map[string]bool{domain.BurnSentinel: true}
	for _, addr := range burnOrLock {
		excluded[addr] = true
	}
	return &Detector{policy: p, excluded: excluded, isPDA: normalization.IsProgramDerived}
}

// Name returns the detector name.
func (d *Detector) Name() string {
	return "concentration"
}

func (d *Detector) Signals() []domain.SignalName {
	return []domain.SignalName{domain.SignalHolderConcentration}
}

type ownerShare struct {
	owner  string
	amount float64
}

// Detect computes the top-N share of circulating supply.
func (d *Detector) Detect(s *domain.Snapshot) domain.Finding {
	var f domain.Finding
	name := domain.SignalHolderConcentration

	if !s.HoldersResolved || s.HolderSupply <= 0 {
		detail := riskerr.DataUnavailable("get_top_holders", nil).Error()
		if reason, ok := s.Unavailable[domain.FactHolders]; ok {
			detail += ": " + reason
		}
		f.Add(domain.Unknown(name))
		f.Note(name, domain.NoteDataUnavailable, detail)
		return f
	}

	pool := make(map[string]bool)
	if s.Pool != nil {
		pool[s.Pool.PoolID] = true
		for _, o := range s.Pool.VaultOwners {
			pool[o] = true
		}
	}

	byOwner := make(map[string]float64)
	for _, h := range s.Holders {
		owner := h.Owner
		if owner == "" {
			owner = h.TokenAccount
		}
		if d.excluded[owner] || d.excluded[h.TokenAccount] || pool[owner] || pool[h.TokenAccount] || d.isPDA(owner) {
			continue
		}
		byOwner[owner] += h.Amount
	}

	shares := make([]ownerShare, 0, len(byOwner))
	for o, amt := range byOwner {
		shares = append(shares, ownerShare{o, amt})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].amount != shares[j].amount {
			return shares[i].amount > shares[j].amount
		}
		return shares[i].owner < shares[j].owner
	})
	if len(shares) > d.policy.TopN {
		shares = shares[:d.policy.TopN]
	}

	var top float64
	for _, sh := range shares {
		share := sh.amount / s.HolderSupply
		top += share
		if share > d.policy.WhaleThreshold {
			f.Note(name, domain.NoteObservation, fmt.Sprintf("whale %s holds %.2f%% of supply", sh.owner, share*100))
		}
	}
	if top > 1 {
		top = 1
	}

	t := d.policy.TopHoldersThreshold
	if top > t {
		f.Add(domain.Observed(name, (top-t)/(1-t)))
		f.Note(name, domain.NoteObservation, fmt.Sprintf("top %d holders hold %.2f%% of supply", len(shares), top*100))
	}
	return f
}
