// Package clustering groups wallets touched by a token's transfer window and
// detects fresh-wallet surges, synchronized buying, coordinated funding and
// bursts of trading from a handful of wallets.
package clustering

import (
	"fmt"
	"sort"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/normalization"
	"solana-risk-engine/internal/riskerr"
)

var windowSignals = []domain.SignalName{
	domain.SignalFreshWalletSurge,
	domain.SignalBotBuyingPattern,
	domain.SignalCoordinatedFunding,
	domain.SignalHighVolumeLowDiversity,
}

// Detector runs the wallet clustering analyses over a snapshot.
type Detector struct {
	policy config.ClusteringPolicy
	isPDA  func(string) bool
}

// NewDetector creates a clustering Detector.
func NewDetector(p config.ClusteringPolicy) *Detector {
	return &Detector{policy: p, isPDA: normalization.IsProgramDerived}
}

// Name returns the detector name.
func (d *Detector) Name() string {
	return "clustering"
}

// Signals lists the window signals.
func (d *Detector) Signals() []domain.SignalName {
	return windowSignals
}

// Detect analyses the snapshot transfer window.
func (d *Detector) Detect(s *domain.Snapshot) domain.Finding {
	var f domain.Finding

	if !s.TransfersResolved {
		detail := riskerr.DataUnavailable("get_transfer_window", nil).Error()
		if reason, ok := s.Unavailable[domain.FactTransfers]; ok {
			detail += ": " + reason
		}
		for _, name := range windowSignals {
			f.Add(domain.Unknown(name))
			f.Note(name, domain.NoteDataUnavailable, detail)
		}
		return f
	}

	holders := d.activeHolders(s.Transfers)
	if len(holders) < d.policy.MinActiveHolders {
		detail := riskerr.InsufficientEvidence("active_holders", len(holders), d.policy.MinActiveHolders).Error()
		f.Note(domain.SignalFreshWalletSurge, domain.NoteInsufficientEvidence, detail)
		f.Note(domain.SignalCoordinatedFunding, domain.NoteInsufficientEvidence, detail)
	} else {
		d.freshSurge(s, holders, &f)
		d.fundingLineage(s, holders, &f)
	}

	d.creationProximity(s, holders, &f)
	d.synchronizedBuys(s.Transfers, &f)
	d.lowDiversityActivity(s.Transfers, &f)

	if s.TransfersPartial && len(f.Signals) > 0 {
		f.Downgrade()
		f.Note("", domain.NoteDataUnavailable, "transfer window truncated, window signals downgraded to unknown")
	}
	return f
}

// activeHolders returns the sorted distinct receivers that are not program-derived.
func (d *Detector) activeHolders(events []domain.TransferEvent) []string {
	seen := make(map[string]struct{})
	for _, e := range events {
		if e.Destination == "" || d.isPDA(e.Destination) {
			continue
		}
		seen[e.Destination] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// resolve splits holders into resolved wallets (address order) and the count of unresolved ones.
func resolve(s *domain.Snapshot, holders []string) ([]domain.Wallet, int) {
	var wallets []domain.Wallet
	unresolved := 0
	for _, h := range holders {
		w, ok := s.Wallets[h]
		if !ok {
			unresolved++
			continue
		}
		w.Address = h
		wallets = append(wallets, w)
	}
	return wallets, unresolved
}

// boundedSignal emits name when count/total exceeds threshold. Unresolved
// wallets could each add to count, so they bound the ratio from above: a signal
// whose upper bound stays at or below the threshold is dropped, one that needs
// them to decide is unknown.
func boundedSignal(f *domain.Finding, name domain.SignalName, count, unresolved, total int, threshold float64) {
	if total == 0 {
		return
	}
	upper := float64(count+unresolved) / float64(total)
	if upper <= threshold {
		return
	}
	if unresolved > 0 {
		f.Add(domain.Unknown(name))
		f.Note(name, domain.NoteDataUnavailable, fmt.Sprintf("%d of %d wallets unresolved", unresolved, total))
		return
	}
	ratio := float64(count) / float64(total)
	f.Add(domain.Observed(name, (ratio-threshold)/(1-threshold)))
}

// cohesion is 1 for members created at once and 0 when every link is a full span apart.
func cohesion(spreadMs, spanMs int64, n int) float64 {
	if n < 2 || spanMs <= 0 {
		return 1
	}
	c := 1 - float64(spreadMs)/(float64(spanMs)*float64(n-1))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
