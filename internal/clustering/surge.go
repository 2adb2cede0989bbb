package clustering

import (
	"sort"

	"solana-risk-engine/internal/domain"
)

// freshSurge finds the sub-window of SurgeWindow holding the most fresh
// wallets. A wallet is fresh when its first receipt of the token came no
// earlier than its first activity and within PostCreationBuyDelay after it.
func (d *Detector) freshSurge(s *domain.Snapshot, holders []string, f *domain.Finding) {
	firstReceipt := make(map[string]int64)
	for _, e := range s.Transfers {
		if ts, ok := firstReceipt[e.Destination]; !ok || e.TimestampMs < ts {
			firstReceipt[e.Destination] = e.TimestampMs
		}
	}

	wallets, unresolved := resolve(s, holders)
	delay := d.policy.PostCreationBuyDelay.Milliseconds()

	var firstSeen []int64
	for _, w := range wallets {
		received, ok := firstReceipt[w.Address]
		if !ok {
			continue
		}
		// a receipt before first activity means the activity history is incomplete
		if diff := received - w.FirstSeenMs; diff >= 0 && diff <= delay {
			firstSeen = append(firstSeen, w.FirstSeenMs)
		}
	}
	sort.Slice(firstSeen, func(i, j int) bool { return firstSeen[i] < firstSeen[j] })

	// sub-windows [firstSeen[lo], firstSeen[lo]+width)
	width := d.policy.SurgeWindow.Milliseconds()
	maxFresh := 0
	hi := 0
	for lo := range firstSeen {
		if hi < lo {
			hi = lo
		}
		for hi < len(firstSeen) && firstSeen[hi] < firstSeen[lo]+width {
			hi++
		}
		if n := hi - lo; n > maxFresh {
			maxFresh = n
		}
	}

	boundedSignal(f, domain.SignalFreshWalletSurge, maxFresh, unresolved, len(holders), d.policy.FreshWalletRatioThreshold)
}
