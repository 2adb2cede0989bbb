package clustering

import (
	"fmt"
	"sort"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/riskerr"
)

// synchronizedBuys flags buy sequences whose inter-arrival times are nearly
// constant. Buys arrive in canonical window order.
func (d *Detector) synchronizedBuys(events []domain.TransferEvent, f *domain.Finding) {
	var w welford
	var prev int64
	buyers := make(map[string]struct{})
	n := 0
	for _, e := range events {
		if e.Kind != domain.TransferBuy {
			continue
		}
		if n > 0 {
			w.add(float64(e.TimestampMs-prev) / 1000)
		}
		prev = e.TimestampMs
		buyers[e.Destination] = struct{}{}
		n++
	}

	if w.count < d.policy.SyncBuyMinSamples {
		f.Note(domain.SignalBotBuyingPattern, domain.NoteInsufficientEvidence,
			riskerr.InsufficientEvidence("buy_intervals", w.count, d.policy.SyncBuyMinSamples).Error())
		return
	}

	variance := w.variance()
	if variance >= d.policy.SyncBuyVarianceFloor {
		return
	}

	raw := 1 - variance/d.policy.SyncBuyVarianceFloor
	f.Add(domain.Observed(domain.SignalBotBuyingPattern, raw))
	f.Note(domain.SignalBotBuyingPattern, domain.NoteObservation,
		fmt.Sprintf("%d buys, mean interval %.2fs, variance %.4fs^2", n, w.mean, variance))

	if len(buyers) < 2 {
		return
	}
	members := make([]string, 0, len(buyers))
	for b := range buyers {
		members = append(members, b)
	}
	sort.Strings(members)
	f.Clusters = append(f.Clusters, domain.WalletCluster{
		Members:  members,
		Reason:   domain.ClusterTransferSynchrony,
		Cohesion: raw,
	})
}
