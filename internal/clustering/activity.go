package clustering

import (
	"fmt"

	"solana-risk-engine/internal/domain"
)

// lowDiversityActivity flags a burst of pool trades in the trailing
// ActivityWindow that comes from fewer than ActivityMaxTraders wallets. The
// window ends at the latest trade.
func (d *Detector) lowDiversityActivity(events []domain.TransferEvent, f *domain.Finding) {
	window := d.policy.ActivityWindow.Milliseconds()
	if window <= 0 {
		return
	}

	var latest int64
	found := false
	for _, e := range events {
		if e.Kind == domain.TransferPlain {
			continue
		}
		if !found || e.TimestampMs > latest {
			latest = e.TimestampMs
			found = true
		}
	}
	if !found {
		return
	}

	traders := make(map[string]struct{})
	trades := 0
	for _, e := range events {
		if e.TimestampMs < latest-window {
			continue
		}
		switch e.Kind {
		case domain.TransferBuy:
			traders[e.Destination] = struct{}{}
		case domain.TransferSell:
			traders[e.Source] = struct{}{}
		default:
			continue
		}
		trades++
	}

	if trades < d.policy.ActivityMinTrades || len(traders) >= d.policy.ActivityMaxTraders {
		return
	}

	raw := 1 - float64(len(traders))/float64(d.policy.ActivityMaxTraders)
	f.Add(domain.Observed(domain.SignalHighVolumeLowDiversity, raw))
	f.Note(domain.SignalHighVolumeLowDiversity, domain.NoteObservation,
		fmt.Sprintf("%d trades from %d wallets in the last %s", trades, len(traders), d.policy.ActivityWindow))
}
