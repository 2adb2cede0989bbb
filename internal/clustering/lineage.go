package clustering

import (
	"sort"

	"solana-risk-engine/internal/domain"
)

// fundingLineage unions holders funded by the same source within FundingSpan
// of a sibling and reports clusters of at least MinClusterSize.
func (d *Detector) fundingLineage(s *domain.Snapshot, holders []string, f *domain.Finding) {
	wallets, unresolved := resolve(s, holders)
	span := d.policy.FundingSpan.Milliseconds()

	bySource := make(map[string][]domain.Wallet)
	var funded []string
	for _, w := range wallets {
		if w.FundingSource == "" {
			continue
		}
		bySource[w.FundingSource] = append(bySource[w.FundingSource], w)
		funded = append(funded, w.Address)
	}

	a := newArena(funded)
	fundedAt := make(map[string]int64, len(funded))
	for _, siblings := range bySource {
		sortByTime(siblings, func(w domain.Wallet) int64 { return w.FundedAtMs })
		for i, w := range siblings {
			fundedAt[w.Address] = w.FundedAtMs
			if i > 0 && w.FundedAtMs-siblings[i-1].FundedAtMs <= span {
				a.unionAddr(siblings[i-1].Address, w.Address)
			}
		}
	}

	clustered := 0
	for _, members := range a.groups(d.policy.MinClusterSize) {
		clustered += len(members)
		f.Clusters = append(f.Clusters, domain.WalletCluster{
			Members:  members,
			Reason:   domain.ClusterFundingLineage,
			Cohesion: cohesion(spread(members, fundedAt), span, len(members)),
		})
	}

	boundedSignal(f, domain.SignalCoordinatedFunding, clustered, unresolved, len(holders), d.policy.LineageRatioThreshold)
}

// creationProximity clusters holders whose first activity is chained within
// CreationProximity. Audit only, no signal.
func (d *Detector) creationProximity(s *domain.Snapshot, holders []string, f *domain.Finding) {
	wallets, _ := resolve(s, holders)
	span := d.policy.CreationProximity.Milliseconds()

	addrs := make([]string, len(wallets))
	firstSeen := make(map[string]int64, len(wallets))
	for i, w := range wallets {
		addrs[i] = w.Address
		firstSeen[w.Address] = w.FirstSeenMs
	}
	a := newArena(addrs)

	sortByTime(wallets, func(w domain.Wallet) int64 { return w.FirstSeenMs })
	for i := 1; i < len(wallets); i++ {
		if wallets[i].FirstSeenMs-wallets[i-1].FirstSeenMs <= span {
			a.unionAddr(wallets[i-1].Address, wallets[i].Address)
		}
	}

	for _, members := range a.groups(d.policy.MinClusterSize) {
		f.Clusters = append(f.Clusters, domain.WalletCluster{
			Members:  members,
			Reason:   domain.ClusterCreationProximity,
			Cohesion: cohesion(spread(members, firstSeen), span, len(members)),
		})
	}
}

// sortByTime orders wallets by key, then address.
func sortByTime(ws []domain.Wallet, key func(domain.Wallet) int64) {
	sort.Slice(ws, func(i, j int) bool {
		ki, kj := key(ws[i]), key(ws[j])
		if ki != kj {
			return ki < kj
		}
		return ws[i].Address < ws[j].Address
	})
}

func spread(members []string, at map[string]int64) int64 {
	if len(members) == 0 {
		return 0
	}
	lo, hi := at[members[0]], at[members[0]]
	for _, m := range members[1:] {
		if t := at[m]; t < lo {
			lo = t
		} else if t > hi {
			hi = t
		}
	}
	return hi - lo
}
