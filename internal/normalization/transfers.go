package normalization

import (
	"fmt"
	"sort"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/solana"
)

// dustEpsilon ignores float noise in balance deltas.
const dustEpsilon = 1e-12

// TransfersFromTransaction derives movements of mint from the pre/post token
// balances of tx. Senders are paired to receivers greedily in owner order.
// A transfer whose sender is in poolOwners is a buy, one whose receiver is in
// poolOwners is a sell. Failed transactions yield nothing.
func TransfersFromTransaction(tx *solana.Transaction, mint string, poolOwners map[string]bool) []domain.TransferEvent {
	if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
		return nil
	}

	deltas := make(map[string]float64)
	apply := func(balances []solana.TokenBalance, sign float64) {
		for _, b := range balances {
			if b.Mint != mint {
				continue
			}
			owner := balanceOwner(tx, b)
			if owner == "" {
				continue
			}
			amt, err := UIAmount(b.Amount)
			if err != nil {
				continue
			}
			deltas[owner] += sign * amt
		}
	}
	apply(tx.Meta.PreTokenBalances, -1)
	apply(tx.Meta.PostTokenBalances, 1)

	type leg struct {
		owner  string
		amount float64
	}
	var senders, receivers []leg
	for owner, d := range deltas {
		switch {
		case d < -dustEpsilon:
			senders = append(senders, leg{owner, -d})
		case d > dustEpsilon:
			receivers = append(receivers, leg{owner, d})
		}
	}
	sort.Slice(senders, func(i, j int) bool { return senders[i].owner < senders[j].owner })
	sort.Slice(receivers, func(i, j int) bool { return receivers[i].owner < receivers[j].owner })

	var events []domain.TransferEvent
	i, j := 0, 0
	for i < len(senders) && j < len(receivers) {
		amt := senders[i].amount
		if receivers[j].amount < amt {
			amt = receivers[j].amount
		}

		kind := domain.TransferPlain
		switch {
		case poolOwners[senders[i].owner]:
			kind = domain.TransferBuy
		case poolOwners[receivers[j].owner]:
			kind = domain.TransferSell
		}

		events = append(events, domain.TransferEvent{
			Slot:        tx.Slot,
			Source:      senders[i].owner,
			Destination: receivers[j].owner,
			Mint:        mint,
			Amount:      amt,
			TimestampMs: tx.BlockTime * 1000,
			Kind:        kind,
		})

		senders[i].amount -= amt
		receivers[j].amount -= amt
		if senders[i].amount <= dustEpsilon {
			i++
		}
		if receivers[j].amount <= dustEpsilon {
			j++
		}
	}

	for k := range events {
		if len(events) == 1 {
			events[k].ID = tx.Signature
		} else {
			events[k].ID = fmt.Sprintf("%s#%d", tx.Signature, k)
		}
	}
	return events
}

// balanceOwner returns the owner of a token balance entry, falling back to the
// token account key when the node omitted the owner.
func balanceOwner(tx *solana.Transaction, b solana.TokenBalance) string {
	if b.Owner != "" {
		return b.Owner
	}
	if tx.Message != nil && b.AccountIndex >= 0 && b.AccountIndex < len(tx.Message.AccountKeys) {
		return tx.Message.AccountKeys[b.AccountIndex]
	}
	return ""
}

// FundingFromTransaction returns the account with the largest lamport decrease
// in tx when wallet's lamport balance increased. Ties go to the smaller address.
func FundingFromTransaction(tx *solana.Transaction, wallet string) (string, bool) {
	if tx == nil || tx.Meta == nil || tx.Message == nil || tx.Meta.Err != nil {
		return "", false
	}
	keys := tx.Message.AccountKeys
	pre, post := tx.Meta.PreBalances, tx.Meta.PostBalances
	n := len(keys)
	if len(pre) < n {
		n = len(pre)
	}
	if len(post) < n {
		n = len(post)
	}

	walletIdx := -1
	for i := 0; i < n; i++ {
		if keys[i] == wallet {
			walletIdx = i
			break
		}
	}
	if walletIdx < 0 || post[walletIdx] <= pre[walletIdx] {
		return "", false
	}

	best := ""
	var bestDrop uint64
	for i := 0; i < n; i++ {
		if i == walletIdx || post[i] >= pre[i] {
			continue
		}
		drop := pre[i] - post[i]
		if drop > bestDrop || (drop == bestDrop && keys[i] < best) {
			best, bestDrop = keys[i], drop
		}
	}
	return best, best != ""
}

// CanonicalWindow removes duplicate IDs (first occurrence wins) and orders
// events by (Slot, TimestampMs, ID).
func CanonicalWindow(events []domain.TransferEvent) []domain.TransferEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]domain.TransferEvent, 0, len(events))
	for _, e := range events {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return compareTransfers(out[i], out[j]) < 0
	})
	return out
}

// compareTransfers orders by (slot ASC, timestamp ASC, id ASC).
func compareTransfers(a, b domain.TransferEvent) int {
	if a.Slot != b.Slot {
		if a.Slot < b.Slot {
			return -1
		}
		return 1
	}
	if a.TimestampMs != b.TimestampMs {
		if a.TimestampMs < b.TimestampMs {
			return -1
		}
		return 1
	}
	if a.ID != b.ID {
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	return 0
}
