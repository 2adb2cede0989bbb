package domain

import "sort"

// TransferKind classifies a transfer relative to the liquidity pool.
type TransferKind string

// Transfer kinds.
const (
	TransferPlain TransferKind = "transfer"
	TransferBuy   TransferKind = "buy"  // pool -> wallet
	TransferSell  TransferKind = "sell" // wallet -> pool
)

// TransferEvent is a movement of the evaluated token between two wallets.
type TransferEvent struct {
	ID          string       // signature, or signature#index for multi-transfer txs
	Slot        int64        // block height
	Source      string       // sending wallet
	Destination string       // receiving wallet
	Mint        string       // token mint
	Amount      float64      // UI amount
	TimestampMs int64        // block time (ms)
	Kind        TransferKind // transfer | buy | sell
}

// TouchedWallets returns the sorted distinct sources and destinations of events.
func TouchedWallets(events []TransferEvent) []string {
	seen := make(map[string]struct{}, len(events)*2)
	for _, e := range events {
		if e.Source != "" {
			seen[e.Source] = struct{}{}
		}
		if e.Destination != "" {
			seen[e.Destination] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
