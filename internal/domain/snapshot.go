package domain

// Fact identifies one collaborator lookup feeding a snapshot.
type Fact string

// Snapshot facts.
const (
	FactToken     Fact = "token"
	FactPool      Fact = "pool"
	FactTransfers Fact = "transfers"
	FactWallets   Fact = "wallets"
	FactHolders   Fact = "holders"
	FactBlockTime Fact = "block_time"
)

// Snapshot is the immutable input of one evaluation, captured once per cycle.
// Nil pointers and entries in Unavailable mark facts that could not be resolved.
type Snapshot struct {
	Mint        string // token mint
	Height      int64  // ledger snapshot height (slot)
	WindowStart int64  // first slot of the transfer window
	AsOfMs      int64  // block time of Height (ms)

	Token *Token         // nil when unavailable
	Pool  *LiquidityPool // nil when unavailable

	Transfers         []TransferEvent   // canonical, deduplicated, ordered
	TransfersResolved bool              // false when the window fetch failed
	TransfersPartial  bool              // true when the collaborator returned a truncated window
	Wallets           map[string]Wallet // resolved wallets only

	Holders         []HolderBalance // largest holders of the mint
	HolderSupply    float64         // mint supply in UI units
	HoldersResolved bool            // false when holders could not be fetched

	Unavailable map[Fact]string // fact -> reason
}

// Complete reports whether every fact of the snapshot was resolved.
func (s *Snapshot) Complete() bool {
	return len(s.Unavailable) == 0 && s.Token != nil && s.Pool != nil &&
		s.TransfersResolved && !s.TransfersPartial && s.HoldersResolved
}

// WalletTouched returns the sorted set of wallets appearing in the transfer window.
func (s *Snapshot) WalletTouched() []string {
	return TouchedWallets(s.Transfers)
}
