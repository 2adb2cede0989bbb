package domain

// Wallet represents a wallet touched by the evaluation window.
type Wallet struct {
	Address       string  // wallet address
	FirstSeenSlot int64   // slot of first activity
	FirstSeenMs   int64   // unix ms of first activity
	FundingSource string  // sender of the first meaningful SOL balance; empty if unknown
	FundedAtMs    int64   // unix ms of the funding transfer
	Balance       float64 // balance of the evaluated token (UI units)
}

// ClusterReason describes why wallets were grouped.
type ClusterReason string

// Cluster formation reasons.
const (
	ClusterFundingLineage    ClusterReason = "funding_lineage"
	ClusterCreationProximity ClusterReason = "creation_proximity"
	ClusterTransferSynchrony ClusterReason = "transfer_synchrony"
)

// WalletCluster is a derived group of wallets. Regenerated every evaluation.
type WalletCluster struct {
	Members  []string      // sorted member addresses
	Reason   ClusterReason // formation reason
	Cohesion float64       // [0,1]
}
