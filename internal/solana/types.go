package solana

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// TokenAmount is an SPL token amount as returned by the RPC.
type TokenAmount struct {
	Amount         string `json:"amount"` // raw base units
	Decimals       int    `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// TokenAccountBalance is an entry of getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address string
	TokenAmount
}
