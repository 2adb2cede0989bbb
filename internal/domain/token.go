package domain

// BurnSentinel is the system program address used as a renounced authority.
const BurnSentinel = "11111111111111111111111111111111"

// Principal is an optional authority key decoded from a mint account.
type Principal struct {
	Address  string // base58 key; empty when the option is None
	Resolved bool   // false when the field could not be decoded
}

// IsSet reports whether the authority option holds a key.
func (p Principal) IsSet() bool {
	return p.Address != ""
}

// Token represents an SPL mint snapshot for one evaluation cycle.
type Token struct {
	Mint            string    // token mint address
	Decimals        int       // token decimals
	Supply          uint64    // raw supply in base units
	MintAuthority   Principal // mint authority option
	FreezeAuthority Principal // freeze authority option
	CreatedAtMs     int64     // earliest observed activity (ms), 0 if unknown
}

// HolderBalance represents one of the largest holders of a mint.
type HolderBalance struct {
	Owner        string  // wallet owning the token account
	TokenAccount string  // SPL token account address
	Amount       float64 // UI amount
}
