package domain

// LiquidityPool represents an AMM pool paired with the evaluated mint.
type LiquidityPool struct {
	PoolID           string      // AMM pool address
	LPMint           string      // LP token mint
	ReserveBase      float64     // reserve of the evaluated token (UI units)
	ReserveQuote     float64     // reserve of the quote token (UI units)
	LPSupply         float64     // total LP token supply (UI units)
	LPSupplyResolved bool        // false when LP supply could not be fetched
	Holders          []LPHolding // LP token holder balances
	VaultOwners      []string    // authorities owning the pool vaults
}

// LPHolding is one LP token account balance.
type LPHolding struct {
	TokenAccount string  // LP token account address
	Owner        string  // owner of the token account; empty when the lookup failed
	Amount       float64 // UI amount; 0 when the balance could not be decoded
	Resolved     bool    // false when the balance or owner lookup failed
}

// LockClass is the derived LP lock classification.
type LockClass string

// Lock classifications.
const (
	LockClassLocked          LockClass = "LOCKED"
	LockClassPartiallyLocked LockClass = "PARTIALLY_LOCKED"
	LockClassUnlocked        LockClass = "UNLOCKED"
	LockClassUnknown         LockClass = "UNKNOWN"
)
