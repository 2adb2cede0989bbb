package stub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"solana-risk-engine/internal/solana"
)

// ErrNotFound is returned by single-item lookups missing from the stub store.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
// Fail maps a method name to the error it should return.
type RPCClient struct {
	mu sync.RWMutex

	Accounts      map[string]*solana.AccountInfo
	Supplies      map[string]*solana.TokenAmount
	Largest       map[string][]solana.TokenAccountBalance
	TokenBalances map[string]*solana.TokenAmount
	Signatures    map[string][]solana.SignatureInfo
	Transactions  map[string]*solana.Transaction
	BlockTimes    map[int64]int64
	Slot          int64
	Fail          map[string]error
	Calls         atomic.Int64
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:      make(map[string]*solana.AccountInfo),
		Supplies:      make(map[string]*solana.TokenAmount),
		Largest:       make(map[string][]solana.TokenAccountBalance),
		TokenBalances: make(map[string]*solana.TokenAmount),
		Signatures:    make(map[string][]solana.SignatureInfo),
		Transactions:  make(map[string]*solana.Transaction),
		BlockTimes:    make(map[int64]int64),
		Fail:          make(map[string]error),
	}
}

func (c *RPCClient) begin(method string) error {
	c.Calls.Add(1)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Fail[method]
}

// FailMethod makes every subsequent call of method return err.
func (c *RPCClient) FailMethod(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Fail[method] = err
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := c.begin("getAccountInfo"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Accounts[pubkey], nil
}

// GetTokenSupply returns the stored supply.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenAmount, error) {
	if err := c.begin("getTokenSupply"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.Supplies[mint]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetTokenLargestAccounts returns the stored largest accounts.
func (c *RPCClient) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	if err := c.begin("getTokenLargestAccounts"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Largest[mint], nil
}

// GetTokenAccountBalance returns the stored token account balance.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account string) (*solana.TokenAmount, error) {
	if err := c.begin("getTokenAccountBalance"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.TokenBalances[account]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// GetSignaturesForAddress pages through the stored signatures (newest first).
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.begin("getSignaturesForAddress"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	sigs := c.Signatures[address]
	if opts == nil {
		return sigs, nil
	}

	start := 0
	if opts.Before != "" {
		start = len(sigs)
		for i, s := range sigs {
			if s.Signature == opts.Before {
				start = i + 1
				break
			}
		}
	}
	end := len(sigs)
	if opts.Until != "" {
		for i := start; i < len(sigs); i++ {
			if sigs[i].Signature == opts.Until {
				end = i
				break
			}
		}
	}
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	if start >= end {
		return nil, nil
	}
	return sigs[start:end], nil
}

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if err := c.begin("getTransaction"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetSlot returns Slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	if err := c.begin("getSlot"); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Slot, nil
}

// GetBlockTime returns the stored block time or nil.
func (c *RPCClient) GetBlockTime(_ context.Context, slot int64) (*int64, error) {
	if err := c.begin("getBlockTime"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	bt, ok := c.BlockTimes[slot]
	if !ok {
		return nil, nil
	}
	return &bt, nil
}

// AddTransaction stores tx and appends its signature to the feed of each address (newest first).
func (c *RPCClient) AddTransaction(tx *solana.Transaction, addresses ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
	bt := tx.BlockTime
	info := solana.SignatureInfo{Signature: tx.Signature, Slot: tx.Slot, BlockTime: &bt}
	for _, a := range addresses {
		c.Signatures[a] = append([]solana.SignatureInfo{info}, c.Signatures[a]...)
	}
	if _, ok := c.BlockTimes[tx.Slot]; !ok {
		c.BlockTimes[tx.Slot] = tx.BlockTime
	}
}

// SetAccount stores an account.
func (c *RPCClient) SetAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}
