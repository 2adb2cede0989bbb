// Package stub provides an in-memory FactSource for tests.
package stub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/ingestion"
	"solana-risk-engine/internal/riskerr"
)

// Method names accepted by FailMethod and DelayMethod.
const (
	MethodGetToken          = "GetToken"
	MethodGetLiquidityPool  = "GetLiquidityPool"
	MethodGetTransferWindow = "GetTransferWindow"
	MethodGetWalletInfo     = "GetWalletInfo"
	MethodGetTopHolders     = "GetTopHolders"
	MethodGetBlockTime      = "GetBlockTime"
)

// FactSource returns fixed in-memory facts. Returned values are copies.
// Implements ingestion.FactSource interface.
type FactSource struct {
	mu sync.RWMutex

	Tokens     map[string]domain.Token
	Pools      map[string]domain.LiquidityPool
	Transfers  map[string][]domain.TransferEvent // by mint, any order
	Partial    map[string]bool                   // by mint
	Wallets    map[string]domain.Wallet
	Holders    map[string]ingestion.HolderSet
	BlockTimes map[int64]int64 // slot -> unix ms

	fail  map[string]error
	delay map[string]time.Duration
	calls map[string]*atomic.Int64
}

// Ensure FactSource implements ingestion.FactSource
var _ ingestion.FactSource = (*FactSource)(nil)

// NewFactSource creates an empty stub source.
func NewFactSource() *FactSource {
	calls := make(map[string]*atomic.Int64)
	for _, m := range []string{MethodGetToken, MethodGetLiquidityPool, MethodGetTransferWindow,
		MethodGetWalletInfo, MethodGetTopHolders, MethodGetBlockTime} {
		calls[m] = new(atomic.Int64)
	}
	return &FactSource{
		Tokens:     make(map[string]domain.Token),
		Pools:      make(map[string]domain.LiquidityPool),
		Transfers:  make(map[string][]domain.TransferEvent),
		Partial:    make(map[string]bool),
		Wallets:    make(map[string]domain.Wallet),
		Holders:    make(map[string]ingestion.HolderSet),
		BlockTimes: make(map[int64]int64),
		fail:       make(map[string]error),
		delay:      make(map[string]time.Duration),
		calls:      calls,
	}
}

// FailMethod makes every subsequent call of method return err.
func (s *FactSource) FailMethod(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
}

// DelayMethod makes method block for d or until its context is done.
func (s *FactSource) DelayMethod(method string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[method] = d
}

// Calls returns how many times method was invoked.
func (s *FactSource) Calls(method string) int64 {
	return s.calls[method].Load()
}

func (s *FactSource) begin(ctx context.Context, method string) error {
	s.calls[method].Add(1)

	s.mu.RLock()
	d, err := s.delay[method], s.fail[method]
	s.mu.RUnlock()

	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return riskerr.DataUnavailable(method, ctx.Err())
		}
	}
	if err != nil {
		return riskerr.DataUnavailable(method, err)
	}
	return nil
}

func missing(method, key string) error {
	return riskerr.DataUnavailable(method, fmt.Errorf("%s: %w", key, riskerr.ErrNotFound))
}

// GetToken returns the stored token.
func (s *FactSource) GetToken(ctx context.Context, mint string, _ int64) (*domain.Token, error) {
	if err := s.begin(ctx, MethodGetToken); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.Tokens[mint]
	if !ok {
		return nil, missing(MethodGetToken, mint)
	}
	return &t, nil
}

// GetLiquidityPool returns the stored pool.
func (s *FactSource) GetLiquidityPool(ctx context.Context, mint string, _ int64) (*domain.LiquidityPool, error) {
	if err := s.begin(ctx, MethodGetLiquidityPool); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.Pools[mint]
	if !ok {
		return nil, missing(MethodGetLiquidityPool, mint)
	}
	p.Holders = append([]domain.LPHolding(nil), p.Holders...)
	p.VaultOwners = append([]string(nil), p.VaultOwners...)
	return &p, nil
}

// GetTransferWindow returns stored transfers with slot in [from, to].
func (s *FactSource) GetTransferWindow(ctx context.Context, mint string, from, to int64) (ingestion.TransferWindow, error) {
	if err := s.begin(ctx, MethodGetTransferWindow); err != nil {
		return ingestion.TransferWindow{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	w := ingestion.TransferWindow{Partial: s.Partial[mint]}
	for _, e := range s.Transfers[mint] {
		if e.Slot >= from && e.Slot <= to {
			w.Events = append(w.Events, e)
		}
	}
	return w, nil
}

// GetWalletInfo returns the stored wallet.
func (s *FactSource) GetWalletInfo(ctx context.Context, address string, _ int64) (*domain.Wallet, error) {
	if err := s.begin(ctx, MethodGetWalletInfo); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.Wallets[address]
	if !ok {
		return nil, missing(MethodGetWalletInfo, address)
	}
	return &w, nil
}

// GetTopHolders returns the stored holder set.
func (s *FactSource) GetTopHolders(ctx context.Context, mint string, _ int64) (*ingestion.HolderSet, error) {
	if err := s.begin(ctx, MethodGetTopHolders); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.Holders[mint]
	if !ok {
		return nil, missing(MethodGetTopHolders, mint)
	}
	h.Holders = append([]domain.HolderBalance(nil), h.Holders...)
	return &h, nil
}

// GetBlockTime returns the stored block time.
func (s *FactSource) GetBlockTime(ctx context.Context, height int64) (int64, error) {
	if err := s.begin(ctx, MethodGetBlockTime); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	bt, ok := s.BlockTimes[height]
	if !ok {
		return 0, missing(MethodGetBlockTime, fmt.Sprintf("slot %d", height))
	}
	return bt, nil
}
