package ingestion

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/normalization"
	"solana-risk-engine/internal/riskerr"
	"solana-risk-engine/internal/solana"
)

// RPCSourceOptions contains configuration for creating an RPCSource.
type RPCSourceOptions struct {
	Pools              []config.PoolEntry // mint -> pool registry
	PageSize           int                // Default: 1000 - signatures per page
	MaxSignatures      int                // Default: 5000 - window bound, beyond it the window is partial
	WalletHistoryLimit int                // Default: 2000 - beyond it first activity is unknown
	CacheSize          int                // Default: 50000 - wallet and owner LRU entries
}

// RPCSource implements FactSource over Solana JSON-RPC.
// Account state is read at the client's commitment; transfer windows are
// bounded by slot exactly.
type RPCSource struct {
	rpc                solana.RPCClient
	pools              map[string]config.PoolEntry
	pageSize           int
	maxSignatures      int
	walletHistoryLimit int

	wallets *lru.Cache[string, domain.Wallet] // complete wallet histories only
	owners  *lru.Cache[string, string]        // token account -> owner
}

// Ensure RPCSource implements FactSource
var _ FactSource = (*RPCSource)(nil)

// NewRPCSource creates a new RPC-based fact source.
func NewRPCSource(rpc solana.RPCClient, opts RPCSourceOptions) (*RPCSource, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.MaxSignatures <= 0 {
		opts.MaxSignatures = 5000
	}
	if opts.WalletHistoryLimit <= 0 {
		opts.WalletHistoryLimit = 2000
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 50000
	}

	wallets, err := lru.New[string, domain.Wallet](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create wallet cache: %w", err)
	}
	owners, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create owner cache: %w", err)
	}

	pools := make(map[string]config.PoolEntry, len(opts.Pools))
	for _, p := range opts.Pools {
		pools[p.Mint] = p
	}

	return &RPCSource{
		rpc:                rpc,
		pools:              pools,
		pageSize:           opts.PageSize,
		maxSignatures:      opts.MaxSignatures,
		walletHistoryLimit: opts.WalletHistoryLimit,
		wallets:            wallets,
		owners:             owners,
	}, nil
}

// rpcUnavailable wraps a collaborator error, keeping the original chain.
func rpcUnavailable(op string, err error) error {
	if errors.Is(err, riskerr.ErrNotFound) {
		return riskerr.DataUnavailable(op, err)
	}
	return riskerr.DataUnavailable(op, errors.Join(riskerr.ErrRPCUnavailable, err))
}

func notFound(op, what string) error {
	return riskerr.DataUnavailable(op, fmt.Errorf("%s: %w", what, riskerr.ErrNotFound))
}

// GetToken decodes the SPL mint account.
func (s *RPCSource) GetToken(ctx context.Context, mint string, _ int64) (*domain.Token, error) {
	const op = "get_token"

	info, err := s.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, rpcUnavailable(op, err)
	}
	if info == nil {
		return nil, notFound(op, "mint account "+mint)
	}

	m, err := normalization.DecodeMint(info.Data)
	if err != nil {
		return nil, riskerr.DataUnavailable(op, err)
	}
	return &domain.Token{
		Mint:            mint,
		Decimals:        m.Decimals,
		Supply:          m.Supply,
		MintAuthority:   m.MintAuthority,
		FreezeAuthority: m.FreezeAuthority,
	}, nil
}

// GetLiquidityPool resolves the registered pool of mint with its LP holders.
func (s *RPCSource) GetLiquidityPool(ctx context.Context, mint string, _ int64) (*domain.LiquidityPool, error) {
	const op = "get_liquidity_pool"

	entry, ok := s.pools[mint]
	if !ok {
		return nil, notFound(op, "no pool registered for "+mint)
	}

	pool := &domain.LiquidityPool{
		PoolID: entry.PoolID,
		LPMint: entry.LPMint,
	}
	if entry.VaultAuthority != "" {
		pool.VaultOwners = []string{entry.VaultAuthority}
	}

	largest, err := s.rpc.GetTokenLargestAccounts(ctx, entry.LPMint)
	if err != nil {
		return nil, rpcUnavailable(op, err)
	}

	if supply, err := s.rpc.GetTokenSupply(ctx, entry.LPMint); err == nil && supply != nil {
		if v, err := normalization.UIAmount(*supply); err == nil {
			pool.LPSupply = v
			pool.LPSupplyResolved = true
		}
	} else if ctx.Err() != nil {
		return nil, rpcUnavailable(op, ctx.Err())
	}

	for _, acc := range largest {
		h := domain.LPHolding{TokenAccount: acc.Address}
		amount, amountErr := normalization.UIAmount(acc.TokenAmount)
		owner, ownerErr := s.ownerOf(ctx, acc.Address)
		if amountErr == nil {
			h.Amount = amount
		}
		if ownerErr == nil {
			h.Owner = owner
		}
		h.Resolved = amountErr == nil && ownerErr == nil
		pool.Holders = append(pool.Holders, h)
	}

	pool.ReserveBase = s.vaultBalance(ctx, entry.BaseVault)
	pool.ReserveQuote = s.vaultBalance(ctx, entry.QuoteVault)
	return pool, nil
}

func (s *RPCSource) vaultBalance(ctx context.Context, vault string) float64 {
	if vault == "" {
		return 0
	}
	b, err := s.rpc.GetTokenAccountBalance(ctx, vault)
	if err != nil || b == nil {
		return 0
	}
	v, err := normalization.UIAmount(*b)
	if err != nil {
		return 0
	}
	return v
}

// ownerOf returns the owner of an SPL token account.
func (s *RPCSource) ownerOf(ctx context.Context, tokenAccount string) (string, error) {
	if owner, ok := s.owners.Get(tokenAccount); ok {
		return owner, nil
	}
	info, err := s.rpc.GetAccountInfo(ctx, tokenAccount)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", fmt.Errorf("token account %s: %w", tokenAccount, riskerr.ErrNotFound)
	}
	acc, err := normalization.DecodeTokenAccount(info.Data)
	if err != nil {
		return "", err
	}
	s.owners.Add(tokenAccount, acc.Owner)
	return acc.Owner, nil
}

// GetTransferWindow collects transfers of mint from the signature feeds of the
// mint and its pool. Exceeding the signature bound or a failed transaction
// fetch marks the window partial.
func (s *RPCSource) GetTransferWindow(ctx context.Context, mint string, from, to int64) (TransferWindow, error) {
	const op = "get_transfer_window"

	addresses := []string{mint}
	poolOwners := make(map[string]bool)
	if entry, ok := s.pools[mint]; ok {
		addresses = append(addresses, entry.PoolID)
		poolOwners[entry.PoolID] = true
		if entry.VaultAuthority != "" {
			poolOwners[entry.VaultAuthority] = true
		}
	}

	var (
		window TransferWindow
		seen   = make(map[string]bool)
		sigs   []solana.SignatureInfo
	)
	for _, addr := range addresses {
		page, truncated, err := s.signaturesInRange(ctx, addr, from, to, s.maxSignatures)
		if err != nil {
			return TransferWindow{}, rpcUnavailable(op, err)
		}
		if truncated {
			window.Partial = true
		}
		for _, sig := range page {
			if !seen[sig.Signature] {
				seen[sig.Signature] = true
				sigs = append(sigs, sig)
			}
		}
	}

	for _, sig := range sigs {
		if sig.Err != nil {
			continue
		}
		tx, err := s.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			if ctx.Err() != nil {
				return TransferWindow{}, rpcUnavailable(op, ctx.Err())
			}
			window.Partial = true
			continue
		}
		if tx == nil {
			window.Partial = true
			continue
		}
		window.Events = append(window.Events, normalization.TransfersFromTransaction(tx, mint, poolOwners)...)
	}
	return window, nil
}

// signaturesInRange pages backwards through the feed of address and keeps
// signatures with slot in [from, to]. truncated is set when limit was reached
// before the feed went past from.
func (s *RPCSource) signaturesInRange(ctx context.Context, address string, from, to int64, limit int) ([]solana.SignatureInfo, bool, error) {
	var (
		out    []solana.SignatureInfo
		before string
		read   int
	)
	for {
		sigs, err := s.rpc.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
			Before: before,
			Limit:  s.pageSize,
		})
		if err != nil {
			return nil, false, err
		}
		if len(sigs) == 0 {
			return out, false, nil
		}

		for _, sig := range sigs {
			if sig.Slot < from {
				return out, false, nil
			}
			if sig.Slot > to {
				continue
			}
			if read >= limit {
				return out, true, nil
			}
			read++
			out = append(out, sig)
		}

		if len(sigs) < s.pageSize {
			return out, false, nil
		}
		before = sigs[len(sigs)-1].Signature
	}
}

// GetWalletInfo finds the first transaction of address and its funding source.
// Histories longer than the configured limit leave first activity unknown.
func (s *RPCSource) GetWalletInfo(ctx context.Context, address string, _ int64) (*domain.Wallet, error) {
	const op = "get_wallet_info"

	if w, ok := s.wallets.Get(address); ok {
		return &w, nil
	}

	var (
		oldest *solana.SignatureInfo
		before string
		read   int
	)
	for read < s.walletHistoryLimit {
		sigs, err := s.rpc.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
			Before: before,
			Limit:  s.pageSize,
		})
		if err != nil {
			return nil, rpcUnavailable(op, err)
		}
		if len(sigs) == 0 {
			break
		}
		read += len(sigs)
		last := sigs[len(sigs)-1]
		oldest = &last
		if len(sigs) < s.pageSize {
			break
		}
		before = last.Signature
	}

	if read >= s.walletHistoryLimit {
		// long-lived wallet, not fresh
		return &domain.Wallet{Address: address}, nil
	}
	if oldest == nil {
		return nil, notFound(op, "no history for "+address)
	}

	w := domain.Wallet{
		Address:       address,
		FirstSeenSlot: oldest.Slot,
	}
	if oldest.BlockTime != nil {
		w.FirstSeenMs = *oldest.BlockTime * 1000
	}

	tx, err := s.rpc.GetTransaction(ctx, oldest.Signature)
	if err != nil {
		return nil, rpcUnavailable(op, err)
	}
	if src, ok := normalization.FundingFromTransaction(tx, address); ok {
		w.FundingSource = src
		w.FundedAtMs = tx.BlockTime * 1000
	}

	s.wallets.Add(address, w)
	return &w, nil
}

// GetTopHolders returns the largest token accounts of mint grouped under their owners.
func (s *RPCSource) GetTopHolders(ctx context.Context, mint string, _ int64) (*HolderSet, error) {
	const op = "get_top_holders"

	supply, err := s.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, rpcUnavailable(op, err)
	}
	if supply == nil {
		return nil, notFound(op, "supply of "+mint)
	}
	total, err := normalization.UIAmount(*supply)
	if err != nil {
		return nil, riskerr.DataUnavailable(op, err)
	}

	largest, err := s.rpc.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return nil, rpcUnavailable(op, err)
	}

	set := &HolderSet{Supply: total}
	for _, acc := range largest {
		amount, err := normalization.UIAmount(acc.TokenAmount)
		if err != nil {
			return nil, riskerr.DataUnavailable(op, err)
		}
		owner, err := s.ownerOf(ctx, acc.Address)
		if err != nil {
			if ctx.Err() != nil {
				return nil, rpcUnavailable(op, ctx.Err())
			}
			// unresolved owners count as their own holder
			owner = acc.Address
		}
		set.Holders = append(set.Holders, domain.HolderBalance{
			Owner:        owner,
			TokenAccount: acc.Address,
			Amount:       amount,
		})
	}
	return set, nil
}

// GetBlockTime returns the block time of height in unix ms.
func (s *RPCSource) GetBlockTime(ctx context.Context, height int64) (int64, error) {
	const op = "get_block_time"

	bt, err := s.rpc.GetBlockTime(ctx, height)
	if err != nil {
		return 0, rpcUnavailable(op, err)
	}
	if bt == nil {
		return 0, notFound(op, fmt.Sprintf("block time of slot %d", height))
	}
	return *bt * 1000, nil
}
