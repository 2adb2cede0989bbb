package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/normalization"
	"solana-risk-engine/internal/riskerr"
)

// CollectorOptions contains configuration for creating a Collector.
type CollectorOptions struct {
	Timeout       time.Duration // Default: 20s - per-evaluation deadline
	WindowSlots   int64         // transfer window length ending at the snapshot height
	WalletWorkers int           // Default: 8 - concurrent GetWalletInfo calls
	Logger        *slog.Logger
}

// Collector captures a Snapshot from a FactSource. Facts not resolved before
// the deadline are recorded as unavailable; collection itself never fails
// unless the caller's context is done.
type Collector struct {
	source        FactSource
	timeout       time.Duration
	windowSlots   int64
	walletWorkers int
	logger        *slog.Logger
}

// NewCollector creates a new snapshot collector.
func NewCollector(source FactSource, opts CollectorOptions) *Collector {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.WindowSlots <= 0 {
		opts.WindowSlots = 9000
	}
	if opts.WalletWorkers <= 0 {
		opts.WalletWorkers = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{
		source:        source,
		timeout:       opts.Timeout,
		windowSlots:   opts.WindowSlots,
		walletWorkers: opts.WalletWorkers,
		logger:        logger,
	}
}

// WindowStart returns the first slot of the transfer window ending at height.
func (c *Collector) WindowStart(height int64) int64 {
	start := height - c.windowSlots + 1
	if start < 0 {
		return 0
	}
	return start
}

type result[T any] struct {
	val T
	err error
}

// fetch runs fn in its own goroutine. The buffered channel lets the goroutine
// finish even if nobody waits for it anymore.
func fetch[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan result[T] {
	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{val: v, err: err}
	}()
	return ch
}

func await[T any](ctx context.Context, ch <-chan result[T]) (T, error) {
	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Collect captures the snapshot of mint at height.
func (c *Collector) Collect(parent context.Context, mint string, height int64) (*domain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := c.WindowStart(height)
	snap := &domain.Snapshot{
		Mint:        mint,
		Height:      height,
		WindowStart: start,
		Unavailable: make(map[domain.Fact]string),
	}
	unavailable := func(fact domain.Fact, op string, err error) {
		snap.Unavailable[fact] = reason(op, err)
		c.logger.Debug("fact unavailable", "mint", mint, "height", height, "fact", fact, "error", err)
	}

	tokenCh := fetch(ctx, func(ctx context.Context) (*domain.Token, error) {
		return c.source.GetToken(ctx, mint, height)
	})
	poolCh := fetch(ctx, func(ctx context.Context) (*domain.LiquidityPool, error) {
		return c.source.GetLiquidityPool(ctx, mint, height)
	})
	holdersCh := fetch(ctx, func(ctx context.Context) (*HolderSet, error) {
		return c.source.GetTopHolders(ctx, mint, height)
	})
	windowCh := fetch(ctx, func(ctx context.Context) (TransferWindow, error) {
		return c.source.GetTransferWindow(ctx, mint, start, height)
	})
	blockTimeCh := fetch(ctx, func(ctx context.Context) (int64, error) {
		return c.source.GetBlockTime(ctx, height)
	})

	window, err := await(ctx, windowCh)
	if err != nil {
		unavailable(domain.FactTransfers, "get_transfer_window", err)
	} else {
		snap.Transfers = normalization.CanonicalWindow(window.Events)
		snap.TransfersResolved = true
		snap.TransfersPartial = window.Partial
	}

	// wallets overlap the remaining fetches
	if snap.TransfersResolved {
		wallets, failed, firstErr := c.collectWallets(ctx, snap.WalletTouched(), height)
		snap.Wallets = wallets
		if failed > 0 {
			unavailable(domain.FactWallets, "get_wallet_info",
				fmt.Errorf("%d of %d wallets unresolved: %w", failed, failed+len(wallets), firstErr))
		}
	}

	if token, err := await(ctx, tokenCh); err != nil {
		unavailable(domain.FactToken, "get_token", err)
	} else {
		snap.Token = token
	}

	if pool, err := await(ctx, poolCh); err != nil {
		unavailable(domain.FactPool, "get_liquidity_pool", err)
	} else {
		snap.Pool = pool
	}

	if holders, err := await(ctx, holdersCh); err != nil {
		unavailable(domain.FactHolders, "get_top_holders", err)
	} else {
		snap.Holders = holders.Holders
		snap.HolderSupply = holders.Supply
		snap.HoldersResolved = true
	}

	if bt, err := await(ctx, blockTimeCh); err != nil {
		unavailable(domain.FactBlockTime, "get_block_time", err)
		snap.AsOfMs = latestTimestamp(snap.Transfers)
	} else {
		snap.AsOfMs = bt
	}

	if err := parent.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

type walletResult struct {
	wallet *domain.Wallet
	err    error
}

// collectWallets resolves wallets with a bounded worker pool. Addresses are
// dispatched in sorted order.
func (c *Collector) collectWallets(ctx context.Context, addresses []string, height int64) (map[string]domain.Wallet, int, error) {
	results := make([]walletResult, len(addresses))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := c.walletWorkers
	if workers > len(addresses) {
		workers = len(addresses)
	}
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				w, err := await(ctx, fetch(ctx, func(ctx context.Context) (*domain.Wallet, error) {
					return c.source.GetWalletInfo(ctx, addresses[i], height)
				}))
				results[i] = walletResult{wallet: w, err: err}
			}
		}()
	}

dispatch:
	for i := range addresses {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(addresses); j++ {
				results[j] = walletResult{err: ctx.Err()}
			}
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	wallets := make(map[string]domain.Wallet, len(addresses))
	failed := 0
	var firstErr error
	for i, r := range results {
		if r.err != nil || r.wallet == nil {
			failed++
			if firstErr == nil {
				firstErr = r.err
				if firstErr == nil {
					firstErr = riskerr.ErrNotFound
				}
			}
			continue
		}
		w := *r.wallet
		w.Address = addresses[i]
		wallets[w.Address] = w
	}
	return wallets, failed, firstErr
}

// reason formats a DataUnavailable reason for a snapshot fact.
func reason(op string, err error) string {
	if riskerr.KindOf(err) == riskerr.KindDataUnavailable {
		return err.Error()
	}
	return riskerr.DataUnavailable(op, err).Error()
}

func latestTimestamp(events []domain.TransferEvent) int64 {
	var latest int64
	for _, e := range events {
		if e.TimestampMs > latest {
			latest = e.TimestampMs
		}
	}
	return latest
}
