// Package orchestrator schedules watchlist evaluations on ledger ticks.
// Flow: slot tick → cache horizon → bounded queue → worker pool → pipeline
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/observability"
	"solana-risk-engine/internal/solana"
)

// Evaluator evaluates one token at a height.
type Evaluator interface {
	EvaluateToken(ctx context.Context, mint string, asOfHeight int64) (*domain.TrustScoreReport, error)
}

// Horizon is advanced on every tick to evict stale cached snapshots.
type Horizon interface {
	Advance(latestHeight int64) int
}

// SlotGetter polls the current slot when no subscription is configured.
type SlotGetter interface {
	GetSlot(ctx context.Context) (int64, error)
}

// ErrStopped is returned by Run once the orchestrator has shut down.
var ErrStopped = errors.New("orchestrator stopped")

// Options for creating Orchestrator.
type Options struct {
	Evaluator Evaluator
	Cache     Horizon // optional
	Watchlist []string

	Workers   int // Default: 4
	QueueSize int // Default: 256 - full queue drops jobs

	Slots        solana.SlotSource // preferred tick source
	SlotGetter   SlotGetter        // polled when Slots is nil
	PollInterval time.Duration     // Default: 30s
	TickEvery    int64             // Default: 150 - minimum slots between evaluation rounds

	Logger *slog.Logger
}

type job struct {
	mint   string
	height int64
}

// Orchestrator evaluates every watched mint on ledger ticks.
// A mint is never queued twice while an evaluation of it is pending.
type Orchestrator struct {
	evaluator    Evaluator
	cache        Horizon
	watchlist    []string
	workers      int
	slots        solana.SlotSource
	slotGetter   SlotGetter
	pollInterval time.Duration
	tickEvery    int64
	logger       *slog.Logger

	queue chan job

	mu       sync.Mutex
	inFlight map[string]bool
	lastTick int64
	stopped  bool // queue closed, Tick is a no-op
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.TickEvery <= 0 {
		opts.TickEvery = 150
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Orchestrator{
		evaluator:    opts.Evaluator,
		cache:        opts.Cache,
		watchlist:    append([]string(nil), opts.Watchlist...),
		workers:      opts.Workers,
		slots:        opts.Slots,
		slotGetter:   opts.SlotGetter,
		pollInterval: opts.PollInterval,
		tickEvery:    opts.TickEvery,
		logger:       logger,
		queue:        make(chan job, opts.QueueSize),
		inFlight:     make(map[string]bool),
		lastTick:     -1,
	}
}

// Run starts the worker pool and drives ticks until ctx is done.
// Queued jobs are drained before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	stopped := o.stopped
	o.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx)
		}()
	}

	o.logger.Info("orchestrator started",
		"workers", o.workers,
		"watchlist", len(o.watchlist),
		"subscription", o.slots != nil,
	)

	if o.slots != nil {
		o.runSubscription(ctx)
	} else {
		o.runPolling(ctx)
	}

	o.mu.Lock()
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()
	wg.Wait()
	o.logger.Info("orchestrator stopped")
	return nil
}

func (o *Orchestrator) runSubscription(ctx context.Context) {
	slots := o.slots.Slots()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-slots:
			if !ok {
				o.logger.Warn("slot subscription closed, falling back to polling")
				o.runPolling(ctx)
				return
			}
			o.Tick(n.Slot)
		}
	}
}

func (o *Orchestrator) runPolling(ctx context.Context) {
	if o.slotGetter == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		o.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) poll(ctx context.Context) {
	slot, err := o.slotGetter.GetSlot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			o.logger.Warn("get slot failed", "error", err)
		}
		return
	}
	o.Tick(slot)
}

// Tick handles a new ledger height: it advances the cache horizon and queues
// every watched mint not already pending. Heights within TickEvery slots of
// the previous round are ignored. Returns the number of queued and dropped jobs.
func (o *Orchestrator) Tick(height int64) (queued, dropped int) {
	observability.UpdateHighestSlot(height)

	o.mu.Lock()
	if o.stopped || (o.lastTick >= 0 && height-o.lastTick < o.tickEvery) {
		o.mu.Unlock()
		return 0, 0
	}
	o.lastTick = height
	o.mu.Unlock()

	if o.cache != nil {
		if n := o.cache.Advance(height); n > 0 {
			o.logger.Debug("evicted snapshots", "count", n, "height", height)
		}
	}

	for _, mint := range o.watchlist {
		o.mu.Lock()
		if o.stopped {
			o.mu.Unlock()
			break
		}
		if o.inFlight[mint] {
			o.mu.Unlock()
			continue
		}
		select {
		case o.queue <- job{mint: mint, height: height}:
			o.inFlight[mint] = true
			queued++
		default:
			dropped++
		}
		o.mu.Unlock()
	}

	observability.SetQueueDepth(len(o.queue))
	if dropped > 0 {
		for i := 0; i < dropped; i++ {
			observability.RecordQueueDrop()
		}
		o.logger.Warn("evaluation queue full, jobs dropped", "dropped", dropped, "height", height)
	}
	return queued, dropped
}

func (o *Orchestrator) worker(ctx context.Context) {
	for j := range o.queue {
		observability.SetQueueDepth(len(o.queue))
		if ctx.Err() == nil {
			if _, err := o.evaluator.EvaluateToken(ctx, j.mint, j.height); err != nil && ctx.Err() == nil {
				o.logger.Error("evaluation failed", "mint", j.mint, "height", j.height, "error", err)
			}
		}
		o.mu.Lock()
		delete(o.inFlight, j.mint)
		o.mu.Unlock()
	}
}
