// Package engine evaluates a snapshot with every detector in parallel and
// aggregates the findings into a TrustScoreReport.
package engine

import (
	"fmt"
	"sync"
	"time"

	"solana-risk-engine/internal/authority"
	"solana-risk-engine/internal/clustering"
	"solana-risk-engine/internal/concentration"
	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/idhash"
	"solana-risk-engine/internal/liquidity"
	"solana-risk-engine/internal/riskerr"
	"solana-risk-engine/internal/scoring"
	"solana-risk-engine/internal/washtrade"
)

// Detector is one independent analysis over a snapshot. Implementations must
// not mutate the snapshot.
type Detector interface {
	Name() string
	// Signals lists the signals reported as unknown when Detect cannot run.
	Signals() []domain.SignalName
	Detect(s *domain.Snapshot) domain.Finding
}

// Ensure detectors implement Detector
var (
	_ Detector = (*authority.Auditor)(nil)
	_ Detector = (*liquidity.Guard)(nil)
	_ Detector = (*clustering.Detector)(nil)
	_ Detector = (*washtrade.Detector)(nil)
	_ Detector = (*concentration.Detector)(nil)
)

// Engine is safe for concurrent use; it holds no per-evaluation state.
type Engine struct {
	detectors  []Detector
	aggregator *scoring.Aggregator
}

// New creates an Engine with the standard detectors configured from p.
func New(p *config.Policy) (*Engine, error) {
	agg, err := scoring.NewAggregatorFromPolicy(p)
	if err != nil {
		return nil, err
	}
	burnOrLock := append(append([]string(nil), p.Liquidity.KnownBurnOrLockAddresses...), p.Authority.BurnSentinels...)
	return NewWithDetectors(agg,
		authority.NewAuditor(p.Authority),
		liquidity.NewGuard(p.Liquidity),
		clustering.NewDetector(p.Clustering),
		washtrade.NewDetector(p.Wash),
		concentration.NewDetector(p.Concentration, burnOrLock),
	), nil
}

// NewWithDetectors creates an Engine with explicit detectors.
func NewWithDetectors(agg *scoring.Aggregator, detectors ...Detector) *Engine {
	return &Engine{detectors: detectors, aggregator: agg}
}

// Evaluate runs every detector on s and returns the report. Detectors write
// into their own slot so the merge order is fixed.
func (e *Engine) Evaluate(s *domain.Snapshot) *domain.TrustScoreReport {
	findings := make([]domain.Finding, len(e.detectors))

	var wg sync.WaitGroup
	for i, d := range e.detectors {
		wg.Add(1)
		go func(i int, d Detector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					findings[i] = panicFinding(d, r)
				}
			}()
			findings[i] = d.Detect(s)
		}(i, d)
	}
	wg.Wait()

	var (
		signals  []domain.RiskSignal
		clusters []domain.WalletCluster
		notes    []domain.Note
	)
	for _, f := range findings {
		signals = append(signals, f.Signals...)
		clusters = append(clusters, f.Clusters...)
		notes = append(notes, f.Notes...)
	}
	notes = append(notes, snapshotNotes(s)...)

	res := e.aggregator.Aggregate(signals)
	notes = append(notes, res.Violations...)

	return domain.NewTrustScoreReport(
		idhash.ComputeReportID(s.Mint, s.Height, s.WindowStart),
		s.Mint,
		res.Score,
		res.Contributions,
		time.UnixMilli(s.AsOfMs),
		s.Height,
		s.WindowStart,
		clusters,
		notes,
	)
}

// panicFinding downgrades every signal of a failed detector to unknown.
func panicFinding(d Detector, r interface{}) domain.Finding {
	var f domain.Finding
	detail := riskerr.InvariantViolation(d.Name(), "detector panic: %v", r).Error()
	for _, name := range d.Signals() {
		f.Add(domain.Unknown(name))
	}
	f.Note("", domain.NoteInvariantViolation, detail)
	return f
}

// snapshotNotes records unavailable facts that no detector reports on.
func snapshotNotes(s *domain.Snapshot) []domain.Note {
	var notes []domain.Note
	for _, fact := range []domain.Fact{domain.FactWallets, domain.FactBlockTime} {
		if reason, ok := s.Unavailable[fact]; ok {
			notes = append(notes, domain.Note{
				Kind:   domain.NoteDataUnavailable,
				Detail: fmt.Sprintf("%s: %s", fact, reason),
			})
		}
	}
	return notes
}
