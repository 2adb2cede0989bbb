// Package scoring folds risk signals into a 0-100 trust score.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/riskerr"
)

// Baseline is the score of a token with no signals.
const Baseline = 100.0

// Result is the outcome of one aggregation.
type Result struct {
	Score         int
	Total         float64 // unclamped baseline + contributions
	Contributions []domain.SignalContribution
	Violations    []domain.Note // invariant violations, already corrected
}

// Aggregator is a pure function of its weights and signals.
type Aggregator struct {
	weights map[domain.SignalName]float64
	unknown map[domain.SignalName]float64
}

// NewAggregator validates weights and unknown factors.
func NewAggregator(weights, unknownFactors map[domain.SignalName]float64) (*Aggregator, error) {
	a := &Aggregator{
		weights: make(map[domain.SignalName]float64, len(domain.AllSignals)),
		unknown: make(map[domain.SignalName]float64, len(domain.AllSignals)),
	}
	for _, name := range domain.AllSignals {
		w, ok := weights[name]
		if !ok {
			return nil, riskerr.Configuration("scoring.signal_weights", "missing weight for %s", name)
		}
		if !(w >= 0) || math.IsInf(w, 0) {
			return nil, riskerr.Configuration("scoring.signal_weights", "%s weight must be a non-negative number, got %v", name, w)
		}
		f := unknownFactors[name]
		if !(f >= 0 && f < 1) {
			return nil, riskerr.Configuration("scoring.unknown_penalty_factor", "%s factor must be in [0,1), got %v", name, f)
		}
		a.weights[name] = w
		a.unknown[name] = f
	}
	return a, nil
}

// NewAggregatorFromPolicy builds an Aggregator from a validated policy.
func NewAggregatorFromPolicy(p *config.Policy) (*Aggregator, error) {
	return NewAggregator(p.Weights(), p.UnknownFactors())
}

// Penalty returns the non-negative score reduction of s.
func (a *Aggregator) Penalty(s domain.RiskSignal) float64 {
	w := a.weights[s.Name]
	if s.Confidence == domain.ConfidenceUnknown {
		return w * a.unknown[s.Name]
	}
	return w * s.RawValue
}

// Aggregate scores signals. Unknown names, duplicates and out-of-range raw
// values are recorded as violations and corrected; they never fail the call.
func (a *Aggregator) Aggregate(signals []domain.RiskSignal) Result {
	var res Result
	violate := func(name domain.SignalName, format string, args ...interface{}) {
		res.Violations = append(res.Violations, domain.Note{
			Signal: name,
			Kind:   domain.NoteInvariantViolation,
			Detail: riskerr.InvariantViolation("aggregate", format, args...).Error(),
		})
	}

	seen := make(map[domain.SignalName]bool, len(signals))
	kept := make([]domain.RiskSignal, 0, len(signals))
	for _, s := range signals {
		if !s.Name.IsValid() {
			violate(s.Name, "unknown signal %q dropped", s.Name)
			continue
		}
		if seen[s.Name] {
			violate(s.Name, "duplicate signal dropped")
			continue
		}
		seen[s.Name] = true

		switch s.Confidence {
		case domain.ConfidenceUnknown:
			s.RawValue = 0
		case domain.ConfidenceObserved:
			s.RawValue = clampUnit(s.RawValue, func(v float64) {
				violate(s.Name, "raw value %v outside [0,1]", v)
			})
		default:
			violate(s.Name, "confidence %q treated as unknown", s.Confidence)
			s.Confidence = domain.ConfidenceUnknown
			s.RawValue = 0
		}
		s.Severity = a.weights[s.Name]
		kept = append(kept, s)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Name.Rank() < kept[j].Name.Rank() })

	total := Baseline
	for _, s := range kept {
		p := a.Penalty(s)
		total -= p
		res.Contributions = append(res.Contributions, domain.SignalContribution{
			Name:         s.Name,
			Severity:     s.Severity,
			RawValue:     s.RawValue,
			Confidence:   s.Confidence,
			Contribution: -p,
		})
	}
	res.Total = total

	if math.IsNaN(total) || math.IsInf(total, 0) {
		violate("", "non-finite total %v", total)
		res.Score = 0
		return res
	}
	res.Score = int(math.Round(math.Max(0, math.Min(Baseline, total))))
	return res
}

// clampUnit returns v clamped to [0,1]; NaN becomes 1. report is called for
// any value that needed correction.
func clampUnit(v float64, report func(float64)) float64 {
	switch {
	case math.IsNaN(v):
		report(v)
		return 1
	case v < 0:
		report(v)
		return 0
	case v > 1:
		report(v)
		return 1
	}
	return v
}

// Describe renders a one-line summary of a result.
func (r Result) Describe() string {
	return fmt.Sprintf("score=%d total=%.2f signals=%d violations=%d", r.Score, r.Total, len(r.Contributions), len(r.Violations))
}
