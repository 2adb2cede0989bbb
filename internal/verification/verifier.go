// Package verification re-evaluates published reports and compares them with
// the stored copy. Evaluation of the same snapshot must reproduce the report.
package verification

import (
	"context"
	"fmt"
	"math"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/storage"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// Result contains the result of verifying one report.
type Result struct {
	Mint        string
	Height      int64
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// Evaluator evaluates one token at a height.
type Evaluator interface {
	EvaluateToken(ctx context.Context, mint string, asOfHeight int64) (*domain.TrustScoreReport, error)
}

// Verifier compares stored reports with fresh evaluations. The evaluator must
// not publish into the store being verified.
type Verifier struct {
	reports   storage.ReportStore
	evaluator Evaluator
}

// NewVerifier creates a new Verifier.
func NewVerifier(reports storage.ReportStore, evaluator Evaluator) *Verifier {
	return &Verifier{reports: reports, evaluator: evaluator}
}

// Verify loads the stored report of mint at height, re-evaluates it and
// compares the two. Returns storage.ErrNotFound if nothing is stored.
func (v *Verifier) Verify(ctx context.Context, mint string, height int64) (*Result, error) {
	stored, err := v.reports.Get(ctx, mint, height)
	if err != nil {
		return nil, fmt.Errorf("load stored report: %w", err)
	}

	replayed, err := v.evaluator.EvaluateToken(ctx, mint, height)
	if err != nil {
		return nil, fmt.Errorf("re-evaluate: %w", err)
	}

	divergences := CompareReports(stored, replayed)
	return &Result{
		Mint:        mint,
		Height:      height,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// CompareReports compares two reports field by field.
// Uses FloatTolerance for float64 comparisons.
func CompareReports(stored, replayed *domain.TrustScoreReport) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.ID != replayed.ID {
		add("ID", stored.ID, replayed.ID)
	}
	if stored.Mint != replayed.Mint {
		add("Mint", stored.Mint, replayed.Mint)
	}
	if stored.SnapshotHeight != replayed.SnapshotHeight {
		add("SnapshotHeight", stored.SnapshotHeight, replayed.SnapshotHeight)
	}
	if stored.Score != replayed.Score {
		add("Score", stored.Score, replayed.Score)
	}
	if !stored.EvaluatedAt.Equal(replayed.EvaluatedAt) {
		add("EvaluatedAt", stored.EvaluatedAt, replayed.EvaluatedAt)
	}

	if len(stored.Signals) != len(replayed.Signals) {
		add("Signals.len", len(stored.Signals), len(replayed.Signals))
		return divergences
	}
	for i := range stored.Signals {
		s, r := stored.Signals[i], replayed.Signals[i]
		prefix := fmt.Sprintf("Signals[%d].", i)
		if s.Name != r.Name {
			add(prefix+"Name", s.Name, r.Name)
			continue
		}
		if s.Confidence != r.Confidence {
			add(prefix+"Confidence", s.Confidence, r.Confidence)
		}
		if !floatEqual(s.Severity, r.Severity) {
			add(prefix+"Severity", s.Severity, r.Severity)
		}
		if !floatEqual(s.RawValue, r.RawValue) {
			add(prefix+"RawValue", s.RawValue, r.RawValue)
		}
		if !floatEqual(s.Contribution, r.Contribution) {
			add(prefix+"Contribution", s.Contribution, r.Contribution)
		}
	}

	return divergences
}

// floatEqual compares two float64 values within FloatTolerance.
func floatEqual(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
