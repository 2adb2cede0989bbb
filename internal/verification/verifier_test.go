package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/storage"
	"solana-risk-engine/internal/storage/memory"
)

func report(score int, raw float64) *domain.TrustScoreReport {
	return domain.NewTrustScoreReport("id-1", "MintA", score,
		[]domain.SignalContribution{{
			Name:         domain.SignalWashTradingDetected,
			Severity:     20,
			RawValue:     raw,
			Confidence:   domain.ConfidenceObserved,
			Contribution: -20 * raw,
		}},
		time.UnixMilli(1700000000000), 500, 0, nil, nil)
}

type fixedEvaluator struct {
	report *domain.TrustScoreReport
	err    error
}

func (e fixedEvaluator) EvaluateToken(context.Context, string, int64) (*domain.TrustScoreReport, error) {
	return e.report, e.err
}

func TestCompareReports_Identical(t *testing.T) {
	if d := CompareReports(report(90, 0.5), report(90, 0.5)); len(d) != 0 {
		t.Errorf("expected no divergences, got %+v", d)
	}
}

func TestCompareReports_WithinTolerance(t *testing.T) {
	if d := CompareReports(report(90, 0.5), report(90, 0.5+1e-9)); len(d) != 0 {
		t.Errorf("expected tolerance to absorb tiny float error, got %+v", d)
	}
}

func TestCompareReports_Divergent(t *testing.T) {
	d := CompareReports(report(90, 0.5), report(88, 0.6))

	fields := make(map[string]bool)
	for _, f := range d {
		fields[f.Field] = true
	}
	for _, want := range []string{"Score", "Signals[0].RawValue", "Signals[0].Contribution"} {
		if !fields[want] {
			t.Errorf("expected divergence on %s, got %+v", want, d)
		}
	}
}

func TestCompareReports_SignalCountMismatch(t *testing.T) {
	replayed := report(90, 0.5)
	replayed.Signals = nil

	d := CompareReports(report(90, 0.5), replayed)
	if len(d) != 1 || d[0].Field != "Signals.len" {
		t.Errorf("expected single length divergence, got %+v", d)
	}
}

func TestVerifier_Verify(t *testing.T) {
	ctx := context.Background()
	store := memory.NewReportStore()
	if err := store.Insert(ctx, report(90, 0.5)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	res, err := NewVerifier(store, fixedEvaluator{report: report(90, 0.5)}).Verify(ctx, "MintA", 500)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Match {
		t.Errorf("expected match, got %+v", res.Divergences)
	}

	res, err = NewVerifier(store, fixedEvaluator{report: report(70, 1)}).Verify(ctx, "MintA", 500)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Match {
		t.Error("expected mismatch")
	}
}

func TestVerifier_Errors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewReportStore()

	_, err := NewVerifier(store, fixedEvaluator{report: report(90, 0.5)}).Verify(ctx, "MintA", 500)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Insert(ctx, report(90, 0.5)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	boom := errors.New("boom")
	_, err = NewVerifier(store, fixedEvaluator{err: boom}).Verify(ctx, "MintA", 500)
	if !errors.Is(err, boom) {
		t.Errorf("expected evaluator error, got %v", err)
	}
}
