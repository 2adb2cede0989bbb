package riskerr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("fetch pool: %w", DataUnavailable("get_liquidity_pool", ErrRPCUnavailable))

	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatal("expected DataUnavailable match")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("unexpected Configuration match")
	}
	if !errors.Is(err, ErrRPCUnavailable) {
		t.Error("expected cause to be reachable")
	}
	if KindOf(err) != KindDataUnavailable {
		t.Errorf("KindOf = %q", KindOf(err))
	}
}

func TestError_Message(t *testing.T) {
	err := Configuration("wash.conservation_tolerance", "must be in [0,1), got %v", 1.5)
	want := "wash.conservation_tolerance: configuration: must be in [0,1), got 1.5"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	err = DataUnavailable("get_token", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected deadline cause")
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if k := KindOf(errors.New("plain")); k != "" {
		t.Errorf("expected empty kind, got %q", k)
	}
}
