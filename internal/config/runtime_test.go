package config

import (
	"testing"
	"time"
)

func TestLoadRuntime(t *testing.T) {
	t.Setenv("WORKERS", "3")
	t.Setenv("EVAL_TIMEOUT", "5s")
	t.Setenv("WATCHLIST", "MintA, MintB,,")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	rt := LoadRuntime()

	if rt.Workers != 3 {
		t.Errorf("Workers = %d, want 3", rt.Workers)
	}
	if rt.EvalTimeout != 5*time.Second {
		t.Errorf("EvalTimeout = %v, want 5s", rt.EvalTimeout)
	}
	if len(rt.Watchlist) != 2 || rt.Watchlist[0] != "MintA" || rt.Watchlist[1] != "MintB" {
		t.Errorf("Watchlist = %v", rt.Watchlist)
	}
	if rt.RateLimitRPS != 2.5 {
		t.Errorf("RateLimitRPS = %v, want 2.5", rt.RateLimitRPS)
	}
}

func TestGetEnvAsInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT_KEY", "not-a-number")
	if got := getEnvAsInt("TEST_INT_KEY", 42); got != 42 {
		t.Errorf("getEnvAsInt = %d, want 42", got)
	}
}
