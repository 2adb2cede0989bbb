package idhash

import "testing"

func TestComputeReportID(t *testing.T) {
	tests := []struct {
		name        string
		mint        string
		height      int64
		windowStart int64
	}{
		{"recent mint", "So11111111111111111111111111111111111111112", 250_000_000, 249_991_000},
		{"window at genesis", "TokenMint123ABC", 5000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeReportID(tt.mint, tt.height, tt.windowStart)
			if len(got) != 64 {
				t.Errorf("ComputeReportID() length = %d, want 64", len(got))
			}
			if again := ComputeReportID(tt.mint, tt.height, tt.windowStart); again != got {
				t.Errorf("ComputeReportID() not deterministic: %s != %s", got, again)
			}
		})
	}
}

func TestComputeReportID_DifferentInputs(t *testing.T) {
	base := ComputeReportID("mint", 100, 10)

	if base == ComputeReportID("other", 100, 10) {
		t.Error("different mint should produce different id")
	}
	if base == ComputeReportID("mint", 101, 10) {
		t.Error("different height should produce different id")
	}
	if base == ComputeReportID("mint", 100, 11) {
		t.Error("different window start should produce different id")
	}
}

func TestComputeDigest(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := ComputeDigest([]byte("abc")); got != want {
		t.Errorf("ComputeDigest() = %s, want %s", got, want)
	}
}
