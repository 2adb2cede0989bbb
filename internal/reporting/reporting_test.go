package reporting

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/storage"
)

func testReport() *domain.TrustScoreReport {
	return domain.NewTrustScoreReport("abc123", "MintA", 35,
		[]domain.SignalContribution{
			{Name: domain.SignalMintAuthorityActive, Severity: 30, RawValue: 1, Confidence: domain.ConfidenceObserved, Contribution: -30},
			{Name: domain.SignalLiquidityUnlocked, Severity: 35, Confidence: domain.ConfidenceUnknown, Contribution: -17.5},
			{Name: domain.SignalWashTradingDetected, Severity: 20, RawValue: 0.875, Confidence: domain.ConfidenceObserved, Contribution: -17.5},
		},
		time.UnixMilli(1700000000000), 1000, 100,
		[]domain.WalletCluster{{
			Members:  []string{"w1", "w2", "w3", "w4", "w5", "w6", "w7"},
			Reason:   domain.ClusterFundingLineage,
			Cohesion: 1,
		}},
		[]domain.Note{{Signal: domain.SignalLiquidityUnlocked, Kind: domain.NoteDataUnavailable, Detail: "pool: timeout"}},
	)
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(testReport(), 40)

	for _, want := range []string{
		"# Trust Score: MintA",
		"| Score | 35 / 100 |",
		"| Verdict | HIGH RISK |",
		"| Snapshot Height | 1000 |",
		"| Evaluated At | 2023-11-14T22:13:20Z |",
		"| MintAuthorityActive | observed | 30 | 1.0000 | -30.00 |",
		"| LiquidityUnlocked | unknown | 35 | 0.0000 | -17.50 |",
		"| funding_lineage | 7 | 1.00 | w1, w2, w3, w4, w5, +2 more |",
		"- **LiquidityUnlocked** (data_unavailable): pool: timeout",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestRenderMarkdown_NoSignals(t *testing.T) {
	r := domain.NewTrustScoreReport("id", "MintA", 100, nil, time.UnixMilli(0), 1, 0, nil, nil)
	md := RenderMarkdown(r, 40)

	if !strings.Contains(md, "No risk signals raised.") {
		t.Errorf("expected empty signal notice:\n%s", md)
	}
	if !strings.Contains(md, "| Verdict | OK |") {
		t.Errorf("expected OK verdict:\n%s", md)
	}
	if strings.Contains(md, "## Notes") || strings.Contains(md, "## Wallet Clusters") {
		t.Errorf("empty sections should be omitted:\n%s", md)
	}
}

func TestRenderCSV(t *testing.T) {
	csv := RenderCSV(testReport())
	lines := strings.Split(strings.TrimSpace(csv), "\n")

	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(lines))
	}
	if lines[0] != "mint,snapshot_height,score,signal,confidence,severity,raw_value,contribution" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[2] != "MintA,1000,35,LiquidityUnlocked,unknown,35.000000,0.000000,-17.500000" {
		t.Errorf("unexpected row: %s", lines[2])
	}
}

func TestRenderHistoryCSV(t *testing.T) {
	records := storage.SignalRecordsFromReport(testReport())
	csv := RenderHistoryCSV(records)
	lines := strings.Split(strings.TrimSpace(csv), "\n")

	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "abc123,MintA,1000,1700000000000,35,MintAuthorityActive,observed,") {
		t.Errorf("unexpected row: %s", lines[1])
	}
}

func TestRender_JSONIsCanonical(t *testing.T) {
	out, err := Render(testReport(), FormatJSON, 40)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &fields); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	for _, key := range []string{"mint", "score", "signals", "evaluatedAt", "snapshotHeight"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing key %s", key)
		}
	}
	if len(fields) != 5 {
		t.Errorf("expected only canonical fields, got %d", len(fields))
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":         FormatJSON,
		"json":     FormatJSON,
		"md":       FormatMarkdown,
		"Markdown": FormatMarkdown,
		"csv":      FormatCSV,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
