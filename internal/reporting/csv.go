package reporting

import (
	"fmt"
	"strings"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/storage"
)

// RenderCSV renders the signal breakdown of a report as CSV string.
func RenderCSV(r *domain.TrustScoreReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("mint,snapshot_height,score,signal,confidence,severity,raw_value,contribution\n")

	// Rows
	for _, s := range r.Signals {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%s,%s,%.6f,%.6f,%.6f\n",
			r.Mint,
			r.SnapshotHeight,
			r.Score,
			s.Name,
			s.Confidence,
			s.Severity,
			s.RawValue,
			s.Contribution,
		))
	}

	return sb.String()
}

// RenderHistoryCSV renders stored signal records as CSV string.
func RenderHistoryCSV(records []storage.SignalRecord) string {
	var sb strings.Builder

	// Header
	sb.WriteString("report_id,mint,snapshot_height,evaluated_at_ms,score,signal,confidence,severity,raw_value,contribution\n")

	// Rows
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%s,%s,%.6f,%.6f,%.6f\n",
			r.ReportID,
			r.Mint,
			r.SnapshotHeight,
			r.EvaluatedAt.UnixMilli(),
			r.Score,
			r.Name,
			r.Confidence,
			r.Severity,
			r.RawValue,
			r.Contribution,
		))
	}

	return sb.String()
}
