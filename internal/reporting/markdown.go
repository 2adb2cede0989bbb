package reporting

import (
	"fmt"
	"strings"
	"time"

	"solana-risk-engine/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *domain.TrustScoreReport, highRiskThreshold int) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Trust Score: %s\n\n", r.Mint))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Score | %d / 100 |\n", r.Score))
	sb.WriteString(fmt.Sprintf("| Verdict | %s |\n", Verdict(r.Score, highRiskThreshold)))
	sb.WriteString(fmt.Sprintf("| Snapshot Height | %d |\n", r.SnapshotHeight))
	sb.WriteString(fmt.Sprintf("| Window Start | %d |\n", r.WindowStart))
	sb.WriteString(fmt.Sprintf("| Evaluated At | %s |\n", r.EvaluatedAt.UTC().Format(time.RFC3339)))
	if r.ID != "" {
		sb.WriteString(fmt.Sprintf("| Report ID | `%s` |\n", r.ID))
	}
	sb.WriteString("\n")

	// Signals
	sb.WriteString("## Signals\n\n")
	if len(r.Signals) > 0 {
		sb.WriteString("| Signal | Confidence | Severity | Raw | Contribution |\n")
		sb.WriteString("|--------|------------|----------|-----|--------------|\n")
		for _, s := range r.Signals {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.0f | %.4f | %.2f |\n",
				s.Name, s.Confidence, s.Severity, s.RawValue, s.Contribution))
		}
	} else {
		sb.WriteString("No risk signals raised.\n")
	}
	sb.WriteString("\n")

	// Clusters
	if len(r.Clusters) > 0 {
		sb.WriteString("## Wallet Clusters\n\n")
		sb.WriteString("| Reason | Size | Cohesion | Members |\n")
		sb.WriteString("|--------|------|----------|---------|\n")
		for _, c := range r.Clusters {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %s |\n",
				c.Reason, len(c.Members), c.Cohesion, abbreviateMembers(c.Members, 5)))
		}
		sb.WriteString("\n")
	}

	// Notes
	if len(r.Notes) > 0 {
		sb.WriteString("## Notes\n\n")
		for _, n := range r.Notes {
			if n.Signal != "" {
				sb.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", n.Signal, n.Kind, n.Detail))
			} else {
				sb.WriteString(fmt.Sprintf("- (%s): %s\n", n.Kind, n.Detail))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func abbreviateMembers(members []string, max int) string {
	if len(members) <= max {
		return strings.Join(members, ", ")
	}
	return fmt.Sprintf("%s, +%d more", strings.Join(members[:max], ", "), len(members)-max)
}
