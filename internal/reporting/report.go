// Package reporting renders trust score reports for humans and spreadsheets.
package reporting

import (
	"fmt"
	"strings"

	"solana-risk-engine/internal/domain"
)

// Format selects a renderer.
type Format string

// Output formats.
const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// ParseFormat parses a format name. Accepts "md" for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// Render renders r in format f. highRiskThreshold labels the verdict.
func Render(r *domain.TrustScoreReport, f Format, highRiskThreshold int) (string, error) {
	switch f {
	case FormatJSON:
		data, err := r.CanonicalJSON()
		if err != nil {
			return "", fmt.Errorf("marshal report: %w", err)
		}
		return string(data) + "\n", nil
	case FormatMarkdown:
		return RenderMarkdown(r, highRiskThreshold), nil
	case FormatCSV:
		return RenderCSV(r), nil
	default:
		return "", fmt.Errorf("unknown format %q", f)
	}
}

// Verdict returns the risk label of a score.
func Verdict(score, highRiskThreshold int) string {
	if score < highRiskThreshold {
		return "HIGH RISK"
	}
	return "OK"
}
