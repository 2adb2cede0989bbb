package domain

import (
	"encoding/json"
	"time"
)

// SignalContribution is a signal together with its effect on the score.
type SignalContribution struct {
	Name         SignalName `json:"name"`
	Severity     float64    `json:"severity"`
	RawValue     float64    `json:"rawValue"`
	Confidence   Confidence `json:"confidence"`
	Contribution float64    `json:"contribution"` // signed score delta (<= 0)
}

// NoteKind classifies an evaluation note.
type NoteKind string

// Note kinds.
const (
	NoteInsufficientEvidence NoteKind = "insufficient_evidence"
	NoteDataUnavailable      NoteKind = "data_unavailable"
	NoteInvariantViolation   NoteKind = "invariant_violation"
	NoteObservation          NoteKind = "observation"
)

// Note records a detector outcome that did not become a signal.
type Note struct {
	Signal SignalName `json:"signal,omitempty"`
	Kind   NoteKind   `json:"kind"`
	Detail string     `json:"detail"`
}

// TrustScoreReport is the immutable result of one evaluation.
// Only the canonical fields are serialized.
type TrustScoreReport struct {
	Mint           string               `json:"mint"`
	Score          int                  `json:"score"`
	Signals        []SignalContribution `json:"signals"`
	EvaluatedAt    time.Time            `json:"evaluatedAt"`
	SnapshotHeight int64                `json:"snapshotHeight"`

	ID          string          `json:"-"` // deterministic report id
	WindowStart int64           `json:"-"` // first slot of the transfer window
	Clusters    []WalletCluster `json:"-"` // audit trail, not ground truth
	Notes       []Note          `json:"-"`
}

// NewTrustScoreReport builds a report, copying every slice so later changes to
// the inputs cannot leak into it.
func NewTrustScoreReport(
	id, mint string,
	score int,
	signals []SignalContribution,
	evaluatedAt time.Time,
	snapshotHeight, windowStart int64,
	clusters []WalletCluster,
	notes []Note,
) *TrustScoreReport {
	r := &TrustScoreReport{
		ID:             id,
		Mint:           mint,
		Score:          score,
		Signals:        append(make([]SignalContribution, 0, len(signals)), signals...),
		EvaluatedAt:    evaluatedAt.UTC(),
		SnapshotHeight: snapshotHeight,
		WindowStart:    windowStart,
		Notes:          append([]Note(nil), notes...),
	}
	for _, c := range clusters {
		r.Clusters = append(r.Clusters, WalletCluster{
			Members:  append([]string(nil), c.Members...),
			Reason:   c.Reason,
			Cohesion: c.Cohesion,
		})
	}
	return r
}

// CanonicalJSON returns the published serialization of the report.
func (r *TrustScoreReport) CanonicalJSON() ([]byte, error) {
	return json.Marshal(r)
}

// Signal returns the contribution for name, if present.
func (r *TrustScoreReport) Signal(name SignalName) (SignalContribution, bool) {
	for _, s := range r.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalContribution{}, false
}
