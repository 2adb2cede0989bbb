// Package authority flags mints whose mint or freeze authority is still held.
package authority

import (
	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/riskerr"
)

// Auditor inspects the authority options of a mint.
type Auditor struct {
	sentinels map[string]bool
}

// NewAuditor creates an Auditor. The system program address is always a sentinel.
func NewAuditor(p config.AuthorityPolicy) *Auditor {
	s := map[string]bool{domain.BurnSentinel: true}
	for _, addr := range p.BurnSentinels {
		s[addr] = true
	}
	return &Auditor{sentinels: s}
}

// Name returns the detector name.
func (a *Auditor) Name() string {
	return "authority"
}

// Signals lists the authority signals.
func (a *Auditor) Signals() []domain.SignalName {
	return []domain.SignalName{domain.SignalMintAuthorityActive, domain.SignalFreezeAuthorityActive}
}

// Detect audits the snapshot token.
func (a *Auditor) Detect(s *domain.Snapshot) domain.Finding {
	if s.Token == nil {
		var f domain.Finding
		detail := riskerr.DataUnavailable("get_token", nil).Error()
		if reason, ok := s.Unavailable[domain.FactToken]; ok {
			detail += ": " + reason
		}
		for _, name := range a.Signals() {
			f.Add(domain.Unknown(name))
			f.Note(name, domain.NoteDataUnavailable, detail)
		}
		return f
	}
	return a.Audit(s.Token)
}

// Audit returns one signal per authority that is set and not burned.
func (a *Auditor) Audit(t *domain.Token) domain.Finding {
	var f domain.Finding
	a.check(&f, domain.SignalMintAuthorityActive, t.MintAuthority)
	a.check(&f, domain.SignalFreezeAuthorityActive, t.FreezeAuthority)
	return f
}

func (a *Auditor) check(f *domain.Finding, name domain.SignalName, p domain.Principal) {
	switch {
	case !p.Resolved:
		f.Add(domain.Unknown(name))
		f.Note(name, domain.NoteDataUnavailable, "authority field could not be decoded")
	case p.IsSet() && !a.sentinels[p.Address]:
		f.Add(domain.Observed(name, 1))
	}
}
