package domain

// Finding is the output of one detector over a snapshot.
type Finding struct {
	Signals  []RiskSignal
	Clusters []WalletCluster
	Notes    []Note
}

// Add appends a signal.
func (f *Finding) Add(s RiskSignal) {
	f.Signals = append(f.Signals, s)
}

// Note appends a note.
func (f *Finding) Note(signal SignalName, kind NoteKind, detail string) {
	f.Notes = append(f.Notes, Note{Signal: signal, Kind: kind, Detail: detail})
}

// Downgrade turns every observed signal into an unknown one.
func (f *Finding) Downgrade() {
	for i := range f.Signals {
		f.Signals[i] = Unknown(f.Signals[i].Name)
	}
}
