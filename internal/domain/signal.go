package domain

// SignalName identifies a risk signal. Declaration order is report order.
type SignalName string

// Signal names.
const (
	SignalMintAuthorityActive      SignalName = "MintAuthorityActive"
	SignalFreezeAuthorityActive    SignalName = "FreezeAuthorityActive"
	SignalLiquidityUnlocked        SignalName = "LiquidityUnlocked"
	SignalLiquidityPartiallyLocked SignalName = "LiquidityPartiallyLocked"
	SignalFreshWalletSurge         SignalName = "FreshWalletSurge"
	SignalBotBuyingPattern         SignalName = "BotBuyingPattern"
	SignalCoordinatedFunding       SignalName = "CoordinatedFunding"
	SignalHighVolumeLowDiversity   SignalName = "HighVolumeLowDiversity"
	SignalWashTradingDetected      SignalName = "WashTradingDetected"
	SignalHolderConcentration      SignalName = "HolderConcentration"
)

// AllSignals lists every signal name in report order.
var AllSignals = []SignalName{
	SignalMintAuthorityActive,
	SignalFreezeAuthorityActive,
	SignalLiquidityUnlocked,
	SignalLiquidityPartiallyLocked,
	SignalFreshWalletSurge,
	SignalBotBuyingPattern,
	SignalCoordinatedFunding,
	SignalHighVolumeLowDiversity,
	SignalWashTradingDetected,
	SignalHolderConcentration,
}

// Rank returns the report position of the signal name, or len(AllSignals) if unknown.
func (n SignalName) Rank() int {
	for i, s := range AllSignals {
		if s == n {
			return i
		}
	}
	return len(AllSignals)
}

// IsValid checks if the name is a known signal.
func (n SignalName) IsValid() bool {
	return n.Rank() < len(AllSignals)
}

// Confidence states whether a signal's facts were resolved.
type Confidence string

// Confidence values.
const (
	ConfidenceObserved Confidence = "observed"
	ConfidenceUnknown  Confidence = "unknown"
)

// RiskSignal is a value object produced fresh every evaluation.
type RiskSignal struct {
	Name       SignalName // signal identifier
	Severity   float64    // fixed weight for the name
	RawValue   float64    // normalized observation in [0,1]; 0 when unknown
	Confidence Confidence // observed | unknown
}

// Observed creates an observed signal with the given raw value.
func Observed(name SignalName, raw float64) RiskSignal {
	return RiskSignal{Name: name, RawValue: raw, Confidence: ConfidenceObserved}
}

// Unknown creates a signal whose facts could not be resolved.
func Unknown(name SignalName) RiskSignal {
	return RiskSignal{Name: name, Confidence: ConfidenceUnknown}
}
