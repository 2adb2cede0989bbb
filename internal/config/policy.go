// Package config loads the risk policy (YAML via viper) and the runtime
// settings (.env via godotenv).
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/riskerr"
)

// Policy holds every tunable threshold of the risk engine.
type Policy struct {
	Window        WindowPolicy        `mapstructure:"window"`
	Authority     AuthorityPolicy     `mapstructure:"authority"`
	Liquidity     LiquidityPolicy     `mapstructure:"liquidity"`
	Clustering    ClusteringPolicy    `mapstructure:"clustering"`
	Wash          WashPolicy          `mapstructure:"wash"`
	Concentration ConcentrationPolicy `mapstructure:"concentration"`
	Scoring       ScoringPolicy       `mapstructure:"scoring"`
	Pools         []PoolEntry         `mapstructure:"pools"`
}

// WindowPolicy bounds the transfer window.
type WindowPolicy struct {
	Slots int64 `mapstructure:"slots"` // window length ending at the snapshot height
}

// AuthorityPolicy configures the authority auditor.
type AuthorityPolicy struct {
	BurnSentinels []string `mapstructure:"burn_sentinels"`
}

// LiquidityPolicy configures the liquidity guard.
type LiquidityPolicy struct {
	LockedThreshold          float64  `mapstructure:"locked_threshold"`  // lockedFraction >= this is Locked
	PartialThreshold         float64  `mapstructure:"partial_threshold"` // lockedFraction >= this is PartiallyLocked
	KnownBurnOrLockAddresses []string `mapstructure:"known_burn_or_lock_addresses"`
}

// ClusteringPolicy configures the wallet clustering engine.
type ClusteringPolicy struct {
	FreshWalletRatioThreshold float64       `mapstructure:"fresh_wallet_ratio_threshold"`
	SurgeWindow               time.Duration `mapstructure:"surge_window"`
	PostCreationBuyDelay      time.Duration `mapstructure:"post_creation_buy_delay"` // δ
	MinActiveHolders          int           `mapstructure:"min_active_holders"`
	FundingSpan               time.Duration `mapstructure:"funding_span"`
	CreationProximity         time.Duration `mapstructure:"creation_proximity"`
	MinClusterSize            int           `mapstructure:"min_cluster_size"`
	LineageRatioThreshold     float64       `mapstructure:"lineage_ratio_threshold"`
	SyncBuyMinSamples         int           `mapstructure:"sync_buy_min_samples"`
	SyncBuyVarianceFloor      float64       `mapstructure:"sync_buy_variance_floor"` // seconds^2
	ActivityWindow            time.Duration `mapstructure:"activity_window"`         // 0 disables the activity check
	ActivityMinTrades         int           `mapstructure:"activity_min_trades"`     // trades in the window to count as high volume
	ActivityMaxTraders        int           `mapstructure:"activity_max_traders"`    // fewer distinct traders is low diversity
}

// WashPolicy configures the wash-trading detector.
type WashPolicy struct {
	CycleLengthLimit      int           `mapstructure:"cycle_length_limit"`
	MaxFanOut             int           `mapstructure:"max_fan_out"`
	ConservationTolerance float64       `mapstructure:"conservation_tolerance"` // ε
	RetentionTolerance    float64       `mapstructure:"retention_tolerance"`
	MaterialityThreshold  float64       `mapstructure:"materiality_threshold"`
	CycleMaxSpan          time.Duration `mapstructure:"cycle_max_span"`
}

// ConcentrationPolicy configures the holder concentration detector.
type ConcentrationPolicy struct {
	TopN                int     `mapstructure:"top_n"`
	TopHoldersThreshold float64 `mapstructure:"top_holders_threshold"`
	WhaleThreshold      float64 `mapstructure:"whale_threshold"`
}

// ScoringPolicy configures the score aggregator.
type ScoringPolicy struct {
	SignalWeights           map[string]float64 `mapstructure:"signal_weights"`
	UnknownPenaltyFactor    float64            `mapstructure:"unknown_penalty_factor"`
	UnknownPenaltyOverrides map[string]float64 `mapstructure:"unknown_penalty_overrides"`
	HighRiskThreshold       int                `mapstructure:"high_risk_threshold"`
}

// PoolEntry registers the AMM pool of a mint.
type PoolEntry struct {
	Mint           string `mapstructure:"mint"`
	PoolID         string `mapstructure:"pool_id"`
	LPMint         string `mapstructure:"lp_mint"`
	BaseVault      string `mapstructure:"base_vault"`
	QuoteVault     string `mapstructure:"quote_vault"`
	VaultAuthority string `mapstructure:"vault_authority"`
}

// DefaultSignalWeights returns the default weight of every signal.
func DefaultSignalWeights() map[domain.SignalName]float64 {
	return map[domain.SignalName]float64{
		domain.SignalMintAuthorityActive:      30,
		domain.SignalFreezeAuthorityActive:    20,
		domain.SignalLiquidityUnlocked:        35,
		domain.SignalLiquidityPartiallyLocked: 15,
		domain.SignalFreshWalletSurge:         15,
		domain.SignalBotBuyingPattern:         10,
		domain.SignalCoordinatedFunding:       10,
		domain.SignalHighVolumeLowDiversity:   10,
		domain.SignalWashTradingDetected:      20,
		domain.SignalHolderConcentration:      10,
	}
}

// LoadPolicy reads the policy file at path (optional) with RISK_* env overrides.
func LoadPolicy(path string) (*Policy, error) {
	v := viper.New()
	setPolicyDefaults(v)

	v.SetEnvPrefix("RISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, riskerr.Configuration("policy_file", "read %s: %v", path, err)
		}
	}

	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		return nil, riskerr.Configuration("policy_file", "unmarshal: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultPolicy returns the validated built-in policy.
func DefaultPolicy() *Policy {
	v := viper.New()
	setPolicyDefaults(v)
	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		panic(fmt.Sprintf("default policy: %v", err))
	}
	return &p
}

func setPolicyDefaults(v *viper.Viper) {
	v.SetDefault("window.slots", 9000) // ~1h of slots

	v.SetDefault("authority.burn_sentinels", []string{domain.BurnSentinel})

	v.SetDefault("liquidity.locked_threshold", 0.95)
	v.SetDefault("liquidity.partial_threshold", 0.30)
	v.SetDefault("liquidity.known_burn_or_lock_addresses", []string{domain.BurnSentinel})

	v.SetDefault("clustering.fresh_wallet_ratio_threshold", 0.5)
	v.SetDefault("clustering.surge_window", "1m")
	v.SetDefault("clustering.post_creation_buy_delay", "5m")
	v.SetDefault("clustering.min_active_holders", 10)
	v.SetDefault("clustering.funding_span", "10m")
	v.SetDefault("clustering.creation_proximity", "30s")
	v.SetDefault("clustering.min_cluster_size", 3)
	v.SetDefault("clustering.lineage_ratio_threshold", 0.3)
	v.SetDefault("clustering.sync_buy_min_samples", 8)
	v.SetDefault("clustering.sync_buy_variance_floor", 1.0)
	v.SetDefault("clustering.activity_window", "5m")
	v.SetDefault("clustering.activity_min_trades", 8)
	v.SetDefault("clustering.activity_max_traders", 10)

	v.SetDefault("wash.cycle_length_limit", 4)
	v.SetDefault("wash.max_fan_out", 32)
	v.SetDefault("wash.conservation_tolerance", 0.10)
	v.SetDefault("wash.retention_tolerance", 0.5)
	v.SetDefault("wash.materiality_threshold", 0.05)
	v.SetDefault("wash.cycle_max_span", "5m")

	v.SetDefault("concentration.top_n", 10)
	v.SetDefault("concentration.top_holders_threshold", 0.30)
	v.SetDefault("concentration.whale_threshold", 0.10)

	weights := make(map[string]interface{})
	for name, w := range DefaultSignalWeights() {
		weights[string(name)] = w
	}
	v.SetDefault("scoring.signal_weights", weights)
	v.SetDefault("scoring.unknown_penalty_factor", 0.5)
	v.SetDefault("scoring.high_risk_threshold", 40)
}

// Validate checks every policy value. Returns a ConfigurationError.
func (p *Policy) Validate() error {
	if p.Window.Slots <= 0 {
		return riskerr.Configuration("window.slots", "must be positive, got %d", p.Window.Slots)
	}

	l := p.Liquidity
	if !(l.PartialThreshold > 0 && l.PartialThreshold < l.LockedThreshold && l.LockedThreshold <= 1) {
		return riskerr.Configuration("liquidity", "need 0 < partial_threshold < locked_threshold <= 1, got %v / %v",
			l.PartialThreshold, l.LockedThreshold)
	}

	c := p.Clustering
	if !unitOpen(c.FreshWalletRatioThreshold) {
		return riskerr.Configuration("clustering.fresh_wallet_ratio_threshold", "must be in [0,1), got %v", c.FreshWalletRatioThreshold)
	}
	if c.SurgeWindow <= 0 {
		return riskerr.Configuration("clustering.surge_window", "must be positive")
	}
	if c.PostCreationBuyDelay < 0 {
		return riskerr.Configuration("clustering.post_creation_buy_delay", "must not be negative")
	}
	if c.MinActiveHolders < 1 {
		return riskerr.Configuration("clustering.min_active_holders", "must be at least 1, got %d", c.MinActiveHolders)
	}
	if c.FundingSpan <= 0 {
		return riskerr.Configuration("clustering.funding_span", "must be positive")
	}
	if c.CreationProximity <= 0 {
		return riskerr.Configuration("clustering.creation_proximity", "must be positive")
	}
	if c.MinClusterSize < 2 {
		return riskerr.Configuration("clustering.min_cluster_size", "must be at least 2, got %d", c.MinClusterSize)
	}
	if !unitOpen(c.LineageRatioThreshold) {
		return riskerr.Configuration("clustering.lineage_ratio_threshold", "must be in [0,1), got %v", c.LineageRatioThreshold)
	}
	if c.SyncBuyMinSamples < 3 {
		return riskerr.Configuration("clustering.sync_buy_min_samples", "must be at least 3, got %d", c.SyncBuyMinSamples)
	}
	if !(c.SyncBuyVarianceFloor > 0) || math.IsInf(c.SyncBuyVarianceFloor, 0) {
		return riskerr.Configuration("clustering.sync_buy_variance_floor", "must be positive, got %v", c.SyncBuyVarianceFloor)
	}
	if c.ActivityWindow < 0 {
		return riskerr.Configuration("clustering.activity_window", "must not be negative")
	}
	if c.ActivityWindow > 0 && (c.ActivityMinTrades < 1 || c.ActivityMaxTraders < 1) {
		return riskerr.Configuration("clustering.activity", "min_trades and max_traders must be at least 1, got %d / %d",
			c.ActivityMinTrades, c.ActivityMaxTraders)
	}

	w := p.Wash
	if w.CycleLengthLimit < 2 || w.CycleLengthLimit > 8 {
		return riskerr.Configuration("wash.cycle_length_limit", "must be in [2,8], got %d", w.CycleLengthLimit)
	}
	if w.MaxFanOut < 1 {
		return riskerr.Configuration("wash.max_fan_out", "must be at least 1, got %d", w.MaxFanOut)
	}
	if !unitOpen(w.ConservationTolerance) {
		return riskerr.Configuration("wash.conservation_tolerance", "must be in [0,1), got %v", w.ConservationTolerance)
	}
	if !(w.RetentionTolerance > 0 && w.RetentionTolerance <= 1-w.ConservationTolerance) {
		return riskerr.Configuration("wash.retention_tolerance", "must be in (0, 1-conservation_tolerance], got %v", w.RetentionTolerance)
	}
	if !(w.MaterialityThreshold > 0 && w.MaterialityThreshold <= 1) {
		return riskerr.Configuration("wash.materiality_threshold", "must be in (0,1], got %v", w.MaterialityThreshold)
	}
	if w.CycleMaxSpan <= 0 {
		return riskerr.Configuration("wash.cycle_max_span", "must be positive")
	}

	k := p.Concentration
	if k.TopN < 1 {
		return riskerr.Configuration("concentration.top_n", "must be at least 1, got %d", k.TopN)
	}
	if !unitOpen(k.TopHoldersThreshold) || !unitOpen(k.WhaleThreshold) {
		return riskerr.Configuration("concentration", "thresholds must be in [0,1)")
	}

	if err := p.validateScoring(); err != nil {
		return err
	}

	for i, pe := range p.Pools {
		if pe.Mint == "" || pe.LPMint == "" {
			return riskerr.Configuration(fmt.Sprintf("pools[%d]", i), "mint and lp_mint are required")
		}
	}
	return nil
}

func (p *Policy) validateScoring() error {
	s := p.Scoring
	seen := make(map[domain.SignalName]bool)
	for key, w := range s.SignalWeights {
		name, ok := lookupSignal(key)
		if !ok {
			return riskerr.Configuration("scoring.signal_weights", "unknown signal %q", key)
		}
		if !(w >= 0) || math.IsInf(w, 0) {
			return riskerr.Configuration("scoring.signal_weights", "%s weight must be a non-negative number, got %v", name, w)
		}
		seen[name] = true
	}
	for _, name := range domain.AllSignals {
		if !seen[name] {
			return riskerr.Configuration("scoring.signal_weights", "missing weight for %s", name)
		}
	}

	// Unknown penalties stay strictly below the smallest confirmed Unlocked penalty.
	maxFactor := 1 - p.Liquidity.PartialThreshold
	if !(s.UnknownPenaltyFactor >= 0 && s.UnknownPenaltyFactor < maxFactor) {
		return riskerr.Configuration("scoring.unknown_penalty_factor", "must be in [0,%v), got %v", maxFactor, s.UnknownPenaltyFactor)
	}
	for key, f := range s.UnknownPenaltyOverrides {
		if _, ok := lookupSignal(key); !ok {
			return riskerr.Configuration("scoring.unknown_penalty_overrides", "unknown signal %q", key)
		}
		if !(f >= 0 && f < maxFactor) {
			return riskerr.Configuration("scoring.unknown_penalty_overrides", "%s must be in [0,%v), got %v", key, maxFactor, f)
		}
	}
	if s.HighRiskThreshold < 0 || s.HighRiskThreshold > 100 {
		return riskerr.Configuration("scoring.high_risk_threshold", "must be in [0,100], got %d", s.HighRiskThreshold)
	}
	return nil
}

// Weights returns the signal weights keyed by canonical signal name.
func (p *Policy) Weights() map[domain.SignalName]float64 {
	out := make(map[domain.SignalName]float64, len(p.Scoring.SignalWeights))
	for key, w := range p.Scoring.SignalWeights {
		if name, ok := lookupSignal(key); ok {
			out[name] = w
		}
	}
	return out
}

// UnknownFactors returns the per-signal unknown penalty factor.
func (p *Policy) UnknownFactors() map[domain.SignalName]float64 {
	out := make(map[domain.SignalName]float64, len(domain.AllSignals))
	for _, name := range domain.AllSignals {
		out[name] = p.Scoring.UnknownPenaltyFactor
	}
	for key, f := range p.Scoring.UnknownPenaltyOverrides {
		if name, ok := lookupSignal(key); ok {
			out[name] = f
		}
	}
	return out
}

// Pool returns the registry entry for mint.
func (p *Policy) Pool(mint string) (PoolEntry, bool) {
	for _, pe := range p.Pools {
		if pe.Mint == mint {
			return pe, true
		}
	}
	return PoolEntry{}, false
}

// lookupSignal resolves a config key to a signal name. Viper lower-cases map keys.
func lookupSignal(key string) (domain.SignalName, bool) {
	for _, name := range domain.AllSignals {
		if strings.EqualFold(string(name), key) {
			return name, true
		}
	}
	return "", false
}

func unitOpen(v float64) bool {
	return v >= 0 && v < 1
}
