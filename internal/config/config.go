// Package config defines all configuration for the binaryedge evaluation
// engine. Config is loaded from a YAML file (default: configs/config.yaml)
// with every key in spec.md §6's exhaustive table overridable via
// environment variables, exactly the way the teacher's own config package
// wires viper.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure. Besides the environment-overridable keys bound in bindEnv, it
// carries YAML-only settings: feed and REST endpoints, pre-wake timing,
// estimator windows and sample counts, the stale-feed window, and the API
// server.
type Config struct {
	DryRun  bool          `mapstructure:"dry_run"`
	Market  MarketConfig  `mapstructure:"market"`
	Oracle  OracleConfig  `mapstructure:"oracle"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Strategy StrategyTogglesConfig `mapstructure:"strategy"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	API     APIConfig     `mapstructure:"api"`
}

// WalletConfig holds the signing key and L2 API credentials the order
// gateway uses to submit signed orders to the venue CLOB (spec.md §4.9,
// marked an out-of-scope internal but still needing a real seam).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`    // WALLET_PRIVATE_KEY
	FunderAddress string `mapstructure:"funder_address"` // WALLET_FUNDER_ADDRESS
	ChainID       int64  `mapstructure:"chain_id"`       // WALLET_CHAIN_ID
	ApiKey        string `mapstructure:"api_key"`        // CLOB_API_KEY
	Secret        string `mapstructure:"api_secret"`     // CLOB_API_SECRET
	Passphrase    string `mapstructure:"api_passphrase"` // CLOB_API_PASSPHRASE
	CLOBBaseURL   string `mapstructure:"clob_base_url"`  // CLOB_BASE_URL
}

// MarketConfig identifies the market series this process trades (spec.md
// §6: ASSET, INTERVAL) plus the REST endpoints the discovery/gateway/feed
// collaborators talk to.
type MarketConfig struct {
	Asset            string `mapstructure:"asset"`
	Interval         string `mapstructure:"interval"`
	OracleWSURL      string `mapstructure:"oracle_ws_url"`
	VenueWSURL       string `mapstructure:"venue_ws_url"`
	VenueRESTURL     string `mapstructure:"venue_rest_url"`
	OracleRESTURL    string `mapstructure:"oracle_rest_url"`
	GammaBaseURL     string `mapstructure:"gamma_base_url"`
	PreWakeShortSecs int    `mapstructure:"pre_wake_short_secs"`
	PreWakeLongSecs  int    `mapstructure:"pre_wake_long_secs"`
	ShortWindowSecs  int    `mapstructure:"short_window_secs"`
}

// OracleConfig tunes the numeric kernels of spec.md §4.1.
type OracleConfig struct {
	DeltaS           float64 `mapstructure:"delta_s"`            // ORACLE_DELTA_S
	Beta             float64 `mapstructure:"beta"`               // price basis, YAML-only (not in the env table)
	EWMALambda       float64 `mapstructure:"ewma_lambda"`        // EWMA_LAMBDA
	SigmaFloorAnnual float64 `mapstructure:"sigma_floor_annual"` // SIGMA_FLOOR_ANNUAL
	MinSamples       int     `mapstructure:"min_samples"`
	WarmupSamples    int     `mapstructure:"warmup_samples"`
	VWAPWindowSecs   int     `mapstructure:"vwap_window_secs"`
	RegimeWindowSecs int     `mapstructure:"regime_window_secs"`
}

// RiskConfig is the portfolio-level risk table of spec.md §4.6.
type RiskConfig struct {
	BankrollUSD      float64 `mapstructure:"bankroll_usd"`       // BANKROLL
	MaxExposureFrac  float64 `mapstructure:"max_exposure_frac"`  // MAX_EXPOSURE_FRAC
	DailyLossHalt    float64 `mapstructure:"daily_loss_halt"`    // DAILY_LOSS_HALT
	WeeklyLossHalt   float64 `mapstructure:"weekly_loss_halt"`   // WEEKLY_LOSS_HALT
	StaleFeedMs      int64   `mapstructure:"stale_feed_ms"`
}

// StrategyTogglesConfig maps STRAT_<NAME> boolean env toggles onto a
// strategy-ID keyed map (spec.md §6: recognized values {"1","true"} enable,
// {"0","false"} disable).
type StrategyTogglesConfig struct {
	LatencyArb      bool `mapstructure:"latency_arb"`
	CertaintyCap    bool `mapstructure:"certainty_capture"`
	ConvexityFade   bool `mapstructure:"convexity_fade"`
	StrikeMisalign  bool `mapstructure:"strike_misalign"`
	LPExtreme       bool `mapstructure:"lp_extreme"`
	CrossTimeframe  bool `mapstructure:"cross_timeframe_rv"`
}

// LoggingConfig picks slog's handler and level (ambient, SPEC_FULL.md §1).
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // LOG_LEVEL
	Format string `mapstructure:"format"` // LOG_FORMAT: "json" or "text"
}

// MetricsConfig enables the prometheus diagnostics exporter (ambient,
// SPEC_FULL.md §4 supplement).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"` // METRICS_ENABLED
	Port    int  `mapstructure:"port"`    // METRICS_PORT
}

// LedgerConfig points at the sqlite-backed PnL/fill persistence file
// (ambient, SPEC_FULL.md §4 supplement).
type LedgerConfig struct {
	Path string `mapstructure:"path"` // LEDGER_PATH
}

// APIConfig enables the read-only HTTP snapshot server.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads configuration from path, merges environment variable
// overrides and applies defaults. It does not validate the result; callers
// run Validate on it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dry_run", true)
	v.SetDefault("market.pre_wake_short_secs", 10)
	v.SetDefault("market.pre_wake_long_secs", 30)
	v.SetDefault("market.short_window_secs", 900) // windows <= 15min use the short pre-wake
	v.SetDefault("oracle.delta_s", 2.0)
	v.SetDefault("oracle.beta", 0.0)
	v.SetDefault("oracle.ewma_lambda", 0.94)
	v.SetDefault("oracle.sigma_floor_annual", 0.30)
	v.SetDefault("oracle.min_samples", 10)
	v.SetDefault("oracle.warmup_samples", 10)
	v.SetDefault("oracle.vwap_window_secs", 60)
	v.SetDefault("oracle.regime_window_secs", 30)
	v.SetDefault("risk.bankroll_usd", 10000.0)
	v.SetDefault("risk.max_exposure_frac", 0.15)
	v.SetDefault("risk.daily_loss_halt", -0.03)
	v.SetDefault("risk.weekly_loss_halt", -0.08)
	v.SetDefault("risk.stale_feed_ms", 5000)
	v.SetDefault("strategy.latency_arb", true)
	v.SetDefault("strategy.certainty_capture", true)
	v.SetDefault("strategy.convexity_fade", true)
	v.SetDefault("strategy.strike_misalign", true)
	v.SetDefault("strategy.lp_extreme", true)
	v.SetDefault("strategy.cross_timeframe_rv", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("ledger.path", "binaryedge.db")
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.port", 8090)
	v.SetDefault("wallet.chain_id", 137)
	v.SetDefault("wallet.clob_base_url", "https://clob.polymarket.com")
}

// bindEnv wires the exact environment variable names spec.md §6 names,
// since the default dot-to-underscore replacer would otherwise produce
// DRY_RUN, BANKROLL, etc. under different nesting than the table specifies.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("dry_run", "DRY_RUN")
	_ = v.BindEnv("risk.bankroll_usd", "BANKROLL")
	_ = v.BindEnv("market.asset", "ASSET")
	_ = v.BindEnv("market.interval", "INTERVAL")
	_ = v.BindEnv("oracle.delta_s", "ORACLE_DELTA_S")
	_ = v.BindEnv("oracle.ewma_lambda", "EWMA_LAMBDA")
	_ = v.BindEnv("oracle.sigma_floor_annual", "SIGMA_FLOOR_ANNUAL")
	_ = v.BindEnv("risk.max_exposure_frac", "MAX_EXPOSURE_FRAC")
	_ = v.BindEnv("risk.daily_loss_halt", "DAILY_LOSS_HALT")
	_ = v.BindEnv("risk.weekly_loss_halt", "WEEKLY_LOSS_HALT")
	_ = v.BindEnv("strategy.latency_arb", "STRAT_LATENCY_ARB")
	_ = v.BindEnv("strategy.certainty_capture", "STRAT_CERTAINTY_CAPTURE")
	_ = v.BindEnv("strategy.convexity_fade", "STRAT_CONVEXITY_FADE")
	_ = v.BindEnv("strategy.strike_misalign", "STRAT_STRIKE_MISALIGN")
	_ = v.BindEnv("strategy.lp_extreme", "STRAT_LP_EXTREME")
	_ = v.BindEnv("strategy.cross_timeframe_rv", "STRAT_CROSS_TIMEFRAME_RV")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("metrics.enabled", "METRICS_ENABLED")
	_ = v.BindEnv("metrics.port", "METRICS_PORT")
	_ = v.BindEnv("ledger.path", "LEDGER_PATH")
	_ = v.BindEnv("wallet.private_key", "WALLET_PRIVATE_KEY")
	_ = v.BindEnv("wallet.funder_address", "WALLET_FUNDER_ADDRESS")
	_ = v.BindEnv("wallet.chain_id", "WALLET_CHAIN_ID")
	_ = v.BindEnv("wallet.api_key", "CLOB_API_KEY")
	_ = v.BindEnv("wallet.api_secret", "CLOB_API_SECRET")
	_ = v.BindEnv("wallet.api_passphrase", "CLOB_API_PASSPHRASE")
	_ = v.BindEnv("wallet.clob_base_url", "CLOB_BASE_URL")
}

// Validate sanity-checks the loaded config before the engine starts.
func (c *Config) Validate() error {
	if c.Risk.BankrollUSD <= 0 {
		return fmt.Errorf("risk.bankroll_usd must be positive")
	}
	if c.Risk.MaxExposureFrac <= 0 || c.Risk.MaxExposureFrac > 1 {
		return fmt.Errorf("risk.max_exposure_frac must be in (0, 1]")
	}
	if c.Oracle.EWMALambda <= 0 || c.Oracle.EWMALambda >= 1 {
		return fmt.Errorf("oracle.ewma_lambda must be in (0, 1)")
	}
	if c.Market.Asset == "" {
		return fmt.Errorf("market.asset is required")
	}
	return nil
}

// SigmaFloorPerSec converts the configured annualized sigma floor into the
// per-second equivalent used by internal/quant's EWMA estimator, per
// spec.md §3: SIGMA_FLOOR_ANNUAL / sqrt(seconds_per_year).
func (c *Config) SigmaFloorPerSec() float64 {
	const secondsPerYear = 365.25 * 24 * 3600
	return c.Oracle.SigmaFloorAnnual / math.Sqrt(secondsPerYear)
}
