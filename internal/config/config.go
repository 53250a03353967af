package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Program constants for the incentive program on Arbitrum One. The
// flags default to these so a plain invocation audits the real
// program; tests and forks can override any of them.
const (
	DefaultRPCURL = "https://arb1.arbitrum.io/rpc"

	DefaultTreasury         = "0x04e334ff13c71488094e24f4fab53a8fafe2f9bb"
	DefaultTicketBroker     = "0xa8bb618b1520e284046f3dfc448851a1ff26e41b"
	DefaultGatewaySender    = "0x8a8053c21696f27ed305a03bd1efc5d068d91d0e"
	DefaultBackendWallet    = "0x0c7ca5da3b10fa345c5713c5a14479a3af65ac37"
	DefaultLateTicketSender = "0xf2f5fccddf50c9e86c1bb171c07041ff0c612f2d"
	DefaultTestingWallet    = "0xa03113bab8d4ebe5695591f60011741233e8b82f"
	DefaultSafeWallet       = "0xc34b3753c164fbc3fc066fc1a46b3eee8adb33e6"
	DefaultRouter           = "0x2905d7e4d048d29954f81b02171dd313f457a4a4"

	DefaultLPTToken   = "0x289ba1701c2f088cf0faf8b3705246331cb8a839"
	DefaultUSDCToken  = "0xaf88d065e77c8cc2239327c5edb3a432268e5831"
	DefaultUSDCEToken = "0xff970a61a04b1ca14834a43f5de4533ebddb5cc8"
	DefaultWETHToken  = "0x82af49447d8a07e3bd95bd0d56f35241523fbab1"

	DefaultGatewayStartBlock = uint64(337_000_000)
	DefaultDocSnapshotUTC    = "2025-11-07T23:59:59Z"
	DefaultConversionDate    = "2025-08-29"
)

// DefaultManualTicketTxs, DefaultDec31TicketTxs, and
// DefaultJan22TicketTxs are redemption transactions settled outside
// the gateway sender's normal flow.
var (
	DefaultManualTicketTxs = []string{
		"0x21378158d6bf9602fbffa0c296ef509aa30c2718f5ac91c781af8d9afa78ee89",
	}
	DefaultDec31TicketTxs = []string{
		"0x7f1fe966e79a4123309c1bc292a31e3f53a2bd4b60140eb26a8be34bd7f03281",
		"0x4a6ec583e2eb6d96b55cf569df5c721728852993a6b86b7a025d05755d2bdfa2",
		"0x7a5f0413c7791b67d6a36e12d5bf976001945b8a520cbb5a9cd7932861d39719",
	}
	DefaultJan22TicketTxs = []string{
		"0xbe47de7eb060393386b9edfd8aec9e2f02ec0fe6931e2df7faa205bc700459bf",
		"0x2ab0fb8b9009821c6173803e661376ce93db665d660a0b9fd5e9fd88ca68c463",
		"0xbefc71900f41af96674643d1bf807f5d6bae7ba6eb5a20012b9da19b75fec868",
	}
)

// Common holds configuration shared by every verifier subcommand.
type Common struct {
	RPCURL       string
	ChunkSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
	PGDSN        string
	SnapshotPath string
	AsOfDate     string
	OutDir       string
}

// PayoutsConfig configures the payouts subcommand.
type PayoutsConfig struct {
	Common

	TicketBroker      string
	GatewaySender     string
	BackendWallet     string
	LateTicketSender  string
	GatewayStartBlock uint64

	ManualTicketTxs []string
	Dec31TicketTxs  []string
	Jan22TicketTxs  []string

	Phase3CSV string
}

// FundingConfig configures the funding subcommand.
type FundingConfig struct {
	Common

	Gateway       string
	Treasury      string
	TestingWallet string
	SafeWallet    string
	Router        string

	LPTToken  string
	USDCToken string
	WETHToken string

	TestingReturnsCSV string
	SafeExecCSV       string
	SafeLPTCSV        string
	DisbursementsJSON string
	ConversionsCSV    string
	ConversionDate    string
}

// TreasuryConfig configures the treasury subcommand.
type TreasuryConfig struct {
	Common

	Treasury       string
	USDCToken      string
	USDCEToken     string
	FromBlock      uint64
	DocSnapshotUTC string
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDITPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", DefaultRPCURL)
	v.SetDefault("chunk-size", uint64(10_000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("out-dir", "./out")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func commonFrom(v *viper.Viper) Common {
	return Common{
		RPCURL:       v.GetString("rpc"),
		ChunkSize:    v.GetUint64("chunk-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
		PGDSN:        v.GetString("pg-dsn"),
		SnapshotPath: v.GetString("snapshot"),
		AsOfDate:     v.GetString("as-of-date"),
		OutDir:       v.GetString("out-dir"),
	}
}

// LoadPayouts merges config file, environment variables, and flags
// into PayoutsConfig.
func LoadPayouts(cfgFile string, flags *pflag.FlagSet) (PayoutsConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return PayoutsConfig{}, err
	}

	v.SetDefault("ticket-broker", DefaultTicketBroker)
	v.SetDefault("gateway-sender", DefaultGatewaySender)
	v.SetDefault("backend-wallet", DefaultBackendWallet)
	v.SetDefault("late-ticket-sender", DefaultLateTicketSender)
	v.SetDefault("gateway-start-block", DefaultGatewayStartBlock)
	v.SetDefault("manual-ticket-txs", DefaultManualTicketTxs)
	v.SetDefault("dec31-ticket-txs", DefaultDec31TicketTxs)
	v.SetDefault("jan22-ticket-txs", DefaultJan22TicketTxs)

	cfg := PayoutsConfig{
		Common:            commonFrom(v),
		TicketBroker:      v.GetString("ticket-broker"),
		GatewaySender:     v.GetString("gateway-sender"),
		BackendWallet:     v.GetString("backend-wallet"),
		LateTicketSender:  v.GetString("late-ticket-sender"),
		GatewayStartBlock: v.GetUint64("gateway-start-block"),
		ManualTicketTxs:   getStringSlice(v, "manual-ticket-txs"),
		Dec31TicketTxs:    getStringSlice(v, "dec31-ticket-txs"),
		Jan22TicketTxs:    getStringSlice(v, "jan22-ticket-txs"),
		Phase3CSV:         v.GetString("phase3-csv"),
	}
	if cfg.Phase3CSV == "" {
		return PayoutsConfig{}, fmt.Errorf("phase3-csv is required")
	}
	return cfg, nil
}

// LoadFunding merges config file, environment variables, and flags
// into FundingConfig.
func LoadFunding(cfgFile string, flags *pflag.FlagSet) (FundingConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return FundingConfig{}, err
	}

	v.SetDefault("gateway", DefaultGatewaySender)
	v.SetDefault("treasury", DefaultTreasury)
	v.SetDefault("testing-wallet", DefaultTestingWallet)
	v.SetDefault("safe-wallet", DefaultSafeWallet)
	v.SetDefault("router", DefaultRouter)
	v.SetDefault("lpt-token", DefaultLPTToken)
	v.SetDefault("usdc-token", DefaultUSDCToken)
	v.SetDefault("weth-token", DefaultWETHToken)
	v.SetDefault("conversion-date", DefaultConversionDate)

	cfg := FundingConfig{
		Common:            commonFrom(v),
		Gateway:           v.GetString("gateway"),
		Treasury:          v.GetString("treasury"),
		TestingWallet:     v.GetString("testing-wallet"),
		SafeWallet:        v.GetString("safe-wallet"),
		Router:            v.GetString("router"),
		LPTToken:          v.GetString("lpt-token"),
		USDCToken:         v.GetString("usdc-token"),
		WETHToken:         v.GetString("weth-token"),
		TestingReturnsCSV: v.GetString("testing-returns-csv"),
		SafeExecCSV:       v.GetString("safe-exec-csv"),
		SafeLPTCSV:        v.GetString("safe-lpt-csv"),
		DisbursementsJSON: v.GetString("disbursements-json"),
		ConversionsCSV:    v.GetString("conversions-csv"),
		ConversionDate:    v.GetString("conversion-date"),
	}

	for name, value := range map[string]string{
		"testing-returns-csv": cfg.TestingReturnsCSV,
		"safe-exec-csv":       cfg.SafeExecCSV,
		"safe-lpt-csv":        cfg.SafeLPTCSV,
		"disbursements-json":  cfg.DisbursementsJSON,
		"conversions-csv":     cfg.ConversionsCSV,
	} {
		if value == "" {
			return FundingConfig{}, fmt.Errorf("%s is required", name)
		}
	}
	return cfg, nil
}

// LoadTreasury merges config file, environment variables, and flags
// into TreasuryConfig.
func LoadTreasury(cfgFile string, flags *pflag.FlagSet) (TreasuryConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return TreasuryConfig{}, err
	}

	v.SetDefault("treasury", DefaultTreasury)
	v.SetDefault("usdc-token", DefaultUSDCToken)
	v.SetDefault("usdce-token", DefaultUSDCEToken)
	v.SetDefault("doc-snapshot-utc", DefaultDocSnapshotUTC)

	cfg := TreasuryConfig{
		Common:         commonFrom(v),
		Treasury:       v.GetString("treasury"),
		USDCToken:      v.GetString("usdc-token"),
		USDCEToken:     v.GetString("usdce-token"),
		FromBlock:      v.GetUint64("from-block"),
		DocSnapshotUTC: v.GetString("doc-snapshot-utc"),
	}
	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
