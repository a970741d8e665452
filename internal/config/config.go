package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PushgatewayAddr string
	DataDir         string
	ABIDir          string
	Interval        time.Duration
	ChunkSize       uint64
	RetentionDays   int
	TopN            int
	PGDSN           string
	LogLevel        string
	Chains          map[string]ChainConfig
}

// ChainConfig describes one chain and its scrape targets.
type ChainConfig struct {
	Name      string                    `mapstructure:"name"`
	RPCURL    string                    `mapstructure:"rpc_url"`
	Contracts map[string]ContractConfig `mapstructure:"contracts"`
}

// ContractConfig describes one contract on a chain.
type ContractConfig struct {
	Name        string `mapstructure:"name"`
	Address     string `mapstructure:"address"`
	DeployBlock uint64 `mapstructure:"deploy_block"`
}

// Load merges config file, environment variables, and flags into Config.
// The chain table defaults to the built-in Swarm deployments and can be
// replaced wholesale by a `chains` section in the config file.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HONEYSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("pushgateway", "https://pgw.godfather2.ethswarm.org")
	v.SetDefault("data-dir", "./data")
	v.SetDefault("abi-dir", "./abi")
	v.SetDefault("interval", time.Minute)
	v.SetDefault("chunk-size", uint64(10_000))
	v.SetDefault("retention-days", 30)
	v.SetDefault("top-n", 10)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		PushgatewayAddr: v.GetString("pushgateway"),
		DataDir:         v.GetString("data-dir"),
		ABIDir:          v.GetString("abi-dir"),
		Interval:        v.GetDuration("interval"),
		ChunkSize:       v.GetUint64("chunk-size"),
		RetentionDays:   v.GetInt("retention-days"),
		TopN:            v.GetInt("top-n"),
		PGDSN:           v.GetString("pg-dsn"),
		LogLevel:        v.GetString("log-level"),
		Chains:          DefaultChains(),
	}

	if v.IsSet("chains") {
		chains := make(map[string]ChainConfig)
		if err := v.UnmarshalKey("chains", &chains); err != nil {
			return Config{}, fmt.Errorf("parse chains: %w", err)
		}
		cfg.Chains = chains
	}

	return cfg, nil
}

// DefaultChains returns the built-in Swarm network deployments.
func DefaultChains() map[string]ChainConfig {
	return map[string]ChainConfig{
		"sepolia": {
			Name:   "Sepolia Testnet",
			RPCURL: "https://sep.swarm1.ethswarm.org",
			Contracts: map[string]ContractConfig{
				"bzztoken": {
					Name:    "BzzToken",
					Address: "0x543dDb01Ba47acB11de34891cD86B675F04840db",
				},
				"redistribution": {
					Name:    "Redistribution",
					Address: "0x5b718E36F5Ce2F2F7e25A397040436Ce6af3e89e",
				},
				"postagestamp": {
					Name:    "PostageStamp",
					Address: "0xcdfdC3752caaA826fE62531E0000C40546eC56A6",
				},
				"priceoracle": {
					Name:    "PriceOracle",
					Address: "0x95Dc18380e92C13E4F8a4e94C99FB1b97250174B",
				},
				"staking": {
					Name:    "Staking",
					Address: "0xEEF13Ef9eD9cDD169701eeF3cd832df298dD1bB4",
				},
			},
		},
		"gnosis": {
			Name:   "Gnosis Chain",
			RPCURL: "https://gno.prod.ethswarm.org",
			Contracts: map[string]ContractConfig{
				"bzztoken": {
					Name:    "BzzToken",
					Address: "0xdBF3Ea6F5beE45c02255B2c26a16F300502F68da",
				},
				"redistribution": {
					Name:    "Redistribution",
					Address: "0x5069cdfB3D9E56d23B1cAeE83CE6109A7E4fd62d",
				},
				"priceoracle": {
					Name:    "PriceOracle",
					Address: "0x47EeF336e7fE5bED98499A4696bce8f28c1B0a8b",
				},
				"postagestamp": {
					Name:    "PostageStamp",
					Address: "0x45a1502382541Cd610CC9068e88727426b696293",
				},
				"staking": {
					Name:    "Staking",
					Address: "0xda2a16EE889E7F04980A8d597b48c8D51B9518F4",
				},
			},
		},
	}
}

// Retention converts the configured retention days into a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
