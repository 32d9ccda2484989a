// Package config provides configuration loading for the NFT deployer.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "NFTDEPLOY"

// Config holds all configuration for a deployment run.
type Config struct {
	Network          string        `mapstructure:"network" validate:"required"`
	RPCURL           string        `mapstructure:"rpc_url" validate:"required,url"`
	ChainID          int64         `mapstructure:"chain_id" validate:"gt=0"`
	PrivateKey       string        `mapstructure:"private_key" validate:"required"`
	AlchemyProjectID string        `mapstructure:"alchemy_project_id"`
	InfuraProjectID  string        `mapstructure:"infura_project_id"`
	ArtifactsDir     string        `mapstructure:"artifacts_dir" validate:"required"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout" validate:"gt=0"`
	PollInterval     time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MetricsFile      string        `mapstructure:"metrics_file"`

	Gas    GasConfig    `mapstructure:"gas"`
	Token  TokenConfig  `mapstructure:"token"`
	Market MarketConfig `mapstructure:"market"`
	Mint   MintConfig   `mapstructure:"mint"`
}

// GasConfig holds gas settings. Amounts are decimal wei strings.
type GasConfig struct {
	// Price and Limit apply to every step except the mint. Empty/zero means
	// suggested by the network and estimated.
	Price string `mapstructure:"price" validate:"omitempty,number"`
	Limit uint64 `mapstructure:"limit"`

	// Mint gas envelope.
	DefaultPrice string        `mapstructure:"default_price" validate:"required,number"`
	MintLimit    uint64        `mapstructure:"mint_limit" validate:"gt=0"`
	PriceRPCURL  string        `mapstructure:"price_rpc_url" validate:"omitempty,url"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
}

// TokenConfig holds the token constructor arguments.
type TokenConfig struct {
	Name   string `mapstructure:"name" validate:"required"`
	Symbol string `mapstructure:"symbol" validate:"required"`
	URI    string `mapstructure:"uri"`
}

// MarketConfig holds the marketplace constructor arguments.
type MarketConfig struct {
	Price          string `mapstructure:"price" validate:"required,number"`
	FeeNumerator   string `mapstructure:"fee_numerator" validate:"required,number"`
	FeeDenominator string `mapstructure:"fee_denominator" validate:"required,number"`
}

// MintConfig holds the post-deployment wiring and initial mint.
type MintConfig struct {
	// Role is a role name or a 0x-prefixed 32-byte identifier.
	Role          string `mapstructure:"role" validate:"required"`
	EnableMinting bool   `mapstructure:"enable_minting"`
	Quantity      uint64 `mapstructure:"quantity" validate:"gt=0"`
	ValuePerUnit  string `mapstructure:"value_per_unit" validate:"required,number"`
}

// NetworkPreset holds the known settings of a named network.
type NetworkPreset struct {
	ChainID int64
	// URL builds the RPC endpoint from provider project IDs.
	URL      func(c *Config) string
	GasLimit uint64
	GasPrice string
}

// Networks are the named networks selectable with `network`.
var Networks = map[string]NetworkPreset{
	"localhost": {
		ChainID: 31337,
		URL:     func(*Config) string { return "http://127.0.0.1:8545" },
	},
	"rinkeby": {
		ChainID: 4,
		URL: func(c *Config) string {
			return "https://eth-rinkeby.alchemyapi.io/v2/" + c.AlchemyProjectID
		},
	},
	"ropsten": {
		ChainID: 3,
		URL: func(c *Config) string {
			return "https://eth-ropsten.alchemyapi.io/v2/" + c.AlchemyProjectID
		},
		GasLimit: 2_100_000,
		GasPrice: "8000000000",
	},
	"mainnet": {
		ChainID: 1,
		URL: func(c *Config) string {
			return "https://mainnet.infura.io/v3/" + c.InfuraProjectID
		},
		GasLimit: 2_100_000,
		GasPrice: "8000000000",
	},
}

// NetworkNames returns the preset names in sorted order.
func NetworkNames() []string {
	names := make([]string, 0, len(Networks))
	for name := range Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"network":       "network",
	"rpc-url":       "rpc_url",
	"chain-id":      "chain_id",
	"artifacts-dir": "artifacts_dir",
	"metrics-file":  "metrics_file",
}

// Load reads configuration from an optional file, environment variables and
// any flags in flags that were set on the command line. path may be empty, in
// which case nft-deployer.yaml is searched for in the working directory.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nft-deployer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Secrets also accept the hardhat .env variable names.
	v.BindEnv("private_key", "NFTDEPLOY_PRIVATE_KEY", "private_key2")
	v.BindEnv("alchemy_project_id", "NFTDEPLOY_ALCHEMY_PROJECT_ID", "alchemy_project_id")
	v.BindEnv("infura_project_id", "NFTDEPLOY_INFURA_PROJECT_ID", "infura_project_id")

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyPreset(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "rinkeby")
	v.SetDefault("rpc_url", "")
	v.SetDefault("chain_id", 0)
	v.SetDefault("metrics_file", "")
	v.SetDefault("artifacts_dir", "artifacts")
	v.SetDefault("confirm_timeout", "5m")
	v.SetDefault("poll_interval", "2s")

	// Step gas: empty means network preset, else suggested and estimated
	v.SetDefault("gas.price", "")
	v.SetDefault("gas.limit", 0)

	// Mint gas defaults
	v.SetDefault("gas.price_rpc_url", "")
	v.SetDefault("gas.default_price", "16000000")
	v.SetDefault("gas.mint_limit", 1_600_000)
	v.SetDefault("gas.query_timeout", "10s")

	// Token: NonFungibleToken(name, symbol, uri)
	v.SetDefault("token.name", "NFTA")
	v.SetDefault("token.symbol", "NTA")
	v.SetDefault("token.uri", "URI_ERCA")

	// Marketplace: NFT_Market(token, price, feeNumerator, feeDenominator)
	v.SetDefault("market.price", "10000")
	v.SetDefault("market.fee_numerator", "10")
	v.SetDefault("market.fee_denominator", "50")

	// Initial mint
	v.SetDefault("mint.role", "MINTER_ROLE")
	v.SetDefault("mint.enable_minting", true)
	v.SetDefault("mint.quantity", 10)
	v.SetDefault("mint.value_per_unit", "10")
}

// applyPreset fills the RPC URL, chain ID and step gas from the named
// network. Explicit settings win.
func (c *Config) applyPreset() error {
	preset, ok := Networks[c.Network]
	if !ok {
		if c.RPCURL == "" || c.ChainID == 0 {
			return fmt.Errorf("unknown network %q: set rpc_url and chain_id or use one of %s",
				c.Network, strings.Join(NetworkNames(), ", "))
		}
		return nil
	}

	if c.RPCURL == "" {
		c.RPCURL = preset.URL(c)
	}
	if c.ChainID == 0 {
		c.ChainID = preset.ChainID
	}
	if c.Gas.Price == "" && preset.GasPrice != "" {
		c.Gas.Price = preset.GasPrice
	}
	if c.Gas.Limit == 0 && preset.GasLimit != 0 {
		c.Gas.Limit = preset.GasLimit
	}
	return nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if preset, ok := Networks[c.Network]; ok && c.RPCURL == preset.URL(c) && strings.HasSuffix(c.RPCURL, "/") {
		return fmt.Errorf("invalid config: network %s needs a provider project id", c.Network)
	}
	return nil
}

// Wei parses a decimal wei amount. Empty strings parse as nil.
func Wei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return n, nil
}
