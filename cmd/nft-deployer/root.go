package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Bidon15/nft-deployer/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "nft-deployer",
	Short: "Deploy the NFT token and marketplace contracts",
	Long: `Deploy NonFungibleToken and NFT_Market, grant the marketplace the minter role,
enable minting and submit the initial mint, one confirmed transaction at a time.

Configuration is read from nft-deployer.yaml (or --config), NFTDEPLOY_* environment
variables and the flags below. Known networks: ` + strings.Join(config.NetworkNames(), ", ") + `.

Examples:
  # Deploy to a local anvil/hardhat node
  NFTDEPLOY_PRIVATE_KEY=... nft-deployer deploy --network localhost

  # Deploy to ropsten with the report written to a file
  nft-deployer deploy --network ropsten --out deployment.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default ./nft-deployer.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("network", "", "network preset ("+strings.Join(config.NetworkNames(), ", ")+")")
	pf.String("rpc-url", "", "RPC endpoint (overrides the network preset)")
	pf.Int64("chain-id", 0, "expected chain ID (overrides the network preset)")
	pf.String("artifacts-dir", "", "hardhat artifacts directory")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(accountsCmd)
}

// loadConfig loads and validates configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger on w.
func newLogger(cmd *cobra.Command, w io.Writer) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", levelName)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}
}
