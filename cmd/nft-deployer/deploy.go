package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Bidon15/nft-deployer/internal/config"
	"github.com/Bidon15/nft-deployer/internal/contracts"
	"github.com/Bidon15/nft-deployer/internal/deploy"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the full deployment",
	Long: `Deploy the token and marketplace, grant the marketplace the minter role,
enable minting and submit the initial mint.

The run stops at the first failed step. Steps already confirmed are not undone;
the JSON report lists every confirmed deployment so it can be inspected or reused.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().String("out", "", "write the JSON report to this file instead of stdout")
	deployCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return &deploy.ConfigurationError{Err: err}
	}

	out, _ := cmd.Flags().GetString("out")
	reg := prometheus.NewRegistry()

	result, runErr := execute(cmd.Context(), cfg, logger, deploy.NewMetrics(reg))

	if result != nil {
		if err := writeReport(cmd.OutOrStdout(), out, result); err != nil {
			logger.Error("failed to write report", slog.String("error", err.Error()))
		}
	}
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			logger.Error("failed to write metrics", slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		logger.Error("deployment failed", slog.String("error", runErr.Error()))
		return runErr
	}
	return nil
}

// execute wires the deployer from cfg and runs the default plan.
func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *deploy.Metrics) (*deploy.RunResult, error) {
	params, err := planParams(cfg)
	if err != nil {
		return nil, &deploy.ConfigurationError{Err: err}
	}
	stepGasPrice, err := config.Wei(cfg.Gas.Price)
	if err != nil {
		return nil, &deploy.ConfigurationError{Field: "gas.price", Err: err}
	}
	defaultGasPrice, err := config.Wei(cfg.Gas.DefaultPrice)
	if err != nil {
		return nil, &deploy.ConfigurationError{Field: "gas.default_price", Err: err}
	}

	signer, err := deploy.NewLocalSigner(cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		return nil, &deploy.ConfigurationError{Field: "private_key", Err: err}
	}

	network, err := deploy.DialNetwork(ctx, cfg.RPCURL)
	if err != nil {
		return nil, &deploy.ConfigurationError{Field: "rpc_url", Err: err}
	}
	defer network.Close()

	var priceSource deploy.PriceSource = network
	if cfg.Gas.PriceRPCURL != "" {
		priceNetwork, err := deploy.DialNetwork(ctx, cfg.Gas.PriceRPCURL)
		if err != nil {
			// the mint falls back to the default price
			logger.Warn("gas price endpoint unavailable", slog.String("error", err.Error()))
			priceSource = nil
		} else {
			defer priceNetwork.Close()
			priceSource = priceNetwork
		}
	}

	submitter := deploy.NewSubmitter(network, signer, deploy.SubmitterConfig{
		GasPrice:       stepGasPrice,
		GasLimit:       cfg.Gas.Limit,
		ConfirmTimeout: cfg.ConfirmTimeout,
		PollInterval:   cfg.PollInterval,
		Logger:         logger,
	})
	gas := deploy.NewGasPriceResolver(priceSource, deploy.GasResolverConfig{
		DefaultPrice: defaultGasPrice,
		Limit:        cfg.Gas.MintLimit,
		QueryTimeout: cfg.Gas.QueryTimeout,
		Logger:       logger,
		Metrics:      metrics,
	})
	orchestrator := deploy.NewOrchestrator(network, signer, contracts.NewStore(cfg.ArtifactsDir), submitter, gas,
		deploy.OrchestratorConfig{
			NetworkName: cfg.Network,
			Logger:      logger,
			Metrics:     metrics,
		})

	return orchestrator.Run(ctx, deploy.DefaultPlan(params))
}

// planParams converts the token, market and mint settings.
func planParams(cfg *config.Config) (deploy.PlanParams, error) {
	p := deploy.PlanParams{
		TokenName:      cfg.Token.Name,
		TokenSymbol:    cfg.Token.Symbol,
		TokenURI:       cfg.Token.URI,
		MintingEnabled: cfg.Mint.EnableMinting,
		MintQuantity:   cfg.Mint.Quantity,
	}

	role, err := contracts.ParseRoleID(cfg.Mint.Role)
	if err != nil {
		return p, fmt.Errorf("mint.role: %w", err)
	}
	p.Role = role

	amounts := []struct {
		key   string
		value string
		dst   **big.Int
	}{
		{"market.price", cfg.Market.Price, &p.MarketPrice},
		{"market.fee_numerator", cfg.Market.FeeNumerator, &p.FeeNumerator},
		{"market.fee_denominator", cfg.Market.FeeDenominator, &p.FeeDenominator},
		{"mint.value_per_unit", cfg.Mint.ValuePerUnit, &p.MintValuePerUnit},
	}
	for _, a := range amounts {
		n, err := config.Wei(a.value)
		if err != nil {
			return p, fmt.Errorf("%s: %w", a.key, err)
		}
		if n == nil {
			return p, fmt.Errorf("%s: required", a.key)
		}
		*a.dst = n
	}
	return p, nil
}

func writeReport(stdout io.Writer, path string, result *deploy.RunResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
