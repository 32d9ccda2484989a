package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/nft-deployer/internal/config"
	"github.com/Bidon15/nft-deployer/internal/contracts"
	"github.com/Bidon15/nft-deployer/internal/deploy"
)

const (
	testKey      = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testDeployer = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return stdout.String(), err
}

func TestAccountsCommand(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NFTDEPLOY_PRIVATE_KEY", testKey)

	out, err := runCLI(t, "accounts", "--network", "localhost")
	require.NoError(t, err)
	assert.Equal(t, testDeployer, strings.TrimSpace(out))
}

func TestAccountsCommand_MissingKey(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NFTDEPLOY_PRIVATE_KEY", "")

	_, err := runCLI(t, "accounts", "--network", "localhost")
	assert.ErrorIs(t, err, deploy.ErrConfiguration)
}

func TestDeployCommand_FailsBeforeAnyTransaction(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("NFTDEPLOY_PRIVATE_KEY", testKey)
	report := filepath.Join(dir, "report.json")
	metrics := filepath.Join(dir, "nftdeploy.prom")

	_, err := runCLI(t, "deploy",
		"--network", "localhost",
		"--rpc-url", "http://127.0.0.1:1",
		"--artifacts-dir", filepath.Join(dir, "missing"),
		"--out", report,
		"--metrics-file", metrics,
		"--log-level", "error",
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, deploy.ErrConfiguration)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var result deploy.RunResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.False(t, result.Success)
	assert.Empty(t, result.Steps)
	assert.Equal(t, "localhost", result.Network)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "nftdeploy_last_run_success 0")
}

func TestPlanParams(t *testing.T) {
	cfg := &config.Config{
		Token:  config.TokenConfig{Name: "NFTA", Symbol: "NTA", URI: "URI_ERCA"},
		Market: config.MarketConfig{Price: "10000", FeeNumerator: "10", FeeDenominator: "50"},
		Mint:   config.MintConfig{Role: "MINTER_ROLE", EnableMinting: true, Quantity: 10, ValuePerUnit: "10"},
	}

	p, err := planParams(cfg)
	require.NoError(t, err)

	def := deploy.DefaultPlanParams()
	assert.Equal(t, def.Role, p.Role)
	assert.Equal(t, 0, def.MarketPrice.Cmp(p.MarketPrice))
	assert.Equal(t, 0, def.FeeDenominator.Cmp(p.FeeDenominator))
	assert.Equal(t, 0, def.MintValuePerUnit.Cmp(p.MintValuePerUnit))
	assert.Equal(t, def.MintQuantity, p.MintQuantity)

	cfg.Mint.Role = contracts.MinterRole.Hex()
	p, err = planParams(cfg)
	require.NoError(t, err)
	assert.Equal(t, contracts.MinterRole, p.Role)

	cfg.Market.Price = "lots"
	_, err = planParams(cfg)
	assert.ErrorContains(t, err, "market.price")
}

// chdir changes the working directory for the duration of the test,
// restoring the original directory on cleanup (equivalent to t.Chdir).
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatal(err)
		}
	})
}
