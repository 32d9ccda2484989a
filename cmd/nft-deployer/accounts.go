package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/nft-deployer/internal/deploy"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Print the deployer account",
	Long: `Print the address derived from the configured private key.

With --balance the account balance on the configured network is printed too.`,
	RunE: runAccounts,
}

func init() {
	accountsCmd.Flags().Bool("balance", false, "also query the account balance (wei)")
}

func runAccounts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return &deploy.ConfigurationError{Err: err}
	}

	signer, err := deploy.NewLocalSigner(cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		return &deploy.ConfigurationError{Field: "private_key", Err: err}
	}

	withBalance, _ := cmd.Flags().GetBool("balance")
	if !withBalance {
		fmt.Fprintln(cmd.OutOrStdout(), signer.Address().Hex())
		return nil
	}

	network, err := deploy.DialNetwork(cmd.Context(), cfg.RPCURL)
	if err != nil {
		return err
	}
	defer network.Close()

	balance, err := network.BalanceAt(cmd.Context(), signer.Address(), nil)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", signer.Address().Hex(), balance)
	return nil
}
