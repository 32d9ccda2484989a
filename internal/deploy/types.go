// Package deploy runs a deployment plan against an EVM network: it deploys
// the token and marketplace contracts, wires the marketplace's minting
// permissions and submits the initial mint.
package deploy

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// maxUint256 is the largest value an EVM transaction can carry.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ContractDeployment is a confirmed contract creation.
type ContractDeployment struct {
	Name            string         `json:"name"`
	Contract        string         `json:"contract"`
	ConstructorArgs []any          `json:"constructor_args"`
	Address         common.Address `json:"address"`
	TxHash          common.Hash    `json:"tx_hash"`
	BlockNumber     uint64         `json:"block_number"`
}

// GasPriceSource records where a gas price came from.
type GasPriceSource string

const (
	GasPriceFromNetwork GasPriceSource = "network"
	GasPriceFromDefault GasPriceSource = "default"
)

// GasParameters is the gas envelope attached to the mint transaction.
type GasParameters struct {
	Price  *big.Int
	Limit  uint64
	Source GasPriceSource
}

// MintRequest is the initial mint submitted against the marketplace.
type MintRequest struct {
	Quantity     uint64
	ValuePerUnit *big.Int
	Gas          GasParameters
}

// Value returns Quantity * ValuePerUnit computed exactly.
func (m MintRequest) Value() *big.Int {
	if m.ValuePerUnit == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(m.Quantity), m.ValuePerUnit)
}

// Validate checks the quantity and the value the mint would attach.
func (m MintRequest) Validate() error {
	if m.Quantity == 0 {
		return fmt.Errorf("mint quantity must be greater than zero")
	}
	if m.ValuePerUnit == nil {
		return fmt.Errorf("mint value per unit is required")
	}
	if m.ValuePerUnit.Sign() < 0 {
		return fmt.Errorf("mint value per unit must not be negative")
	}
	if m.Value().Cmp(maxUint256) > 0 {
		return fmt.Errorf("mint value %s exceeds uint256", m.Value())
	}
	return nil
}

// Confirmation is a successfully mined transaction.
type Confirmation struct {
	TxHash          common.Hash
	BlockNumber     uint64
	GasUsed         uint64
	ContractAddress common.Address
}

// Step statuses in a RunResult.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// StepResult is the outcome of one plan step.
type StepResult struct {
	Name        string   `json:"name"`
	Kind        StepKind `json:"kind"`
	Status      string   `json:"status"`
	TxHash      string   `json:"tx_hash,omitempty"`
	BlockNumber uint64   `json:"block_number,omitempty"`
	GasUsed     uint64   `json:"gas_used,omitempty"`
	Address     string   `json:"address,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// MintReport describes the mint transaction that was submitted.
type MintReport struct {
	Quantity       uint64         `json:"quantity"`
	ValuePerUnit   string         `json:"value_per_unit"`
	Value          string         `json:"value"`
	GasPrice       string         `json:"gas_price"`
	GasLimit       uint64         `json:"gas_limit"`
	GasPriceSource GasPriceSource `json:"gas_price_source"`
}

// RunResult is the outcome of an orchestrated run. It is returned on failure
// too, holding every deployment and step confirmed before the failing step.
type RunResult struct {
	RunID       string               `json:"run_id"`
	Network     string               `json:"network,omitempty"`
	ChainID     uint64               `json:"chain_id"`
	Deployer    common.Address       `json:"deployer"`
	Deployments []ContractDeployment `json:"deployments"`
	Steps       []StepResult         `json:"steps"`
	Mint        *MintReport          `json:"mint,omitempty"`
	Success     bool                 `json:"success"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
}

// Deployment returns the named deployment if it was confirmed.
func (r *RunResult) Deployment(name string) (ContractDeployment, bool) {
	for _, d := range r.Deployments {
		if d.Name == name {
			return d, true
		}
	}
	return ContractDeployment{}, false
}
