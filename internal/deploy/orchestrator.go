package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Bidon15/nft-deployer/internal/contracts"
)

// ArtifactSource resolves compiled contracts by name.
type ArtifactSource interface {
	Artifact(name string) (*contracts.Artifact, error)
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	// NetworkName is reported in the RunResult.
	NetworkName string
	Logger      *slog.Logger
	Metrics     *Metrics
}

// Orchestrator executes a Plan step by step, stopping at the first failure.
type Orchestrator struct {
	network   Network
	signer    TransactionSigner
	artifacts ArtifactSource
	submitter *Submitter
	gas       *GasPriceResolver
	config    OrchestratorConfig
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	network Network,
	signer TransactionSigner,
	artifacts ArtifactSource,
	submitter *Submitter,
	gas *GasPriceResolver,
	config OrchestratorConfig,
) *Orchestrator {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		network:   network,
		signer:    signer,
		artifacts: artifacts,
		submitter: submitter,
		gas:       gas,
		config:    config,
		logger:    logger,
	}
}

// runState is what a run has learned so far.
type runState struct {
	result      *RunResult
	deployments map[string]ContractDeployment
	artifacts   map[string]*contracts.Artifact
}

// Run executes every step of plan in order. Each step is submitted only after
// the previous one is confirmed. On failure the returned RunResult holds
// everything confirmed so far; applied transactions are never undone.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (*RunResult, error) {
	state := &runState{
		result: &RunResult{
			RunID:       uuid.NewString(),
			Network:     o.config.NetworkName,
			Deployer:    o.signer.Address(),
			Deployments: []ContractDeployment{},
			Steps:       []StepResult{},
			StartedAt:   time.Now().UTC(),
		},
		deployments: make(map[string]ContractDeployment),
		artifacts:   make(map[string]*contracts.Artifact),
	}
	if id := o.signer.ChainID(); id != nil {
		state.result.ChainID = id.Uint64()
	}

	logger := o.logger.With(slog.String("run_id", state.result.RunID))

	err := o.run(ctx, logger, plan, state)

	state.result.FinishedAt = time.Now().UTC()
	state.result.Success = err == nil
	if err != nil {
		state.result.Error = err.Error()
	}
	o.config.Metrics.runFinished(err == nil)
	return state.result, err
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, plan Plan, state *runState) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	if err := o.preflight(ctx, logger, plan, state); err != nil {
		return err
	}

	logger.Info("starting deployment",
		slog.String("network", o.config.NetworkName),
		slog.Uint64("chain_id", state.result.ChainID),
		slog.String("deployer", state.result.Deployer.Hex()),
		slog.Int("steps", len(plan.Steps)),
	)

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run stopped before step %s: %w", step.Name, err)
		}

		stepLogger := logger.With(
			slog.String("step", step.Name),
			slog.String("kind", string(step.Kind)),
		)
		stepLogger.Info("executing step",
			slog.Int("index", i+1),
			slog.Int("total", len(plan.Steps)),
		)

		started := time.Now()
		sr, err := o.execute(ctx, step, state)
		if err != nil {
			o.config.Metrics.observeStep(step.Kind, StatusFailed, time.Since(started))
			failed := StepResult{Name: step.Name, Kind: step.Kind, Status: StatusFailed, Error: err.Error()}
			if txHash := failedTxHash(err); txHash != (common.Hash{}) {
				failed.TxHash = txHash.Hex()
			}
			state.result.Steps = append(state.result.Steps, failed)
			stepLogger.Error("step failed", slog.String("error", err.Error()))
			return err
		}
		o.config.Metrics.observeStep(step.Kind, StatusConfirmed, time.Since(started))
		state.result.Steps = append(state.result.Steps, sr)

		attrs := []any{
			slog.String("tx_hash", sr.TxHash),
			slog.Uint64("block", sr.BlockNumber),
			slog.Uint64("gas_used", sr.GasUsed),
		}
		if sr.Address != "" {
			attrs = append(attrs, slog.String("address", sr.Address))
		}
		stepLogger.Info("step confirmed", attrs...)
	}

	logger.Info("deployment complete", slog.Int("deployments", len(state.result.Deployments)))
	return nil
}

// preflight fails the run before any transaction if the plan cannot possibly
// succeed on the connected network.
func (o *Orchestrator) preflight(ctx context.Context, logger *slog.Logger, plan Plan, state *runState) error {
	for _, step := range plan.Steps {
		if step.Kind != StepDeploy {
			continue
		}
		artifact, err := o.artifacts.Artifact(step.Contract)
		if err != nil {
			return &ConfigurationError{Field: "artifacts", Err: err}
		}
		if _, err := artifact.BytecodeBytes(); err != nil {
			return configErr("artifacts", "%s: %v", step.Contract, err)
		}
		state.artifacts[step.Contract] = artifact
	}

	chainID, err := o.network.ChainID(ctx)
	if err != nil {
		return &ConfigurationError{Field: "rpc_url", Err: fmt.Errorf("get chain ID: %w", err)}
	}
	if want := o.signer.ChainID(); want != nil && chainID.Cmp(want) != 0 {
		return configErr("chain_id", "network reports chain %s, configured %s", chainID, want)
	}

	deployer := o.signer.Address()
	balance, err := o.network.BalanceAt(ctx, deployer, nil)
	if err != nil {
		return &ConfigurationError{Field: "rpc_url", Err: fmt.Errorf("get balance: %w", err)}
	}
	if balance.Sign() <= 0 {
		return configErr("private_key", "deployer %s has no balance", deployer.Hex())
	}

	logger.Debug("preflight passed",
		slog.String("chain_id", chainID.String()),
		slog.String("balance", balance.String()),
	)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, step Step, state *runState) (StepResult, error) {
	switch step.Kind {
	case StepDeploy:
		return o.deploy(ctx, step, state)
	case StepGrantRole:
		target, grantee := state.deployments[step.Target], state.deployments[step.Grantee]
		data, err := contracts.FuncGrantRole.EncodeArgs([32]byte(step.Role), grantee.Address)
		if err != nil {
			return StepResult{}, &SubmissionError{Step: step.Name, Err: fmt.Errorf("encode grantRole: %w", err)}
		}
		return o.call(ctx, step, Action{Step: step.Name, To: &target.Address, Data: data})
	case StepToggleFlag:
		target := state.deployments[step.Target]
		data, err := contracts.FuncToggleMinting.EncodeArgs(step.Flag)
		if err != nil {
			return StepResult{}, &SubmissionError{Step: step.Name, Err: fmt.Errorf("encode toggleMinting: %w", err)}
		}
		return o.call(ctx, step, Action{Step: step.Name, To: &target.Address, Data: data})
	case StepCall:
		return o.mint(ctx, step, state)
	default:
		return StepResult{}, configErr("plan", "unknown step kind %q", step.Kind)
	}
}

func (o *Orchestrator) deploy(ctx context.Context, step Step, state *runState) (StepResult, error) {
	args := make([]any, len(step.Args))
	for i, a := range step.Args {
		if a.Ref != "" {
			args[i] = state.deployments[a.Ref].Address
			continue
		}
		args[i] = a.Value
	}

	data, err := state.artifacts[step.Contract].DeployData(args...)
	if err != nil {
		return StepResult{}, &SubmissionError{Step: step.Name, Err: fmt.Errorf("encode %s constructor: %w", step.Contract, err)}
	}

	conf, err := o.submitter.Submit(ctx, Action{Step: step.Name, Data: data})
	if err != nil {
		return StepResult{}, err
	}
	if conf.ContractAddress == (common.Address{}) {
		return StepResult{}, &ExecutionError{
			Step:        step.Name,
			TxHash:      conf.TxHash,
			BlockNumber: conf.BlockNumber,
			Err:         ErrNoContractAddress,
		}
	}

	d := ContractDeployment{
		Name:            step.Name,
		Contract:        step.Contract,
		ConstructorArgs: args,
		Address:         conf.ContractAddress,
		TxHash:          conf.TxHash,
		BlockNumber:     conf.BlockNumber,
	}
	state.deployments[step.Name] = d
	state.result.Deployments = append(state.result.Deployments, d)

	sr := stepResult(step, conf)
	sr.Address = conf.ContractAddress.Hex()
	return sr, nil
}

func (o *Orchestrator) mint(ctx context.Context, step Step, state *runState) (StepResult, error) {
	req := MintRequest{
		Quantity:     step.Mint.Quantity,
		ValuePerUnit: step.Mint.ValuePerUnit,
		Gas:          o.gas.Resolve(ctx),
	}
	if err := req.Validate(); err != nil {
		return StepResult{}, &ConfigurationError{Field: step.Name, Err: err}
	}

	data, err := contracts.FuncMint.EncodeArgs(new(big.Int).SetUint64(req.Quantity))
	if err != nil {
		return StepResult{}, &SubmissionError{Step: step.Name, Err: fmt.Errorf("encode mint: %w", err)}
	}

	state.result.Mint = &MintReport{
		Quantity:       req.Quantity,
		ValuePerUnit:   req.ValuePerUnit.String(),
		Value:          req.Value().String(),
		GasPrice:       req.Gas.Price.String(),
		GasLimit:       req.Gas.Limit,
		GasPriceSource: req.Gas.Source,
	}

	target := state.deployments[step.Target]
	return o.call(ctx, step, Action{
		Step:     step.Name,
		To:       &target.Address,
		Data:     data,
		Value:    req.Value(),
		GasPrice: req.Gas.Price,
		GasLimit: req.Gas.Limit,
	})
}

func (o *Orchestrator) call(ctx context.Context, step Step, action Action) (StepResult, error) {
	conf, err := o.submitter.Submit(ctx, action)
	if err != nil {
		return StepResult{}, err
	}
	return stepResult(step, conf), nil
}

func stepResult(step Step, conf *Confirmation) StepResult {
	return StepResult{
		Name:        step.Name,
		Kind:        step.Kind,
		Status:      StatusConfirmed,
		TxHash:      conf.TxHash.Hex(),
		BlockNumber: conf.BlockNumber,
		GasUsed:     conf.GasUsed,
	}
}

func failedTxHash(err error) common.Hash {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.TxHash
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.TxHash
	}
	return common.Hash{}
}
