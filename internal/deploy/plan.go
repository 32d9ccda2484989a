package deploy

import (
	"fmt"
	"math/big"

	"github.com/Bidon15/nft-deployer/internal/contracts"
)

// StepKind identifies what a plan step does.
type StepKind string

const (
	StepDeploy     StepKind = "deploy"
	StepGrantRole  StepKind = "grant-role"
	StepToggleFlag StepKind = "toggle-flag"
	StepCall       StepKind = "call"
)

// Deployment names used by DefaultPlan.
const (
	TokenDeployment       = "token"
	MarketplaceDeployment = "market"
)

// Arg is a constructor argument: a literal value or the address of an
// earlier deployment.
type Arg struct {
	Value any
	Ref   string
}

// Literal wraps a constant constructor argument.
func Literal(v any) Arg { return Arg{Value: v} }

// AddressOf refers to the address of a deployment made by an earlier step.
func AddressOf(deployment string) Arg { return Arg{Ref: deployment} }

// MintSpec describes the mint submitted by a call step.
type MintSpec struct {
	Quantity     uint64
	ValuePerUnit *big.Int
}

// Step is one transaction of a plan.
//
// Deploy steps create contract Contract and record it under Name. Every other
// kind sends a transaction to the deployment named by Target.
type Step struct {
	Name     string
	Kind     StepKind
	Contract string
	Args     []Arg
	Target   string

	// grant-role
	Role    contracts.RoleID
	Grantee string

	// toggle-flag
	Flag bool

	// call
	Mint *MintSpec
}

// DependsOn lists the deployments this step reads.
func (s Step) DependsOn() []string {
	var deps []string
	for _, a := range s.Args {
		if a.Ref != "" {
			deps = append(deps, a.Ref)
		}
	}
	if s.Target != "" {
		deps = append(deps, s.Target)
	}
	if s.Grantee != "" {
		deps = append(deps, s.Grantee)
	}
	return deps
}

// Plan is an ordered list of steps executed strictly one after another.
type Plan struct {
	Steps []Step
}

// Validate checks that every step is complete and that every dependency is
// produced by a strictly earlier deploy step.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return configErr("plan", "no steps")
	}

	produced := make(map[string]bool)
	names := make(map[string]bool)
	for i, s := range p.Steps {
		field := fmt.Sprintf("plan.steps[%d]", i)
		if s.Name == "" {
			return configErr(field, "step name is required")
		}
		if names[s.Name] {
			return configErr(field, "duplicate step name %q", s.Name)
		}
		names[s.Name] = true

		for _, dep := range s.DependsOn() {
			if !produced[dep] {
				return configErr(field, "step %q depends on %q which is not deployed by an earlier step", s.Name, dep)
			}
		}

		switch s.Kind {
		case StepDeploy:
			if s.Contract == "" {
				return configErr(field, "deploy step %q has no contract", s.Name)
			}
			if s.Target != "" || s.Grantee != "" || s.Mint != nil {
				return configErr(field, "deploy step %q carries call fields", s.Name)
			}
			produced[s.Name] = true
		case StepGrantRole:
			if s.Target == "" || s.Grantee == "" {
				return configErr(field, "grant-role step %q needs target and grantee", s.Name)
			}
			if s.Role.IsZero() {
				return configErr(field, "grant-role step %q has no role", s.Name)
			}
		case StepToggleFlag:
			if s.Target == "" {
				return configErr(field, "toggle-flag step %q has no target", s.Name)
			}
		case StepCall:
			if s.Target == "" {
				return configErr(field, "call step %q has no target", s.Name)
			}
			if s.Mint == nil {
				return configErr(field, "call step %q has no mint", s.Name)
			}
			req := MintRequest{Quantity: s.Mint.Quantity, ValuePerUnit: s.Mint.ValuePerUnit}
			if err := req.Validate(); err != nil {
				return &ConfigurationError{Field: field, Err: err}
			}
		default:
			return configErr(field, "unknown step kind %q", s.Kind)
		}
	}
	return nil
}

// PlanParams are the values DefaultPlan is built from.
type PlanParams struct {
	TokenName   string
	TokenSymbol string
	TokenURI    string

	MarketPrice    *big.Int
	FeeNumerator   *big.Int
	FeeDenominator *big.Int

	Role           contracts.RoleID
	MintingEnabled bool

	MintQuantity     uint64
	MintValuePerUnit *big.Int
}

// DefaultPlanParams returns the parameters of the stock NFTA deployment.
func DefaultPlanParams() PlanParams {
	return PlanParams{
		TokenName:        "NFTA",
		TokenSymbol:      "NTA",
		TokenURI:         "URI_ERCA",
		MarketPrice:      big.NewInt(10000),
		FeeNumerator:     big.NewInt(10),
		FeeDenominator:   big.NewInt(50),
		Role:             contracts.MinterRole,
		MintingEnabled:   true,
		MintQuantity:     10,
		MintValuePerUnit: big.NewInt(10),
	}
}

// DefaultPlan builds the five-step token and marketplace deployment.
func DefaultPlan(p PlanParams) Plan {
	return Plan{Steps: []Step{
		{
			Name:     TokenDeployment,
			Kind:     StepDeploy,
			Contract: contracts.TokenContract,
			Args: []Arg{
				Literal(p.TokenName),
				Literal(p.TokenSymbol),
				Literal(p.TokenURI),
			},
		},
		{
			Name:     MarketplaceDeployment,
			Kind:     StepDeploy,
			Contract: contracts.MarketplaceContract,
			Args: []Arg{
				AddressOf(TokenDeployment),
				Literal(p.MarketPrice),
				Literal(p.FeeNumerator),
				Literal(p.FeeDenominator),
			},
		},
		{
			Name:    "grant-minter-role",
			Kind:    StepGrantRole,
			Target:  TokenDeployment,
			Role:    p.Role,
			Grantee: MarketplaceDeployment,
		},
		{
			Name:   "enable-minting",
			Kind:   StepToggleFlag,
			Target: TokenDeployment,
			Flag:   p.MintingEnabled,
		},
		{
			Name:   "mint",
			Kind:   StepCall,
			Target: MarketplaceDeployment,
			Mint: &MintSpec{
				Quantity:     p.MintQuantity,
				ValuePerUnit: p.MintValuePerUnit,
			},
		},
	}}
}
