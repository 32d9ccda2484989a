package deploy

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/nft-deployer/internal/contracts"
)

func TestDefaultPlan(t *testing.T) {
	plan := DefaultPlan(DefaultPlanParams())
	require.NoError(t, plan.Validate())
	require.Len(t, plan.Steps, 5)

	kinds := make([]StepKind, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []StepKind{StepDeploy, StepDeploy, StepGrantRole, StepToggleFlag, StepCall}, kinds)

	token := plan.Steps[0]
	assert.Equal(t, contracts.TokenContract, token.Contract)
	assert.Equal(t, []Arg{Literal("NFTA"), Literal("NTA"), Literal("URI_ERCA")}, token.Args)
	assert.Empty(t, token.DependsOn())

	market := plan.Steps[1]
	assert.Equal(t, contracts.MarketplaceContract, market.Contract)
	assert.Equal(t, []string{TokenDeployment}, market.DependsOn())
	assert.Equal(t, int64(10000), market.Args[1].Value.(*big.Int).Int64())
	assert.Equal(t, int64(10), market.Args[2].Value.(*big.Int).Int64())
	assert.Equal(t, int64(50), market.Args[3].Value.(*big.Int).Int64())

	grant := plan.Steps[2]
	assert.Equal(t, contracts.MinterRole, grant.Role)
	assert.Equal(t, []string{TokenDeployment, MarketplaceDeployment}, grant.DependsOn())

	toggle := plan.Steps[3]
	assert.True(t, toggle.Flag)
	assert.Equal(t, TokenDeployment, toggle.Target)

	mint := plan.Steps[4]
	assert.Equal(t, MarketplaceDeployment, mint.Target)
	assert.Equal(t, uint64(10), mint.Mint.Quantity)
	assert.Equal(t, int64(10), mint.Mint.ValuePerUnit.Int64())
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Plan)
		wantErr string
	}{
		{
			name:    "empty plan",
			mutate:  func(p *Plan) { p.Steps = nil },
			wantErr: "no steps",
		},
		{
			name: "forward reference",
			mutate: func(p *Plan) {
				p.Steps[0], p.Steps[1] = p.Steps[1], p.Steps[0]
			},
			wantErr: `depends on "token"`,
		},
		{
			name: "self reference",
			mutate: func(p *Plan) {
				p.Steps[1].Args[0] = AddressOf(MarketplaceDeployment)
			},
			wantErr: `depends on "market"`,
		},
		{
			name:    "duplicate name",
			mutate:  func(p *Plan) { p.Steps[1].Name = TokenDeployment },
			wantErr: "duplicate step name",
		},
		{
			name:    "deploy without contract",
			mutate:  func(p *Plan) { p.Steps[0].Contract = "" },
			wantErr: "has no contract",
		},
		{
			name:    "grant without role",
			mutate:  func(p *Plan) { p.Steps[2].Role = contracts.RoleID{} },
			wantErr: "has no role",
		},
		{
			name:    "grantee not deployed",
			mutate:  func(p *Plan) { p.Steps[2].Grantee = "vault" },
			wantErr: `depends on "vault"`,
		},
		{
			name:    "zero quantity",
			mutate:  func(p *Plan) { p.Steps[4].Mint.Quantity = 0 },
			wantErr: "quantity must be greater than zero",
		},
		{
			name:    "negative value",
			mutate:  func(p *Plan) { p.Steps[4].Mint.ValuePerUnit = big.NewInt(-1) },
			wantErr: "must not be negative",
		},
		{
			name:    "call without mint",
			mutate:  func(p *Plan) { p.Steps[4].Mint = nil },
			wantErr: "has no mint",
		},
		{
			name:    "unknown kind",
			mutate:  func(p *Plan) { p.Steps[3].Kind = "upgrade" },
			wantErr: "unknown step kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := DefaultPlan(DefaultPlanParams())
			tt.mutate(&plan)

			err := plan.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMintRequest_Value(t *testing.T) {
	req := MintRequest{Quantity: 10, ValuePerUnit: big.NewInt(10)}
	require.NoError(t, req.Validate())
	assert.Equal(t, int64(100), req.Value().Int64())

	free := MintRequest{Quantity: 3, ValuePerUnit: big.NewInt(0)}
	require.NoError(t, free.Validate())
	assert.Zero(t, free.Value().Sign())
}

func TestMintRequest_ValueOverflow(t *testing.T) {
	perUnit := new(big.Int).Lsh(big.NewInt(1), 255)
	req := MintRequest{Quantity: 2, ValuePerUnit: perUnit}

	// exact product, no wraparound
	assert.Equal(t, 0, new(big.Int).Lsh(big.NewInt(1), 256).Cmp(req.Value()))
	assert.ErrorContains(t, req.Validate(), "exceeds uint256")

	atLimit := MintRequest{Quantity: 1, ValuePerUnit: new(big.Int).Set(maxUint256)}
	assert.NoError(t, atLimit.Validate())
}
