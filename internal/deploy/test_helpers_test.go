package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/nft-deployer/internal/contracts"
)

// anvil account 0
const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testDeployer   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testChainID    = 31337
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSigner(t *testing.T) *LocalSigner {
	t.Helper()
	s, err := NewLocalSigner(testPrivateKey, testChainID)
	require.NoError(t, err)
	return s
}

// ============================================================================
// Fake chain
// ============================================================================

// fakeChain is an in-memory Network that mines every accepted transaction
// immediately. It records a violation when a transaction is sent while an
// earlier one has not had its receipt fetched.
type fakeChain struct {
	mu sync.Mutex

	chainID    *big.Int
	balance    *big.Int
	gasPrice   *big.Int
	gasErr     error
	estimate   uint64
	receiptLag int // not-found answers before each receipt is returned

	// 1-based send attempt that fails to broadcast or reverts
	failSendAt int
	revertAt   int

	attempts   int
	nonce      uint64
	sent       []*types.Transaction
	receipts   map[common.Hash]*types.Receipt
	lag        map[common.Hash]int
	unobserved map[common.Hash]bool
	events     []string
	violations []string
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID:    big.NewInt(testChainID),
		balance:    new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)),
		gasPrice:   big.NewInt(2_000_000_000),
		estimate:   500_000,
		receipts:   make(map[common.Hash]*types.Receipt),
		lag:        make(map[common.Hash]int),
		unobserved: make(map[common.Hash]bool),
	}
}

func (c *fakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return c.chainID, nil
}

func (c *fakeChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return c.balance, nil
}

func (c *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

func (c *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.gasPrice, c.gasErr
}

func (c *fakeChain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return c.estimate, nil
}

func (c *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts++
	if len(c.unobserved) > 0 {
		c.violations = append(c.violations, fmt.Sprintf("send %d before previous receipt", c.attempts))
	}
	if c.failSendAt == c.attempts {
		c.events = append(c.events, fmt.Sprintf("reject:%d", c.attempts))
		return errors.New("connection refused")
	}

	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return err
	}
	if tx.Nonce() != c.nonce {
		return fmt.Errorf("nonce too low: have %d want %d", tx.Nonce(), c.nonce)
	}

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(len(c.sent) + 1)),
		GasUsed:     tx.Gas() / 2,
	}
	if c.revertAt == c.attempts {
		receipt.Status = types.ReceiptStatusFailed
	} else if tx.To() == nil {
		receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
	}

	c.nonce++
	c.sent = append(c.sent, tx)
	c.receipts[tx.Hash()] = receipt
	c.lag[tx.Hash()] = c.receiptLag
	c.unobserved[tx.Hash()] = true
	c.events = append(c.events, fmt.Sprintf("send:%d", len(c.sent)))
	return nil
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if c.lag[txHash] > 0 {
		c.lag[txHash]--
		return nil, ethereum.NotFound
	}
	if c.unobserved[txHash] {
		delete(c.unobserved, txHash)
		c.events = append(c.events, fmt.Sprintf("confirm:%d", receipt.BlockNumber.Uint64()))
	}
	return receipt, nil
}

func (c *fakeChain) Close() {}

func (c *fakeChain) sentTxs() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

var _ Network = (*fakeChain)(nil)

// ============================================================================
// Mock price source
// ============================================================================

type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

// ============================================================================
// Fixtures
// ============================================================================

func testArtifacts() *contracts.Store {
	return contracts.NewStore("testdata/artifacts")
}

func testSubmitter(chain Network, signer TransactionSigner) *Submitter {
	return NewSubmitter(chain, signer, SubmitterConfig{
		ConfirmTimeout: 2 * time.Second,
		PollInterval:   time.Millisecond,
		Logger:         testLogger(),
	})
}

type testRun struct {
	chain        *fakeChain
	signer       *LocalSigner
	orchestrator *Orchestrator
}

func newTestRun(t *testing.T, chain *fakeChain, priceSource PriceSource) *testRun {
	t.Helper()
	signer := testSigner(t)
	gas := NewGasPriceResolver(priceSource, GasResolverConfig{
		QueryTimeout: 100 * time.Millisecond,
		Logger:       testLogger(),
	})
	o := NewOrchestrator(chain, signer, testArtifacts(), testSubmitter(chain, signer), gas, OrchestratorConfig{
		NetworkName: "localhost",
		Logger:      testLogger(),
	})
	return &testRun{chain: chain, signer: signer, orchestrator: o}
}
