package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Submitter defaults.
const (
	DefaultConfirmTimeout   = 5 * time.Minute
	DefaultPollInterval     = 2 * time.Second
	DefaultGasBufferPercent = 20
)

// Action is a single transaction to submit. A nil To creates a contract.
type Action struct {
	Step  string
	To    *common.Address
	Data  []byte
	Value *big.Int

	// Zero values select the submitter defaults.
	GasPrice *big.Int
	GasLimit uint64
}

// SubmitterConfig configures a Submitter.
type SubmitterConfig struct {
	// GasPrice and GasLimit, when set, are used for every action that does
	// not carry its own. Otherwise the price is suggested by the network and
	// the limit is estimated.
	GasPrice         *big.Int
	GasLimit         uint64
	GasBufferPercent uint64

	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Logger         *slog.Logger
}

// Submitter signs, broadcasts and confirms one transaction at a time.
type Submitter struct {
	network Network
	signer  TransactionSigner
	config  SubmitterConfig
	logger  *slog.Logger
}

// NewSubmitter creates a Submitter sending from signer's account.
func NewSubmitter(network Network, signer TransactionSigner, config SubmitterConfig) *Submitter {
	if config.ConfirmTimeout <= 0 {
		config.ConfirmTimeout = DefaultConfirmTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.GasBufferPercent == 0 {
		config.GasBufferPercent = DefaultGasBufferPercent
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		network: network,
		signer:  signer,
		config:  config,
		logger:  logger,
	}
}

// Submit sends the action and blocks until it is mined. Once broadcast, the
// wait ignores cancellation of ctx and is bounded only by the confirm timeout.
func (s *Submitter) Submit(ctx context.Context, action Action) (*Confirmation, error) {
	signedTx, err := s.build(ctx, action)
	if err != nil {
		return nil, &SubmissionError{Step: action.Step, Err: err}
	}
	txHash := signedTx.Hash()

	if err := s.network.SendTransaction(ctx, signedTx); err != nil {
		return nil, &SubmissionError{Step: action.Step, Err: fmt.Errorf("send transaction: %w", err)}
	}

	s.logger.Info("transaction sent",
		slog.String("step", action.Step),
		slog.String("tx_hash", txHash.Hex()),
		slog.Uint64("nonce", signedTx.Nonce()),
		slog.Uint64("gas_limit", signedTx.Gas()),
		slog.String("gas_price", signedTx.GasPrice().String()),
	)

	receipt, err := s.waitForReceipt(context.WithoutCancel(ctx), txHash)
	if err != nil {
		return nil, &SubmissionError{Step: action.Step, TxHash: txHash, Err: err}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &ExecutionError{
			Step:        action.Step,
			TxHash:      txHash,
			BlockNumber: blockNumber(receipt),
		}
	}

	return &Confirmation{
		TxHash:          txHash,
		BlockNumber:     blockNumber(receipt),
		GasUsed:         receipt.GasUsed,
		ContractAddress: receipt.ContractAddress,
	}, nil
}

func (s *Submitter) build(ctx context.Context, action Action) (*types.Transaction, error) {
	from := s.signer.Address()

	nonce, err := s.network.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := s.gasPrice(ctx, action)
	if err != nil {
		return nil, err
	}

	value := action.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := action.GasLimit
	if gasLimit == 0 {
		gasLimit = s.config.GasLimit
	}
	if gasLimit == 0 {
		estimated, err := s.network.EstimateGas(ctx, ethereum.CallMsg{
			From:     from,
			To:       action.To,
			GasPrice: gasPrice,
			Value:    value,
			Data:     action.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		gasLimit = estimated * (100 + s.config.GasBufferPercent) / 100
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       action.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     action.Data,
	})

	signedTx, err := s.signer.SignTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signedTx, nil
}

func (s *Submitter) gasPrice(ctx context.Context, action Action) (*big.Int, error) {
	if action.GasPrice != nil && action.GasPrice.Sign() > 0 {
		return action.GasPrice, nil
	}
	if s.config.GasPrice != nil && s.config.GasPrice.Sign() > 0 {
		return s.config.GasPrice, nil
	}
	price, err := s.network.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}
	return price, nil
}

// waitForReceipt polls until the transaction is mined or the confirm timeout
// elapses. Lookup errors are treated as "not mined yet".
func (s *Submitter) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.network.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s after %s", ErrConfirmTimeout, txHash.Hex(), s.config.ConfirmTimeout)
		case <-ticker.C:
		}
	}
}

func blockNumber(receipt *types.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
