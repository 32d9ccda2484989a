package deploy

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Run failure classes.
var (
	// ErrConfiguration indicates the run could not start: bad plan, bad
	// parameters or a network that does not match the configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrSubmission indicates a transaction could not be built, signed,
	// broadcast or confirmed.
	ErrSubmission = errors.New("transaction submission failed")

	// ErrExecution indicates a transaction was mined but reverted.
	ErrExecution = errors.New("transaction reverted")
)

// Internal conditions.
var (
	ErrGasPriceUnavailable = errors.New("gas price unavailable")
	ErrConfirmTimeout      = errors.New("timed out waiting for receipt")
	ErrNoContractAddress   = errors.New("receipt has no contract address")
)

// ConfigurationError wraps a problem detected before any transaction is sent.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configErr(field string, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// SubmissionError reports a step whose transaction never produced a receipt.
// TxHash is zero when the failure happened before broadcast.
type SubmissionError struct {
	Step   string
	TxHash common.Hash
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("step %s: submit %s: %v", e.Step, e.TxHash.Hex(), e.Err)
	}
	return fmt.Sprintf("step %s: submit: %v", e.Step, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

// ExecutionError reports a transaction that was mined with a failed status.
type ExecutionError struct {
	Step        string
	TxHash      common.Hash
	BlockNumber uint64
	Err         error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("step %s: transaction %s reverted in block %d", e.Step, e.TxHash.Hex(), e.BlockNumber)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }
