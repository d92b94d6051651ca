// Package safe drives a Safe transaction from nonce read to confirmation.
package safe

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/GoPolymarket/safeboard/internal/config"
	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/multisend"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/GoPolymarket/safeboard/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type Protocol struct {
	client         chain.Client
	reads          *RetryReader
	confirmTimeout time.Duration
	log            *slog.Logger
}

func NewProtocol(client chain.Client, resolved config.Resolved, log *slog.Logger) *Protocol {
	log = logger.OrDefault(log)
	timeout := resolved.ConfirmTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Protocol{
		client:         client,
		reads:          NewRetryReader(client, resolved.ReadRetry, log),
		confirmTimeout: timeout,
		log:            log,
	}
}

// Reader exposes the retrying reader so other components share one policy.
func (p *Protocol) Reader() *RetryReader {
	return p.reads
}

// Nonce reads the Safe's replay-protection counter.
func (p *Protocol) Nonce(ctx context.Context, safeAddr common.Address) (*big.Int, error) {
	out, err := p.reads.Read(ctx, safeAddr, contracts.Safe, "nonce")
	if err != nil {
		return nil, err
	}
	nonce, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperrors.New(apperrors.ErrUpstream, "unexpected nonce output", nil)
	}
	return nonce, nil
}

// Prepare reads the Safe nonce and computes the digest through the Safe's own
// getTransactionHash. The local EIP-712 digest must agree with it.
func (p *Protocol) Prepare(ctx context.Context, safeAddr common.Address, call multisend.Call) (*Transaction, error) {
	tx := NewTransaction(safeAddr, call)

	nonce, err := p.Nonce(ctx, safeAddr)
	if err != nil {
		tx.State = Failed
		return tx, err
	}
	tx.Nonce = nonce

	out, err := p.reads.Read(ctx, safeAddr, contracts.Safe, "getTransactionHash",
		tx.To, tx.Value, tx.Data, uint8(tx.Operation),
		tx.SafeTxGas, tx.BaseGas, tx.GasPrice, tx.GasToken, tx.RefundReceiver, tx.Nonce)
	if err != nil {
		tx.State = Failed
		return tx, err
	}
	onchain, ok := out[0].([32]byte)
	if !ok {
		tx.State = Failed
		return tx, apperrors.New(apperrors.ErrUpstream, "unexpected getTransactionHash output", nil)
	}

	local := Digest(p.client.ChainID(), tx)
	if common.Hash(onchain) != local {
		tx.State = Failed
		return tx, apperrors.NewConfiguration("safe digest mismatch; check chain id and Safe version").
			WithDetail("safe", safeAddr.Hex()).
			WithDetail("onchain", common.Hash(onchain).Hex()).
			WithDetail("local", local.Hex())
	}

	tx.Digest = local
	tx.State = HashComputed
	p.log.Debug("Safe transaction prepared", "safe", safeAddr.Hex(), "nonce", nonce.String(), "digest", local.Hex())
	return tx, nil
}

// Sign attaches an approved-hash signature for owner after checking that
// owner is the Safe's only owner and the threshold is 1.
func (p *Protocol) Sign(ctx context.Context, tx *Transaction, owner common.Address) error {
	if tx.State != HashComputed {
		return apperrors.New(apperrors.ErrInternal, fmt.Sprintf("cannot sign transaction in state %s", tx.State), nil)
	}
	if err := p.CheckSoleOwner(ctx, tx.Safe, owner); err != nil {
		tx.State = Failed
		return err
	}
	tx.Signature = ApprovedHashSignature(owner)
	tx.State = Signed
	return nil
}

// CheckSoleOwner fails unless owner is the only owner and the threshold is 1.
func (p *Protocol) CheckSoleOwner(ctx context.Context, safeAddr, owner common.Address) error {
	out, err := p.reads.Read(ctx, safeAddr, contracts.Safe, "getOwners")
	if err != nil {
		return err
	}
	owners, _ := out[0].([]common.Address)

	out, err = p.reads.Read(ctx, safeAddr, contracts.Safe, "getThreshold")
	if err != nil {
		return err
	}
	threshold, _ := out[0].(*big.Int)

	if len(owners) != 1 || owners[0] != owner || threshold == nil || threshold.Cmp(big.NewInt(1)) != 0 {
		return apperrors.NewConfiguration("approved-hash signing requires a 1-of-1 Safe owned by the operator").
			WithDetail("safe", safeAddr.Hex()).
			WithDetail("owner", owner.Hex()).
			WithDetail("owners", strconv.Itoa(len(owners)))
	}
	return nil
}

// Execute submits execTransaction once and waits for it. A stuck or reverted
// transaction is reported, never resubmitted.
func (p *Protocol) Execute(ctx context.Context, tx *Transaction, nonces chain.NonceTracker) error {
	if tx.State != Signed {
		return apperrors.New(apperrors.ErrInternal, fmt.Sprintf("cannot execute transaction in state %s", tx.State), nil)
	}

	calldata, err := contracts.Safe.Pack("execTransaction",
		tx.To, tx.Value, tx.Data, uint8(tx.Operation),
		tx.SafeTxGas, tx.BaseGas, tx.GasPrice, tx.GasToken, tx.RefundReceiver, tx.Signature)
	if err != nil {
		tx.State = Failed
		return apperrors.New(apperrors.ErrInternal, "failed to pack execTransaction", err)
	}

	hash, _, err := chain.SubmitNext(ctx, p.client, nonces, chain.TxRequest{To: tx.Safe, Data: calldata, Value: new(big.Int)})
	if err != nil {
		tx.State = Failed
		metrics.Transactions.WithLabelValues("safe_exec", "rejected").Inc()
		return p.executionError("execTransaction rejected", tx, err)
	}
	tx.Submission = hash
	tx.State = Submitted
	p.log.Info("Safe transaction submitted", "safe", tx.Safe.Hex(), "tx", hash.Hex(), "digest", tx.Digest.Hex())

	confirmCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()
	receipt, err := p.client.Confirm(confirmCtx, hash)
	if err != nil {
		tx.State = Failed
		metrics.Transactions.WithLabelValues("safe_exec", "unconfirmed").Inc()
		return p.executionError("execTransaction not confirmed", tx, err)
	}
	tx.Receipt = receipt

	if receipt.Status != types.ReceiptStatusSuccessful || hasExecutionFailure(receipt, tx.Safe) {
		tx.State = Failed
		metrics.Transactions.WithLabelValues("safe_exec", "reverted").Inc()
		return p.executionError("execTransaction reverted", tx, nil)
	}

	tx.State = Confirmed
	metrics.Transactions.WithLabelValues("safe_exec", "confirmed").Inc()
	return nil
}

// Run takes call through the full state machine.
func (p *Protocol) Run(ctx context.Context, safeAddr common.Address, call multisend.Call, owner common.Address, nonces chain.NonceTracker) (*Transaction, error) {
	tx, err := p.Prepare(ctx, safeAddr, call)
	if err != nil {
		return tx, err
	}
	if err := p.Sign(ctx, tx, owner); err != nil {
		return tx, err
	}
	if err := p.Execute(ctx, tx, nonces); err != nil {
		return tx, err
	}
	return tx, nil
}

func (p *Protocol) executionError(msg string, tx *Transaction, cause error) error {
	err := apperrors.New(apperrors.ErrExecution, msg, cause).
		WithDetail("safe", tx.Safe.Hex()).
		WithDetail("digest", tx.Digest.Hex())
	if tx.Submission != (common.Hash{}) {
		err.WithDetail("tx", tx.Submission.Hex())
	}
	if tx.Nonce != nil {
		err.WithDetail("safe_nonce", tx.Nonce.String())
	}
	return err
}

func hasExecutionFailure(receipt *types.Receipt, safeAddr common.Address) bool {
	failure := contracts.Safe.Events["ExecutionFailure"].ID
	for _, l := range receipt.Logs {
		if l.Address == safeAddr && len(l.Topics) > 0 && l.Topics[0] == failure {
			return true
		}
	}
	return false
}
