package safe

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/GoPolymarket/safeboard/internal/chain/chaintest"
	"github.com/GoPolymarket/safeboard/internal/config"
	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/manager"
	"github.com/GoPolymarket/safeboard/internal/multisend"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/GoPolymarket/safeboard/internal/signer"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	operator = common.HexToAddress("0x1111111111111111111111111111111111111111")
	account  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	target   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func testResolved() config.Resolved {
	return config.Resolved{
		ChainID:        137,
		ReadRetry:      config.RetryPolicy{Attempts: 3, Delay: time.Millisecond},
		ConfirmTimeout: time.Second,
	}
}

// safeChain answers the Safe view calls the way a 1-of-1 Safe owned by operator would.
func safeChain(nonce int64) *chaintest.Fake {
	f := chaintest.New(137, operator)
	f.Handle("nonce", chaintest.Returns(big.NewInt(nonce)))
	f.Handle("getOwners", chaintest.Returns([]common.Address{operator}))
	f.Handle("getThreshold", chaintest.Returns(big.NewInt(1)))
	f.Handle("getTransactionHash", func(call chaintest.ReadCall) ([]any, error) {
		a := call.Args
		digest := signer.SafeTxHash(f.ChainID(), call.Contract, &signer.SafeTx{
			To:             a[0].(common.Address),
			Value:          a[1].(*big.Int),
			Data:           a[2].([]byte),
			Operation:      a[3].(uint8),
			SafeTxGas:      a[4].(*big.Int),
			BaseGas:        a[5].(*big.Int),
			GasPrice:       a[6].(*big.Int),
			GasToken:       a[7].(common.Address),
			RefundReceiver: a[8].(common.Address),
			Nonce:          a[9].(*big.Int),
		})
		return []any{[32]byte(digest)}, nil
	})
	return f
}

func sampleCall() multisend.Call {
	return multisend.Call{Operation: multisend.OpCall, To: target, Value: big.NewInt(0), Data: []byte{0xde, 0xad, 0xbe, 0xef}}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(bind.ErrNoCode))
	assert.True(t, IsTransient(errors.New("abi: attempting to unmarshal an empty string while arguments are expected")))
	assert.True(t, IsTransient(errors.New("contract call returned no data")))
	assert.False(t, IsTransient(errors.New("execution reverted: GS013")))
	assert.False(t, IsTransient(nil))
}

func TestReadRetriesTransientThenSucceeds(t *testing.T) {
	f := chaintest.New(137, operator)
	calls := 0
	f.Handle("nonce", func(chaintest.ReadCall) ([]any, error) {
		calls++
		if calls < 3 {
			return nil, bind.ErrNoCode
		}
		return []any{big.NewInt(4)}, nil
	})

	r := NewRetryReader(f, testResolved().ReadRetry, logger.Discard())
	out, err := r.Read(context.Background(), account, contracts.Safe, "nonce")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(4), out[0].(*big.Int).Int64())
}

func TestReadEscalatesAfterAttempts(t *testing.T) {
	f := chaintest.New(137, operator)
	f.Handle("nonce", func(chaintest.ReadCall) ([]any, error) {
		return nil, bind.ErrNoCode
	})

	r := NewRetryReader(f, testResolved().ReadRetry, logger.Discard())
	_, err := r.Read(context.Background(), account, contracts.Safe, "nonce")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrStateUnavailable))
	assert.Equal(t, 3, f.ReadCount("nonce"))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "3", appErr.Details["attempts"])
}

func TestReadDoesNotRetryOtherFailures(t *testing.T) {
	f := chaintest.New(137, operator)
	f.Handle("nonce", func(chaintest.ReadCall) ([]any, error) {
		return nil, errors.New("execution reverted")
	})

	r := NewRetryReader(f, testResolved().ReadRetry, logger.Discard())
	_, err := r.Read(context.Background(), account, contracts.Safe, "nonce")
	assert.True(t, apperrors.IsType(err, apperrors.ErrUpstream))
	assert.Equal(t, 1, f.ReadCount("nonce"))
}

func TestDigestDeterministic(t *testing.T) {
	chainID := big.NewInt(137)
	tx := NewTransaction(account, sampleCall())
	tx.Nonce = big.NewInt(5)

	first := Digest(chainID, tx)
	assert.Equal(t, first, Digest(chainID, tx))

	other := NewTransaction(account, sampleCall())
	other.Nonce = big.NewInt(6)
	assert.NotEqual(t, first, Digest(chainID, other))
	assert.NotEqual(t, first, Digest(big.NewInt(1), tx))
}

func TestApprovedHashSignature(t *testing.T) {
	sig := ApprovedHashSignature(operator)
	require.Len(t, sig, 65)
	assert.Equal(t, make([]byte, 12), sig[:12])
	assert.Equal(t, operator.Bytes(), sig[12:32])
	assert.Equal(t, make([]byte, 32), sig[32:64])
	assert.Equal(t, byte(1), sig[64])
}

func TestPrepareUsesSafeNonce(t *testing.T) {
	f := safeChain(9)
	p := NewProtocol(f, testResolved(), logger.Discard())

	tx, err := p.Prepare(context.Background(), account, sampleCall())
	require.NoError(t, err)
	assert.Equal(t, HashComputed, tx.State)
	assert.Equal(t, int64(9), tx.Nonce.Int64())
	assert.Equal(t, Digest(f.ChainID(), tx), tx.Digest)
}

func TestPrepareDigestMismatch(t *testing.T) {
	f := safeChain(0)
	f.Handle("getTransactionHash", chaintest.Returns([32]byte{1}))
	p := NewProtocol(f, testResolved(), logger.Discard())

	tx, err := p.Prepare(context.Background(), account, sampleCall())
	assert.True(t, apperrors.IsType(err, apperrors.ErrConfiguration))
	assert.Equal(t, Failed, tx.State)
}

func TestSignRejectsForeignOwner(t *testing.T) {
	f := safeChain(0)
	f.Handle("getOwners", chaintest.Returns([]common.Address{target}))
	p := NewProtocol(f, testResolved(), logger.Discard())

	tx, err := p.Prepare(context.Background(), account, sampleCall())
	require.NoError(t, err)
	err = p.Sign(context.Background(), tx, operator)
	assert.True(t, apperrors.IsType(err, apperrors.ErrConfiguration))
	assert.Nil(t, tx.Signature)
}

func TestRunSubmitsExecTransaction(t *testing.T) {
	f := safeChain(2)
	f.NextNonce = 40
	p := NewProtocol(f, testResolved(), logger.Discard())
	nonces := manager.NewNonceManager(f, logger.Discard())

	tx, err := p.Run(context.Background(), account, sampleCall(), operator, nonces)
	require.NoError(t, err)
	assert.Equal(t, Confirmed, tx.State)
	require.Len(t, f.Submitted, 1)

	sub := f.Submitted[0]
	assert.Equal(t, account, sub.To)
	require.NotNil(t, sub.Nonce)
	assert.Equal(t, uint64(40), *sub.Nonce)

	method, err := contracts.Safe.MethodById(sub.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "execTransaction", method.Name)
	args, err := method.Inputs.Unpack(sub.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, target, args[0].(common.Address))
	assert.Equal(t, ApprovedHashSignature(operator), args[9].([]byte))

	next, err := nonces.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(41), next)
}

func TestExecuteReportsRevert(t *testing.T) {
	f := safeChain(0)
	f.OnSubmit = func(req chain.TxRequest, _ common.Hash) (*types.Receipt, error) {
		return &types.Receipt{Status: types.ReceiptStatusFailed}, nil
	}
	p := NewProtocol(f, testResolved(), logger.Discard())

	tx, err := p.Run(context.Background(), account, sampleCall(), operator, manager.NewNonceManager(f, logger.Discard()))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrExecution))
	assert.Equal(t, Failed, tx.State)
	assert.Equal(t, 1, f.SubmittedCount())
}

func TestExecuteDetectsExecutionFailureEvent(t *testing.T) {
	f := safeChain(0)
	f.OnSubmit = func(req chain.TxRequest, _ common.Hash) (*types.Receipt, error) {
		return &types.Receipt{
			Status: types.ReceiptStatusSuccessful,
			Logs: []*types.Log{{
				Address: req.To,
				Topics:  []common.Hash{contracts.Safe.Events["ExecutionFailure"].ID},
			}},
		}, nil
	}
	p := NewProtocol(f, testResolved(), logger.Discard())

	_, err := p.Run(context.Background(), account, sampleCall(), operator, manager.NewNonceManager(f, logger.Discard()))
	assert.True(t, apperrors.IsType(err, apperrors.ErrExecution))
}

func TestExecuteRejectedResetsNonce(t *testing.T) {
	f := safeChain(0)
	f.NextNonce = 3
	f.OnSubmit = func(chain.TxRequest, common.Hash) (*types.Receipt, error) {
		return nil, errors.New("nonce too low")
	}
	p := NewProtocol(f, testResolved(), logger.Discard())
	nonces := manager.NewNonceManager(f, logger.Discard())

	_, err := p.Run(context.Background(), account, sampleCall(), operator, nonces)
	assert.True(t, apperrors.IsType(err, apperrors.ErrExecution))
	assert.Equal(t, 0, f.SubmittedCount())

	_, err = nonces.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.NonceReads)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "confirmed", Confirmed.String())
	assert.Equal(t, "unknown", State(42).String())
}
