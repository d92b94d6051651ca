package service

import (
	"context"
	"fmt"
	"math/big"

	"github.com/GoPolymarket/safeboard/internal/amount"
	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/model"
	"github.com/GoPolymarket/safeboard/internal/multisend"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type transfer struct {
	direction model.TransferDirection
	token     common.Address
	amount    *big.Int
}

// parseTransfers validates every request before any of them executes.
func parseTransfers(reqs []model.TransferRequest) ([]transfer, error) {
	out := make([]transfer, 0, len(reqs))
	for i, req := range reqs {
		if req.Direction != model.ToAccount && req.Direction != model.FromAccount {
			return nil, apperrors.NewInvalidRequest(fmt.Sprintf("transfer %d: unknown direction %q", i, req.Direction))
		}
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return nil, err
		}
		amt, err := amount.Parse(req.Amount)
		if err != nil {
			return nil, apperrors.Wrap(err).WithDetail("transfer", fmt.Sprint(i))
		}
		out = append(out, transfer{direction: req.Direction, token: token, amount: amt})
	}
	return out, nil
}

// transfer executes the transfers in order and stops at the first failure.
// Results for transfers that already executed are returned with the error.
func (o *Orchestrator) transfer(ctx context.Context, r *run, account *Account, transfers []transfer) ([]model.TransferResult, error) {
	var results []model.TransferResult
	for i, t := range transfers {
		if t.amount.Sign() == 0 {
			r.log.Warn("Skipping zero amount transfer", "step", StepAssetTransfer, "token", t.token.Hex(), "direction", t.direction)
			continue
		}
		var (
			hash common.Hash
			err  error
		)
		switch t.direction {
		case model.ToAccount:
			hash, err = o.transferToAccount(ctx, r, account, t)
		case model.FromAccount:
			hash, err = o.transferFromAccount(ctx, r, account, t)
		}
		if hash != (common.Hash{}) {
			r.addTx(hash)
		}
		if err != nil {
			return results, stepError(StepAssetTransfer, err).
				WithDetail("transfer", fmt.Sprint(i)).
				WithDetail("account", account.Address.Hex())
		}
		results = append(results, model.TransferResult{
			Direction: t.direction,
			Token:     t.token.Hex(),
			Amount:    t.amount.String(),
			TxHash:    hash.Hex(),
		})
		r.log.Info("Transfer executed", "step", StepAssetTransfer, "direction", t.direction, "token", t.token.Hex(), "amount", t.amount.String(), "tx", hash.Hex())
	}
	return results, nil
}

// transferToAccount is a plain ERC-20 transfer from the operator EOA.
func (o *Orchestrator) transferToAccount(ctx context.Context, r *run, account *Account, t transfer) (common.Hash, error) {
	data, err := contracts.ERC20.Pack("transfer", account.Address, t.amount)
	if err != nil {
		return common.Hash{}, apperrors.New(apperrors.ErrInternal, "failed to encode transfer", err)
	}
	hash, _, err := chain.SubmitNext(ctx, o.client, r.nonces, chain.TxRequest{To: t.token, Data: data, Value: new(big.Int)})
	if err != nil {
		metrics.Transactions.WithLabelValues("erc20_transfer", "rejected").Inc()
		return common.Hash{}, apperrors.New(apperrors.ErrExecution, "transfer to account rejected", err)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, o.confirmTimeout())
	defer cancel()
	receipt, err := o.client.Confirm(confirmCtx, hash)
	if err != nil {
		metrics.Transactions.WithLabelValues("erc20_transfer", "unconfirmed").Inc()
		return hash, apperrors.New(apperrors.ErrExecution, "transfer to account not confirmed", err).WithDetail("tx", hash.Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.Transactions.WithLabelValues("erc20_transfer", "reverted").Inc()
		return hash, apperrors.New(apperrors.ErrExecution, "transfer to account reverted", nil).WithDetail("tx", hash.Hex())
	}
	metrics.Transactions.WithLabelValues("erc20_transfer", "confirmed").Inc()
	return hash, nil
}

// transferFromAccount moves funds out of the Safe, so it goes through the Safe protocol.
func (o *Orchestrator) transferFromAccount(ctx context.Context, r *run, account *Account, t transfer) (common.Hash, error) {
	data, err := contracts.ERC20.Pack("transfer", o.operator, t.amount)
	if err != nil {
		return common.Hash{}, apperrors.New(apperrors.ErrInternal, "failed to encode transfer", err)
	}
	call := multisend.Call{Operation: multisend.OpCall, To: t.token, Value: new(big.Int), Data: data}
	tx, err := o.protocol.Run(ctx, account.Address, call, o.operator, r.nonces)
	var hash common.Hash
	if tx != nil {
		hash = tx.Submission
	}
	return hash, err
}
