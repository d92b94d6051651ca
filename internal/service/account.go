package service

import (
	"context"
	"math/big"
	"strconv"

	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// deployAccount creates a fresh 1-of-1 Safe owned by the operator. Every
// call deploys a new Safe; the address is only known from the receipt.
func (o *Orchestrator) deployAccount(ctx context.Context, r *run) (*Account, error) {
	d := o.cfg.Deployment
	if d.SafeSingleton == (common.Address{}) || d.SafeProxyFactory == (common.Address{}) {
		return nil, stepError(StepDeployAccount, apperrors.New(apperrors.ErrAddressResolution, "Safe singleton or proxy factory is not configured", nil))
	}

	initializer, err := contracts.Safe.Pack("setup",
		[]common.Address{o.operator}, big.NewInt(1),
		common.Address{}, []byte{},
		d.FallbackHandler,
		common.Address{}, new(big.Int), common.Address{})
	if err != nil {
		return nil, stepError(StepDeployAccount, apperrors.New(apperrors.ErrInternal, "failed to encode Safe setup", err))
	}
	saltNonce := o.newSafeSalt()
	data, err := contracts.SafeProxyFactory.Pack("createProxyWithNonce", d.SafeSingleton, initializer, saltNonce)
	if err != nil {
		return nil, stepError(StepDeployAccount, apperrors.New(apperrors.ErrInternal, "failed to encode createProxyWithNonce", err))
	}

	r.log.Info("Deploying account", "step", StepDeployAccount, "factory", d.SafeProxyFactory.Hex())
	hash, _, err := chain.SubmitNext(ctx, o.client, r.nonces, chain.TxRequest{To: d.SafeProxyFactory, Data: data, Value: new(big.Int)})
	if err != nil {
		metrics.Transactions.WithLabelValues("safe_deploy", "rejected").Inc()
		return nil, stepError(StepDeployAccount, apperrors.New(apperrors.ErrAccountCreation, "Safe deployment was rejected", err))
	}
	r.addTx(hash)

	confirmCtx, cancel := context.WithTimeout(ctx, o.confirmTimeout())
	defer cancel()
	receipt, err := o.client.Confirm(confirmCtx, hash)
	if err != nil {
		metrics.Transactions.WithLabelValues("safe_deploy", "unconfirmed").Inc()
		return nil, stepError(StepDeployAccount, apperrors.New(apperrors.ErrAccountCreation, "Safe deployment not confirmed", err)).
			WithDetail("tx", hash.Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.Transactions.WithLabelValues("safe_deploy", "reverted").Inc()
		return nil, stepError(StepDeployAccount, apperrors.New(apperrors.ErrAccountCreation, "Safe deployment reverted", nil)).
			WithDetail("tx", hash.Hex())
	}

	addr, ok := accountFromReceipt(receipt, d.SafeProxyFactory)
	if !ok {
		metrics.Transactions.WithLabelValues("safe_deploy", "unparsed").Inc()
		return nil, stepError(StepDeployAccount, apperrors.New(apperrors.ErrAccountCreation, "no ProxyCreation event in deployment receipt", nil)).
			WithDetail("tx", hash.Hex()).
			WithDetail("status", strconv.FormatUint(receipt.Status, 10)).
			WithDetail("logs", strconv.Itoa(len(receipt.Logs)))
	}
	metrics.Transactions.WithLabelValues("safe_deploy", "confirmed").Inc()
	r.log.Info("Account deployed", "step", StepDeployAccount, "account", addr.Hex(), "tx", hash.Hex())

	return &Account{Address: addr, Owner: o.operator, DeployTx: hash}, nil
}

// accountFromReceipt finds the new proxy in the factory's ProxyCreation
// event. Factories before 1.4 log it as data, later ones index it.
func accountFromReceipt(receipt *types.Receipt, factory common.Address) (common.Address, bool) {
	event := contracts.SafeProxyFactory.Events["ProxyCreation"]
	for _, l := range receipt.Logs {
		if l.Address != factory || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		if len(l.Topics) > 1 {
			return common.BytesToAddress(l.Topics[1].Bytes()), true
		}
		values, err := event.Inputs.Unpack(l.Data)
		if err != nil || len(values) == 0 {
			continue
		}
		if addr, ok := values[0].(common.Address); ok && addr != (common.Address{}) {
			return addr, true
		}
	}
	if receipt.ContractAddress != (common.Address{}) {
		return receipt.ContractAddress, true
	}
	return common.Address{}, false
}
