package service

import (
	"context"
	"math/big"

	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/feeterms"
	"github.com/GoPolymarket/safeboard/internal/model"
	"github.com/GoPolymarket/safeboard/internal/multisend"
	"github.com/GoPolymarket/safeboard/internal/permissions"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/predictor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"
)

type permissionParams struct {
	saltNonce *big.Int // nil draws a fresh salt unless deterministic
	// deterministic selects the account-derived salt when saltNonce is nil.
	deterministic bool
	member        common.Address
	additional    []common.Address
}

func (o *Orchestrator) parsePermissions(req model.PermissionsRequest) (permissionParams, error) {
	var p permissionParams
	var err error
	if p.saltNonce, err = predictor.ParseSaltNonce(req.SaltNonce); err != nil {
		return p, err
	}
	p.deterministic = req.DeterministicSalt

	switch {
	case req.RoleMember != "":
		if p.member, err = parseAddress("role_member", req.RoleMember); err != nil {
			return p, err
		}
	case o.cfg.RoleMember != (common.Address{}):
		p.member = o.cfg.RoleMember
	default:
		p.member = o.operator
	}

	for _, raw := range req.AdditionalTargets {
		addr, err := parseAddress("additional_targets", raw)
		if err != nil {
			return p, err
		}
		p.additional = append(p.additional, addr)
	}
	return p, nil
}

// setupPermissions predicts the module and fee router proxy, encodes the
// permission plan and executes deployModule, the three plan calls and
// enableModule as one MultiSend Safe transaction.
func (o *Orchestrator) setupPermissions(ctx context.Context, r *run, account *Account, p permissionParams, res *model.OnboardResult) error {
	d := o.cfg.Deployment

	salt := p.saltNonce
	if salt == nil && !p.deterministic {
		salt = o.newModuleSalt()
	}
	module, err := predictor.PredictModule(predictor.ModuleParams{
		Factory:    d.ModuleProxyFactory,
		MasterCopy: d.RolesMastercopy,
		Account:    account.Address,
		SaltNonce:  salt,
	})
	if err != nil {
		return stepError(StepPredictModule, err)
	}
	res.Module = module.Address.Hex()
	res.ModuleSaltNonce = module.SaltNonce.String()
	r.rec.Module = res.Module
	r.log.Info("Module predicted", "step", StepPredictModule, "account", account.Address.Hex(), "module", res.Module)

	// Read-only derivations; both finish before anything is assembled.
	var terms feeterms.Terms
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		terms = feeterms.Resolve(gctx, o.fees, account.Address, o.cfg.DefaultFees, r.log)
		return nil
	})
	g.Go(func() error {
		if err := o.protocol.CheckSoleOwner(gctx, account.Address, o.operator); err != nil {
			return stepError(StepOwnerPrecheck, err).WithDetail("account", account.Address.Hex())
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	res.FeeTerms = &model.FeeTerms{DepositBps: terms.DepositBps, ProfitBps: terms.ProfitBps, Source: terms.Source}

	proxy, err := predictor.PredictFeeRouterProxy(ctx, o.protocol.Reader(), predictor.FeeRouterParams{
		Factory:    d.FeeRouterFactory,
		Client:     account.Address,
		DepositBps: terms.DepositBps,
		ProfitBps:  terms.ProfitBps,
	})
	if err != nil {
		return stepError(StepPredictProxy, err).WithDetail("account", account.Address.Hex()).WithDetail("module", res.Module)
	}
	res.FeeRouterProxy = proxy.Hex()
	r.log.Info("Fee router proxy predicted", "step", StepPredictProxy, "proxy", res.FeeRouterProxy,
		"deposit_bps", terms.DepositBps, "profit_bps", terms.ProfitBps, "fee_source", terms.Source)

	plan, err := permissions.Encode(permissions.Input{
		Module:           module.Address,
		Member:           p.member,
		FeeRouterFactory: d.FeeRouterFactory,
		FeeRouterProxy:   proxy,
		MultiSend:        d.MultiSend,
		RoleKey:          o.cfg.RoleKey,
		DepositSelector:  o.cfg.DepositSelector,
		WithdrawSelector: o.cfg.WithdrawSelector,
		Additional:       p.additional,
	}, r.log)
	if err != nil {
		return stepError(StepEncodePermissions, err)
	}
	res.RoleKey = hexutil.Encode(plan.RoleKey[:])
	res.RoleMember = plan.Member.Hex()

	enable, err := contracts.Safe.Pack("enableModule", module.Address)
	if err != nil {
		return stepError(StepEncodePermissions, apperrors.New(apperrors.ErrInternal, "failed to encode enableModule", err))
	}

	batch := make([]multisend.Call, 0, 5)
	batch = append(batch, module.Call)
	batch = append(batch, plan.Calls()...)
	batch = append(batch, multisend.Call{Operation: multisend.OpCall, To: account.Address, Value: new(big.Int), Data: enable})

	wrapped, err := multisend.Wrap(d.MultiSend, batch)
	if err != nil {
		return stepError(StepExecuteBatch, apperrors.New(apperrors.ErrInternal, "failed to encode batch", err))
	}

	r.log.Info("Executing permission batch", "step", StepExecuteBatch, "calls", len(batch))
	tx, err := o.protocol.Run(ctx, account.Address, wrapped, o.operator, r.nonces)
	if tx != nil && tx.Submission != (common.Hash{}) {
		r.addTx(tx.Submission)
		res.Transactions.PermissionSetup = tx.Submission.Hex()
	}
	if tx != nil && tx.Digest != (common.Hash{}) {
		res.Transactions.PermissionDigest = tx.Digest.Hex()
	}
	if err != nil {
		return stepError(StepExecuteBatch, err).WithDetail("account", account.Address.Hex()).WithDetail("module", res.Module)
	}
	r.log.Info("Permissions configured", "step", StepExecuteBatch, "account", account.Address.Hex(), "module", res.Module, "tx", res.Transactions.PermissionSetup)
	return nil
}
