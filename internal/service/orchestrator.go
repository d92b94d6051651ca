// Package service sequences an onboarding run: Safe deployment, module
// prediction, permission batch execution and asset transfers.
package service

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/GoPolymarket/safeboard/internal/config"
	"github.com/GoPolymarket/safeboard/internal/feeterms"
	"github.com/GoPolymarket/safeboard/internal/manager"
	"github.com/GoPolymarket/safeboard/internal/model"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/GoPolymarket/safeboard/internal/pkg/metrics"
	"github.com/GoPolymarket/safeboard/internal/predictor"
	"github.com/GoPolymarket/safeboard/internal/repository"
	"github.com/GoPolymarket/safeboard/internal/safe"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Step names reported on failures.
const (
	StepDeployAccount     = "deploy_account"
	StepPredictModule     = "predict_module"
	StepOwnerPrecheck     = "owner_precheck"
	StepPredictProxy      = "predict_fee_router_proxy"
	StepEncodePermissions = "encode_permissions"
	StepExecuteBatch      = "execute_batch"
	StepAssetTransfer     = "asset_transfer"
)

// Account is a deployed single-owner Safe.
type Account struct {
	Address  common.Address
	Owner    common.Address
	DeployTx common.Hash
}

// Session carries the Account of one client between orchestrator calls.
// The caller owns it; the orchestrator never keeps it.
type Session struct {
	Account *Account
}

// RunRecorder receives a record of every finished run.
type RunRecorder interface {
	Record(rec *model.RunRecord)
}

type Options struct {
	Fees     feeterms.Source
	Lock     repository.OperatorLock
	Recorder RunRecorder
	Log      *slog.Logger
}

type Orchestrator struct {
	client   chain.Client
	cfg      config.Resolved
	protocol *safe.Protocol
	operator common.Address
	fees     feeterms.Source
	lock     repository.OperatorLock
	recorder RunRecorder
	log      *slog.Logger

	newSafeSalt   func() *big.Int
	newModuleSalt func() *big.Int
	now           func() time.Time
}

func NewOrchestrator(client chain.Client, cfg config.Resolved, opts Options) (*Orchestrator, error) {
	if client == nil {
		return nil, apperrors.NewConfiguration("chain client is required")
	}
	operator := client.From()
	if operator == (common.Address{}) {
		return nil, apperrors.NewConfiguration("operator signing capability is required")
	}
	if cfg.ChainID != 0 && client.ChainID().Int64() != cfg.ChainID {
		return nil, apperrors.NewConfiguration("chain client and resolved configuration disagree on chain id")
	}

	log := logger.OrDefault(opts.Log)
	lock := opts.Lock
	if lock == nil {
		lock = repository.NewLocalOperatorLock()
	}

	return &Orchestrator{
		client:        client,
		cfg:           cfg,
		protocol:      safe.NewProtocol(client, cfg, log),
		operator:      operator,
		fees:          opts.Fees,
		lock:          lock,
		recorder:      opts.Recorder,
		log:           log,
		newSafeSalt:   randomSalt,
		newModuleSalt: randomSalt,
		now:           time.Now,
	}, nil
}

// Operator is the address that owns every Safe and submits every transaction.
func (o *Orchestrator) Operator() common.Address {
	return o.operator
}

// Onboard deploys (or reuses) the Account, installs and scopes the Roles
// module in one Safe transaction and performs the requested transfers.
// On failure the error names the step; session keeps whatever Account exists.
func (o *Orchestrator) Onboard(ctx context.Context, session *Session, req model.OnboardRequest) (res *model.OnboardResult, err error) {
	if session == nil {
		session = &Session{}
	}
	perm, err := o.parsePermissions(req.PermissionsRequest)
	if err != nil {
		return nil, err
	}
	transfers, err := parseTransfers(req.Transfers)
	if err != nil {
		return nil, err
	}
	if req.Owner != "" {
		owner, err := parseAddress("owner", req.Owner)
		if err != nil {
			return nil, err
		}
		if owner != o.operator {
			return nil, apperrors.NewConfiguration("the Safe owner must be the operator signing key").
				WithDetail("owner", owner.Hex()).
				WithDetail("operator", o.operator.Hex())
		}
	}
	if !req.ReuseAccount && strings.TrimSpace(req.Account) != "" {
		return nil, apperrors.NewInvalidRequest("account is only accepted together with reuse_account").
			WithDetail("field", "account")
	}
	var reuse *Account
	if req.ReuseAccount {
		reuse, err = o.reusableAccount(session, req.Account)
		if err != nil {
			return nil, err
		}
	}

	r, release, err := o.begin(ctx, model.RunKindOnboard)
	if err != nil {
		return nil, err
	}
	defer release()
	defer func() { o.finish(r, err) }()

	res = &model.OnboardResult{RunID: r.id}

	account := reuse
	if account == nil {
		account, err = o.deployAccount(ctx, r)
		if err != nil {
			return res, err
		}
		res.Transactions.AccountDeployment = account.DeployTx.Hex()
	}
	session.Account = account
	res.Account = account.Address.Hex()
	r.rec.Account = res.Account

	if err = o.setupPermissions(ctx, r, account, perm, res); err != nil {
		return res, err
	}

	res.Transactions.AssetTransfers, err = o.transfer(ctx, r, account, transfers)
	return res, err
}

// SetupPermissions re-runs the permission batch for the session's Account.
// It is the recovery path after a failed onboarding and performs no dedup:
// each call executes a new Safe transaction.
func (o *Orchestrator) SetupPermissions(ctx context.Context, session *Session, req model.PermissionsRequest) (res *model.OnboardResult, err error) {
	if session == nil || session.Account == nil {
		return nil, apperrors.NewInvalidRequest("an existing account is required")
	}
	perm, err := o.parsePermissions(req)
	if err != nil {
		return nil, err
	}

	r, release, err := o.begin(ctx, model.RunKindPermissions)
	if err != nil {
		return nil, err
	}
	defer release()
	defer func() { o.finish(r, err) }()

	account := session.Account
	r.rec.Account = account.Address.Hex()
	res = &model.OnboardResult{RunID: r.id, Account: account.Address.Hex()}
	err = o.setupPermissions(ctx, r, account, perm, res)
	return res, err
}

// Transfer moves tokens between the operator and the session's Account.
func (o *Orchestrator) Transfer(ctx context.Context, session *Session, reqs []model.TransferRequest) (out []model.TransferResult, err error) {
	if session == nil || session.Account == nil {
		return nil, apperrors.NewInvalidRequest("an existing account is required")
	}
	transfers, err := parseTransfers(reqs)
	if err != nil {
		return nil, err
	}
	if len(transfers) == 0 {
		return nil, apperrors.NewInvalidRequest("at least one transfer is required")
	}

	r, release, err := o.begin(ctx, model.RunKindTransfers)
	if err != nil {
		return nil, err
	}
	defer release()
	defer func() { o.finish(r, err) }()

	r.rec.Account = session.Account.Address.Hex()
	return o.transfer(ctx, r, session.Account, transfers)
}

// PredictModule reports where the Roles module for account would be deployed.
func (o *Orchestrator) PredictModule(account common.Address, saltNonce string) (*model.ModulePrediction, error) {
	nonce, err := predictor.ParseSaltNonce(saltNonce)
	if err != nil {
		return nil, err
	}
	dep, err := predictor.PredictModule(predictor.ModuleParams{
		Factory:    o.cfg.Deployment.ModuleProxyFactory,
		MasterCopy: o.cfg.Deployment.RolesMastercopy,
		Account:    account,
		SaltNonce:  nonce,
	})
	if err != nil {
		return nil, err
	}
	return &model.ModulePrediction{
		Account:    account.Hex(),
		Module:     dep.Address.Hex(),
		Factory:    dep.Factory.Hex(),
		MasterCopy: dep.MasterCopy.Hex(),
		SaltNonce:  dep.SaltNonce.String(),
	}, nil
}

// run is the per-call state. Its nonce manager is never shared.
type run struct {
	id      string
	nonces  *manager.NonceManager
	log     *slog.Logger
	rec     model.RunRecord
	txs     []string
	started time.Time
}

func (r *run) addTx(hash common.Hash) {
	r.txs = append(r.txs, hash.Hex())
}

func (o *Orchestrator) begin(ctx context.Context, kind string) (*run, func(), error) {
	release, err := o.lock.Acquire(ctx, o.operator.Hex())
	if err != nil {
		return nil, nil, err
	}
	id := uuid.NewString()
	log := o.log.With("run_id", id, "kind", kind)
	started := o.now().UTC()
	log.Info("Run started", "operator", o.operator.Hex())
	return &run{
		id:      id,
		nonces:  manager.NewNonceManager(o.client, log),
		log:     log,
		started: started,
		rec: model.RunRecord{
			ID:        id,
			Kind:      kind,
			ChainID:   o.cfg.ChainID,
			StartedAt: started,
		},
	}, release, nil
}

func (o *Orchestrator) finish(r *run, err error) {
	r.rec.FinishedAt = o.now().UTC()
	r.rec.TxHashes = strings.Join(r.txs, ",")
	if err != nil {
		appErr := apperrors.Wrap(err)
		r.rec.Status = model.RunStatusFailed
		r.rec.Step = appErr.Step
		r.rec.ErrorCode = string(appErr.Type)
		r.rec.ErrorMessage = appErr.Error()
		metrics.OnboardingRuns.WithLabelValues(model.RunStatusFailed).Inc()
		if appErr.Step != "" {
			metrics.StepFailures.WithLabelValues(appErr.Step).Inc()
		}
		r.log.Error("Run failed", "step", appErr.Step, "code", appErr.Type, "error", err)
	} else {
		r.rec.Status = model.RunStatusSucceeded
		metrics.OnboardingRuns.WithLabelValues(model.RunStatusSucceeded).Inc()
		r.log.Info("Run finished", "duration", r.rec.FinishedAt.Sub(r.started).String())
	}
	if o.recorder != nil {
		o.recorder.Record(&r.rec)
	}
}

func (o *Orchestrator) confirmTimeout() time.Duration {
	if o.cfg.ConfirmTimeout > 0 {
		return o.cfg.ConfirmTimeout
	}
	return 3 * time.Minute
}

func (o *Orchestrator) reusableAccount(session *Session, raw string) (*Account, error) {
	if raw == "" {
		if session.Account == nil {
			return nil, apperrors.NewInvalidRequest("reuse_account requires an account address")
		}
		return session.Account, nil
	}
	addr, err := parseAddress("account", raw)
	if err != nil {
		return nil, err
	}
	if session.Account != nil && session.Account.Address == addr {
		return session.Account, nil
	}
	return &Account{Address: addr, Owner: o.operator}, nil
}

// randomSalt draws a 128 bit salt nonce from a random uuid.
func randomSalt() *big.Int {
	id := uuid.New()
	return new(big.Int).SetBytes(id[:])
}

func stepError(step string, err error) *apperrors.AppError {
	return apperrors.Wrap(err).WithStep(step)
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, apperrors.NewInvalidRequest(field+" is not a valid address").WithDetail("field", field)
	}
	return common.HexToAddress(raw), nil
}
