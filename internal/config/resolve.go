package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	DefaultReadRetryAttempts = 3
	DefaultRoleLabel         = "FEE_ROUTER_OPERATOR"
	DefaultDepositBps        = 0
	DefaultProfitBps         = 9700
	maxBps                   = 10000
)

// RetryPolicy bounds transient contract-read retries.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// Resolved is the configuration every component consumes. It is computed once
// by Resolve and passed by value.
type Resolved struct {
	ChainID          int64
	Deployment       Deployment
	RoleKey          [32]byte
	RoleMember       common.Address // zero means the operator itself
	DepositSelector  [4]byte
	WithdrawSelector [4]byte
	DefaultFees      FeeDefaults
	ReadRetry        RetryPolicy
	ConfirmTimeout   time.Duration
	FeeSourceURL     string
	FeeSourceTimeout time.Duration
}

type FeeDefaults struct {
	DepositBps uint64
	ProfitBps  uint64
}

// Resolve layers cfg over the built-in defaults for chainID.
func Resolve(cfg *Config, chainID int64) (Resolved, error) {
	if cfg == nil {
		return Resolved{}, apperrors.NewConfiguration("configuration is required")
	}
	if chainID <= 0 {
		return Resolved{}, apperrors.NewConfiguration("chain id is required")
	}

	deployment, err := ResolveDeployment(chainID, cfg.Contracts)
	if err != nil {
		return Resolved{}, err
	}

	roleKey, err := ParseRoleKey(cfg.Permissions.RoleKey)
	if err != nil {
		return Resolved{}, err
	}

	var member common.Address
	if cfg.Operator.RoleMember != "" {
		if !common.IsHexAddress(cfg.Operator.RoleMember) {
			return Resolved{}, apperrors.NewConfiguration("operator.role_member is not a valid address")
		}
		member = common.HexToAddress(cfg.Operator.RoleMember)
	}

	depositSel, err := resolveSelector(contracts.FeeRouterFactory, orDefault(cfg.Permissions.DepositMethod, "deposit"))
	if err != nil {
		return Resolved{}, err
	}
	withdrawSel, err := resolveSelector(contracts.FeeRouterProxy, orDefault(cfg.Permissions.WithdrawMethod, "withdraw"))
	if err != nil {
		return Resolved{}, err
	}

	fees := FeeDefaults{DepositBps: DefaultDepositBps, ProfitBps: DefaultProfitBps}
	if cfg.Fees.DefaultDepositBps != nil {
		fees.DepositBps = *cfg.Fees.DefaultDepositBps
	}
	if cfg.Fees.DefaultProfitBps != nil {
		fees.ProfitBps = *cfg.Fees.DefaultProfitBps
	}
	if fees.DepositBps > maxBps || fees.ProfitBps > maxBps {
		return Resolved{}, apperrors.NewConfiguration("default fee bps must not exceed 10000")
	}

	attempts := cfg.Chain.ReadRetryAttempts
	if attempts <= 0 {
		attempts = DefaultReadRetryAttempts
	}
	if attempts > 10 {
		return Resolved{}, apperrors.NewConfiguration("chain.read_retry_attempts must be between 1 and 10")
	}
	delay := time.Duration(cfg.Chain.ReadRetryDelayMs) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	confirm := time.Duration(cfg.Chain.ConfirmTimeoutSeconds) * time.Second
	if confirm <= 0 {
		confirm = 3 * time.Minute
	}
	feeTimeout := time.Duration(cfg.Fees.TimeoutMs) * time.Millisecond
	if feeTimeout <= 0 {
		feeTimeout = 3 * time.Second
	}

	return Resolved{
		ChainID:          chainID,
		Deployment:       deployment,
		RoleKey:          roleKey,
		RoleMember:       member,
		DepositSelector:  depositSel,
		WithdrawSelector: withdrawSel,
		DefaultFees:      fees,
		ReadRetry:        RetryPolicy{Attempts: uint(attempts), Delay: delay},
		ConfirmTimeout:   confirm,
		FeeSourceURL:     strings.TrimRight(strings.TrimSpace(cfg.Fees.BaseURL), "/"),
		FeeSourceTimeout: feeTimeout,
	}, nil
}

// ParseRoleKey accepts a 0x-prefixed 32-byte hex value or an ASCII label of
// at most 31 bytes, right padded with zeros.
func ParseRoleKey(raw string) ([32]byte, error) {
	var key [32]byte
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultRoleLabel
	}
	if strings.HasPrefix(raw, "0x") && len(raw) == 66 {
		b, err := hexutil.Decode(raw)
		if err != nil {
			return key, apperrors.NewConfiguration("permissions.role_key is not valid hex")
		}
		copy(key[:], b)
		return key, nil
	}
	if len(raw) > 31 {
		return key, apperrors.NewConfiguration("permissions.role_key label must be at most 31 bytes")
	}
	copy(key[:], raw)
	return key, nil
}

func resolveSelector(parsed abi.ABI, method string) ([4]byte, error) {
	if strings.Contains(method, "(") {
		var sel [4]byte
		copy(sel[:], crypto.Keccak256([]byte(strings.ReplaceAll(method, " ", "")))[:4])
		return sel, nil
	}
	sel, err := contracts.Selector(parsed, method)
	if err != nil {
		return sel, apperrors.NewConfiguration(fmt.Sprintf("unknown permission method %q", method))
	}
	return sel, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
