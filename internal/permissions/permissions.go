// Package permissions builds the Roles modifier configuration that limits
// the operator to the two fee-router entry points.
package permissions

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/multisend"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// ExecutionOptions.None in the Roles contract: no value, no delegatecall.
const executionOptionsNone uint8 = 0

// TargetRule is one (contract, function) pair the role may call.
type TargetRule struct {
	Name     string
	Target   common.Address
	Selector [4]byte
}

type Input struct {
	Module           common.Address
	Member           common.Address
	FeeRouterFactory common.Address
	FeeRouterProxy   common.Address
	MultiSend        common.Address
	RoleKey          [32]byte
	DepositSelector  [4]byte
	WithdrawSelector [4]byte
	// Additional targets are accepted for compatibility and never scoped.
	Additional []common.Address
}

// Step is one Safe-level call of the plan together with the module calls it carries.
type Step struct {
	Name  string
	Call  multisend.Call
	Inner []multisend.Call
}

// Plan is the ordered permission configuration for one module.
type Plan struct {
	RoleKey [32]byte
	Member  common.Address
	Module  common.Address
	Rules   [2]TargetRule
	Steps   []Step
}

// Calls returns the Safe-level calls in execution order: assign, scope factory, scope proxy.
func (p *Plan) Calls() []multisend.Call {
	out := make([]multisend.Call, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Call)
	}
	return out
}

// ModuleCalls returns every call the module receives, flattened.
func (p *Plan) ModuleCalls() []multisend.Call {
	var out []multisend.Call
	for _, s := range p.Steps {
		out = append(out, s.Inner...)
	}
	return out
}

// Encode produces the plan. It is a pure function of in.
func Encode(in Input, log *slog.Logger) (*Plan, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if len(in.Additional) > 0 {
		logger.OrDefault(log).Warn("Ignoring additional permission targets", "module", in.Module.Hex(), "count", len(in.Additional))
	}

	rules := [2]TargetRule{
		{Name: "deposit", Target: in.FeeRouterFactory, Selector: in.DepositSelector},
		{Name: "withdraw", Target: in.FeeRouterProxy, Selector: in.WithdrawSelector},
	}

	assignRoles, err := moduleCall("assignRoles", in.Module, in.Member, [][32]byte{in.RoleKey}, []bool{true})
	if err != nil {
		return nil, err
	}
	setDefault, err := moduleCall("setDefaultRole", in.Module, in.Member, in.RoleKey)
	if err != nil {
		return nil, err
	}

	plan := &Plan{RoleKey: in.RoleKey, Member: in.Member, Module: in.Module, Rules: rules}
	assign, err := bundle(in.MultiSend, "assign_role", []multisend.Call{assignRoles, setDefault})
	if err != nil {
		return nil, err
	}
	plan.Steps = append(plan.Steps, assign)

	for _, rule := range rules {
		scope, err := moduleCall("scopeTarget", in.Module, in.RoleKey, rule.Target)
		if err != nil {
			return nil, err
		}
		allow, err := moduleCall("allowFunction", in.Module, in.RoleKey, rule.Target, rule.Selector, executionOptionsNone)
		if err != nil {
			return nil, err
		}
		step, err := bundle(in.MultiSend, "scope_"+rule.Name, []multisend.Call{scope, allow})
		if err != nil {
			return nil, err
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

func validate(in Input) error {
	missing := func(name string) error {
		return apperrors.NewConfiguration(fmt.Sprintf("permission plan requires %s", name))
	}
	zero := common.Address{}
	switch {
	case in.Module == zero:
		return missing("the module address")
	case in.Member == zero:
		return missing("the role member")
	case in.FeeRouterFactory == zero:
		return missing("the fee router factory")
	case in.FeeRouterProxy == zero:
		return missing("the fee router proxy")
	case in.RoleKey == [32]byte{}:
		return missing("a role key")
	case in.DepositSelector == [4]byte{}:
		return missing("the deposit selector")
	case in.WithdrawSelector == [4]byte{}:
		return missing("the withdraw selector")
	}
	return nil
}

func moduleCall(method string, module common.Address, args ...any) (multisend.Call, error) {
	data, err := contracts.Roles.Pack(method, args...)
	if err != nil {
		return multisend.Call{}, apperrors.New(apperrors.ErrInternal, "failed to encode "+method, err)
	}
	return multisend.Call{Operation: multisend.OpCall, To: module, Value: new(big.Int), Data: data}, nil
}

// bundle turns the inner calls into one Safe call. A single call goes to the
// module directly; several go through a delegatecall into MultiSend so the
// module still sees the Safe as msg.sender.
func bundle(multiSendAddr common.Address, name string, inner []multisend.Call) (Step, error) {
	if len(inner) == 1 {
		return Step{Name: name, Call: inner[0], Inner: inner}, nil
	}
	if multiSendAddr == (common.Address{}) {
		return Step{}, apperrors.NewConfiguration("permission plan requires the MultiSend address")
	}
	call, err := multisend.Wrap(multiSendAddr, inner)
	if err != nil {
		return Step{}, apperrors.New(apperrors.ErrInternal, "failed to bundle "+name, err)
	}
	return Step{Name: name, Call: call, Inner: inner}, nil
}
