// Command inspector prints what the onboarding service would do without
// touching the chain: the resolved deployment table, module predictions,
// permission payloads and Safe transaction digests.
package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/GoPolymarket/safeboard/internal/config"
	"github.com/GoPolymarket/safeboard/internal/multisend"
	"github.com/GoPolymarket/safeboard/internal/permissions"
	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/GoPolymarket/safeboard/internal/predictor"
	"github.com/GoPolymarket/safeboard/internal/safe"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var chainID int64
	root := &cobra.Command{
		Use:          "inspector",
		Short:        "Offline views of the onboarding configuration",
		SilenceUsage: true,
	}
	root.PersistentFlags().Int64Var(&chainID, "chain-id", 0, "Chain id to resolve (defaults to chain.chain_id)")

	resolve := func() (config.Resolved, error) {
		cfg, err := config.Load()
		if err != nil {
			return config.Resolved{}, err
		}
		logger.Init(cfg.Log.Level)
		id := chainID
		if id == 0 {
			id = cfg.Chain.ChainID
		}
		return config.Resolve(cfg, id)
	}

	root.AddCommand(
		buildConfigCmd(resolve),
		buildPredictModuleCmd(resolve),
		buildEncodePermissionsCmd(resolve),
		buildDigestCmd(resolve),
	)
	return root
}

type resolver func() (config.Resolved, error)

func buildConfigCmd(resolve resolver) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved deployment table",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolve()
			if err != nil {
				return err
			}
			d := r.Deployment
			return printJSON(cmd, map[string]any{
				"chain_id":             r.ChainID,
				"safe_singleton":       d.SafeSingleton.Hex(),
				"safe_proxy_factory":   d.SafeProxyFactory.Hex(),
				"fallback_handler":     d.FallbackHandler.Hex(),
				"multi_send":           d.MultiSend.Hex(),
				"module_proxy_factory": d.ModuleProxyFactory.Hex(),
				"roles_mastercopy":     d.RolesMastercopy.Hex(),
				"fee_router_factory":   d.FeeRouterFactory.Hex(),
				"role_key":             hexutil.Encode(r.RoleKey[:]),
				"deposit_selector":     hexutil.Encode(r.DepositSelector[:]),
				"withdraw_selector":    hexutil.Encode(r.WithdrawSelector[:]),
				"default_fees":         r.DefaultFees,
				"read_retry_attempts":  r.ReadRetry.Attempts,
				"read_retry_delay":     r.ReadRetry.Delay.String(),
				"confirm_timeout":      r.ConfirmTimeout.String(),
			})
		},
	}
}

func buildPredictModuleCmd(resolve resolver) *cobra.Command {
	var account, saltNonce string
	cmd := &cobra.Command{
		Use:   "predict-module",
		Short: "Predict the Roles module address for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolve()
			if err != nil {
				return err
			}
			acc, err := addressFlag("account", account)
			if err != nil {
				return err
			}
			nonce, err := predictor.ParseSaltNonce(saltNonce)
			if err != nil {
				return err
			}
			dep, err := predictor.PredictModule(predictor.ModuleParams{
				Factory:    r.Deployment.ModuleProxyFactory,
				MasterCopy: r.Deployment.RolesMastercopy,
				Account:    acc,
				SaltNonce:  nonce,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"account":     acc.Hex(),
				"module":      dep.Address.Hex(),
				"salt_nonce":  dep.SaltNonce.String(),
				"initializer": hexutil.Encode(dep.Initializer),
				"deploy_call": callView(dep.Call),
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Safe address (required)")
	cmd.Flags().StringVar(&saltNonce, "salt-nonce", "", "Module salt nonce, decimal or 0x hex (default derived from the account)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func buildEncodePermissionsCmd(resolve resolver) *cobra.Command {
	var module, member, proxy string
	cmd := &cobra.Command{
		Use:   "encode-permissions",
		Short: "Print the permission steps and their MultiSend payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolve()
			if err != nil {
				return err
			}
			mod, err := addressFlag("module", module)
			if err != nil {
				return err
			}
			prx, err := addressFlag("proxy", proxy)
			if err != nil {
				return err
			}
			mem := r.RoleMember
			if member != "" {
				if mem, err = addressFlag("member", member); err != nil {
					return err
				}
			}
			if mem == (common.Address{}) {
				return fmt.Errorf("--member is required when operator.role_member is not configured")
			}

			plan, err := permissions.Encode(permissions.Input{
				Module:           mod,
				Member:           mem,
				FeeRouterFactory: r.Deployment.FeeRouterFactory,
				FeeRouterProxy:   prx,
				MultiSend:        r.Deployment.MultiSend,
				RoleKey:          r.RoleKey,
				DepositSelector:  r.DepositSelector,
				WithdrawSelector: r.WithdrawSelector,
			}, logger.Get())
			if err != nil {
				return err
			}
			payload, err := multisend.Pack(plan.Calls())
			if err != nil {
				return err
			}

			steps := make([]map[string]any, 0, len(plan.Steps))
			for _, s := range plan.Steps {
				inner := make([]map[string]any, 0, len(s.Inner))
				for _, c := range s.Inner {
					inner = append(inner, callView(c))
				}
				steps = append(steps, map[string]any{
					"name":  s.Name,
					"call":  callView(s.Call),
					"inner": inner,
				})
			}
			rules := make([]map[string]string, 0, len(plan.Rules))
			for _, rule := range plan.Rules {
				rules = append(rules, map[string]string{
					"name":     rule.Name,
					"target":   rule.Target.Hex(),
					"selector": hexutil.Encode(rule.Selector[:]),
				})
			}
			return printJSON(cmd, map[string]any{
				"role_key":  hexutil.Encode(plan.RoleKey[:]),
				"member":    plan.Member.Hex(),
				"module":    plan.Module.Hex(),
				"rules":     rules,
				"steps":     steps,
				"multisend": hexutil.Encode(payload),
			})
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "Roles module address (required)")
	cmd.Flags().StringVar(&member, "member", "", "Role member (default operator.role_member)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "Fee-router proxy address (required)")
	_ = cmd.MarkFlagRequired("module")
	_ = cmd.MarkFlagRequired("proxy")
	return cmd
}

func buildDigestCmd(resolve resolver) *cobra.Command {
	var safeAddr, to, data string
	var nonce uint64
	var operation uint8
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Compute the local SafeTx digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolve()
			if err != nil {
				return err
			}
			s, err := addressFlag("safe", safeAddr)
			if err != nil {
				return err
			}
			target, err := addressFlag("to", to)
			if err != nil {
				return err
			}
			if operation > uint8(multisend.OpDelegateCall) {
				return fmt.Errorf("--operation must be 0 (call) or 1 (delegatecall)")
			}
			var payload []byte
			if data != "" {
				if payload, err = hexutil.Decode(data); err != nil {
					return fmt.Errorf("--data: %w", err)
				}
			}

			tx := safe.NewTransaction(s, multisend.Call{
				Operation: multisend.Operation(operation),
				To:        target,
				Data:      payload,
			})
			tx.Nonce = new(big.Int).SetUint64(nonce)
			digest := safe.Digest(big.NewInt(r.ChainID), tx)
			return printJSON(cmd, map[string]any{
				"safe":      s.Hex(),
				"chain_id":  r.ChainID,
				"nonce":     nonce,
				"operation": tx.Operation.String(),
				"digest":    digest.Hex(),
			})
		},
	}
	cmd.Flags().StringVar(&safeAddr, "safe", "", "Safe address (required)")
	cmd.Flags().StringVar(&to, "to", "", "Call target (required)")
	cmd.Flags().StringVar(&data, "data", "", "0x calldata")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "Safe nonce")
	cmd.Flags().Uint8Var(&operation, "operation", 0, "0 = call, 1 = delegatecall")
	_ = cmd.MarkFlagRequired("safe")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func addressFlag(name, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("--%s %q is not an address", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func callView(c multisend.Call) map[string]any {
	value := "0"
	if c.Value != nil {
		value = c.Value.String()
	}
	return map[string]any{
		"operation": c.Operation.String(),
		"to":        c.To.Hex(),
		"value":     value,
		"data":      hexutil.Encode(c.Data),
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
