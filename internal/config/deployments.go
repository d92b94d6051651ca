package config

import (
	"fmt"
	"strconv"

	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
)

// Deployment is the set of externally deployed contracts used on one chain.
type Deployment struct {
	SafeSingleton      common.Address
	SafeProxyFactory   common.Address
	FallbackHandler    common.Address
	MultiSend          common.Address
	ModuleProxyFactory common.Address
	RolesMastercopy    common.Address
	FeeRouterFactory   common.Address
}

var (
	safeL1Singleton    = common.HexToAddress("0xd9Db270c1B5E3Bd161E8c8503c55cEABeE709552")
	safeL2Singleton    = common.HexToAddress("0x3E5c63644E683549055b9Be8653de26E0B4CD36E")
	safeProxyFactory   = common.HexToAddress("0xa6B71E26C5e0845f74c812102Ca7114b6a896AB2")
	fallbackHandler    = common.HexToAddress("0xf48f2B2d2a534e402487b3ee7C18c33Aec0Fe5e4")
	multiSend          = common.HexToAddress("0xA238CBeb142c10Ef7Ad8442C6D1f9E89e07e7761")
	moduleProxyFactory = common.HexToAddress("0x000000000000aDdB49795b0f9bA5BC298cDda236")
	rolesV2Mastercopy  = common.HexToAddress("0x9646fDAD06d3e24444381f44362a3B0eB343D337")
)

func canonical(singleton common.Address) Deployment {
	return Deployment{
		SafeSingleton:      singleton,
		SafeProxyFactory:   safeProxyFactory,
		FallbackHandler:    fallbackHandler,
		MultiSend:          multiSend,
		ModuleProxyFactory: moduleProxyFactory,
		RolesMastercopy:    rolesV2Mastercopy,
	}
}

// knownDeployments holds Safe v1.3.0 canonical and Zodiac singleton addresses.
// The fee router factory is project specific and always comes from config.
var knownDeployments = map[int64]Deployment{
	1:        canonical(safeL1Singleton),
	10:       canonical(safeL2Singleton),
	100:      canonical(safeL2Singleton),
	137:      canonical(safeL2Singleton),
	8453:     canonical(safeL2Singleton),
	42161:    canonical(safeL2Singleton),
	11155111: canonical(safeL2Singleton),
}

// ResolveDeployment overlays overrides on the built-in record for chainID.
// Every address must come from one of the two sources.
func ResolveDeployment(chainID int64, overrides ContractsConfig) (Deployment, error) {
	base := knownDeployments[chainID]

	fields := []struct {
		name     string
		override string
		target   *common.Address
	}{
		{"safe_singleton", overrides.SafeSingleton, &base.SafeSingleton},
		{"safe_proxy_factory", overrides.SafeProxyFactory, &base.SafeProxyFactory},
		{"fallback_handler", overrides.FallbackHandler, &base.FallbackHandler},
		{"multi_send", overrides.MultiSend, &base.MultiSend},
		{"module_proxy_factory", overrides.ModuleProxyFactory, &base.ModuleProxyFactory},
		{"roles_mastercopy", overrides.RolesMastercopy, &base.RolesMastercopy},
		{"fee_router_factory", overrides.FeeRouterFactory, &base.FeeRouterFactory},
	}

	for _, f := range fields {
		if f.override != "" {
			if !common.IsHexAddress(f.override) {
				return Deployment{}, apperrors.NewConfiguration(fmt.Sprintf("contracts.%s is not a valid address", f.name)).
					WithDetail("value", f.override)
			}
			*f.target = common.HexToAddress(f.override)
		}
		if *f.target == (common.Address{}) {
			return Deployment{}, apperrors.New(apperrors.ErrAddressResolution,
				fmt.Sprintf("no %s deployment for chain %d and no override configured", f.name, chainID), nil).
				WithDetail("chain_id", strconv.FormatInt(chainID, 10)).
				WithDetail("contract", f.name)
		}
	}
	return base, nil
}

// KnownChains lists chain ids with a built-in deployment record.
func KnownChains() []int64 {
	out := make([]int64, 0, len(knownDeployments))
	for id := range knownDeployments {
		out = append(out, id)
	}
	return out
}
