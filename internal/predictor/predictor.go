// Package predictor derives addresses before the contracts exist.
package predictor

import (
	"context"
	"math/big"
	"strings"

	"github.com/GoPolymarket/safeboard/internal/amount"
	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/multisend"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-1167 minimal proxy creation code, split around the 20-byte master copy.
var (
	proxyPrefix = hexutil.MustDecode("0x602d8060093d393df3363d3d373d3d3d363d73")
	proxySuffix = hexutil.MustDecode("0x5af43d82803e903d91602b57fd5bf3")
)

const saltNonceDomain = "safeboard.roles"

var setUpParams = func() abi.Arguments {
	addressT, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: addressT}, {Type: addressT}, {Type: addressT}}
}()

type ModuleParams struct {
	Factory    common.Address
	MasterCopy common.Address
	// Account is the module's owner, avatar and target.
	Account   common.Address
	SaltNonce *big.Int
}

// ModuleDeployment is a predicted module address and the call that deploys it there.
type ModuleDeployment struct {
	Address     common.Address
	MasterCopy  common.Address
	Factory     common.Address
	Initializer []byte
	SaltNonce   *big.Int
	Call        multisend.Call
}

// DefaultSaltNonce derives a stable salt nonce for account.
func DefaultSaltNonce(account common.Address) *big.Int {
	return new(big.Int).SetBytes(crypto.Keccak256([]byte(saltNonceDomain), account.Bytes()))
}

// ParseSaltNonce reads a caller supplied salt nonce (decimal or 0x hex).
// An empty string yields nil, leaving the choice of salt to the caller.
func ParseSaltNonce(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	nonce, err := amount.Parse(raw)
	if err != nil {
		return nil, apperrors.NewInvalidRequest("salt_nonce must be a non-negative integer").WithDetail("field", "salt_nonce")
	}
	if nonce.BitLen() > 256 {
		return nil, apperrors.NewInvalidRequest("salt_nonce must fit in uint256").WithDetail("field", "salt_nonce")
	}
	return nonce, nil
}

// PredictModule computes the CREATE2 address the module proxy factory deploys to.
// It performs no I/O.
func PredictModule(p ModuleParams) (*ModuleDeployment, error) {
	zero := common.Address{}
	if p.Factory == zero || p.MasterCopy == zero || p.Account == zero {
		return nil, apperrors.NewConfiguration("module prediction requires factory, master copy and account")
	}
	saltNonce := p.SaltNonce
	if saltNonce == nil {
		saltNonce = DefaultSaltNonce(p.Account)
	}
	if saltNonce.Sign() < 0 || saltNonce.BitLen() > 256 {
		return nil, apperrors.NewInvalidRequest("salt nonce must fit in uint256")
	}

	initParams, err := setUpParams.Pack(p.Account, p.Account, p.Account)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to encode module init params", err)
	}
	initializer, err := contracts.Roles.Pack("setUp", initParams)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to encode setUp", err)
	}

	salt := crypto.Keccak256Hash(crypto.Keccak256(initializer), math.U256Bytes(new(big.Int).Set(saltNonce)))
	initCode := make([]byte, 0, len(proxyPrefix)+common.AddressLength+len(proxySuffix))
	initCode = append(initCode, proxyPrefix...)
	initCode = append(initCode, p.MasterCopy.Bytes()...)
	initCode = append(initCode, proxySuffix...)
	address := crypto.CreateAddress2(p.Factory, salt, crypto.Keccak256(initCode))

	data, err := contracts.ModuleProxyFactory.Pack("deployModule", p.MasterCopy, initializer, saltNonce)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "failed to encode deployModule", err)
	}

	return &ModuleDeployment{
		Address:     address,
		MasterCopy:  p.MasterCopy,
		Factory:     p.Factory,
		Initializer: initializer,
		SaltNonce:   new(big.Int).Set(saltNonce),
		Call:        multisend.Call{Operation: multisend.OpCall, To: p.Factory, Value: new(big.Int), Data: data},
	}, nil
}

type FeeRouterParams struct {
	Factory    common.Address
	Client     common.Address
	DepositBps uint64
	ProfitBps  uint64
}

// PredictFeeRouterProxy asks the fee router factory where the client's proxy
// for these terms lives. The factory is the only authority for this address.
func PredictFeeRouterProxy(ctx context.Context, reader chain.Reader, p FeeRouterParams) (common.Address, error) {
	if p.Factory == (common.Address{}) {
		return common.Address{}, apperrors.New(apperrors.ErrAddressResolution, "fee router factory address is not configured", nil)
	}
	out, err := reader.Read(ctx, p.Factory, contracts.FeeRouterFactory, "predictProxyAddress",
		p.Client, new(big.Int).SetUint64(p.DepositBps), new(big.Int).SetUint64(p.ProfitBps))
	if err != nil {
		return common.Address{}, err
	}
	proxy, ok := out[0].(common.Address)
	if !ok || proxy == (common.Address{}) {
		return common.Address{}, apperrors.New(apperrors.ErrUpstream, "fee router factory returned no proxy address", nil).
			WithDetail("factory", p.Factory.Hex()).
			WithDetail("client", p.Client.Hex())
	}
	return proxy, nil
}
