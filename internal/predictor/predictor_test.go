package predictor

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/GoPolymarket/safeboard/internal/chain/chaintest"
	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	factory    = common.HexToAddress("0x000000000000aDdB49795b0f9bA5BC298cDda236")
	masterCopy = common.HexToAddress("0x9646fDAD06d3e24444381f44362a3B0eB343D337")
	account    = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestPredictModuleIsPure(t *testing.T) {
	p := ModuleParams{Factory: factory, MasterCopy: masterCopy, Account: account, SaltNonce: big.NewInt(42)}
	a, err := PredictModule(p)
	require.NoError(t, err)
	b, err := PredictModule(p)
	require.NoError(t, err)
	assert.Equal(t, a.Address, b.Address)
	assert.Equal(t, a.Call.Data, b.Call.Data)

	p.SaltNonce = big.NewInt(43)
	c, err := PredictModule(p)
	require.NoError(t, err)
	assert.NotEqual(t, a.Address, c.Address)

	p.SaltNonce = big.NewInt(42)
	p.Account = common.HexToAddress("0x4444444444444444444444444444444444444444")
	d, err := PredictModule(p)
	require.NoError(t, err)
	assert.NotEqual(t, a.Address, d.Address)
}

func TestPredictModuleMatchesCreate2(t *testing.T) {
	nonce := big.NewInt(7)
	dep, err := PredictModule(ModuleParams{Factory: factory, MasterCopy: masterCopy, Account: account, SaltNonce: nonce})
	require.NoError(t, err)

	var word [32]byte
	nonce.FillBytes(word[:])
	salt := crypto.Keccak256Hash(crypto.Keccak256(dep.Initializer), word[:])

	code := append(append(append([]byte{}, proxyPrefix...), masterCopy.Bytes()...), proxySuffix...)
	require.Len(t, code, 54)
	assert.Equal(t, crypto.CreateAddress2(factory, salt, crypto.Keccak256(code)), dep.Address)
}

func TestPredictModuleDeploymentCall(t *testing.T) {
	nonce := big.NewInt(9)
	dep, err := PredictModule(ModuleParams{Factory: factory, MasterCopy: masterCopy, Account: account, SaltNonce: nonce})
	require.NoError(t, err)
	assert.Equal(t, factory, dep.Call.To)

	method, err := contracts.ModuleProxyFactory.MethodById(dep.Call.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "deployModule", method.Name)
	args, err := method.Inputs.Unpack(dep.Call.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, masterCopy, args[0].(common.Address))
	assert.Equal(t, dep.Initializer, args[1].([]byte))
	assert.Equal(t, 0, nonce.Cmp(args[2].(*big.Int)))

	setUp, err := contracts.Roles.MethodById(dep.Initializer[:4])
	require.NoError(t, err)
	assert.Equal(t, "setUp", setUp.Name)
	params, err := setUp.Inputs.Unpack(dep.Initializer[4:])
	require.NoError(t, err)
	encoded := params[0].([]byte)
	require.Len(t, encoded, 96)
	for i := 0; i < 3; i++ {
		assert.Equal(t, account.Bytes(), encoded[i*32+12:(i+1)*32])
	}
}

func TestDefaultSaltNonce(t *testing.T) {
	assert.Equal(t, DefaultSaltNonce(account), DefaultSaltNonce(account))
	assert.NotEqual(t, DefaultSaltNonce(account), DefaultSaltNonce(factory))

	withDefault, err := PredictModule(ModuleParams{Factory: factory, MasterCopy: masterCopy, Account: account})
	require.NoError(t, err)
	explicit, err := PredictModule(ModuleParams{Factory: factory, MasterCopy: masterCopy, Account: account, SaltNonce: DefaultSaltNonce(account)})
	require.NoError(t, err)
	assert.Equal(t, explicit.Address, withDefault.Address)
}

func TestPredictModuleRequiresAddresses(t *testing.T) {
	_, err := PredictModule(ModuleParams{Factory: factory, Account: account})
	assert.True(t, apperrors.IsType(err, apperrors.ErrConfiguration))

	_, err = PredictModule(ModuleParams{Factory: factory, MasterCopy: masterCopy, Account: account, SaltNonce: big.NewInt(-1)})
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
}

func TestPredictFeeRouterProxy(t *testing.T) {
	feeFactory := common.HexToAddress("0x5555555555555555555555555555555555555555")
	proxy := common.HexToAddress("0x6666666666666666666666666666666666666666")
	f := chaintest.New(137, common.Address{})
	var got []any
	f.Handle("predictProxyAddress", func(call chaintest.ReadCall) ([]any, error) {
		got = call.Args
		return []any{proxy}, nil
	})

	addr, err := PredictFeeRouterProxy(context.Background(), f, FeeRouterParams{Factory: feeFactory, Client: account, DepositBps: 0, ProfitBps: 9700})
	require.NoError(t, err)
	assert.Equal(t, proxy, addr)
	require.Len(t, got, 3)
	assert.Equal(t, account, got[0])
	assert.Equal(t, int64(9700), got[2].(*big.Int).Int64())
}

func TestPredictFeeRouterProxyZeroResult(t *testing.T) {
	f := chaintest.New(137, common.Address{})
	f.Handle("predictProxyAddress", chaintest.Returns(common.Address{}))

	_, err := PredictFeeRouterProxy(context.Background(), f, FeeRouterParams{Factory: factory, Client: account})
	assert.True(t, apperrors.IsType(err, apperrors.ErrUpstream))

	_, err = PredictFeeRouterProxy(context.Background(), f, FeeRouterParams{Client: account})
	assert.True(t, apperrors.IsType(err, apperrors.ErrAddressResolution))
}

func TestParseSaltNonce(t *testing.T) {
	got, err := ParseSaltNonce("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseSaltNonce("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Int64())

	got, err = ParseSaltNonce("0x2a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Int64())

	for _, raw := range []string{"-1", "0x-1", "0b101", "0o17", "1_000", "1.5", "0x1" + strings.Repeat("0", 64)} {
		_, err := ParseSaltNonce(raw)
		assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest), raw)
	}
}
