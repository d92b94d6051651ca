package chain_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/GoPolymarket/safeboard/internal/contracts"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/safe"
	"github.com/GoPolymarket/safeboard/internal/signer"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simulatedChainID is fixed by the go-ethereum simulated backend.
const simulatedChainID = 1337

var (
	// sink is a contract whose code is a single STOP.
	sink  = common.HexToAddress("0x5150000000000000000000000000000000000001")
	empty = common.HexToAddress("0x5150000000000000000000000000000000000002")
)

func newSimulatedClient(t *testing.T) (*chain.EthClient, *simulated.Backend) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := signer.NewSigner(hexutil.Encode(crypto.FromECDSA(key)))
	require.NoError(t, err)

	backend := simulated.NewBackend(types.GenesisAlloc{
		s.Address(): {Balance: new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))},
		sink:        {Balance: new(big.Int), Code: []byte{0x00}},
	})
	t.Cleanup(func() { _ = backend.Close() })

	client, err := chain.NewEthClient(context.Background(), backend.Client(), s, simulatedChainID)
	require.NoError(t, err)
	return client, backend
}

func TestNewEthClientRejectsChainMismatch(t *testing.T) {
	backend := simulated.NewBackend(types.GenesisAlloc{})
	t.Cleanup(func() { _ = backend.Close() })

	_, err := chain.NewEthClient(context.Background(), backend.Client(), nil, 137)
	assert.True(t, apperrors.IsType(err, apperrors.ErrConfiguration))
}

func TestEthClientReadWithoutCodeIsTransient(t *testing.T) {
	client, _ := newSimulatedClient(t)

	_, err := client.Read(context.Background(), empty, contracts.Safe, "nonce")
	require.Error(t, err)
	assert.ErrorIs(t, err, bind.ErrNoCode)
	assert.True(t, safe.IsTransient(err))

	// Code without the method answers with no data.
	_, err = client.Read(context.Background(), sink, contracts.Safe, "nonce")
	require.Error(t, err)
	assert.True(t, safe.IsTransient(err))
}

func TestEthClientSubmitPinnedNonceAndConfirm(t *testing.T) {
	client, backend := newSimulatedClient(t)
	ctx := context.Background()

	nonce, err := client.PendingNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)

	pinned := uint64(0)
	hash, err := client.Submit(ctx, chain.TxRequest{To: sink, Value: big.NewInt(1), Nonce: &pinned})
	require.NoError(t, err)

	next, err := client.PendingNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)

	backend.Commit()

	confirmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	receipt, err := client.Confirm(confirmCtx, hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, hash, receipt.TxHash)

	// Reusing a spent nonce is rejected by the node.
	_, err = client.Submit(ctx, chain.TxRequest{To: sink, Value: big.NewInt(1), Nonce: &pinned})
	assert.Error(t, err)
}

func TestEthClientConfirmUnknownHashHonoursContext(t *testing.T) {
	client, _ := newSimulatedClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Confirm(ctx, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEthClientWithoutSigner(t *testing.T) {
	backend := simulated.NewBackend(types.GenesisAlloc{})
	t.Cleanup(func() { _ = backend.Close() })

	client, err := chain.NewEthClient(context.Background(), backend.Client(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, client.From())
	assert.Equal(t, int64(simulatedChainID), client.ChainID().Int64())

	_, err = client.Submit(context.Background(), chain.TxRequest{To: sink})
	assert.True(t, apperrors.IsType(err, apperrors.ErrConfiguration))
}
