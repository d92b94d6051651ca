// Package chain is the boundary to the EVM node: view calls, operator
// transaction submission and confirmation.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/signer"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// TxRequest is one operator-originated transaction.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	// Nonce pins the operator's account nonce; nil lets the node pick.
	Nonce *uint64
}

type Reader interface {
	// Read calls a view method and returns the decoded outputs.
	Read(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error)
}

type Writer interface {
	From() common.Address
	PendingNonce(ctx context.Context) (uint64, error)
	// Submit signs and broadcasts req, returning the transaction hash.
	Submit(ctx context.Context, req TxRequest) (common.Hash, error)
	// Confirm blocks until the transaction is mined and returns its receipt.
	Confirm(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Client interface {
	Reader
	Writer
	ChainID() *big.Int
}

// Backend is the node API EthClient needs. *ethclient.Client and the
// go-ethereum simulated backend both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// EthClient implements Client over a JSON-RPC endpoint.
type EthClient struct {
	backend Backend
	closer  func()
	signer  *signer.Signer
	chainID *big.Int

	mu      sync.Mutex
	pending map[common.Hash]*types.Transaction
}

// Dial connects to rpcURL. A non-zero expectedChainID must match the node.
func Dial(ctx context.Context, rpcURL string, s *signer.Signer, expectedChainID int64) (*EthClient, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, apperrors.NewConfiguration("chain.rpc_url is required")
	}
	backend, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUpstream, "failed to connect rpc", err)
	}
	client, err := NewEthClient(ctx, backend, s, expectedChainID)
	if err != nil {
		backend.Close()
		return nil, err
	}
	client.closer = backend.Close
	return client, nil
}

// NewEthClient wraps an already connected backend. A non-zero
// expectedChainID must match the node.
func NewEthClient(ctx context.Context, backend Backend, s *signer.Signer, expectedChainID int64) (*EthClient, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUpstream, "failed to read chain id", err)
	}
	if expectedChainID != 0 && chainID.Int64() != expectedChainID {
		return nil, apperrors.NewConfiguration(fmt.Sprintf("rpc serves chain %s, configured chain_id is %d", chainID, expectedChainID))
	}
	return &EthClient{
		backend: backend,
		signer:  s,
		chainID: chainID,
		pending: make(map[common.Hash]*types.Transaction),
	}, nil
}

func (c *EthClient) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *EthClient) From() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

func (c *EthClient) Read(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	bound := bind.NewBoundContract(contract, parsed, c.backend, c.backend, c.backend)
	var out []any
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EthClient) PendingNonce(ctx context.Context) (uint64, error) {
	if c.signer == nil {
		return 0, apperrors.NewConfiguration("operator key not configured")
	}
	return c.backend.PendingNonceAt(ctx, c.signer.Address())
}

func (c *EthClient) Submit(ctx context.Context, req TxRequest) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, apperrors.NewConfiguration("operator key not configured")
	}
	opts, err := c.signer.TransactOpts(c.chainID)
	if err != nil {
		return common.Hash{}, apperrors.New(apperrors.ErrConfiguration, "failed to build transactor", err)
	}
	opts.Context = ctx
	opts.Value = req.Value
	if req.Nonce != nil {
		opts.Nonce = new(big.Int).SetUint64(*req.Nonce)
	}

	bound := bind.NewBoundContract(req.To, abi.ABI{}, c.backend, c.backend, c.backend)
	tx, err := bound.RawTransact(opts, req.Data)
	if err != nil {
		return common.Hash{}, err
	}

	c.mu.Lock()
	c.pending[tx.Hash()] = tx
	c.mu.Unlock()
	return tx.Hash(), nil
}

func (c *EthClient) Confirm(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	tx, ok := c.pending[hash]
	delete(c.pending, hash)
	c.mu.Unlock()

	if ok {
		return bind.WaitMined(ctx, c.backend, tx)
	}
	return c.pollReceipt(ctx, hash)
}

func (c *EthClient) pollReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
