// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ReadCall records one view call.
type ReadCall struct {
	Contract common.Address
	Method   string
	Args     []any
}

type ReadHandler func(call ReadCall) ([]any, error)

// SubmitHandler builds the receipt for a submitted transaction. Returning an
// error rejects the submission.
type SubmitHandler func(req chain.TxRequest, hash common.Hash) (*types.Receipt, error)

// Fake is a scripted chain. Handlers are keyed by method name.
type Fake struct {
	mu sync.Mutex

	ID           *big.Int
	Operator     common.Address
	NextNonce    uint64
	NonceReads   int
	readHandlers map[string]ReadHandler
	OnSubmit     SubmitHandler

	Reads     []ReadCall
	Submitted []chain.TxRequest
	receipts  map[common.Hash]*types.Receipt
}

func New(chainID int64, operator common.Address) *Fake {
	return &Fake{
		ID:           big.NewInt(chainID),
		Operator:     operator,
		readHandlers: make(map[string]ReadHandler),
		receipts:     make(map[common.Hash]*types.Receipt),
	}
}

var _ chain.Client = (*Fake)(nil)

// Handle registers h for method.
func (f *Fake) Handle(method string, h ReadHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readHandlers[method] = h
}

func (f *Fake) ChainID() *big.Int { return new(big.Int).Set(f.ID) }

func (f *Fake) From() common.Address { return f.Operator }

func (f *Fake) Read(_ context.Context, contract common.Address, _ abi.ABI, method string, args ...any) ([]any, error) {
	f.mu.Lock()
	call := ReadCall{Contract: contract, Method: method, Args: args}
	f.Reads = append(f.Reads, call)
	h, ok := f.readHandlers[method]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("chaintest: no handler for %s", method)
	}
	return h(call)
}

func (f *Fake) PendingNonce(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NonceReads++
	return f.NextNonce, nil
}

func (f *Fake) Submit(_ context.Context, req chain.TxRequest) (common.Hash, error) {
	f.mu.Lock()
	idx := len(f.Submitted)
	f.Submitted = append(f.Submitted, req)
	onSubmit := f.OnSubmit
	f.mu.Unlock()

	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d", idx)), req.Data)
	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}
	if onSubmit != nil {
		r, err := onSubmit(req, hash)
		if err != nil {
			f.mu.Lock()
			f.Submitted = f.Submitted[:idx]
			f.mu.Unlock()
			return common.Hash{}, err
		}
		if r != nil {
			receipt = r
			receipt.TxHash = hash
		}
	}

	f.mu.Lock()
	f.receipts[hash] = receipt
	if req.Nonce != nil && *req.Nonce >= f.NextNonce {
		f.NextNonce = *req.Nonce + 1
	}
	f.mu.Unlock()
	return hash, nil
}

func (f *Fake) Confirm(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("chaintest: unknown transaction %s", hash.Hex())
	}
	return r, nil
}

// SubmittedCount is safe to call concurrently with the code under test.
func (f *Fake) SubmittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Submitted)
}

// ReadCount counts recorded reads of method.
func (f *Fake) ReadCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.Reads {
		if r.Method == method {
			n++
		}
	}
	return n
}

// Returns is a ReadHandler answering with fixed outputs.
func Returns(out ...any) ReadHandler {
	return func(ReadCall) ([]any, error) { return out, nil }
}
