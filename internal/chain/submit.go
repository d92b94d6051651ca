package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// NonceTracker hands out operator nonces for one run.
type NonceTracker interface {
	Next(ctx context.Context) (uint64, error)
	Commit(used uint64)
	Reset()
}

// SubmitNext submits req with the tracker's next nonce. The nonce is
// committed only after the node accepted the transaction; a rejection resets
// the tracker so the next submission re-reads the chain.
func SubmitNext(ctx context.Context, w Writer, nonces NonceTracker, req TxRequest) (common.Hash, uint64, error) {
	nonce, err := nonces.Next(ctx)
	if err != nil {
		return common.Hash{}, 0, err
	}
	req.Nonce = &nonce
	hash, err := w.Submit(ctx, req)
	if err != nil {
		nonces.Reset()
		return common.Hash{}, nonce, err
	}
	nonces.Commit(nonce)
	return hash, nonce, nil
}
