package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// NonceSource reads the operator's pending account nonce from the chain.
type NonceSource interface {
	From() common.Address
	PendingNonce(ctx context.Context) (uint64, error)
}

// NonceManager tracks the operator's transaction nonce for a single run.
// The chain is read once; later submissions use the in-memory counter so a
// read racing a just-broadcast transaction cannot hand out a stale value.
// It is never shared between runs.
type NonceManager struct {
	source NonceSource
	log    *slog.Logger

	mu     sync.Mutex
	nonce  uint64
	synced bool
}

func NewNonceManager(source NonceSource, log *slog.Logger) *NonceManager {
	return &NonceManager{
		source: source,
		log:    logger.OrDefault(log),
	}
}

// Next returns the nonce for the next submission. The first call fetches
// the pending nonce from chain.
func (m *NonceManager) Next(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.synced {
		return m.nonce, nil
	}

	fetched, err := m.source.PendingNonce(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending nonce: %w", err)
	}
	m.nonce = fetched
	m.synced = true
	return fetched, nil
}

// Commit advances the local nonce. Call this AFTER a transaction was broadcast.
func (m *NonceManager) Commit(used uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.synced && used >= m.nonce {
		m.nonce = used + 1
	}
}

// Reset forces a re-sync on the next call to Next.
// Call this when the node rejected a submission ("nonce too low", "replacement underpriced").
func (m *NonceManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.synced {
		m.log.Info("Reset operator nonce", "address", m.source.From().Hex(), "nonce", m.nonce)
	}
	m.synced = false
}
