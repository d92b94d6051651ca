package safe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/GoPolymarket/safeboard/internal/chain"
	"github.com/GoPolymarket/safeboard/internal/config"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/GoPolymarket/safeboard/internal/pkg/metrics"
	"github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Failure signatures of a view call against an address the node has not
// materialised yet. Reverts carry data and never match.
var transientSignatures = []string{
	"no contract code at given address",
	"returned no data",
	"attempting to unmarshal an empty string",
	"attempting to unmarshall an empty string",
}

// IsTransient reports whether err is the "contract returned no data" class of read failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bind.ErrNoCode) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// RetryReader retries transient read failures a fixed number of times with a fixed delay.
type RetryReader struct {
	reader chain.Reader
	policy config.RetryPolicy
	log    *slog.Logger
}

func NewRetryReader(reader chain.Reader, policy config.RetryPolicy, log *slog.Logger) *RetryReader {
	if policy.Attempts == 0 {
		policy.Attempts = config.DefaultReadRetryAttempts
	}
	return &RetryReader{reader: reader, policy: policy, log: logger.OrDefault(log)}
}

// Read performs the call. Transient failures that outlive the attempt budget
// become STATE_UNAVAILABLE; any other failure is UPSTREAM_ERROR at once.
func (r *RetryReader) Read(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	var (
		out      []any
		attempts uint
	)
	err := retry.Do(
		func() error {
			attempts++
			res, err := r.reader.Read(ctx, contract, parsed, method, args...)
			if err != nil {
				return err
			}
			out = res
			return nil
		},
		retry.Attempts(r.policy.Attempts),
		retry.Delay(r.policy.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			if n+1 < r.policy.Attempts {
				metrics.TransientReadRetries.WithLabelValues(method).Inc()
				r.log.Warn("Contract returned no data, retrying", "contract", contract.Hex(), "method", method, "attempt", n+1)
			}
		}),
	)
	if err == nil {
		return out, nil
	}

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return nil, apperrors.New(apperrors.ErrTransientRead, fmt.Sprintf("%s read interrupted", method), err).
			WithDetail("contract", contract.Hex()).
			WithDetail("attempts", strconv.FormatUint(uint64(attempts), 10))
	case IsTransient(err):
		return nil, apperrors.New(apperrors.ErrStateUnavailable,
			fmt.Sprintf("%s returned no data after %d attempts", method, attempts), err).
			WithDetail("contract", contract.Hex()).
			WithDetail("method", method).
			WithDetail("attempts", strconv.FormatUint(uint64(attempts), 10))
	default:
		return nil, apperrors.New(apperrors.ErrUpstream, fmt.Sprintf("%s call failed", method), err).
			WithDetail("contract", contract.Hex())
	}
}
