// Package feeterms looks up the fee terms negotiated for a client.
package feeterms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/GoPolymarket/safeboard/internal/config"
	"github.com/GoPolymarket/safeboard/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

const maxBps = 10000

const (
	SourceDefault = "default"
	SourceRemote  = "remote"
)

// Terms are the fee basis points the fee router proxy is deployed with.
type Terms struct {
	DepositBps uint64 `json:"deposit_fee_bps"`
	ProfitBps  uint64 `json:"profit_fee_bps"`
	Source     string `json:"source"`
}

// Default returns the configured fallback terms.
func Default(d config.FeeDefaults) Terms {
	return Terms{DepositBps: d.DepositBps, ProfitBps: d.ProfitBps, Source: SourceDefault}
}

type Source interface {
	Terms(ctx context.Context, client common.Address) (Terms, error)
}

// HTTPSource reads GET {base}/fees/{client}.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
		},
	}
}

func (s *HTTPSource) Terms(ctx context.Context, client common.Address) (Terms, error) {
	url := fmt.Sprintf("%s/fees/%s", s.baseURL, client.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Terms{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Terms{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Terms{}, fmt.Errorf("fee terms source returned %s", resp.Status)
	}

	var body struct {
		DepositBps *uint64 `json:"deposit_fee_bps"`
		ProfitBps  *uint64 `json:"profit_fee_bps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Terms{}, fmt.Errorf("decode fee terms: %w", err)
	}
	if body.DepositBps == nil || body.ProfitBps == nil {
		return Terms{}, fmt.Errorf("fee terms response is incomplete")
	}
	return Terms{DepositBps: *body.DepositBps, ProfitBps: *body.ProfitBps, Source: SourceRemote}, nil
}

// Resolve asks src for the client's terms and falls back to the defaults
// when src is nil, fails, or returns out-of-range values. It never fails.
func Resolve(ctx context.Context, src Source, client common.Address, defaults config.FeeDefaults, log *slog.Logger) Terms {
	fallback := Default(defaults)
	if src == nil {
		return fallback
	}
	log = logger.OrDefault(log)

	terms, err := src.Terms(ctx, client)
	if err != nil {
		log.Warn("Fee terms unavailable, using defaults", "client", client.Hex(), "error", err,
			"deposit_bps", fallback.DepositBps, "profit_bps", fallback.ProfitBps)
		return fallback
	}
	if terms.DepositBps > maxBps || terms.ProfitBps > maxBps {
		log.Warn("Fee terms out of range, using defaults", "client", client.Hex(),
			"deposit_bps", terms.DepositBps, "profit_bps", terms.ProfitBps)
		return fallback
	}
	if terms.Source == "" {
		terms.Source = SourceRemote
	}
	return terms
}
