// File: internal/infra/ledger/tron_validator.go
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-private-group/internal/config"
	"telegram-private-group/internal/domain/ports/adapter"
	"telegram-private-group/internal/infra/logging"
	"telegram-private-group/internal/infra/metrics"
)

var _ adapter.LedgerValidator = (*TronValidator)(nil)

const (
	apiKeyHeader = "TRON-PRO-API-KEY"
	maxBodyBytes = 1 << 20
)

// TronValidator checks a TRC-20 payment through a TronScan-compatible indexer.
// Any failure, including timeouts, yields false.
type TronValidator struct {
	endpoint string
	apiKey   string
	wallet   string
	client   *http.Client
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

func NewTronValidator(cfg config.LedgerConfig, loc *time.Location, logger *zerolog.Logger) (*TronValidator, error) {
	if cfg.Wallet == "" {
		return nil, errors.New("ledger wallet empty")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("invalid ledger endpoint %q", cfg.Endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TronValidator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		wallet:   strings.TrimSpace(cfg.Wallet),
		client:   &http.Client{Timeout: timeout},
		loc:      loc,
		now:      time.Now,
		log:      logger.With().Str("component", "TronValidator").Logger(),
	}, nil
}

// SetClock replaces the validation clock.
func (v *TronValidator) SetClock(now func() time.Time) { v.now = now }

type transactionInfo struct {
	Timestamp *int64          `json:"timestamp"`
	Transfers []trc20Transfer `json:"trc20TransferInfo"`
}

type trc20Transfer struct {
	ToAddress string `json:"to_address"`
	AmountStr string `json:"amount_str"`
	Decimals  *int32 `json:"decimals"`
}

// rejection carries the metric reason of a failed validation.
type rejection struct {
	reason string
	err    error
}

func (r *rejection) Error() string { return r.reason + ": " + r.err.Error() }

func reject(reason string, format string, args ...any) error {
	return &rejection{reason: reason, err: fmt.Errorf(format, args...)}
}

func (v *TronValidator) ValidateTransaction(ctx context.Context, txHash string, requiredAmount int64) bool {
	defer logging.TraceDuration(&v.log, "TronValidator.ValidateTransaction")()

	err := v.validate(ctx, strings.TrimSpace(txHash), requiredAmount)
	if err == nil {
		metrics.IncLedgerValidation(true, "ok")
		v.log.Info().Str("tx_hash", txHash).Int64("required", requiredAmount).Msg("transaction accepted")
		return true
	}

	reason := "unknown"
	var rj *rejection
	if errors.As(err, &rj) {
		reason = rj.reason
	}
	metrics.IncLedgerValidation(false, reason)
	v.log.Warn().Err(err).Str("tx_hash", txHash).Int64("required", requiredAmount).Str("reason", reason).Msg("transaction rejected")
	return false
}

func (v *TronValidator) validate(ctx context.Context, txHash string, required int64) error {
	if txHash == "" {
		return reject("malformed", "empty transaction hash")
	}
	info, err := v.fetch(ctx, txHash)
	if err != nil {
		return err
	}

	if info.Timestamp == nil || *info.Timestamp <= 0 {
		return reject("malformed", "missing timestamp")
	}
	if !sameDay(time.UnixMilli(*info.Timestamp), v.now(), v.loc) {
		return reject("stale", "transaction dated %s", time.UnixMilli(*info.Timestamp).In(v.loc).Format(time.RFC3339))
	}

	if len(info.Transfers) == 0 {
		return reject("malformed", "no trc20 transfers")
	}
	// the first transfer record decides
	tr := info.Transfers[0]
	if tr.ToAddress != v.wallet {
		return reject("recipient", "paid to %q", tr.ToAddress)
	}
	amount, err := transferredUnits(tr)
	if err != nil {
		return reject("malformed", "amount: %v", err)
	}
	if amount.LessThan(decimal.NewFromInt(required)) {
		return reject("amount", "transferred %s, required %d", amount.String(), required)
	}
	return nil
}

func (v *TronValidator) fetch(ctx context.Context, txHash string) (*transactionInfo, error) {
	u, err := url.Parse(v.endpoint)
	if err != nil {
		return nil, reject("request", "endpoint: %v", err)
	}
	q := u.Query()
	q.Set("hash", txHash)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, reject("request", "build request: %v", err)
	}
	req.Header.Set(apiKeyHeader, v.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, reject("request", "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, reject("status", "indexer returned %d", resp.StatusCode)
	}
	var info transactionInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&info); err != nil {
		return nil, reject("malformed", "decode: %v", err)
	}
	return &info, nil
}

// transferredUnits converts the raw integer amount to whole tokens, truncating.
func transferredUnits(tr trc20Transfer) (decimal.Decimal, error) {
	if tr.Decimals == nil || *tr.Decimals < 0 {
		return decimal.Zero, errors.New("missing decimals")
	}
	raw, err := decimal.NewFromString(strings.TrimSpace(tr.AmountStr))
	if err != nil {
		return decimal.Zero, err
	}
	if !raw.IsInteger() || raw.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount_str %q is not a raw unit count", tr.AmountStr)
	}
	return raw.Shift(-*tr.Decimals).Truncate(0), nil
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
