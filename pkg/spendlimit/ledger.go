package spendlimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// ErrInvalidAmount is returned for nil amounts.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	limits = store.NewMap[Limit]("limits")
	owner  = store.NewItem[string]("owner")
)

// DenomLimit pairs a denomination with its record.
type DenomLimit struct {
	Denom string `json:"denom"`
	Limit
}

// Ledger reads and updates spend limits in an account's store.
type Ledger struct {
	kv     store.KVStore
	logger *slog.Logger
}

// NewLedger returns a ledger over the account's store.
func NewLedger(kv store.KVStore) *Ledger {
	return &Ledger{
		kv:     kv,
		logger: slog.Default().With("component", "spendlimit"),
	}
}

// WithLogger replaces the ledger's logger.
func (l *Ledger) WithLogger(logger *slog.Logger) *Ledger {
	if logger != nil {
		l.logger = logger.With("component", "spendlimit")
	}
	return l
}

// SetOwner records the address allowed to set limits.
func (l *Ledger) SetOwner(ctx context.Context, addr string) error {
	return owner.Save(ctx, l.kv, addr)
}

// Owner returns the address allowed to set limits.
func (l *Ledger) Owner(ctx context.Context) (string, error) {
	return owner.Load(ctx, l.kv)
}

// SetLimit overwrites the record for denom with a fresh window starting at now.
// Only the owner may call it.
func (l *Ledger) SetLimit(ctx context.Context, caller, denom string, amount sdkmath.Uint, now time.Time) (Limit, error) {
	ownerAddr, err := l.Owner(ctx)
	if err != nil {
		return Limit{}, fmt.Errorf("load owner: %w", err)
	}
	if caller != ownerAddr {
		l.logger.WarnContext(ctx, "set limit denied", "caller", caller, "denom", denom)
		return Limit{}, ErrUnauthorized
	}
	if err := coin.ValidateDenom(denom); err != nil {
		return Limit{}, err
	}
	if amount.IsNil() {
		return Limit{}, ErrInvalidAmount
	}

	rec := Limit{
		Limit:   amount,
		Used:    sdkmath.ZeroUint(),
		TimeSet: now.UTC(),
	}
	if err := limits.Save(ctx, l.kv, denom, rec); err != nil {
		return Limit{}, fmt.Errorf("failed to persist limit for %s: %w", denom, err)
	}
	l.logger.DebugContext(ctx, "limit set", "denom", denom, "limit", amount.String())
	return rec, nil
}

// Charge accounts amount against denom's limit at now.
//
// Denominations without a record are unlimited. Once the window has elapsed the
// charge succeeds without touching the record.
func (l *Ledger) Charge(ctx context.Context, denom string, amount sdkmath.Uint, now time.Time) error {
	if amount.IsNil() {
		return ErrInvalidAmount
	}
	rec, ok, err := limits.MayLoad(ctx, l.kv, denom)
	if err != nil {
		return fmt.Errorf("load limit for %s: %w", denom, err)
	}
	if !ok {
		return nil
	}
	if rec.Expired(now) {
		l.logger.DebugContext(ctx, "limit window elapsed", "denom", denom, "time_set", rec.TimeSet)
		return nil
	}
	if !CheckLimit(rec, amount, now) {
		l.logger.WarnContext(ctx, "limit exceeded",
			"denom", denom,
			"amount", amount.String(),
			"limit", rec.Limit.String(),
			"used", rec.Used.String(),
		)
		return &LimitExceededError{Denom: denom, Amount: amount, Limit: rec.Limit, Used: rec.Used}
	}

	rec.Used = rec.Used.Add(amount)
	if err := limits.Save(ctx, l.kv, denom, rec); err != nil {
		return fmt.Errorf("failed to persist usage for %s: %w", denom, err)
	}
	return nil
}

// Limit returns the record for denom, if any.
func (l *Ledger) Limit(ctx context.Context, denom string) (Limit, bool, error) {
	return limits.MayLoad(ctx, l.kv, denom)
}

// Limits returns every record ordered by denomination.
func (l *Ledger) Limits(ctx context.Context) ([]DenomLimit, error) {
	var out []DenomLimit
	err := limits.Range(ctx, l.kv, func(denom string, rec Limit) error {
		out = append(out, DenomLimit{Denom: denom, Limit: rec})
		return nil
	})
	return out, err
}

// CheckLimit reports whether amount may be spent against limit at now.
func CheckLimit(limit Limit, amount sdkmath.Uint, now time.Time) bool {
	if limit.Expired(now) {
		return true
	}
	if limit.Limit.LT(amount) || limit.Limit.Sub(amount).LT(limit.Used) {
		return false
	}
	return true
}
