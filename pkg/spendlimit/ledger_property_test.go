//go:build property
// +build property

package spendlimit_test

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/aura-nw/smart-account-sample/pkg/spendlimit"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// TestUsedNeverExceedsLimit checks that no sequence of charges inside the window
// pushes Used above Limit.
func TestUsedNeverExceedsLimit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("used <= limit after any charge sequence", prop.ForAll(
		func(limit uint64, charges []uint64, offsets []int64) bool {
			ctx := context.Background()
			l := spendlimit.NewLedger(store.NewMemoryStore())
			if err := l.SetOwner(ctx, "aura1owner"); err != nil {
				return false
			}
			if _, err := l.SetLimit(ctx, "aura1owner", "uaura", sdkmath.NewUint(limit), t0); err != nil {
				return false
			}
			for i, c := range charges {
				var off int64
				if i < len(offsets) {
					off = offsets[i]
				}
				_ = l.Charge(ctx, "uaura", sdkmath.NewUint(c), t0.Add(time.Duration(off)*time.Second))
			}
			rec, ok, err := l.Limit(ctx, "uaura")
			if err != nil || !ok {
				return false
			}
			return rec.Used.LTE(rec.Limit)
		},
		gen.UInt64Range(0, 10_000),
		gen.SliceOf(gen.UInt64Range(0, 5_000)),
		gen.SliceOf(gen.Int64Range(0, 3600)),
	))

	properties.TestingRun(t)
}

// TestUnlimitedWithoutRecord checks that denominations without a record accept any amount.
func TestUnlimitedWithoutRecord(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("charge without record always succeeds", prop.ForAll(
		func(amount uint64, offset int64) bool {
			l := spendlimit.NewLedger(store.NewMemoryStore())
			return l.Charge(context.Background(), "uaura", sdkmath.NewUint(amount), t0.Add(time.Duration(offset)*time.Second)) == nil
		},
		gen.UInt64(),
		gen.Int64Range(-1_000_000, 1_000_000),
	))

	properties.TestingRun(t)
}

// TestElapsedWindowAlwaysAdmits checks that any charge one hour and one second after
// the limit was set succeeds, whatever the record holds.
func TestElapsedWindowAlwaysAdmits(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("charge after window succeeds", prop.ForAll(
		func(limit, used, amount uint64) bool {
			rec := spendlimit.Limit{
				Limit:   sdkmath.NewUint(limit),
				Used:    sdkmath.NewUint(used),
				TimeSet: t0,
			}
			return spendlimit.CheckLimit(rec, sdkmath.NewUint(amount), t0.Add(3601*time.Second))
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
