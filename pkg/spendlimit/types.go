// Package spendlimit implements per-denomination spend limits accounted over a
// one-hour window.
//
// A limit is set by the account owner and reset only by setting it again. Once the
// window has elapsed the limit stops applying until the owner sets it anew.
package spendlimit

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Window is how long a limit applies after it was set.
const Window = time.Hour

var (
	// ErrUnauthorized is returned when someone other than the owner sets a limit.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLimitExceeded is matched by every *LimitExceededError.
	ErrLimitExceeded = errors.New("limit exceeded")
)

// Limit is the persisted record for one denomination.
type Limit struct {
	Limit   sdkmath.Uint `json:"limit"`
	Used    sdkmath.Uint `json:"used"`
	TimeSet time.Time    `json:"time_set"`
}

// Expired reports whether the window that started at TimeSet has elapsed at now.
func (l Limit) Expired(now time.Time) bool {
	return now.Sub(l.TimeSet) > Window
}

// Remaining returns how much can still be spent in the current window.
func (l Limit) Remaining() sdkmath.Uint {
	if l.Used.GT(l.Limit) {
		return sdkmath.ZeroUint()
	}
	return l.Limit.Sub(l.Used)
}

// LimitExceededError is a typed limit violation.
type LimitExceededError struct {
	Denom  string       `json:"denom"`
	Amount sdkmath.Uint `json:"amount"`
	Limit  sdkmath.Uint `json:"limit"`
	Used   sdkmath.Uint `json:"used"`
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit exceed for denom: %s (amount=%s, limit=%s, used=%s)", e.Denom, e.Amount, e.Limit, e.Used)
}

func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}
