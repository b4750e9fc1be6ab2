// Package coin models ledger denominations and arbitrary-precision amounts.
// Amounts are unsigned; arithmetic panics on underflow or overflow instead of wrapping.
package coin

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sdkmath "cosmossdk.io/math"
)

var (
	denomRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{2,127}$`)
	coinRegex  = regexp.MustCompile(`^([0-9]+)([a-zA-Z][a-zA-Z0-9/:._-]{2,127})$`)
)

// ErrInsufficientFunds is returned by Coins.SafeSub when a denomination would go negative.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Coin is a single (denomination, amount) pair.
type Coin struct {
	Denom  string       `json:"denom"`
	Amount sdkmath.Uint `json:"amount"`
}

// New creates a coin, panicking on an invalid denomination.
func New(denom string, amount uint64) Coin {
	if err := ValidateDenom(denom); err != nil {
		panic(err)
	}
	return Coin{Denom: denom, Amount: sdkmath.NewUint(amount)}
}

// NewFromString creates a coin from a decimal amount string.
func NewFromString(denom, amount string) (Coin, error) {
	if err := ValidateDenom(denom); err != nil {
		return Coin{}, err
	}
	amt, err := sdkmath.ParseUint(amount)
	if err != nil {
		return Coin{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return Coin{Denom: denom, Amount: amt}, nil
}

// ValidateDenom checks a denomination against the ledger's denom format.
func ValidateDenom(denom string) error {
	if !denomRegex.MatchString(denom) {
		return fmt.Errorf("invalid denom: %q", denom)
	}
	return nil
}

// Validate checks the denomination and that the amount is set.
func (c Coin) Validate() error {
	if err := ValidateDenom(c.Denom); err != nil {
		return err
	}
	if c.Amount.IsNil() {
		return fmt.Errorf("coin %s: amount is nil", c.Denom)
	}
	return nil
}

// IsZero reports whether the amount is zero.
func (c Coin) IsZero() bool {
	return c.Amount.IsZero()
}

func (c Coin) String() string {
	return c.Amount.String() + c.Denom
}

// ParseCoin parses "1000uaura".
func ParseCoin(s string) (Coin, error) {
	m := coinRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Coin{}, fmt.Errorf("invalid coin expression: %q", s)
	}
	return NewFromString(m[2], m[1])
}

// Coins is a set of coins with unique denominations, sorted by denom.
type Coins []Coin

// NewCoins merges duplicates, drops zero amounts and sorts by denom.
func NewCoins(coins ...Coin) Coins {
	merged := make(map[string]sdkmath.Uint, len(coins))
	for _, c := range coins {
		if cur, ok := merged[c.Denom]; ok {
			merged[c.Denom] = cur.Add(c.Amount)
			continue
		}
		merged[c.Denom] = c.Amount
	}
	out := make(Coins, 0, len(merged))
	for denom, amt := range merged {
		if amt.IsZero() {
			continue
		}
		out = append(out, Coin{Denom: denom, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}

// ParseCoins parses a comma separated list such as "1000uaura,5stake".
func ParseCoins(s string) (Coins, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Coins{}, nil
	}
	parts := strings.Split(s, ",")
	coins := make([]Coin, 0, len(parts))
	for _, p := range parts {
		c, err := ParseCoin(p)
		if err != nil {
			return nil, err
		}
		coins = append(coins, c)
	}
	return NewCoins(coins...), nil
}

// Validate checks every coin and rejects duplicate denominations.
func (cs Coins) Validate() error {
	seen := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := seen[c.Denom]; dup {
			return fmt.Errorf("duplicate denom: %s", c.Denom)
		}
		seen[c.Denom] = struct{}{}
	}
	return nil
}

// Find returns the coin for a denomination.
func (cs Coins) Find(denom string) (Coin, bool) {
	for _, c := range cs {
		if c.Denom == denom {
			return c, true
		}
	}
	return Coin{}, false
}

// AmountOf returns the amount held in a denomination, zero when absent.
func (cs Coins) AmountOf(denom string) sdkmath.Uint {
	if c, ok := cs.Find(denom); ok {
		return c.Amount
	}
	return sdkmath.ZeroUint()
}

// Add returns the sum of both sets.
func (cs Coins) Add(other ...Coin) Coins {
	all := make([]Coin, 0, len(cs)+len(other))
	all = append(all, cs...)
	all = append(all, other...)
	return NewCoins(all...)
}

// SafeSub subtracts other from cs, failing with ErrInsufficientFunds instead of panicking.
func (cs Coins) SafeSub(other ...Coin) (Coins, error) {
	result := NewCoins(cs...)
	for _, o := range NewCoins(other...) {
		have := result.AmountOf(o.Denom)
		if have.LT(o.Amount) {
			return nil, fmt.Errorf("%w: have %s%s, need %s", ErrInsufficientFunds, have, o.Denom, o)
		}
		for i := range result {
			if result[i].Denom == o.Denom {
				result[i].Amount = have.Sub(o.Amount)
			}
		}
	}
	return NewCoins(result...), nil
}

// Denoms lists the denominations in order.
func (cs Coins) Denoms() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Denom
	}
	return out
}

func (cs Coins) String() string {
	if len(cs) == 0 {
		return ""
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
