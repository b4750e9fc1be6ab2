package runtime

import (
	"context"
	"fmt"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

var balances = store.NewMap[coin.Coins]("bank")

// Balances returns the coins held by address. Unknown addresses hold nothing.
func Balances(ctx context.Context, kv store.KVStore, address string) (coin.Coins, error) {
	bal, _, err := balances.MayLoad(ctx, kv, address)
	if err != nil {
		return nil, fmt.Errorf("load balances of %s: %w", address, err)
	}
	if bal == nil {
		bal = coin.Coins{}
	}
	return bal, nil
}

// Mint credits amount to address.
func Mint(ctx context.Context, kv store.KVStore, address string, amount coin.Coins) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	bal, err := Balances(ctx, kv, address)
	if err != nil {
		return err
	}
	return balances.Save(ctx, kv, address, bal.Add(amount...))
}

// Send moves amount from one address to another. Fails with coin.ErrInsufficientFunds
// without writing anything.
func Send(ctx context.Context, kv store.KVStore, from, to string, amount coin.Coins) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	fromBal, err := Balances(ctx, kv, from)
	if err != nil {
		return err
	}
	left, err := fromBal.SafeSub(amount...)
	if err != nil {
		return err
	}
	if err := balances.Save(ctx, kv, from, left); err != nil {
		return err
	}
	toBal, err := Balances(ctx, kv, to)
	if err != nil {
		return err
	}
	return balances.Save(ctx, kv, to, toBal.Add(amount...))
}
