package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/aura-nw/smart-account-sample/pkg/spendlimit"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// OwnerInstantiateMsg names the owner allowed to set spend limits.
type OwnerInstantiateMsg struct {
	Owner string `json:"owner"`
}

var balancesItem = store.NewItem[coin.Coins]("balances")

// limitKeeper holds what both spend-limit modules share: the owner, limit setting and
// limit queries.
type limitKeeper struct {
	name string
}

func (k limitKeeper) ledger(deps Deps) *spendlimit.Ledger {
	return spendlimit.NewLedger(deps.Store).WithLogger(deps.Logger)
}

func (k limitKeeper) instantiate(ctx context.Context, deps Deps, info Info, raw json.RawMessage) (*Response, error) {
	var msg OwnerInstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, contractError(ErrInvalidMessageFormat, "invalid instantiate message: %v", err)
	}
	owner, err := deps.API.AddrValidate(msg.Owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner: %w", err)
	}
	if err := setContractVersion(ctx, deps.Store, k.name, Version); err != nil {
		return nil, err
	}
	if err := k.ledger(deps).SetOwner(ctx, owner); err != nil {
		return nil, err
	}
	return (&Response{}).
		AddAttribute("method", "instantiate").
		AddAttribute("owner", owner).
		AddAttribute("sender", info.Sender), nil
}

func (k limitKeeper) SetSpendLimit(ctx context.Context, deps Deps, env Env, info Info, req SetSpendLimitRequest) (*Response, error) {
	_, err := k.ledger(deps).SetLimit(ctx, info.Sender, req.Denom, req.Amount, env.Block.Time)
	if errors.Is(err, ErrUnauthorized) {
		return nil, contractError(ErrUnauthorized, "unauthorized: only the owner may set spend limits")
	}
	if err != nil {
		return nil, err
	}
	return NewResponse("set_spend_limit").
		AddAttribute("denom", req.Denom).
		AddAttribute("amount", req.Amount.String()), nil
}

func (k limitKeeper) Query(ctx context.Context, deps Deps, env Env, req QueryRequest) (json.RawMessage, error) {
	switch {
	case req.SpendLimit != nil:
		return querySpendLimit(ctx, deps, env, *req.SpendLimit)
	case req.SpendLimits != nil:
		return querySpendLimits(ctx, deps)
	case req.Owner != nil:
		return queryOwner(ctx, deps)
	case req.ContractInfo != nil:
		return queryContractInfo(ctx, deps)
	default:
		return nil, unsupportedQuery(k.name, req)
	}
}

func (k limitKeeper) Migrate(ctx context.Context, deps Deps, _ Env, req MigrateRequest) (*Response, error) {
	return migrateContract(ctx, deps, k.name, req)
}

// SpendLimit enforces limits on what actually left the account: PreExecute snapshots
// the account's balances and AfterExecute charges every decrease against the limit of
// its denomination.
type SpendLimit struct {
	limitKeeper
}

func NewSpendLimit() *SpendLimit {
	return &SpendLimit{limitKeeper{name: NameSpendLimit}}
}

func (m *SpendLimit) Name() string { return m.name }

func (m *SpendLimit) Instantiate(ctx context.Context, deps Deps, _ Env, info Info, msg json.RawMessage) (*Response, error) {
	return m.instantiate(ctx, deps, info, msg)
}

func (m *SpendLimit) PreExecute(ctx context.Context, deps Deps, env Env, info Info, _ PreExecuteRequest) (*Response, error) {
	if err := requireSelf(ctx, deps, m.name, "pre_execute", env, info); err != nil {
		return nil, err
	}
	balances, err := deps.Querier.AllBalances(ctx, env.Contract.Address)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	if balances == nil {
		balances = coin.Coins{}
	}
	if err := balancesItem.Save(ctx, deps.Store, balances); err != nil {
		return nil, err
	}
	deps.logger(m.name).DebugContext(ctx, "balance snapshot saved", "balances", balances.String())
	return NewResponse("pre_execute"), nil
}

func (m *SpendLimit) AfterExecute(ctx context.Context, deps Deps, env Env, info Info, _ AfterExecuteRequest) (*Response, error) {
	if err := requireSelf(ctx, deps, m.name, "after_execute", env, info); err != nil {
		return nil, err
	}
	pre, err := balancesItem.Load(ctx, deps.Store)
	if err != nil {
		return nil, fmt.Errorf("load balance snapshot: %w", err)
	}
	post, err := deps.Querier.AllBalances(ctx, env.Contract.Address)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}

	ledger := m.ledger(deps)
	resp := NewResponse("after_execute")
	for _, before := range pre {
		after := post.AmountOf(before.Denom)
		if !before.Amount.GT(after) {
			continue
		}
		spent := before.Amount.Sub(after)
		if err := ledger.Charge(ctx, before.Denom, spent, env.Block.Time); err != nil {
			return nil, err
		}
		resp.AddAttribute("spent", coin.Coin{Denom: before.Denom, Amount: spent}.String())
	}
	return resp, nil
}

func (*SpendLimit) Validate(context.Context, Deps, Env, ValidateRequest) (bool, error) {
	return true, nil
}
