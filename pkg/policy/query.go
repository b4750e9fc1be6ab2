package policy

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aura-nw/smart-account-sample/pkg/spendlimit"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// QueryRequest selects one read-only query. Exactly one field must be set.
type QueryRequest struct {
	SpendLimit   *SpendLimitQuery `json:"spend_limit,omitempty"`
	SpendLimits  *struct{}        `json:"spend_limits,omitempty"`
	Owner        *struct{}        `json:"owner,omitempty"`
	ContractInfo *struct{}        `json:"contract_info,omitempty"`
	PubKey       *struct{}        `json:"pub_key,omitempty"`
}

type SpendLimitQuery struct {
	Denom string `json:"denom"`
}

// SpendLimitResponse answers a spend_limit query. Limit is nil for unlimited denoms.
type SpendLimitResponse struct {
	Denom   string            `json:"denom"`
	Limit   *spendlimit.Limit `json:"limit"`
	Expired bool              `json:"expired"`
}

type SpendLimitsResponse struct {
	Limits []spendlimit.DenomLimit `json:"limits"`
}

type OwnerResponse struct {
	Owner string `json:"owner"`
}

// PubKeyResponse answers a pub_key query on the recovery module.
type PubKeyResponse struct {
	RecoverKey string `json:"recover_key"`
	PubKey     string `json:"pub_key,omitempty"`
	Address    string `json:"address,omitempty"`
}

var ownerItem = store.NewItem[string]("owner")

func (q QueryRequest) kind() string {
	switch {
	case q.SpendLimit != nil:
		return "spend_limit"
	case q.SpendLimits != nil:
		return "spend_limits"
	case q.Owner != nil:
		return "owner"
	case q.ContractInfo != nil:
		return "contract_info"
	case q.PubKey != nil:
		return "pub_key"
	default:
		return ""
	}
}

func unsupportedQuery(module string, q QueryRequest) error {
	k := q.kind()
	if k == "" {
		return fmt.Errorf("%w: empty query", ErrUnsupported)
	}
	return fmt.Errorf("%w: query %s on %s", ErrUnsupported, k, module)
}

func encode(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode query response: %w", err)
	}
	return raw, nil
}

func queryContractInfo(ctx context.Context, deps Deps) (json.RawMessage, error) {
	info, err := GetContractVersion(ctx, deps.Store)
	if err != nil {
		return nil, err
	}
	return encode(info)
}

func queryOwner(ctx context.Context, deps Deps) (json.RawMessage, error) {
	owner, err := ownerItem.Load(ctx, deps.Store)
	if err != nil {
		return nil, err
	}
	return encode(OwnerResponse{Owner: owner})
}

func querySpendLimit(ctx context.Context, deps Deps, env Env, q SpendLimitQuery) (json.RawMessage, error) {
	rec, ok, err := spendlimit.NewLedger(deps.Store).Limit(ctx, q.Denom)
	if err != nil {
		return nil, err
	}
	resp := SpendLimitResponse{Denom: q.Denom}
	if ok {
		resp.Limit = &rec
		resp.Expired = rec.Expired(env.Block.Time)
	}
	return encode(resp)
}

func querySpendLimits(ctx context.Context, deps Deps) (json.RawMessage, error) {
	limits, err := spendlimit.NewLedger(deps.Store).Limits(ctx)
	if err != nil {
		return nil, err
	}
	if limits == nil {
		limits = []spendlimit.DenomLimit{}
	}
	return encode(SpendLimitsResponse{Limits: limits})
}

func queryRecoveryKeys(ctx context.Context, deps Deps) (json.RawMessage, error) {
	recoverKey, err := recoverKeyItem.Load(ctx, deps.Store)
	if err != nil {
		return nil, err
	}
	resp := PubKeyResponse{RecoverKey: hex.EncodeToString(recoverKey)}
	pub, err := pubKeyItem.Load(ctx, deps.Store)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		resp.PubKey = hex.EncodeToString(pub.Key)
		resp.Address = pub.Address
	}
	return encode(resp)
}
