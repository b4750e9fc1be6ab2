package policy

import (
	"context"
	"encoding/json"
)

// Base only enforces that the hooks are entered by the account itself. The
// instantiating sender is recorded as owner.
type Base struct{}

func NewBase() *Base { return &Base{} }

func (*Base) Name() string { return NameBase }

func (m *Base) Instantiate(ctx context.Context, deps Deps, _ Env, info Info, _ json.RawMessage) (*Response, error) {
	if err := setContractVersion(ctx, deps.Store, m.Name(), Version); err != nil {
		return nil, err
	}
	if err := ownerItem.Save(ctx, deps.Store, info.Sender); err != nil {
		return nil, err
	}
	return (&Response{}).
		AddAttribute("method", "instantiate").
		AddAttribute("owner", info.Sender), nil
}

func (m *Base) PreExecute(ctx context.Context, deps Deps, env Env, info Info, _ PreExecuteRequest) (*Response, error) {
	if err := requireSelf(ctx, deps, m.Name(), "pre_execute", env, info); err != nil {
		return nil, err
	}
	return NewResponse("pre_execute"), nil
}

func (m *Base) AfterExecute(ctx context.Context, deps Deps, env Env, info Info, _ AfterExecuteRequest) (*Response, error) {
	if err := requireSelf(ctx, deps, m.Name(), "after_execute", env, info); err != nil {
		return nil, err
	}
	return NewResponse("after_execute"), nil
}

func (*Base) Validate(context.Context, Deps, Env, ValidateRequest) (bool, error) {
	return true, nil
}

func (m *Base) Query(ctx context.Context, deps Deps, _ Env, req QueryRequest) (json.RawMessage, error) {
	switch {
	case req.Owner != nil:
		return queryOwner(ctx, deps)
	case req.ContractInfo != nil:
		return queryContractInfo(ctx, deps)
	default:
		return nil, unsupportedQuery(m.Name(), req)
	}
}

func (m *Base) Migrate(ctx context.Context, deps Deps, _ Env, req MigrateRequest) (*Response, error) {
	return migrateContract(ctx, deps, m.Name(), req)
}
