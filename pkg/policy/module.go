// Package policy implements the account policy modules a ledger runtime delegates
// transaction authorization to.
//
// The host calls PreExecute before it executes an account's transaction and
// AfterExecute once the messages have run, both as the account itself. Any error from
// either hook makes the host discard the whole transaction. Validate is a read-only
// admission check the host may run before accepting a transaction at all.
//
// Modules are stateless values; all state lives in Deps.Store, which the host scopes
// to the account before each call.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Module is the contract every account policy implements.
type Module interface {
	Name() string
	Instantiate(ctx context.Context, deps Deps, env Env, info Info, msg json.RawMessage) (*Response, error)
	PreExecute(ctx context.Context, deps Deps, env Env, info Info, req PreExecuteRequest) (*Response, error)
	AfterExecute(ctx context.Context, deps Deps, env Env, info Info, req AfterExecuteRequest) (*Response, error)
	Validate(ctx context.Context, deps Deps, env Env, req ValidateRequest) (bool, error)
	Query(ctx context.Context, deps Deps, env Env, req QueryRequest) (json.RawMessage, error)
}

// Recoverer is implemented by modules supporting key recovery. Only the host's
// privileged path may call it.
type Recoverer interface {
	Recover(ctx context.Context, deps Deps, env Env, req RecoverRequest) (*Response, error)
}

// LimitSetter is implemented by modules that keep spend limits.
type LimitSetter interface {
	SetSpendLimit(ctx context.Context, deps Deps, env Env, info Info, req SetSpendLimitRequest) (*Response, error)
}

// Migrator is implemented by modules whose stored state can move to a new version.
type Migrator interface {
	Migrate(ctx context.Context, deps Deps, env Env, req MigrateRequest) (*Response, error)
}

var (
	_ Module      = (*Base)(nil)
	_ Module      = (*SpendLimit)(nil)
	_ Module      = (*MsgSpendLimit)(nil)
	_ Module      = (*Recovery)(nil)
	_ LimitSetter = (*SpendLimit)(nil)
	_ LimitSetter = (*MsgSpendLimit)(nil)
	_ Recoverer   = (*Recovery)(nil)
	_ Migrator    = (*Base)(nil)
	_ Migrator    = (*SpendLimit)(nil)
	_ Migrator    = (*MsgSpendLimit)(nil)
	_ Migrator    = (*Recovery)(nil)
)

// Module names accepted by New.
const (
	NameBase          = "base"
	NameSpendLimit    = "spend-limit"
	NameMsgSpendLimit = "msg-spend-limit"
	NameRecovery      = "recovery"
)

// Version is stored in contract_info by every module at instantiation.
const Version = "0.1.0"

// Options configure modules built by New. Only the message spend-limit module reads
// them.
type Options struct {
	// AllowedTypes overrides the message types Validate admits.
	AllowedTypes []string
	// Admission is an optional CEL expression every message must satisfy in Validate.
	Admission string
}

// New builds the module registered under name.
func New(name string, opts Options) (Module, error) {
	switch name {
	case NameBase:
		return NewBase(), nil
	case NameSpendLimit:
		return NewSpendLimit(), nil
	case NameMsgSpendLimit:
		m, err := NewMsgSpendLimit(opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	case NameRecovery:
		return NewRecovery(), nil
	default:
		return nil, fmt.Errorf("unknown policy module %q", name)
	}
}

// Names lists the modules New can build.
func Names() []string {
	names := []string{NameBase, NameSpendLimit, NameMsgSpendLimit, NameRecovery}
	sort.Strings(names)
	return names
}

// requireSelf enforces that hooks are only entered by the account itself.
func requireSelf(ctx context.Context, deps Deps, module, hook string, env Env, info Info) error {
	if info.Sender != env.Contract.Address {
		deps.logger(module).WarnContext(ctx, "hook called by foreign sender",
			"hook", hook,
			"sender", info.Sender,
			"account", env.Contract.Address,
		)
		return contractError(ErrUnauthorized, "unauthorized: %s may only be called by the account", hook)
	}
	return nil
}
