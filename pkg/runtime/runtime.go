// Package runtime is a reference host for policy modules. It keeps accounts and bank
// balances in one store, runs every transaction through its account's hooks and
// rolls back everything the transaction touched when any step fails.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/aura-nw/smart-account-sample/pkg/crypto"
	"github.com/aura-nw/smart-account-sample/pkg/host"
	"github.com/aura-nw/smart-account-sample/pkg/message"
	"github.com/aura-nw/smart-account-sample/pkg/observability"
	"github.com/aura-nw/smart-account-sample/pkg/policy"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// ErrRejected is returned when an account's Validate declines a transaction.
var ErrRejected = errors.New("transaction rejected by account policy")

var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrAccountExists  = errors.New("account already exists")
	ErrNoHandler      = errors.New("no handler for message type")
)

// Transaction stages reported in TxError.
const (
	StageValidate     = "validate"
	StagePreExecute   = "pre_execute"
	StageExecute      = "execute"
	StageAfterExecute = "after_execute"
)

// TxError reports the stage at which a transaction was aborted.
type TxError struct {
	TxID  string
	Stage string
	// Index of the failing message, only meaningful for StageExecute.
	Index int
	Err   error
}

func (e *TxError) Error() string {
	if e.Stage == StageExecute {
		return fmt.Sprintf("tx %s: %s msg %d: %v", e.TxID, e.Stage, e.Index, e.Err)
	}
	return fmt.Sprintf("tx %s: %s: %v", e.TxID, e.Stage, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// AccountRecord is what the runtime persists about a registered account.
type AccountRecord struct {
	Label  string `json:"label"`
	Module string `json:"module"`
}

var accounts = store.NewMap[AccountRecord]("accounts")

// Tx is a transaction signed by a smart account.
type Tx struct {
	Account  string            `json:"account"`
	Msgs     []message.Message `json:"msgs"`
	CallInfo message.CallInfo  `json:"call_info"`
	IsAuthz  bool              `json:"is_authz"`
}

// TxResult describes a delivered transaction.
type TxResult struct {
	ID     string         `json:"id"`
	Height int64          `json:"height"`
	Time   time.Time      `json:"time"`
	Events []policy.Event `json:"events"`
}

func (r *TxResult) addResponse(stage, module string, resp *policy.Response) {
	if resp == nil {
		return
	}
	attrs := append([]policy.Attribute{{Key: "module", Value: module}}, resp.Attributes...)
	r.Events = append(r.Events, policy.Event{Type: stage, Attributes: attrs})
	r.Events = append(r.Events, resp.Events...)
}

// CheckResult is the admission outcome of one transaction in CheckTxs.
type CheckResult struct {
	Accepted bool
	Err      error
}

// ExecuteMsg is an action sent to an account by an external caller.
type ExecuteMsg struct {
	SetSpendLimit *policy.SetSpendLimitRequest `json:"set_spend_limit,omitempty"`
}

// Options configure a Runtime. Zero values select an in-memory store, the "aura"
// prefix, a disabled observability provider and the default logger.
type Options struct {
	Store         store.KVStore
	Prefix        string
	ChainID       string
	Verifier      crypto.Verifier
	Observability *observability.Provider
	Logger        *slog.Logger
	ModuleOptions policy.Options
	GenesisTime   time.Time
	// CheckConcurrency bounds how many transactions CheckTxs validates at once.
	CheckConcurrency int
}

// Runtime hosts smart accounts.
type Runtime struct {
	kv               store.KVStore
	api              *host.Bech32API
	registry         *message.Registry
	obs              *observability.Provider
	logger           *slog.Logger
	moduleLogger     *slog.Logger
	moduleOpts       policy.Options
	checkConcurrency int

	// deliverMu serializes state transitions, as block execution would.
	deliverMu sync.Mutex

	mu      sync.RWMutex
	block   policy.BlockInfo
	modules map[string]policy.Module
}

func New(opts Options) *Runtime {
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Prefix == "" {
		opts.Prefix = "aura"
	}
	if opts.ChainID == "" {
		opts.ChainID = "aura-testnet"
	}
	if opts.Observability == nil {
		opts.Observability = observability.Disabled()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.GenesisTime.IsZero() {
		opts.GenesisTime = time.Now()
	}
	if opts.CheckConcurrency <= 0 {
		opts.CheckConcurrency = 8
	}
	return &Runtime{
		kv:               opts.Store,
		api:              host.NewAPI(opts.Prefix, opts.Verifier),
		registry:         message.DefaultRegistry(),
		obs:              opts.Observability,
		logger:           opts.Logger.With("component", "runtime"),
		moduleLogger:     opts.Logger,
		moduleOpts:       opts.ModuleOptions,
		checkConcurrency: opts.CheckConcurrency,
		block: policy.BlockInfo{
			Height:  1,
			Time:    opts.GenesisTime.UTC(),
			ChainID: opts.ChainID,
		},
		modules: make(map[string]policy.Module),
	}
}

// API returns the host API handed to modules.
func (rt *Runtime) API() host.API { return rt.api }

// Block returns the current block.
func (rt *Runtime) Block() policy.BlockInfo {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.block
}

// SetTime moves the block clock to t and starts a new block.
func (rt *Runtime) SetTime(t time.Time) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.block.Time = t.UTC()
	rt.block.Height++
}

// Advance moves the block clock forward by d and starts a new block.
func (rt *Runtime) Advance(d time.Duration) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.block.Time = rt.block.Time.Add(d)
	rt.block.Height++
}

func (rt *Runtime) env(account string) policy.Env {
	return policy.Env{Block: rt.Block(), Contract: policy.ContractRef{Address: account}}
}

func (rt *Runtime) deps(kv store.KVStore, account string) policy.Deps {
	return policy.Deps{
		Store: store.AccountStore(kv, account),
		Querier: host.QuerierFunc(func(ctx context.Context, address string) (coin.Coins, error) {
			return Balances(ctx, kv, address)
		}),
		API:    rt.api,
		Logger: rt.moduleLogger,
	}
}

// RegisterAccount derives the account address from label, instantiates the named
// module for it and returns the address.
func (rt *Runtime) RegisterAccount(ctx context.Context, label, moduleName string, msg json.RawMessage, sender string) (string, *policy.Response, error) {
	rt.deliverMu.Lock()
	defer rt.deliverMu.Unlock()

	addr, err := crypto.ContractAddress(rt.api.Prefix(), label)
	if err != nil {
		return "", nil, err
	}
	if _, found, err := accounts.MayLoad(ctx, rt.kv, addr); err != nil {
		return "", nil, err
	} else if found {
		return "", nil, fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	mod, err := policy.New(moduleName, rt.moduleOpts)
	if err != nil {
		return "", nil, err
	}
	if len(msg) == 0 {
		msg = json.RawMessage(`{}`)
	}

	txn := store.NewTxn(rt.kv)
	defer txn.Discard()
	resp, err := mod.Instantiate(ctx, rt.deps(txn, addr), rt.env(addr), policy.Info{Sender: sender}, msg)
	if err != nil {
		return "", nil, fmt.Errorf("instantiate %s: %w", moduleName, err)
	}
	if err := accounts.Save(ctx, txn, addr, AccountRecord{Label: label, Module: moduleName}); err != nil {
		return "", nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return "", nil, fmt.Errorf("commit: %w", err)
	}

	rt.mu.Lock()
	rt.modules[addr] = mod
	rt.mu.Unlock()

	rt.logger.InfoContext(ctx, "account registered", "account", addr, "module", moduleName, "label", label)
	return addr, resp, nil
}

// module returns the policy module bound to account, loading the registration from
// the store when it is not cached.
func (rt *Runtime) module(ctx context.Context, account string) (policy.Module, error) {
	rt.mu.RLock()
	mod, ok := rt.modules[account]
	rt.mu.RUnlock()
	if ok {
		return mod, nil
	}

	rec, found, err := accounts.MayLoad(ctx, rt.kv, account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	mod, err = policy.New(rec.Module, rt.moduleOpts)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if cached, ok := rt.modules[account]; ok {
		return cached, nil
	}
	rt.modules[account] = mod
	return mod, nil
}

// Account returns the stored registration of account.
func (rt *Runtime) Account(ctx context.Context, account string) (AccountRecord, error) {
	rec, found, err := accounts.MayLoad(ctx, rt.kv, account)
	if err != nil {
		return AccountRecord{}, err
	}
	if !found {
		return AccountRecord{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	return rec, nil
}

// Fund mints coins to address.
func (rt *Runtime) Fund(ctx context.Context, address string, amount coin.Coins) error {
	rt.deliverMu.Lock()
	defer rt.deliverMu.Unlock()
	return Mint(ctx, rt.kv, address, amount)
}

// Balances returns the committed balances of address.
func (rt *Runtime) Balances(ctx context.Context, address string) (coin.Coins, error) {
	return Balances(ctx, rt.kv, address)
}

// invoke runs one hook under a tracked operation.
func (rt *Runtime) invoke(ctx context.Context, account string, mod policy.Module, hook string, fn func(context.Context) (*policy.Response, error)) (*policy.Response, error) {
	ctx, finish := rt.obs.TrackOperation(ctx, "policy."+hook,
		observability.HookOperation(account, mod.Name(), hook)...)
	resp, err := fn(ctx)
	finish(err)
	return resp, err
}

func (rt *Runtime) validate(ctx context.Context, account string, mod policy.Module, deps policy.Deps, env policy.Env, msgs []message.Message) (bool, error) {
	ctx, finish := rt.obs.TrackOperation(ctx, "policy.validate",
		observability.HookOperation(account, mod.Name(), StageValidate)...)
	ok, err := mod.Validate(ctx, deps, env, policy.ValidateRequest{Msgs: msgs})
	if err == nil && !ok {
		finish(ErrRejected)
	} else {
		finish(err)
	}
	return ok, err
}

// DeliverTx runs tx through validation, the account's pre-execute hook, message
// dispatch and the after-execute hook. State changes are committed only if every step
// succeeds. The returned result carries the transaction ID even on failure.
func (rt *Runtime) DeliverTx(ctx context.Context, tx Tx) (*TxResult, error) {
	rt.deliverMu.Lock()
	defer rt.deliverMu.Unlock()

	block := rt.Block()
	res := &TxResult{ID: uuid.NewString(), Height: block.Height, Time: block.Time}
	ctx, finish := rt.obs.TrackOperation(ctx, "runtime.deliver_tx",
		observability.TxOperation(tx.Account, res.ID, len(tx.Msgs))...)
	err := rt.deliver(ctx, tx, res)
	finish(err)

	if err != nil {
		res.Events = nil
		rt.logger.WarnContext(ctx, "transaction aborted", "tx", res.ID, "account", tx.Account, "error", err)
		return res, err
	}
	rt.logger.DebugContext(ctx, "transaction delivered", "tx", res.ID, "account", tx.Account, "msgs", len(tx.Msgs))
	return res, nil
}

func (rt *Runtime) deliver(ctx context.Context, tx Tx, res *TxResult) error {
	mod, err := rt.module(ctx, tx.Account)
	if err != nil {
		return &TxError{TxID: res.ID, Stage: StageValidate, Err: err}
	}

	txn := store.NewTxn(rt.kv)
	defer txn.Discard()
	deps := rt.deps(txn, tx.Account)
	env := rt.env(tx.Account)
	info := policy.Info{Sender: tx.Account}

	ok, err := rt.validate(ctx, tx.Account, mod, deps, env, tx.Msgs)
	if err != nil {
		return &TxError{TxID: res.ID, Stage: StageValidate, Err: err}
	}
	if !ok {
		return &TxError{TxID: res.ID, Stage: StageValidate, Err: ErrRejected}
	}

	resp, err := rt.invoke(ctx, tx.Account, mod, StagePreExecute, func(ctx context.Context) (*policy.Response, error) {
		return mod.PreExecute(ctx, deps, env, info, policy.PreExecuteRequest{
			Msgs: tx.Msgs, CallInfo: tx.CallInfo, IsAuthz: tx.IsAuthz,
		})
	})
	if err != nil {
		return &TxError{TxID: res.ID, Stage: StagePreExecute, Err: err}
	}
	res.addResponse(StagePreExecute, mod.Name(), resp)

	for i, msg := range tx.Msgs {
		ev, err := rt.dispatch(ctx, txn, tx.Account, msg)
		if err != nil {
			return &TxError{TxID: res.ID, Stage: StageExecute, Index: i, Err: err}
		}
		res.Events = append(res.Events, ev)
	}

	resp, err = rt.invoke(ctx, tx.Account, mod, StageAfterExecute, func(ctx context.Context) (*policy.Response, error) {
		return mod.AfterExecute(ctx, deps, env, info, policy.AfterExecuteRequest{
			Msgs: tx.Msgs, CallInfo: tx.CallInfo, IsAuthz: tx.IsAuthz,
		})
	})
	if err != nil {
		return &TxError{TxID: res.ID, Stage: StageAfterExecute, Err: err}
	}
	res.addResponse(StageAfterExecute, mod.Name(), resp)

	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx %s: %w", res.ID, err)
	}
	return nil
}

// dispatch executes one message signed by signer against kv.
func (rt *Runtime) dispatch(ctx context.Context, kv store.KVStore, signer string, msg message.Message) (policy.Event, error) {
	decoded, err := rt.registry.Decode(msg)
	if err != nil {
		return policy.Event{}, err
	}
	switch m := decoded.(type) {
	case *message.MsgSend:
		if m.FromAddress != signer {
			return policy.Event{}, fmt.Errorf("%w: %s cannot send from %s", policy.ErrUnauthorized, signer, m.FromAddress)
		}
		if _, err := rt.api.AddrValidate(m.ToAddress); err != nil {
			return policy.Event{}, fmt.Errorf("invalid recipient: %w", err)
		}
		if err := Send(ctx, kv, m.FromAddress, m.ToAddress, m.Amount); err != nil {
			return policy.Event{}, err
		}
		observability.AddSpanEvent(ctx, "transfer", observability.AttrAccount.String(signer))
		return policy.Event{Type: "transfer", Attributes: []policy.Attribute{
			{Key: "sender", Value: m.FromAddress},
			{Key: "recipient", Value: m.ToAddress},
			{Key: "amount", Value: m.Amount.String()},
		}}, nil
	default:
		return policy.Event{}, fmt.Errorf("%w: %s", ErrNoHandler, msg.TypeURL)
	}
}

// CheckTx runs the account's Validate on tx without changing state.
func (rt *Runtime) CheckTx(ctx context.Context, tx Tx) (bool, error) {
	mod, err := rt.module(ctx, tx.Account)
	if err != nil {
		return false, err
	}
	txn := store.NewTxn(rt.kv)
	defer txn.Discard()
	return rt.validate(ctx, tx.Account, mod, rt.deps(txn, tx.Account), rt.env(tx.Account), tx.Msgs)
}

// CheckTxs validates txs concurrently. A transaction whose check fails is reported in
// its CheckResult; the returned error is only set when ctx is cancelled.
func (rt *Runtime) CheckTxs(ctx context.Context, txs []Tx) ([]CheckResult, error) {
	results := make([]CheckResult, len(txs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rt.checkConcurrency)
	for i, tx := range txs {
		i, tx := i, tx // per-iteration copies (go directive < 1.22)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := rt.CheckTx(gctx, tx)
			results[i] = CheckResult{Accepted: ok && err == nil, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Execute sends an owner action to account on behalf of sender.
func (rt *Runtime) Execute(ctx context.Context, account, sender string, msg ExecuteMsg) (*policy.Response, error) {
	rt.deliverMu.Lock()
	defer rt.deliverMu.Unlock()

	mod, err := rt.module(ctx, account)
	if err != nil {
		return nil, err
	}
	switch {
	case msg.SetSpendLimit != nil:
		setter, ok := mod.(policy.LimitSetter)
		if !ok {
			return nil, fmt.Errorf("%w: %s does not keep spend limits", policy.ErrUnsupported, mod.Name())
		}
		return rt.commit(ctx, account, mod, "set_spend_limit", func(ctx context.Context, deps policy.Deps, env policy.Env) (*policy.Response, error) {
			return setter.SetSpendLimit(ctx, deps, env, policy.Info{Sender: sender}, *msg.SetSpendLimit)
		})
	default:
		return nil, fmt.Errorf("%w: empty execute message", policy.ErrUnsupported)
	}
}

// Sudo runs the privileged recovery path of account. Only the host calls it, so the
// request carries no sender.
func (rt *Runtime) Sudo(ctx context.Context, account string, req policy.RecoverRequest) (*policy.Response, error) {
	rt.deliverMu.Lock()
	defer rt.deliverMu.Unlock()

	mod, err := rt.module(ctx, account)
	if err != nil {
		return nil, err
	}
	rec, ok := mod.(policy.Recoverer)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not support recovery", policy.ErrUnsupported, mod.Name())
	}
	return rt.commit(ctx, account, mod, "recover", func(ctx context.Context, deps policy.Deps, env policy.Env) (*policy.Response, error) {
		return rec.Recover(ctx, deps, env, req)
	})
}

// Migrate moves account's module state to version.
func (rt *Runtime) Migrate(ctx context.Context, account, version string) (*policy.Response, error) {
	rt.deliverMu.Lock()
	defer rt.deliverMu.Unlock()

	mod, err := rt.module(ctx, account)
	if err != nil {
		return nil, err
	}
	mig, ok := mod.(policy.Migrator)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot migrate", policy.ErrUnsupported, mod.Name())
	}
	return rt.commit(ctx, account, mod, "migrate", func(ctx context.Context, deps policy.Deps, env policy.Env) (*policy.Response, error) {
		return mig.Migrate(ctx, deps, env, policy.MigrateRequest{Version: version})
	})
}

// commit runs fn against a transaction over the store and commits it on success.
func (rt *Runtime) commit(ctx context.Context, account string, mod policy.Module, op string, fn func(context.Context, policy.Deps, policy.Env) (*policy.Response, error)) (*policy.Response, error) {
	txn := store.NewTxn(rt.kv)
	defer txn.Discard()
	deps := rt.deps(txn, account)
	env := rt.env(account)

	resp, err := rt.invoke(ctx, account, mod, op, func(ctx context.Context) (*policy.Response, error) {
		return fn(ctx, deps, env)
	})
	if err != nil {
		return nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit %s: %w", op, err)
	}
	return resp, nil
}

// Query runs a read-only query against account's committed state.
func (rt *Runtime) Query(ctx context.Context, account string, req policy.QueryRequest) (json.RawMessage, error) {
	mod, err := rt.module(ctx, account)
	if err != nil {
		return nil, err
	}
	return mod.Query(ctx, rt.deps(rt.kv, account), rt.env(account), req)
}
