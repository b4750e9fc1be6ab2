package policy

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aura-nw/smart-account-sample/pkg/crypto"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// RecoveryInstantiateMsg carries the hex-encoded recovery public key.
type RecoveryInstantiateMsg struct {
	RecoverKey string `json:"recover_key"`
}

// ControllingKey is the key installed by the last successful recovery.
type ControllingKey struct {
	Key         []byte    `json:"key"`
	Address     string    `json:"address"`
	RecoveredAt time.Time `json:"recovered_at"`
}

var (
	recoverKeyItem = store.NewItem[[]byte]("recover_key")
	pubKeyItem     = store.NewItem[ControllingKey]("pubkey")
)

// Recovery lets the holder of the recovery key install a new controlling key through
// the host's privileged path. Its hooks only enforce the self-call rule.
type Recovery struct{}

func NewRecovery() *Recovery { return &Recovery{} }

func (*Recovery) Name() string { return NameRecovery }

func (m *Recovery) Instantiate(ctx context.Context, deps Deps, _ Env, info Info, raw json.RawMessage) (*Response, error) {
	var msg RecoveryInstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, contractError(ErrInvalidMessageFormat, "invalid instantiate message: %v", err)
	}
	key, err := hex.DecodeString(msg.RecoverKey)
	if err != nil {
		return nil, contractError(ErrInvalidMessageFormat, "invalid recover key hex: %v", err)
	}
	if _, err := crypto.KeyType(key); err != nil {
		return nil, contractError(ErrInvalidMessageFormat, "invalid recover key: %v", err)
	}
	if err := setContractVersion(ctx, deps.Store, m.Name(), Version); err != nil {
		return nil, err
	}
	if err := recoverKeyItem.Save(ctx, deps.Store, key); err != nil {
		return nil, err
	}
	return (&Response{}).
		AddAttribute("method", "instantiate").
		AddAttribute("owner", info.Sender), nil
}

func (m *Recovery) PreExecute(ctx context.Context, deps Deps, env Env, info Info, _ PreExecuteRequest) (*Response, error) {
	if err := requireSelf(ctx, deps, m.Name(), "pre_execute", env, info); err != nil {
		return nil, err
	}
	return NewResponse("pre_execute"), nil
}

func (m *Recovery) AfterExecute(ctx context.Context, deps Deps, env Env, info Info, _ AfterExecuteRequest) (*Response, error) {
	if err := requireSelf(ctx, deps, m.Name(), "after_execute", env, info); err != nil {
		return nil, err
	}
	return NewResponse("after_execute"), nil
}

func (*Recovery) Validate(context.Context, Deps, Env, ValidateRequest) (bool, error) {
	return true, nil
}

// Recover verifies a signature by the recovery key over sha256(req.PubKey) and, if it
// holds, installs req.PubKey as the controlling key. The recovery key is unchanged.
func (m *Recovery) Recover(ctx context.Context, deps Deps, env Env, req RecoverRequest) (*Response, error) {
	log := deps.logger(m.Name())
	digest := crypto.Sha256(req.PubKey)

	recoverKey, err := recoverKeyItem.Load(ctx, deps.Store)
	if err != nil {
		return nil, fmt.Errorf("load recover key: %w", err)
	}

	ok, err := deps.API.Verify(digest, req.Credentials.Signature, recoverKey)
	if err != nil || !ok {
		log.WarnContext(ctx, "recovery signature rejected", "account", env.Contract.Address, "error", err)
		return nil, contractError(ErrInvalidSignature, "Invalid signature for recovery")
	}

	addr, err := crypto.AddressFromPubKey(deps.API.Prefix(), req.PubKey)
	if err != nil {
		return nil, contractError(ErrInvalidMessageFormat, "invalid public key: %v", err)
	}
	if err := pubKeyItem.Save(ctx, deps.Store, ControllingKey{
		Key:         req.PubKey,
		Address:     addr,
		RecoveredAt: env.Block.Time.UTC(),
	}); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "account recovered", "account", env.Contract.Address, "address", addr)
	return NewResponse("recover").AddAttribute("address", addr), nil
}

// ControllingKey returns the key installed by the last recovery, if any.
func (m *Recovery) ControllingKey(ctx context.Context, deps Deps) (ControllingKey, bool, error) {
	return pubKeyItem.MayLoad(ctx, deps.Store)
}

func (m *Recovery) Query(ctx context.Context, deps Deps, _ Env, req QueryRequest) (json.RawMessage, error) {
	switch {
	case req.PubKey != nil:
		return queryRecoveryKeys(ctx, deps)
	case req.ContractInfo != nil:
		return queryContractInfo(ctx, deps)
	default:
		return nil, unsupportedQuery(m.Name(), req)
	}
}

func (m *Recovery) Migrate(ctx context.Context, deps Deps, _ Env, req MigrateRequest) (*Response, error) {
	return migrateContract(ctx, deps, m.Name(), req)
}
