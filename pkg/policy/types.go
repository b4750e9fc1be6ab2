package policy

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/aura-nw/smart-account-sample/pkg/host"
	"github.com/aura-nw/smart-account-sample/pkg/message"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// Deps is the per-account context the host builds before each invocation. Store is
// already scoped to the account.
type Deps struct {
	Store   store.KVStore
	Querier host.Querier
	API     host.API
	Logger  *slog.Logger
}

func (d Deps) logger(module string) *slog.Logger {
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "policy", "module", module)
}

// BlockInfo describes the block the invocation executes in.
type BlockInfo struct {
	Height  int64     `json:"height"`
	Time    time.Time `json:"time"`
	ChainID string    `json:"chain_id"`
}

// ContractRef identifies the account the module is bound to.
type ContractRef struct {
	Address string `json:"address"`
}

// Env is the execution environment supplied by the host.
type Env struct {
	Block    BlockInfo   `json:"block"`
	Contract ContractRef `json:"contract"`
}

// Info describes the direct caller.
type Info struct {
	Sender string     `json:"sender"`
	Funds  coin.Coins `json:"funds,omitempty"`
}

// PreExecuteRequest is passed to the hook run before the host executes a transaction.
type PreExecuteRequest struct {
	Msgs     []message.Message `json:"msgs"`
	CallInfo message.CallInfo  `json:"call_info"`
	IsAuthz  bool              `json:"is_authz"`
}

// AfterExecuteRequest is passed to the hook run after the host executed a transaction.
type AfterExecuteRequest struct {
	Msgs     []message.Message `json:"msgs"`
	CallInfo message.CallInfo  `json:"call_info"`
	IsAuthz  bool              `json:"is_authz"`
}

// ValidateRequest is the read-only admission check run before a transaction enters
// the pending pool.
type ValidateRequest struct {
	Msgs []message.Message `json:"msgs"`
}

// Credentials prove control of the recovery key.
type Credentials struct {
	Signature []byte `json:"signature"`
}

// UnmarshalJSON also accepts the credentials object wrapped as a base64 string, the
// form in which the host forwards opaque binary payloads.
func (c *Credentials) UnmarshalJSON(data []byte) error {
	type plain Credentials
	if len(data) > 0 && data[0] == '"' {
		var blob []byte
		if err := json.Unmarshal(data, &blob); err != nil {
			return fmt.Errorf("credentials: %w", err)
		}
		data = blob
	}
	return json.Unmarshal(data, (*plain)(c))
}

// Encode returns the base64 binary form accepted by UnmarshalJSON.
func (c Credentials) Encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// RecoverRequest asks to install PubKey as the account's controlling key.
type RecoverRequest struct {
	PubKey      []byte      `json:"pub_key"`
	Credentials Credentials `json:"credentials"`
}

// SetSpendLimitRequest is the owner action that (re)sets a denomination's limit.
type SetSpendLimitRequest struct {
	Denom  string       `json:"denom"`
	Amount sdkmath.Uint `json:"amount"`
}

// MigrateRequest moves stored state to a new module version.
type MigrateRequest struct {
	Version string `json:"version"`
}

// Attribute is a key/value pair attached to a response.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event groups attributes under a type.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Response is what a successful invocation returns to the host.
type Response struct {
	Attributes []Attribute     `json:"attributes"`
	Events     []Event         `json:"events,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// NewResponse returns a response tagged with action.
func NewResponse(action string) *Response {
	return (&Response{}).AddAttribute("action", action)
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r *Response) AddEvent(e Event) *Response {
	r.Events = append(r.Events, e)
	return r
}

// Attribute returns the first attribute with key.
func (r *Response) Attribute(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
