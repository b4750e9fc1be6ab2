package policy

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/aura-nw/smart-account-sample/pkg/message"
)

// MsgSpendLimit enforces limits on what the transaction's messages say they send:
// AfterExecute charges every coin of every bank send. It trusts that the messages
// passed to the hook are the ones that executed.
//
// Validate admits only allow-listed message types (bank send by default) and, when
// configured, messages satisfying an Admission rule.
type MsgSpendLimit struct {
	limitKeeper
	registry  *message.Registry
	allowed   map[string]struct{}
	admission *Admission
}

func NewMsgSpendLimit(opts Options) (*MsgSpendLimit, error) {
	types := opts.AllowedTypes
	if len(types) == 0 {
		types = []string{message.TypeMsgSend}
	}
	m := &MsgSpendLimit{
		limitKeeper: limitKeeper{name: NameMsgSpendLimit},
		registry:    message.DefaultRegistry(),
		allowed:     make(map[string]struct{}, len(types)),
	}
	for _, t := range types {
		m.allowed[t] = struct{}{}
	}
	if strings.TrimSpace(opts.Admission) != "" {
		a, err := NewAdmission(opts.Admission)
		if err != nil {
			return nil, err
		}
		m.admission = a
	}
	return m, nil
}

func (m *MsgSpendLimit) Name() string { return m.name }

// AllowedTypes lists the admitted message types in sorted order.
func (m *MsgSpendLimit) AllowedTypes() []string {
	out := make([]string, 0, len(m.allowed))
	for t := range m.allowed {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (m *MsgSpendLimit) Instantiate(ctx context.Context, deps Deps, _ Env, info Info, msg json.RawMessage) (*Response, error) {
	return m.instantiate(ctx, deps, info, msg)
}

func (m *MsgSpendLimit) PreExecute(ctx context.Context, deps Deps, env Env, info Info, _ PreExecuteRequest) (*Response, error) {
	if err := requireSelf(ctx, deps, m.name, "pre_execute", env, info); err != nil {
		return nil, err
	}
	return NewResponse("pre_execute"), nil
}

func (m *MsgSpendLimit) AfterExecute(ctx context.Context, deps Deps, env Env, info Info, req AfterExecuteRequest) (*Response, error) {
	if err := requireSelf(ctx, deps, m.name, "after_execute", env, info); err != nil {
		return nil, err
	}

	ledger := m.ledger(deps)
	resp := NewResponse("after_execute")
	for _, msg := range req.Msgs {
		decoded, err := m.registry.Decode(msg)
		if err != nil {
			return nil, err
		}
		send, ok := decoded.(*message.MsgSend)
		if !ok {
			continue
		}
		for _, c := range send.Amount {
			if err := ledger.Charge(ctx, c.Denom, c.Amount, env.Block.Time); err != nil {
				return nil, err
			}
			resp.AddAttribute("spent", c.String())
		}
	}
	return resp, nil
}

func (m *MsgSpendLimit) Validate(ctx context.Context, deps Deps, env Env, req ValidateRequest) (bool, error) {
	log := deps.logger(m.name)
	for i, msg := range req.Msgs {
		if _, ok := m.allowed[msg.TypeURL]; !ok {
			log.WarnContext(ctx, "message type rejected", "index", i, "type_url", msg.TypeURL)
			return false, contractError(ErrDisallowedMessageType, "message type %s is not allowed", msg.TypeURL)
		}
		if _, err := m.registry.Decode(msg); err != nil {
			return false, err
		}
		if m.admission == nil {
			continue
		}
		ok, err := m.admission.Allow(msg, env)
		if err != nil {
			return false, err
		}
		if !ok {
			log.WarnContext(ctx, "admission rule rejected message", "index", i, "rule", m.admission.String())
			return false, contractError(ErrDisallowedMessageType, "message %d rejected by admission rule", i)
		}
	}
	return true, nil
}
