package policy

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/aura-nw/smart-account-sample/pkg/message"
)

// Admission evaluates a CEL rule against each message of a transaction in Validate.
//
// The rule sees two variables:
//
//	msg   {type_url: string, value: <decoded JSON payload>}
//	block {height: int, time: int (unix seconds), chain_id: string}
//
// For example: msg.type_url != "/cosmos.bank.v1beta1.MsgSend" || size(msg.value.amount) == 1
type Admission struct {
	expr string
	prg  cel.Program
}

// NewAdmission compiles expr. The program is evaluated with a cost limit.
func NewAdmission(expr string) (*Admission, error) {
	env, err := cel.NewEnv(
		cel.Variable("msg", cel.DynType),
		cel.Variable("block", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return &Admission{expr: expr, prg: prg}, nil
}

func (a *Admission) String() string { return a.expr }

// Allow reports whether msg satisfies the rule at env.
func (a *Admission) Allow(msg message.Message, env Env) (bool, error) {
	var value any
	if len(msg.Value) > 0 {
		if err := json.Unmarshal(msg.Value, &value); err != nil {
			return false, contractError(ErrInvalidMessageFormat, "invalid message payload for %s: %v", msg.TypeURL, err)
		}
	}
	input := map[string]any{
		"msg": map[string]any{
			"type_url": msg.TypeURL,
			"value":    value,
		},
		"block": map[string]any{
			"height":   env.Block.Height,
			"time":     env.Block.Time.Unix(),
			"chain_id": env.Block.ChainID,
		},
	}

	out, _, err := a.prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not bool")
	}
	return val, nil
}
