package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/aura-nw/smart-account-sample/pkg/config"
	"github.com/aura-nw/smart-account-sample/pkg/crypto"
	"github.com/aura-nw/smart-account-sample/pkg/message"
	"github.com/aura-nw/smart-account-sample/pkg/observability"
	"github.com/aura-nw/smart-account-sample/pkg/policy"
	"github.com/aura-nw/smart-account-sample/pkg/runtime"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// SimulationReport is the --json output of simulate.
type SimulationReport struct {
	Scenario string            `json:"scenario"`
	Accounts map[string]string `json:"accounts"`
	Steps    []StepResult      `json:"steps"`
	Passed   bool              `json:"passed"`
}

// StepResult records one replayed step.
type StepResult struct {
	Index  int             `json:"index"`
	Name   string          `json:"name,omitempty"`
	Action string          `json:"action"`
	Height int64           `json:"height"`
	TxID   string          `json:"tx_id,omitempty"`
	Error  string          `json:"error,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
	Events []policy.Event  `json:"events,omitempty"`
	Passed bool            `json:"passed"`
}

// runSimulateCmd implements `smartaccount simulate`.
//
// Exit codes:
//
//	0 = every step matched its expectation
//	1 = at least one step did not
//	2 = usage or setup error
func runSimulateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("simulate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		scenarioPath string
		jsonOutput   bool
	)
	cmd.StringVar(&scenarioPath, "scenario", "", "Path to scenario YAML (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output report as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if scenarioPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --scenario is required")
		return 2
	}

	sc, err := config.LoadScenario(scenarioPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	cfg := config.Load()
	logger := newLogger(cfg, stderr)

	kv, closeStore, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: open store: %v\n", err)
		return 2
	}
	defer func() { _ = closeStore() }()

	obs, err := observability.New(ctx, cfg.Observability())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: observability: %v\n", err)
		return 2
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	chainID := sc.ChainID
	if chainID == "" {
		chainID = cfg.ChainID
	}
	rt := runtime.New(runtime.Options{
		Store:         kv,
		Prefix:        cfg.AddressPrefix,
		ChainID:       chainID,
		Observability: obs,
		Logger:        logger,
		ModuleOptions: policy.Options{
			AllowedTypes: sc.Modules.AllowedTypes,
			Admission:    sc.Modules.Admission,
		},
		GenesisTime: sc.GenesisTime,
	})

	sim := &simulation{rt: rt, prefix: cfg.AddressPrefix, addrs: map[string]string{}, owners: map[string]string{}}
	if err := sim.setup(ctx, sc); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	report := SimulationReport{Scenario: sc.Name, Accounts: sim.addrs, Passed: true}
	for i, step := range sc.Steps {
		res := sim.run(ctx, i, step)
		report.Passed = report.Passed && res.Passed
		report.Steps = append(report.Steps, res)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printReport(stdout, report)
	}
	if !report.Passed {
		return 1
	}
	return 0
}

type simulation struct {
	rt     *runtime.Runtime
	prefix string
	addrs  map[string]string // label -> address
	owners map[string]string // label -> owner address
}

func (s *simulation) setup(ctx context.Context, sc *config.Scenario) error {
	for _, a := range sc.Accounts {
		owner := a.Owner
		if owner == "" {
			signer, err := crypto.GenerateSecp256k1Signer()
			if err != nil {
				return err
			}
			owner, err = crypto.AddressFromPubKey(s.prefix, signer.PublicKeyBytes())
			if err != nil {
				return err
			}
		}

		var msg any = struct{}{}
		switch a.Module {
		case policy.NameSpendLimit, policy.NameMsgSpendLimit:
			msg = policy.OwnerInstantiateMsg{Owner: owner}
		case policy.NameRecovery:
			msg = policy.RecoveryInstantiateMsg{RecoverKey: a.RecoverKey}
		}
		raw, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		addr, _, err := s.rt.RegisterAccount(ctx, a.Label, a.Module, raw, owner)
		if err != nil {
			return fmt.Errorf("account %s: %w", a.Label, err)
		}
		s.addrs[a.Label] = addr
		s.owners[a.Label] = owner

		funds, err := coin.ParseCoins(a.Funds)
		if err != nil {
			return err
		}
		if len(funds) > 0 {
			if err := s.rt.Fund(ctx, addr, funds); err != nil {
				return fmt.Errorf("fund %s: %w", a.Label, err)
			}
		}
		for _, l := range a.Limits {
			if _, err := s.setLimit(ctx, a.Label, l, owner); err != nil {
				return fmt.Errorf("limit %s on %s: %w", l, a.Label, err)
			}
		}
	}
	return nil
}

func (s *simulation) resolve(labelOrAddr string) string {
	if addr, ok := s.addrs[labelOrAddr]; ok {
		return addr
	}
	return labelOrAddr
}

func (s *simulation) setLimit(ctx context.Context, label, amount, sender string) (*policy.Response, error) {
	c, err := coin.ParseCoin(amount)
	if err != nil {
		return nil, err
	}
	return s.rt.Execute(ctx, s.addrs[label], sender, runtime.ExecuteMsg{
		SetSpendLimit: &policy.SetSpendLimitRequest{Denom: c.Denom, Amount: c.Amount},
	})
}

func (s *simulation) run(ctx context.Context, i int, step config.ScenarioStep) StepResult {
	if step.Advance > 0 {
		s.rt.Advance(step.Advance)
	}
	res := StepResult{Index: i, Name: step.Name, Action: step.Action(), Height: s.rt.Block().Height}

	err := s.perform(ctx, step, &res)
	if err != nil {
		res.Error = err.Error()
	}
	switch {
	case step.ExpectError == "":
		res.Passed = err == nil
	default:
		res.Passed = err != nil && strings.Contains(err.Error(), step.ExpectError)
	}
	return res
}

func (s *simulation) perform(ctx context.Context, step config.ScenarioStep, res *StepResult) error {
	switch {
	case step.Send != nil:
		from := s.resolve(step.Send.Account)
		amount, err := coin.ParseCoins(step.Send.Amount)
		if err != nil {
			return err
		}
		msg, err := newSend(from, s.resolve(step.Send.To), amount)
		if err != nil {
			return err
		}
		out, err := s.rt.DeliverTx(ctx, runtime.Tx{Account: from, Msgs: msg})
		if out != nil {
			res.TxID = out.ID
			res.Events = out.Events
		}
		return err

	case step.SetSpendLimit != nil:
		sender := step.SetSpendLimit.Sender
		if sender == "" {
			sender = s.owners[step.SetSpendLimit.Account]
		}
		resp, err := s.setLimit(ctx, step.SetSpendLimit.Account, step.SetSpendLimit.Amount, s.resolve(sender))
		if resp != nil {
			res.Events = []policy.Event{{Type: "execute", Attributes: resp.Attributes}}
		}
		return err

	case step.Recover != nil:
		req, err := recoverRequest(step.Recover)
		if err != nil {
			return err
		}
		resp, err := s.rt.Sudo(ctx, s.resolve(step.Recover.Account), req)
		if resp != nil {
			res.Events = []policy.Event{{Type: "sudo", Attributes: resp.Attributes}}
		}
		return err

	case step.Query != nil:
		q, err := queryRequest(step.Query)
		if err != nil {
			return err
		}
		out, err := s.rt.Query(ctx, s.resolve(step.Query.Account), q)
		res.Output = out
		return err
	}
	return errors.New("step has no action")
}

func newSend(from, to string, amount coin.Coins) ([]message.Message, error) {
	msg, err := message.NewMsgSend(from, to, amount)
	if err != nil {
		return nil, err
	}
	return []message.Message{msg}, nil
}

func recoverRequest(st *config.RecoverStep) (policy.RecoverRequest, error) {
	pubKey, err := hex.DecodeString(st.PubKey)
	if err != nil {
		return policy.RecoverRequest{}, fmt.Errorf("pub_key: %w", err)
	}
	req := policy.RecoverRequest{PubKey: pubKey}
	if st.Credentials != "" {
		raw, err := json.Marshal(st.Credentials)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(raw, &req.Credentials); err != nil {
			return req, err
		}
		return req, nil
	}
	req.Credentials.Signature, err = hex.DecodeString(st.Signature)
	if err != nil {
		return req, fmt.Errorf("signature: %w", err)
	}
	return req, nil
}

func queryRequest(st *config.QueryStep) (policy.QueryRequest, error) {
	var q policy.QueryRequest
	if st.SpendLimit != "" {
		q.SpendLimit = &policy.SpendLimitQuery{Denom: st.SpendLimit}
		return q, nil
	}
	switch st.Kind {
	case "spend_limits":
		q.SpendLimits = &struct{}{}
	case "owner":
		q.Owner = &struct{}{}
	case "contract_info":
		q.ContractInfo = &struct{}{}
	case "pub_key":
		q.PubKey = &struct{}{}
	default:
		return q, fmt.Errorf("unknown query kind %q", st.Kind)
	}
	return q, nil
}

func printReport(w io.Writer, r SimulationReport) {
	_, _ = fmt.Fprintf(w, "%sScenario:%s %s\n", ColorBold, ColorReset, r.Scenario)
	for i, step := range r.Steps {
		status := ColorGreen + "PASS" + ColorReset
		if !step.Passed {
			status = ColorRed + "FAIL" + ColorReset
		}
		name := step.Name
		if name == "" {
			name = step.Action
		}
		_, _ = fmt.Fprintf(w, "  [%s] %d %-20s height=%d", status, i, name, step.Height)
		if step.Error != "" {
			_, _ = fmt.Fprintf(w, " error=%q", step.Error)
		}
		if len(step.Output) > 0 {
			_, _ = fmt.Fprintf(w, " output=%s", step.Output)
		}
		_, _ = fmt.Fprintln(w)
	}
	if r.Passed {
		_, _ = fmt.Fprintf(w, "%sAll steps passed%s\n", ColorGreen, ColorReset)
	} else {
		_, _ = fmt.Fprintf(w, "%sSome steps failed%s\n", ColorRed, ColorReset)
	}
}
