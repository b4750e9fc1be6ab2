package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
)

// Scenario is a scripted sequence of account operations replayed by the simulator.
type Scenario struct {
	Name        string         `yaml:"name" json:"name"`
	ChainID     string         `yaml:"chain_id,omitempty" json:"chain_id,omitempty"`
	GenesisTime time.Time      `yaml:"genesis_time,omitempty" json:"genesis_time,omitempty"`
	Modules     ModuleOptions  `yaml:"module_options,omitempty" json:"module_options,omitempty"`
	Accounts    []AccountSpec  `yaml:"accounts" json:"accounts"`
	Steps       []ScenarioStep `yaml:"steps" json:"steps"`
}

// ModuleOptions mirror policy.Options.
type ModuleOptions struct {
	AllowedTypes []string `yaml:"allowed_types,omitempty" json:"allowed_types,omitempty"`
	Admission    string   `yaml:"admission,omitempty" json:"admission,omitempty"`
}

// AccountSpec declares an account created before the first step. Owner is generated
// when empty.
type AccountSpec struct {
	Label      string   `yaml:"label" json:"label"`
	Module     string   `yaml:"module" json:"module"`
	Owner      string   `yaml:"owner,omitempty" json:"owner,omitempty"`
	RecoverKey string   `yaml:"recover_key,omitempty" json:"recover_key,omitempty"` // hex
	Funds      string   `yaml:"funds,omitempty" json:"funds,omitempty"`
	Limits     []string `yaml:"limits,omitempty" json:"limits,omitempty"`
}

// ScenarioStep performs exactly one action after moving the clock by Advance.
type ScenarioStep struct {
	Name    string        `yaml:"name,omitempty" json:"name,omitempty"`
	Advance time.Duration `yaml:"advance,omitempty" json:"advance,omitempty"`

	Send          *SendStep       `yaml:"send,omitempty" json:"send,omitempty"`
	SetSpendLimit *SpendLimitStep `yaml:"set_spend_limit,omitempty" json:"set_spend_limit,omitempty"`
	Recover       *RecoverStep    `yaml:"recover,omitempty" json:"recover,omitempty"`
	Query         *QueryStep      `yaml:"query,omitempty" json:"query,omitempty"`

	// ExpectError, when set, must be a substring of the step's error. Otherwise the
	// step must succeed.
	ExpectError string `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`
}

// SendStep transfers Amount from Account. To is an account label or an address.
type SendStep struct {
	Account string `yaml:"account" json:"account"`
	To      string `yaml:"to" json:"to"`
	Amount  string `yaml:"amount" json:"amount"`
}

// SpendLimitStep sets a limit as Sender, which defaults to the account owner.
type SpendLimitStep struct {
	Account string `yaml:"account" json:"account"`
	Amount  string `yaml:"amount" json:"amount"`
	Sender  string `yaml:"sender,omitempty" json:"sender,omitempty"`
}

// RecoverStep installs PubKey (hex). The proof is either Signature (hex) or
// Credentials as printed by sign-recovery.
type RecoverStep struct {
	Account     string `yaml:"account" json:"account"`
	PubKey      string `yaml:"pub_key" json:"pub_key"`
	Signature   string `yaml:"signature,omitempty" json:"signature,omitempty"`
	Credentials string `yaml:"credentials,omitempty" json:"credentials,omitempty"`
}

// QueryStep runs one query. SpendLimit names a denom; Kind selects any other query.
type QueryStep struct {
	Account    string `yaml:"account" json:"account"`
	SpendLimit string `yaml:"spend_limit,omitempty" json:"spend_limit,omitempty"`
	Kind       string `yaml:"kind,omitempty" json:"kind,omitempty"` // spend_limits | owner | contract_info | pub_key
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", path, err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %q: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks structure and amounts; it does not resolve labels or addresses.
func (s *Scenario) Validate() error {
	if len(s.Accounts) == 0 {
		return errors.New("scenario declares no accounts")
	}
	labels := make(map[string]struct{}, len(s.Accounts))
	for i, a := range s.Accounts {
		if a.Label == "" || a.Module == "" {
			return fmt.Errorf("account %d: label and module are required", i)
		}
		if _, dup := labels[a.Label]; dup {
			return fmt.Errorf("account %d: duplicate label %q", i, a.Label)
		}
		labels[a.Label] = struct{}{}
		if _, err := coin.ParseCoins(a.Funds); err != nil {
			return fmt.Errorf("account %s funds: %w", a.Label, err)
		}
		for _, l := range a.Limits {
			if _, err := coin.ParseCoin(l); err != nil {
				return fmt.Errorf("account %s limit: %w", a.Label, err)
			}
		}
	}

	for i, st := range s.Steps {
		if err := st.validate(labels); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func (st ScenarioStep) validate(labels map[string]struct{}) error {
	var account string
	actions := 0
	if st.Send != nil {
		actions++
		account = st.Send.Account
		if _, err := coin.ParseCoins(st.Send.Amount); err != nil {
			return err
		}
		if st.Send.To == "" {
			return errors.New("send requires a recipient")
		}
	}
	if st.SetSpendLimit != nil {
		actions++
		account = st.SetSpendLimit.Account
		if _, err := coin.ParseCoin(st.SetSpendLimit.Amount); err != nil {
			return err
		}
	}
	if st.Recover != nil {
		actions++
		account = st.Recover.Account
		if st.Recover.PubKey == "" {
			return errors.New("recover requires pub_key")
		}
		if (st.Recover.Signature == "") == (st.Recover.Credentials == "") {
			return errors.New("recover requires exactly one of signature or credentials")
		}
	}
	if st.Query != nil {
		actions++
		account = st.Query.Account
	}
	if actions != 1 {
		return fmt.Errorf("exactly one action required, got %d", actions)
	}
	if _, ok := labels[account]; !ok {
		return fmt.Errorf("unknown account %q", account)
	}
	if st.Advance < 0 {
		return errors.New("advance must not be negative")
	}
	return nil
}

// Action names the step's action.
func (st ScenarioStep) Action() string {
	switch {
	case st.Send != nil:
		return "send"
	case st.SetSpendLimit != nil:
		return "set_spend_limit"
	case st.Recover != nil:
		return "recover"
	case st.Query != nil:
		return "query"
	default:
		return ""
	}
}
