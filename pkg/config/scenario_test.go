package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-nw/smart-account-sample/pkg/config"
)

func TestLoadScenario(t *testing.T) {
	sc, err := config.LoadScenario("testdata/spend_limit.yaml")
	require.NoError(t, err)

	assert.Equal(t, "hourly spend limit", sc.Name)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), sc.GenesisTime.UTC())
	require.Len(t, sc.Accounts, 2)
	assert.Equal(t, "spend-limit", sc.Accounts[0].Module)
	assert.Equal(t, []string{"1000uaura"}, sc.Accounts[0].Limits)

	require.Len(t, sc.Steps, 5)
	assert.Equal(t, 100*time.Second, sc.Steps[0].Advance)
	assert.Equal(t, "send", sc.Steps[0].Action())
	assert.Equal(t, "bob", sc.Steps[0].Send.To)
	assert.Equal(t, "limit exceed for denom", sc.Steps[1].ExpectError)
	assert.Equal(t, time.Hour, sc.Steps[3].Advance)
	assert.Equal(t, "query", sc.Steps[4].Action())
	assert.Equal(t, "uaura", sc.Steps[4].Query.SpendLimit)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := config.LoadScenario("testdata/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load scenario")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no accounts",
			yaml: `name: empty`,
			want: "no accounts",
		},
		{
			name: "missing module",
			yaml: `accounts: [{label: a}]`,
			want: "label and module are required",
		},
		{
			name: "duplicate label",
			yaml: `accounts: [{label: a, module: base}, {label: a, module: base}]`,
			want: "duplicate label",
		},
		{
			name: "bad funds",
			yaml: `accounts: [{label: a, module: base, funds: "lots"}]`,
			want: "funds",
		},
		{
			name: "two actions",
			yaml: `
accounts: [{label: a, module: base}]
steps:
  - send: {account: a, to: b, amount: 1uaura}
    query: {account: a, kind: owner}`,
			want: "exactly one action",
		},
		{
			name: "unknown account",
			yaml: `
accounts: [{label: a, module: base}]
steps:
  - query: {account: z, kind: owner}`,
			want: "unknown account",
		},
		{
			name: "bad limit amount",
			yaml: `
accounts: [{label: a, module: spend-limit}]
steps:
  - set_spend_limit: {account: a, amount: "ten"}`,
			want: "step 0",
		},
		{
			name: "malformed yaml",
			yaml: `accounts: [`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
