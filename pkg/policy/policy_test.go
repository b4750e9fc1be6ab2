package policy_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/aura-nw/smart-account-sample/pkg/crypto"
	"github.com/aura-nw/smart-account-sample/pkg/host"
	"github.com/aura-nw/smart-account-sample/pkg/message"
	"github.com/aura-nw/smart-account-sample/pkg/policy"
	"github.com/aura-nw/smart-account-sample/pkg/spendlimit"
	"github.com/aura-nw/smart-account-sample/pkg/store"
)

var t0 = time.Unix(1_700_000_000, 0).UTC()

type fixture struct {
	t        *testing.T
	kv       *store.MemoryStore
	balances coin.Coins
	deps     policy.Deps
	account  string
	owner    string
	stranger string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	account, err := crypto.ContractAddress("aura", "test-account")
	require.NoError(t, err)

	f := &fixture{t: t, kv: store.NewMemoryStore(), account: account}
	f.owner = newAddress(t)
	f.stranger = newAddress(t)
	f.deps = policy.Deps{
		Store: f.kv,
		Querier: host.QuerierFunc(func(_ context.Context, addr string) (coin.Coins, error) {
			if addr != f.account {
				return nil, nil
			}
			return f.balances, nil
		}),
		API: host.NewAPI("aura", nil),
	}
	return f
}

func newAddress(t *testing.T) string {
	t.Helper()
	s, err := crypto.GenerateSecp256k1Signer()
	require.NoError(t, err)
	addr, err := crypto.AddressFromPubKey("aura", s.PublicKeyBytes())
	require.NoError(t, err)
	return addr
}

func (f *fixture) env(offset time.Duration) policy.Env {
	return policy.Env{
		Block:    policy.BlockInfo{Height: 1, Time: t0.Add(offset), ChainID: "aura-testnet"},
		Contract: policy.ContractRef{Address: f.account},
	}
}

func (f *fixture) self() policy.Info { return policy.Info{Sender: f.account} }

func (f *fixture) instantiate(m policy.Module, msg any) {
	f.t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(f.t, err)
	_, err = m.Instantiate(context.Background(), f.deps, f.env(0), policy.Info{Sender: f.owner}, raw)
	require.NoError(f.t, err)
}

func (f *fixture) setLimit(m policy.LimitSetter, denom string, amount uint64, at time.Duration) {
	f.t.Helper()
	resp, err := m.SetSpendLimit(context.Background(), f.deps, f.env(at), policy.Info{Sender: f.owner},
		policy.SetSpendLimitRequest{Denom: denom, Amount: sdkmath.NewUint(amount)})
	require.NoError(f.t, err)
	action, _ := resp.Attribute("action")
	assert.Equal(f.t, "set_spend_limit", action)
}

func send(t *testing.T, from string, coins ...coin.Coin) message.Message {
	t.Helper()
	msg, err := message.NewMsgSend(from, "aura1recipient", coin.NewCoins(coins...))
	require.NoError(t, err)
	return msg
}

func TestHooks_RejectForeignSender(t *testing.T) {
	recoverySigner, err := crypto.GenerateSecp256k1Signer()
	require.NoError(t, err)

	tests := []struct {
		name string
		init func(f *fixture) any
	}{
		{name: policy.NameBase, init: func(*fixture) any { return struct{}{} }},
		{name: policy.NameSpendLimit, init: func(f *fixture) any { return policy.OwnerInstantiateMsg{Owner: f.owner} }},
		{name: policy.NameMsgSpendLimit, init: func(f *fixture) any { return policy.OwnerInstantiateMsg{Owner: f.owner} }},
		{name: policy.NameRecovery, init: func(*fixture) any {
			return policy.RecoveryInstantiateMsg{RecoverKey: hex.EncodeToString(recoverySigner.PublicKeyBytes())}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.balances = coin.NewCoins(coin.New("uaura", 100))
			m, err := policy.New(tt.name, policy.Options{})
			require.NoError(t, err)
			f.instantiate(m, tt.init(f))

			msgs := []message.Message{send(t, f.account, coin.New("uaura", 1))}
			for _, sender := range []string{f.owner, f.stranger, ""} {
				info := policy.Info{Sender: sender}
				_, err = m.PreExecute(ctx, f.deps, f.env(0), info, policy.PreExecuteRequest{Msgs: msgs})
				assert.ErrorIs(t, err, policy.ErrUnauthorized)
				_, err = m.AfterExecute(ctx, f.deps, f.env(0), info, policy.AfterExecuteRequest{Msgs: msgs})
				assert.ErrorIs(t, err, policy.ErrUnauthorized)
			}

			resp, err := m.PreExecute(ctx, f.deps, f.env(0), f.self(), policy.PreExecuteRequest{Msgs: msgs})
			require.NoError(t, err)
			action, _ := resp.Attribute("action")
			assert.Equal(t, "pre_execute", action)
		})
	}
}

func TestBase_InstantiateRecordsOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := policy.NewBase()
	f.instantiate(m, struct{}{})

	raw, err := m.Query(ctx, f.deps, f.env(0), policy.QueryRequest{Owner: &struct{}{}})
	require.NoError(t, err)
	var owner policy.OwnerResponse
	require.NoError(t, json.Unmarshal(raw, &owner))
	assert.Equal(t, f.owner, owner.Owner)

	raw, err = m.Query(ctx, f.deps, f.env(0), policy.QueryRequest{ContractInfo: &struct{}{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"contract":"crates.io:base","version":"0.1.0"}`, string(raw))

	ok, err := m.Validate(ctx, f.deps, f.env(0), policy.ValidateRequest{
		Msgs: []message.Message{{TypeURL: "/cosmos.staking.v1beta1.MsgDelegate", Value: json.RawMessage(`{}`)}},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = m.Query(ctx, f.deps, f.env(0), policy.QueryRequest{SpendLimits: &struct{}{}})
	assert.ErrorIs(t, err, policy.ErrUnsupported)
}

func TestSpendLimit_BalanceDiffScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := policy.NewSpendLimit()
	f.instantiate(m, policy.OwnerInstantiateMsg{Owner: f.owner})
	f.setLimit(m, "uaura", 1000, 0)

	run := func(at time.Duration, spend uint64) error {
		_, err := m.PreExecute(ctx, f.deps, f.env(at), f.self(), policy.PreExecuteRequest{})
		require.NoError(t, err)
		before := f.balances
		f.balances, err = f.balances.SafeSub(coin.New("uaura", spend))
		require.NoError(t, err)
		_, err = m.AfterExecute(ctx, f.deps, f.env(at), f.self(), policy.AfterExecuteRequest{})
		if err != nil {
			// the host rolls the transfer back
			f.balances = before
		}
		return err
	}

	f.balances = coin.NewCoins(coin.New("uaura", 5000), coin.New("stake", 10))

	require.NoError(t, run(100*time.Second, 600))
	rec, ok, err := spendlimit.NewLedger(f.kv).Limit(ctx, "uaura")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "600", rec.Used.String())

	err = run(200*time.Second, 500)
	assert.ErrorIs(t, err, policy.ErrLimitExceeded)
	var limitErr *spendlimit.LimitExceededError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "uaura", limitErr.Denom)

	require.NoError(t, run(4000*time.Second, 500))
	assert.Equal(t, "3900", f.balances.AmountOf("uaura").String())
}

func TestSpendLimit_AfterExecuteWithoutSnapshot(t *testing.T) {
	f := newFixture(t)
	m := policy.NewSpendLimit()
	f.instantiate(m, policy.OwnerInstantiateMsg{Owner: f.owner})

	_, err := m.AfterExecute(context.Background(), f.deps, f.env(0), f.self(), policy.AfterExecuteRequest{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSpendLimit_DenomLeavingBalancesIsFullySpent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := policy.NewSpendLimit()
	f.instantiate(m, policy.OwnerInstantiateMsg{Owner: f.owner})
	f.setLimit(m, "uaura", 100, 0)

	f.balances = coin.NewCoins(coin.New("uaura", 150), coin.New("stake", 999))
	_, err := m.PreExecute(ctx, f.deps, f.env(time.Second), f.self(), policy.PreExecuteRequest{})
	require.NoError(t, err)

	// stake has no limit; uaura disappears from the balances entirely
	f.balances = coin.Coins{}
	_, err = m.AfterExecute(ctx, f.deps, f.env(time.Second), f.self(), policy.AfterExecuteRequest{})
	assert.ErrorIs(t, err, policy.ErrLimitExceeded)
}

func TestSpendLimit_IncomingFundsAreNotCharged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := policy.NewSpendLimit()
	f.instantiate(m, policy.OwnerInstantiateMsg{Owner: f.owner})
	f.setLimit(m, "uaura", 10, 0)

	f.balances = coin.NewCoins(coin.New("uaura", 50))
	_, err := m.PreExecute(ctx, f.deps, f.env(time.Second), f.self(), policy.PreExecuteRequest{})
	require.NoError(t, err)
	f.balances = coin.NewCoins(coin.New("uaura", 500))
	resp, err := m.AfterExecute(ctx, f.deps, f.env(time.Second), f.self(), policy.AfterExecuteRequest{})
	require.NoError(t, err)
	_, charged := resp.Attribute("spent")
	assert.False(t, charged)
}

func TestSpendLimit_InstantiateRejectsBadOwner(t *testing.T) {
	f := newFixture(t)
	m := policy.NewSpendLimit()
	_, err := m.Instantiate(context.Background(), f.deps, f.env(0), f.self(), json.RawMessage(`{"owner":"cosmos1xyz"}`))
	assert.Error(t, err)

	_, err = m.Instantiate(context.Background(), f.deps, f.env(0), f.self(), json.RawMessage(`[`))
	assert.ErrorIs(t, err, policy.ErrInvalidMessageFormat)
}

func TestSetSpendLimit_OnlyOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := policy.NewSpendLimit()
	f.instantiate(m, policy.OwnerInstantiateMsg{Owner: f.owner})

	for _, sender := range []string{f.stranger, f.account} {
		_, err := m.SetSpendLimit(ctx, f.deps, f.env(0), policy.Info{Sender: sender},
			policy.SetSpendLimitRequest{Denom: "uaura", Amount: sdkmath.NewUint(1)})
		assert.ErrorIs(t, err, policy.ErrUnauthorized)
	}

	f.setLimit(m, "uaura", 1000, 10*time.Second)
	raw, err := m.Query(ctx, f.deps, f.env(20*time.Second), policy.QueryRequest{SpendLimit: &policy.SpendLimitQuery{Denom: "uaura"}})
	require.NoError(t, err)
	var resp policy.SpendLimitResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotNil(t, resp.Limit)
	assert.Equal(t, "1000", resp.Limit.Limit.String())
	assert.True(t, resp.Limit.Used.IsZero())
	assert.False(t, resp.Expired)

	raw, err = m.Query(ctx, f.deps, f.env(0), policy.QueryRequest{SpendLimit: &policy.SpendLimitQuery{Denom: "stake"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"denom":"stake","limit":null,"expired":false}`, string(raw))

	raw, err = m.Query(ctx, f.deps, f.env(0), policy.QueryRequest{SpendLimits: &struct{}{}})
	require.NoError(t, err)
	var all policy.SpendLimitsResponse
	require.NoError(t, json.Unmarshal(raw, &all))
	require.Len(t, all.Limits, 1)
	assert.Equal(t, "uaura", all.Limits[0].Denom)
}

func TestMsgSpendLimit_Validate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m, err := policy.NewMsgSpendLimit(policy.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{message.TypeMsgSend}, m.AllowedTypes())

	ok, err := m.Validate(ctx, f.deps, f.env(0), policy.ValidateRequest{
		Msgs: []message.Message{send(t, f.account, coin.New("uaura", 1)), send(t, f.account, coin.New("stake", 2))},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Validate(ctx, f.deps, f.env(0), policy.ValidateRequest{
		Msgs: []message.Message{
			send(t, f.account, coin.New("uaura", 1)),
			{TypeURL: "/cosmos.staking.v1beta1.MsgDelegate", Value: json.RawMessage(`{}`)},
		},
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, policy.ErrDisallowedMessageType)

	ok, err = m.Validate(ctx, f.deps, f.env(0), policy.ValidateRequest{
		Msgs: []message.Message{{TypeURL: message.TypeMsgSend, Value: json.RawMessage(`{"from_address":"a"}`)}},
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, policy.ErrInvalidMessageFormat)
}

func TestMsgSpendLimit_ChargesSentAmounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m, err := policy.NewMsgSpendLimit(policy.Options{})
	require.NoError(t, err)
	f.instantiate(m, policy.OwnerInstantiateMsg{Owner: f.owner})
	f.setLimit(m, "uaura", 1000, 0)

	after := func(at time.Duration, amount uint64) error {
		_, err := m.AfterExecute(ctx, f.deps, f.env(at), f.self(), policy.AfterExecuteRequest{
			Msgs: []message.Message{
				send(t, f.account, coin.New("uaura", amount), coin.New("stake", 1_000_000)),
				{TypeURL: "/cosmwasm.wasm.v1.MsgExecuteContract", Value: json.RawMessage(`{"contract":"x"}`)},
			},
		})
		return err
	}

	require.NoError(t, after(100*time.Second, 600))
	assert.ErrorIs(t, after(200*time.Second, 500), policy.ErrLimitExceeded)
	require.NoError(t, after(4000*time.Second, 500))

	_, err = m.AfterExecute(ctx, f.deps, f.env(0), f.self(), policy.AfterExecuteRequest{
		Msgs: []message.Message{{TypeURL: message.TypeMsgSend, Value: json.RawMessage(`"not an object"`)}},
	})
	assert.ErrorIs(t, err, policy.ErrInvalidMessageFormat)
}

func TestMsgSpendLimit_AdmissionRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m, err := policy.NewMsgSpendLimit(policy.Options{
		Admission: `msg.type_url != "/cosmos.bank.v1beta1.MsgSend" || size(msg.value.amount) == 1`,
	})
	require.NoError(t, err)

	ok, err := m.Validate(ctx, f.deps, f.env(0), policy.ValidateRequest{
		Msgs: []message.Message{send(t, f.account, coin.New("uaura", 1))},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Validate(ctx, f.deps, f.env(0), policy.ValidateRequest{
		Msgs: []message.Message{send(t, f.account, coin.New("uaura", 1), coin.New("stake", 1))},
	})
	assert.False(t, ok)
	assert.ErrorIs(t, err, policy.ErrDisallowedMessageType)

	_, err = policy.NewMsgSpendLimit(policy.Options{Admission: `msg.type_url ==`})
	assert.Error(t, err)
}

func TestMsgSpendLimit_CustomAllowList(t *testing.T) {
	f := newFixture(t)
	m, err := policy.New(policy.NameMsgSpendLimit, policy.Options{
		AllowedTypes: []string{message.TypeMsgSend, "/cosmos.staking.v1beta1.MsgDelegate"},
	})
	require.NoError(t, err)

	ok, err := m.Validate(context.Background(), f.deps, f.env(0), policy.ValidateRequest{
		Msgs: []message.Message{{TypeURL: "/cosmos.staking.v1beta1.MsgDelegate", Value: json.RawMessage(`{}`)}},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecovery_Recover(t *testing.T) {
	ctx := context.Background()
	recoverySigner, err := crypto.GenerateSecp256k1Signer()
	require.NoError(t, err)
	newKey, err := crypto.GenerateSecp256k1Signer()
	require.NoError(t, err)

	setup := func(t *testing.T) (*fixture, *policy.Recovery) {
		f := newFixture(t)
		m := policy.NewRecovery()
		f.instantiate(m, policy.RecoveryInstantiateMsg{RecoverKey: hex.EncodeToString(recoverySigner.PublicKeyBytes())})
		return f, m
	}

	sig, err := recoverySigner.SignDigest(crypto.Sha256(newKey.PublicKeyBytes()))
	require.NoError(t, err)

	t.Run("valid signature installs key", func(t *testing.T) {
		f, m := setup(t)
		resp, err := m.Recover(ctx, f.deps, f.env(time.Minute), policy.RecoverRequest{
			PubKey:      newKey.PublicKeyBytes(),
			Credentials: policy.Credentials{Signature: sig},
		})
		require.NoError(t, err)
		action, _ := resp.Attribute("action")
		assert.Equal(t, "recover", action)

		wantAddr, err := crypto.AddressFromPubKey("aura", newKey.PublicKeyBytes())
		require.NoError(t, err)
		addr, _ := resp.Attribute("address")
		assert.Equal(t, wantAddr, addr)

		key, ok, err := m.ControllingKey(ctx, f.deps)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, newKey.PublicKeyBytes(), key.Key)

		raw, err := m.Query(ctx, f.deps, f.env(0), policy.QueryRequest{PubKey: &struct{}{}})
		require.NoError(t, err)
		var pk policy.PubKeyResponse
		require.NoError(t, json.Unmarshal(raw, &pk))
		assert.Equal(t, hex.EncodeToString(recoverySigner.PublicKeyBytes()), pk.RecoverKey)
		assert.Equal(t, wantAddr, pk.Address)
	})

	t.Run("bit flip is rejected", func(t *testing.T) {
		for _, bit := range []int{0, 7, 100, 300, 511} {
			f, m := setup(t)
			flipped := append([]byte(nil), sig...)
			flipped[bit/8] ^= 1 << (bit % 8)
			_, err := m.Recover(ctx, f.deps, f.env(0), policy.RecoverRequest{
				PubKey:      newKey.PublicKeyBytes(),
				Credentials: policy.Credentials{Signature: flipped},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, policy.ErrInvalidSignature)
			assert.Equal(t, "Invalid signature for recovery", err.Error())

			_, ok, err := m.ControllingKey(ctx, f.deps)
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("signature over another key is rejected", func(t *testing.T) {
		f, m := setup(t)
		other, err := crypto.GenerateSecp256k1Signer()
		require.NoError(t, err)
		_, err = m.Recover(ctx, f.deps, f.env(0), policy.RecoverRequest{
			PubKey:      other.PublicKeyBytes(),
			Credentials: policy.Credentials{Signature: sig},
		})
		assert.ErrorIs(t, err, policy.ErrInvalidSignature)
	})

	t.Run("malformed signature is rejected", func(t *testing.T) {
		f, m := setup(t)
		_, err := m.Recover(ctx, f.deps, f.env(0), policy.RecoverRequest{
			PubKey:      newKey.PublicKeyBytes(),
			Credentials: policy.Credentials{Signature: sig[:10]},
		})
		assert.ErrorIs(t, err, policy.ErrInvalidSignature)
	})
}

func TestRecovery_InstantiateRejectsBadKey(t *testing.T) {
	f := newFixture(t)
	m := policy.NewRecovery()
	for _, raw := range []string{`{"recover_key":"zz"}`, `{"recover_key":"0102"}`, `{`} {
		_, err := m.Instantiate(context.Background(), f.deps, f.env(0), f.self(), json.RawMessage(raw))
		assert.ErrorIs(t, err, policy.ErrInvalidMessageFormat, raw)
	}
}

func TestRecovery_CredentialsJSON(t *testing.T) {
	var req policy.RecoverRequest
	require.NoError(t, json.Unmarshal([]byte(`{"pub_key":"AQI=","credentials":{"signature":"AwQ="}}`), &req))
	assert.Equal(t, []byte{1, 2}, req.PubKey)
	assert.Equal(t, []byte{3, 4}, req.Credentials.Signature)

	blob, err := policy.Credentials{Signature: []byte{5, 6}}.Encode()
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]string{"pub_key": "AQI=", "credentials": blob})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.Equal(t, []byte{5, 6}, req.Credentials.Signature)

	assert.Error(t, json.Unmarshal([]byte(`{"credentials":"not base64!"}`), &req))
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := policy.NewBase()
	f.instantiate(m, struct{}{})

	_, err := m.Migrate(ctx, f.deps, f.env(0), policy.MigrateRequest{Version: "0.0.9"})
	assert.ErrorContains(t, err, "rollback")

	_, err = m.Migrate(ctx, f.deps, f.env(0), policy.MigrateRequest{Version: "not-semver"})
	assert.Error(t, err)

	resp, err := m.Migrate(ctx, f.deps, f.env(0), policy.MigrateRequest{Version: "0.2.0"})
	require.NoError(t, err)
	to, _ := resp.Attribute("to_version")
	assert.Equal(t, "0.2.0", to)

	info, err := policy.GetContractVersion(ctx, f.kv)
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", info.Version)

	_, err = policy.NewRecovery().Migrate(ctx, f.deps, f.env(0), policy.MigrateRequest{Version: "1.0.0"})
	assert.ErrorContains(t, err, "cannot migrate")
}

func TestNew(t *testing.T) {
	for _, name := range policy.Names() {
		m, err := policy.New(name, policy.Options{})
		require.NoError(t, err)
		assert.Equal(t, name, m.Name())
	}
	_, err := policy.New("multisig", policy.Options{})
	assert.Error(t, err)
}
