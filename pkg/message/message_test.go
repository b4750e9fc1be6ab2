package message_test

import (
	"encoding/json"
	"testing"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/aura-nw/smart-account-sample/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_MsgSend(t *testing.T) {
	reg := message.DefaultRegistry()
	msg, err := message.NewMsgSend("aura1from", "aura1to", coin.NewCoins(coin.New("uaura", 200)))
	require.NoError(t, err)

	d, err := reg.Decode(msg)
	require.NoError(t, err)
	send, ok := d.(*message.MsgSend)
	require.True(t, ok)
	assert.Equal(t, "aura1from", send.FromAddress)
	assert.Equal(t, "aura1to", send.ToAddress)
	assert.Equal(t, "200uaura", send.Amount.String())
}

// The client SDK emits camelCase field names.
func TestDecode_MsgSendCamelCase(t *testing.T) {
	reg := message.DefaultRegistry()
	msg := message.Message{
		TypeURL: message.TypeMsgSend,
		Value:   json.RawMessage(`{"fromAddress":"aura1a","toAddress":"aura1b","amount":[{"denom":"uaura","amount":"200"}]}`),
	}
	d, err := reg.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, "aura1b", d.(*message.MsgSend).ToAddress)
}

func TestDecode_InvalidPayload(t *testing.T) {
	reg := message.DefaultRegistry()
	cases := map[string]string{
		"not json":        `{`,
		"missing to":      `{"from_address":"a","amount":[{"denom":"uaura","amount":"1"}]}`,
		"numeric amount":  `{"from_address":"a","to_address":"b","amount":[{"denom":"uaura","amount":1}]}`,
		"negative amount": `{"from_address":"a","to_address":"b","amount":[{"denom":"uaura","amount":"-1"}]}`,
		"empty amount":    `{"from_address":"a","to_address":"b","amount":[]}`,
		"bad denom":       `{"from_address":"a","to_address":"b","amount":[{"denom":"u","amount":"1"}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Decode(message.Message{TypeURL: message.TypeMsgSend, Value: json.RawMessage(payload)})
			assert.ErrorIs(t, err, message.ErrInvalidFormat)
		})
	}
}

func TestDecode_UnknownTypeIsOpaque(t *testing.T) {
	reg := message.DefaultRegistry()
	d, err := reg.Decode(message.Message{TypeURL: "/cosmwasm.wasm.v1.MsgExecuteContract", Value: json.RawMessage(`{}`)})
	require.NoError(t, err)
	op, ok := d.(message.Opaque)
	require.True(t, ok)
	assert.Equal(t, "/cosmwasm.wasm.v1.MsgExecuteContract", op.TypeURL())
}

func TestMessage_UnmarshalStringValue(t *testing.T) {
	var m message.Message
	raw := `{"typeUrl":"/cosmos.bank.v1beta1.MsgSend","value":"{\"from_address\":\"a\",\"to_address\":\"b\",\"amount\":[{\"denom\":\"uaura\",\"amount\":\"5\"}]}"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, message.TypeMsgSend, m.TypeURL)

	d, err := message.DefaultRegistry().Decode(m)
	require.NoError(t, err)
	assert.Equal(t, "5uaura", d.(*message.MsgSend).Amount.String())
}

func TestRegistry_Types(t *testing.T) {
	reg := message.DefaultRegistry()
	assert.Equal(t, []string{message.TypeMsgSend}, reg.Types())
	assert.True(t, reg.Known(message.TypeMsgSend))
	assert.False(t, reg.Known("/other"))
}
