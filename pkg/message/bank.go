package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// TypeMsgSend is the ledger's native funds-transfer message.
const TypeMsgSend = "/cosmos.bank.v1beta1.MsgSend"

// msgSendSchema accepts both the snake_case encoding and the camelCase one emitted by
// the client SDK.
const msgSendSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "from_address": {"type": "string", "minLength": 1},
    "fromAddress":  {"type": "string", "minLength": 1},
    "to_address":   {"type": "string", "minLength": 1},
    "toAddress":    {"type": "string", "minLength": 1},
    "amount": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["denom", "amount"],
        "properties": {
          "denom":  {"type": "string", "minLength": 1},
          "amount": {"type": "string", "pattern": "^[0-9]+$"}
        }
      }
    }
  },
  "required": ["amount"],
  "allOf": [
    {"anyOf": [{"required": ["from_address"]}, {"required": ["fromAddress"]}]},
    {"anyOf": [{"required": ["to_address"]}, {"required": ["toAddress"]}]}
  ]
}`

var (
	msgSendOnce     sync.Once
	msgSendCompiled *jsonschema.Schema
	msgSendErr      error
)

func compiledMsgSendSchema() (*jsonschema.Schema, error) {
	msgSendOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := "https://smart-account.schemas.local/bank/msg_send.schema.json"
		if err := c.AddResource(url, strings.NewReader(msgSendSchema)); err != nil {
			msgSendErr = fmt.Errorf("msg send schema load failed: %w", err)
			return
		}
		msgSendCompiled, msgSendErr = c.Compile(url)
	})
	return msgSendCompiled, msgSendErr
}

// MsgSend is the transfer descriptor carried by a bank send message.
type MsgSend struct {
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	Amount      coin.Coins `json:"amount"`
}

func (m *MsgSend) TypeURL() string { return TypeMsgSend }

// ValidateBasic performs stateless checks on the descriptor.
func (m *MsgSend) ValidateBasic() error {
	if m.FromAddress == "" || m.ToAddress == "" {
		return fmt.Errorf("missing address")
	}
	return m.Amount.Validate()
}

// NewMsgSend builds a bank send message.
func NewMsgSend(from, to string, amount coin.Coins) (Message, error) {
	return New(TypeMsgSend, MsgSend{FromAddress: from, ToAddress: to, Amount: amount})
}

func decodeMsgSend(raw []byte) (Decoded, error) {
	schema, err := compiledMsgSendSchema()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	if err := schema.Validate(generic); err != nil {
		return nil, err
	}

	var wire struct {
		FromAddress    string     `json:"from_address"`
		FromAddressAlt string     `json:"fromAddress"`
		ToAddress      string     `json:"to_address"`
		ToAddressAlt   string     `json:"toAddress"`
		Amount         coin.Coins `json:"amount"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	msg := &MsgSend{
		FromAddress: firstNonEmpty(wire.FromAddress, wire.FromAddressAlt),
		ToAddress:   firstNonEmpty(wire.ToAddress, wire.ToAddressAlt),
		Amount:      wire.Amount,
	}
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	return msg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
