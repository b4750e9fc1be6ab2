// Package message models the messages and call metadata a transaction carries into
// the account's policy hooks.
//
// A Message is a type tag plus an opaque payload. Recognized tags are decoded through
// a Registry into concrete variants; every other tag decodes to Opaque.
package message

import (
	"encoding/json"
	"errors"

	"github.com/aura-nw/smart-account-sample/pkg/coin"
)

// ErrInvalidFormat is returned when a payload cannot be parsed into its declared type.
var ErrInvalidFormat = errors.New("invalid message format")

// Message is one sub-message of a transaction.
type Message struct {
	TypeURL string          `json:"type_url"`
	Value   json.RawMessage `json:"value"`
}

// New marshals v as the payload of a message with the given type tag.
func New(typeURL string, v any) (Message, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{TypeURL: typeURL, Value: raw}, nil
}

// UnmarshalJSON also accepts a payload encoded as a JSON string, which is how the
// host forwards the value of messages it does not interpret itself.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		TypeURL    string          `json:"type_url"`
		TypeURLAlt string          `json:"typeUrl"`
		Value      json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.TypeURL = wire.TypeURL
	if m.TypeURL == "" {
		m.TypeURL = wire.TypeURLAlt
	}
	m.Value = wire.Value
	var s string
	if len(wire.Value) > 0 && wire.Value[0] == '"' && json.Unmarshal(wire.Value, &s) == nil {
		m.Value = json.RawMessage(s)
	}
	return nil
}

// CallInfo describes the execution context of a transaction. Supplied by the host,
// read-only to policy logic.
type CallInfo struct {
	Fee        coin.Coins `json:"fee"`
	Gas        uint64     `json:"gas"`
	FeePayer   string     `json:"fee_payer"`
	FeeGranter string     `json:"fee_granter"`
	Authz      bool       `json:"authz"`
}

// Decoded is the tagged variant produced by a Registry.
type Decoded interface {
	TypeURL() string
}

// Opaque is the fallback variant for tags without a registered decoder.
type Opaque struct {
	Type string
	Raw  json.RawMessage
}

func (o Opaque) TypeURL() string { return o.Type }
