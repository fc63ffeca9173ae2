// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
)

// Target names the receiving side of a tunnel message.
type Target string

const (
	// TargetTunnel addresses the remote tunnel page.
	TargetTunnel Target = "STOIC-IFRAME"
	// TargetExtension marks replies from the tunnel page to this client.
	TargetExtension Target = "STOIC-EXT"
)

// Action is the operation a message requests or reports.
type Action string

const (
	ActionSign                 Action = "sign"
	ActionAccounts             Action = "accounts"
	ActionInitiateConnect      Action = "initiateStoicConnect"
	ActionRequestAuthorization Action = "requestAuthorization"
	ActionRejectAuthorization  Action = "rejectAuthorization"
	ActionConfirmAuthorization Action = "confirmAuthorization"
)

// KeyType tells how the remote principal signs.
type KeyType string

const (
	KeyTypeUnset      KeyType = ""
	KeyTypeStandard   KeyType = "Standard"
	KeyTypeDelegation KeyType = "DelegationIdentity"
)

// Message is the envelope exchanged with the remote signer, both over tunnel
// frames and with the authorization window.
type Message struct {
	Target    Target          `json:"target,omitempty"`
	Action    Action          `json:"action,omitempty"`
	Payload   string          `json:"payload,omitempty"`
	Principal string          `json:"principal,omitempty"`
	APIKey    string          `json:"apikey,omitempty"`
	Sig       string          `json:"sig,omitempty"`
	Listener  *uint64         `json:"listener,omitempty"`
	Success   bool            `json:"success,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Key       KeyMaterial     `json:"key,omitempty"`
	Type      KeyType         `json:"type,omitempty"`
}

// WithListener returns a copy of m bound to the given correlation id.
func (m Message) WithListener(id uint64) Message {
	m.Listener = &id
	return m
}

// ListenerID returns the correlation id of m, if any.
func (m Message) ListenerID() (uint64, bool) {
	if m.Listener == nil {
		return 0, false
	}
	return *m.Listener, true
}

// IsReply reports whether m is a tunnel reply.
func (m Message) IsReply() bool {
	return m.Target == TargetExtension
}

// Text returns Data as text: JSON strings are unquoted, everything else is
// returned verbatim.
func (m Message) Text() string {
	var s string
	if err := json.Unmarshal(m.Data, &s); err == nil {
		return s
	}
	return string(m.Data)
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func Decode(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}
