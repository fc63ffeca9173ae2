// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"github.com/aviate-labs/agent-go/principal"
	"github.com/fxamacker/cbor/v2"
)

// Request types.
const (
	RequestTypeCall      = "call"
	RequestTypeQuery     = "query"
	RequestTypeReadState = "read_state"
)

// Content is the body of a request to the Internet Computer.
type Content struct {
	RequestType   string
	Sender        principal.Principal
	Nonce         []byte
	IngressExpiry uint64 // nanoseconds since the epoch
	CanisterID    principal.Principal
	MethodName    string
	Arg           []byte
	Paths         [][][]byte
}

type contentCBOR struct {
	RequestType   string     `cbor:"request_type"`
	Sender        []byte     `cbor:"sender"`
	Nonce         []byte     `cbor:"nonce,omitempty"`
	IngressExpiry uint64     `cbor:"ingress_expiry"`
	CanisterID    []byte     `cbor:"canister_id,omitempty"`
	MethodName    string     `cbor:"method_name,omitempty"`
	Arg           []byte     `cbor:"arg,omitempty"`
	Paths         [][][]byte `cbor:"paths,omitempty"`
}

// fields returns the fields that make up the request, shared by hashing and
// encoding.
func (c Content) fields() map[string]any {
	f := map[string]any{
		"request_type":   c.RequestType,
		"sender":         senderBytes(c.Sender),
		"ingress_expiry": c.IngressExpiry,
	}
	if c.Nonce != nil {
		f["nonce"] = c.Nonce
	}
	if c.RequestType == RequestTypeReadState {
		f["paths"] = c.Paths
	} else {
		f["canister_id"] = nonNil(c.CanisterID.Raw)
		f["method_name"] = c.MethodName
		f["arg"] = nonNil(c.Arg)
	}
	return f
}

// ID computes the request id of c.
func (c Content) ID() (RequestID, error) {
	sum, err := hashOfMap(c.fields())
	return RequestID(sum), err
}

func (c Content) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(c.fields())
}

func (c *Content) UnmarshalCBOR(data []byte) error {
	var cc contentCBOR
	if err := cbor.Unmarshal(data, &cc); err != nil {
		return err
	}
	*c = Content{
		RequestType:   cc.RequestType,
		Sender:        principal.Principal{Raw: cc.Sender},
		Nonce:         cc.Nonce,
		IngressExpiry: cc.IngressExpiry,
		CanisterID:    principal.Principal{Raw: cc.CanisterID},
		MethodName:    cc.MethodName,
		Arg:           cc.Arg,
		Paths:         cc.Paths,
	}
	return nil
}

// senderBytes maps the zero principal to the anonymous one.
func senderBytes(p principal.Principal) []byte {
	if len(p.Raw) == 0 {
		return []byte{0x04}
	}
	return p.Raw
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
