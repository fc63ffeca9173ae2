// SPDX-License-Identifier: Apache-2.0

package actor

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/aviate-labs/agent-go"
	"github.com/aviate-labs/agent-go/certificate"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"

	"perun.network/icp-wallet-connector/envelope"
)

var (
	// ErrRejected is returned when the network or the canister rejected a
	// request.
	ErrRejected = errors.New("request rejected")
	// ErrCertificate is returned for replies whose certificate does not
	// verify.
	ErrCertificate = errors.New("invalid certificate")
)

// BLS public keys are the last 96 bytes of the DER root key.
const blsKeyLen = 96

// signedCaller submits requests whose envelopes are produced by an
// envelope.Transformer.
type signedCaller struct {
	log.Embedding

	sender      principal.Principal
	transformer *envelope.Transformer
	http        *http.Client
	host        *url.URL
	rootKey     []byte

	signTimeout  time.Duration
	expiry       time.Duration
	pollInterval time.Duration
}

type rejection struct {
	RejectCode uint64 `cbor:"reject_code"`
	Message    string `cbor:"reject_message"`
	ErrorCode  string `cbor:"error_code"`
}

func newSignedCaller(cfg Config) (*signedCaller, error) {
	if cfg.Host == nil {
		return nil, errors.New("no host")
	}
	rootKey, err := hex.DecodeString(certificate.RootKey)
	if err != nil {
		return nil, errors.WithMessage(err, "decoding root key")
	}
	if cfg.FetchRootKey {
		status, err := agent.NewClient(agent.ClientConfig{Host: cfg.Host}).Status()
		if err != nil {
			return nil, errors.WithMessage(err, "fetching root key")
		}
		rootKey = status.RootKey
	}
	if len(rootKey) < blsKeyLen {
		return nil, errors.WithMessagef(ErrCertificate, "root key of %d bytes", len(rootKey))
	}

	c := &signedCaller{
		Embedding:    log.MakeEmbedding(log.Default()),
		sender:       cfg.Signer.Principal(),
		transformer:  envelope.NewTransformer(cfg.Signer),
		http:         &http.Client{},
		host:         cfg.Host,
		rootKey:      rootKey,
		signTimeout:  cfg.SignTimeout,
		expiry:       cfg.IngressExpiry,
		pollInterval: cfg.PollInterval,
	}
	if c.expiry <= 0 {
		c.expiry = DefaultIngressExpiry
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	return c, nil
}

func (c *signedCaller) query(ctx context.Context, canisterID principal.Principal, method string, arg []byte) ([]byte, error) {
	_, body, err := c.submit(ctx, canisterID, "query", envelope.Content{
		RequestType: envelope.RequestTypeQuery,
		CanisterID:  canisterID,
		MethodName:  method,
		Arg:         arg,
	})
	if err != nil {
		return nil, err
	}
	var resp agent.Response
	if err := cbor.Unmarshal(body, &resp); err != nil {
		return nil, errors.WithMessage(err, "decoding query response")
	}
	switch resp.Status {
	case "replied":
		return resp.Reply["arg"], nil
	case "rejected":
		return nil, errors.WithMessagef(ErrRejected, "(%d) %s", resp.RejectCode, resp.RejectMsg)
	default:
		return nil, errors.Errorf("unexpected query status %q", resp.Status)
	}
}

// call submits an update and polls its status until the canister replied,
// the request expired or ctx is done.
func (c *signedCaller) call(ctx context.Context, canisterID principal.Principal, method string, arg []byte) ([]byte, error) {
	id, _, err := c.submit(ctx, canisterID, "call", envelope.Content{
		RequestType: envelope.RequestTypeCall,
		CanisterID:  canisterID,
		MethodName:  method,
		Arg:         arg,
	})
	if err != nil {
		return nil, err
	}
	c.Log().Debugf("Submitted call %x, polling", id)

	ctx, cancel := context.WithTimeout(ctx, c.expiry)
	defer cancel()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, errors.WithMessagef(ctx.Err(), "awaiting reply to %x", id)
		case <-ticker.C:
		}
		reply, done, err := c.status(ctx, canisterID, id)
		if err != nil || done {
			return reply, err
		}
	}
}

// status reads the request status. done reports whether the request reached
// a final state.
func (c *signedCaller) status(ctx context.Context, canisterID principal.Principal, id envelope.RequestID) (reply []byte, done bool, err error) {
	base := [][]byte{[]byte("request_status"), id[:]}
	_, body, err := c.submit(ctx, canisterID, "read_state", envelope.Content{
		RequestType: envelope.RequestTypeReadState,
		Paths:       [][][]byte{base},
	})
	if err != nil {
		return nil, true, err
	}
	var state map[string][]byte
	if err := cbor.Unmarshal(body, &state); err != nil {
		return nil, true, errors.WithMessage(err, "decoding read_state response")
	}
	node, err := c.verify(canisterID, state["certificate"])
	if err != nil {
		return nil, true, err
	}

	lookup := func(label string) []byte {
		return certificate.Lookup(append(append([][]byte{}, base...), []byte(label)), node)
	}
	switch s := string(lookup("status")); s {
	case "replied":
		return lookup("reply"), true, nil
	case "rejected":
		code := lookup("reject_code")
		return nil, true, errors.WithMessagef(ErrRejected, "(%x) %s", code, lookup("reject_message"))
	case "done":
		return nil, true, errors.WithMessage(ErrRejected, "reply no longer available")
	default:
		c.Log().Tracef("Request %x is %q", id, s)
		return nil, false, nil
	}
}

func (c *signedCaller) verify(canisterID principal.Principal, raw []byte) (certificate.Node, error) {
	cert, err := certificate.New(canisterID, c.rootKey[len(c.rootKey)-blsKeyLen:], raw)
	if err != nil {
		return nil, errors.Wrap(ErrCertificate, err.Error())
	}
	if err := cert.Verify(); err != nil {
		return nil, errors.Wrap(ErrCertificate, err.Error())
	}
	var state map[string]any
	if err := cbor.Unmarshal(raw, &state); err != nil {
		return nil, errors.Wrap(ErrCertificate, err.Error())
	}
	tree, ok := state["tree"].([]any)
	if !ok {
		return nil, errors.WithMessage(ErrCertificate, "no tree")
	}
	node, err := certificate.DeserializeNode(tree)
	return node, errors.WithMessage(err, "decoding certificate tree")
}

// submit signs body as the sender and posts it to endpoint of canisterID.
func (c *signedCaller) submit(ctx context.Context, canisterID principal.Principal, endpoint string, body envelope.Content) (envelope.RequestID, []byte, error) {
	body.Sender = c.sender
	body.IngressExpiry = uint64(time.Now().Add(c.expiry).UnixNano())
	id, err := body.ID()
	if err != nil {
		return id, nil, err
	}

	u := *c.host
	u.Path = path.Join(u.Path, fmt.Sprintf("/api/v2/canister/%s/%s", canisterID.Encode(), endpoint))
	signCtx := ctx
	if c.signTimeout > 0 {
		var cancel context.CancelFunc
		signCtx, cancel = context.WithTimeout(ctx, c.signTimeout)
		defer cancel()
	}
	signed, err := c.transformer.Transform(signCtx, envelope.Request{Endpoint: u.String(), Body: body})
	if err != nil {
		return id, nil, err
	}
	data, err := signed.Envelope.Marshal()
	if err != nil {
		return id, nil, errors.WithMessage(err, "encoding envelope")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signed.Endpoint, bytes.NewReader(data))
	if err != nil {
		return id, nil, errors.WithMessage(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/cbor")
	resp, err := c.http.Do(req)
	if err != nil {
		return id, nil, errors.WithMessagef(err, "posting %s", endpoint)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return id, nil, errors.WithMessagef(err, "reading %s response", endpoint)
	}

	switch {
	case resp.StatusCode == http.StatusAccepted && endpoint == "call":
		return id, raw, nil
	case resp.StatusCode == http.StatusOK && endpoint == "call":
		var rej rejection
		if err := cbor.Unmarshal(raw, &rej); err != nil {
			return id, nil, errors.WithMessage(err, "decoding rejection")
		}
		return id, nil, errors.WithMessagef(ErrRejected, "(%d) %s: %s", rej.RejectCode, rej.Message, rej.ErrorCode)
	case resp.StatusCode == http.StatusOK:
		return id, raw, nil
	default:
		return id, nil, errors.WithMessagef(ErrRejected, "%s: %s", resp.Status, raw)
	}
}
