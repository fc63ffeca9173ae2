// SPDX-License-Identifier: Apache-2.0

// Package host models the surfaces a remote signer is reached through: hidden
// tunnel frames, a top-level login window, and a process-wide bus of inbound
// messages, each tagged with the origin it arrived from.
package host

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"perun.network/icp-wallet-connector/wire"
)

var (
	// ErrClosed is returned when posting into a closed surface.
	ErrClosed = errors.New("surface closed")
	// ErrInvalidURL is returned for URLs without scheme or host.
	ErrInvalidURL = errors.New("invalid url")
)

type (
	// Message is an inbound message together with its transport-level origin.
	Message struct {
		Origin string
		Data   wire.Message
	}

	// Frame is an isolated surface navigated to a remote page. It is ready to
	// receive posts once opening it returned.
	Frame interface {
		Post(msg wire.Message) error
		Close() error
	}

	// Window is a top-level surface used for interactive login.
	Window interface {
		Frame
	}

	// Host opens surfaces and delivers the messages they send back.
	Host interface {
		OpenFrame(ctx context.Context, rawURL string) (Frame, error)
		OpenWindow(ctx context.Context, rawURL, name string) (Window, error)
		// Subscribe returns all inbound messages until the returned
		// function is called.
		Subscribe() (<-chan Message, func())
	}
)

// Origin returns scheme://host[:port] of rawURL.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(ErrInvalidURL, err.Error())
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.WithMessagef(ErrInvalidURL, "%q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
