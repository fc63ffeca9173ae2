// SPDX-License-Identifier: Apache-2.0
package channel

import (
	"github.com/pkg/errors"
)

var (
	// ErrTransport is returned when a remote request could not be delivered
	// or the remote side answered with a failure.
	ErrTransport = errors.New("channel transport error")
)

func transportError(text string) error {
	if text == "" {
		text = "request failed"
	}
	return errors.WithMessage(ErrTransport, text)
}
