// SPDX-License-Identifier: Apache-2.0
package client

import (
	"fmt"

	"github.com/pkg/errors"

	"perun.network/icp-wallet-connector/auth"
	"perun.network/icp-wallet-connector/channel"
)

// ErrorCode is the numeric code of a WalletConnectError.
type ErrorCode int

const (
	ConnectFailed               ErrorCode = 1
	PlugNotInstall              ErrorCode = 10
	PlugConnectFailed           ErrorCode = 11
	AstroxConnectFailed         ErrorCode = 20
	StoicWalletConnectFailed    ErrorCode = 30
	InfinityWalletNotInstall    ErrorCode = 40
	InfinityWalletConnectFailed ErrorCode = 41
	NFIDConnectFailed           ErrorCode = 50
	NoExistProvider             ErrorCode = 100
	NotConnected                ErrorCode = 101
	Unknown                     ErrorCode = 10000
)

// ErrorKind classifies a WalletConnectError independent of the provider.
type ErrorKind string

const (
	KindProviderNotInstalled  ErrorKind = "ProviderNotInstalled"
	KindProviderConnectFailed ErrorKind = "ProviderConnectFailed"
	KindNotConnected          ErrorKind = "NotConnected"
	KindNoExistProvider       ErrorKind = "NoExistProvider"
	KindAuthorizationRejected ErrorKind = "AuthorizationRejected"
	KindChannelTransport      ErrorKind = "ChannelTransportError"
)

// WalletConnectError is returned by all connector operations.
type WalletConnectError struct {
	Code    ErrorCode
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *WalletConnectError) Error() string {
	return fmt.Sprintf("WalletConnectError %d: %s", e.Code, e.Message)
}

func (e *WalletConnectError) Unwrap() error {
	return e.cause
}

func (e *WalletConnectError) Cause() error {
	return e.cause
}

func newError(code ErrorCode, kind ErrorKind, msg string) *WalletConnectError {
	return &WalletConnectError{Code: code, Kind: kind, Message: msg}
}

// connectFailed wraps cause with the connect failure code of a provider. The
// kind is refined for rejected authorizations and transport failures.
func connectFailed(code ErrorCode, where string, cause error) *WalletConnectError {
	return failed(code, where, "connect failed", cause)
}

// actorFailed wraps a failure to create an actor like connectFailed.
func actorFailed(code ErrorCode, where string, cause error) *WalletConnectError {
	return failed(code, where, "create actor failed", cause)
}

func failed(code ErrorCode, where, what string, cause error) *WalletConnectError {
	var wce *WalletConnectError
	if errors.As(cause, &wce) {
		return wce
	}
	kind := KindProviderConnectFailed
	switch {
	case errors.Is(cause, auth.ErrAuthorizationRejected):
		kind = KindAuthorizationRejected
	case errors.Is(cause, channel.ErrTransport):
		kind = KindChannelTransport
	}
	return &WalletConnectError{
		Code:    code,
		Kind:    kind,
		Message: fmt.Sprintf("%s: %s %v", where, what, cause),
		cause:   cause,
	}
}

// IsKind reports whether err is a WalletConnectError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var wce *WalletConnectError
	return errors.As(err, &wce) && wce.Kind == k
}

// CodeOf returns the code of err, Unknown for foreign errors.
func CodeOf(err error) ErrorCode {
	var wce *WalletConnectError
	if errors.As(err, &wce) {
		return wce.Code
	}
	return Unknown
}
