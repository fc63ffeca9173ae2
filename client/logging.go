// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"

	"perun.network/go-perun/log"

	"perun.network/icp-wallet-connector/actor"
)

// logged logs input, output and errors of every operation of a connector.
type logged struct {
	WalletConnector
	log log.Logger
}

// WithLogging wraps wc so that its operations are logged to l.
func WithLogging(l log.Logger, wc WalletConnector) WalletConnector {
	return &logged{WalletConnector: wc, log: l.WithField("wallet", wc.Type().String())}
}

func (l *logged) Connect(ctx context.Context) (*WalletAuth, error) {
	l.log.Debug("Connect Input")
	wa, err := l.WalletConnector.Connect(ctx)
	if err != nil {
		l.log.Warnf("Error in Connect: %v", err)
		return nil, err
	}
	l.log.Debugf("Connect Output: %+v", *wa)
	return wa, nil
}

func (l *logged) CreateActor(ctx context.Context, canisterID string, factory actor.Factory) (any, error) {
	l.log.Debugf("CreateActor Input: %s", canisterID)
	a, err := l.WalletConnector.CreateActor(ctx, canisterID, factory)
	if err != nil {
		l.log.Warnf("Error in CreateActor: %v", err)
		return nil, err
	}
	l.log.Debugf("CreateActor Output: %T", a)
	return a, nil
}

func (l *logged) Disconnect(ctx context.Context) error {
	l.log.Debug("Disconnect Input")
	if err := l.WalletConnector.Disconnect(ctx); err != nil {
		l.log.Warnf("Error in Disconnect: %v", err)
		return err
	}
	l.log.Debug("Disconnect Output")
	return nil
}
