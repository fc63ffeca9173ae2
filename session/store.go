// SPDX-License-Identifier: Apache-2.0

// Package session persists the credential of the remote signer session.
package session

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"perun.network/go-perun/log"
)

// RecordKey is the key the credential is stored under.
const RecordKey = "_scApp"

// ErrNoSession is returned by Load if no usable credential is stored.
var ErrNoSession = errors.New("no session")

// Store reads and writes the single persisted credential.
type Store struct {
	log.Embedding
	backend Backend
}

func NewStore(b Backend) *Store {
	return &Store{
		Embedding: log.MakeEmbedding(log.Default()),
		backend:   b,
	}
}

func (s *Store) Save(ctx context.Context, c *Credential) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.WithMessage(err, "encoding credential")
	}
	return errors.WithMessage(s.backend.Put(ctx, RecordKey, data), "saving credential")
}

// Load returns the stored credential. A record that does not decode is
// treated like an absent one.
func (s *Store) Load(ctx context.Context) (*Credential, error) {
	data, err := s.backend.Get(ctx, RecordKey)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoSession
	} else if err != nil {
		return nil, errors.WithMessage(err, "loading credential")
	}

	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		s.Log().Warnf("Ignoring undecodable session record: %v", err)
		return nil, ErrNoSession
	}
	if c.Principal == "" || c.SecretKey.IsZero() {
		s.Log().Warn("Ignoring incomplete session record")
		return nil, ErrNoSession
	}
	return &c, nil
}

// Clear removes the stored credential. Clearing an empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	err := s.backend.Delete(ctx, RecordKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return errors.WithMessage(err, "clearing credential")
}
