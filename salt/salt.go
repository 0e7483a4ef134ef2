// Package salt provides the per-installation key derivation salt.
package salt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/attocash/wallet-core/secrets"
	log "github.com/sirupsen/logrus"
)

// Size of a salt in bytes. Salts are stored hex-encoded.
const Size = 32

// Salt is a hex-encoded random value, generated once per installation.
type Salt string

// Bytes returns the decoded salt.
func (s Salt) Bytes() ([]byte, error) {
	b, err := hex.DecodeString(string(s))
	if err != nil {
		return nil, err
	}
	if len(b) != Size {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", Size, len(b))
	}
	return b, nil
}

// Provider reads the installation salt from the secret store, generating
// and persisting it on first access.
type Provider struct {
	store secrets.Store

	mu     sync.Mutex
	cached Salt
}

func NewProvider(store secrets.Store) *Provider {
	return &Provider{store: store}
}

// Get returns the installation salt. Concurrent first time callers all
// observe the same generated value.
func (p *Provider) Get(ctx context.Context) (Salt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	stored, found, err := p.store.Get(ctx, secrets.SaltKey)
	if err != nil {
		return "", err
	}

	if found {
		s := Salt(stored)
		if _, err := s.Bytes(); err != nil {
			return "", fmt.Errorf("stored salt is invalid: %w", err)
		}
		p.cached = s
		return s, nil
	}

	s, err := generate()
	if err != nil {
		return "", err
	}

	if err := p.store.Set(ctx, secrets.SaltKey, []byte(s)); err != nil {
		return "", err
	}

	log.Debug("Generated installation salt")

	p.cached = s
	return s, nil
}

func generate() (Salt, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("unable to generate salt: %w", err)
	}
	return Salt(hex.EncodeToString(b)), nil
}
