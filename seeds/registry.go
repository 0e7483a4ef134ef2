// Package seeds encrypts the wallet seed at rest and publishes the current
// seed to subscribers.
package seeds

import (
	"context"
	"errors"
	"fmt"
	"sync"

	wallet_errors "github.com/attocash/wallet-core/errors"
	"github.com/attocash/wallet-core/passwords"
	"github.com/attocash/wallet-core/salt"
	"github.com/attocash/wallet-core/secrets"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var errPasswordMissing = errors.New("no password stored for seed")

// Registry owns the lifecycle of the current seed.
//
// Mutations and the read that follows them are serialized by mu, so every
// subscriber observes updates in the order the mutations were applied.
type Registry struct {
	store  secrets.Store
	salts  *salt.Provider
	vault  *passwords.Vault
	kdf    KDFParams
	logger *log.Logger

	mu sync.Mutex

	currentMu sync.RWMutex
	current   Update

	subsMu sync.Mutex
	subs   map[uuid.UUID]*subscriber
}

func NewRegistry(store secrets.Store, salts *salt.Provider, vault *passwords.Vault, opts ...RegistryOption) *Registry {
	r := &Registry{
		store: store,
		salts: salts,
		vault: vault,
		kdf:   CurrentKDF,
		subs:  make(map[uuid.UUID]*subscriber),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = log.StandardLogger()
	}

	return r
}

// Subscribe returns a channel that first receives the current state and then
// one Update per mutation. Updates are queued per subscriber and never
// dropped. The channel is closed when ctx is done.
func (r *Registry) Subscribe(ctx context.Context) (<-chan Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.load(ctx)
	r.setCurrent(u)

	id := uuid.New()
	s := newSubscriber()
	s.push(u)

	r.subsMu.Lock()
	r.subs[id] = s
	r.subsMu.Unlock()

	go func() {
		s.run(ctx)

		r.subsMu.Lock()
		delete(r.subs, id)
		r.subsMu.Unlock()
	}()

	return s.out, nil
}

// Current returns the last published update without touching storage.
func (r *Registry) Current() Update {
	r.currentMu.RLock()
	defer r.currentMu.RUnlock()
	return r.current
}

// SetSeed encrypts seed with a key derived from password and the
// installation salt, stores it together with the password record and
// publishes the new state. On failure the previously stored seed and its
// password record are left as they were.
func (r *Registry) SetSeed(ctx context.Context, seed, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.storeSeed(ctx, seed, password)
	if err != nil {
		r.logger.
			WithFields(log.Fields{"error": err}).
			Warn("Failed to store seed")
	}

	r.publish(ctx)

	return err
}

// ClearSeed deletes the encrypted seed and publishes StateUnset.
// Password records are kept.
func (r *Registry) ClearSeed(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.Delete(ctx, secrets.SeedKey)

	r.publish(ctx)

	return err
}

// RemoveWallet deletes the password record of the stored seed and then the
// seed itself.
func (r *Registry) RemoveWallet(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.removeWallet(ctx)

	r.publish(ctx)

	return err
}

// Unlock checks password against the stored seed and returns the seed.
// Every failure is reported as errors.ErrUnableToUnlock.
func (r *Registry) Unlock(ctx context.Context, password string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	env, err := r.readEnvelope(ctx)
	if err != nil || env == nil {
		r.logger.
			WithFields(log.Fields{"error": err}).
			Debug("Unlock failed reading seed")
		return "", wallet_errors.ErrUnableToUnlock
	}

	plain, err := r.open(ctx, env, password)
	if err != nil {
		r.logger.
			WithFields(log.Fields{"error": err}).
			Debug("Unlock failed")
		return "", wallet_errors.ErrUnableToUnlock
	}
	defer clear(plain)

	r.upgrade(ctx, env, plain, password)

	return string(plain), nil
}

func (r *Registry) storeSeed(ctx context.Context, seed, password string) error {
	plain := []byte(seed)
	defer clear(plain)

	seedID := passwords.SeedIdentifier(plain)

	key, err := r.deriveKey(ctx, password, r.kdf)
	if err != nil {
		return err
	}
	defer key.Wipe()

	env, err := Encrypt(plain, key, seedID)
	if err != nil {
		return err
	}

	blob, err := env.Marshal()
	if err != nil {
		return err
	}

	// The password record goes first so a failure never replaces the stored
	// seed with one that cannot be opened.
	prev, hadPrev, err := r.vault.Get(ctx, seedID)
	if err != nil {
		return err
	}

	if err := r.vault.Set(ctx, seedID, password); err != nil {
		return err
	}

	if err := r.store.Set(ctx, secrets.SeedKey, blob); err != nil {
		r.restorePassword(ctx, seedID, prev, hadPrev)
		return err
	}

	return nil
}

// restorePassword puts back the password record that existed before a
// failed SetSeed.
func (r *Registry) restorePassword(ctx context.Context, seedID, prev string, hadPrev bool) {
	var err error
	if hadPrev {
		err = r.vault.Set(ctx, seedID, prev)
	} else {
		err = r.vault.Delete(ctx, seedID)
	}

	if err != nil {
		r.logger.
			WithFields(log.Fields{"error": err}).
			Warn("Failed to restore password record")
	}
}

func (r *Registry) removeWallet(ctx context.Context) error {
	env, err := r.readEnvelope(ctx)
	if err != nil && wallet_errors.IsSecretStoreError(err) {
		return err
	}

	if env != nil {
		if err := r.vault.Delete(ctx, env.SeedID); err != nil {
			return err
		}
	}

	return r.store.Delete(ctx, secrets.SeedKey)
}

// publish reads the current state and queues it for every subscriber.
// Must be called with mu held.
func (r *Registry) publish(ctx context.Context) {
	u := r.load(ctx)
	r.setCurrent(u)

	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for _, s := range r.subs {
		s.push(u)
	}
}

// load reads and decrypts the stored seed. Failures never escape: they are
// logged and reported as StateError.
func (r *Registry) load(ctx context.Context) Update {
	env, err := r.readEnvelope(ctx)
	if err != nil {
		r.logFailure(err)
		return Update{State: StateError}
	}
	if env == nil {
		return Update{State: StateUnset}
	}

	password, found, err := r.vault.Get(ctx, env.SeedID)
	if err != nil {
		r.logFailure(err)
		return Update{State: StateError}
	}
	if !found {
		r.logFailure(errPasswordMissing)
		return Update{State: StateError}
	}

	plain, err := r.open(ctx, env, password)
	if err != nil {
		r.logFailure(err)
		return Update{State: StateError}
	}
	defer clear(plain)

	r.upgrade(ctx, env, plain, password)

	return Update{State: StateSet, Seed: string(plain)}
}

func (r *Registry) readEnvelope(ctx context.Context) (*EncryptedSeed, error) {
	blob, found, err := r.store.Get(ctx, secrets.SeedKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return ParseEncryptedSeed(blob)
}

func (r *Registry) open(ctx context.Context, env *EncryptedSeed, password string) ([]byte, error) {
	key, err := r.deriveKey(ctx, password, env.KDF)
	if err != nil {
		return nil, err
	}
	defer key.Wipe()

	plain, err := Decrypt(env, key)
	if err != nil {
		return nil, err
	}

	if passwords.SeedIdentifier(plain) != env.SeedID {
		clear(plain)
		return nil, &wallet_errors.DecryptionError{Err: errors.New("seed identifier mismatch")}
	}

	return plain, nil
}

// upgrade re-encrypts an envelope that uses older KDF parameters. Failure is
// not fatal; the old envelope stays readable.
func (r *Registry) upgrade(ctx context.Context, env *EncryptedSeed, plain []byte, password string) {
	if env.KDF.Version >= r.kdf.Version {
		return
	}

	err := func() error {
		key, err := r.deriveKey(ctx, password, r.kdf)
		if err != nil {
			return err
		}
		defer key.Wipe()

		upgraded, err := Encrypt(plain, key, env.SeedID)
		if err != nil {
			return err
		}

		blob, err := upgraded.Marshal()
		if err != nil {
			return err
		}

		return r.store.Set(ctx, secrets.SeedKey, blob)
	}()

	if err != nil {
		r.logger.
			WithFields(log.Fields{"error": err, "from": env.KDF.Version, "to": r.kdf.Version}).
			Warn("Failed to upgrade seed encryption")
		return
	}

	r.logger.
		WithFields(log.Fields{"from": env.KDF.Version, "to": r.kdf.Version}).
		Info("Upgraded seed encryption")
}

func (r *Registry) deriveKey(ctx context.Context, password string, params KDFParams) (*Key, error) {
	s, err := r.salts.Get(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(password, b, params)
	if err != nil {
		return nil, fmt.Errorf("unable to derive key: %w", err)
	}

	return key, nil
}

func (r *Registry) setCurrent(u Update) {
	r.currentMu.Lock()
	r.current = u
	r.currentMu.Unlock()
}

// logFailure records why the seed could not be read. Errors in this path
// carry storage keys and library messages only.
func (r *Registry) logFailure(err error) {
	r.logger.
		WithFields(log.Fields{
			"error":      err,
			"decryption": wallet_errors.IsDecryptionError(err),
		}).
		Warn("Unable to read current seed")
}
