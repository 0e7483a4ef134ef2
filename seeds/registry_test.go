package seeds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	wallet_errors "github.com/attocash/wallet-core/errors"
	"github.com/attocash/wallet-core/passwords"
	"github.com/attocash/wallet-core/salt"
	"github.com/attocash/wallet-core/secrets"
	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failingGetStore struct {
	secrets.Store
	fail bool
}

func (s *failingGetStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.fail && key == secrets.SeedKey {
		return nil, false, &wallet_errors.SecretStoreError{Op: "get", Key: key, NativeCode: "-25300", Err: errors.New("keychain unavailable")}
	}
	return s.Store.Get(ctx, key)
}

// failingSetStore fails Set for keys matching match.
type failingSetStore struct {
	secrets.Store
	match func(key string) bool
}

func (s *failingSetStore) Set(ctx context.Context, key string, value []byte) error {
	if s.match != nil && s.match(key) {
		return &wallet_errors.SecretStoreError{Op: "set", Key: key, NativeCode: "-25299", Err: errors.New("duplicate item")}
	}
	return s.Store.Set(ctx, key, value)
}

func newTestRegistry(t *testing.T, store secrets.Store) (*Registry, *test.Hook) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	r := NewRegistry(
		store,
		salt.NewProvider(store),
		passwords.NewVault(store),
		WithKDF(testKDF),
		WithLogger(logger),
	)

	return r, hook
}

func subscribe(t *testing.T, r *Registry) <-chan Update {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ch, err := r.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}

	return ch
}

func next(t *testing.T, ch <-chan Update) Update {
	t.Helper()

	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
	}

	return Update{}
}

func TestSetAndClearSeed(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, secrets.NewMemoryStore())
	ch := subscribe(t, r)

	if diff := cmp.Diff(Update{State: StateUnset}, next(t, ch)); diff != "" {
		t.Fatalf("initial state mismatch (-want +got):\n%s", diff)
	}

	if err := r.SetSeed(ctx, "seed-abc", "pw1"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Update{State: StateSet, Seed: "seed-abc"}, next(t, ch)); diff != "" {
		t.Fatalf("state after set mismatch (-want +got):\n%s", diff)
	}

	if err := r.ClearSeed(ctx); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Update{State: StateUnset}, next(t, ch)); diff != "" {
		t.Fatalf("state after clear mismatch (-want +got):\n%s", diff)
	}

	if r.Current().HasSeed() {
		t.Fatal("expected no current seed")
	}
}

func TestSetSeedPersistsRecords(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewMemoryStore()
	r, _ := newTestRegistry(t, store)

	if err := r.SetSeed(ctx, "seed-abc", "pw1"); err != nil {
		t.Fatal(err)
	}

	blob, found, err := store.Get(ctx, secrets.SeedKey)
	if err != nil || !found {
		t.Fatalf("expected stored seed, got found=%t err=%v", found, err)
	}
	if strings.Contains(string(blob), "seed-abc") {
		t.Fatal("seed stored in plain text")
	}

	env, err := ParseEncryptedSeed(blob)
	if err != nil {
		t.Fatal(err)
	}
	if env.SeedID != passwords.SeedIdentifier([]byte("seed-abc")) {
		t.Fatalf("unexpected seed id %q", env.SeedID)
	}

	pw, found, err := passwords.NewVault(store).Get(ctx, env.SeedID)
	if err != nil || !found || pw != "pw1" {
		t.Fatalf("expected password record, got %q found=%t err=%v", pw, found, err)
	}

	if _, found, _ := store.Get(ctx, secrets.SaltKey); !found {
		t.Fatal("expected salt to be generated")
	}

	if got := r.Current(); got.Seed != "seed-abc" {
		t.Fatalf("expected current seed, got %+v", got)
	}
}

func TestMutationOrder(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, secrets.NewMemoryStore())
	ch := subscribe(t, r)

	want := []Update{{State: StateUnset}}
	for i := 0; i < 5; i++ {
		seed := fmt.Sprintf("seed-%d", i)
		if err := r.SetSeed(ctx, seed, "pw"); err != nil {
			t.Fatal(err)
		}
		want = append(want, Update{State: StateSet, Seed: seed})

		if i%2 == 1 {
			if err := r.ClearSeed(ctx); err != nil {
				t.Fatal(err)
			}
			want = append(want, Update{State: StateUnset})
		}
	}

	// Nothing was read while mutating: updates are queued, not dropped.
	got := make([]Update, 0, len(want))
	for range want {
		got = append(got, next(t, ch))
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("update sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, secrets.NewMemoryStore())
	first := subscribe(t, r)
	second := subscribe(t, r)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.SetSeed(ctx, fmt.Sprintf("seed-%d", i), "pw"); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	var a, b []Update
	for i := 0; i < n+1; i++ {
		a = append(a, next(t, first))
		b = append(b, next(t, second))
	}

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("subscribers observed different sequences (-first +second):\n%s", diff)
	}

	seen := map[string]bool{}
	for _, u := range a[1:] {
		if u.State != StateSet {
			t.Fatalf("unexpected state %v", u.State)
		}
		if seen[u.Seed] {
			t.Fatalf("seed %q published twice", u.Seed)
		}
		seen[u.Seed] = true
	}

	if diff := cmp.Diff(a[n], r.Current()); diff != "" {
		t.Fatalf("current state is not the last published (-want +got):\n%s", diff)
	}
}

func TestMissingPasswordIsErrorState(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewMemoryStore()
	r, hook := newTestRegistry(t, store)

	if err := r.SetSeed(ctx, "seed-abc", "pw1"); err != nil {
		t.Fatal(err)
	}

	id := passwords.SeedIdentifier([]byte("seed-abc"))
	if err := passwords.NewVault(store).Delete(ctx, id); err != nil {
		t.Fatal(err)
	}

	hook.Reset()
	ch := subscribe(t, r)

	if diff := cmp.Diff(Update{State: StateError}, next(t, ch)); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected a warning, got %+v", entry)
	}
	for _, e := range hook.AllEntries() {
		line, _ := e.String()
		if strings.Contains(line, "seed-abc") || strings.Contains(line, "pw1") {
			t.Fatalf("log entry leaks secret material: %s", line)
		}
	}

	// setSeed recovers from the error state.
	if err := r.SetSeed(ctx, "seed-abc", "pw1"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Update{State: StateSet, Seed: "seed-abc"}, next(t, ch)); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestMismatchedPasswordIsErrorState(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewMemoryStore()
	r, hook := newTestRegistry(t, store)

	if err := r.SetSeed(ctx, "seed-abc", "pw1"); err != nil {
		t.Fatal(err)
	}
	id := passwords.SeedIdentifier([]byte("seed-abc"))
	if err := passwords.NewVault(store).Set(ctx, id, "other"); err != nil {
		t.Fatal(err)
	}

	hook.Reset()
	ch := subscribe(t, r)

	if got := next(t, ch); got.State != StateError || got.Seed != "" {
		t.Fatalf("expected error state without seed, got %+v", got)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Data["decryption"] != true {
		t.Fatalf("expected decryption failure to be logged, got %+v", entry)
	}

	// clearSeed recovers from the error state.
	if err := r.ClearSeed(ctx); err != nil {
		t.Fatal(err)
	}
	if got := next(t, ch); got.State != StateUnset {
		t.Fatalf("expected unset state, got %+v", got)
	}
}

func TestCorruptSeedIsErrorState(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewMemoryStore()
	r, _ := newTestRegistry(t, store)

	if err := store.Set(ctx, secrets.SeedKey, []byte("{corrupt")); err != nil {
		t.Fatal(err)
	}

	if got := next(t, subscribe(t, r)); got.State != StateError {
		t.Fatalf("expected error state, got %+v", got)
	}
}

func TestStoreFailureDuringPublish(t *testing.T) {
	ctx := context.Background()
	store := &failingGetStore{Store: secrets.NewMemoryStore()}
	r, hook := newTestRegistry(t, store)
	ch := subscribe(t, r)
	next(t, ch)

	store.fail = true
	if err := r.ClearSeed(ctx); err != nil {
		t.Fatal(err)
	}

	if got := next(t, ch); got.State != StateError {
		t.Fatalf("expected error state, got %+v", got)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected a warning, got %+v", entry)
	}
}

func TestFailedSetSeedKeepsPreviousSeed(t *testing.T) {
	isPassword := func(key string) bool { return strings.HasPrefix(key, "password-") }
	isSeed := func(key string) bool { return key == secrets.SeedKey }

	testCases := []struct {
		name     string
		match    func(string) bool
		seed     string
		password string
	}{
		{name: "password write fails", match: isPassword, seed: "seed-new", password: "pw2"},
		{name: "seed write fails", match: isSeed, seed: "seed-new", password: "pw2"},
		{name: "seed write fails for same seed", match: isSeed, seed: "seed-old", password: "pw2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := &failingSetStore{Store: secrets.NewMemoryStore()}
			r, _ := newTestRegistry(t, store)
			ch := subscribe(t, r)
			next(t, ch)

			if err := r.SetSeed(ctx, "seed-old", "pw1"); err != nil {
				t.Fatal(err)
			}
			next(t, ch)

			store.match = tc.match
			err := r.SetSeed(ctx, tc.seed, tc.password)
			if !wallet_errors.IsSecretStoreError(err) {
				t.Fatalf("expected a secret store error, got %v", err)
			}

			want := Update{State: StateSet, Seed: "seed-old"}
			if diff := cmp.Diff(want, next(t, ch)); diff != "" {
				t.Fatalf("state mismatch (-want +got):\n%s", diff)
			}

			vault := passwords.NewVault(store)
			password, found, err := vault.Get(ctx, passwords.SeedIdentifier([]byte("seed-old")))
			if err != nil || !found || password != "pw1" {
				t.Fatalf("expected the old password record, got %q found=%v err=%v", password, found, err)
			}

			if tc.seed != "seed-old" {
				_, found, err := vault.Get(ctx, passwords.SeedIdentifier([]byte(tc.seed)))
				if err != nil || found {
					t.Fatalf("expected no password record for the new seed, found=%v err=%v", found, err)
				}
			}

			store.match = nil
			if _, err := r.Unlock(ctx, "pw1"); err != nil {
				t.Fatalf("old wallet no longer unlocks: %v", err)
			}
		})
	}
}

func TestUnlock(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, secrets.NewMemoryStore())

	if _, err := r.Unlock(ctx, "pw1"); !errors.Is(err, wallet_errors.ErrUnableToUnlock) {
		t.Fatalf("expected unable to unlock without a seed, got %v", err)
	}

	if err := r.SetSeed(ctx, "seed-abc", "pw1"); err != nil {
		t.Fatal(err)
	}

	seed, err := r.Unlock(ctx, "pw1")
	if err != nil {
		t.Fatal(err)
	}
	if seed != "seed-abc" {
		t.Fatalf("expected seed-abc, got %q", seed)
	}

	_, err = r.Unlock(ctx, "pw2")
	if !errors.Is(err, wallet_errors.ErrUnableToUnlock) {
		t.Fatalf("expected unable to unlock, got %v", err)
	}
	if wallet_errors.IsDecryptionError(err) {
		t.Fatal("unlock must not reveal which step failed")
	}
}

func TestRemoveWallet(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewMemoryStore()
	r, _ := newTestRegistry(t, store)
	ch := subscribe(t, r)
	next(t, ch)

	if err := r.SetSeed(ctx, "seed-abc", "pw1"); err != nil {
		t.Fatal(err)
	}
	next(t, ch)

	if err := r.RemoveWallet(ctx); err != nil {
		t.Fatal(err)
	}
	if got := next(t, ch); got.State != StateUnset {
		t.Fatalf("expected unset state, got %+v", got)
	}

	id := passwords.SeedIdentifier([]byte("seed-abc"))
	if _, found, _ := store.Get(ctx, secrets.PasswordKey(id)); found {
		t.Fatal("expected password record to be removed")
	}
	if _, found, _ := store.Get(ctx, secrets.SeedKey); found {
		t.Fatal("expected seed to be removed")
	}

	// Removing again is not an error.
	if err := r.RemoveWallet(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestUpgradeOnRead(t *testing.T) {
	ctx := context.Background()
	store := secrets.NewMemoryStore()

	// Store a seed encrypted with older parameters.
	old := NewRegistry(store, salt.NewProvider(store), passwords.NewVault(store), WithKDF(testKDFv1))
	if err := old.SetSeed(ctx, "seed-abc", "pw1"); err != nil {
		t.Fatal(err)
	}

	r, hook := newTestRegistry(t, store)
	if got := next(t, subscribe(t, r)); got.Seed != "seed-abc" {
		t.Fatalf("expected seed-abc, got %+v", got)
	}

	blob, _, err := store.Get(ctx, secrets.SeedKey)
	if err != nil {
		t.Fatal(err)
	}
	env, err := ParseEncryptedSeed(blob)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testKDF, env.KDF); diff != "" {
		t.Fatalf("envelope not upgraded (-want +got):\n%s", diff)
	}

	var upgraded bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Upgraded seed encryption" {
			upgraded = true
		}
	}
	if !upgraded {
		t.Fatal("expected upgrade to be logged")
	}

	// Still readable with the same password after the upgrade.
	if seed, err := r.Unlock(ctx, "pw1"); err != nil || seed != "seed-abc" {
		t.Fatalf("expected seed-abc, got %q err=%v", seed, err)
	}
}

func TestSubscriptionClosedOnCancel(t *testing.T) {
	r, _ := newTestRegistry(t, secrets.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := r.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("subscription was not closed")
		}
	}
}

func TestSubscribeCancelledContext(t *testing.T) {
	r, _ := newTestRegistry(t, secrets.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Subscribe(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
