package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/attocash/wallet-core/configs"
	"github.com/attocash/wallet-core/datastore/gorm"
	"github.com/attocash/wallet-core/debug"
	"github.com/attocash/wallet-core/handlers"
	"github.com/attocash/wallet-core/jobs"
	"github.com/attocash/wallet-core/keys"
	"github.com/attocash/wallet-core/ledger"
	"github.com/attocash/wallet-core/otel"
	"github.com/attocash/wallet-core/passwords"
	"github.com/attocash/wallet-core/salt"
	"github.com/attocash/wallet-core/secrets"
	"github.com/attocash/wallet-core/seeds"
	"github.com/gomodule/redigo/redis"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	upstreamgorm "gorm.io/gorm"
)

// app holds the wired services and the HTTP handler.
type app struct {
	handler http.Handler
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) onClose(f func()) {
	a.closers = append(a.closers, f)
}

func newApp(ctx context.Context, cfg *configs.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// Tracing
	tp, err := otel.InitTracer(cfg)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		otel.Shutdown(ctx, tp)
	})

	// Database
	db, err := gorm.New(cfg)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		gorm.Close(db)
		log.Info("Closed database")
	})

	var pool *redis.Pool
	if cfg.RedisURL != "" {
		pool = secrets.NewRedisPool(cfg.RedisURL)
		a.onClose(func() {
			if err := pool.Close(); err != nil {
				log.Warn(err)
			}
			log.Info("Closed Redis pool")
		})
	}

	// Secret storage
	secretStore, err := newSecretStore(cfg, db, pool)
	if err != nil {
		return nil, err
	}

	registry := seeds.NewRegistry(
		secretStore,
		salt.NewProvider(secretStore),
		passwords.NewVault(secretStore),
	)

	subCtx, cancelSub := context.WithCancel(ctx)
	a.onClose(cancelSub)
	if err := watchSeedState(subCtx, registry); err != nil {
		return nil, err
	}

	// Create a worker pool
	wp := jobs.NewWorkerPool(cfg.WorkerQueueCapacity, cfg.WorkerCount)
	a.onClose(func() {
		wp.Stop()
		log.Info("Stopped workerpool")
	})

	// Ledger cache
	ledgerStore, err := newLedgerStore(ctx, cfg, db, a)
	if err != nil {
		return nil, err
	}
	ledgerService := ledger.NewService(ledgerStore, wp)

	// HTTP handling
	seedHandler := handlers.NewSeed(registry, ledgerService)
	ledgerHandler := handlers.NewLedger(ledgerService)
	debugService := &debug.Service{
		Version:   version,
		Sha1ver:   sha1ver,
		BuildTime: buildTime,
		Pool:      wp,
		Seeds:     registry,
	}

	r := mux.NewRouter()
	r.Use(otel.Middleware())

	// Catch the api version
	rv := r.PathPrefix("/{apiVersion}").Subrouter()

	// Debug
	rv.HandleFunc("/debug", debugService.HandleDebug).Methods(http.MethodGet)

	// Health
	rv.HandleFunc("/health/ready", handlers.HandleHealthReady).Methods(http.MethodGet)
	rv.Handle("/health/liveness", handlers.Liveness(func() (interface{}, error) {
		return wp.Status(), nil
	})).Methods(http.MethodGet)

	// Seed
	rv.Handle("/seed", seedHandler.State()).Methods(http.MethodGet)
	rv.Handle("/seed", handlers.UseJson(seedHandler.Set())).Methods(http.MethodPost)
	rv.Handle("/seed", seedHandler.Clear()).Methods(http.MethodDelete)
	rv.Handle("/seed/unlock", handlers.UseJson(seedHandler.Unlock())).Methods(http.MethodPost)
	rv.Handle("/wallet", seedHandler.RemoveWallet()).Methods(http.MethodDelete)

	// Ledger
	rv.Handle("/accounts/{publicKey}/entries", ledgerHandler.ListEntries()).Methods(http.MethodGet)
	rv.Handle("/accounts/{publicKey}/entries/last", ledgerHandler.LastEntry()).Methods(http.MethodGet)
	rv.Handle("/entries", handlers.UseJson(ledgerHandler.SaveEntry())).Methods(http.MethodPost)
	rv.Handle("/work", ledgerHandler.GetWork()).Methods(http.MethodGet)
	rv.Handle("/work", handlers.UseJson(ledgerHandler.SetWork())).Methods(http.MethodPut)
	rv.Handle("/work", ledgerHandler.ClearWork()).Methods(http.MethodDelete)

	h := http.TimeoutHandler(r, cfg.ServerRequestTimeout, "request timed out")
	h = handlers.UseCors(h)
	h = handlers.UseLogging(h)
	h = handlers.UseCompress(h)

	is, err := newIdempotencyStore(cfg, db, pool)
	if err != nil {
		return nil, err
	}
	h = handlers.UseIdempotency(h, handlers.IdempotencyHandlerOptions{
		Expiry:      cfg.IdempotencyExpiry,
		IgnorePaths: []string{"/health", "/debug"},
	}, is)

	a.handler = h

	return a, nil
}

func newSecretStore(cfg *configs.Config, db *upstreamgorm.DB, pool *redis.Pool) (secrets.Store, error) {
	if cfg.SecretStoreType == secrets.StoreTypeMemory {
		log.Warn("Using in-memory secret store, secrets are lost on exit")
		return secrets.NewMemoryStore(), nil
	}

	crypter, err := keys.NewCrypter(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.SecretStoreType {
	case secrets.StoreTypeFile:
		return secrets.NewFileStore(cfg.SecretStoreDir, crypter)
	case secrets.StoreTypeDatabase:
		return secrets.NewGormStore(db, crypter), nil
	case secrets.StoreTypeRedis:
		if pool == nil {
			return nil, fmt.Errorf("secret store set to redis but Redis URL is empty")
		}
		return secrets.NewRedisStore(pool, crypter), nil
	}

	return nil, fmt.Errorf("secret store type %q not supported", cfg.SecretStoreType)
}

func newLedgerStore(ctx context.Context, cfg *configs.Config, db *upstreamgorm.DB, a *app) (ledger.Store, error) {
	switch cfg.LedgerEngine {
	case ledger.EngineGorm:
		return ledger.NewGormStore(db), nil
	case ledger.EngineBun:
		s, err := ledger.OpenBunStore(ctx, cfg.LedgerDatabaseDSN)
		if err != nil {
			return nil, err
		}
		a.onClose(func() {
			if err := s.Close(); err != nil {
				log.Warn(err)
			}
		})
		return s, nil
	case ledger.EngineMemory:
		return ledger.NewMemoryStore(), nil
	}

	return nil, fmt.Errorf("ledger engine %q not supported", cfg.LedgerEngine)
}

func newIdempotencyStore(cfg *configs.Config, db *upstreamgorm.DB, pool *redis.Pool) (handlers.IdempotencyStore, error) {
	switch cfg.IdempotencyStoreType {
	// Shared SQL/Gorm store (same as for main app)
	case handlers.IdempotencyStoreTypeShared:
		return handlers.NewIdempotencyStoreGorm(db), nil
	// Redis, separate from app db
	case handlers.IdempotencyStoreTypeRedis:
		if pool == nil {
			return nil, fmt.Errorf("idempotency store set to redis but Redis URL is empty")
		}
		return handlers.NewIdempotencyStoreRedis(pool), nil
	case handlers.IdempotencyStoreTypeLocal:
		return handlers.NewIdempotencyStoreLocal(), nil
	}

	return nil, fmt.Errorf("idempotency store type %q not supported", cfg.IdempotencyStoreType)
}

// watchSeedState logs seed state transitions. Only the state is logged.
func watchSeedState(ctx context.Context, registry *seeds.Registry) error {
	updates, err := registry.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for u := range updates {
			log.
				WithFields(log.Fields{"state": u.State}).
				Info("Seed state")
		}
	}()

	return nil
}
