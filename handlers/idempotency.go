package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Idempotency Handler middleware
// ===========================================================================

const IdempotencyKeyHeader = "Idempotency-Key"

const (
	IdempotencyStoreTypeLocal  = "local"
	IdempotencyStoreTypeShared = "shared"
	IdempotencyStoreTypeRedis  = "redis"
)

type IdempotencyHandlerOptions struct {
	// IgnorePaths are prefixes matched against the path with its leading
	// API version segment removed, e.g. "/health" matches "/v2/health/ready".
	IgnorePaths []string
	Expiry      time.Duration
}

type IdempotencyStore interface {
	// Claim records key until expiry. It reports false if the key was
	// already claimed and has not expired. Check and record are one step.
	Claim(ctx context.Context, key string, expiry time.Duration) (bool, error)
}

// Redis store for idempotency keys
type IdempotencyStoreRedis struct {
	pool   *redis.Pool
	prefix string
}

func NewIdempotencyStoreRedis(pool *redis.Pool) *IdempotencyStoreRedis {
	return &IdempotencyStoreRedis{pool: pool, prefix: "atto-wallet-idempotency"}
}

func (s *IdempotencyStoreRedis) prefixedKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

func (s *IdempotencyStoreRedis) Claim(ctx context.Context, key string, expiry time.Duration) (bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	res, err := redis.String(conn.Do("SET", s.prefixedKey(key), 1, "NX", "PX", expiry.Milliseconds()))
	if err == redis.ErrNil {
		return false, nil
	} else if err != nil {
		return false, err
	}

	if res != "OK" {
		return false, fmt.Errorf("failed to set key: %v", res)
	}

	return true, nil
}

// Gorm (SQL) store for idempotency keys
type IdempotencyStoreGorm struct {
	db *gorm.DB
}

type IdempotencyStoreGormItem struct {
	Key        string    `gorm:"column:key;primary_key"`
	ExpiryDate time.Time `gorm:"column:expiry_date"`
}

func (IdempotencyStoreGormItem) TableName() string {
	return "idempotency_keys"
}

func NewIdempotencyStoreGorm(db *gorm.DB) *IdempotencyStoreGorm {
	return &IdempotencyStoreGorm{db: db}
}

func (s *IdempotencyStoreGorm) Claim(ctx context.Context, key string, expiry time.Duration) (bool, error) {
	var claimed bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		if err := tx.Delete(&IdempotencyStoreGormItem{}, "key = ? AND expiry_date <= ?", key, now).Error; err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&IdempotencyStoreGormItem{Key: key, ExpiryDate: now.Add(expiry)})
		if res.Error != nil {
			return res.Error
		}

		claimed = res.RowsAffected == 1
		return nil
	})

	return claimed, err
}

// Prune deletes all expired items from the database
func (s *IdempotencyStoreGorm) Prune(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&IdempotencyStoreGormItem{}, "expiry_date < ?", time.Now()).Error
}

// Local / in-memory store for idempotency keys, mainly for testing purposes
type IdempotencyStoreLocal struct {
	mu   sync.Mutex
	keys map[string]time.Time // key: expiry
}

func NewIdempotencyStoreLocal() *IdempotencyStoreLocal {
	return &IdempotencyStoreLocal{keys: make(map[string]time.Time)}
}

func (s *IdempotencyStoreLocal) Claim(ctx context.Context, key string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if dl, ok := s.keys[key]; ok && dl.After(now) {
		return false, nil
	}

	s.keys[key] = now.Add(expiry)
	return true, nil
}

// IdempotencyHandler returns a http.Handler that rejects a POST request
// repeating an Idempotency-Key seen within the expiry. Requests without the
// header are passed through.
func IdempotencyHandler(h http.Handler, opts IdempotencyHandlerOptions, store IdempotencyStore) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		// Check for ignored paths
		unversioned := stripVersion(r.URL.Path)
		for _, path := range opts.IgnorePaths {
			if strings.HasPrefix(unversioned, path) {
				h.ServeHTTP(rw, r)
				return
			}
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if r.Method != http.MethodPost || key == "" {
			h.ServeHTTP(rw, r)
			return
		}

		claimed, err := store.Claim(r.Context(), key, opts.Expiry)
		if err != nil {
			log.
				WithFields(log.Fields{"error": err, "key": key}).
				Warn("Error while claiming idempotency key")
			http.Error(rw, "Error while reading idempotency key", http.StatusInternalServerError)
			return
		}

		if !claimed {
			http.Error(rw, fmt.Sprintf("Idempotency-Key conflict, key: %s", key), http.StatusConflict)
			return
		}

		h.ServeHTTP(rw, r)
	})
}

// stripVersion drops the first path segment: "/v1/health/ready" becomes
// "/health/ready".
func stripVersion(path string) string {
	_, rest, found := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !found {
		return "/"
	}
	return "/" + rest
}
