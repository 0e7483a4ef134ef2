package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wallet_errors "github.com/attocash/wallet-core/errors"
	"github.com/attocash/wallet-core/keys/encryption"
	"github.com/gomodule/redigo/redis"
	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"
)

const (
	redisKeyPrefix       = "atto-wallet"
	redisMaxDialAttempts = 5
)

// RedisStore keeps sealed secrets in redis. SET, GET and DEL are atomic.
type RedisStore struct {
	pool    *redis.Pool
	crypter encryption.Crypter
}

func NewRedisStore(pool *redis.Pool, crypter encryption.Crypter) *RedisStore {
	return &RedisStore{pool: pool, crypter: crypter}
}

// NewRedisPool returns a connection pool for url. Connections are dialed
// with exponential backoff.
func NewRedisPool(url string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return dialWithBackoff(url, redisMaxDialAttempts)
		},
	}
}

func dialWithBackoff(url string, attempts int) (redis.Conn, error) {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		c, err := redis.DialURL(url)
		if err == nil {
			return c, nil
		}
		if int(b.Attempt())+1 >= attempts {
			return nil, err
		}
		d := b.Duration()
		log.
			WithFields(log.Fields{"error": err, "retryIn": d}).
			Debug("Redis dial failed, retrying")
		time.Sleep(d)
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, false, redisError("get", key, err)
	}
	defer conn.Close()

	sealed, err := redis.Bytes(conn.Do("GET", redisKey(key)))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, redisError("get", key, err)
	}

	value, err := unseal(s.crypter, key, sealed)
	if err != nil {
		return nil, false, storeError("get", key, err)
	}

	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := seal(s.crypter, key, value)
	if err != nil {
		return storeError("set", key, err)
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return redisError("set", key, err)
	}
	defer conn.Close()

	res, err := redis.String(conn.Do("SET", redisKey(key), sealed))
	if err != nil {
		return redisError("set", key, err)
	}
	if res != "OK" {
		return redisError("set", key, fmt.Errorf("unexpected reply: %s", res))
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return redisError("delete", key, err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", redisKey(key)); err != nil {
		return redisError("delete", key, err)
	}

	return nil
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}

func redisError(op, key string, err error) error {
	var reply redis.Error
	if errors.As(err, &reply) {
		code, _, _ := strings.Cut(string(reply), " ")
		return &wallet_errors.SecretStoreError{Op: op, Key: key, NativeCode: code, Err: err}
	}
	return storeError(op, key, err)
}
