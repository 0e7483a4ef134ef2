// Package errors provides an API for errors across the application.
package errors

import (
	"errors"
	"fmt"
)

// ErrUnableToUnlock is the only failure shown to users for password related
// problems. It intentionally does not say which step failed.
var ErrUnableToUnlock = errors.New("unable to unlock wallet")

// ErrNotFound is returned by the HTTP layer when a lookup has no result.
// Storage reads report absence with a found flag instead.
var ErrNotFound = errors.New("not found")

type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// SecretStoreError is a failure of the underlying secure storage facility.
// NativeCode carries the backend specific code (errno, redis reply, gRPC
// status code) when one is available.
type SecretStoreError struct {
	Op         string
	Key        string
	NativeCode string
	Err        error
}

func (e *SecretStoreError) Error() string {
	if e.NativeCode != "" {
		return fmt.Sprintf("secret store %s %q failed (code %s): %v", e.Op, e.Key, e.NativeCode, e.Err)
	}
	return fmt.Sprintf("secret store %s %q failed: %v", e.Op, e.Key, e.Err)
}

func (e *SecretStoreError) Unwrap() error {
	return e.Err
}

// DecryptionError means a ciphertext could not be authenticated with the
// given key: wrong password, wrong salt or corrupted data.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// StorageTransactionError wraps a database engine failure. The write it
// belongs to is considered not committed.
type StorageTransactionError struct {
	Op  string
	Err error
}

func (e *StorageTransactionError) Error() string {
	return fmt.Sprintf("storage transaction %s failed: %v", e.Op, e.Err)
}

func (e *StorageTransactionError) Unwrap() error {
	return e.Err
}

func IsSecretStoreError(err error) bool {
	var target *SecretStoreError
	return errors.As(err, &target)
}

func IsDecryptionError(err error) bool {
	var target *DecryptionError
	return errors.As(err, &target)
}

func IsStorageTransactionError(err error) bool {
	var target *StorageTransactionError
	return errors.As(err, &target)
}
