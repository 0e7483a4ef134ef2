package secrets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/attocash/wallet-core/keys/encryption"
)

const (
	fileStoreDirMode = 0o700
	fileItemSuffix   = ".item"
)

// FileStore keeps each item in its own sealed file inside dir.
// Set replaces the file with an atomic rename, so an item is never
// observed as absent while it is being updated.
type FileStore struct {
	dir     string
	crypter encryption.Crypter
}

func NewFileStore(dir string, crypter encryption.Crypter) (*FileStore, error) {
	if err := os.MkdirAll(dir, fileStoreDirMode); err != nil {
		return nil, storeError("open", dir, err)
	}
	if err := os.Chmod(dir, fileStoreDirMode); err != nil {
		return nil, storeError("open", dir, err)
	}
	return &FileStore{dir: dir, crypter: crypter}, nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, storeError("get", key, err)
	}

	value, err := unseal(s.crypter, key, sealed)
	if err != nil {
		return nil, false, storeError("get", key, err)
	}

	return value, true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := seal(s.crypter, key, value)
	if err != nil {
		return storeError("set", key, err)
	}

	// CreateTemp opens the file with mode 0600.
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return storeError("set", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return storeError("set", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return storeError("set", key, err)
	}
	if err := tmp.Close(); err != nil {
		return storeError("set", key, err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return storeError("set", key, err)
	}

	s.syncDir()

	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return storeError("delete", key, err)
	}

	s.syncDir()

	return nil
}

func (s *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(ServiceName + "/" + key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+fileItemSuffix)
}

// syncDir persists the directory entry after a rename or removal.
// Not every platform supports fsync on directories; failures are ignored.
func (s *FileStore) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		return
	}
	d.Sync() // nolint
	d.Close()
}
