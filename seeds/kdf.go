package seeds

import (
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const (
	KDFAlgorithmPBKDF2   = "pbkdf2-sha512"
	KDFAlgorithmScrypt   = "scrypt"
	KDFAlgorithmArgon2id = "argon2id"
)

// KeySize is the length of derived keys (AES-256).
const KeySize = 32

// Upper bounds for parameters read back from stored envelopes.
const (
	maxIterations   = 10_000_000
	maxArgon2Memory = 1 << 20 // KiB
	maxScryptN      = 1 << 22
)

// KDFParams is a named, versioned key derivation parameter set. The full set
// is stored with every encrypted seed so it can always be decrypted, and so
// older sets can be detected and upgraded.
type KDFParams struct {
	Version   int    `json:"v"`
	Algorithm string `json:"alg"`

	// PBKDF2 iterations or argon2 passes.
	Iterations uint32 `json:"i,omitempty"`
	// argon2 memory in KiB.
	Memory uint32 `json:"m,omitempty"`
	// argon2 lanes.
	Threads uint8 `json:"t,omitempty"`

	// scrypt cost parameters.
	N int `json:"n,omitempty"`
	R int `json:"r,omitempty"`
	P int `json:"p,omitempty"`

	KeyLen uint32 `json:"len"`
}

var (
	KDFv1 = KDFParams{Version: 1, Algorithm: KDFAlgorithmPBKDF2, Iterations: 210_000, KeyLen: KeySize}
	KDFv2 = KDFParams{Version: 2, Algorithm: KDFAlgorithmScrypt, N: 1 << 15, R: 8, P: 1, KeyLen: KeySize}
	KDFv3 = KDFParams{Version: 3, Algorithm: KDFAlgorithmArgon2id, Iterations: 3, Memory: 64 * 1024, Threads: 4, KeyLen: KeySize}
)

// CurrentKDF is used for every new encryption.
var CurrentKDF = KDFv3

// NeedsUpgrade reports whether p is older than CurrentKDF.
func NeedsUpgrade(p KDFParams) bool {
	return p.Version < CurrentKDF.Version
}

func (p KDFParams) Validate() error {
	if p.KeyLen != KeySize {
		return fmt.Errorf("kdf: key length must be %d, got %d", KeySize, p.KeyLen)
	}

	switch p.Algorithm {
	case KDFAlgorithmPBKDF2:
		if p.Iterations == 0 || p.Iterations > maxIterations {
			return fmt.Errorf("kdf: invalid pbkdf2 iterations %d", p.Iterations)
		}
	case KDFAlgorithmScrypt:
		if p.N <= 1 || p.N&(p.N-1) != 0 || p.N > maxScryptN {
			return fmt.Errorf("kdf: invalid scrypt N %d", p.N)
		}
		if p.R <= 0 || p.P <= 0 {
			return fmt.Errorf("kdf: invalid scrypt r=%d p=%d", p.R, p.P)
		}
	case KDFAlgorithmArgon2id:
		if p.Iterations == 0 || p.Threads == 0 {
			return fmt.Errorf("kdf: invalid argon2id t=%d p=%d", p.Iterations, p.Threads)
		}
		if p.Memory < 8*uint32(p.Threads) || p.Memory > maxArgon2Memory {
			return fmt.Errorf("kdf: invalid argon2id memory %d", p.Memory)
		}
	default:
		return fmt.Errorf("kdf: unknown algorithm %q", p.Algorithm)
	}

	return nil
}

// Key is a derived symmetric key. Call Wipe once it is no longer needed.
type Key struct {
	b      []byte
	params KDFParams
}

func (k *Key) Params() KDFParams {
	return k.params
}

// Wipe zeroes the key material.
func (k *Key) Wipe() {
	clear(k.b)
	k.b = nil
}

// DeriveKey derives a key from password and salt using params.
func DeriveKey(password string, salt []byte, params KDFParams) (*Key, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("kdf: empty salt")
	}

	pw := []byte(password)
	defer clear(pw)

	var b []byte
	switch params.Algorithm {
	case KDFAlgorithmPBKDF2:
		b = pbkdf2.Key(pw, salt, int(params.Iterations), int(params.KeyLen), sha512.New)
	case KDFAlgorithmScrypt:
		var err error
		b, err = scrypt.Key(pw, salt, params.N, params.R, params.P, int(params.KeyLen))
		if err != nil {
			return nil, fmt.Errorf("kdf: %w", err)
		}
	case KDFAlgorithmArgon2id:
		b = argon2.IDKey(pw, salt, params.Iterations, params.Memory, params.Threads, params.KeyLen)
	}

	return &Key{b: b, params: params}, nil
}
