package seeds

import (
	"encoding/json"
	"errors"
	"fmt"

	wallet_errors "github.com/attocash/wallet-core/errors"
	"github.com/attocash/wallet-core/keys/encryption"
)

const envelopeVersion = 1

// EncryptedSeed is the stored form of a seed. Everything except the
// ciphertext is readable without the password and is authenticated as
// associated data.
type EncryptedSeed struct {
	Version    int       `json:"v"`
	KDF        KDFParams `json:"kdf"`
	SeedID     string    `json:"id"`
	Ciphertext []byte    `json:"ct"`
}

type envelopeHeader struct {
	Version int       `json:"v"`
	KDF     KDFParams `json:"kdf"`
	SeedID  string    `json:"id"`
}

func (e *EncryptedSeed) associatedData() ([]byte, error) {
	return json.Marshal(envelopeHeader{e.Version, e.KDF, e.SeedID})
}

func (e *EncryptedSeed) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEncryptedSeed decodes a stored envelope.
func ParseEncryptedSeed(b []byte) (*EncryptedSeed, error) {
	e := &EncryptedSeed{}
	if err := json.Unmarshal(b, e); err != nil {
		return nil, fmt.Errorf("invalid seed envelope: %w", err)
	}
	if e.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported seed envelope version %d", e.Version)
	}
	if e.SeedID == "" {
		return nil, errors.New("seed envelope has no seed identifier")
	}
	if err := e.KDF.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Encrypt seals seed with key. The key's KDF parameters and seedID are
// recorded in the envelope.
func Encrypt(seed []byte, key *Key, seedID string) (*EncryptedSeed, error) {
	if len(key.b) != KeySize {
		return nil, errors.New("invalid or wiped key")
	}

	e := &EncryptedSeed{
		Version: envelopeVersion,
		KDF:     key.params,
		SeedID:  seedID,
	}

	ad, err := e.associatedData()
	if err != nil {
		return nil, err
	}

	ct, err := encryption.NewAESCrypter(key.b).EncryptWithAD(seed, ad)
	if err != nil {
		return nil, err
	}
	e.Ciphertext = ct

	return e, nil
}

// Decrypt opens e with key. Any authentication failure is returned as a
// *errors.DecryptionError. The caller owns the plaintext and should clear it.
func Decrypt(e *EncryptedSeed, key *Key) ([]byte, error) {
	if len(key.b) != KeySize {
		return nil, &wallet_errors.DecryptionError{Err: errors.New("invalid or wiped key")}
	}

	ad, err := e.associatedData()
	if err != nil {
		return nil, &wallet_errors.DecryptionError{Err: err}
	}

	seed, err := encryption.NewAESCrypter(key.b).DecryptWithAD(e.Ciphertext, ad)
	if err != nil {
		return nil, &wallet_errors.DecryptionError{Err: err}
	}

	return seed, nil
}
