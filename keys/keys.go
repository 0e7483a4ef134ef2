// Package keys selects the crypter used to seal secrets at rest.
package keys

import (
	"fmt"

	"github.com/attocash/wallet-core/configs"
	"github.com/attocash/wallet-core/keys/aws"
	"github.com/attocash/wallet-core/keys/encryption"
	"github.com/attocash/wallet-core/keys/google"
	"go.uber.org/ratelimit"
)

// localKeySize is the AES-256 key size expected for local encryption keys.
const localKeySize = 32

// NewCrypter returns the crypter configured by cfg.EncryptionKeyType.
func NewCrypter(cfg *configs.Config) (encryption.Crypter, error) {
	switch cfg.EncryptionKeyType {
	default:
		return nil, fmt.Errorf("encryption key type %q not supported", cfg.EncryptionKeyType)
	case encryption.EncryptionKeyTypeLocal:
		if len(cfg.EncryptionKey) != localKeySize {
			return nil, fmt.Errorf("local encryption key must be %d bytes, got %d", localKeySize, len(cfg.EncryptionKey))
		}
		return encryption.NewAESCrypter([]byte(cfg.EncryptionKey)), nil
	case encryption.EncryptionKeyTypeAWSKMS:
		var opts []aws.CrypterOption
		if cfg.KMSMaxRequestRate > 0 {
			opts = append(opts, aws.WithRatelimiter(ratelimit.New(cfg.KMSMaxRequestRate, ratelimit.WithoutSlack)))
		}
		return aws.NewAWSKMSCrypter([]byte(cfg.EncryptionKey), opts...), nil
	case encryption.EncryptionKeyTypeGoogleKMS:
		return google.NewGoogleKMSCrypter([]byte(cfg.EncryptionKey)), nil
	}
}
